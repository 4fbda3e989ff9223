package knowledge

// MetadataRecord 与索引位置对齐的元数据：原文与来源
type MetadataRecord struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// SearchMatch 单条检索结果，Distance为平方欧氏距离，越小越相关
type SearchMatch struct {
	Metadata MetadataRecord `json:"metadata"`
	Distance float64        `json:"distance"`
}

// VectorStore 向量存储抽象
// 核心不变量：任何操作完成后索引条数与元数据条数一致
type VectorStore interface {
	Add(vectors [][]float32, metadatas []MetadataRecord) error
	Search(query []float32, k int) ([]SearchMatch, error)
	Save() error
	Len() int
	Dimensions() int
}
