package knowledge

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

const (
	indexFileName    = "index.bin"
	metadataFileName = "metadata.json"

	indexMagic   = 0x52414756 // "RAGV"
	indexVersion = 1
)

// FlatVectorStore 精确最近邻的平坦L2索引 + 对齐的元数据侧表
// 两份持久化文件（二进制向量索引、JSON元数据）必须一起写入一起加载
// 写操作互斥，读操作可并发（单写多读）
type FlatVectorStore struct {
	mu        sync.RWMutex
	dir       string
	dimension int
	vectors   [][]float32
	metadata  []MetadataRecord
}

// OpenFlatStore 打开指定目录下的向量存储
// 两份文件都不存在时创建空库；只存在一份或条数不一致时判定损坏，拒绝启动
func OpenFlatStore(dir string, dimension int) (*FlatVectorStore, error) {
	if dimension <= 0 {
		return nil, apperrors.NewConfigurationError("vector dimension must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewPersistenceError("failed to create store directory", err)
	}

	s := &FlatVectorStore{dir: dir, dimension: dimension}

	indexPath := filepath.Join(dir, indexFileName)
	metaPath := filepath.Join(dir, metadataFileName)
	indexExists := fileExists(indexPath)
	metaExists := fileExists(metaPath)

	switch {
	case !indexExists && !metaExists:
		return s, nil
	case indexExists != metaExists:
		return nil, apperrors.NewCorruptStoreError(
			"vector store corrupt: index and metadata artifacts must exist together")
	}

	if err := s.load(indexPath, metaPath); err != nil {
		return nil, err
	}
	return s, nil
}

// Add 追加向量与对齐的元数据并持久化
// 先整体校验再追加；持久化失败时回滚内存状态，保证内存不领先于磁盘
func (s *FlatVectorStore) Add(vectors [][]float32, metadatas []MetadataRecord) error {
	if len(vectors) != len(metadatas) {
		return apperrors.NewLengthMismatchError(len(vectors), len(metadatas))
	}
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return apperrors.NewDimensionMismatchError(s.dimension, len(v))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := len(s.vectors)
	s.vectors = append(s.vectors, vectors...)
	s.metadata = append(s.metadata, metadatas...)

	if err := s.persistLocked(); err != nil {
		s.vectors = s.vectors[:snapshot]
		s.metadata = s.metadata[:snapshot]
		return err
	}
	return nil
}

// Search 返回按平方欧氏距离升序的至多k条结果
// 空库返回空切片而非错误：查无内容是合法结果，驱动兜底拒答
func (s *FlatVectorStore) Search(query []float32, k int) ([]SearchMatch, error) {
	if len(query) != s.dimension {
		return nil, apperrors.NewDimensionMismatchError(s.dimension, len(query))
	}
	if k < 1 {
		return nil, apperrors.NewValidationError("k must be at least 1")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return []SearchMatch{}, nil
	}

	type scored struct {
		pos  int
		dist float64
	}
	candidates := make([]scored, len(s.vectors))
	for i, v := range s.vectors {
		candidates[i] = scored{pos: i, dist: squaredL2(query, v)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]SearchMatch, 0, k)
	for _, c := range candidates[:k] {
		// 防御部分损坏：位置没有对应元数据时丢弃而不是返回垃圾
		if c.pos >= len(s.metadata) {
			continue
		}
		results = append(results, SearchMatch{
			Metadata: s.metadata[c.pos],
			Distance: c.dist,
		})
	}
	return results, nil
}

// Save 将索引与元数据一起落盘
func (s *FlatVectorStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Len 返回已存向量条数
func (s *FlatVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Dimensions 返回索引声明的向量维度
func (s *FlatVectorStore) Dimensions() int {
	return s.dimension
}

// persistLocked 写入两份文件，均采用临时文件+rename避免半写状态
// 调用方必须持有写锁
func (s *FlatVectorStore) persistLocked() error {
	indexBytes, err := s.encodeIndex()
	if err != nil {
		return apperrors.NewPersistenceError("failed to encode vector index", err)
	}
	metaBytes, err := json.Marshal(s.metadata)
	if err != nil {
		return apperrors.NewPersistenceError("failed to encode metadata", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, indexFileName), indexBytes); err != nil {
		return apperrors.NewPersistenceError("failed to write vector index", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, metadataFileName), metaBytes); err != nil {
		return apperrors.NewPersistenceError("failed to write metadata", err)
	}
	return nil
}

// encodeIndex 序列化向量索引
// 布局：magic | version | dimension | count | count*dimension个float32
func (s *FlatVectorStore) encodeIndex() ([]byte, error) {
	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], indexMagic)
	binary.LittleEndian.PutUint32(header[4:8], indexVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(s.dimension))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(s.vectors)))

	buf := make([]byte, 0, 16+len(s.vectors)*s.dimension*4)
	buf = append(buf, header...)
	var scratch [4]byte
	for _, vec := range s.vectors {
		for _, f := range vec {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(f))
			buf = append(buf, scratch[:]...)
		}
	}
	return buf, nil
}

func (s *FlatVectorStore) load(indexPath, metaPath string) error {
	indexBytes, err := os.ReadFile(indexPath)
	if err != nil {
		return apperrors.NewPersistenceError("failed to read vector index", err)
	}
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return apperrors.NewPersistenceError("failed to read metadata", err)
	}

	vectors, err := decodeIndex(indexBytes, s.dimension)
	if err != nil {
		return err
	}

	var metadata []MetadataRecord
	if err := json.Unmarshal(metaBytes, &metadata); err != nil {
		return apperrors.NewCorruptStoreError(
			fmt.Sprintf("vector store corrupt: metadata is not valid JSON: %v", err))
	}

	// 两侧条数必须一致，静默截断会让索引悄悄偏离文档集
	if len(vectors) != len(metadata) {
		return apperrors.NewCorruptStoreError(fmt.Sprintf(
			"vector store corrupt: index holds %d vectors but metadata holds %d records",
			len(vectors), len(metadata)))
	}

	s.vectors = vectors
	s.metadata = metadata
	return nil
}

func decodeIndex(data []byte, dimension int) ([][]float32, error) {
	if len(data) < 16 {
		return nil, apperrors.NewCorruptStoreError("vector store corrupt: index header truncated")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != indexMagic {
		return nil, apperrors.NewCorruptStoreError("vector store corrupt: bad index magic")
	}
	if binary.LittleEndian.Uint32(data[4:8]) != indexVersion {
		return nil, apperrors.NewCorruptStoreError("vector store corrupt: unsupported index version")
	}
	storedDim := int(binary.LittleEndian.Uint32(data[8:12]))
	if storedDim != dimension {
		return nil, apperrors.NewCorruptStoreError(fmt.Sprintf(
			"vector store corrupt: index dimension %d does not match configured dimension %d",
			storedDim, dimension))
	}
	count := int(binary.LittleEndian.Uint32(data[12:16]))

	payload := data[16:]
	expected := count * dimension * 4
	if len(payload) != expected {
		return nil, apperrors.NewCorruptStoreError(fmt.Sprintf(
			"vector store corrupt: index payload is %d bytes, expected %d", len(payload), expected))
	}

	vectors := make([][]float32, count)
	offset := 0
	for i := 0; i < count; i++ {
		vec := make([]float32, dimension)
		for j := 0; j < dimension; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[offset : offset+4]))
			offset += 4
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
