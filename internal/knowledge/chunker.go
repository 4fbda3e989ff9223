package knowledge

import (
	"strings"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

// Chunk 表示分块后的文本结构
type Chunk struct {
	Index int
	Text  string
}

// Chunker 文本分块器，按固定窗口+重叠滑动切分
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器
// 要求 chunkSize > 0 且 0 <= overlap < chunkSize，否则步长无法前进
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, apperrors.NewConfigurationError("chunk_size must be positive")
	}
	if overlap < 0 {
		return nil, apperrors.NewConfigurationError("chunk_overlap must be non-negative")
	}
	if overlap >= chunkSize {
		return nil, apperrors.NewConfigurationError("chunk_overlap must be smaller than chunk_size")
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}, nil
}

// Split 将文本切分为多个chunk
// 末尾不足一个窗口的残块保留，避免悄悄丢失文档尾部内容
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []Chunk{{Index: 0, Text: text}}
	}

	step := c.chunkSize - c.chunkOverlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
	}
	return chunks
}

// ChunkSize 返回配置的窗口大小
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap 返回配置的重叠长度
func (c *Chunker) Overlap() int { return c.chunkOverlap }
