package knowledge

import (
	"context"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

// Embedder 定义文本向量化接口
// Embed 保序：返回向量与输入文本一一对应，维度恒为 Dimensions()
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 未配置嵌入服务时的占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, apperrors.NewProviderError("embedding provider not configured", nil)
}

func (n *NoopEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return nil, apperrors.NewProviderError("embedding provider not configured", nil)
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}
