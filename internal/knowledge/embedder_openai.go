package knowledge

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder 使用OpenAI Embedding API，批量调用并保持输入顺序
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	timeout    time.Duration
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器
// apiKey为空时返回NoopEmbedder，dimension<=0时按模型表推断
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimension int, timeout time.Duration) Embedder {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	if dimension <= 0 {
		dims, ok := embeddingDimensions[model]
		if !ok {
			dims = 1536
		}
		dimension = dims
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dimension,
		timeout:    timeout,
	}
}

// Embed 批量向量化，一次请求覆盖整批文本
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperrors.NewValidationError("no texts to embed")
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, apperrors.NewValidationError("cannot embed empty text")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, apperrors.NewProviderError("embedding request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewProviderError("embedding response count does not match input", nil)
	}

	// API响应顺序不保证与输入一致，按Index归位
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, apperrors.NewProviderError("embedding response index out of range", nil)
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		vectors[item.Index] = vec
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, apperrors.NewProviderError("embedding response missing entry", nil)
		}
		if len(vec) != e.dimensions {
			return nil, apperrors.NewDimensionMismatchError(e.dimensions, len(vectors[i]))
		}
	}
	return vectors, nil
}

// EmbedOne 向量化单条文本
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
