package knowledge

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aihub/rag-go/internal/errors"
	"github.com/aihub/rag-go/internal/logger"
	"github.com/aihub/rag-go/internal/metrics"
)

// RefusalAnswer 语料中查无依据时的固定回答，绝不编造
const RefusalAnswer = "No relevant information found in the indexed documents."

// UnavailableAnswer 生成服务故障时的可区分回答
const UnavailableAnswer = "The answer service is temporarily unavailable, please try again later."

// PipelineConfig 检索管线参数
type PipelineConfig struct {
	TopK               int
	RelevanceThreshold float64 // 最优结果的平方欧氏距离超过该值视为语料外提问
	MaxContextChars    int
	MaxRetries         int
	RetryBackoff       time.Duration
}

// IngestResult 摄取结果
type IngestResult struct {
	ChunksCreated int `json:"chunks_created"`
}

// QueryResult 查询结果：回答 + 检索到的元数据（含距离，供调用方溯源）
type QueryResult struct {
	Answer    string        `json:"answer"`
	Retrieved []SearchMatch `json:"retrieved"`
}

// Pipeline 检索管线：编排 分块→嵌入→入库 与 嵌入→检索→生成
// store在进程启动时打开一次并注入，摄取与查询共用同一实例
// 历史教训：每次请求新建store会得到空库，之前索引的内容全部丢失
type Pipeline struct {
	chunker   *Chunker
	embedder  Embedder
	generator Generator
	store     VectorStore
	cache     *EmbedCache
	cfg       PipelineConfig
}

// NewPipeline 创建检索管线，cache可为nil
func NewPipeline(chunker *Chunker, embedder Embedder, generator Generator, store VectorStore, cache *EmbedCache, cfg PipelineConfig) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 6000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cache == nil {
		cache = NewEmbedCache(nil, 0)
	}
	return &Pipeline{
		chunker:   chunker,
		embedder:  embedder,
		generator: generator,
		store:     store,
		cache:     cache,
		cfg:       cfg,
	}
}

// Ingest 摄取一篇文档：分块、整批保序嵌入、对齐写入已加载的store
func (p *Pipeline) Ingest(ctx context.Context, text, source string) (*IngestResult, error) {
	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, apperrors.NewEmptyDocumentError(source)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedWithRetry(ctx, texts)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("embedding").Inc()
		return nil, err
	}

	metadatas := make([]MetadataRecord, len(chunks))
	for i, c := range chunks {
		metadatas[i] = MetadataRecord{Text: c.Text, Source: source}
	}

	if err := p.store.Add(vectors, metadatas); err != nil {
		return nil, err
	}

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIndexed.Add(float64(len(chunks)))
	logger.Info("document indexed",
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
		zap.Int("store_size", p.store.Len()))

	return &IngestResult{ChunksCreated: len(chunks)}, nil
}

// Query 回答问题：嵌入问题、检索top-k、证据不足则拒答，否则拼装上下文并生成
func (p *Pipeline) Query(ctx context.Context, question string, k int) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.NewValidationError("question cannot be empty")
	}
	if k <= 0 {
		k = p.cfg.TopK
	}

	queryVec := p.cache.Get(ctx, question)
	if queryVec == nil {
		var err error
		queryVec, err = p.embedOneWithRetry(ctx, question)
		if err != nil {
			metrics.ProviderErrors.WithLabelValues("embedding").Inc()
			metrics.QueriesServed.WithLabelValues("error").Inc()
			return nil, err
		}
		p.cache.Put(ctx, question, queryVec)
	}

	start := time.Now()
	matches, err := p.store.Search(queryVec, k)
	if err != nil {
		metrics.QueriesServed.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	// 空库或最优结果距离超阈值：明确拒答，不把生成器喂给无关内容
	if len(matches) == 0 || (p.cfg.RelevanceThreshold > 0 && matches[0].Distance > p.cfg.RelevanceThreshold) {
		metrics.QueriesServed.WithLabelValues("refused").Inc()
		logger.Debug("query refused, no relevant evidence",
			zap.String("question", question),
			zap.Int("matches", len(matches)))
		return &QueryResult{Answer: RefusalAnswer, Retrieved: matches}, nil
	}

	answer, err := p.generator.Generate(ctx, p.assembleContext(matches), question)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("generation").Inc()
		metrics.QueriesServed.WithLabelValues("error").Inc()
		logger.Error("generation failed", zap.Error(err))
		return &QueryResult{Answer: UnavailableAnswer, Retrieved: matches}, err
	}

	metrics.QueriesServed.WithLabelValues("answered").Inc()
	return &QueryResult{Answer: answer, Retrieved: matches}, nil
}

// assembleContext 按相关度顺序拼接命中文本，截断到上下文上限
func (p *Pipeline) assembleContext(matches []SearchMatch) string {
	var parts []string
	total := 0
	for _, m := range matches {
		text := m.Metadata.Text
		if total+len(text) > p.cfg.MaxContextChars {
			if len(parts) == 0 {
				runes := []rune(text)
				if len(runes) > p.cfg.MaxContextChars {
					runes = runes[:p.cfg.MaxContextChars]
				}
				parts = append(parts, string(runes))
			}
			break
		}
		parts = append(parts, text)
		total += len(text) + 1
	}
	return strings.Join(parts, "\n")
}

// embedWithRetry 有限次重试的批量嵌入，每次失败后退避
func (p *Pipeline) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperrors.NewProviderError("embedding cancelled", ctx.Err())
			case <-time.After(p.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		// 调用方错误不值得重试
		if !apperrors.IsCode(err, apperrors.ErrCodeProvider) {
			return nil, err
		}
		logger.Warn("embedding attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func (p *Pipeline) embedOneWithRetry(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Store 返回管线持有的store（健康检查用）
func (p *Pipeline) Store() VectorStore {
	return p.store
}
