package knowledge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

// fakeEmbedder 确定性测试嵌入器：按关键词给出可控向量
type fakeEmbedder struct {
	dim      int
	failures int // 前failures次调用返回ProviderError
	calls    int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, apperrors.NewProviderError("embedding backend down", nil)
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = f.vectorFor(t)
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dim }
func (f *fakeEmbedder) Ready() bool     { return true }

// vectorFor 语料内文本映射到原点附近，语料外关键词映射到远处
func (f *fakeEmbedder) vectorFor(text string) []float32 {
	v := make([]float32, f.dim)
	switch {
	case strings.Contains(text, "quantum"):
		v[0] = 100
	case strings.Contains(text, "supplier"):
		v[0] = 1
	default:
		v[0] = 1.1
	}
	return v
}

// fakeGenerator 记录调用并返回固定回答
type fakeGenerator struct {
	answer string
	fail   bool
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	g.calls++
	if g.fail {
		return "", apperrors.NewProviderError("generation backend down", nil)
	}
	return g.answer, nil
}

func (g *fakeGenerator) Ready() bool { return true }

func newTestPipeline(t *testing.T, embedder Embedder, generator Generator, cfg PipelineConfig) *Pipeline {
	t.Helper()
	chunker, err := NewChunker(20, 5)
	require.NoError(t, err)
	store, err := OpenFlatStore(t.TempDir(), embedder.Dimensions())
	require.NoError(t, err)
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	return NewPipeline(chunker, embedder, generator, store, nil, cfg)
}

func TestPipeline_Ingest_FoxScenario(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4}
	p := newTestPipeline(t, embedder, &fakeGenerator{answer: "ok"}, PipelineConfig{})

	result, err := p.Ingest(context.Background(), "The quick brown fox jumps over the lazy dog", "fox.txt")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunksCreated)
	assert.Equal(t, 3, p.Store().Len())
}

func TestPipeline_Ingest_EmptyDocument(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{dim: 4}, &fakeGenerator{}, PipelineConfig{})

	_, err := p.Ingest(context.Background(), "   \n  ", "empty.txt")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmptyDocument))
	assert.Equal(t, 0, p.Store().Len())
}

func TestPipeline_Ingest_RetriesProviderFailure(t *testing.T) {
	// 前两次嵌入调用失败，第三次成功
	embedder := &fakeEmbedder{dim: 4, failures: 2}
	p := newTestPipeline(t, embedder, &fakeGenerator{}, PipelineConfig{MaxRetries: 3})

	result, err := p.Ingest(context.Background(), "supplier delay procedures", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunksCreated)
	assert.Equal(t, 3, embedder.calls)
}

func TestPipeline_Ingest_RetriesExhausted(t *testing.T) {
	embedder := &fakeEmbedder{dim: 4, failures: 10}
	p := newTestPipeline(t, embedder, &fakeGenerator{}, PipelineConfig{MaxRetries: 3})

	_, err := p.Ingest(context.Background(), "supplier delay procedures", "doc.txt")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProvider))
	// 重试耗尽后不得留下部分写入
	assert.Equal(t, 0, p.Store().Len())
	assert.Equal(t, 3, embedder.calls)
}

func TestPipeline_Query_EmptyStoreRefuses(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	p := newTestPipeline(t, &fakeEmbedder{dim: 4}, gen, PipelineConfig{})

	result, err := p.Query(context.Background(), "anything at all", 0)
	require.NoError(t, err)
	assert.Equal(t, RefusalAnswer, result.Answer)
	assert.Empty(t, result.Retrieved)
	// 没有证据时绝不调用生成器
	assert.Equal(t, 0, gen.calls)
}

func TestPipeline_Query_OutOfCorpusRefuses(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	p := newTestPipeline(t, &fakeEmbedder{dim: 4}, gen, PipelineConfig{RelevanceThreshold: 10})

	_, err := p.Ingest(context.Background(), "supplier delay procedures", "handbook.txt")
	require.NoError(t, err)

	// 语料只有供应商内容，量子计算问题的最优距离远超阈值
	result, err := p.Query(context.Background(), "quantum computing policy", 5)
	require.NoError(t, err)
	assert.Equal(t, RefusalAnswer, result.Answer)
	assert.NotEmpty(t, result.Retrieved)
	assert.Equal(t, 0, gen.calls)
}

func TestPipeline_Query_AnswersFromCorpus(t *testing.T) {
	gen := &fakeGenerator{answer: "suppliers must notify within 24 hours"}
	p := newTestPipeline(t, &fakeEmbedder{dim: 4}, gen, PipelineConfig{RelevanceThreshold: 10})

	_, err := p.Ingest(context.Background(), "supplier delay procedures", "handbook.txt")
	require.NoError(t, err)

	result, err := p.Query(context.Background(), "what are supplier delay rules", 5)
	require.NoError(t, err)
	assert.Equal(t, "suppliers must notify within 24 hours", result.Answer)
	assert.NotEmpty(t, result.Retrieved)
	assert.Equal(t, "handbook.txt", result.Retrieved[0].Metadata.Source)
	assert.Equal(t, 1, gen.calls)
}

func TestPipeline_Query_GeneratorOutage(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	p := newTestPipeline(t, &fakeEmbedder{dim: 4}, gen, PipelineConfig{RelevanceThreshold: 10})

	_, err := p.Ingest(context.Background(), "supplier delay procedures", "handbook.txt")
	require.NoError(t, err)

	result, err := p.Query(context.Background(), "what are supplier delay rules", 5)
	require.Error(t, err)
	require.NotNil(t, result)
	// 故障时给出可区分的降级回答，而不是编造内容
	assert.Equal(t, UnavailableAnswer, result.Answer)
}

func TestPipeline_Query_EmptyQuestion(t *testing.T) {
	p := newTestPipeline(t, &fakeEmbedder{dim: 4}, &fakeGenerator{}, PipelineConfig{})

	_, err := p.Query(context.Background(), "  ", 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
}
