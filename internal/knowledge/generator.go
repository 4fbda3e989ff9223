package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/aihub/rag-go/internal/errors"
)

// Generator 文本生成器：基于检索到的上下文回答问题
type Generator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
	Ready() bool
}

const answerPrompt = `You are a document assistant.
You MUST answer only using the context below.
If the answer is not in the context, say: "No information found."

CONTEXT:
%s

QUESTION:
%s`

// OpenAIGenerator 使用OpenAI Chat API生成回答
// 客户端进程内惰性初始化一次：生成模型昂贵，绝不能被并发首调用方重复初始化
type OpenAIGenerator struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration

	mu     sync.Mutex
	client *openai.Client
}

// NewOpenAIGenerator 创建生成器，客户端延迟到首次Generate时构造
func NewOpenAIGenerator(apiKey, baseURL, model string, maxTokens int, temperature float64, timeout time.Duration) *OpenAIGenerator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIGenerator{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}
}

// getClient 双重检查的惰性初始化
func (g *OpenAIGenerator) getClient() (*openai.Client, error) {
	if c := g.loadClient(); c != nil {
		return c, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, apperrors.NewProviderError("generation provider not configured", nil)
	}
	cfg := openai.DefaultConfig(g.apiKey)
	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
	}
	g.client = openai.NewClientWithConfig(cfg)
	return g.client, nil
}

func (g *OpenAIGenerator) loadClient() *openai.Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client
}

// Generate 把上下文与问题交给模型，返回最终回答文本
func (g *OpenAIGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	client, err := g.getClient()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(answerPrompt, strings.TrimSpace(contextText), question)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: float32(g.temperature),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", apperrors.NewProviderError("generation request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewProviderError("generation response empty", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) Ready() bool {
	return g.apiKey != ""
}
