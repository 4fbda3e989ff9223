package bootstrap

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aihub/rag-go/internal/config"
	"github.com/aihub/rag-go/internal/knowledge"
	"github.com/aihub/rag-go/internal/logger"
	"github.com/aihub/rag-go/internal/storage"
)

// App encapsulates the shared collaborators built once at startup.
// 向量库在这里打开一次并注入管线，进程内任何地方都不再新建store
type App struct {
	pipeline *knowledge.Pipeline
	parser   *knowledge.FileParserManager
	archive  *storage.DocumentArchive

	cleanupTasks []func() error
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// Pipeline 返回检索管线
func (a *App) Pipeline() *knowledge.Pipeline {
	return a.pipeline
}

// Parser 返回文件解析器管理器
func (a *App) Parser() *knowledge.FileParserManager {
	return a.parser
}

// Archive 返回原始文档归档服务（可能为nil）
func (a *App) Archive() *storage.DocumentArchive {
	return a.archive
}

// Init bootstraps configuration, logger, the vector store and the
// retrieval pipeline shared by all request handlers.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	app := &App{}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		logger.Sync()
		return nil
	})

	chunker, err := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunking configuration: %w", err)
	}

	embedder := knowledge.NewOpenAIEmbedder(
		cfg.AI.OpenAIAPIKey,
		cfg.AI.BaseURL,
		cfg.AI.EmbeddingModel,
		cfg.Knowledge.VectorDimension,
		time.Duration(cfg.AI.RequestTimeout)*time.Second,
	)
	if !embedder.Ready() {
		logger.Warn("embedding provider not configured, ingestion and query will fail")
	}

	generator := knowledge.NewOpenAIGenerator(
		cfg.AI.OpenAIAPIKey,
		cfg.AI.BaseURL,
		cfg.AI.ChatModel,
		cfg.AI.MaxTokens,
		cfg.AI.Temperature,
		time.Duration(cfg.AI.RequestTimeout)*time.Second,
	)

	// 打开向量库：文件残缺或条数不一致时在这里直接失败，绝不带病服务
	dimension := cfg.Knowledge.VectorDimension
	if embedder.Ready() && embedder.Dimensions() > 0 {
		dimension = embedder.Dimensions()
	}
	store, err := knowledge.OpenFlatStore(cfg.Knowledge.StorePath, dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	logger.Info("vector store opened",
		zap.String("path", cfg.Knowledge.StorePath),
		zap.Int("dimension", dimension),
		zap.Int("size", store.Len()))

	// 查询向量缓存（可选）
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Host + ":" + cfg.Redis.Port,
			DB:   cfg.Redis.DB,
		})
		app.cleanupTasks = append(app.cleanupTasks, redisClient.Close)
		logger.Info("query embedding cache enabled",
			zap.String("addr", cfg.Redis.Host+":"+cfg.Redis.Port))
	}
	cache := knowledge.NewEmbedCache(redisClient, time.Duration(cfg.Redis.TTL)*time.Second)

	// 原始文档归档（可选）
	archive, err := storage.NewDocumentArchive(cfg.Archive)
	if err != nil {
		logger.Warn("document archive unavailable, continuing without it", zap.Error(err))
	}
	app.archive = archive

	app.parser = knowledge.NewFileParserManager()
	app.pipeline = knowledge.NewPipeline(chunker, embedder, generator, store, cache, knowledge.PipelineConfig{
		TopK:               cfg.Knowledge.TopK,
		RelevanceThreshold: cfg.Knowledge.RelevanceThreshold,
		MaxContextChars:    cfg.Knowledge.MaxContextChars,
		MaxRetries:         cfg.AI.MaxRetries,
	})

	globalApp = app
	return app, nil
}

// Shutdown runs cleanup tasks in reverse registration order.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Error("cleanup task failed", zap.Error(err))
		}
	}
}
