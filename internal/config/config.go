package config

import (
	"os"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Knowledge  KnowledgeConfig
	FileUpload FileUploadConfig
	Redis      RedisConfig
	Archive    ArchiveConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type AIConfig struct {
	OpenAIAPIKey   string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	MaxTokens      int
	Temperature    float64
	RequestTimeout int // 秒
	MaxRetries     int
}

type KnowledgeConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	TopK               int
	VectorDimension    int
	StorePath          string
	RelevanceThreshold float64 // 平方欧氏距离上限，超出视为无关
	MaxContextChars    int
}

type FileUploadConfig struct {
	MaxSize      int64
	AllowedTypes []string
}

type RedisConfig struct {
	Enabled bool
	Host    string
	Port    string
	DB      int
	TTL     int // 秒
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

var AppConfig *Config

// LoadConfig 加载配置：默认值 < 配置文件 < 环境变量
func LoadConfig() error {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")

	// AI配置默认值
	viper.SetDefault("ai.base_url", "")
	viper.SetDefault("ai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("ai.chat_model", "gpt-4o-mini")
	viper.SetDefault("ai.max_tokens", 300)
	viper.SetDefault("ai.temperature", 0.0)
	viper.SetDefault("ai.request_timeout", 30)
	viper.SetDefault("ai.max_retries", 3)

	// 检索配置默认值
	viper.SetDefault("knowledge.chunk_size", 500)
	viper.SetDefault("knowledge.chunk_overlap", 100)
	viper.SetDefault("knowledge.top_k", 5)
	viper.SetDefault("knowledge.vector_dimension", 1536)
	viper.SetDefault("knowledge.store_path", "data/vector_store")
	viper.SetDefault("knowledge.relevance_threshold", 1.2)
	viper.SetDefault("knowledge.max_context_chars", 6000)

	// 文件上传配置默认值
	viper.SetDefault("file_upload.max_size", 15728640) // 15MB
	viper.SetDefault("file_upload.allowed_types", []string{".pdf", ".docx", ".txt", ".md"})

	// 查询向量缓存（Redis）默认关闭
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", 300)

	// 原始文档归档（MinIO）默认关闭
	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.bucket", "raw-docs")
	viper.SetDefault("archive.use_ssl", false)

	viper.SetEnvPrefix("RAG")
	viper.AutomaticEnv()

	// 兼容原有环境变量命名
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		viper.Set("ai.openai_api_key", key)
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		viper.Set("ai.base_url", base)
	}
	if model := os.Getenv("EMBEDDING_MODEL_NAME"); model != "" {
		viper.Set("ai.embedding_model", model)
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		viper.Set("ai.chat_model", model)
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			viper.Set("knowledge.chunk_size", n)
		}
	}
	if v := os.Getenv("CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			viper.Set("knowledge.chunk_overlap", n)
		}
	}
	if v := os.Getenv("VECTOR_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			viper.Set("knowledge.vector_dimension", n)
		}
	}
	if path := os.Getenv("VECTOR_STORE_PATH"); path != "" {
		viper.Set("knowledge.store_path", path)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("redis.host", host)
		viper.Set("redis.enabled", true)
	}
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		viper.Set("archive.endpoint", endpoint)
		viper.Set("archive.enabled", true)
	}
	if accessKey := os.Getenv("MINIO_ACCESS_KEY"); accessKey != "" {
		viper.Set("archive.access_key", accessKey)
	}
	if secretKey := os.Getenv("MINIO_SECRET_KEY"); secretKey != "" {
		viper.Set("archive.secret_key", secretKey)
	}

	// 配置文件可选
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		AI: AIConfig{
			OpenAIAPIKey:   viper.GetString("ai.openai_api_key"),
			BaseURL:        viper.GetString("ai.base_url"),
			EmbeddingModel: viper.GetString("ai.embedding_model"),
			ChatModel:      viper.GetString("ai.chat_model"),
			MaxTokens:      viper.GetInt("ai.max_tokens"),
			Temperature:    viper.GetFloat64("ai.temperature"),
			RequestTimeout: viper.GetInt("ai.request_timeout"),
			MaxRetries:     viper.GetInt("ai.max_retries"),
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:          viper.GetInt("knowledge.chunk_size"),
			ChunkOverlap:       viper.GetInt("knowledge.chunk_overlap"),
			TopK:               viper.GetInt("knowledge.top_k"),
			VectorDimension:    viper.GetInt("knowledge.vector_dimension"),
			StorePath:          viper.GetString("knowledge.store_path"),
			RelevanceThreshold: viper.GetFloat64("knowledge.relevance_threshold"),
			MaxContextChars:    viper.GetInt("knowledge.max_context_chars"),
		},
		FileUpload: FileUploadConfig{
			MaxSize:      viper.GetInt64("file_upload.max_size"),
			AllowedTypes: viper.GetStringSlice("file_upload.allowed_types"),
		},
		Redis: RedisConfig{
			Enabled: viper.GetBool("redis.enabled"),
			Host:    viper.GetString("redis.host"),
			Port:    viper.GetString("redis.port"),
			DB:      viper.GetInt("redis.db"),
			TTL:     viper.GetInt("redis.ttl"),
		},
		Archive: ArchiveConfig{
			Enabled:   viper.GetBool("archive.enabled"),
			Endpoint:  viper.GetString("archive.endpoint"),
			AccessKey: viper.GetString("archive.access_key"),
			SecretKey: viper.GetString("archive.secret_key"),
			Bucket:    viper.GetString("archive.bucket"),
			UseSSL:    viper.GetBool("archive.use_ssl"),
		},
	}

	AppConfig = cfg
	return nil
}

// GetAppConfig 获取全局配置，未加载时返回默认配置
func GetAppConfig() *Config {
	if AppConfig == nil {
		_ = LoadConfig()
	}
	return AppConfig
}
