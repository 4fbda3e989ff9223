package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aihub/rag-go/internal/logger"
)

// EmbedCache Redis查询向量缓存
// 同一问题重复提问时跳过嵌入服务调用；缓存故障一律降级为直接调用
type EmbedCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewEmbedCache 创建查询向量缓存，client为nil时缓存关闭
func NewEmbedCache(client *redis.Client, ttl time.Duration) *EmbedCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EmbedCache{
		client:  client,
		enabled: client != nil,
		ttl:     ttl,
	}
}

// Get 查询缓存的向量，未命中或缓存不可用时返回nil
func (c *EmbedCache) Get(ctx context.Context, question string) []float32 {
	if !c.enabled {
		return nil
	}

	raw, err := c.client.Get(ctx, c.key(question)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("embed cache read failed", zap.Error(err))
		}
		return nil
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		logger.Warn("embed cache entry malformed, dropping", zap.Error(err))
		c.client.Del(ctx, c.key(question))
		return nil
	}
	return vec
}

// Put 写入查询向量，失败只记日志
func (c *EmbedCache) Put(ctx context.Context, question string, vec []float32) {
	if !c.enabled || len(vec) == 0 {
		return
	}

	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(question), raw, c.ttl).Err(); err != nil {
		logger.Warn("embed cache write failed", zap.Error(err))
	}
}

// Enabled 缓存是否启用
func (c *EmbedCache) Enabled() bool {
	return c.enabled
}

func (c *EmbedCache) key(question string) string {
	sum := sha256.Sum256([]byte(question))
	return fmt.Sprintf("rag:qvec:%s", hex.EncodeToString(sum[:16]))
}
