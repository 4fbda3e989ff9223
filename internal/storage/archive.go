package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/aihub/rag-go/internal/config"
	"github.com/aihub/rag-go/internal/logger"
)

// DocumentArchive 原始文档归档：把上传的原文件存一份到对象存储
// 可选能力，归档失败只记日志，绝不让摄取请求失败
type DocumentArchive struct {
	client *minio.Client
	bucket string
}

// NewDocumentArchive 创建归档服务，未启用时返回nil
func NewDocumentArchive(cfg config.ArchiveConfig) (*DocumentArchive, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive endpoint not configured")
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			errStr := err.Error()
			if !strings.Contains(errStr, "BucketAlreadyExists") &&
				!strings.Contains(errStr, "BucketAlreadyOwnedByYou") {
				return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
			}
		}
	}

	return &DocumentArchive{client: client, bucket: cfg.Bucket}, nil
}

// Store 归档一份原始文件，对象名加时间戳前缀避免同名覆盖
func (a *DocumentArchive) Store(ctx context.Context, filename string, data []byte) {
	if a == nil || a.client == nil {
		return
	}

	objectName := fmt.Sprintf("%s/%s", time.Now().UTC().Format("2006-01-02"), filename)
	_, err := a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		logger.Warn("failed to archive raw document",
			zap.String("object", objectName),
			zap.Error(err))
		return
	}
	logger.Debug("raw document archived", zap.String("object", objectName))
}
