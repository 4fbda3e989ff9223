package controllers

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/aihub/rag-go/app/bootstrap"
	"github.com/aihub/rag-go/internal/config"
	apperrors "github.com/aihub/rag-go/internal/errors"
	"github.com/aihub/rag-go/internal/logger"
)

// IngestController 文档摄取控制器
type IngestController struct {
	BaseController
}

// Ingest 接收multipart文件，提取文本并写入索引
func (c *IngestController) Ingest() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "服务未初始化")
		return
	}

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "缺少上传文件，请使用multipart字段file")
		return
	}
	defer file.Close()

	cfg := config.GetAppConfig()
	if header.Size > cfg.FileUpload.MaxSize {
		c.JSONAppError(apperrors.NewFileTooLargeError(cfg.FileUpload.MaxSize))
		return
	}

	filename := filepath.Base(header.Filename)
	if !allowedType(filename, cfg.FileUpload.AllowedTypes) {
		c.JSONAppError(apperrors.NewInvalidFileFormatError(filename))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(file, cfg.FileUpload.MaxSize+1))
	if err != nil {
		c.JSONError(http.StatusBadRequest, "读取上传文件失败")
		return
	}
	if int64(len(raw)) > cfg.FileUpload.MaxSize {
		c.JSONAppError(apperrors.NewFileTooLargeError(cfg.FileUpload.MaxSize))
		return
	}

	ctx := c.Ctx.Request.Context()

	text, err := app.Parser().ParseFile(bytes.NewReader(raw), filename)
	if err != nil {
		logger.Warn("document parse failed", zap.String("filename", filename), zap.Error(err))
		c.JSONAppError(apperrors.NewInvalidFileFormatError(filename).WithCause(err))
		return
	}

	result, err := app.Pipeline().Ingest(ctx, text, filename)
	if err != nil {
		logger.Error("ingestion failed", zap.String("filename", filename), zap.Error(err))
		c.JSONAppError(err)
		return
	}

	// 归档在索引成功后进行，失败不影响响应
	app.Archive().Store(ctx, filename, raw)

	c.JSONSuccess(map[string]interface{}{
		"filename":       filename,
		"chunks_indexed": result.ChunksCreated,
	})
}

func allowedType(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == strings.ToLower(a) {
			return true
		}
	}
	return false
}
