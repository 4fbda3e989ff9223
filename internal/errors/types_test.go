package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_HTTPMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     ErrorCode
		httpCode int
	}{
		{"配置错误", NewConfigurationError("bad overlap"), ErrCodeConfiguration, http.StatusBadRequest},
		{"维度不匹配", NewDimensionMismatchError(384, 512), ErrCodeDimensionMismatch, http.StatusUnprocessableEntity},
		{"数量不匹配", NewLengthMismatchError(3, 2), ErrCodeLengthMismatch, http.StatusUnprocessableEntity},
		{"空文档", NewEmptyDocumentError("a.txt"), ErrCodeEmptyDocument, http.StatusUnprocessableEntity},
		{"持久化失败", NewPersistenceError("write failed", nil), ErrCodePersistence, http.StatusInternalServerError},
		{"存储损坏", NewCorruptStoreError("count mismatch"), ErrCodeCorruptStore, http.StatusInternalServerError},
		{"外部服务故障", NewProviderError("timeout", nil), ErrCodeProvider, http.StatusServiceUnavailable},
		{"文件过大", NewFileTooLargeError(1024), ErrCodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{"格式不支持", NewInvalidFileFormatError("a.zip"), ErrCodeInvalidFileFormat, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpCode, tt.err.HTTPCode)
		})
	}
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	base := NewPersistenceError("disk full", errors.New("ENOSPC"))
	wrapped := fmt.Errorf("add failed: %w", base)

	assert.True(t, IsCode(wrapped, ErrCodePersistence))
	assert.False(t, IsCode(wrapped, ErrCodeCorruptStore))
	assert.False(t, IsCode(errors.New("plain"), ErrCodePersistence))
}

func TestAppError_CauseChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError("embedding request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetAppError(t *testing.T) {
	appErr := NewValidationError("question required")
	assert.Same(t, appErr, GetAppError(appErr))

	plain := errors.New("boom")
	converted := GetAppError(plain)
	require.NotNil(t, converted)
	assert.Equal(t, ErrCodeInternalServer, converted.Code)
	assert.ErrorIs(t, converted, plain)
}
