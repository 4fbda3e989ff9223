package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"

	// 检索/索引错误
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeLengthMismatch    ErrorCode = "LENGTH_MISMATCH"
	ErrCodeEmptyDocument     ErrorCode = "EMPTY_DOCUMENT"
	ErrCodePersistence       ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeCorruptStore      ErrorCode = "CORRUPT_STORE"

	// 外部服务错误
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
	ErrCodeTimeout  ErrorCode = "TIMEOUT"

	// 文件处理错误
	ErrCodeFileTooLarge      ErrorCode = "FILE_TOO_LARGE"
	ErrCodeInvalidFileFormat ErrorCode = "INVALID_FILE_FORMAT"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// 错误构造函数

// NewConfigurationError 创建配置错误（调用方错误，不重试）
func NewConfigurationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeConfiguration,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewDimensionMismatchError 创建向量维度不匹配错误
func NewDimensionMismatchError(expected, got int) *AppError {
	return &AppError{
		Code:     ErrCodeDimensionMismatch,
		Message:  fmt.Sprintf("vector dimension mismatch: store expects %d, got %d", expected, got),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusUnprocessableEntity,
	}
}

// NewLengthMismatchError 创建向量与元数据数量不一致错误
func NewLengthMismatchError(vectors, metadatas int) *AppError {
	return &AppError{
		Code:     ErrCodeLengthMismatch,
		Message:  fmt.Sprintf("vectors/metadata length mismatch: %d vectors, %d metadata records", vectors, metadatas),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusUnprocessableEntity,
	}
}

// NewEmptyDocumentError 创建空文档错误
func NewEmptyDocumentError(source string) *AppError {
	return &AppError{
		Code:     ErrCodeEmptyDocument,
		Message:  fmt.Sprintf("document %q produced no indexable content", source),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusUnprocessableEntity,
	}
}

// NewPersistenceError 创建持久化错误
func NewPersistenceError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodePersistence,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
		Cause:    cause,
	}
}

// NewCorruptStoreError 创建存储损坏错误（加载时致命）
func NewCorruptStoreError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeCorruptStore,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewProviderError 创建外部模型服务错误（可有限重试）
func NewProviderError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeProvider,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusServiceUnavailable,
		Cause:    cause,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidFileFormatError 创建文件格式错误
func NewInvalidFileFormatError(filename string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidFileFormat,
		Message:  fmt.Sprintf("unsupported file format: %s", filename),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewFileTooLargeError 创建文件过大错误
func NewFileTooLargeError(limit int64) *AppError {
	return &AppError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("file exceeds upload limit of %d bytes", limit),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusRequestEntityTooLarge,
	}
}

// NewSystemError 创建系统错误
func NewSystemError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeInternalServer,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// IsCode 检查错误是否携带指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewSystemError("Internal server error").WithCause(err)
}
