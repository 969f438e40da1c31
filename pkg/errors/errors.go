package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error 业务错误
type Error struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"-"`
	GRPCCode   codes.Code        `json:"-"`
	Cause      error             `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码比较
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 添加单个详情
func (e *Error) WithDetail(key, value string) *Error {
	newErr := e.Copy()
	if newErr.Details == nil {
		newErr.Details = make(map[string]string, 1)
	}
	newErr.Details[key] = value
	return newErr
}

// WithMessagef 格式化替换错误消息
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	newErr := e.Copy()
	newErr.Message = fmt.Sprintf(format, args...)
	return newErr
}

// Copy 复制错误
func (e *Error) Copy() *Error {
	newErr := &Error{
		Code:       e.Code,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
		GRPCCode:   e.GRPCCode,
		Cause:      e.Cause,
	}
	if e.Details != nil {
		newErr.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			newErr.Details[k] = v
		}
	}
	return newErr
}

// NewWithStatus 创建带状态码的错误
func NewWithStatus(code, message string, httpStatus int, grpcCode codes.Code) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		GRPCCode:   grpcCode,
	}
}

func validation(code, message string) *Error {
	return NewWithStatus(code, message, http.StatusBadRequest, codes.InvalidArgument)
}

// Wrap 包装底层错误
func Wrap(err *Error, cause error) *Error {
	newErr := err.Copy()
	newErr.Cause = cause
	return newErr
}

// 通用错误码
var (
	ErrInternal = NewWithStatus("INTERNAL_ERROR", "internal error", http.StatusInternalServerError, codes.Internal)
	ErrNotFound = NewWithStatus("NOT_FOUND", "resource not found", http.StatusNotFound, codes.NotFound)
	ErrConflict = NewWithStatus("CONFLICT", "resource conflict", http.StatusConflict, codes.AlreadyExists)
)

// 规则激活相关错误码
var (
	ErrRuleNotFound    = NewWithStatus("RULE_NOT_FOUND", "rule not found", http.StatusNotFound, codes.NotFound)
	ErrProfileNotFound = NewWithStatus("PROFILE_NOT_FOUND", "quality profile not found", http.StatusNotFound, codes.NotFound)

	ErrRuleRemoved      = validation("RULE_REMOVED", "rule was removed")
	ErrRuleTemplate     = validation("RULE_TEMPLATE", "rule template can't be activated on a quality profile")
	ErrLanguageMismatch = validation("LANGUAGE_MISMATCH", "language mismatch")
	ErrBuiltInReadOnly  = validation("BUILT_IN_READ_ONLY", "built-in quality profile is read-only")
	ErrInheritedRule    = validation("INHERITED_RULE", "cannot deactivate inherited rule")
	ErrInvalidParam     = validation("INVALID_PARAM", "invalid parameter value")
	ErrInvalidSeverity  = validation("INVALID_SEVERITY", "invalid severity")
	ErrInvalidParent    = validation("INVALID_PARENT", "invalid parent profile")
	ErrInvalidBuiltIn   = validation("INVALID_BUILT_IN", "invalid built-in profile definition")
	ErrInvalidProfile   = validation("INVALID_PROFILE", "invalid quality profile")
	ErrProfileExists    = NewWithStatus("PROFILE_EXISTS", "quality profile already exists", http.StatusConflict, codes.AlreadyExists)
)

// ToGRPCError 转换为 gRPC 错误
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	var bizErr *Error
	if errors.As(err, &bizErr) {
		return status.Error(bizErr.GRPCCode, bizErr.Message)
	}
	return status.Error(codes.Internal, err.Error())
}

// ToHTTPStatus 获取 HTTP 状态码
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var bizErr *Error
	if errors.As(err, &bizErr) && bizErr.HTTPStatus != 0 {
		return bizErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Is 判断错误类型
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	return errors.Is(err, target)
}

// GetCode 获取错误码
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var bizErr *Error
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}
	return "UNKNOWN"
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	var bizErr *Error
	if !errors.As(err, &bizErr) {
		return false
	}
	return bizErr.GRPCCode == codes.NotFound
}

// IsValidation 判断是否为参数校验错误
func IsValidation(err error) bool {
	var bizErr *Error
	if !errors.As(err, &bizErr) {
		return false
	}
	return bizErr.GRPCCode == codes.InvalidArgument
}

// IsConflict 判断是否为资源冲突错误
func IsConflict(err error) bool {
	var bizErr *Error
	if !errors.As(err, &bizErr) {
		return false
	}
	return bizErr.GRPCCode == codes.AlreadyExists
}

// IsBusiness 业务错误计入批量失败数, 其余错误中止批处理
func IsBusiness(err error) bool {
	return IsValidation(err) || IsNotFound(err) || IsConflict(err)
}
