package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误分类，用 errors.Is 判断
var (
	// ErrTransport 网络错误、超时或服务端异常
	ErrTransport = errors.New("provider transport error")

	// ErrParse 响应结构不符合预期
	ErrParse = errors.New("provider response malformed")

	// ErrAuth 令牌缺失、过期或无效
	ErrAuth = errors.New("provider rejected credentials")

	// ErrNotFound 目标邮件已不存在
	ErrNotFound = errors.New("provider resource not found")

	// ErrUnsupported 提供方不支持该操作
	ErrUnsupported = errors.New("operation not supported by provider")
)

// Error 记录一次失败的提供方调用。
type Error struct {
	Op         string // 操作名，如 "list_messages"
	Kind       error  // 上面的分类之一
	StatusCode int    // HTTP 状态码，无响应时为 0
	Err        error  // 底层错误，可能为 nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap 同时暴露分类和底层错误
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError 构造一个分类错误
func NewError(op string, kind error, statusCode int, err error) *Error {
	return &Error{Op: op, Kind: kind, StatusCode: statusCode, Err: err}
}

// KindOf 返回错误分类的简短名称，用于日志和指标标签
func KindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "transport"
	}
}

// classifyStatus 将非 2xx 状态码映射为错误分类
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrTransport
	}
}
