// Package errs 定义了业务错误分类，并负责把分类映射为 HTTP 状态码。
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 是错误的分类。
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation 输入不合法：空查询、不支持的文件类型、没有解析出问答对等。
	KindValidation
	// KindConfiguration 参数配置错误，例如分块 overlap >= max_len。
	KindConfiguration
	// KindExternalService 外部服务失败：缺少密钥、LLM 非 200、响应格式异常。
	KindExternalService
	// KindIO 文件不可读或无法解析。
	KindIO
	// KindNotFound 目标记录不存在。
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindExternalService:
		return "external_service"
	case KindIO:
		return "io"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error 是带分类的业务错误。
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, &Error{Kind: k}) 按分类匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// 用于 errors.Is 的分类哨兵。
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrExternalService = &Error{Kind: KindExternalService}
	ErrIO              = &Error{Kind: KindIO}
	ErrNotFound        = &Error{Kind: KindNotFound}
)

func newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

func Configuration(format string, args ...interface{}) error {
	return newf(KindConfiguration, format, args...)
}

func ExternalService(format string, args ...interface{}) error {
	return newf(KindExternalService, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

// Wrap 为底层错误附加分类与描述。
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf 返回错误链上第一个业务错误的分类。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus 把错误分类映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConfiguration, KindIO:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
