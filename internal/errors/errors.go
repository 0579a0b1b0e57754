// Package errors 提供带错误码的统一错误类型，错误码决定日志级别与告警内容。
package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
)

// Code 表示系统内的统一错误码。
type Code string

// Severity 描述错误的严重程度。
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes 为错误码提供默认文案与严重程度。
type Attributes struct {
	Message  string
	Severity Severity
}

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeConfigMissing   Code = "CONFIG_MISSING"

	// 动作参数与执行
	CodeZeroAmount        Code = "ZERO_AMOUNT"
	CodeRecipientNotFound Code = "RECIPIENT_NOT_FOUND"
	CodeChainFailure      Code = "CHAIN_FAILURE"
	CodeTxReverted        Code = "TX_REVERTED"
	CodeTimeout           Code = "TIMEOUT"

	// 运行级别
	CodeNoWallets             Code = "NO_WALLETS"
	CodeRetriesExhausted      Code = "RETRIES_EXHAUSTED"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {"unknown error", SeverityCritical},
		CodeInvalidArgument:       {"invalid argument", SeverityInfo},
		CodeConfigMissing:         {"required configuration entry missing", SeverityWarning},
		CodeZeroAmount:            {"calculated amount is 0", SeverityInfo},
		CodeRecipientNotFound:     {"failed to find a valid recipient", SeverityInfo},
		CodeChainFailure:          {"chain request failed", SeverityWarning},
		CodeTxReverted:            {"transaction reverted", SeverityWarning},
		CodeTimeout:               {"operation timed out", SeverityWarning},
		CodeNoWallets:             {"no wallets loaded", SeverityCritical},
		CodeRetriesExhausted:      {"retries exhausted", SeverityWarning},
		CodeInitializationFailure: {"service not initialized", SeverityCritical},
		CodeStorageFailure:        {"storage failure", SeverityWarning},
	}
)

// Register 注册或覆盖一个错误码的默认属性。
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	registry[code] = attr
	registryMu.Unlock()
}

// AttributesOf 返回错误码的属性，未注册时退回 UNKNOWN。
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error 是带错误码的错误，可选携带原因与元数据。
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
	severity Severity
}

// Option 修改新建的 Error。
type Option func(*Error)

// WithMetadata 附加一对键值，会出现在日志与告警中。
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = map[string]string{}
		}
		e.metadata[key] = value
	}
}

// WithSeverity 覆盖错误码的默认严重程度。
func WithSeverity(sev Severity) Option {
	return func(e *Error) { e.severity = sev }
}

// New 创建错误，message 为空时使用错误码的默认文案。
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Newf 按格式化文案创建错误。
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 以 code 包裹 cause，errors.Is/As 仍可穿透到 cause。
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("[%s] %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is 按错误码匹配，HasCode 依赖此行为。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// Code 返回错误码。
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message 返回不含原因的文案。
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata 返回元数据副本，没有时返回 nil。
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	return maps.Clone(e.metadata)
}

// Severity 返回覆盖值或错误码默认值。
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != "" {
		return e.severity
	}
	return AttributesOf(e.code).Severity
}

// LogValue 让 slog.Any("error", err) 输出错误码、严重程度与元数据。
func (e *Error) LogValue() slog.Value {
	if e == nil {
		return slog.StringValue("")
	}
	attrs := []slog.Attr{
		slog.String("code", string(e.code)),
		slog.String("severity", string(e.Severity())),
		slog.String("message", e.Error()),
	}
	for k, v := range e.metadata {
		attrs = append(attrs, slog.String(k, v))
	}
	return slog.GroupValue(attrs...)
}

// From 在错误链中查找最外层的 *Error。
func From(err error) (*Error, bool) {
	var target *Error
	if err != nil && stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf 返回最外层错误码，非统一错误返回 UNKNOWN。
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// HasCode 判断错误链上任意一层是否为 code。
func HasCode(err error, code Code) bool {
	return stdErrors.Is(err, &Error{code: code})
}

// SeverityOf 返回最外层统一错误的严重程度。
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}
