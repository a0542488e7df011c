package decision

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrKind 与选币服务返回的 code 字段一一对应，也是流水线错误分类。
type ErrKind string

const (
	KindTimeout        ErrKind = "timeout"
	KindHTTP           ErrKind = "http"
	KindInvalidJSON    ErrKind = "invalid_json"
	KindSchema         ErrKind = "schema"
	KindPostValidation ErrKind = "post_validation"
	KindUnknown        ErrKind = "unknown"
)

// CallError 携带一次边界调用失败的完整上下文（阶段、分类、耗时），
// 供操作员决定是否手动重跑。
type CallError struct {
	Stage   string
	Kind    ErrKind
	Status  int
	Latency time.Duration
	Err     error
}

func (e *CallError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf 提取错误分类；非 CallError 的超时归为 timeout，其余 unknown。
func KindOf(err error) ErrKind {
	if err == nil {
		return ""
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindUnknown
}
