package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/structstream/types"
)

// RetryPolicy 定义 attempt 级重试策略。
// 流水线不持有计时器，因此没有退避延迟；需要延迟时由 OnRetry 或片段源自行处理。
type RetryPolicy struct {
	MaxAttempts     int                          // 最大 attempt 数（包含首次），至少为 1
	RetryableErrors []error                      // 可重试的错误（为空则重试所有错误）
	RetryOn         func(err error) bool         // 自定义判定，优先于 RetryableErrors
	OnRetry         func(attempt int, err error) // 开始第 attempt 次尝试前回调
}

// DefaultRetryPolicy 返回默认的重试策略
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 3}
}

// shouldRetry 判断第 attempt 次失败后是否继续。上下文取消永不重试。
func (p *RetryPolicy) shouldRetry(attempt int, err error) bool {
	if err == nil || isContextError(err) {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	if p.RetryOn != nil {
		return p.RetryOn(err)
	}
	if len(p.RetryableErrors) == 0 {
		return true
	}
	for _, target := range p.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// AttemptError 记录某次 attempt 的失败。
type AttemptError struct {
	Attempt int
	Err     error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

func (e AttemptError) Unwrap() error { return e.Err }

// AttemptsExhaustedError 是终态失败，按顺序携带每次 attempt 的错误。
type AttemptsExhaustedError struct {
	Attempts int
	Errors   []AttemptError
}

func (e *AttemptsExhaustedError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		msgs = append(msgs, ae.Error())
	}
	return fmt.Sprintf("structured output failed after %d attempts: %s", e.Attempts, strings.Join(msgs, "; "))
}

// Unwrap 先返回 MAX_ATTEMPTS 错误，再返回每次 attempt 的错误，
// 因此 types.GetErrorCode 得到 ErrMaxAttempts，errors.As 仍能取到具体失败。
func (e *AttemptsExhaustedError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors)+1)
	out = append(out, types.NewError(types.ErrMaxAttempts, fmt.Sprintf("%d attempts failed", e.Attempts)))
	for _, ae := range e.Errors {
		out = append(out, ae)
	}
	return out
}
