// ScriptedSource / MockFactory 的片段源测试模拟实现。
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/BaSui01/structstream/llm"
)

// SourceStep 是脚本中的一步：返回一个片段，或返回一个错误。
type SourceStep struct {
	Fragment llm.Fragment
	Err      error
}

// Steps 把片段转换为脚本步骤
func Steps(frags ...llm.Fragment) []SourceStep {
	out := make([]SourceStep, len(frags))
	for i, f := range frags {
		out[i] = SourceStep{Fragment: f}
	}
	return out
}

// Fail 返回一个错误步骤
func Fail(err error) SourceStep {
	return SourceStep{Err: err}
}

// --- ScriptedSource ---

// ScriptedSource 按脚本返回片段或错误，记录 Close 调用
type ScriptedSource struct {
	mu     sync.Mutex
	steps  []SourceStep
	pos    int
	closed int
}

// NewScriptedSource 创建脚本化片段源
func NewScriptedSource(steps ...SourceStep) *ScriptedSource {
	return &ScriptedSource{steps: steps}
}

// Next 实现 llm.FragmentSource
func (s *ScriptedSource) Next(ctx context.Context) (llm.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return llm.Fragment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.steps) {
		return llm.Fragment{}, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	if step.Err != nil {
		return llm.Fragment{}, step.Err
	}
	return step.Fragment, nil
}

// Close 实现 io.Closer
func (s *ScriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Closed 返回 Close 被调用的次数
func (s *ScriptedSource) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Consumed 返回已读取的步骤数
func (s *ScriptedSource) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// --- BlockingSource ---

// BlockingSource 在上下文取消前一直阻塞
type BlockingSource struct{}

// Next 实现 llm.FragmentSource
func (BlockingSource) Next(ctx context.Context) (llm.Fragment, error) {
	<-ctx.Done()
	return llm.Fragment{}, ctx.Err()
}

// --- MockFactory ---

// MockFactory 按 attempt 编排片段源；attempt 超出脚本数时复用最后一个脚本
type MockFactory struct {
	mu          sync.Mutex
	scripts     [][]SourceStep
	acquireErrs map[int]error
	sources     []*ScriptedSource
	attempts    []int
}

// NewMockFactory 创建 MockFactory
func NewMockFactory() *MockFactory {
	return &MockFactory{acquireErrs: make(map[int]error)}
}

// WithAttempt 追加一次 attempt 的脚本
func (f *MockFactory) WithAttempt(steps ...SourceStep) *MockFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, steps)
	return f
}

// WithAcquireError 让第 attempt 次获取片段源失败
func (f *MockFactory) WithAcquireError(attempt int, err error) *MockFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireErrs[attempt] = err
	return f
}

// Factory 返回 llm.SourceFactory
func (f *MockFactory) Factory() llm.SourceFactory {
	return func(ctx context.Context, attempt int) (llm.FragmentSource, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.attempts = append(f.attempts, attempt)
		if err := f.acquireErrs[attempt]; err != nil {
			return nil, err
		}
		var steps []SourceStep
		if len(f.scripts) > 0 {
			steps = f.scripts[min(attempt, len(f.scripts))-1]
		}
		src := NewScriptedSource(steps...)
		f.sources = append(f.sources, src)
		return src, nil
	}
}

// Attempts 返回每次调用工厂时传入的 attempt 序号
func (f *MockFactory) Attempts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.attempts...)
}

// Sources 返回已创建的片段源
func (f *MockFactory) Sources() []*ScriptedSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ScriptedSource(nil), f.sources...)
}
