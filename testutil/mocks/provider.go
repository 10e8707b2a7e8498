// MockProvider 的流式 Provider 测试模拟实现。
//
// 支持按调用次数编排流式块与错误注入场景。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/structstream/llm"
)

// --- MockProvider 结构 ---

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	name string

	// 每次调用 Stream 使用的块序列；调用次数超出时复用最后一组
	scripts   [][]llm.StreamChunk
	streamErr map[int]error

	// 调用记录
	calls []*llm.ChatRequest
}

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock", streamErr: make(map[int]error)}
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithStreamChunks 追加一次调用的流式块
func (m *MockProvider) WithStreamChunks(chunks ...llm.StreamChunk) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, chunks)
	return m
}

// WithStreamError 让第 call 次（从 1 开始）调用 Stream 直接返回错误
func (m *MockProvider) WithStreamError(call int, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErr[call] = err
	return m
}

// --- llm.Provider 实现 ---

// Name 实现 llm.Provider
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Stream 实现 llm.Provider
func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	call := len(m.calls)
	err := m.streamErr[call]
	var chunks []llm.StreamChunk
	if len(m.scripts) > 0 {
		idx := min(call, len(m.scripts)) - 1
		chunks = m.scripts[idx]
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

// --- 调用记录 ---

// CallCount 返回 Stream 调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 返回最后一次请求
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}
