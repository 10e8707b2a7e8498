package llm

import (
	"context"
	"io"

	"github.com/BaSui01/structstream/types"
)

// FragmentSource 是拉取式片段序列。源耗尽时 Next 返回 io.EOF；
// 其他错误视为传输失败。唯一的挂起点就是等待下一个片段。
type FragmentSource interface {
	Next(ctx context.Context) (Fragment, error)
}

// SourceFactory 为第 attempt 次尝试获取一个全新的片段源（从 1 开始计数）。
// 同一个源绝不会被两次 attempt 复用。
type SourceFactory func(ctx context.Context, attempt int) (FragmentSource, error)

// SliceSource 是基于内存切片的片段源，用于回放和测试。
type SliceSource struct {
	fragments []Fragment
	pos       int
}

// NewSliceSource creates a source that yields fragments in order.
func NewSliceSource(fragments ...Fragment) *SliceSource {
	return &SliceSource{fragments: fragments}
}

// Next implements FragmentSource.
func (s *SliceSource) Next(ctx context.Context) (Fragment, error) {
	if err := ctx.Err(); err != nil {
		return Fragment{}, err
	}
	if s.pos >= len(s.fragments) {
		return Fragment{}, io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

// StaticFactory returns a factory that replays the same fragments on every attempt.
func StaticFactory(fragments ...Fragment) SourceFactory {
	return func(ctx context.Context, attempt int) (FragmentSource, error) {
		return NewSliceSource(fragments...), nil
	}
}

// AttemptsFactory returns a factory that replays perAttempt[attempt-1]; attempts
// past the end reuse the last script.
func AttemptsFactory(perAttempt ...[]Fragment) SourceFactory {
	return func(ctx context.Context, attempt int) (FragmentSource, error) {
		if len(perAttempt) == 0 {
			return NewSliceSource(), nil
		}
		idx := attempt - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(perAttempt) {
			idx = len(perAttempt) - 1
		}
		return NewSliceSource(perAttempt[idx]...), nil
	}
}

// ChunkSource 把 Provider 的 StreamChunk 通道适配为 FragmentSource。
type ChunkSource struct {
	ch      <-chan StreamChunk
	cancel  context.CancelFunc
	pending []Fragment
}

// NewChunkSource wraps ch. cancel, if non-nil, is invoked by Close to abandon
// the upstream stream.
func NewChunkSource(ch <-chan StreamChunk, cancel context.CancelFunc) *ChunkSource {
	return &ChunkSource{ch: ch, cancel: cancel}
}

// Next implements FragmentSource.
func (s *ChunkSource) Next(ctx context.Context) (Fragment, error) {
	if len(s.pending) > 0 {
		f := s.pending[0]
		s.pending = s.pending[1:]
		return f, nil
	}
	select {
	case <-ctx.Done():
		return Fragment{}, ctx.Err()
	case chunk, ok := <-s.ch:
		if !ok {
			return Fragment{}, io.EOF
		}
		if chunk.Err != nil {
			return Fragment{}, types.NewTransportError(chunk.Err).WithProvider(chunk.Provider)
		}
		frags := chunk.Fragments()
		s.pending = frags[1:]
		return frags[0], nil
	}
}

// Close abandons the upstream stream.
func (s *ChunkSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
