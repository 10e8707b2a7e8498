package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structstream/structured"
)

type ab struct {
	A int `json:"a"`
	B int `json:"b"`
}

var _ Model[ab] = (*structured.ResponseModel[ab])(nil)

func abModel(t *testing.T, opts ...structured.ModelOption[ab]) *structured.ResponseModel[ab] {
	t.Helper()
	m, err := structured.NewResponseModel[ab](opts...)
	require.NoError(t, err)
	return m
}

func anyModel(t *testing.T, opts ...structured.ModelOption[map[string]any]) *structured.ResponseModel[map[string]any] {
	t.Helper()
	m, err := structured.NewResponseModel[map[string]any](opts...)
	require.NoError(t, err)
	return m
}

// drain 拉取全部快照，返回快照列表与终态错误（成功时为 nil）。
func drain[T any](ctx context.Context, s *Stream[T]) ([]AggregationState[T], error) {
	var out []AggregationState[T]
	for {
		st, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, st)
	}
}

func latest[T any](t *testing.T, s AggregationState[T]) T {
	t.Helper()
	v, ok := s.Latest()
	require.True(t, ok)
	return v
}
