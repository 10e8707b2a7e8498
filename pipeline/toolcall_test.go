package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structstream/types"
)

func TestToolCallBuffer_FinalizeOnce(t *testing.T) {
	b := newToolCallBuffer("call_1", "calc")
	require.NoError(t, b.Append(`{"x":`))
	require.NoError(t, b.Append(`1}`))

	args, err := b.Args()
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, args)

	res, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, ToolCallFinalized, b.State())
	assert.Equal(t, "call_1", res.ID)
	assert.Equal(t, "calc", res.Name)
	assert.True(t, res.Parsed)
	assert.JSONEq(t, `{"x":1}`, string(res.Arguments))

	_, err = b.Finalize()
	assert.True(t, types.IsErrorCode(err, types.ErrToolCallFinalized))
	_, err = b.Args()
	assert.True(t, types.IsErrorCode(err, types.ErrToolCallFinalized))
	assert.True(t, types.IsErrorCode(b.Append("x"), types.ErrToolCallFinalized))
}

func TestToolCallBuffer_BestEffortArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		wantParsed bool
		wantArgs   string
	}{
		{"complete", `{"q":"x"}`, true, `{"q":"x"}`},
		{"padded", "  {\"q\":\"x\"}\n", true, `{"q":"x"}`},
		{"truncated", `{"q":"x`, false, `{"q":"x"}`},
		{"empty", ``, false, ``},
		{"garbage", `not json`, false, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newToolCallBuffer("", "lookup")
			require.NoError(t, b.Append(tt.args))
			res, err := b.Finalize()
			require.NoError(t, err)
			assert.Equal(t, tt.wantParsed, res.Parsed)
			assert.Equal(t, tt.args, res.Raw)
			assert.Equal(t, tt.wantArgs, string(res.Arguments))
		})
	}
}

func TestToolCallBuffer_AdoptID(t *testing.T) {
	b := newToolCallBuffer("", "calc")
	b.adoptID("call_9")
	b.adoptID("call_10")
	assert.Equal(t, "call_9", b.ID())
	assert.Equal(t, "building", b.State().String())
}
