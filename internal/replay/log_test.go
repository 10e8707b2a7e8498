package replay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/structstream/config"
	"github.com/BaSui01/structstream/events"
)

// =============================================================================
// 🧪 Log 测试
// =============================================================================

func setupTestLog(t *testing.T, mutate func(*config.RedisConfig)) (*miniredis.Miniredis, *Log) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.DefaultRedisConfig()
	cfg.Enabled = true
	cfg.Addr = mr.Addr()
	cfg.TTL = time.Minute
	if mutate != nil {
		mutate(&cfg)
	}

	l, err := NewLog(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return mr, l
}

func envelope(req string, attempt int) events.Envelope {
	return events.Envelope{RequestID: req, Attempt: attempt, At: time.Unix(1700000000, 0).UTC()}
}

func TestNewLog_ConnectFailure(t *testing.T) {
	cfg := config.DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	_, err := NewLog(cfg, nil)
	assert.Error(t, err)
}

func TestLog_AppendAndLoad(t *testing.T) {
	mr, l := setupTestLog(t, nil)
	ctx := context.Background()

	l.Dispatch(ctx, events.AttemptStarted{Envelope: envelope("req-1", 1), MaxAttempts: 3})
	l.Dispatch(ctx, events.PartialJSONReceived{Envelope: envelope("req-1", 1), JSON: `{"a":1}`})
	l.Dispatch(ctx, events.ResponseFinalized{Envelope: envelope("req-1", 1), Value: map[string]any{"a": 1}})
	l.Dispatch(ctx, events.AttemptStarted{Envelope: envelope("req-2", 1)})

	records, err := l.Load(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, events.TypeAttemptStarted, records[0].Type)
	assert.Equal(t, events.TypePartialJSONReceived, records[1].Type)
	assert.Equal(t, events.TypeResponseFinalized, records[2].Type)
	assert.Equal(t, "req-1", records[1].RequestID)
	var finalized struct {
		Value map[string]any `json:"value"`
	}
	require.NoError(t, json.Unmarshal(records[2].Data, &finalized))
	assert.Equal(t, map[string]any{"a": 1.0}, finalized.Value)

	key := l.Key("req-1")
	assert.Equal(t, "structstream:events:req-1", key)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	other, err := l.Load(ctx, "req-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestLog_LoadMissing(t *testing.T) {
	_, l := setupTestLog(t, nil)

	records, err := l.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLog_LoadCorrupt(t *testing.T) {
	mr, l := setupTestLog(t, nil)
	_, err := mr.Push(l.Key("bad"), "not json")
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "bad")
	assert.Error(t, err)
}

func TestLog_NoTTL(t *testing.T) {
	mr, l := setupTestLog(t, func(c *config.RedisConfig) { c.TTL = 0 })

	require.NoError(t, l.Append(context.Background(), events.ChunkReceived{Envelope: envelope("r", 1)}))
	assert.Equal(t, time.Duration(0), mr.TTL(l.Key("r")))
}

func TestLog_Delete(t *testing.T) {
	mr, l := setupTestLog(t, nil)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, events.ChunkReceived{Envelope: envelope("r", 1)}))
	require.NoError(t, l.Delete(ctx, "r"))
	assert.False(t, mr.Exists(l.Key("r")))
}

func TestLog_Follow(t *testing.T) {
	mr, l := setupTestLog(t, func(c *config.RedisConfig) { c.Channel = "structstream" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.Record, 4)
	done := make(chan error, 1)
	go func() {
		done <- l.Follow(ctx, func(r events.Record) { got <- r })
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("structstream")["structstream"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	l.Dispatch(context.Background(), events.StreamFinished{Envelope: envelope("live", 2), FinishReason: "stop"})

	select {
	case r := <-got:
		assert.Equal(t, events.TypeStreamFinished, r.Type)
		assert.Equal(t, "live", r.RequestID)
		assert.Equal(t, 2, r.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered to follower")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestLog_FollowWithoutChannel(t *testing.T) {
	_, l := setupTestLog(t, nil)
	assert.Error(t, l.Follow(context.Background(), func(events.Record) {}))
}

func TestLog_Closed(t *testing.T) {
	_, l := setupTestLog(t, nil)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	ctx := context.Background()
	assert.ErrorIs(t, l.Append(ctx, events.ChunkReceived{}), ErrClosed)
	_, err := l.Load(ctx, "r")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.Delete(ctx, "r"), ErrClosed)
	// Dispatch 在关闭后静默丢弃
	assert.NotPanics(t, func() { l.Dispatch(ctx, events.ChunkReceived{}) })
}
