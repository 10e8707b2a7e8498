package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/types"
)

func env(attempt int) Envelope {
	return Envelope{RequestID: "req-1", Attempt: attempt, At: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestMulti_FansOutInOrder(t *testing.T) {
	var got []string
	a := SinkFunc(func(_ context.Context, e Event) { got = append(got, "a:"+string(e.Type())) })
	b := SinkFunc(func(_ context.Context, e Event) { got = append(got, "b:"+string(e.Type())) })

	s := Multi(a, nil, b)
	s.Dispatch(context.Background(), AttemptStarted{Envelope: env(1)})

	assert.Equal(t, []string{"a:attempt_started", "b:attempt_started"}, got)
}

func TestMulti_Degenerate(t *testing.T) {
	assert.Equal(t, Nop(), Multi())
	assert.Equal(t, Nop(), Multi(nil, nil))
	r := NewRecorder()
	assert.Same(t, r, Multi(r))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Dispatch(ctx, ToolCallStarted{Envelope: env(1), Name: "calc"})
		}()
	}
	wg.Wait()
	r.Dispatch(ctx, ToolCallCompleted{Envelope: env(1), Name: "calc", Parsed: true})

	assert.Len(t, r.Events(), 9)
	assert.Equal(t, 8, r.Count(TypeToolCallStarted))
	completed := OfType[ToolCallCompleted](r)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].Parsed)

	r.Reset()
	assert.Empty(t, r.Types())
}

func TestEnvelope_Promoted(t *testing.T) {
	e := StreamFinished{Envelope: env(2), FinishReason: "stop"}
	var ev Event = e
	assert.Equal(t, 2, ev.Meta().Attempt)
	assert.Equal(t, env(2).At, ev.Timestamp())
	assert.Equal(t, TypeStreamFinished, ev.Type())
}

func TestMarshal_RoundTrip(t *testing.T) {
	e := ChunkReceived{Envelope: env(1), Fragment: llm.ContentFragment(`{"a":`)}
	data, err := Marshal(e)
	require.NoError(t, err)

	rec, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, TypeChunkReceived, rec.Type)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, 1, rec.Attempt)

	var decoded ChunkReceived
	require.NoError(t, json.Unmarshal(rec.Data, &decoded))
	assert.Equal(t, `{"a":`, decoded.Fragment.ContentDelta)
}

func TestMarshal_ErrorsAsMessages(t *testing.T) {
	e := ResponseGenerationFailed{Envelope: env(3), Message: "boom", Terminal: true, Err: errors.New("boom")}
	data, err := Marshal(e)
	require.NoError(t, err)
	rec, err := Unmarshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_id":"req-1","attempt":3,"at":"2026-01-02T03:04:05Z","error":"boom","terminal":true}`, string(rec.Data))
}

func TestLogSink_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLogSink(zap.New(core))
	ctx := context.Background()

	s.Dispatch(ctx, ChunkReceived{Envelope: env(1)})
	s.Dispatch(ctx, PartialGenerationFailed{Envelope: env(1), Message: "bad"})
	s.Dispatch(ctx, ResponseFinalized{Envelope: env(1), Usage: types.Usage{InputTokens: 2, OutputTokens: 3}})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.InfoLevel, entries[2].Level)
	assert.Equal(t, int64(5), entries[2].ContextMap()["total_tokens"])
	assert.Equal(t, "events", entries[0].ContextMap()["component"])

	assert.NotPanics(t, func() { NewLogSink(nil).Dispatch(ctx, ChunkReceived{}) })
}
