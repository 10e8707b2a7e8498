package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/structstream/config"
	"github.com/BaSui01/structstream/events"
	"github.com/BaSui01/structstream/internal/archive"
	"github.com/BaSui01/structstream/internal/migration"
	"github.com/BaSui01/structstream/pipeline"
)

const personStream = `# streamed person
{"content_delta":"{\"name\": \"Ad"}
{"content_delta":"a\", \"age\": 3"}
{"content_delta":"6}"}
{"finish_reason":"stop"}
`

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(out), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &m), raw)
		lines = append(lines, m)
	}
	return lines
}

func pipelineConfig(mode string) config.PipelineConfig {
	pc := config.DefaultPipelineConfig()
	pc.Mode = mode
	return pc
}

func TestReplayStream_Content(t *testing.T) {
	var out bytes.Buffer
	err := replayStream(context.Background(), pipelineConfig("content"), nil,
		strings.NewReader(personStream), &out, pipeline.WithRequestID("req-1"))
	require.NoError(t, err)

	lines := decodeLines(t, out.String())
	require.GreaterOrEqual(t, len(lines), 2)

	for _, l := range lines[:len(lines)-1] {
		assert.Equal(t, "partial", l["event"])
		assert.EqualValues(t, 1, l["attempt"])
	}

	last := lines[len(lines)-1]
	assert.Equal(t, "result", last["event"])
	assert.Equal(t, "req-1", last["request_id"])
	assert.Equal(t, map[string]any{"name": "Ada", "age": float64(36)}, last["value"])
}

func TestReplayStream_RetriesNextAttempt(t *testing.T) {
	input := `{"attempt":1,"content_delta":"I cannot answer that."}
{"attempt":1,"finish_reason":"stop"}
{"attempt":2,"content_delta":"{\"name\":\"Ada\"}"}
{"attempt":2,"finish_reason":"stop"}
`
	var out bytes.Buffer
	err := replayStream(context.Background(), pipelineConfig("content"), nil, strings.NewReader(input), &out)
	require.NoError(t, err)

	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	assert.Equal(t, "result", last["event"])
	assert.EqualValues(t, 2, last["attempts"])
	assert.Equal(t, map[string]any{"name": "Ada"}, last["value"])
}

func TestReplayStream_SchemaFailure(t *testing.T) {
	schema := []byte(`{"type":"object","properties":{"age":{"type":"integer"}},"required":["age"]}`)
	pc := pipelineConfig("content")
	pc.MaxAttempts = 1

	var out bytes.Buffer
	err := replayStream(context.Background(), pc, schema,
		strings.NewReader(`{"content_delta":"{\"name\":\"Ada\"}"}`+"\n"), &out)
	require.Error(t, err)

	var exhausted *pipeline.AttemptsExhaustedError
	assert.ErrorAs(t, err, &exhausted)

	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	assert.Equal(t, "failed", last["event"])
	assert.NotEmpty(t, last["error"])
}

func TestReplayStream_Tools(t *testing.T) {
	input := `{"tool_call_id":"call_1","tool_call_name":"person","tool_args_delta":"{\"name\":"}
{"tool_call_id":"call_1","tool_args_delta":"\"Ada\"}"}
{"finish_reason":"tool_calls"}
`
	pc := pipelineConfig("tools")
	pc.ToolName = "person"

	var out bytes.Buffer
	require.NoError(t, replayStream(context.Background(), pc, nil, strings.NewReader(input), &out))

	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	assert.Equal(t, "result", last["event"])
	assert.Equal(t, map[string]any{"name": "Ada"}, last["value"])

	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "partial", lines[0]["event"])
	assert.Equal(t, map[string]any{"name": "Ada"}, lines[len(lines)-2]["value"])
}

func TestReplayStream_ToolsAnyName(t *testing.T) {
	input := `{"tool_call_id":"call_1","tool_call_name":"extract_person","tool_args_delta":"{\"name\":\"Ada\"}"}
{"finish_reason":"tool_calls"}
`
	pc := pipelineConfig("tools")
	pc.ToolName = ""
	pc.MaxAttempts = 1

	var out bytes.Buffer
	require.NoError(t, replayStream(context.Background(), pc, nil, strings.NewReader(input), &out))

	lines := decodeLines(t, out.String())
	last := lines[len(lines)-1]
	assert.Equal(t, "result", last["event"])
	assert.Equal(t, map[string]any{"name": "Ada"}, last["value"])
}

func TestReplayStream_InvalidMode(t *testing.T) {
	var out bytes.Buffer
	err := replayStream(context.Background(), pipelineConfig("xml"), nil, strings.NewReader(personStream), &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestReadFragments(t *testing.T) {
	t.Run("groups by attempt", func(t *testing.T) {
		attempts, err := readFragments(strings.NewReader(`{"attempt":2,"content_delta":"b"}
{"content_delta":"a"}

{"attempt":2,"finish_reason":"stop"}`))
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.Equal(t, "a", attempts[0][0].ContentDelta)
		require.Len(t, attempts[1], 2)
		assert.Equal(t, "stop", attempts[1][1].FinishReason)
	})

	t.Run("bad line", func(t *testing.T) {
		_, err := readFragments(strings.NewReader("{\"content_delta\":\"a\"}\nnot json\n"))
		assert.ErrorContains(t, err, "line 2")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := readFragments(strings.NewReader("\n# nothing\n"))
		assert.Error(t, err)
	})
}

func TestNewRuntime_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()

	rt, err := newRuntime(cfg, zap.NewNop())
	require.NoError(t, err)
	// log + meter + prometheus collector
	assert.Len(t, rt.sinks, 3)
	assert.NotNil(t, rt.registry)
	assert.Nil(t, rt.metricsSrv)
	assert.NotNil(t, rt.Tracer())
	assert.NoError(t, rt.Close(context.Background()))
}

func TestNewRuntime_MetricsServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Metrics.Addr = "127.0.0.1:0"

	rt, err := newRuntime(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, rt.metricsSrv)
	assert.True(t, rt.metricsSrv.IsRunning())
	assert.NoError(t, rt.Close(context.Background()))
	assert.False(t, rt.metricsSrv.IsRunning())
}

func TestNewRuntime_RedisAndArchive(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Archive.Enabled = true
	cfg.Archive.Name = filepath.Join(t.TempDir(), "archive.db")

	rt, err := newRuntime(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, rt.sinks, 5)

	pc := pipelineConfig("content")
	pc.MaxAttempts = 1
	var out bytes.Buffer
	err = replayStream(context.Background(), pc, nil,
		strings.NewReader(`{"content_delta":"{\"name\": \"Ad"}`+"\n"+`{"content_delta":"no"}`+"\n"),
		&out, pipeline.WithSink(rt.Sink()), pipeline.WithRequestID("req-fail"))
	require.Error(t, err)
	require.NoError(t, rt.Close(context.Background()))

	// 事件写入了 Redis 列表
	assert.True(t, mr.Exists(cfg.Redis.KeyPrefix+":req-fail"))
	list, err := mr.List(cfg.Redis.KeyPrefix + ":req-fail")
	require.NoError(t, err)
	last, err := events.Unmarshal([]byte(list[len(list)-1]))
	require.NoError(t, err)
	assert.Equal(t, events.TypeResponseGenerationFailed, last.Type)

	// 失败写入了归档
	arc, err := archive.Open(cfg.Archive, zap.NewNop())
	require.NoError(t, err)
	defer arc.Close()
	records, err := arc.List(context.Background(), "req-fail")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Terminal)
	assert.Contains(t, records[0].LastPartial, "Ad")
}

func TestRunMigrateSubcommand_SQLite(t *testing.T) {
	cfg := config.DefaultArchiveConfig()
	cfg.Name = filepath.Join(t.TempDir(), "migrate.db")

	m, err := migration.NewMigrator(cfg, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, runMigrateSubcommand(ctx, m, &out, "version", nil))
	assert.Contains(t, out.String(), "no archive migrations applied")

	out.Reset()
	require.NoError(t, runMigrateSubcommand(ctx, m, &out, "up", nil))
	assert.Contains(t, out.String(), "current version 1")

	out.Reset()
	require.NoError(t, runMigrateSubcommand(ctx, m, &out, "status", nil))
	assert.Contains(t, out.String(), "applied")

	assert.Error(t, runMigrateSubcommand(ctx, m, &out, "force", nil))
	assert.Error(t, runMigrateSubcommand(ctx, m, &out, "force", []string{"x"}))
	assert.Error(t, runMigrateSubcommand(ctx, m, &out, "goto", nil))
}

func TestWriteRecords(t *testing.T) {
	data, err := events.Marshal(events.StreamFinished{Envelope: events.Envelope{RequestID: "r", Attempt: 1}})
	require.NoError(t, err)
	rec, err := events.Unmarshal(data)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeRecords(&out, []events.Record{rec, rec}))
	lines := decodeLines(t, out.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "r", lines[0]["request_id"])
}
