package gputrace

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/internal/backend/filebackend"
	"github.com/ALEYI17/InfraSight_gputrace/internal/config"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/benbjohnson/clock"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceEvent struct {
	Name string         `json:"name"`
	Cat  string         `json:"cat"`
	Ph   string         `json:"ph"`
	Ts   float64        `json:"ts"`
	Dur  float64        `json:"dur"`
	Tid  uint64         `json:"tid"`
	Args map[string]any `json:"args"`
}

func readTrace(t *testing.T, path string) []traceEvent {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var evs []traceEvent
	require.NoError(t, jsoniter.Unmarshal(data, &evs), "trace: %s", data)
	return evs
}

func find(evs []traceEvent, ph, name string) []traceEvent {
	var out []traceEvent
	for _, ev := range evs {
		if ev.Ph == ph && ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// stepClock advances by step on every read.
func stepClock(start, step uint64) func() uint64 {
	now := start - step
	return func() uint64 {
		now += step
		return now
	}
}

func testConfig() *config.Config {
	return &config.Config{
		FlushInterval:    config.DefaultFlushInterval,
		BufferEvents:     1024,
		DefaultTracePath: types.DefaultTracePath,
	}
}

func newTestTracer(t *testing.T, opts ...Option) *Tracer {
	t.Helper()
	base := []Option{
		WithConfig(testConfig()),
		WithFlushClock(clock.NewMock()),
		WithBackend(func() types.Backend { return nil }),
		WithOutput(&bytes.Buffer{}),
		WithTempDir(t.TempDir()),
	}
	tr := New(append(base, opts...)...)
	t.Cleanup(tr.StopFlush)
	return tr
}

func TestSpansWithoutSessionAreNoops(t *testing.T) {
	tr := newTestTracer(t)
	assert.False(t, tr.Enabled())

	s := tr.Begin("idle")
	assert.Equal(t, Span{}, s)
	s.End()
	tr.GPUBegin("").End()
	tr.Counter("queue_depth", 3)

	tr.StopFlush()
	tr.FlushDumpStats()
	tr.EmitGPUTimeline()
}

func TestSpansAndCounters(t *testing.T) {
	tr := newTestTracer(t, WithClocks(stepClock(1_000, 1_000), stepClock(1, 1)))
	path := filepath.Join(t.TempDir(), "trace.json")
	tr.StartTrace(path)
	require.True(t, tr.Enabled())
	assert.Equal(t, path, tr.Path())

	outer := tr.BeginWithText("decode", "hello")
	tr.Begin("").End()
	tr.GPUBegin("").End()
	outer.End()
	tr.CounterTokensPerSecond(42)
	tr.CounterGPUBusy(100)
	tr.Counter("kv_cache_used", 0.5)
	tr.StopFlush()
	assert.False(t, tr.Enabled())

	evs := readTrace(t, path)

	decode := find(evs, "X", "decode")
	require.Len(t, decode, 1)
	assert.Equal(t, types.CategoryML, decode[0].Cat)
	assert.Equal(t, types.TrackCPU, decode[0].Tid)
	assert.Equal(t, "hello", decode[0].Args["text"])

	op := find(evs, "X", types.DefaultCPUSpanName)
	require.Len(t, op, 1)
	assert.Nil(t, op[0].Args)
	// nested span lies inside the outer one
	assert.GreaterOrEqual(t, op[0].Ts, decode[0].Ts)
	assert.LessOrEqual(t, op[0].Ts+op[0].Dur, decode[0].Ts+decode[0].Dur)

	gpu := find(evs, "X", types.DefaultGPUSpanName)
	require.Len(t, gpu, 1)
	assert.Equal(t, types.CategoryGPU, gpu[0].Cat)
	assert.Equal(t, types.TrackGPU, gpu[0].Tid)

	tps := find(evs, "C", types.CounterTokensPerSecond)
	require.Len(t, tps, 1)
	assert.Equal(t, 42.0, tps[0].Args["value"])
	assert.Len(t, find(evs, "C", types.CounterGPUBusyPercent), 1)
	assert.Len(t, find(evs, "C", "kv_cache_used"), 1)
}

func TestTryStartFromEnv(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "explicit.json")

	tests := []struct {
		name   string
		env    map[string]string
		want   string
		starts bool
	}{
		{"nothing set", nil, "", false},
		{"explicit path", map[string]string{types.EnvTracePath: explicit}, explicit, true},
		{"explicit path wins", map[string]string{types.EnvTracePath: explicit, types.EnvEnable: "1"}, explicit, true},
		{"enable switch", map[string]string{types.EnvEnable: "1", "GPUTRACE_DEFAULT_PATH": filepath.Join(dir, "default.json")}, filepath.Join(dir, "default.json"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(types.EnvTracePath, "")
			t.Setenv(types.EnvEnable, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			tr := newTestTracer(t, WithConfig(config.LoadConfig()))
			tr.TryStartFromEnv()
			assert.Equal(t, tt.starts, tr.Enabled())
			assert.Equal(t, tt.want, tr.Path())
		})
	}
}

func TestGPUTimelineFromFileBackend(t *testing.T) {
	dumps := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dumps, filebackend.FileTimelineAbs),
		[]byte("1000,2000,mul_mat\n1500,2500,add\n0,10,unused\n"), 0o644))
	b, err := filebackend.New(dumps)
	require.NoError(t, err)

	tr := newTestTracer(t,
		WithBackend(func() types.Backend { return b }),
		WithClocks(func() uint64 { return 1_000_000 }, func() uint64 { return 500_000 }))
	path := filepath.Join(t.TempDir(), "trace.json")
	tr.StartTrace(path)
	tr.EmitGPUTimeline()
	tr.StopFlush()

	evs := readTrace(t, path)
	mm := find(evs, "X", "mul_mat")
	require.Len(t, mm, 1)
	assert.Equal(t, types.TrackGPUQueue, mm[0].Tid)
	// offset 500000ns; trace timestamps are in microseconds
	assert.InDelta(t, 501.0, mm[0].Ts, 1e-9)
	assert.InDelta(t, 1.0, mm[0].Dur, 1e-9)

	busy := find(evs, "C", types.CounterGPUBusyPercent)
	require.Len(t, busy, 2)
	assert.Equal(t, 100.0, busy[0].Args["value"])
	assert.InDelta(t, 501.0, busy[0].Ts, 1e-9)
	assert.Equal(t, 0.0, busy[1].Args["value"])
	assert.InDelta(t, 502.5, busy[1].Ts, 1e-9)

	var named bool
	for _, ev := range find(evs, "M", "thread_name") {
		if ev.Tid == types.TrackGPUQueue {
			named = true
			assert.Equal(t, types.TrackGPUQueueName, ev.Args["name"])
		}
	}
	assert.True(t, named)
	assert.NoFileExists(t, path+types.SuffixTimelineAbs)
}

func TestPrintGPUStatsDegradesOnce(t *testing.T) {
	var out bytes.Buffer
	tr := newTestTracer(t, WithOutput(&out))
	for i := 0; i < 4; i++ {
		tr.PrintGPUStats()
	}
	assert.Equal(t, "[GPU] GPU pipeline statistics not supported on this device.\n", out.String())
}

func TestStopWithoutStartAndTwice(t *testing.T) {
	tr := newTestTracer(t)
	tr.StopFlush()

	tr.StartTrace(filepath.Join(t.TempDir(), "trace.json"))
	tr.StopFlush()
	tr.StopFlush()
	assert.False(t, tr.Enabled())
}

func TestBackgroundFlushThroughFacade(t *testing.T) {
	mock := clock.NewMock()
	tr := newTestTracer(t, WithFlushClock(mock))
	path := filepath.Join(t.TempDir(), "trace.json")
	tr.StartTrace(path)
	tr.Begin("persisted").End()

	require.Eventually(t, func() bool {
		mock.Add(config.DefaultFlushInterval)
		data, err := os.ReadFile(path)
		return err == nil && bytes.Contains(data, []byte("persisted"))
	}, time.Second, 10*time.Millisecond)
}

func TestConcurrentSpansDuringFlush(t *testing.T) {
	const workers, iterations, flushes = 8, 500, 20

	cfg := testConfig()
	cfg.BufferEvents = workers * iterations * 3
	tr := newTestTracer(t, WithConfig(cfg))
	path := filepath.Join(t.TempDir(), "trace.json")
	tr.StartTrace(path)
	require.True(t, tr.Enabled())

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				s := tr.Begin("cpu-work")
				tr.GPUBegin("gpu-work").End()
				s.End()
				tr.Counter("queue_depth", float64(i))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < flushes; i++ {
			tr.FlushDumpStats()
		}
	}()
	wg.Wait()
	tr.StopFlush()

	evs := readTrace(t, path)
	assert.Len(t, find(evs, "X", "cpu-work"), workers*iterations)
	assert.Len(t, find(evs, "X", "gpu-work"), workers*iterations)
	assert.Len(t, find(evs, "C", "queue_depth"), workers*iterations)
}
