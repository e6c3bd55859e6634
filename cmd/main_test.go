package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/internal/backend/filebackend"
	"github.com/ALEYI17/InfraSight_gputrace/internal/config"
	"github.com/ALEYI17/InfraSight_gputrace/internal/loaders"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/benbjohnson/clock"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv(types.EnvTracePath, "/from/env.json")
	t.Setenv("GPUTRACE_BACKEND", "nvml")

	v := config.NewViper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(v, flags)
	require.NoError(t, flags.Parse([]string{"--out", "/from/flag.json", "--flush-interval", "1s", "--device", "2"}))

	cfg := config.Load(v)
	assert.Equal(t, "/from/flag.json", cfg.TracePath)
	assert.Equal(t, "nvml", cfg.Backend, "unset flags fall back to the environment")
	assert.Equal(t, time.Second, cfg.FlushInterval)
	assert.Equal(t, 2, cfg.Device)
}

func TestRunNeedsTracePath(t *testing.T) {
	t.Setenv(types.EnvTracePath, "")
	t.Setenv(types.EnvEnable, "")

	err := run(context.Background(), config.Load(config.NewViper()), clock.NewMock(), time.Second, "", nil)
	assert.ErrorIs(t, err, errNoTracePath)
}

func TestRunRejectsUnknownBackend(t *testing.T) {
	t.Setenv("GPUTRACE_BACKEND", "cuda")
	err := run(context.Background(), config.Load(config.NewViper()), clock.NewMock(), time.Second, "", nil)
	assert.ErrorIs(t, err, loaders.ErrUnknownBackend)
}

func TestRunRecordsUntilCancelled(t *testing.T) {
	t.Cleanup(func() { loaders.Register(nil) })

	dumps := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dumps, filebackend.FileTimelineAbs), []byte("100,200,mul_mat\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dumps, filebackend.FilePipelineStats), []byte("dispatches: 7\n"), 0o644))

	path := filepath.Join(t.TempDir(), "trace.json")
	cfg := &config.Config{
		TracePath:     path,
		FlushInterval: config.DefaultFlushInterval,
		BufferEvents:  1024,
		Backend:       loaders.BackendFile,
		DumpDir:       dumps,
	}

	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, mock, time.Second, "", &out) }()

	// each timeline tick emits the GPU timeline and makes it durable
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		data, err := os.ReadFile(path)
		return err == nil && bytes.Contains(data, []byte("mul_mat"))
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var evs []map[string]any
	require.NoError(t, jsoniter.Unmarshal(data, &evs), "closed trace is a complete array")

	assert.Equal(t, "[GPU] dispatches: 7\n", out.String())
	assert.FileExists(t, path+types.SuffixStats)
}
