// Package filebackend replays pre-recorded GPU backend dumps from a
// directory. It provides every optional capability.
package filebackend

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"go.uber.org/zap"
)

// File names read from the dump directory.
const (
	FileTimelineAbs   = "timeline.abs"
	FileTimeline      = "timeline"
	FilePipelineStats = "pipeline_stats"
	FileDevice        = "device"
	FileMemory        = "memory"
	FileAnchor        = "anchor"
)

const Name = "file"

var ErrNoDumpDir = errors.New("file backend needs a dump directory")

type Backend struct {
	dir    string
	logger *zap.Logger
}

func New(dir string) (*Backend, error) {
	if dir == "" {
		return nil, ErrNoDumpDir
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open dump directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("dump directory %q is not a directory", dir)
	}

	return &Backend{
		dir:    dir,
		logger: logutil.GetLogger().With(zap.String("component", "filebackend")),
	}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) DeviceDescription(device int) string {
	raw, err := b.read(FileDevice)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(raw)
}

// DeviceMemory reads "free,total" in bytes.
func (b *Backend) DeviceMemory(device int) (free, total uint64) {
	raw, err := b.read(FileMemory)
	if err != nil {
		return 0, 0
	}
	f, t, ok := strings.Cut(strings.TrimSpace(raw), ",")
	if !ok {
		b.logger.Debug("malformed memory file", zap.String("content", raw))
		return 0, 0
	}
	free, _ = strconv.ParseUint(strings.TrimSpace(f), 10, 64)
	total, _ = strconv.ParseUint(strings.TrimSpace(t), 10, 64)
	return free, total
}

func (b *Backend) DumpPipelineStats(device int, path string) bool {
	return b.copyTo(FilePipelineStats, path)
}

func (b *Backend) DumpTimeline(device int, path string) bool {
	return b.copyTo(FileTimeline, path)
}

func (b *Backend) DumpTimelineAbs(device int, path string) bool {
	return b.copyTo(FileTimelineAbs, path)
}

func (b *Backend) TimelineAnchorMonoNs(device int) uint64 {
	raw, err := b.read(FileAnchor)
	if err != nil {
		return 0
	}
	ns, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		b.logger.Debug("malformed anchor file", zap.Error(err))
		return 0
	}
	return ns
}

func (b *Backend) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// copyTo reports false when the source dump is missing or the copy failed.
func (b *Backend) copyTo(name, dst string) bool {
	src, err := os.Open(filepath.Join(b.dir, name))
	if err != nil {
		b.logger.Debug("dump not available", zap.String("file", name), zap.Error(err))
		return false
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		b.logger.Debug("cannot create dump destination", zap.String("path", dst), zap.Error(err))
		return false
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		b.logger.Debug("copy dump", zap.String("path", dst), zap.Error(err))
		return false
	}
	if err := out.Close(); err != nil {
		return false
	}
	return true
}
