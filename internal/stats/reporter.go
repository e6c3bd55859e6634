// Package stats echoes the backend's pipeline statistics dump.
package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ALEYI17/InfraSight_gputrace/internal/loaders"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrUnsupported = errors.New("stats: pipeline statistics not supported")

const (
	linePrefix = "[GPU] "
	gib        = 1024.0 * 1024.0 * 1024.0
)

type Reporter struct {
	resolver *loaders.Resolver
	state    types.SessionState
	out      io.Writer
	device   int
	tempDir  string
	logger   *zap.Logger

	notified atomic.Bool
}

type Option func(*Reporter)

func WithOutput(w io.Writer) Option {
	return func(r *Reporter) { r.out = w }
}

func WithDevice(device int) Option {
	return func(r *Reporter) { r.device = device }
}

// WithTempDir sets where scratch dumps go when no session is open.
func WithTempDir(dir string) Option {
	return func(r *Reporter) { r.tempDir = dir }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// NewReporter returns a reporter writing to stdout. state may be nil.
func NewReporter(resolver *loaders.Resolver, state types.SessionState, opts ...Option) *Reporter {
	r := &Reporter{
		resolver: resolver,
		state:    state,
		out:      os.Stdout,
		tempDir:  os.TempDir(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "stats"))
	return r
}

// Print dumps the pipeline statistics and echoes every line. When the
// device does not support them, a notice is printed once for the lifetime
// of the reporter.
func (r *Reporter) Print() error {
	caps := r.resolver.Resolve()
	if caps.DumpPipelineStats == nil {
		r.notice(caps)
		return ErrUnsupported
	}

	path, temporary := r.scratchPath()
	if !caps.DumpPipelineStats(r.device, path) {
		r.notice(caps)
		return ErrUnsupported
	}
	if temporary {
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				r.logger.Debug("remove temporary stats file", zap.String("path", path), zap.Error(err))
			}
		}()
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open stats dump: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	for {
		line, rerr := br.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return fmt.Errorf("read stats dump: %w", rerr)
		}
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if _, err := fmt.Fprintf(r.out, "%s%s\n", linePrefix, line); err != nil {
				return fmt.Errorf("write stats: %w", err)
			}
		}
		if rerr != nil {
			return nil
		}
	}
}

// scratchPath is trace-adjacent while a session is open, a unique temporary
// file otherwise.
func (r *Reporter) scratchPath() (path string, temporary bool) {
	if r.state != nil && r.state.IsOpen() {
		if p := r.state.Path(); p != "" {
			return p + types.SuffixStats, false
		}
	}
	name := fmt.Sprintf("gputrace_vkstats_%d_%s.txt", os.Getpid(), uuid.NewString())
	return filepath.Join(r.tempDir, name), true
}

func (r *Reporter) notice(caps *loaders.Capabilities) {
	if !r.notified.CompareAndSwap(false, true) {
		return
	}

	var desc string
	if caps.DeviceDescription != nil {
		desc = caps.DeviceDescription(r.device)
	}
	var total uint64
	if caps.DeviceMemory != nil {
		_, total = caps.DeviceMemory(r.device)
	}

	sep := ""
	if desc != "" {
		sep = ": "
	}
	fmt.Fprintf(r.out, "%sGPU pipeline statistics not supported on this device%s%s.\n", linePrefix, sep, desc)
	if total != 0 {
		fmt.Fprintf(r.out, "%sReported device-local memory: %.2f GiB.\n", linePrefix, float64(total)/gib)
	}
}
