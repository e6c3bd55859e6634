package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/internal/config"
	"github.com/ALEYI17/InfraSight_gputrace/internal/loaders"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/gputrace"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagTimelineInterval = "timeline-interval"
	flagMetricsListen    = "metrics-listen"
)

var errNoTracePath = errors.New("no trace path: pass --out or set LLAMA_PERFETTO_TRACE / LLAMA_PERFETTO")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:          "gputrace",
		Short:        "Record a trace and reconstruct the GPU timeline reported by a GPU backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := cmd.Flags().GetDuration(flagTimelineInterval)
			if err != nil {
				return err
			}
			listen, err := cmd.Flags().GetString(flagMetricsListen)
			if err != nil {
				return err
			}
			cfg := config.Load(v)
			logutil.InitLoggerWithLevel(cfg.LogLevel)
			logger := logutil.GetLogger()
			defer logger.Sync()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go func() {
				sigch := make(chan os.Signal, 1)
				signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(sigch)
				select {
				case sig := <-sigch:
					logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
					cancel()
				case <-ctx.Done():
				}
			}()

			return run(ctx, cfg, clock.New(), interval, listen, cmd.OutOrStdout())
		},
	}

	bindFlags(v, cmd.Flags())
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.String("out", "", "trace output path (overrides LLAMA_PERFETTO_TRACE)")
	flags.String("backend", "", "GPU backend: file or nvml")
	flags.String("dump-dir", "", "directory replayed by the file backend")
	flags.Int("device", 0, "logical GPU device index")
	flags.Duration("flush-interval", config.DefaultFlushInterval, "background flush period")
	flags.String("log-level", "info", "log level")
	flags.Duration(flagTimelineInterval, time.Second, "period between GPU timeline emissions")
	flags.String(flagMetricsListen, "", "address serving /metrics, empty to disable")

	for key, name := range map[string]string{
		config.KeyTracePath:     "out",
		config.KeyBackend:       "backend",
		config.KeyDumpDir:       "dump-dir",
		config.KeyDevice:        "device",
		config.KeyFlushInterval: "flush-interval",
		config.KeyLogLevel:      "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// run records until ctx is cancelled. clk drives both the timeline loop and
// the background flusher.
func run(ctx context.Context, cfg *config.Config, clk clock.Clock, timelineInterval time.Duration, metricsListen string, out io.Writer) error {
	logger := logutil.GetLogger()

	backend, err := loaders.NewBackend(cfg.Backend, loaders.BackendOptions{DumpDir: cfg.DumpDir})
	if err != nil {
		logger.Error("error creating GPU backend", zap.String("backend", cfg.Backend), zap.Error(err))
		return err
	}
	if backend != nil {
		if c, ok := backend.(io.Closer); ok {
			defer c.Close()
		}
		loaders.Register(backend)
		logger.Info("GPU backend registered", zap.String("backend", backend.Name()))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if metricsListen != "" {
		srv := serveMetrics(metricsListen, reg, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	path, ok := cfg.AutoStartPath()
	if !ok {
		return errNoTracePath
	}

	tracer := gputrace.New(
		gputrace.WithConfig(cfg),
		gputrace.WithLogger(logger),
		gputrace.WithRegisterer(reg),
		gputrace.WithOutput(out),
		gputrace.WithFlushClock(clk),
	)
	tracer.StartTrace(path)
	if !tracer.Enabled() {
		return fmt.Errorf("could not start trace session at %s", path)
	}
	logger.Info("Tracing", zap.String("path", path), zap.Duration("timeline_interval", timelineInterval))

	ticker := clk.Ticker(timelineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			tracer.EmitGPUTimeline()
			tracer.PrintGPUStats()
			tracer.StopFlush()
			logger.Info("Trace written", zap.String("path", path))
			return nil
		case <-ticker.C:
			tracer.EmitGPUTimeline()
			tracer.FlushDumpStats()
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
