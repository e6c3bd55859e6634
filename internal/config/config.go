package config

import (
	"strings"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/spf13/viper"
)

const (
	KeyTracePath        = "trace_path"
	KeyEnable           = "enable"
	KeyDefaultTracePath = "default_trace_path"
	KeyFlushInterval    = "flush_interval"
	KeyBufferEvents     = "buffer_events"
	KeyBackend          = "backend"
	KeyDumpDir          = "dump_dir"
	KeyDevice           = "device"
	KeyLogLevel         = "log_level"
)

const (
	DefaultFlushInterval = 200 * time.Millisecond
	DefaultBufferEvents  = 1 << 19
)

type Config struct {
	TracePath        string
	Enable           string
	DefaultTracePath string
	FlushInterval    time.Duration
	BufferEvents     int
	Backend          string
	DumpDir          string
	Device           int
	LogLevel         string
}

// NewViper returns a viper instance with defaults and environment bindings
// registered. Callers may bind flags on top before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyDefaultTracePath, types.DefaultTracePath)
	v.SetDefault(KeyFlushInterval, DefaultFlushInterval)
	v.SetDefault(KeyBufferEvents, DefaultBufferEvents)
	v.SetDefault(KeyDevice, 0)
	v.SetDefault(KeyLogLevel, "info")

	_ = v.BindEnv(KeyTracePath, types.EnvTracePath)
	_ = v.BindEnv(KeyEnable, types.EnvEnable)
	_ = v.BindEnv(KeyDefaultTracePath, "GPUTRACE_DEFAULT_PATH")
	_ = v.BindEnv(KeyFlushInterval, "GPUTRACE_FLUSH_INTERVAL")
	_ = v.BindEnv(KeyBufferEvents, "GPUTRACE_BUFFER_EVENTS")
	_ = v.BindEnv(KeyBackend, "GPUTRACE_BACKEND")
	_ = v.BindEnv(KeyDumpDir, "GPUTRACE_DUMP_DIR")
	_ = v.BindEnv(KeyDevice, "GPUTRACE_DEVICE")
	_ = v.BindEnv(KeyLogLevel, "GPUTRACE_LOG_LEVEL")

	return v
}

func LoadConfig() *Config {
	return Load(NewViper())
}

func Load(v *viper.Viper) *Config {
	cfg := &Config{
		TracePath:        v.GetString(KeyTracePath),
		Enable:           v.GetString(KeyEnable),
		DefaultTracePath: v.GetString(KeyDefaultTracePath),
		FlushInterval:    v.GetDuration(KeyFlushInterval),
		BufferEvents:     v.GetInt(KeyBufferEvents),
		Backend:          strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend))),
		DumpDir:          v.GetString(KeyDumpDir),
		Device:           v.GetInt(KeyDevice),
		LogLevel:         v.GetString(KeyLogLevel),
	}

	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.BufferEvents <= 0 {
		cfg.BufferEvents = DefaultBufferEvents
	}
	if cfg.DefaultTracePath == "" {
		cfg.DefaultTracePath = types.DefaultTracePath
	}
	return cfg
}

// AutoStartPath returns the path a session should be auto-started with.
// An explicit trace path wins over the enable switch.
func (c *Config) AutoStartPath() (string, bool) {
	if c.TracePath != "" {
		return c.TracePath, true
	}
	if c.Enable != "" {
		return c.DefaultTracePath, true
	}
	return "", false
}
