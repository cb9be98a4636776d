// Package config loads the unrealctl TOML file. Keys left out of the file
// keep their defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/fischp/unreal-engine-mcp/internal/bridge"
	"github.com/fischp/unreal-engine-mcp/internal/logging"
	"github.com/fischp/unreal-engine-mcp/internal/protocol/session"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 55557
)

var (
	ErrHostRequired  = errors.New("config: host required")
	ErrInvalidPort   = errors.New("config: port must be in 1..65535")
	ErrInvalidValue  = errors.New("config: invalid value")
	ErrUnknownLogLvl = errors.New("config: unknown log level")
)

type Config struct {
	Host               string
	Port               int
	Session            session.Config
	MaxConnectAttempts int
	MaxCommandAttempts int
	Log                LogConfig
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func Default() Config {
	file := logging.DefaultFileConfig("")
	mgr := bridge.DefaultManagerConfig()
	disp := bridge.DefaultDispatcherConfig()
	return Config{
		Host:               DefaultHost,
		Port:               DefaultPort,
		Session:            mgr.Session,
		MaxConnectAttempts: mgr.MaxConnectAttempts,
		MaxCommandAttempts: disp.MaxAttempts,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAgeDays: file.MaxAgeDays,
			Compress:   file.Compress,
		},
	}
}

type fileConfig struct {
	Host               string  `toml:"host"`
	Port               int     `toml:"port"`
	ConnectTimeout     string  `toml:"connect_timeout"`
	SendTimeout        string  `toml:"send_timeout"`
	ResponseTimeout    string  `toml:"response_timeout"`
	KeepAlivePeriod    string  `toml:"keepalive_period"`
	ReadChunkBytes     int     `toml:"read_chunk_bytes"`
	SocketBufferBytes  int     `toml:"socket_buffer_bytes"`
	MaxMessageBytes    int     `toml:"max_message_bytes"`
	MaxConnectAttempts int     `toml:"max_connect_attempts"`
	MaxCommandAttempts int     `toml:"max_command_attempts"`
	RetryInitialDelay  string  `toml:"retry_initial_delay"`
	RetryMultiplier    float64 `toml:"retry_multiplier"`
	RetryMaxDelay      string  `toml:"retry_max_delay"`
	RetryJitter        bool    `toml:"retry_jitter"`
	Log                struct {
		Level      string `toml:"level"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
		Compress   bool   `toml:"compress"`
	} `toml:"log"`
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return build(raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return build(raw, meta)
}

func build(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalidValue, undecoded[0].String())
	}
	cfg := Default()

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}

	durations := []struct {
		key string
		src string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Session.ConnectTimeout},
		{"send_timeout", raw.SendTimeout, &cfg.Session.SendTimeout},
		{"response_timeout", raw.ResponseTimeout, &cfg.Session.ResponseTimeout},
		{"keepalive_period", raw.KeepAlivePeriod, &cfg.Session.KeepAlivePeriod},
		{"retry_initial_delay", raw.RetryInitialDelay, &cfg.Session.Backoff.InitialDelay},
		{"retry_max_delay", raw.RetryMaxDelay, &cfg.Session.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.src))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("read_chunk_bytes") {
		cfg.Session.ReadChunkBytes = raw.ReadChunkBytes
	}
	if meta.IsDefined("socket_buffer_bytes") {
		cfg.Session.SocketBufferBytes = raw.SocketBufferBytes
	}
	if meta.IsDefined("max_message_bytes") {
		cfg.Session.Limits.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("max_command_attempts") {
		cfg.MaxCommandAttempts = raw.MaxCommandAttempts
	}
	if meta.IsDefined("retry_multiplier") {
		cfg.Session.Backoff.Multiplier = raw.RetryMultiplier
	}
	if meta.IsDefined("retry_jitter") {
		cfg.Session.Backoff.Jitter = raw.RetryJitter
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("log", "max_age_days") {
		cfg.Log.MaxAgeDays = raw.Log.MaxAgeDays
	}
	if meta.IsDefined("log", "compress") {
		cfg.Log.Compress = raw.Log.Compress
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrHostRequired
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	positive := []struct {
		name string
		ok   bool
	}{
		{"connect_timeout", c.Session.ConnectTimeout > 0},
		{"send_timeout", c.Session.SendTimeout > 0},
		{"response_timeout", c.Session.ResponseTimeout > 0},
		{"read_chunk_bytes", c.Session.ReadChunkBytes > 0},
		{"socket_buffer_bytes", c.Session.SocketBufferBytes > 0},
		{"max_message_bytes", c.Session.Limits.MaxMessageBytes > 0},
		{"max_connect_attempts", c.MaxConnectAttempts > 0},
		{"max_command_attempts", c.MaxCommandAttempts > 0},
		{"retry_initial_delay", c.Session.Backoff.InitialDelay > 0},
		{"retry_max_delay", c.Session.Backoff.MaxDelay >= c.Session.Backoff.InitialDelay},
		{"retry_multiplier", c.Session.Backoff.Multiplier >= 1},
	}
	for _, p := range positive {
		if !p.ok {
			return fmt.Errorf("%w: %s", ErrInvalidValue, p.name)
		}
	}
	if c.Log.Level != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownLogLvl, c.Log.Level)
		}
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) SessionConfig() session.Config {
	return c.Session
}

func (c Config) ManagerConfig() bridge.ManagerConfig {
	return bridge.ManagerConfig{
		Address:            c.Address(),
		Session:            c.SessionConfig(),
		MaxConnectAttempts: c.MaxConnectAttempts,
	}
}

func (c Config) DispatcherConfig() bridge.DispatcherConfig {
	return bridge.DispatcherConfig{
		MaxAttempts: c.MaxCommandAttempts,
		Backoff:     c.Session.Backoff,
	}
}

// LoggingConfig projects the [log] section onto the runtime logging profile.
func (c Config) LoggingConfig() logging.Config {
	out := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		out.Level = lvl
	} else {
		out.Level = zerolog.InfoLevel
	}
	if c.Log.File != "" {
		out.File = logging.FileConfig{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		}
	}
	return out
}
