package session

import (
	"time"

	"github.com/fischp/unreal-engine-mcp/internal/protocol/frame"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines socket and deadline defaults for one session.
type Config struct {
	ConnectTimeout    time.Duration
	SendTimeout       time.Duration
	ResponseTimeout   time.Duration
	KeepAlivePeriod   time.Duration
	ReadChunkBytes    int
	SocketBufferBytes int
	Limits            frame.Limits
	Backoff           BackoffConfig
}

// DefaultConfig returns the bridge client defaults. ResponseTimeout stays
// above ConnectTimeout; editor operations can run for many seconds.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    10 * time.Second,
		SendTimeout:       10 * time.Second,
		ResponseTimeout:   30 * time.Second,
		KeepAlivePeriod:   15 * time.Second,
		ReadChunkBytes:    frame.DefaultReadChunk,
		SocketBufferBytes: 128 * 1024,
		Limits:            frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       false,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	if c.KeepAlivePeriod == 0 {
		c.KeepAlivePeriod = d.KeepAlivePeriod
	}
	if c.ReadChunkBytes <= 0 {
		c.ReadChunkBytes = d.ReadChunkBytes
	}
	if c.SocketBufferBytes <= 0 {
		c.SocketBufferBytes = d.SocketBufferBytes
	}
	if c.Limits.MaxMessageBytes <= 0 {
		c.Limits = d.Limits
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = d.Backoff
	}
	return c
}
