package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fischp/unreal-engine-mcp/internal/logging"
	"github.com/fischp/unreal-engine-mcp/internal/observability"
	"github.com/fischp/unreal-engine-mcp/internal/protocol"
	"github.com/fischp/unreal-engine-mcp/internal/protocol/session"
)

const (
	DefaultAddress     = "127.0.0.1:55557"
	DefaultMaxAttempts = 4
)

var ErrAddressRequired = errors.New("bridge: address required")

type ManagerConfig struct {
	Address            string
	Session            session.Config
	MaxConnectAttempts int
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Address:            DefaultAddress,
		Session:            session.DefaultConfig(),
		MaxConnectAttempts: DefaultMaxAttempts,
	}
}

// Manager owns at most one live session. Every mutation of that session
// happens under mu, and the handle is nil again before any failure returns.
type Manager struct {
	cfg ManagerConfig
	rng *rand.Rand

	mu   sync.Mutex
	sess *session.Session
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = DefaultMaxAttempts
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Manager{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (m *Manager) Addr() string { return m.cfg.Address }

// logger is resolved per use so a Manager built before logging.Apply still
// writes to the configured sink.
func (m *Manager) logger() *zerolog.Logger {
	l := logging.Component("bridge.manager").With().Str("addr", m.cfg.Address).Logger()
	return &l
}

// Connected reports whether a live session exists. It waits for any
// in-flight round trip, so after a round trip it is always false.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess != nil
}

// EnsureConnected opens a session if none is live, retrying with backoff.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.ensureLocked(ctx)
	return err
}

// RoundTrip runs fn against a live session while holding the lock for the
// whole exchange. The session is torn down afterwards whatever fn returns.
func (m *Manager) RoundTrip(ctx context.Context, fn func(*session.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.ensureLocked(ctx)
	if err != nil {
		return err
	}
	defer m.teardownLocked("round trip done")
	return fn(sess)
}

// Reset tears down any live session.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked("reset")
}

func (m *Manager) ensureLocked(ctx context.Context) (*session.Session, error) {
	if m.sess != nil {
		return m.sess, nil
	}
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxConnectAttempts; attempt++ {
		sess, err := session.Open(ctx, m.cfg.Address, m.cfg.Session)
		observability.RecordConnectAttempt(err == nil)
		if err == nil {
			m.sess = sess
			m.logger().Debug().Int("attempt", attempt).Msg("connected")
			return sess, nil
		}
		lastErr = err
		if protocol.KindOf(err) == protocol.KindCanceled {
			return nil, err
		}
		m.logger().Warn().Err(err).Int("attempt", attempt).Int("max_attempts", m.cfg.MaxConnectAttempts).Msg("connect failed")
		if attempt == m.cfg.MaxConnectAttempts {
			break
		}
		delay := session.NextBackoffDelay(m.cfg.Session.Backoff, attempt, m.rng)
		if err := sleepContext(ctx, delay); err != nil {
			return nil, protocol.Errorf(protocol.KindCanceled, "connect "+m.cfg.Address, err)
		}
	}
	return nil, protocol.Errorf(protocol.KindConnect, "connect "+m.cfg.Address,
		fmt.Errorf("unreachable after %d attempts: %w", m.cfg.MaxConnectAttempts, lastErr))
}

func (m *Manager) teardownLocked(reason string) {
	if m.sess == nil {
		return
	}
	held := time.Since(m.sess.OpenedAt())
	m.sess.Close()
	m.sess = nil
	m.logger().Debug().Str("reason", reason).Dur("held", held).Msg("session closed")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
