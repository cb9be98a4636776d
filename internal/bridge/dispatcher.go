package bridge

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fischp/unreal-engine-mcp/internal/logging"
	"github.com/fischp/unreal-engine-mcp/internal/observability"
	"github.com/fischp/unreal-engine-mcp/internal/protocol"
	"github.com/fischp/unreal-engine-mcp/internal/protocol/session"
)

// Caller is what tool wrappers need from the bridge.
type Caller interface {
	Dispatch(ctx context.Context, kind string, params map[string]any) protocol.Response
}

var _ Caller = (*Dispatcher)(nil)

type DispatcherConfig struct {
	MaxAttempts int
	Backoff     session.BackoffConfig
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     session.DefaultConfig().Backoff,
	}
}

type Dispatcher struct {
	mgr *Manager
	cfg DispatcherConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewDispatcher(mgr *Manager, cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff == (session.BackoffConfig{}) {
		cfg.Backoff = session.DefaultConfig().Backoff
	}
	return &Dispatcher{
		mgr: mgr,
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *Dispatcher) Manager() *Manager { return d.mgr }

// Dispatch sends one command and returns the normalized reply or a
// canonical error response. Transport-class failures are retried; remote
// errors, decode failures and cancellation are not.
func (d *Dispatcher) Dispatch(ctx context.Context, kind string, params map[string]any) (resp protocol.Response) {
	logger := logging.Component("bridge.dispatcher").With().
		Str("addr", d.mgr.Addr()).
		Str("command", kind).
		Str("dispatch_id", uuid.NewString()).
		Logger()
	start := time.Now()
	attempts := 0
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("dispatch panicked")
			resp = protocol.NewErrorResponse(protocol.KindInternal, fmt.Sprintf("command %s failed: %v", kind, r))
		}
		observability.RecordDispatch(kind, outcome(resp), attempts, time.Since(start))
	}()

	payload, err := protocol.EncodeCommand(protocol.NewCommand(kind, params))
	if err != nil {
		logger.Error().Err(err).Msg("encode failed")
		return protocol.NewErrorResponse(protocol.KindInternal, err.Error())
	}

	var lastErr error
	for attempts < d.cfg.MaxAttempts {
		attempts++
		reply, err := d.attempt(ctx, payload)
		if err == nil {
			logger.Debug().Int("attempt", attempts).Bool("success", reply.Success()).Msg("dispatched")
			return reply
		}
		lastErr = err
		k := protocol.KindOf(err)
		if !k.Retryable() {
			logger.Warn().Err(err).Str("kind", k.String()).Int("attempt", attempts).Msg("dispatch failed")
			return protocol.NewErrorResponse(k, err.Error())
		}
		logger.Warn().Err(err).Str("kind", k.String()).Int("attempt", attempts).Int("max_attempts", d.cfg.MaxAttempts).Msg("attempt failed")
		if attempts == d.cfg.MaxAttempts {
			break
		}
		if err := sleepContext(ctx, d.nextDelay(attempts)); err != nil {
			return protocol.NewErrorResponse(protocol.KindCanceled,
				fmt.Sprintf("command %s canceled after %d attempts: %v", kind, attempts, err))
		}
	}

	logger.Error().Err(lastErr).Int("attempts", attempts).Msg("retries exhausted")
	return protocol.NewErrorResponse(protocol.KindOf(lastErr),
		fmt.Sprintf("command %s failed after %d attempts: %v", kind, attempts, lastErr))
}

// attempt is one locked round trip followed by decode and normalization.
func (d *Dispatcher) attempt(ctx context.Context, payload []byte) (protocol.Response, error) {
	var raw []byte
	err := d.mgr.RoundTrip(ctx, func(s *session.Session) error {
		if err := s.Send(ctx, payload); err != nil {
			return err
		}
		b, err := s.ReceiveUntilComplete(ctx)
		raw = b
		return err
	})
	if err != nil {
		return nil, err
	}
	resp, err := protocol.DecodeResponse(raw)
	if err != nil {
		return nil, err
	}
	return protocol.Normalize(resp), nil
}

func (d *Dispatcher) nextDelay(attempt int) time.Duration {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return session.NextBackoffDelay(d.cfg.Backoff, attempt, d.rng)
}

func outcome(resp protocol.Response) string {
	switch k := resp.Kind(); k {
	case protocol.KindNone:
		return observability.OutcomeSuccess
	case protocol.KindRemote:
		return observability.OutcomeRemote
	default:
		return k.String()
	}
}
