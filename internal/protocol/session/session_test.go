package session

import (
	"context"
	"io"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fischp/unreal-engine-mcp/internal/protocol"
	"github.com/fischp/unreal-engine-mcp/internal/protocol/frame"
	"github.com/fischp/unreal-engine-mcp/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, NextBackoffDelay(cfg, i+1, nil), "attempt %d", i+1)
	}
}

func TestBackoffScheduleMonotonicAndCapped(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig().Backoff
	schedule := BackoffSchedule(cfg, 12, nil)
	require.Len(t, schedule, 11)
	for i, d := range schedule {
		assert.GreaterOrEqual(t, d, cfg.InitialDelay, "delay[%d] below floor", i)
		assert.LessOrEqual(t, d, cfg.MaxDelay, "delay[%d] above ceiling", i)
		if i > 0 {
			assert.GreaterOrEqual(t, d, schedule[i-1], "delay[%d] decreased", i)
		}
	}
	assert.Nil(t, BackoffSchedule(cfg, 1, nil), "single attempt should not sleep")
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	for attempt := 1; attempt <= 8; attempt++ {
		got := NextBackoffDelay(cfg, attempt, rng)
		assert.LessOrEqual(t, got, cfg.MaxDelay, "attempt %d", attempt)
		if attempt == 1 {
			assert.GreaterOrEqual(t, got, 125*time.Millisecond)
			assert.LessOrEqual(t, got, 375*time.Millisecond)
		}
	}
}

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	testlog.Start(t)
	cfg := Config{ResponseTimeout: time.Minute}.WithDefaults()
	d := DefaultConfig()
	assert.Equal(t, time.Minute, cfg.ResponseTimeout)
	assert.Equal(t, d.ConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, d.ReadChunkBytes, cfg.ReadChunkBytes)
	assert.Equal(t, d.Backoff, cfg.Backoff)
}

// servePeer accepts one connection and hands it to fn.
func servePeer(t *testing.T, fn func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return ln.Addr().String()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.SendTimeout = time.Second
	cfg.ResponseTimeout = 300 * time.Millisecond
	return cfg
}

func TestSessionRoundTripChunkedResponse(t *testing.T) {
	testlog.Start(t)
	const resp = `{"status":"success","result":{"actors":[]}}`
	addr := servePeer(t, func(conn net.Conn) {
		req, err := frame.ReadMessage(conn, frame.DefaultLimits(), 16)
		if err != nil || string(req) != `{"type":"get_actors_in_level","params":{}}` {
			return
		}
		for i := 0; i < len(resp); i++ {
			if _, err := conn.Write([]byte{resp[i]}); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
		// Hold the connection open: completion must come from the framer.
		_, _ = io.Copy(io.Discard, conn)
	})

	ctx := context.Background()
	s, err := Open(ctx, addr, testConfig())
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, addr, s.Addr())
	assert.WithinDuration(t, time.Now(), s.OpenedAt(), time.Second)
	require.NoError(t, s.Send(ctx, []byte(`{"type":"get_actors_in_level","params":{}}`)))
	got, err := s.ReceiveUntilComplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp, string(got))
}

func TestSessionReceiveTimeoutOnSilentPeer(t *testing.T) {
	testlog.Start(t)
	addr := servePeer(t, func(conn net.Conn) {
		_, _ = io.Copy(io.Discard, conn)
	})

	ctx := context.Background()
	s, err := Open(ctx, addr, testConfig())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Send(ctx, []byte(`{"type":"noop","params":{}}`)))
	start := time.Now()
	_, err = s.ReceiveUntilComplete(ctx)
	assert.Equal(t, protocol.KindTimeout, protocol.KindOf(err), "err: %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestSessionReceivePeerClosedWithoutData(t *testing.T) {
	testlog.Start(t)
	addr := servePeer(t, func(conn net.Conn) {
		_, _ = frame.ReadMessage(conn, frame.DefaultLimits(), 0)
	})

	ctx := context.Background()
	s, err := Open(ctx, addr, testConfig())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Send(ctx, []byte(`{"type":"noop","params":{}}`)))
	_, err = s.ReceiveUntilComplete(ctx)
	assert.Equal(t, protocol.KindTransport, protocol.KindOf(err))
	assert.ErrorIs(t, err, frame.ErrPeerClosed)
}

func TestSessionReceivePeerClosedMidMessage(t *testing.T) {
	testlog.Start(t)
	addr := servePeer(t, func(conn net.Conn) {
		if _, err := frame.ReadMessage(conn, frame.DefaultLimits(), 0); err != nil {
			return
		}
		_, _ = conn.Write([]byte(`{"status":"succ`))
	})

	ctx := context.Background()
	s, err := Open(ctx, addr, testConfig())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Send(ctx, []byte(`{"type":"noop","params":{}}`)))
	_, err = s.ReceiveUntilComplete(ctx)
	assert.Equal(t, protocol.KindFraming, protocol.KindOf(err))
	assert.ErrorIs(t, err, frame.ErrIncompleteMessage)
}

func TestOpenRefusedIsConnectKind(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = Open(context.Background(), addr, testConfig())
	assert.Equal(t, protocol.KindConnect, protocol.KindOf(err), "err: %v", err)
}

func TestOpenCanceledContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, "127.0.0.1:9", testConfig())
	assert.Equal(t, protocol.KindCanceled, protocol.KindOf(err), "err: %v", err)
}

func TestCloseIsIdempotent(t *testing.T) {
	testlog.Start(t)
	addr := servePeer(t, func(conn net.Conn) {
		_, _ = io.Copy(io.Discard, conn)
	})
	s, err := Open(context.Background(), addr, testConfig())
	require.NoError(t, err)
	s.Close()
	s.Close()
	err = s.Send(context.Background(), []byte(`{}`))
	assert.Equal(t, protocol.KindTransport, protocol.KindOf(err), "err: %v", err)
}
