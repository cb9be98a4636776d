package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/fischp/unreal-engine-mcp/internal/protocol"
	"github.com/fischp/unreal-engine-mcp/internal/protocol/frame"
)

// Session is one live TCP connection to the bridge. Send and receive are
// not safe for concurrent use; the connection manager serializes callers.
type Session struct {
	conn     net.Conn
	addr     string
	cfg      Config
	openedAt time.Time

	closeOnce sync.Once
}

// Open dials addr and configures the socket for small request/response
// exchanges. Failures are KindConnect.
func Open(ctx context.Context, addr string, cfg Config) (*Session, error) {
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: cfg.KeepAlivePeriod,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, protocol.Errorf(protocol.KindCanceled, "connect "+addr, ctxErr)
		}
		return nil, protocol.Errorf(protocol.KindConnect, "connect "+addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := configureTCP(tcp, cfg); err != nil {
			_ = conn.Close()
			return nil, protocol.Errorf(protocol.KindConnect, "configure socket "+addr, err)
		}
	}
	return &Session{
		conn:     conn,
		addr:     addr,
		cfg:      cfg,
		openedAt: time.Now(),
	}, nil
}

// NewFromConn wraps an already established connection. Socket options are
// left as they are.
func NewFromConn(conn net.Conn, cfg Config) *Session {
	return &Session{
		conn:     conn,
		addr:     conn.RemoteAddr().String(),
		cfg:      cfg.WithDefaults(),
		openedAt: time.Now(),
	}
}

func configureTCP(conn *net.TCPConn, cfg Config) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}
	if cfg.KeepAlivePeriod > 0 {
		if err := conn.SetKeepAlive(true); err != nil {
			return err
		}
	}
	if err := conn.SetReadBuffer(cfg.SocketBufferBytes); err != nil {
		return err
	}
	if err := conn.SetWriteBuffer(cfg.SocketBufferBytes); err != nil {
		return err
	}
	// Close discards unsent data instead of lingering for peer acks.
	return conn.SetLinger(0)
}

func (s *Session) Addr() string { return s.addr }

func (s *Session) OpenedAt() time.Time { return s.openedAt }

// Send writes payload in full. Failures are KindTransport, or KindTimeout
// when the write deadline expires.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return protocol.Errorf(protocol.KindCanceled, "send", err)
	}
	if err := s.conn.SetWriteDeadline(s.deadline(ctx, s.cfg.SendTimeout)); err != nil {
		return protocol.Errorf(protocol.KindTransport, "send", err)
	}
	if _, err := s.conn.Write(payload); err != nil {
		return classifyIO(ctx, "send", err)
	}
	return nil
}

// ReceiveUntilComplete reads until the framer reports one complete message
// or the response timeout elapses. A read timeout with bytes buffered gets
// one last completeness check before the timeout is surfaced.
func (s *Session) ReceiveUntilComplete(ctx context.Context) ([]byte, error) {
	start := time.Now()
	deadline := s.deadline(ctx, s.cfg.ResponseTimeout)
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, protocol.Errorf(protocol.KindTransport, "receive", err)
	}

	framer := frame.New(s.cfg.Limits)
	chunk := make([]byte, s.cfg.ReadChunkBytes)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			state, ferr := framer.Feed(chunk[:n])
			if ferr != nil {
				return nil, protocol.Errorf(protocol.KindFraming, "receive", ferr)
			}
			if state == frame.Complete {
				return framer.Bytes(), nil
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) {
			state, ferr := framer.Finish()
			if state == frame.Complete {
				return framer.Bytes(), nil
			}
			if errors.Is(ferr, frame.ErrPeerClosed) {
				return nil, protocol.Errorf(protocol.KindTransport, "receive", ferr)
			}
			return nil, protocol.Errorf(protocol.KindFraming, "receive",
				fmt.Errorf("%w (%d bytes)", ferr, framer.Len()))
		}
		if isTimeout(err) {
			if framer.Len() > 0 && framer.Check() == frame.Complete {
				return framer.Bytes(), nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, protocol.Errorf(protocol.KindCanceled, "receive", ctxErr)
			}
			return nil, protocol.Errorf(protocol.KindTimeout, "receive",
				fmt.Errorf("no complete response after %s (received %d bytes): %w",
					time.Since(start).Round(time.Millisecond), framer.Len(), err))
		}
		return nil, classifyIO(ctx, "receive", err)
	}
}

// Close shuts down the write side and closes the connection. Errors are
// swallowed: teardown never replaces the caller's primary error.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if tcp, ok := s.conn.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
		_ = s.conn.Close()
	})
}

func (s *Session) deadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return deadline
}

func classifyIO(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return protocol.Errorf(protocol.KindCanceled, op, ctxErr)
	}
	if isTimeout(err) {
		return protocol.Errorf(protocol.KindTimeout, op, err)
	}
	return protocol.Errorf(protocol.KindTransport, op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
