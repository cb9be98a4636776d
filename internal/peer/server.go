// Package peer is an in-process stand-in for the editor bridge plugin. It
// speaks the same unframed JSON protocol and wraps handler results the way
// the plugin does.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fischp/unreal-engine-mcp/internal/logging"
	"github.com/fischp/unreal-engine-mcp/internal/observability"
	"github.com/fischp/unreal-engine-mcp/internal/protocol"
	"github.com/fischp/unreal-engine-mcp/internal/protocol/frame"
)

var ErrServerClosed = errors.New("peer: server closed")

// HandlerFunc executes one command. A returned error, or a result carrying
// success=false, becomes an error reply.
type HandlerFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

type Options struct {
	// Delay is applied before each reply is written.
	Delay  time.Duration
	Limits frame.Limits
	// ReadTimeout bounds how long a connection may sit without a request.
	ReadTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Limits:      frame.DefaultLimits(),
		ReadTimeout: 30 * time.Second,
	}
}

// Request is one received command with its service window.
type Request struct {
	Type      string         `json:"type"`
	Params    map[string]any `json:"params"`
	Received  time.Time      `json:"received"`
	Responded time.Time      `json:"responded"`
}

type Server struct {
	opts Options

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	raw      map[string]map[string]any
	ln       net.Listener
	closed   bool
	conns    map[net.Conn]struct{}

	logMu       sync.Mutex
	requests    []Request
	inFlight    int
	maxInFlight int

	wg sync.WaitGroup
}

func New(opts Options) *Server {
	if opts.Limits.MaxMessageBytes <= 0 {
		opts.Limits = frame.DefaultLimits()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultOptions().ReadTimeout
	}
	return &Server{
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		raw:      make(map[string]map[string]any),
		conns:    make(map[net.Conn]struct{}),
	}
}

func (s *Server) Handle(kind string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// HandleRaw answers kind with reply exactly as given, bypassing the result
// wrapping. It takes precedence over a handler for the same kind.
func (s *Server) HandleRaw(kind string, reply map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[kind] = reply
}

// HandleDefaults installs ping and an empty get_actors_in_level.
func (s *Server) HandleDefaults() {
	s.Handle("ping", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"message": "pong"}, nil
	})
	s.Handle("get_actors_in_level", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"actors": []any{}}, nil
	})
}

func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("peer: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	return nil
}

// logger resolves the component logger on each use so a later
// logging.Apply reaches servers built before it.
func (s *Server) logger() *zerolog.Logger {
	l := logging.Component("peer")
	if addr := s.Addr(); addr != "" {
		l = l.With().Str("addr", addr).Logger()
	}
	return &l
}

func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve accepts connections until ctx ends or Close is called. It returns
// nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	ln := s.ln
	s.mu.RUnlock()
	if ln == nil {
		return errors.New("peer: Serve called before Listen")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger().Info().Msg("serving")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return nil
			}
			return fmt.Errorf("peer: accept: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}
}

// Start listens on addr and serves in the background.
func (s *Server) Start(ctx context.Context, addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	go func() {
		if err := s.Serve(ctx); err != nil {
			s.logger().Error().Err(err).Msg("serve stopped")
		}
	}()
	return nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

// Log returns the requests served so far, in completion order.
func (s *Server) Log() []Request {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// MaxInFlight is the highest number of requests handled at once.
func (s *Server) MaxInFlight() int {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	return s.maxInFlight
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		payload, err := frame.ReadMessage(conn, s.opts.Limits, 0)
		if err != nil {
			if !errors.Is(err, frame.ErrPeerClosed) {
				s.logger().Debug().Err(err).Msg("read request")
			}
			return
		}
		reply := s.serveOne(ctx, payload)
		out, err := json.Marshal(reply)
		if err != nil {
			s.logger().Error().Err(err).Msg("encode reply")
			return
		}
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func (s *Server) serveOne(ctx context.Context, payload []byte) map[string]any {
	req := Request{Received: time.Now()}
	s.enter()
	defer func() {
		req.Responded = time.Now()
		s.leave(req)
	}()

	cmd, err := protocol.DecodeCommand(payload)
	if err != nil {
		observability.RecordPeerRequest("", false)
		return errorReply(err.Error())
	}
	req.Type, req.Params = cmd.Type, cmd.Params
	s.logger().Debug().Str("command", cmd.Type).Msg("request")

	s.mu.RLock()
	h, ok := s.handlers[cmd.Type]
	raw, isRaw := s.raw[cmd.Type]
	s.mu.RUnlock()

	if s.opts.Delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(s.opts.Delay):
		}
	}

	var reply map[string]any
	switch {
	case isRaw:
		reply = raw
	case !ok:
		reply = errorReply("Unknown command: " + cmd.Type)
	default:
		reply = wrap(s.call(ctx, h, cmd.Params))
	}
	observability.RecordPeerRequest(cmd.Type, protocol.Response(reply).Success())
	return reply
}

func (s *Server) call(ctx context.Context, h HandlerFunc, params map[string]any) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return h(ctx, params)
}

// wrap shapes a handler result like the plugin does.
func wrap(result map[string]any, err error) map[string]any {
	if err != nil {
		return errorReply(err.Error())
	}
	if ok, isBool := result[protocol.KeySuccess].(bool); isBool && !ok {
		msg, _ := result[protocol.KeyError].(string)
		return errorReply(msg)
	}
	if result == nil {
		result = map[string]any{}
	}
	return map[string]any{
		protocol.KeyStatus: protocol.StatusSuccess,
		protocol.KeyResult: result,
	}
}

func errorReply(msg string) map[string]any {
	return map[string]any{
		protocol.KeyStatus: protocol.StatusError,
		protocol.KeyError:  msg,
	}
}

func (s *Server) enter() {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
}

func (s *Server) leave(req Request) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.inFlight--
	s.requests = append(s.requests, req)
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
