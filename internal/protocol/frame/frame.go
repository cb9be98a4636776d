// Package frame finds message boundaries in an unframed JSON byte stream.
//
// The bridge writes one JSON value per message with no length prefix and no
// delimiter. A message is complete when the accumulated bytes are valid UTF-8
// and parse as a single JSON value. This is a heuristic: it assumes the peer
// never pipelines, and a truncated prefix that happens to be valid JSON
// (a bare number, for example) is reported complete.
package frame

import (
	"encoding/json"
	"errors"
	"io"
	"unicode/utf8"
)

// State is the framer verdict for the bytes accumulated so far.
type State int

const (
	Incomplete State = iota
	Complete
	Malformed
)

func (s State) String() string {
	switch s {
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

var (
	ErrPeerClosed        = errors.New("frame: connection closed before any data")
	ErrIncompleteMessage = errors.New("frame: connection closed with incomplete message")
	ErrMessageTooLarge   = errors.New("frame: message too large")
)

const DefaultReadChunk = 8192

// Limits constrains framer memory use.
type Limits struct {
	MaxMessageBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 8 * 1024 * 1024,
	}
}

// Framer accumulates chunks until they form one complete JSON value.
// A Framer is not safe for concurrent use.
type Framer struct {
	limits Limits
	buf    []byte
}

func New(limits Limits) *Framer {
	return &Framer{limits: limits}
}

// Feed appends chunk and reports whether the buffer now holds a complete
// message. Exceeding MaxMessageBytes is Malformed with ErrMessageTooLarge.
func (f *Framer) Feed(chunk []byte) (State, error) {
	if f.limits.MaxMessageBytes > 0 && len(f.buf)+len(chunk) > f.limits.MaxMessageBytes {
		return Malformed, ErrMessageTooLarge
	}
	f.buf = append(f.buf, chunk...)
	return f.Check(), nil
}

// Check re-evaluates the buffered bytes without consuming input. Used for
// the last-chance check after a read timeout.
func (f *Framer) Check() State {
	if isComplete(f.buf) {
		return Complete
	}
	return Incomplete
}

// Finish is called at end-of-stream. An empty buffer is a clean disconnect
// (ErrPeerClosed); leftover bytes that never completed are Malformed.
func (f *Framer) Finish() (State, error) {
	if len(f.buf) == 0 {
		return Malformed, ErrPeerClosed
	}
	if isComplete(f.buf) {
		return Complete, nil
	}
	return Malformed, ErrIncompleteMessage
}

// Bytes returns the accumulated buffer. The slice is owned by the framer
// until Reset.
func (f *Framer) Bytes() []byte { return f.buf }

func (f *Framer) Len() int { return len(f.buf) }

func (f *Framer) Reset() { f.buf = f.buf[:0] }

// ReadMessage reads from r in chunks of at most chunkSize bytes until one
// complete message has arrived. Read deadlines are the caller's concern.
func ReadMessage(r io.Reader, limits Limits, chunkSize int) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultReadChunk
	}
	f := New(limits)
	chunk := make([]byte, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			state, ferr := f.Feed(chunk[:n])
			if ferr != nil {
				return nil, ferr
			}
			if state == Complete {
				return f.Bytes(), nil
			}
		}
		if errors.Is(err, io.EOF) {
			if _, ferr := f.Finish(); ferr != nil {
				return nil, ferr
			}
			return f.Bytes(), nil
		}
		if err != nil {
			if f.Check() == Complete {
				return f.Bytes(), nil
			}
			return nil, err
		}
	}
}

func isComplete(buf []byte) bool {
	if !mayEndValue(buf) {
		return false
	}
	return utf8.Valid(buf) && json.Valid(buf)
}

// mayEndValue reports whether the last non-whitespace byte can terminate a
// JSON value. It only skips parses that cannot succeed.
func mayEndValue(buf []byte) bool {
	for i := len(buf) - 1; i >= 0; i-- {
		switch c := buf[i]; c {
		case ' ', '\t', '\r', '\n':
			continue
		case '}', ']', '"', 'e', 'l':
			return true
		default:
			return c >= '0' && c <= '9'
		}
	}
	return false
}
