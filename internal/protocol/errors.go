package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed.
type Kind int

const (
	KindNone Kind = iota
	// KindConnect: socket creation or connect failed or timed out.
	KindConnect
	// KindTransport: send/receive/OS failure after the connection was up.
	KindTransport
	// KindTimeout: no complete message within the response timeout.
	KindTimeout
	// KindFraming: peer closed with undecodable or incomplete bytes buffered.
	KindFraming
	// KindProtocol: bytes certified complete failed to decode as an object.
	KindProtocol
	// KindRemote: well-formed response reporting a remote-side failure.
	KindRemote
	// KindCanceled: the caller's context ended the call.
	KindCanceled
	// KindInternal: any other client-side failure.
	KindInternal
)

var kindNames = map[Kind]string{
	KindNone:      "none",
	KindConnect:   "connect",
	KindTransport: "transport",
	KindTimeout:   "timeout",
	KindFraming:   "framing",
	KindProtocol:  "protocol",
	KindRemote:    "remote",
	KindCanceled:  "canceled",
	KindInternal:  "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindNone, false
}

// Retryable reports whether a failure of this kind is transport-class and
// may be retried with backoff.
func (k Kind) Retryable() bool {
	switch k {
	case KindConnect, KindTransport, KindTimeout, KindFraming:
		return true
	default:
		return false
	}
}

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf wraps err with a kind and operation name.
func Errorf(kind Kind, op string, err error) error {
	if err == nil {
		err = errors.New(kind.String() + " failure")
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// KindInternal for unclassified errors and KindNone for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is a transport-class failure.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
