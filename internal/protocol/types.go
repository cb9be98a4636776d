package protocol

import "strings"

// Status values reported by the bridge.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response keys.
const (
	KeyStatus    = "status"
	KeySuccess   = "success"
	KeyResult    = "result"
	KeyError     = "error"
	KeyMessage   = "message"
	KeyErrorKind = "error_kind"
)

const unknownErrorMessage = "Unknown error"

// Command is one request envelope. Params is always encoded as an object.
type Command struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// NewCommand builds a command, replacing nil params with an empty object.
func NewCommand(kind string, params map[string]any) Command {
	if params == nil {
		params = map[string]any{}
	}
	return Command{Type: kind, Params: params}
}

// Response is a decoded bridge reply or a client-generated failure. It is
// always a JSON object; callers branch on Success.
type Response map[string]any

// NewErrorResponse builds the canonical failure shape.
func NewErrorResponse(kind Kind, message string) Response {
	if strings.TrimSpace(message) == "" {
		message = unknownErrorMessage
	}
	return Response{
		KeyStatus:    StatusError,
		KeyError:     message,
		KeyErrorKind: kind.String(),
	}
}

// Status returns the status string, or "" when the response has none.
func (r Response) Status() string {
	v, _ := r[KeyStatus].(string)
	return v
}

// Success derives the boolean outcome. An explicit status wins over a
// success flag; a response carrying neither reports no failure.
func (r Response) Success() bool {
	switch r.Status() {
	case StatusSuccess:
		return true
	case StatusError:
		return false
	}
	if ok, isBool := r[KeySuccess].(bool); isBool {
		return ok
	}
	return r != nil
}

// Message returns the human-readable failure text, preferring "error" over
// "message". Empty for successful responses without a message.
func (r Response) Message() string {
	if v, ok := r[KeyError].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v, ok := r[KeyMessage].(string); ok {
		return v
	}
	return ""
}

// Result returns the nested "result" value, if present.
func (r Response) Result() any {
	return r[KeyResult]
}

// Kind reports the client-side failure kind carried by the response.
// Peer-reported errors without an explicit kind are KindRemote; successful
// responses are KindNone.
func (r Response) Kind() Kind {
	if r.Success() {
		return KindNone
	}
	if v, ok := r[KeyErrorKind].(string); ok {
		if k, ok := ParseKind(v); ok {
			return k
		}
	}
	return KindRemote
}
