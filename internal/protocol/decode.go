package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var ErrNotObject = errors.New("protocol: response is not a JSON object")

// DecodeResponse parses bytes the framer certified complete. Any failure is
// KindProtocol: it signals a framer/decoder disagreement, not a transient
// condition.
func DecodeResponse(payload []byte) (Response, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, Errorf(KindProtocol, "decode response", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, Errorf(KindProtocol, "decode response", ErrNotObject)
	}
	return Response(obj), nil
}

// Normalize folds the peer's failure shapes into one: a status=error reply
// keeps its fields and gains a non-empty "error" string; a bare
// success=false reply is replaced by the canonical error object. An
// "error_kind" sent by the peer is dropped: only the client classifies
// failures. Everything else is returned unchanged.
func Normalize(resp Response) Response {
	if resp == nil {
		return NewErrorResponse(KindProtocol, "empty response")
	}
	delete(resp, KeyErrorKind)
	if resp.Status() == StatusError {
		if msg, _ := resp[KeyError].(string); strings.TrimSpace(msg) == "" {
			resp[KeyError] = failureMessage(resp)
		}
		return resp
	}
	if ok, isBool := resp[KeySuccess].(bool); isBool && !ok {
		return Response{
			KeyStatus: StatusError,
			KeyError:  failureMessage(resp),
		}
	}
	return resp
}

func failureMessage(resp Response) string {
	if msg := resp.Message(); strings.TrimSpace(msg) != "" {
		return msg
	}
	return unknownErrorMessage
}
