package protocol

import (
	"encoding/json"
	"fmt"
)

// EncodeCommand serializes a command as compact UTF-8 JSON with no framing.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd.Params == nil {
		cmd.Params = map[string]any{}
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode command %q: %w", cmd.Type, err)
	}
	return payload, nil
}

// DecodeCommand parses one request envelope, as the bridge does.
func DecodeCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("protocol: decode command: %w", err)
	}
	if cmd.Params == nil {
		cmd.Params = map[string]any{}
	}
	return cmd, nil
}
