package peer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Canned is a file of fixed replies, keyed by command type:
//
//	commands:
//	  get_actors_in_level:
//	    result: {actors: []}
//	  spawn_actor:
//	    error: "Actor already exists"
//	  legacy_flat:
//	    raw: {success: false, message: "not supported"}
type Canned struct {
	Commands map[string]CannedReply `yaml:"commands"`
}

// CannedReply sets exactly one of Result, Error or Raw.
type CannedReply struct {
	Result map[string]any `yaml:"result"`
	Error  string         `yaml:"error"`
	Raw    map[string]any `yaml:"raw"`
}

func LoadCanned(path string) (Canned, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Canned{}, fmt.Errorf("peer: read canned %s: %w", path, err)
	}
	return ParseCanned(data)
}

func ParseCanned(data []byte) (Canned, error) {
	var c Canned
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Canned{}, fmt.Errorf("peer: parse canned: %w", err)
	}
	for kind, reply := range c.Commands {
		set := 0
		if reply.Result != nil {
			set++
		}
		if reply.Error != "" {
			set++
		}
		if reply.Raw != nil {
			set++
		}
		if set > 1 {
			return Canned{}, fmt.Errorf("peer: canned %q sets more than one of result/error/raw", kind)
		}
	}
	return c, nil
}

// Install registers every canned reply on s.
func (c Canned) Install(s *Server) {
	for kind, reply := range c.Commands {
		switch {
		case reply.Raw != nil:
			s.HandleRaw(kind, reply.Raw)
		case reply.Error != "":
			msg := reply.Error
			s.Handle(kind, func(context.Context, map[string]any) (map[string]any, error) {
				return nil, errors.New(msg)
			})
		default:
			result := reply.Result
			s.Handle(kind, func(context.Context, map[string]any) (map[string]any, error) {
				return result, nil
			})
		}
	}
}
