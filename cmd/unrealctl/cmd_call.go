package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fischp/unreal-engine-mcp/internal/bridge"
)

type CallCmd struct {
	Kind       string        `arg:"" help:"Command type, e.g. get_actors_in_level." predictor:"kind"`
	Param      []string      `short:"p" sep:"none" help:"Parameter as KEY=VALUE. VALUE is parsed as JSON when it can be." placeholder:"KEY=VALUE"`
	ParamsFile string        `help:"YAML or JSON file holding the params object. --param entries win." type:"existingfile" placeholder:"FILE" predictor:"yaml"`
	Raw        bool          `help:"Print the reply as one line of JSON."`
	Timeout    time.Duration `help:"Deadline for the whole call including retries. 0 disables it."`
}

func (c *CallCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	params, err := c.params()
	if err != nil {
		return errInvalidParams(err)
	}
	mgr, err := bridge.NewManager(cfg.ManagerConfig())
	if err != nil {
		return err
	}
	d := bridge.NewDispatcher(mgr, cfg.DispatcherConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	resp := d.Dispatch(ctx, c.Kind, params)
	if err := printResponse(output, resp, c.Raw); err != nil {
		return err
	}
	if !resp.Success() {
		return errCommandFailed()
	}
	return nil
}

func (c *CallCmd) params() (map[string]any, error) {
	params := map[string]any{}
	if c.ParamsFile != "" {
		fromFile, err := loadParamsFile(c.ParamsFile)
		if err != nil {
			return nil, err
		}
		params = fromFile
	}
	pairs, err := parseParams(c.Param)
	if err != nil {
		return nil, err
	}
	for k, v := range pairs {
		params[k] = v
	}
	return params, nil
}

// loadParamsFile reads a params object. YAML is a superset of JSON, so
// both formats go through the YAML decoder.
func loadParamsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}
	params := map[string]any{}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parse params file %s: %w", path, err)
	}
	return params, nil
}

func parseParams(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}
