package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fischp/unreal-engine-mcp/internal/bridge"
)

type CheckCmd struct {
	Ping bool `help:"Also send a ping command and expect a reply."`
}

func (c *CheckCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	mgr, err := bridge.NewManager(cfg.ManagerConfig())
	if err != nil {
		return err
	}

	ctx := context.Background()
	start := time.Now()
	err = mgr.EnsureConnected(ctx)
	mgr.Reset()
	if err != nil {
		return errUnreachable(mgr.Addr(), err)
	}
	fmt.Fprintf(output, "%s %s %s\n", green("● reachable"), mgr.Addr(), dim(time.Since(start).Round(time.Microsecond)))

	if !c.Ping {
		return nil
	}
	resp := bridge.NewDispatcher(mgr, cfg.DispatcherConfig()).Dispatch(ctx, "ping", nil)
	if !resp.Success() {
		return errUnreachable(mgr.Addr(), fmt.Errorf("ping: %s", resp.Message()))
	}
	fmt.Fprintf(output, "%s %v\n", bold("ping:"), resp.Result())
	return nil
}
