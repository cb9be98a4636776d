package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fischp/unreal-engine-mcp/internal/bridge"
	"github.com/fischp/unreal-engine-mcp/internal/observability"
	"github.com/fischp/unreal-engine-mcp/internal/peer"
)

type MockCmd struct {
	Listen      string        `help:"Address to accept bridge connections on." default:"127.0.0.1:55557"`
	Canned      string        `help:"YAML file of canned replies." type:"existingfile" placeholder:"FILE" predictor:"yaml"`
	Delay       time.Duration `help:"Delay before each reply."`
	MetricsAddr string        `help:"Serve Prometheus metrics on this address." placeholder:"ADDR"`
}

func (c *MockCmd) Run(g *Globals) error {
	if _, err := g.load(); err != nil {
		return err
	}

	srv := peer.New(peer.Options{Delay: c.Delay})
	srv.HandleDefaults()
	if c.Canned != "" {
		canned, err := peer.LoadCanned(c.Canned)
		if err != nil {
			return err
		}
		canned.Install(srv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.MetricsAddr != "" {
		metrics := startMetrics(c.MetricsAddr, srv)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metrics.Shutdown(shutdownCtx)
		}()
	}

	listen := c.Listen
	if listen == "" {
		listen = bridge.DefaultAddress
	}
	if err := srv.Listen(listen); err != nil {
		return err
	}
	fmt.Fprintf(output, "%s %s\n", green("● mock bridge listening on"), srv.Addr())
	return srv.Serve(ctx)
}

// newMetricsRouter exposes the Prometheus registry and the mock's request
// log.
func newMetricsRouter(srv *peer.Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.GET("/requests", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"requests":      srv.Log(),
			"max_in_flight": srv.MaxInFlight(),
		})
	})
	return r
}

func startMetrics(addr string, srv *peer.Server) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              addr,
		Handler:           newMetricsRouter(srv),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return server
}
