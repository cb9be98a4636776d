package peer

import (
	"bytes"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"github.com/fischp/unreal-engine-mcp/internal/testutil/testlog"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServerLogsThroughLoggerSetAfterStart(t *testing.T) {
	testlog.Start(t)
	s := startServer(t, DefaultOptions())
	s.HandleDefaults()

	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	out := &syncBuffer{}
	log.Logger = zerolog.New(out)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	exchange(t, s.Addr(), `{"type":"ping","params":{}}`)
	logs := out.String()
	assert.Contains(t, logs, `"component":"peer"`)
	assert.Contains(t, logs, `"command":"ping"`)
	assert.Contains(t, logs, s.Addr())
}
