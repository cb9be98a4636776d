package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fischp/unreal-engine-mcp/internal/peer"
	"github.com/fischp/unreal-engine-mcp/internal/protocol"
	"github.com/fischp/unreal-engine-mcp/internal/testutil/testlog"
)

// captureOutput swaps the CLI writers for buffers until the test ends.
func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	prevOut, prevErr := output, errOutput
	output, errOutput = &out, &errOut
	t.Cleanup(func() {
		output, errOutput = prevOut, prevErr
		color.NoColor = false
	})
	return &out, &errOut
}

func startPeer(t *testing.T) (*peer.Server, Globals) {
	t.Helper()
	s := peer.New(peer.DefaultOptions())
	s.HandleDefaults()
	require.NoError(t, s.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(func() { _ = s.Close() })
	host, portStr, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return s, Globals{Host: host, Port: port}
}

func TestParseParams(t *testing.T) {
	testlog.Start(t)
	got, err := parseParams([]string{
		"name=Cube",
		"count=3",
		"visible=true",
		`location=[0,0,100]`,
		"label=a=b",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":     "Cube",
		"count":    float64(3),
		"visible":  true,
		"location": []any{float64(0), float64(0), float64(100)},
		"label":    "a=b",
	}, got)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseParams([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestCallParamsFileWithOverrides(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Cube\nlocation: [0, 0, 50]\n"), 0o644))

	cmd := CallCmd{ParamsFile: path, Param: []string{"name=Sphere"}}
	params, err := cmd.params()
	require.NoError(t, err)
	assert.Equal(t, "Sphere", params["name"])
	assert.Equal(t, []any{0, 0, 50}, params["location"])
}

func TestCallCmdSuccess(t *testing.T) {
	testlog.Start(t)
	out, _ := captureOutput(t)
	_, g := startPeer(t)

	cmd := CallCmd{Kind: "get_actors_in_level", Raw: true}
	require.NoError(t, cmd.Run(&g))
	assert.Equal(t, `{"result":{"actors":[]},"status":"success"}`, strings.TrimSpace(out.String()))
}

func TestCallCmdRemoteErrorExitsNonZero(t *testing.T) {
	testlog.Start(t)
	out, _ := captureOutput(t)
	_, g := startPeer(t)

	cmd := CallCmd{Kind: "does_not_exist"}
	err := cmd.Run(&g)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitError, exitErr.Code)
	assert.Contains(t, out.String(), "Status: ● error (remote)")
	assert.Contains(t, out.String(), "Unknown command: does_not_exist")
}

func TestCallCmdInvalidParams(t *testing.T) {
	testlog.Start(t)
	captureOutput(t)
	_, g := startPeer(t)

	cmd := CallCmd{Kind: "spawn_actor", Param: []string{"oops"}}
	var exitErr *ExitError
	require.True(t, errors.As(cmd.Run(&g), &exitErr))
	assert.Equal(t, exitInvalidParams, exitErr.Code)
}

func TestCheckCmd(t *testing.T) {
	testlog.Start(t)
	out, _ := captureOutput(t)
	_, g := startPeer(t)

	require.NoError(t, (&CheckCmd{Ping: true}).Run(&g))
	assert.Contains(t, out.String(), "● reachable")
	assert.Contains(t, out.String(), "pong")
}

func TestPrintResponseHumanReadable(t *testing.T) {
	testlog.Start(t)
	captureOutput(t)
	var buf bytes.Buffer
	resp := protocol.NewErrorResponse(protocol.KindTimeout, "no reply")
	require.NoError(t, printResponse(&buf, resp, false))
	assert.True(t, strings.HasPrefix(buf.String(), "Status: ● error (timeout)\nError: no reply\n{"))
}

func TestExitCode(t *testing.T) {
	testlog.Start(t)
	_, errOut := captureOutput(t)

	assert.Equal(t, exitSuccess, exitCode(nil))
	assert.Equal(t, exitError, exitCode(errCommandFailed()))
	assert.Empty(t, errOut.String())
	assert.Equal(t, exitUnreachable, exitCode(errUnreachable("127.0.0.1:1", errors.New("refused"))))
	assert.Contains(t, errOut.String(), "Bridge at 127.0.0.1:1 is not reachable: refused")
	assert.Equal(t, exitError, exitCode(errors.New("plain")))
}

func TestCLIParsesGlobalsAndCall(t *testing.T) {
	testlog.Start(t)
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("unrealctl"))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"--host", "10.1.1.1", "--port", "6000", "call", "spawn_actor", "-p", "name=A", "--raw"})
	require.NoError(t, err)
	assert.Equal(t, "call <kind>", ctx.Command())
	assert.Equal(t, "10.1.1.1", cli.Host)
	assert.Equal(t, 6000, cli.Port)
	assert.Equal(t, "spawn_actor", cli.Call.Kind)
	assert.Equal(t, []string{"name=A"}, cli.Call.Param)
	assert.True(t, cli.Call.Raw)
}

func TestGlobalsLoadOverridesConfigFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "unrealctl.toml")
	require.NoError(t, os.WriteFile(path, []byte("host = \"10.0.0.9\"\nport = 7000\n"), 0o644))

	g := Globals{Config: path, Port: 7100}
	cfg, err := g.load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9:7100", cfg.Address())

	_, err = (&Globals{Port: 99999}).load()
	assert.Error(t, err)
}
