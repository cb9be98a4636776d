package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fischp/unreal-engine-mcp/internal/testutil/testlog"
)

func TestMetricsRouterServesMetricsAndRequestLog(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	captureOutput(t)
	srv, g := startPeer(t)

	cmd := CallCmd{Kind: "ping", Raw: true}
	require.NoError(t, cmd.Run(&g))

	router := newMetricsRouter(srv)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `unrealmcp_peer_requests_total{command="ping",success="true"}`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Requests []struct {
			Type string `json:"type"`
		} `json:"requests"`
		MaxInFlight int `json:"max_in_flight"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Requests, 1)
	assert.Equal(t, "ping", body.Requests[0].Type)
	assert.Equal(t, 1, body.MaxInFlight)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
