package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurb/keen-dnsset/src/internal/metrics"
	"github.com/maksimkurb/keen-dnsset/src/internal/rules"
)

func testRouter(t *testing.T) (http.Handler, *metrics.Metrics) {
	t.Helper()
	rs, err := rules.LoadFile(filepath.Join("..", "rules", "testdata", "rules.conf"))
	require.NoError(t, err)

	m := metrics.New()
	m.RuleSet(rs.Len(), rs.TargetCount())

	h := NewHandler(Options{
		Rules:    rs,
		Version:  VersionInfo{Version: "1.2.3", Commit: "abc", Date: "2026-01-01"},
		Executor: "nft command (nft)",
		Transports: []TransportInfo{
			{Name: metrics.TransportCapture, Enabled: true, Source: "group 0"},
			{Name: metrics.TransportDnstap, Enabled: false},
		},
		StartedAt: time.Now().Add(-90 * time.Second),
	})
	return NewRouter(h, m.Registry()), m
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&DataResponse{Data: v}))
}

func TestHealth(t *testing.T) {
	router, _ := testRouter(t)
	rec := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestGetStatus(t *testing.T) {
	router, _ := testRouter(t)
	rec := get(t, router, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	decodeData(t, rec, &status)

	assert.Equal(t, "1.2.3", status.Version.Version)
	assert.GreaterOrEqual(t, status.UptimeSeconds, int64(90))
	assert.Equal(t, "nft command (nft)", status.Executor)
	assert.Equal(t, 6, status.RuleSet.Rules)
	assert.Equal(t, 5, status.RuleSet.Targets)
	assert.Equal(t, 5, status.RuleSet.Patterns)
	assert.Len(t, status.RuleSet.Checksum, 32)
	assert.True(t, strings.HasSuffix(status.RuleSet.Path, "rules.conf"))
	require.Len(t, status.Transports, 2)
	assert.Equal(t, "nflog", status.Transports[0].Name)
	assert.True(t, status.Transports[0].Enabled)
}

func TestGetTargets(t *testing.T) {
	router, _ := testRouter(t)
	rec := get(t, router, "/api/v1/targets")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TargetsResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Targets, 5)
	assert.Equal(t, TargetInfo{Family: "inet", Table: "filter", Set: "all4", ElemType: "ipv4_addr"}, resp.Targets[0])
	assert.Equal(t, TargetInfo{Family: "inet", Table: "filter", Set: "example4", ElemType: "ipv4_addr", Timeout: "1h"}, resp.Targets[3])
	assert.Equal(t, TargetInfo{Table: "filter", Set: "example4", ElemType: "ipv4_addr"}, resp.Targets[4])
}

func TestMatch(t *testing.T) {
	router, _ := testRouter(t)

	rec := get(t, router, "/api/v1/match?domain=WWW.One.com.")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MatchResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "WWW.One.com.", resp.Domain)

	var sets []string
	for _, target := range resp.Targets {
		sets = append(sets, target.Set)
	}
	assert.Equal(t, []string{"all4", "com4", "com6"}, sets)
}

func TestMatch_MissingDomain(t *testing.T) {
	router, _ := testRouter(t)
	rec := get(t, router, "/api/v1/match")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, ErrCodeInvalidRequest, resp.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, m := testRouter(t)
	m.Packet(metrics.TransportCapture, metrics.ResultAccepted)

	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `keen_dnsset_packets_total{result="accepted",transport="nflog"} 1`)
	assert.Contains(t, body, "keen_dnsset_rules_loaded 6")
}

func TestPrivateSubnetOnly(t *testing.T) {
	router, _ := testRouter(t)

	tests := []struct {
		remote string
		want   int
	}{
		{"127.0.0.1:1000", http.StatusOK},
		{"192.168.1.10:1000", http.StatusOK},
		{"10.1.2.3:1000", http.StatusOK},
		{"[::1]:1000", http.StatusOK},
		{"[fd00::1]:1000", http.StatusOK},
		{"[::ffff:192.168.1.1]:1000", http.StatusOK},
		{"8.8.8.8:1000", http.StatusForbidden},
		{"[2001:db8::1]:1000", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(ErrCodeInternalError))
}

func TestServer_ServeAndStop(t *testing.T) {
	router, _ := testRouter(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), router)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
