package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdm-linkage/internal/metrics"
)

func TestRoutes(t *testing.T) {
	m := metrics.New("mdm")
	m.Records(12)
	m.StartStage("names")
	srv := NewServer(Config{}, m, nil)

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/healthz", http.StatusOK, `"status":"ok"`},
		{"/api/status", http.StatusOK, `"stage":"names"`},
		{"/metrics", http.StatusOK, "mdm_records 12"},
		{"/unknown", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestStatusPayload(t *testing.T) {
	m := metrics.New("mdm")
	m.Compared("names", 6)
	srv := NewServer(Config{}, m, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status metrics.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, int64(6), status.Counts["names.compared"])
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(Config{Listen: "127.0.0.1:0"}, metrics.New("mdm"), nil)

	addr, done, err := srv.Start(ctx)
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestDefaultConfig(t *testing.T) {
	c := Config{Listen: ":1234"}.withDefaults()
	assert.Equal(t, ":1234", c.Listen)
	assert.Equal(t, DefaultConfig().ReadTimeout, c.ReadTimeout)
}
