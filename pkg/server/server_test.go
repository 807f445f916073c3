package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itoalabs/insight/pkg/pipeline"
	"github.com/itoalabs/insight/pkg/reasoning"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	prompts, err := pipeline.LoadPrompts()
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	pipe, err := pipeline.New(&pipeline.Config{
		Logger:    log,
		Reasoning: reasoning.Disabled{},
		Prompts:   prompts,
	})
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	srv, err := New(&Config{
		Logger:       log,
		Pipeline:     pipe,
		HTTPListener: listener,
	})
	require.NoError(t, err)
	return srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status   string   `json:"status"`
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, resp.Channels, "email")
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	csv := "date,clicks,campaign\n2024-01-01,150,Launch\n2024-01-02,175,Launch\n2024-01-03,160,Retarget\n"

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/email", strings.NewReader(csv))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var artifact pipeline.Artifact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &artifact))
	assert.True(t, artifact.Success)
	assert.Equal(t, "email", artifact.Channel)
	assert.Equal(t, 3, artifact.TotalRecords)
	require.NotNil(t, artifact.Interpretation)
	assert.Equal(t, pipeline.SourceHeuristic, artifact.Interpretation.Source)
	assert.NotEmpty(t, artifact.Recommendations)
	assert.NotEmpty(t, artifact.RunID)
}

func TestAnalyzeUnknownChannel(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/carrier-pigeon", strings.NewReader("a\n1\n"))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "unknown channel")
}

func TestAnalyzeInvalidCSV(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"duplicate columns", "a,a\n1,2\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/analyze/web", strings.NewReader(tc.body))
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, "invalid CSV")
		})
	}
}

func TestConfigValidation(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)

	cfg := &Config{Logger: slog.Default()}
	require.Error(t, cfg.Validate())
}
