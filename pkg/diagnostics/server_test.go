package diagnostics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "diagnostics_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	server := httptest.NewServer(NewHandler(registry))
	defer server.Close()

	tests := []struct {
		path     string
		contains string
	}{
		{path: "/health"},
		{path: "/metrics", contains: "diagnostics_test_total 1"},
		{path: "/debug/pprof/", contains: "goroutine"},
		{path: "/debug/pprof/heap"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			if tt.contains != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), tt.contains)
			}
		})
	}
}
