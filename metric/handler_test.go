package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ServesExposition(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordReadyStatus(true)
	core.RecordOperation("post", "ok", 200*time.Millisecond)

	server := httptest.NewServer(Handler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	output := string(body)
	assert.Contains(t, output, "kilroy_state_ready 1")
	assert.Contains(t, output, "kilroy_face_operations_total")
	assert.Contains(t, output, "go_goroutines",
		"runtime collectors should be exposed alongside core metrics")
}

func TestHandler_NilRegistry(t *testing.T) {
	server := httptest.NewServer(Handler(nil))
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
