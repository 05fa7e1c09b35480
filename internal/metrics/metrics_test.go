package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveRequest("tools/call", OutcomeOK, 5*time.Millisecond)
	m.ObserveRequest("tools/call", OutcomeOK, 5*time.Millisecond)
	m.ObserveRequest("bogus", OutcomeError, time.Millisecond)
	m.ObserveToolCall("say_hello", false)
	m.ObserveToolCall("say_hello", true)
	m.SetCatalogEntries(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("tools/call", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("bogus", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("say_hello", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("say_hello", OutcomeHandled)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.catalogEntries))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("ping", OutcomeOK, time.Millisecond)
		m.ObserveToolCall("x", false)
		m.SetCatalogEntries(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()
	m := New()
	m.SetCatalogEntries(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "mcp_catalog_catalog_entries 2"))
}
