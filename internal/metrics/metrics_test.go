package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/vstream/pkg/rrweb"
)

func TestStreamMetrics_ObservesCollector(t *testing.T) {
	m := New()
	c := rrweb.NewCollector(rrweb.WithObserver(m))

	for _, f := range []string{
		`{"event":{"type":2}}`,
		`{"event":{"type":3}}`,
		`{"event":{"type":3}}`,
		`{"event":{"type":6}}`,
	} {
		require.NoError(t, c.AddFrame([]byte(f)))
	}
	c.AddError(errors.New("bad frame"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fullSnapshots))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.navigation))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("2")))
}

func TestStreamMetrics_ConnectedGauge(t *testing.T) {
	m := New()
	m.SetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connected))
	m.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connected))
}

func TestStreamMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveEvent(rrweb.Event{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `vstream_events_total{type="unknown"} 1`)
	assert.Contains(t, string(body), "vstream_listener_connected 0")
}
