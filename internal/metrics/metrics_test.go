package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PowerSim/internal/powersim"
)

func TestCollectorStartsOff(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	assert.Equal(t, powersim.WattsOff, testutil.ToFloat64(c.wattage))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.state.WithLabelValues("off")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.state.WithLabelValues("running")))
}

func TestCollectorObserves(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	now := time.Now()

	require.NoError(t, c.ObserveTransition(powersim.Transition{Time: now, From: powersim.Off, To: powersim.Waking, Wattage: 45}))
	require.NoError(t, c.ObserveSample(powersim.Sample{Time: now, State: powersim.Waking, Wattage: 66.9, WakeProgress: 0.5}))

	assert.Equal(t, 66.9, testutil.ToFloat64(c.wattage))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.wakeProgress))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.state.WithLabelValues("waking")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.state.WithLabelValues("off")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("off", "waking")))

	expected := `
# HELP powersim_state_transitions_total Number of power state transitions
# TYPE powersim_state_transitions_total counter
powersim_state_transitions_total{from="off",to="waking"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "powersim_state_transitions_total"))
}

func TestCollectorHandler(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	rec := httptest.NewRecorder()
	c.Instrument(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "powersim_wattage_watts 5")
	assert.Contains(t, body, `powersim_http_requests_total{code="200",method="get"} 1`)
}
