package powersim

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestControlTriggers(t *testing.T) {
	t.Parallel()

	e, clock := newTestEngine(t, midSource)
	c := NewControl(e)

	res := c.Shutdown()
	assert.False(t, res.Success)
	assert.Equal(t, MessageShutdownRejected, res.Message)
	assert.Equal(t, clock.Now(), res.Timestamp)

	res = c.Wake()
	assert.True(t, res.Success)
	assert.Equal(t, MessageWakeTriggered, res.Message)

	res = c.Wake()
	assert.False(t, res.Success)
	assert.Equal(t, MessageWakeRejected, res.Message)

	setState(e, Running)
	res = c.Shutdown()
	assert.True(t, res.Success)
	assert.Equal(t, MessageShutdownTriggered, res.Message)
	assert.Equal(t, ShuttingDown, c.CurrentState().State)
}

func TestControlCurrentStateIsUnrounded(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, midSource)
	e.mu.Lock()
	e.wattage = 123.456789
	e.mu.Unlock()

	c := NewControl(e)
	assert.Equal(t, 123.456789, c.CurrentState().Wattage)
	assert.Equal(t, 123.46, c.PowerStatus().Wattage)
}

func TestControlHealth(t *testing.T) {
	t.Parallel()

	e, clock := newTestEngine(t, midSource)
	h := NewControl(e).Health()

	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "power-monitor-simulator", h.Service)
	assert.Equal(t, clock.Now(), h.Timestamp)
}

func TestPowerStatus(t *testing.T) {
	t.Parallel()

	e, clock := newTestEngine(t, midSource)
	require.True(t, e.TriggerWake())
	clock.Advance(50 * time.Second)
	e.Tick()

	ps := e.PowerStatus()
	assert.Equal(t, Waking, ps.State)
	assert.Equal(t, WattsOff, ps.BaselineWattage)
	assert.Equal(t, WattsRunning, ps.FullPowerWattage)
	assert.Equal(t, 0.333, ps.WakeProgress)
	assert.Equal(t, "os_boot", ps.WakePhase)
	assert.Equal(t, "monitoring", ps.Status)

	data, err := json.Marshal(ps)
	require.NoError(t, err)
	assert.Equal(t, "waking", gjson.GetBytes(data, "state").String())
	assert.Equal(t, 0.333, gjson.GetBytes(data, "wakeProgress").Float())
	assert.True(t, gjson.GetBytes(data, "timestamp").Exists())

	setState(e, Running)
	data, err = json.Marshal(e.PowerStatus())
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(data, "wakePhase").Exists())
}

func TestServerStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state     PowerState
		reachable bool
		services  bool
	}{
		{state: Off, reachable: false, services: false},
		{state: Waking, reachable: false, services: false},
		{state: Running, reachable: true, services: true},
		{state: Idle, reachable: true, services: true},
		{state: ShuttingDown, reachable: true, services: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()

			e, clock := newTestEngine(t, midSource)
			setState(e, tt.state)
			clock.Advance(42 * time.Second)

			ss := e.ServerStatus()
			assert.Equal(t, tt.state, ss.Power.State)
			assert.Equal(t, tt.reachable, ss.Network.Reachable)
			assert.Equal(t, "172.20.0.3", ss.Network.IP)
			assert.Equal(t, ServicesStatus{Jellyfin: tt.services, HTTP: tt.services, SSH: tt.services}, ss.Services)

			if tt.reachable {
				require.NotNil(t, ss.Network.ResponseTime)
				assert.Equal(t, 3.0, *ss.Network.ResponseTime)
			} else {
				assert.Nil(t, ss.Network.ResponseTime)
			}

			if tt.state == Off {
				assert.Equal(t, 0.0, ss.Uptime)
			} else {
				assert.Equal(t, 42.0, ss.Uptime)
			}

			data, err := json.Marshal(ss)
			require.NoError(t, err)
			rt := gjson.GetBytes(data, "network.response_time")
			assert.True(t, rt.Exists())
			assert.Equal(t, !tt.reachable, rt.Type == gjson.Null)
		})
	}
}

func TestServerStatusUsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MockAddress = "10.1.2.3"
	e := NewEngine(cfg, WithClock(newFakeClock()), WithRandSource(midSource))

	assert.Equal(t, "10.1.2.3", e.ServerStatus().Network.IP)
}
