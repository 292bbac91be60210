/**
 * Copyright (c) 2024 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package powersim

import (
	"time"

	"PowerSim/internal/util"
)

// Snapshot is a consistent copy of the engine state taken under one lock
// acquisition.
type Snapshot struct {
	Time           time.Time
	State          PowerState
	Wattage        float64
	StateStartTime time.Time
	WakeProgress   float64
	WakePhase      string
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	now := e.clock.Now()
	s := Snapshot{
		Time:           now,
		State:          e.state,
		Wattage:        e.wattage,
		StateStartTime: e.stateStartTime,
		WakeProgress:   e.wakeProgress,
	}
	if e.state == Waking {
		s.WakePhase = wakePhaseAt(now.Sub(e.stateStartTime), e.cfg.WakeDuration)
	}
	return s
}

// Uptime is the time spent in the current state, zero while Off.
func (s Snapshot) Uptime() time.Duration {
	if s.State == Off {
		return 0
	}
	d := s.Time.Sub(s.StateStartTime)
	if d < 0 {
		return 0
	}
	return d
}

type PowerStatus struct {
	Wattage          float64    `json:"wattage"`
	BaselineWattage  float64    `json:"baselineWattage"`
	FullPowerWattage float64    `json:"fullPowerWattage"`
	State            PowerState `json:"state"`
	WakeProgress     float64    `json:"wakeProgress"`
	WakePhase        string     `json:"wakePhase,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	Status           string     `json:"status"`
}

type NetworkStatus struct {
	Reachable bool   `json:"reachable"`
	IP        string `json:"ip"`
	// Milliseconds; nil while the host does not answer.
	ResponseTime *float64 `json:"response_time"`
}

type ServicesStatus struct {
	Jellyfin bool `json:"jellyfin"`
	HTTP     bool `json:"http"`
	SSH      bool `json:"ssh"`
}

type ServerStatus struct {
	Power    PowerStatus    `json:"power"`
	Network  NetworkStatus  `json:"network"`
	Services ServicesStatus `json:"services"`
	// Seconds in the current state.
	Uptime float64 `json:"uptime"`
}

func newPowerStatus(s Snapshot) PowerStatus {
	return PowerStatus{
		Wattage:          util.RoundTo(s.Wattage, 2),
		BaselineWattage:  WattsOff,
		FullPowerWattage: WattsRunning,
		State:            s.State,
		WakeProgress:     util.RoundTo(s.WakeProgress, 3),
		WakePhase:        s.WakePhase,
		Timestamp:        s.Time,
		Status:           "monitoring",
	}
}

// PowerStatus reports the current power telemetry.
func (e *Engine) PowerStatus() PowerStatus {
	return newPowerStatus(e.Snapshot())
}

// ServerStatus reports power telemetry together with the simulated network
// and service view of the host.
func (e *Engine) ServerStatus() ServerStatus {
	e.mu.Lock()
	s := e.snapshotLocked()
	var responseTime *float64
	if s.State.Reachable() {
		rt := e.latencyLocked(1, 5)
		responseTime = &rt
	}
	e.mu.Unlock()

	up := s.State.ServicesUp()
	return ServerStatus{
		Power: newPowerStatus(s),
		Network: NetworkStatus{
			Reachable:    s.State.Reachable(),
			IP:           e.cfg.MockAddress,
			ResponseTime: responseTime,
		},
		Services: ServicesStatus{
			Jellyfin: up,
			HTTP:     up,
			SSH:      up,
		},
		Uptime: s.Uptime().Seconds(),
	}
}
