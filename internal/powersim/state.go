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

import "time"

type PowerState string

const (
	Off          PowerState = "off"
	Waking       PowerState = "waking"
	Running      PowerState = "running"
	Idle         PowerState = "idle"
	ShuttingDown PowerState = "shutting_down"
)

// AllStates lists every state in lifecycle order.
var AllStates = []PowerState{Off, Waking, Running, Idle, ShuttingDown}

// Nominal power draw per state, in watts.
const (
	WattsOff          = 5.0
	WattsWaking       = 45.0
	WattsRunning      = 180.0
	WattsIdle         = 120.0
	WattsShuttingDown = 25.0
)

// Half-width of the uniform noise added on each tick.
const (
	wakeJitter    = 5.0
	runningJitter = 10.0
	idleJitter    = 5.0
)

// Per-tick probabilities of the autonomous load changes.
const (
	runningToIdleProbability = 0.001
	idleToRunningProbability = 0.002
)

const (
	DefaultWakeDuration  = 150 * time.Second
	DefaultShutdownDelay = 10 * time.Second
)

func (s PowerState) Valid() bool {
	switch s {
	case Off, Waking, Running, Idle, ShuttingDown:
		return true
	}
	return false
}

// NominalWattage is the level the state settles around.
func (s PowerState) NominalWattage() float64 {
	switch s {
	case Waking:
		return WattsWaking
	case Running:
		return WattsRunning
	case Idle:
		return WattsIdle
	case ShuttingDown:
		return WattsShuttingDown
	default:
		return WattsOff
	}
}

// Reachable reports whether the simulated host answers on the network.
func (s PowerState) Reachable() bool {
	return s != Off && s != Waking
}

// ServicesUp reports whether the simulated host's services accept requests.
func (s PowerState) ServicesUp() bool {
	return s == Running || s == Idle
}

// WakePhase is one stage of the boot sequence.
type WakePhase struct {
	Name     string
	Duration time.Duration
}

var WakePhases = []WakePhase{
	{Name: "bios_post", Duration: 30 * time.Second},
	{Name: "os_boot", Duration: 60 * time.Second},
	{Name: "services", Duration: 45 * time.Second},
	{Name: "network", Duration: 15 * time.Second},
}

// wakePhaseAt names the boot stage reached after elapsed of a wake sequence
// lasting total. Stage lengths are scaled so they always sum to total.
func wakePhaseAt(elapsed, total time.Duration) string {
	if len(WakePhases) == 0 || total <= 0 {
		return ""
	}

	var sum time.Duration
	for _, p := range WakePhases {
		sum += p.Duration
	}

	progress := float64(elapsed) / float64(total)
	var cumulative time.Duration
	for _, p := range WakePhases {
		cumulative += p.Duration
		if progress < float64(cumulative)/float64(sum) {
			return p.Name
		}
	}
	return WakePhases[len(WakePhases)-1].Name
}
