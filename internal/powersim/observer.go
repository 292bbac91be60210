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

// Transition reasons.
const (
	ReasonWake             = "wake"
	ReasonBootComplete     = "boot_complete"
	ReasonLoadDrop         = "load_drop"
	ReasonLoadRise         = "load_rise"
	ReasonShutdown         = "shutdown"
	ReasonShutdownComplete = "shutdown_complete"
)

// Sample is the telemetry published after every tick and trigger.
type Sample struct {
	Time         time.Time
	State        PowerState
	Wattage      float64
	WakeProgress float64
}

type Transition struct {
	Time    time.Time
	From    PowerState
	To      PowerState
	Wattage float64
	Reason  string
}

// Observer receives engine events outside the state lock, on the goroutine
// that produced them, one event at a time and in transition order. A slow
// observer delays later events but never the state lock. Observers must
// not trigger transitions on the engine that called them.
type Observer interface {
	ObserveSample(Sample) error
	ObserveTransition(Transition) error
}
