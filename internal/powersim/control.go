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

const (
	MessageWakeTriggered     = "Wake-up triggered"
	MessageWakeRejected      = "Cannot trigger wake-up"
	MessageShutdownTriggered = "Shutdown triggered"
	MessageShutdownRejected  = "Cannot trigger shutdown"
)

type StateReport struct {
	State     PowerState `json:"state"`
	Wattage   float64    `json:"wattage"`
	Timestamp time.Time  `json:"timestamp"`
}

type TriggerResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// Control is the transport-agnostic status and control surface of an
// Engine. None of its calls block beyond the engine lock.
type Control struct {
	engine *Engine
}

func NewControl(engine *Engine) *Control {
	return &Control{engine: engine}
}

func (c *Control) Engine() *Engine {
	return c.engine
}

func (c *Control) PowerStatus() PowerStatus {
	return c.engine.PowerStatus()
}

func (c *Control) ServerStatus() ServerStatus {
	return c.engine.ServerStatus()
}

// CurrentState reports the unrounded wattage.
func (c *Control) CurrentState() StateReport {
	s := c.engine.Snapshot()
	return StateReport{
		State:     s.State,
		Wattage:   s.Wattage,
		Timestamp: s.Time,
	}
}

func (c *Control) Wake() TriggerResult {
	ok := c.engine.TriggerWake()
	msg := MessageWakeRejected
	if ok {
		msg = MessageWakeTriggered
	}
	return TriggerResult{Success: ok, Message: msg, Timestamp: c.engine.clock.Now()}
}

func (c *Control) Shutdown() TriggerResult {
	ok := c.engine.TriggerShutdown()
	msg := MessageShutdownRejected
	if ok {
		msg = MessageShutdownTriggered
	}
	return TriggerResult{Success: ok, Message: msg, Timestamp: c.engine.clock.Now()}
}

func (c *Control) Health() HealthReport {
	return HealthReport{
		Status:    "healthy",
		Service:   c.engine.cfg.ServiceName,
		Timestamp: c.engine.clock.Now(),
	}
}
