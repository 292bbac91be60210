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
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	logrus "github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "PowerSim")

type Config struct {
	// Seed of the noise generator. Zero picks a time-based seed.
	Seed          int64         `mapstructure:"seed"`
	TickPeriod    time.Duration `mapstructure:"tick_period"`
	ErrorBackoff  time.Duration `mapstructure:"error_backoff"`
	WakeDuration  time.Duration `mapstructure:"wake_duration"`
	ShutdownDelay time.Duration `mapstructure:"shutdown_delay"`

	// When set, a delayed shutdown completion only applies if the engine is
	// still in the shutdown episode that scheduled it.
	GuardShutdownCompletion bool `mapstructure:"guard_shutdown_completion"`

	MockAddress string `mapstructure:"mock_address"`
	ServiceName string `mapstructure:"service_name"`
}

func DefaultConfig() Config {
	return Config{
		TickPeriod:    time.Second,
		ErrorBackoff:  5 * time.Second,
		WakeDuration:  DefaultWakeDuration,
		ShutdownDelay: DefaultShutdownDelay,
		MockAddress:   "172.20.0.3",
		ServiceName:   "power-monitor-simulator",
	}
}

type Option func(*Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRandSource replaces the seeded noise generator, e.g. with a fixed
// source in tests.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.rng = rand.New(src) }
}

// WithLatencySource replaces the generator behind the simulated network
// response time.
func WithLatencySource(src rand.Source) Option {
	return func(e *Engine) { e.latencyRng = rand.New(src) }
}

func WithObservers(observers ...Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, observers...) }
}

// Engine owns the simulated server's power state. The fields from mu up to
// pubMu are read and written only while holding mu, one critical section
// per transition. pubMu guards the publication order.
type Engine struct {
	cfg       Config
	clock     Clock
	observers []Observer

	// Checked by the tick loop before every tick; tests use it to inject
	// faults.
	preTick func() error

	mu sync.Mutex
	// rng drives ticks only, so status polling does not shift a seeded
	// trace.
	rng            *rand.Rand
	latencyRng     *rand.Rand
	state          PowerState
	wattage        float64
	stateStartTime time.Time
	wakeProgress   float64
	// episode increases on every transition.
	episode uint64
	// nextTicket orders publication; taken under mu with the event.
	nextTicket uint64

	pubMu   sync.Mutex
	pubCond *sync.Cond
	served  uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = def.TickPeriod
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	if cfg.WakeDuration <= 0 {
		cfg.WakeDuration = def.WakeDuration
	}
	if cfg.ShutdownDelay <= 0 {
		cfg.ShutdownDelay = def.ShutdownDelay
	}
	if cfg.MockAddress == "" {
		cfg.MockAddress = def.MockAddress
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}

	e := &Engine{
		cfg:   cfg,
		clock: RealClock(),
		state: Off,
	}
	for _, opt := range opts {
		opt(e)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(seed))
	}
	if e.latencyRng == nil {
		e.latencyRng = rand.New(rand.NewSource(rand.New(rand.NewSource(seed)).Int63()))
	}
	e.pubCond = sync.NewCond(&e.pubMu)

	e.wattage = WattsOff
	e.stateStartTime = e.clock.Now()
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Start launches the tick loop in the background. It is a no-op if the loop
// is already running.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.done != nil {
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		e.Run(ctx)
	}(e.done)

	log.Infof("Simulation loop started (tick %v)", e.cfg.TickPeriod)
}

// Stop ends the tick loop and waits for it to exit. Pending shutdown
// completions are not cancelled.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.done == nil {
		return
	}

	e.cancel()
	<-e.done
	e.done = nil
	log.Info("Simulation loop stopped")
}

// Run ticks until ctx is cancelled. A failing tick is logged and followed by
// the error backoff, never by an exit.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := e.safeTick(); err != nil {
			log.Errorf("Error in simulation loop: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.ErrorBackoff):
			}
		}
	}
}

func (e *Engine) safeTick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()

	if e.preTick != nil {
		if err := e.preTick(); err != nil {
			return err
		}
	}
	e.Tick()
	return nil
}

// Tick advances the simulation by one step.
func (e *Engine) Tick() {
	transition, sample, ticket := e.advance()
	e.publish(ticket, transition, sample)
}

func (e *Engine) advance() (*Transition, Sample, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	var transition *Transition

	switch e.state {
	case Waking:
		elapsed := now.Sub(e.stateStartTime)
		if elapsed >= e.cfg.WakeDuration {
			t := e.transitionLocked(now, Running, WattsRunning, ReasonBootComplete)
			e.wakeProgress = 1.0
			transition = &t
			break
		}

		progress := math.Min(math.Max(elapsed.Seconds(), 0)/e.cfg.WakeDuration.Seconds(), 1.0)
		// Clock skew must not move the progress bar backwards.
		if progress > e.wakeProgress {
			e.wakeProgress = progress
		}
		factor := math.Pow(e.wakeProgress, 1.5)
		watts := WattsOff + (WattsRunning-WattsOff)*factor
		e.wattage = math.Max(0, watts+e.uniformLocked(-wakeJitter, wakeJitter))

	case Running:
		e.wattage = math.Max(0, WattsRunning+e.uniformLocked(-runningJitter, runningJitter))
		if e.rng.Float64() < runningToIdleProbability {
			t := e.transitionLocked(now, Idle, WattsIdle, ReasonLoadDrop)
			transition = &t
		}

	case Idle:
		e.wattage = math.Max(0, WattsIdle+e.uniformLocked(-idleJitter, idleJitter))
		if e.rng.Float64() < idleToRunningProbability {
			t := e.transitionLocked(now, Running, WattsRunning, ReasonLoadRise)
			transition = &t
		}
	}

	return transition, e.sampleLocked(now), e.ticketLocked()
}

// TriggerWake starts the wake sequence. It only succeeds from Off.
func (e *Engine) TriggerWake() bool {
	transition, sample, ticket, current, ok := e.wake()
	if !ok {
		log.Infof("Cannot trigger wake - server is already %s", current)
		return false
	}

	log.Info("Wake-up sequence triggered")
	e.publish(ticket, &transition, sample)
	return true
}

func (e *Engine) wake() (Transition, Sample, uint64, PowerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Off {
		return Transition{}, Sample{}, 0, e.state, false
	}

	now := e.clock.Now()
	t := e.transitionLocked(now, Waking, WattsWaking, ReasonWake)
	e.wakeProgress = 0.0
	return t, e.sampleLocked(now), e.ticketLocked(), Waking, true
}

// TriggerShutdown starts the shutdown sequence from Running or Idle and
// schedules the move to Off after the shutdown delay. The scheduled
// completion cannot be cancelled.
func (e *Engine) TriggerShutdown() bool {
	transition, sample, ticket, current, ok := e.shutdown()
	if !ok {
		log.Infof("Cannot trigger shutdown - server is %s", current)
		return false
	}

	log.Info("Shutdown sequence triggered")
	e.publish(ticket, &transition, sample)
	return true
}

func (e *Engine) shutdown() (Transition, Sample, uint64, PowerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running && e.state != Idle {
		return Transition{}, Sample{}, 0, e.state, false
	}

	now := e.clock.Now()
	t := e.transitionLocked(now, ShuttingDown, WattsShuttingDown, ReasonShutdown)
	episode := e.episode
	e.clock.AfterFunc(e.cfg.ShutdownDelay, func() {
		e.completeShutdown(episode)
	})
	return t, e.sampleLocked(now), e.ticketLocked(), ShuttingDown, true
}

func (e *Engine) completeShutdown(episode uint64) {
	transition, sample, ticket, applied := e.finishShutdown(episode)
	if !applied {
		log.Warnf("Skipping stale shutdown completion, server is %s", transition.From)
		return
	}

	log.Info("Shutdown complete - server is now off")
	e.publish(ticket, &transition, sample)
}

func (e *Engine) finishShutdown(episode uint64) (Transition, Sample, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.GuardShutdownCompletion && (e.state != ShuttingDown || e.episode != episode) {
		return Transition{From: e.state}, Sample{}, 0, false
	}

	now := e.clock.Now()
	t := e.transitionLocked(now, Off, WattsOff, ReasonShutdownComplete)
	return t, e.sampleLocked(now), e.ticketLocked(), true
}

// transitionLocked replaces the state and its timing anchor together.
func (e *Engine) transitionLocked(now time.Time, to PowerState, watts float64, reason string) Transition {
	t := Transition{
		Time:    now,
		From:    e.state,
		To:      to,
		Wattage: watts,
		Reason:  reason,
	}

	e.state = to
	e.wattage = watts
	e.stateStartTime = now
	e.episode++

	if (t.From == Running && to == Idle) || (t.From == Idle && to == Running) {
		log.Debugf("Server state changed from %s to %s", t.From, to)
	} else {
		log.Infof("Server state changed from %s to %s (%s)", t.From, to, reason)
	}
	return t
}

func (e *Engine) uniformLocked(lo, hi float64) float64 {
	return lo + (hi-lo)*e.rng.Float64()
}

func (e *Engine) latencyLocked(lo, hi float64) float64 {
	return lo + (hi-lo)*e.latencyRng.Float64()
}

// ticketLocked reserves the next publication slot for an event produced in
// the current critical section.
func (e *Engine) ticketLocked() uint64 {
	t := e.nextTicket
	e.nextTicket++
	return t
}

func (e *Engine) sampleLocked(now time.Time) Sample {
	return Sample{
		Time:         now,
		State:        e.state,
		Wattage:      e.wattage,
		WakeProgress: e.wakeProgress,
	}
}

// publish delivers events outside mu, strictly in ticket order, so
// observers see them in the order the transitions happened.
func (e *Engine) publish(ticket uint64, transition *Transition, sample Sample) {
	e.pubMu.Lock()
	for e.served != ticket {
		e.pubCond.Wait()
	}
	e.pubMu.Unlock()

	defer func() {
		e.pubMu.Lock()
		e.served++
		e.pubCond.Broadcast()
		e.pubMu.Unlock()
	}()

	for _, o := range e.observers {
		if transition != nil {
			if err := o.ObserveTransition(*transition); err != nil {
				log.Warnf("Failed to record state transition: %v", err)
			}
		}
		if err := o.ObserveSample(sample); err != nil {
			log.Warnf("Failed to record power sample: %v", err)
		}
	}
}
