package wol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var (
	ErrCooldown    = errors.New("wake-on-LAN suppressed by cooldown")
	ErrMaxAttempts = errors.New("maximum wake-on-LAN attempts reached")
)

type PacketSender interface {
	Send(ctx context.Context, mac net.HardwareAddr) error
}

// Guard rate-limits resends to the same host. A zero Cooldown or
// MaxAttempts disables that limit.
type Guard struct {
	Sender      PacketSender
	Cooldown    time.Duration
	MaxAttempts int

	now func() time.Time

	mu       sync.Mutex
	lastSent time.Time
	attempts int
}

func NewGuard(sender PacketSender, cooldown time.Duration, maxAttempts int) *Guard {
	return &Guard{
		Sender:      sender,
		Cooldown:    cooldown,
		MaxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Send forwards to the wrapped sender unless the cooldown or the attempt
// limit forbids it. Failed sends do not count as attempts.
func (g *Guard) Send(ctx context.Context, mac net.HardwareAddr) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.Cooldown > 0 && !g.lastSent.IsZero() {
		if wait := g.Cooldown - now.Sub(g.lastSent); wait > 0 {
			return fmt.Errorf("%w (%v remaining)", ErrCooldown, wait.Round(time.Second))
		}
	}
	if g.MaxAttempts > 0 && g.attempts >= g.MaxAttempts {
		return fmt.Errorf("%w (%d)", ErrMaxAttempts, g.MaxAttempts)
	}

	if err := g.Sender.Send(ctx, mac); err != nil {
		return err
	}

	g.lastSent = now
	g.attempts++
	log.Debugf("Wake-on-LAN attempt %d sent to %s", g.attempts, mac)
	return nil
}

func (g *Guard) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts = 0
	g.lastSent = time.Time{}
}
