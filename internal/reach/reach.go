// Package reach checks whether a host answers on the network.
package reach

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	logrus "github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "Reach")

const (
	DefaultPingTimeout  = 5 * time.Second
	DefaultPollInterval = 10 * time.Second
	DefaultMaxWait      = 300 * time.Second
)

var ErrTimeout = errors.New("host did not become reachable")

type Pinger interface {
	Ping(ctx context.Context, host string) bool
}

// ExecPinger sends a single ICMP echo with the system ping binary.
type ExecPinger struct {
	Timeout time.Duration
}

func (p ExecPinger) Ping(ctx context.Context, host string) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	secs := int(timeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}

	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(secs), host)
	return cmd.Run() == nil
}

type WaitOptions struct {
	Interval time.Duration
	MaxWait  time.Duration
	// OnMiss runs after every failed ping except the last one.
	OnMiss func(ctx context.Context, attempt int, elapsed time.Duration)
}

// WaitReachable pings host every Interval until it answers or MaxWait has
// passed. It returns the time waited.
func WaitReachable(ctx context.Context, p Pinger, host string, opts WaitOptions) (time.Duration, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}

	start := time.Now()
	deadline := start.Add(opts.MaxWait)
	for attempt := 1; ; attempt++ {
		if p.Ping(ctx, host) {
			elapsed := time.Since(start)
			log.Infof("%s is reachable after %v", host, elapsed.Round(time.Second))
			return elapsed, nil
		}

		elapsed := time.Since(start)
		if !time.Now().Add(opts.Interval).Before(deadline) {
			return elapsed, fmt.Errorf("%w: %s after %v", ErrTimeout, host, opts.MaxWait)
		}

		log.Debugf("%s not reachable yet (attempt %d, %v elapsed)", host, attempt, elapsed.Round(time.Second))
		if opts.OnMiss != nil {
			opts.OnMiss(ctx, attempt, elapsed)
		}

		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}
