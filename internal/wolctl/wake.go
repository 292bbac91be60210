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

package wolctl

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"PowerSim/internal/reach"
	"PowerSim/internal/util"
	"PowerSim/internal/wol"
)

// Replaced in tests.
var (
	newPinger = func(c *Config) reach.Pinger {
		return reach.ExecPinger{Timeout: c.PingTimeout()}
	}
	newSender = func(c *Config) wol.PacketSender {
		return wol.NewSender(c.Broadcast.Address, c.Broadcast.Port, c.Broadcast.Interface)
	}
)

func printPacket(w io.Writer, mac string) error {
	if mac == "" {
		return util.NewCmdError(util.ErrorCmdArg, "No MAC address given and Target.MAC is not configured")
	}
	hw, err := wol.ParseMAC(mac)
	if err != nil {
		return util.NewCmdError(util.ErrorCmdArg, "%v", err)
	}
	packet, err := wol.MagicPacket(hw)
	if err != nil {
		return util.NewCmdError(util.ErrorCmdArg, "%v", err)
	}

	fmt.Fprintf(w, "Magic packet for %s (%d bytes):\n", hw, len(packet))
	fmt.Fprint(w, hex.Dump(packet))
	return nil
}

func pingOnce(ctx context.Context, w io.Writer, c *Config, ip string) error {
	if ip == "" {
		return util.NewCmdError(util.ErrorCmdArg, "No address given and Target.IP is not configured")
	}
	if !newPinger(c).Ping(ctx, ip) {
		return util.NewCmdError(util.ErrorNetwork, "%s is not reachable", ip)
	}
	fmt.Fprintf(w, "%s is reachable\n", ip)
	return nil
}

func waitOnline(ctx context.Context, w io.Writer, c *Config, ip string) error {
	if ip == "" {
		return util.NewCmdError(util.ErrorCmdArg, "No address given and Target.IP is not configured")
	}

	log.Infof("Waiting for %s to respond (max %v)...", ip, c.MaxWait())
	elapsed, err := reach.WaitReachable(ctx, newPinger(c), ip, reach.WaitOptions{
		Interval: c.PollInterval(),
		MaxWait:  c.MaxWait(),
	})
	if err != nil {
		return waitError(err)
	}
	fmt.Fprintf(w, "%s is reachable after %s\n", ip, util.SecondTimeFormat(int64(elapsed.Seconds())))
	return nil
}

func waitError(err error) error {
	if errors.Is(err, reach.ErrTimeout) {
		return util.NewCmdError(util.ErrorTimeout, "%v", err)
	}
	return util.NewCmdError(util.ErrorGeneric, "%v", err)
}

type wakeOptions struct {
	MAC  string
	IP   string
	Wait bool
}

type wakeReport struct {
	MAC           string
	IP            string
	AlreadyOnline bool
	Attempts      int
	Reachable     bool
	Waited        time.Duration
}

func (r *wakeReport) JSON() (string, error) {
	fields := []struct {
		path  string
		value any
	}{
		{"mac", r.MAC},
		{"ip", r.IP},
		{"already_online", r.AlreadyOnline},
		{"attempts", r.Attempts},
		{"reachable", r.Reachable},
		{"waited_seconds", r.Waited.Seconds()},
	}

	out := "{}"
	for _, f := range fields {
		var err error
		if out, err = sjson.Set(out, f.path, f.value); err != nil {
			return "", err
		}
	}
	return out, nil
}

func (r *wakeReport) String() string {
	switch {
	case r.AlreadyOnline:
		return fmt.Sprintf("%s is already online, no packet sent", r.IP)
	case r.Reachable:
		return fmt.Sprintf("%s woke up after %s (%d packet(s) sent)", r.IP, util.SecondTimeFormat(int64(r.Waited.Seconds())), r.Attempts)
	default:
		return fmt.Sprintf("Magic packet sent to %s (%d packet(s))", r.MAC, r.Attempts)
	}
}

// runWake pings the target first and only sends when it does not answer.
// While waiting, missed pings resend through a cooldown and attempt
// limited guard.
func runWake(ctx context.Context, c *Config, opts wakeOptions, pinger reach.Pinger, sender wol.PacketSender) (*wakeReport, error) {
	if opts.MAC == "" {
		return nil, util.NewCmdError(util.ErrorCmdArg, "No MAC address given and Target.MAC is not configured")
	}
	mac, err := wol.ParseMAC(opts.MAC)
	if err != nil {
		return nil, util.NewCmdError(util.ErrorCmdArg, "%v", err)
	}
	if opts.Wait && opts.IP == "" {
		return nil, util.NewCmdError(util.ErrorCmdArg, "--wait needs a target IP")
	}

	report := &wakeReport{MAC: mac.String(), IP: opts.IP}

	if opts.IP != "" && pinger.Ping(ctx, opts.IP) {
		log.Infof("Server %s is already online", opts.IP)
		report.AlreadyOnline = true
		report.Reachable = true
		return report, nil
	}

	guard := wol.NewGuard(sender, c.Cooldown(), c.Guard.MaxAttempts)
	if err := guard.Send(ctx, mac); err != nil {
		return nil, util.NewCmdError(util.ErrorNetwork, "Failed to send WoL packet: %v", err)
	}
	report.Attempts = guard.Attempts()

	if !opts.Wait {
		return report, nil
	}

	log.Infof("Waiting for %s to respond (max %v)...", opts.IP, c.MaxWait())
	report.Waited, err = reach.WaitReachable(ctx, pinger, opts.IP, reach.WaitOptions{
		Interval: c.PollInterval(),
		MaxWait:  c.MaxWait(),
		OnMiss: func(ctx context.Context, attempt int, elapsed time.Duration) {
			err := guard.Send(ctx, mac)
			switch {
			case err == nil:
				log.Infof("Resent WoL packet to %s after %v", mac, elapsed.Round(time.Second))
			case errors.Is(err, wol.ErrCooldown), errors.Is(err, wol.ErrMaxAttempts):
				log.Debugf("Not resending: %v", err)
			default:
				log.Warnf("Failed to resend WoL packet: %v", err)
			}
		},
	})
	report.Attempts = guard.Attempts()
	if err != nil {
		return report, waitError(err)
	}

	report.Reachable = true
	return report, nil
}

func runWakeCmd(ctx context.Context, w io.Writer, c *Config, opts wakeOptions, asJSON bool) error {
	report, err := runWake(ctx, c, opts, newPinger(c), newSender(c))
	if report == nil {
		return err
	}

	if asJSON {
		out, jerr := report.JSON()
		if jerr != nil {
			return util.NewCmdError(util.ErrorGeneric, "Failed to encode report: %v", jerr)
		}
		fmt.Fprintln(w, out)
	} else if err == nil {
		fmt.Fprintln(w, report.String())
	}
	return err
}
