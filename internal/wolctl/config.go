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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PowerSim/internal/reach"
	"PowerSim/internal/wol"
)

type Config struct {
	Target struct {
		MAC string `yaml:"MAC"`
		IP  string `yaml:"IP"`
	} `yaml:"Target"`

	// Interface optionally names the network device to send from.
	Broadcast struct {
		Address   string `yaml:"Address"`
		Port      int    `yaml:"Port"`
		Interface string `yaml:"Interface"`
	} `yaml:"Broadcast"`

	Wait struct {
		MaxWaitSeconds      int `yaml:"MaxWaitSeconds"`
		PingTimeoutSeconds  int `yaml:"PingTimeoutSeconds"`
		PollIntervalSeconds int `yaml:"PollIntervalSeconds"`
	} `yaml:"Wait"`

	Guard struct {
		CooldownSeconds int `yaml:"CooldownSeconds"`
		MaxAttempts     int `yaml:"MaxAttempts"`
	} `yaml:"Guard"`

	Simulator struct {
		URL            string `yaml:"URL"`
		TimeoutSeconds int    `yaml:"TimeoutSeconds"`
	} `yaml:"Simulator"`
}

func DefaultConfig() *Config {
	c := &Config{}
	c.Broadcast.Address = wol.DefaultBroadcast
	c.Broadcast.Port = wol.DefaultPort
	c.Wait.MaxWaitSeconds = int(reach.DefaultMaxWait / time.Second)
	c.Wait.PingTimeoutSeconds = int(reach.DefaultPingTimeout / time.Second)
	c.Wait.PollIntervalSeconds = int(reach.DefaultPollInterval / time.Second)
	c.Guard.CooldownSeconds = 60
	c.Guard.MaxAttempts = 3
	c.Simulator.URL = "http://localhost:5000"
	c.Simulator.TimeoutSeconds = 5
	return c
}

// LoadConfig reads path over the defaults, then applies environment
// overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(config, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}
	return config, nil
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"WOL_TARGET_MAC":   &c.Target.MAC,
		"WOL_TARGET_IP":    &c.Target.IP,
		"WOL_BROADCAST_IP": &c.Broadcast.Address,
		"WOL_INTERFACE":    &c.Broadcast.Interface,
		"POWERSIM_URL":     &c.Simulator.URL,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WOL_PORT": &c.Broadcast.Port,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			*dst = n
		}
	}

	secs := map[string]*int{
		"WOL_MAX_WAIT":      &c.Wait.MaxWaitSeconds,
		"WOL_PING_TIMEOUT":  &c.Wait.PingTimeoutSeconds,
		"WOL_POLL_INTERVAL": &c.Wait.PollIntervalSeconds,
	}
	for name, dst := range secs {
		if v, ok := lookup(name); ok && v != "" {
			n, err := parseSeconds(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, v, err)
			}
			*dst = n
		}
	}
	return nil
}

// parseSeconds accepts a plain number of seconds or a Go duration.
func parseSeconds(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d.Round(time.Second) / time.Second), nil
}

func validateConfig(c *Config) error {
	if c.Target.MAC != "" {
		if _, err := wol.ParseMAC(c.Target.MAC); err != nil {
			return err
		}
	}
	if c.Broadcast.Port <= 0 || c.Broadcast.Port > 65535 {
		return fmt.Errorf("broadcast port %d out of range", c.Broadcast.Port)
	}
	if c.Wait.MaxWaitSeconds <= 0 || c.Wait.PingTimeoutSeconds <= 0 || c.Wait.PollIntervalSeconds <= 0 {
		return fmt.Errorf("wait timings must be greater than 0")
	}
	if c.Guard.CooldownSeconds < 0 || c.Guard.MaxAttempts < 0 {
		return fmt.Errorf("guard limits must not be negative")
	}
	return nil
}

func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.Wait.MaxWaitSeconds) * time.Second
}

func (c *Config) PingTimeout() time.Duration {
	return time.Duration(c.Wait.PingTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Wait.PollIntervalSeconds) * time.Second
}

func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Guard.CooldownSeconds) * time.Second
}

func (c *Config) SimulatorTimeout() time.Duration {
	return time.Duration(c.Simulator.TimeoutSeconds) * time.Second
}
