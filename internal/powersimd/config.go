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

package powersimd

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"PowerSim/internal/powersim"
	"PowerSim/internal/recorder"
	"PowerSim/internal/util"
)

const EnvPrefix = "POWERSIM"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Simulator powersim.Config `mapstructure:"simulator"`
	Recorder  recorder.Config `mapstructure:"recorder"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	util.LogFileConfig `mapstructure:",squash"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig reads an optional YAML file, then applies POWERSIM_* environment
// overrides such as POWERSIM_SERVER_LISTEN or POWERSIM_SIMULATOR_SEED.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Every key needs a default, otherwise AutomaticEnv cannot see it.
func setDefaultConfig(v *viper.Viper) {
	sim := powersim.DefaultConfig()

	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("simulator.seed", 0)
	v.SetDefault("simulator.tick_period", sim.TickPeriod.String())
	v.SetDefault("simulator.error_backoff", sim.ErrorBackoff.String())
	v.SetDefault("simulator.wake_duration", sim.WakeDuration.String())
	v.SetDefault("simulator.shutdown_delay", sim.ShutdownDelay.String())
	v.SetDefault("simulator.guard_shutdown_completion", false)
	v.SetDefault("simulator.mock_address", sim.MockAddress)
	v.SetDefault("simulator.service_name", sim.ServiceName)

	v.SetDefault("recorder.host", "xeon")
	v.SetDefault("recorder.state_change_file", "")
	v.SetDefault("recorder.db.type", "")
	v.SetDefault("recorder.db.batch_size", 30)
	v.SetDefault("recorder.db.flush_interval", "30s")
	v.SetDefault("recorder.db.influxdb.url", "")
	v.SetDefault("recorder.db.influxdb.token", "")
	v.SetDefault("recorder.db.influxdb.org", "")
	v.SetDefault("recorder.db.influxdb.bucket", "powersim")
	v.SetDefault("recorder.db.sqlite.path", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func validateConfig(cfg *Config) error {
	if err := util.CheckLogLevel(cfg.Log.Level); err != nil {
		return err
	}

	if cfg.Server.Listen == "" {
		return fmt.Errorf("server listen address must be specified")
	}

	sim := cfg.Simulator
	if sim.TickPeriod <= 0 || sim.ErrorBackoff <= 0 || sim.WakeDuration <= 0 || sim.ShutdownDelay <= 0 {
		return fmt.Errorf("simulator durations must be greater than 0")
	}

	db := cfg.Recorder.DB
	switch db.Type {
	case "":
	case "influxdb":
		if db.InfluxDB == nil || db.InfluxDB.URL == "" || db.InfluxDB.Token == "" ||
			db.InfluxDB.Org == "" || db.InfluxDB.Bucket == "" {
			return fmt.Errorf("incomplete influxdb configuration")
		}
	case "sqlite":
		if db.SQLite == nil || db.SQLite.Path == "" {
			return fmt.Errorf("sqlite path must be specified")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", db.Type)
	}

	if db.Type != "" && db.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %q", cfg.Metrics.Path)
	}

	return nil
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "..."
}

func PrintConfig(cfg *Config) {
	log.Info("=== Current Configuration Start ===")

	log.Infof("Server: listen %s", cfg.Server.Listen)
	log.Infof("Log: level %s, file %q", cfg.Log.Level, cfg.Log.Path)

	sim := cfg.Simulator
	log.Infof("Simulator: tick %v, wake %v, shutdown delay %v, guarded completion %v",
		sim.TickPeriod, sim.WakeDuration, sim.ShutdownDelay, sim.GuardShutdownCompletion)
	log.Infof("Simulator: mock address %s, service %s, seed %d", sim.MockAddress, sim.ServiceName, sim.Seed)

	if cfg.Recorder.StateChangeFile != "" {
		log.Infof("Recorder: state changes to %s", cfg.Recorder.StateChangeFile)
	}

	db := cfg.Recorder.DB
	switch db.Type {
	case "influxdb":
		log.Infof("Database: influxdb %s, org %s, bucket %s, token %s",
			db.InfluxDB.URL, db.InfluxDB.Org, db.InfluxDB.Bucket, maskToken(db.InfluxDB.Token))
	case "sqlite":
		log.Infof("Database: sqlite %s", db.SQLite.Path)
	}
	if db.Type != "" {
		log.Infof("Database: batch size %d, flush interval %v", db.BatchSize, db.FlushInterval)
	}

	if cfg.Metrics.Enabled {
		log.Infof("Metrics: %s", cfg.Metrics.Path)
	}

	log.Info("=== Current Configuration End ===")
}
