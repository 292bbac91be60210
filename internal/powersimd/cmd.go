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
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"PowerSim/internal/metrics"
	"PowerSim/internal/powersim"
	"PowerSim/internal/recorder"
	"PowerSim/internal/util"
)

var (
	FlagConfigPath string
	FlagDebugLevel string
	FlagListen     string
)

var RootCmd = &cobra.Command{
	Use:     "powersimd",
	Short:   "powersimd simulates the power draw of a server for Wake-on-LAN testing",
	Args:    cobra.ExactArgs(0),
	Version: util.Version(),
	RunE: func(cmd *cobra.Command, args []string) error {
		util.DetectNetworkProxy()

		config, err := LoadConfig(FlagConfigPath)
		if err != nil {
			return util.NewCmdError(util.ErrorCmdArg, "Failed to load config: %v", err)
		}

		if cmd.Flags().Changed("debug-level") {
			if err := util.CheckLogLevel(FlagDebugLevel); err != nil {
				return util.NewCmdError(util.ErrorCmdArg, "%v", err)
			}
			config.Log.Level = FlagDebugLevel
		}
		if cmd.Flags().Changed("listen") {
			config.Server.Listen = FlagListen
		}

		util.InitLogger(config.Log.Level)
		logFile, err := util.SetLogFile(config.Log.LogFileConfig)
		if err != nil {
			return util.NewCmdError(util.ErrorGeneric, "Failed to set up log file: %v", err)
		}
		defer logFile.Close()

		PrintConfig(config)

		l, err := net.Listen("tcp", config.Server.Listen)
		if err != nil {
			return util.NewCmdError(util.ErrorNetwork, "Failed to listen on %s: %v", config.Server.Listen, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)
		go func() {
			select {
			case sig := <-sigs:
				log.Infof("Received %v, exiting...", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		if err := Run(ctx, config, l); err != nil {
			return util.NewCmdError(util.ErrorGeneric, "%v", err)
		}
		return nil
	},
}

func init() {
	RootCmd.SetVersionTemplate(util.VersionTemplate())
	RootCmd.Flags().StringVarP(&FlagConfigPath, "config", "c", "", "Path to config file")
	RootCmd.Flags().StringVarP(&FlagDebugLevel, "debug-level", "", "info", "Available debug level (trace, debug, info, warn, error)")
	RootCmd.Flags().StringVarP(&FlagListen, "listen", "l", ":5000", "HTTP listen address, overrides server.listen")
}

// Run wires the engine, its observers and the HTTP server, then serves on l
// until ctx is cancelled.
func Run(ctx context.Context, config *Config, l net.Listener) error {
	rec, err := recorder.New(config.Recorder)
	if err != nil {
		l.Close()
		return fmt.Errorf("failed to create recorder: %w", err)
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.Errorf("Failed to close recorder: %v", err)
		}
	}()

	observers := []powersim.Observer{rec}
	var collector *metrics.Collector
	if config.Metrics.Enabled {
		collector = metrics.NewCollector()
		observers = append(observers, collector)
	}

	engine := powersim.NewEngine(config.Simulator, powersim.WithObservers(observers...))
	control := powersim.NewControl(engine)
	server := NewServer(*config, control, collector)

	engine.Start(ctx)
	defer engine.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(l)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return <-errCh
}

func ParseCmdArgs() {
	util.RunEWrapperForLeafCommand(RootCmd)
	util.RunAndHandleExit(RootCmd)
}
