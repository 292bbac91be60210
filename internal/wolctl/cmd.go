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
	"github.com/spf13/cobra"

	"PowerSim/internal/util"
)

var (
	FlagConfigFilePath string
	FlagDebugLevel     string

	FlagTargetIP string
	FlagWait     bool
	FlagJson     bool

	FlagSimURL string
	FlagOutput string

	gConfig *Config
)

var (
	RootCmd = &cobra.Command{
		Use:     "wolctl",
		Short:   "Wake-on-LAN client for servers and the power simulator",
		Version: util.Version(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			util.InitLogger(FlagDebugLevel)
			config, err := LoadConfig(FlagConfigFilePath)
			if err != nil {
				return util.NewCmdError(util.ErrorCmdArg, "%v", err)
			}
			gConfig = config
			return nil
		},
	}

	packetCmd = &cobra.Command{
		Use:   "packet [MAC]",
		Short: "Print the magic packet for a MAC address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPacket(cmd.OutOrStdout(), argOr(args, gConfig.Target.MAC))
		},
	}

	pingCmd = &cobra.Command{
		Use:   "ping [IP]",
		Short: "Check once whether a host answers ping",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pingOnce(cmd.Context(), cmd.OutOrStdout(), gConfig, argOr(args, gConfig.Target.IP))
		},
	}

	waitCmd = &cobra.Command{
		Use:   "wait [IP]",
		Short: "Wait until a host answers ping",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return waitOnline(cmd.Context(), cmd.OutOrStdout(), gConfig, argOr(args, gConfig.Target.IP))
		},
	}

	wakeCmd = &cobra.Command{
		Use:   "wake [MAC]",
		Short: "Send a magic packet unless the host is already online",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("ip") {
				gConfig.Target.IP = FlagTargetIP
			}
			opts := wakeOptions{
				MAC:  argOr(args, gConfig.Target.MAC),
				IP:   gConfig.Target.IP,
				Wait: FlagWait,
			}
			return runWakeCmd(cmd.Context(), cmd.OutOrStdout(), gConfig, opts, FlagJson)
		},
	}

	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "Query and drive a power simulator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := RootCmd.PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				gConfig.Simulator.URL = FlagSimURL
			}
			return checkOutputFormat(FlagOutput)
		},
	}

	simStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show power, network and service status",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simQuery(cmd.Context(), cmd.OutOrStdout(), gConfig, "/api/power-status/server")
		},
	}

	simPowerCmd = &cobra.Command{
		Use:   "power",
		Short: "Show current power consumption",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simQuery(cmd.Context(), cmd.OutOrStdout(), gConfig, "/api/power-status/current")
		},
	}

	simStateCmd = &cobra.Command{
		Use:   "state",
		Short: "Show the current power state",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simQuery(cmd.Context(), cmd.OutOrStdout(), gConfig, "/api/power-status/state")
		},
	}

	simWakeCmd = &cobra.Command{
		Use:   "wake",
		Short: "Trigger the simulated wake-up sequence",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simTrigger(cmd.Context(), cmd.OutOrStdout(), gConfig, "/api/power-status/wake")
		},
	}

	simShutdownCmd = &cobra.Command{
		Use:   "shutdown",
		Short: "Trigger the simulated shutdown sequence",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return simTrigger(cmd.Context(), cmd.OutOrStdout(), gConfig, "/api/power-status/shutdown")
		},
	}
)

func init() {
	RootCmd.SetVersionTemplate(util.VersionTemplate())
	RootCmd.PersistentFlags().StringVarP(&FlagConfigFilePath, "config", "C", "", "Path to configuration file")
	RootCmd.PersistentFlags().StringVarP(&FlagDebugLevel, "debug-level", "", "info", "Available debug level: trace, debug, info, warn, error")

	RootCmd.AddCommand(packetCmd, pingCmd, waitCmd, wakeCmd, simCmd)

	wakeCmd.Flags().StringVar(&FlagTargetIP, "ip", "", "Address to ping before and after waking")
	wakeCmd.Flags().BoolVarP(&FlagWait, "wait", "w", false, "Wait until the host answers ping")
	wakeCmd.Flags().BoolVar(&FlagJson, "json", false, "Output in JSON format")

	simCmd.PersistentFlags().StringVar(&FlagSimURL, "url", "", "Base URL of the simulator, overrides POWERSIM_URL")
	simCmd.PersistentFlags().StringVarP(&FlagOutput, "output", "o", "table", "Output format: table, json or yaml")
	simCmd.AddCommand(simStatusCmd, simPowerCmd, simStateCmd, simWakeCmd, simShutdownCmd)
}

func argOr(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func ParseCmdArgs() {
	util.RunEWrapperForLeafCommand(RootCmd)
	util.RunAndHandleExit(RootCmd)
}
