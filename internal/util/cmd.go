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

package util

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// RunEWrapperForLeafCommand silences cobra's own error printing on every
// leaf command so RunAndHandleExit is the single place that reports errors.
func RunEWrapperForLeafCommand(cmd *cobra.Command) {
	if len(cmd.Commands()) == 0 {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return
	}
	cmd.SilenceErrors = true
	for _, sub := range cmd.Commands() {
		RunEWrapperForLeafCommand(sub)
	}
}

// RunAndHandleExit executes the command tree and exits the process with the
// code carried by the returned error.
func RunAndHandleExit(cmd *cobra.Command) {
	err := cmd.Execute()
	if err == nil {
		os.Exit(ErrorSuccess)
	}

	var cmdErr *CmdError
	if errors.As(err, &cmdErr) {
		if cmdErr.Message != "" {
			fmt.Fprintln(os.Stderr, cmdErr.Message)
		}
		os.Exit(cmdErr.Code)
	}

	// Flag parsing and argument validation errors end up here.
	fmt.Fprintln(os.Stderr, err)
	os.Exit(ErrorCmdArg)
}
