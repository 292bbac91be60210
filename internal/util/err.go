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
)

type ExitCode = int

// general
const (
	ErrorSuccess ExitCode = 0
	ErrorGeneric ExitCode = 1
	ErrorCmdArg  ExitCode = 2
	ErrorNetwork ExitCode = 3
	ErrorBackend ExitCode = 4
	ErrorTimeout ExitCode = 5
)

// CmdError carries the process exit code of a failed command. An empty
// Message means the failure has already been reported to the user.
type CmdError struct {
	Code    ExitCode
	Message string
}

func (e *CmdError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Message
}

func NewCmdError(code ExitCode, format string, a ...any) *CmdError {
	return &CmdError{Code: code, Message: fmt.Sprintf(format, a...)}
}

// ExitCodeOf maps an error returned by a command to a process exit code.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ErrorSuccess
	}
	var cmdErr *CmdError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	return ErrorGeneric
}
