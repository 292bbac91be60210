package main

import (
	"PowerSim/internal/wolctl"
)

func main() {
	wolctl.ParseCmdArgs()
}
