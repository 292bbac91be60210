package main

import (
	"PowerSim/internal/powersimd"
)

func main() {
	powersimd.ParseCmdArgs()
}
