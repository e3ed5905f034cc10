package main

import (
	"os"

	"github.com/TFMV/flashpack/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
