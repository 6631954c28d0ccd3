package main

import (
	"os"

	"github.com/reytech/scprs-intel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
