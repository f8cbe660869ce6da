package main

import (
	"os"

	"github.com/bgdnvk/resonance/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
