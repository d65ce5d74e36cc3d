package main

import (
	"os"

	"github.com/fieldops/msp-workflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
