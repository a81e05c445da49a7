package main

import (
	"os"

	"github.com/couchcryptid/hazard-sync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
