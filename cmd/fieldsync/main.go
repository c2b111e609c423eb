// Package main provides the fieldsync CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/fieldsync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
