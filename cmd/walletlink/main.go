// Package main is the entry point for the walletlink CLI.
package main

import (
	"os"

	"github.com/mrz1836/walletlink/internal/cli"
	buildinfo "github.com/mrz1836/walletlink/internal/version"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
//
//nolint:gochecknoglobals // Build metadata injected at link time
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	err := cli.Execute(buildinfo.Info{Version: version, Commit: commit, Date: date})
	os.Exit(cli.ExitCode(err))
}
