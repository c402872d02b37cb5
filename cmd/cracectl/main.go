// Command cracectl is CRACE's control CLI: it starts the daemon, walks a
// project through a one-shot index build, runs the interactive config
// wizard, and probes the embedding providers a running daemon depends on.
// The command tree lives in the commands package, one file per
// subcommand; a single binary serves both one-shot commands and the
// daemon, since CRACE's
// daemon serves HTTP/WebSocket rather than accepting a Unix-socket client.
package main

import (
	"os"

	"github.com/crace/crace/cmd/cracectl/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`cracectl version {{.Version}}
`)

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
