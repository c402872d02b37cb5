// Package commands holds cracectl's cobra command tree, one file per
// subcommand.
package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd is the base command when cracectl is called with no subcommand.
var RootCmd = &cobra.Command{
	Use:   "cracectl",
	Short: "cracectl - code retrieval and context assembly engine control CLI",
	Long: `cracectl manages the CRACE daemon: the voice-driven code-intelligence
backend that indexes a project's symbols and call graph, builds a semantic
vector index over them, and assembles token-budgeted context for a
downstream LLM call.

Commands:
  serve    Start the daemon (HTTP control plane + WebSocket voice channel)
  index    Build (or rebuild) the symbol and embedding index for a project
  search   Search a project's symbols by keyword and semantically
  config   Configure embedding providers (interactive wizard or flags)
  doctor   Check that the configured embedding providers are reachable

Use "cracectl [command] --help" for more information about a command.`,
}

func init() {
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(indexCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(configCmd)
	RootCmd.AddCommand(doctorCmd)
}
