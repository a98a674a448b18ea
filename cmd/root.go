package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calendar-mcp application
var rootCmd = &cobra.Command{
	Use:   "calendar-mcp",
	Short: "MCP server for Google Calendar mutations",
	Long: `calendar-mcp is a Model Context Protocol (MCP) server that lets AI
assistants create, update and delete Google Calendar events and query
free/busy information.

Every mutation runs through schema validation, idempotent deduplication,
a bounded worker pool with quota-aware retries, and audit logging.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calendar-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
