package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the tablebook application
var rootCmd = &cobra.Command{
	Use:   "tablebook",
	Short: "Reservation scheduling server backed by a shared calendar",
	Long: `tablebook exposes restaurant reservation scheduling as MCP tools and a
small REST gateway. Reservations live as events in a shared booking
calendar; conflict checking treats every slot as a half-open interval,
so back-to-back bookings never collide.

It can run as:
  - An MCP (Model Context Protocol) server for AI assistants (default)
  - A REST gateway for plain HTTP clients`,
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
	rootCmd.SetVersionTemplate(`{{printf "tablebook version %s\n" .Version}}`)

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
