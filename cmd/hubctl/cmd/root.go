// Package cmd contains the CLI commands for hubctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Used for flags
	serverURL  string
	adminToken string
	verbose    bool
	output     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "hubctl - Vibranic Central admin CLI",
	Long: `hubctl manages a Vibranic Central hub over its admin API.

Admin endpoints require a bearer token. Mint one with "hubctl token"
using the hub's shared admin secret, then pass it via --token or the
VIBRANIC_TOKEN environment variable.

Examples:
  # Register an application and print its API key
  hubctl app create --name checkout --url https://checkout.example.com

  # List applications with derived health status
  hubctl app list

  # Create a metric threshold alert rule
  hubctl alert create --name high-cpu --condition metric_threshold \
    --params '{"metric_key":"cpu","operator":">","threshold":90}'

  # Mint an admin token valid for one hour
  hubctl token --name ops --ttl 1h`,
	// Run when no subcommand is specified
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServerURL(), "hub base URL")
	rootCmd.PersistentFlags().StringVarP(&adminToken, "token", "t", os.Getenv("VIBRANIC_TOKEN"), "admin bearer token")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

func defaultServerURL() string {
	if v := os.Getenv("VIBRANIC_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}
