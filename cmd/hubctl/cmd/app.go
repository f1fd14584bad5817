package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibranic/central/internal/models"
)

var (
	appName        string
	appURL         string
	appDescription string
)

// appEntry mirrors the admin API's application response, which embeds
// the app record plus derived health fields.
type appEntry struct {
	models.App
	Status     models.UptimeStatus `json:"status"`
	EventCount int64               `json:"eventCount"`
	LastSeen   *time.Time          `json:"lastSeen"`
}

// appCmd represents the app command group
var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Application management commands",
	Long: `Commands for managing registered applications.

Examples:
  # List all applications
  hubctl app list

  # Register a new application
  hubctl app create --name checkout --url https://checkout.example.com

  # Rotate an application's ingestion API key
  hubctl app regenerate-key <app-id>`,
}

// appListCmd lists all applications
var appListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all applications",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var apps []appEntry
		if err := c.do(http.MethodGet, "/api/v1/apps", nil, nil, &apps); err != nil {
			return fmt.Errorf("list apps: %w", err)
		}

		if output == "json" {
			return printJSON(apps)
		}

		if len(apps) == 0 {
			fmt.Println("No applications found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-20s  %-10s  %10s  %s\n",
			"ID", "NAME", "STATUS", "EVENTS", "LAST SEEN")
		fmt.Println(strings.Repeat("-", 100))

		for _, a := range apps {
			lastSeen := "never"
			if a.LastSeen != nil {
				lastSeen = a.LastSeen.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-36s  %-20s  %-10s  %10d  %s\n",
				a.ID, a.Name, a.Status, a.EventCount, lastSeen)
		}
		fmt.Printf("\nTotal: %d application(s)\n", len(apps))

		return nil
	},
}

// appCreateCmd registers a new application
var appCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new application",
	Long: `Register a new application with the hub.

The generated ingestion API key is printed once. Store it securely;
it can only be replaced, not retrieved.

Example:
  hubctl app create --name checkout --url https://checkout.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appName == "" {
			return fmt.Errorf("--name is required")
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"name":        appName,
			"url":         appURL,
			"description": appDescription,
		}

		var app models.App
		if err := c.do(http.MethodPost, "/api/v1/apps", nil, req, &app); err != nil {
			return fmt.Errorf("create app: %w", err)
		}

		if output == "json" {
			return printJSON(app)
		}

		fmt.Printf("\nApplication created successfully:\n")
		fmt.Printf("  ID:      %s\n", app.ID)
		fmt.Printf("  Name:    %s\n", app.Name)
		fmt.Printf("  API key: %s\n", app.APIKey)

		return nil
	},
}

// appDeleteCmd deletes an application and its telemetry
var appDeleteCmd = &cobra.Command{
	Use:   "delete <app-id>",
	Short: "Delete an application and all its telemetry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.do(http.MethodDelete, "/api/v1/apps/"+args[0], nil, nil, nil); err != nil {
			return fmt.Errorf("delete app: %w", err)
		}

		fmt.Printf("Application %s deleted.\n", args[0])
		return nil
	},
}

// appRegenerateKeyCmd rotates an application's API key
var appRegenerateKeyCmd = &cobra.Command{
	Use:   "regenerate-key <app-id>",
	Short: "Rotate an application's ingestion API key",
	Long: `Generate a new ingestion API key for an application.

The old key stops working immediately. Update every exporter using it.

Example:
  hubctl app regenerate-key 3f1a...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var resp struct {
			APIKey string `json:"apiKey"`
		}
		if err := c.do(http.MethodPost, "/api/v1/apps/"+args[0]+"/regenerate-key", nil, nil, &resp); err != nil {
			return fmt.Errorf("regenerate key: %w", err)
		}

		if output == "json" {
			return printJSON(resp)
		}

		fmt.Printf("New API key: %s\n", resp.APIKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(appCmd)
	appCmd.AddCommand(appListCmd)
	appCmd.AddCommand(appCreateCmd)
	appCmd.AddCommand(appDeleteCmd)
	appCmd.AddCommand(appRegenerateKeyCmd)

	appCreateCmd.Flags().StringVar(&appName, "name", "", "application name (required)")
	appCreateCmd.Flags().StringVar(&appURL, "url", "", "application URL")
	appCreateCmd.Flags().StringVar(&appDescription, "description", "", "application description")
	appCreateCmd.MarkFlagRequired("name")
}
