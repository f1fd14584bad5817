package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibranic/central/internal/models"
)

var (
	alertName      string
	alertAppID     string
	alertCondition string
	alertParams    string
	alertSeverity  string
	alertDisabled  bool

	historyAppID  string
	historyLimit  int
	historyOffset int
)

// alertCmd represents the alert command group
var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Alert rule management commands",
	Long: `Commands for managing alert rules and viewing triggered alerts.

Conditions:
  - high_severity: fires on every high severity event
  - any_error: same trigger as high_severity, kept for compatibility
  - app_down: fires when an app transitions to down
  - metric_threshold: fires when a metric crosses a threshold

Examples:
  # List alert rules
  hubctl alert list

  # Alert on high CPU for one app
  hubctl alert create --name high-cpu --app-id 3f1a... \
    --condition metric_threshold \
    --params '{"metric_key":"cpu","operator":">","threshold":90}'

  # Show recent triggered alerts
  hubctl alert history --limit 20`,
}

// alertListCmd lists all alert rules
var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var rules []*models.AlertRule
		if err := c.do(http.MethodGet, "/api/v1/alerts", nil, nil, &rules); err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}

		if output == "json" {
			return printJSON(rules)
		}

		if len(rules) == 0 {
			fmt.Println("No alert rules found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-24s  %-20s  %-8s  %s\n",
			"ID", "NAME", "CONDITION", "ENABLED", "APP")
		fmt.Println(strings.Repeat("-", 110))

		for _, rule := range rules {
			appID := rule.AppID
			if appID == "" {
				appID = "(all)"
			}
			fmt.Printf("%-36s  %-24s  %-20s  %-8t  %s\n",
				rule.ID, rule.Name, rule.Condition, rule.Enabled, appID)
		}
		fmt.Printf("\nTotal: %d rule(s)\n", len(rules))

		return nil
	},
}

// alertCreateCmd creates a new alert rule
var alertCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new alert rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertName == "" {
			return fmt.Errorf("--name is required")
		}
		if alertCondition == "" {
			return fmt.Errorf("--condition is required")
		}

		req := map[string]any{
			"name":      alertName,
			"appId":     alertAppID,
			"condition": alertCondition,
			"severity":  alertSeverity,
			"enabled":   !alertDisabled,
		}
		if alertParams != "" {
			var params map[string]any
			if err := json.Unmarshal([]byte(alertParams), &params); err != nil {
				return fmt.Errorf("invalid --params JSON: %w", err)
			}
			req["params"] = params
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		var rule models.AlertRule
		if err := c.do(http.MethodPost, "/api/v1/alerts", nil, req, &rule); err != nil {
			return fmt.Errorf("create alert: %w", err)
		}

		if output == "json" {
			return printJSON(rule)
		}

		fmt.Printf("\nAlert rule created successfully:\n")
		fmt.Printf("  ID:        %s\n", rule.ID)
		fmt.Printf("  Name:      %s\n", rule.Name)
		fmt.Printf("  Condition: %s\n", rule.Condition)
		fmt.Printf("  Enabled:   %t\n", rule.Enabled)

		return nil
	},
}

// alertDeleteCmd deletes an alert rule
var alertDeleteCmd = &cobra.Command{
	Use:   "delete <alert-id>",
	Short: "Delete an alert rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.do(http.MethodDelete, "/api/v1/alerts/"+args[0], nil, nil, nil); err != nil {
			return fmt.Errorf("delete alert: %w", err)
		}

		fmt.Printf("Alert rule %s deleted.\n", args[0])
		return nil
	},
}

// alertHistoryCmd shows triggered alerts
var alertHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List triggered alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		query := url.Values{}
		if historyAppID != "" {
			query.Set("appId", historyAppID)
		}
		if historyLimit > 0 {
			query.Set("limit", strconv.Itoa(historyLimit))
		}
		if historyOffset > 0 {
			query.Set("offset", strconv.Itoa(historyOffset))
		}

		var page struct {
			Items  []*models.AlertHistory `json:"items"`
			Total  int64                  `json:"total"`
			Limit  int                    `json:"limit"`
			Offset int                    `json:"offset"`
		}
		if err := c.do(http.MethodGet, "/api/v1/alerts/history", query, nil, &page); err != nil {
			return fmt.Errorf("list alert history: %w", err)
		}

		if output == "json" {
			return printJSON(page)
		}

		if len(page.Items) == 0 {
			fmt.Println("No triggered alerts.")
			return nil
		}

		fmt.Printf("\n%-20s  %-24s  %-36s  %s\n",
			"TRIGGERED", "RULE", "APP", "MESSAGE")
		fmt.Println(strings.Repeat("-", 120))

		for _, h := range page.Items {
			fmt.Printf("%-20s  %-24s  %-36s  %s\n",
				h.TriggeredAt.Format("2006-01-02 15:04:05"), h.AlertName, h.AppID, h.Message)
		}
		fmt.Printf("\nShowing %d of %d alert(s)\n", len(page.Items), page.Total)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertListCmd)
	alertCmd.AddCommand(alertCreateCmd)
	alertCmd.AddCommand(alertDeleteCmd)
	alertCmd.AddCommand(alertHistoryCmd)

	alertCreateCmd.Flags().StringVar(&alertName, "name", "", "rule name (required)")
	alertCreateCmd.Flags().StringVar(&alertAppID, "app-id", "", "restrict the rule to one application")
	alertCreateCmd.Flags().StringVar(&alertCondition, "condition", "", "high_severity, any_error, app_down, or metric_threshold (required)")
	alertCreateCmd.Flags().StringVar(&alertParams, "params", "", "condition parameters as JSON")
	alertCreateCmd.Flags().StringVar(&alertSeverity, "severity", "", "display severity label (e.g. critical, warning)")
	alertCreateCmd.Flags().BoolVar(&alertDisabled, "disabled", false, "create the rule disabled")
	alertCreateCmd.MarkFlagRequired("name")
	alertCreateCmd.MarkFlagRequired("condition")

	alertHistoryCmd.Flags().StringVar(&historyAppID, "app-id", "", "filter by application")
	alertHistoryCmd.Flags().IntVar(&historyLimit, "limit", 0, "page size (default 50, max 500)")
	alertHistoryCmd.Flags().IntVar(&historyOffset, "offset", 0, "page offset")
}
