package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vibranic/central/internal/api/auth"
)

var (
	tokenHolder string
	tokenTTL    time.Duration
	tokenSecret string
)

// tokenCmd mints an admin bearer token
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token",
	Long: `Mint a bearer token for the hub's admin API.

Tokens are signed locally with the hub's shared admin secret, so this
command needs no network access. The secret comes from --secret, the
VIBRANIC_ADMIN_SECRET environment variable, or an interactive prompt.

Example:
  hubctl token --name ops --ttl 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = os.Getenv("VIBRANIC_ADMIN_SECRET")
		}
		if secret == "" {
			var err error
			secret, err = promptSecret("Admin secret: ")
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
		}
		if secret == "" {
			return fmt.Errorf("admin secret is required")
		}

		tokens := auth.NewTokenService([]byte(secret), tokenTTL)
		token, err := tokens.GenerateToken(tokenHolder)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		if output == "json" {
			return printJSON(map[string]any{
				"token":     token,
				"name":      tokenHolder,
				"expiresAt": time.Now().Add(tokenTTL).Format(time.RFC3339),
			})
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenHolder, "name", "admin", "name recorded in the token claims")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "admin secret (prefer VIBRANIC_ADMIN_SECRET)")
}

// promptSecret prompts for a secret without echoing to the terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Check if stdin is a terminal
	fd := syscall.Stdin
	if term.IsTerminal(fd) {
		secretBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(secretBytes), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	reader := bufio.NewReader(os.Stdin)
	secret, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(secret), nil
}
