package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PVL-Linh/LegalBot-AI/pkg/auth"
)

var (
	tokenUserID string
	tokenEmail  string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token",
	Long: `Issue a bearer token signed with the configured secret.
Useful for local testing of /ws/chat and the HTTP endpoints.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user-id", "", "user id carried in the token subject (required)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "optional email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenUserID == "" {
		return fmt.Errorf("--user-id is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	validator, err := auth.NewValidator(cfg.Auth.SecretKey, cfg.Auth.Algorithm)
	if err != nil {
		return err
	}
	token, err := validator.Issue(auth.User{ID: tokenUserID, Email: tokenEmail}, tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
