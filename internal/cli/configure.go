package cli

import (
	"fmt"
	"os"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"

	"github.com/PVL-Linh/LegalBot-AI/internal/config"
)

const secretAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	configureForce  bool
	configureSecret string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a starter configuration file",
	Long: `Write a starter configuration file with the default model chain,
stores and search settings. A random token secret is generated unless
--secret-key is given. API keys are read from the environment at startup
(GROQ_API_KEY, GOOGLE_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY).`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureForce, "force", false, "overwrite an existing config file")
	configureCmd.Flags().StringVar(&configureSecret, "secret-key", "", "token signing secret (default: random)")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	configPath := loader.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil && !configureForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.DefaultConfig()
	cfg.Auth.SecretKey = configureSecret
	if cfg.Auth.SecretKey == "" {
		secret, err := gonanoid.Generate(secretAlphabet, 48)
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		cfg.Auth.SecretKey = secret
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
	fmt.Fprintln(out, "Set a provider API key, then start LegalBot with: legalbot serve")

	return nil
}
