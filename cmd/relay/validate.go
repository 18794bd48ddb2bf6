package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
)

var validateFlags struct {
	checkCredential bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file, apply RELAY_* environment overrides and
report every invalid field.

With --check-credential the configured credential source is also read.
The credential value itself is never printed.

Examples:
  relay validate
  relay validate --config /etc/relay/config.yaml --check-credential`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkCredential, "check-credential", false, "read the credential source")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Configuration valid")
	printSummary(cmd, cfg)

	if !validateFlags.checkCredential {
		return nil
	}

	source, err := newCredentialSource(cfg.Credential, discardLogger())
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := source.Credential(ctx); err != nil {
		return cli.NewCommandError("validate", err)
	}
	fmt.Fprintln(out, "✓ Credential available")
	return nil
}

func printSummary(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  listen:     %s (relay path %s, tls %t)\n", cfg.Proxy.ListenAddress, cfg.Proxy.RelayPath, cfg.Proxy.TLS.Enabled)
	fmt.Fprintf(out, "  upstream:   %s\n", cfg.Upstream.Endpoint)
	fmt.Fprintf(out, "  model:      %s (max_tokens %d, temperature %g, frequency_penalty %g)\n",
		cfg.Upstream.Model, cfg.Upstream.MaxTokens, cfg.Upstream.Temperature, cfg.Upstream.FrequencyPenalty)

	switch cfg.Credential.Source {
	case "file":
		fmt.Fprintf(out, "  credential: file %s\n", cfg.Credential.FilePath)
	default:
		fmt.Fprintf(out, "  credential: env %s\n", cfg.Credential.EnvVar)
	}

	if cfg.Audit.Enabled {
		fmt.Fprintf(out, "  audit:      %s (retention %d days)\n", cfg.Audit.Backend, cfg.Audit.RetentionDays)
	} else {
		fmt.Fprintln(out, "  audit:      disabled")
	}
}
