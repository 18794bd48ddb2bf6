package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
)

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

var (
	// Global flags
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Credential-isolating CORS relay for chat completions",
	Long: `Relay accepts chat completion requests from browsers, attaches the
upstream credential and fixed model parameters, and returns the upstream
JSON response. The credential is never exposed to callers, logs or the
audit trail.

Configuration is read from a YAML file, then RELAY_* environment variables
override individual fields.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadEnvFile,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before configuration")
}

// loadEnvFile loads the dotenv file into the process environment. Variables
// already set are not overwritten. The default file is optional; an
// explicitly named one must exist.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	err := godotenv.Load(envFile)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return cli.NewConfigError(envFile, err)
}

// loadConfig reads the configuration with environment overrides applied.
// A missing default config file means running on defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError(path, err)
	}
	return cfg, nil
}
