package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/musher-dev/lookout/internal/config"
	clierrors "github.com/musher-dev/lookout/internal/errors"
	"github.com/musher-dev/lookout/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `View and modify Lookout configuration settings.

Settings are read from the config file, then overridden by LOOKOUT_*
environment variables (for example LOOKOUT_API_URL for api.url).`,
		Example: `  lookout config list
  lookout config set api.url http://localhost:8000`,
	}

	cmd.AddCommand(newConfigListCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())

	return cmd
}

func newConfigListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		Long: `Display every configuration setting and its effective value, defaults
included. --format renders the settings as a yaml, toml or json document.`,
		Example: `  lookout config list
  lookout config list --format toml
  lookout config list --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			cfg := config.Load()
			settings := cfg.All()

			if out.JSON && format == "" {
				format = "json"
			}

			if format != "" {
				rendered, err := config.Render(settings, format)
				if err != nil {
					return &clierrors.CLIError{
						Message: fmt.Sprintf("Cannot render configuration: %v", err),
						Code:    clierrors.ExitUsage,
					}
				}

				out.Print("%s", rendered)

				return nil
			}

			for _, key := range config.SortedKeys(settings) {
				out.Print("%s = %v\n", key, cfg.Get(key))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Render as a document: yaml, toml, json")

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Long:    `Retrieve and display the current value of a single configuration key.`,
		Example: `  lookout config get api.url`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key := strings.ToLower(args[0])
			value := config.Load().Get(key)

			if value == nil {
				out.Muted("%s is not set", key)
				return nil
			}

			if out.JSON {
				return out.PrintJSON(map[string]any{key: value})
			}

			out.Print("%s = %v\n", key, value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration key to the given value. The value is persisted to the
config file. Only known keys are accepted; run 'lookout config list' to see them.`,
		Example: `  lookout config set api.url https://predict.example.com
  lookout config set client.timeout 45s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.FromContext(cmd.Context())
			key, value := strings.ToLower(args[0]), args[1]

			if !knownSetting(key) {
				return &clierrors.CLIError{
					Message: fmt.Sprintf("Unknown setting %q", key),
					Hint:    "Run 'lookout config list' to see available settings",
					Code:    clierrors.ExitUsage,
				}
			}

			if key == config.KeyAPIURL {
				validated, err := validateAPIURL(value)
				if err != nil {
					return &clierrors.CLIError{
						Message: fmt.Sprintf("Invalid API URL: %v", err),
						Hint:    "Use a full URL such as http://localhost:8000",
						Code:    clierrors.ExitUsage,
					}
				}

				value = validated
			}

			if err := config.Load().Set(key, value); err != nil {
				return clierrors.ConfigFailed("set config", err)
			}

			out.Success("Set %s = %s", key, value)

			return nil
		},
	}
}

func knownSetting(key string) bool {
	for _, s := range config.Settings {
		if s.Key == key {
			return true
		}
	}

	return false
}
