package cmd

import (
	"fmt"

	"github.com/arin/streamrows/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage streamrows configuration",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Set the API key shared by every row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0]); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "API key saved successfully.")
		return nil
	},
}

var setURLCmd = &cobra.Command{
	Use:   "set-url <endpoint>",
	Short: "Set the default chat completions endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetEndpoint(args[0]); err != nil {
			return fmt.Errorf("failed to save endpoint: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Endpoint set to %s.\n", args[0])
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model-name>",
	Short: "Set the model (default: gpt-3.5-turbo)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Model set to %s.\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Endpoint:   %s\n", cfg.Endpoint)
		fmt.Fprintf(w, "Model:      %s\n", cfg.Model)
		fmt.Fprintf(w, "Max Tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(w, "Rows:       %d\n", cfg.Rows)
		if cfg.Timeout > 0 {
			fmt.Fprintf(w, "Timeout:    %s\n", cfg.Timeout)
		}
		fmt.Fprintf(w, "API Key:    %s\n", cfg.MaskedAPIKey())
		fmt.Fprintf(w, "Log:        %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
		fmt.Fprintf(w, "Config Dir: %s\n", config.Dir())
		return nil
	},
}

func init() {
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setURLCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(showCmd)
}
