package main

import (
	"github.com/koscakluka/ema-workflow/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "ema-workflow",
		Short: "Chat with the procurement workflow service",
		Long: `Relays chat messages to the procurement workflow service and streams its
progress back. Answers can lead to an offer to draft an email to the
procurement team, and drafted emails wait for your approval before they
are sent.

Configuration is read from the file given with --config and from
EMA_WORKFLOW_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")

	rootCmd.AddCommand(
		newChatCommand(opts),
		newAskCommand(opts),
		newServeCommand(opts),
		newSchemaCommand(),
	)
	return rootCmd
}
