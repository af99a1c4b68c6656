package main

import (
	"strings"

	"github.com/koscakluka/ema-workflow/core/channels"
	"github.com/koscakluka/ema-workflow/core/dialog"
	"github.com/spf13/cobra"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var conversationID, userID, userName string

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send a single message and print the replies",
		Long: `Sends one message and prints every reply. With the sqlite session store a
conversation continues across invocations when the same --conversation is
passed, e.g. to answer "yes" to an email offer.`,
		Example: `  ema-workflow ask --conversation c-1 "What is sole source procurement?"
  ema-workflow ask --conversation c-1 yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			conversationID, userID, userName := identity(opts.cfg.Chat, conversationID, userID, userName)

			sink := channels.NewWriter(cmd.OutOrStdout(), channels.WithWrapWidth(opts.cfg.Chat.WrapWidth))
			return a.controller(sink).HandleUtterance(cmd.Context(), dialog.Utterance{
				ConversationID: conversationID,
				UserID:         userID,
				UserName:       userName,
				Text:           strings.Join(args, " "),
			})
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id (generated when empty)")
	cmd.Flags().StringVar(&userID, "user", "", "User id (defaults to the conversation id)")
	cmd.Flags().StringVar(&userName, "name", "", "User display name")
	return cmd
}
