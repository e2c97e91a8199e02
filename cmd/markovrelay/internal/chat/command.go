package chat

import (
	"github.com/spf13/cobra"
)

func NewChatCommand() *cobra.Command {
	var (
		message string
		scope   string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the local corpus without connecting to Discord",
		Args:  cobra.NoArgs,
		Example: `  markovrelay chat
  markovrelay chat -m "what about the weather"
  markovrelay chat --scope discord:discord.com:1234567890`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return chatCmd(cmd.Context(), message, scope, debug)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single prompt and exit")
	cmd.Flags().StringVar(&scope, "scope", "", "Only draw from sentences under this address")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}
