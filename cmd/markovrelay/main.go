// markovrelay - Discord Markov chain bot
//
// Learns sentences from the channels it can read and answers when named.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal"
	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal/auth"
	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal/chat"
	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal/gateway"
	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal/migrate"
	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal/version"
)

func NewMarkovrelayCommand() *cobra.Command {
	short := fmt.Sprintf("%s markovrelay - Discord Markov bot v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "markovrelay",
		Short:   short,
		Example: "markovrelay gateway",
	}
	cmd.PersistentFlags().StringVarP(&internal.ConfigPathOverride, "config", "c", "",
		"Config file (default: ~/.markovrelay/config.yaml or config.json)")

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		chat.NewChatCommand(),
		auth.NewAuthCommand(),
		migrate.NewMigrateCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewMarkovrelayCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
