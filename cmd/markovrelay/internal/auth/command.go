package auth

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/markovrelay/cmd/markovrelay/internal"
	"github.com/tinyland-inc/markovrelay/pkg/auth"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored Discord bot token",
	}

	cmd.AddCommand(
		newLoginCommand(os.Stdin),
		newLogoutCommand(),
		newStatusCommand(),
	)
	return cmd
}

func newLoginCommand(in io.Reader) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Paste a bot token and store it in the credential file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred, err := auth.LoginPasteToken(in, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			path := internal.GetCredentialPath()
			if err := auth.SaveCredential(path, cred); err != nil {
				return fmt.Errorf("saving credential: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Token saved to %s\n", path)
			return nil
		},
	}
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored bot token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := auth.DeleteCredential(internal.GetCredentialPath()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Token removed")
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a bot token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := internal.GetCredentialPath()
			cred, err := auth.LoadCredential(path)
			if errors.Is(err, auth.ErrNoCredential) {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored token. Run: markovrelay auth login")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token stored in %s (saved %s)\n", path, cred.SavedAt.Format("2006-01-02 15:04"))
			return nil
		},
	}
}
