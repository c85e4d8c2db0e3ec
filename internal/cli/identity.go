package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Identity commands",
	}

	cmd.AddCommand(newIdentityNewCmd())
	cmd.AddCommand(newIdentityMeCmd())

	return cmd
}

func newIdentityNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Request a new identity and save its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity
			if err := client.Post(cmd.Context(), "/api/v1/identities", nil, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newIdentityMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the identity the saved token resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Identity
			if err := client.Get(cmd.Context(), "/api/v1/identities/me", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
