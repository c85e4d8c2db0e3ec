package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newLobbyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lobby",
		Short: "Lobby commands",
	}

	cmd.AddCommand(newLobbyCreateCmd())
	cmd.AddCommand(newLobbyJoinCmd())
	cmd.AddCommand(newLobbyIncrementCmd())
	cmd.AddCommand(newLobbyGetCmd())
	cmd.AddCommand(newLobbyListCmd())

	return cmd
}

func lobbyPath(code, action string) string {
	p := "/api/v1/lobbies/" + url.PathEscape(code)
	if action != "" {
		p += "/" + action
	}
	return p
}

func newLobbyCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <code>",
		Short: "Create a lobby and take its red slot",
		Long:  "Create a lobby under a 4-12 character alphanumeric code. Codes are case-insensitive.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Lobby
			if err := client.Post(cmd.Context(), "/api/v1/lobbies", map[string]string{"code": args[0]}, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newLobbyJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Take the first free slot in a lobby",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Lobby
			if err := client.Post(cmd.Context(), lobbyPath(args[0], "join"), nil, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newLobbyIncrementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "increment <code>",
		Short: "Advance the counter of your slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Lobby
			if err := client.Post(cmd.Context(), lobbyPath(args[0], "increment"), nil, &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newLobbyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Show a lobby",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Lobby
			if err := client.Get(cmd.Context(), lobbyPath(args[0], ""), &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

func newLobbyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all lobbies",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Lobby
			if err := client.Get(cmd.Context(), "/api/v1/lobbies", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}
