package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newChatCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chat <project> <message>...",
		Short:   "Send one message to a project's schema designer",
		Args:    cobra.MinimumNArgs(2),
		Example: `  keymap chat Shop "I need customers, orders and products"`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			r, err := a.newRouter(store)
			if err != nil {
				return err
			}

			project, err := resolveProject(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}

			reply, err := r.Turn(cmd.Context(), project.ID, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Message)
			if reply.Schema != nil {
				data, err := json.MarshalIndent(reply.Schema, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			}
			return nil
		},
	}
	return cmd
}
