package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RichardoC/keymap/internal/mcpserver"
)

func newMCPCommand(a *app) *cobra.Command {
	var transport string
	var addr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the Model Context Protocol server",
		Example: `  keymap mcp
  keymap mcp --transport http --addr :8081`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			r, err := a.newRouter(store)
			if err != nil {
				return err
			}
			srv := mcpserver.New(store, r, a.logger)

			switch transport {
			case "stdio":
				a.logger.Info("Starting MCP server on stdio")
				return mcpserver.RunStdio(cmd.Context(), srv)
			case "http":
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				a.logger.Info("Starting MCP server on HTTP", zap.String("addr", addr))
				return mcpserver.RunHTTP(cmd.Context(), srv, addr)
			default:
				return fmt.Errorf("unknown transport %q (use stdio or http)", transport)
			}
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "HTTP listen address (http transport only)")
	return cmd
}
