package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RichardoC/keymap/internal/api"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			r, err := a.newRouter(store)
			if err != nil {
				return err
			}

			handler := api.NewHandler(store, r, a.logger)
			srv := &http.Server{Addr: addr, Handler: handler.Routes()}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("failed to shut down server", zap.Error(err))
				}
			}()

			a.logger.Info("Starting server",
				zap.String("addr", addr),
				zap.String("dbPath", a.cfg.Database.Path),
				zap.String("model", a.cfg.LLM.Model),
				zap.String("style", string(r.Style())))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config, :8100)")
	return cmd
}
