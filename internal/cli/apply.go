package cli

import (
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/RichardoC/keymap/internal/apply"
)

func newApplyCommand(a *app) *cobra.Command {
	var driver string
	var dsn string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply <project>",
		Short: "Create a project's tables in a database",
		Args:  cobra.ExactArgs(1),
		Example: `  keymap apply Shop --driver sqlite3 --dsn ./shop.db
  keymap apply Shop --driver pgx --dsn postgres://localhost/shop --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if dsn == "" {
				return errors.New("--dsn is required")
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			project, err := resolveProject(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}

			applier, err := apply.Open(cmd.Context(), driver, dsn, a.logger)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, applier.Close()) }()

			res, err := applier.Apply(cmd.Context(), project.CurrentSchema(), dryRun)
			if err != nil {
				return err
			}

			status := "created"
			if res.DryRun {
				status = "ok (rolled back)"
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Table", "Status"})
			for _, name := range res.Tables {
				t.AppendRow(table.Row{name, status})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "sqlite3", "Database driver: "+strings.Join(apply.Drivers, ", "))
	cmd.Flags().StringVar(&dsn, "dsn", "", "Data source name for the target database")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Execute inside a transaction and roll back")
	return cmd
}
