package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/RichardoC/keymap/internal/dbml"
	"github.com/RichardoC/keymap/internal/ddl"
)

func newExportCommand(a *app) *cobra.Command {
	var output string
	var useName bool
	var format string

	cmd := &cobra.Command{
		Use:   "export <project>",
		Short: "Print a project's schema as SQL or DBML",
		Args:  cobra.ExactArgs(1),
		Example: `  keymap export Shop
  keymap export Shop -o shop.sql
  keymap export Shop --file
  keymap export Shop --format dbml`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			project, err := resolveProject(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}

			var script string
			filename := ddl.FileName(project.Name)
			switch format {
			case "sql":
				script = ddl.Compile(project.CurrentSchema())
			case "dbml":
				script = dbml.Generate(project.CurrentSchema())
				filename = strings.TrimSuffix(filename, ".sql") + ".dbml"
			default:
				return fmt.Errorf("unknown format %q (use sql or dbml)", format)
			}

			if useName && output == "" {
				output = filename
			}
			if output == "" || output == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), script)
				return err
			}
			if err := os.WriteFile(output, []byte(script), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVarP(&useName, "file", "f", false, "Write to a file named after the project")
	cmd.Flags().StringVar(&format, "format", "sql", "Output format: sql or dbml")
	return cmd
}
