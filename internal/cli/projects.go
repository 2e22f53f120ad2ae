package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/RichardoC/keymap/internal/relation"
)

func newProjectsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "p"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(
		newProjectsListCommand(a),
		newProjectsCreateCommand(a),
		newProjectsDeleteCommand(a),
	)
	return cmd
}

func newProjectsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			projects, err := store.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Name", "Tables", "Messages", "Updated"})
			for _, p := range projects {
				t.AppendRow(table.Row{p.ID, p.Name, p.Schema.Len(), len(p.Messages), p.UpdatedAt.Local().Format(time.DateTime)})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func newProjectsCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()

			project, err := store.CreateProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), project.ID)
			return nil
		},
	}
}

func newProjectsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <project>",
		Aliases: []string{"rm"},
		Short:   "Delete a project and its conversation",
		Args:    cobra.ExactArgs(1),
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
			if err := store.DeleteProject(cmd.Context(), project.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", project.Name)
			return nil
		},
	}
}

func newRelationshipsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "relationships <project>",
		Aliases: []string{"rels"},
		Short:   "List foreign key relationships in a project's schema",
		Args:    cobra.ExactArgs(1),
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

			rels := relation.Relationships(project.Schema)
			if len(rels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No relationships.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"From", "Column", "To", "Source"})
			for _, r := range rels {
				t.AppendRow(table.Row{r.From, r.FromColumn, r.To + "." + r.ToColumn, r.Source})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}
