// Package cli implements the keymap command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RichardoC/keymap/internal/config"
	"github.com/RichardoC/keymap/internal/db"
	"github.com/RichardoC/keymap/internal/models"
	"github.com/RichardoC/keymap/internal/router"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	// gen replaces the configured model when set.
	gen router.Generator
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand(&app{}).ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keymap",
		Short: "Design relational schemas by chatting with a model",
		Long: `KeyMap turns a conversation about your data into a relational schema.

Each project keeps its schema and conversation in a local sqlite file. Schemas
can be exported as SQL, applied to a database or served over HTTP and MCP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: $KEYMAP_CONFIG or ./keymap.toml)")
	cmd.PersistentFlags().StringVarP(&a.dbPath, "db", "d", "", "Project database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newServeCommand(a),
		newMCPCommand(a),
		newChatCommand(a),
		newExportCommand(a),
		newApplyCommand(a),
		newRelationshipsCommand(a),
		newProjectsCommand(a),
		newConfigCommand(a),
	)
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	a.cfg = cfg

	if a.logger == nil {
		if a.verbose {
			a.logger, err = zap.NewDevelopment()
		} else {
			a.logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	}
	return nil
}

func (a *app) openStore() (*db.Database, error) {
	database, err := db.New(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project database %s: %w", a.cfg.Database.Path, err)
	}
	return database, nil
}

// newRouter needs a valid API key even when a generator is injected, so the
// failure mode matches production.
func (a *app) newRouter(store router.Store) (*router.Router, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	style, err := router.ParseStyle(a.cfg.Chat.Style)
	if err != nil {
		return nil, err
	}
	return router.New(router.Config{
		TextGenAPIKey: a.cfg.LLM.APIKey,
		Store:         store,
		Style:         style,
		Generator:     a.gen,
		BaseURL:       a.cfg.LLM.BaseURL,
		Model:         a.cfg.LLM.Model,
		Options:       a.cfg.Options(),
		Logger:        a.logger,
	})
}

// resolveProject accepts a project ID or an exact project name.
func resolveProject(ctx context.Context, store *db.Database, ref string) (*models.Project, error) {
	project, err := store.GetProject(ctx, ref)
	if err == nil {
		return project, nil
	}

	projects, listErr := store.ListProjects(ctx)
	if listErr != nil {
		return nil, listErr
	}
	for i := range projects {
		if projects[i].Name == ref {
			return &projects[i], nil
		}
	}
	return nil, err
}
