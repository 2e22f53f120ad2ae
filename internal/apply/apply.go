// Package apply executes a compiled schema against a live database.
package apply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RichardoC/keymap/internal/ddl"
	"github.com/RichardoC/keymap/internal/schema"
)

// Drivers lists the database/sql driver names Open accepts.
var Drivers = []string{"sqlite3", "pgx", "mysql"}

var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrNoColumns     = errors.New("table has no columns")
)

// Applier runs CREATE TABLE statements over one connection pool.
type Applier struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// Result reports what Apply did.
type Result struct {
	Tables []string
	DryRun bool
}

// Open connects to dsn with the named driver and checks the connection.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Applier, error) {
	if !slices.Contains(Drivers, driver) {
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, driver)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to ping database: %w", err), db.Close())
	}

	return &Applier{db: db, driver: driver, logger: logger.With(zap.String("driver", driver))}, nil
}

func (a *Applier) Close() error {
	return a.db.Close()
}

// Apply creates every table of s inside a single transaction. Tables are
// created in dependency order, see Order. A dry run executes the same
// statements and then rolls back, so it reports exactly the errors a real run
// would. Drivers that commit DDL implicitly, such as MySQL, cannot undo a dry
// run.
func (a *Applier) Apply(ctx context.Context, s *schema.Schema, dryRun bool) (res Result, err error) {
	res.DryRun = dryRun
	if s.IsEmpty() {
		return res, nil
	}
	for _, t := range s.Tables {
		if len(t.Columns) == 0 {
			return res, fmt.Errorf("table %q: %w", t.Name, ErrNoColumns)
		}
	}

	ordered := &schema.Schema{Name: s.Name, Tables: Order(s)}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil || dryRun {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = multierr.Append(err, fmt.Errorf("failed to roll back: %w", rbErr))
			}
		}
	}()

	for i, stmt := range ddl.Statements(ordered) {
		table := ordered.Tables[i].Name
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return res, fmt.Errorf("failed to create table %q: %w", table, err)
		}
		a.logger.Debug("created table", zap.String("table", table), zap.Bool("dryRun", dryRun))
		res.Tables = append(res.Tables, table)
	}

	if dryRun {
		a.logger.Info("dry run complete, rolling back", zap.Int("tables", len(res.Tables)))
		return res, nil
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit: %w", err)
	}
	a.logger.Info("schema applied", zap.Int("tables", len(res.Tables)))
	return res, nil
}

// Order returns the tables of s so that every table comes after the tables
// its foreign keys reference. PostgreSQL and MySQL reject a reference to a
// table that does not exist yet. Table names match case-insensitively, as
// unquoted identifiers do. Self references and unknown targets are ignored.
// Ties keep stored order, and a cycle is broken by taking the earliest
// remaining table.
func Order(s *schema.Schema) []schema.Table {
	if s == nil {
		return nil
	}
	index := make(map[string]int, len(s.Tables))
	for i, t := range s.Tables {
		index[strings.ToLower(t.Name)] = i
	}
	deps := make([][]int, len(s.Tables))
	for i, t := range s.Tables {
		for _, ref := range ddl.References(t) {
			if j, ok := index[strings.ToLower(ref)]; ok && j != i {
				deps[i] = append(deps[i], j)
			}
		}
	}

	placed := make([]bool, len(s.Tables))
	ordered := make([]schema.Table, 0, len(s.Tables))
	ready := func(i int) bool {
		for _, j := range deps[i] {
			if !placed[j] {
				return false
			}
		}
		return true
	}
	for len(ordered) < len(s.Tables) {
		next := -1
		for i := range s.Tables {
			if !placed[i] && ready(i) {
				next = i
				break
			}
		}
		if next < 0 {
			for i := range s.Tables {
				if !placed[i] {
					next = i
					break
				}
			}
		}
		placed[next] = true
		ordered = append(ordered, s.Tables[next])
	}
	return ordered
}
