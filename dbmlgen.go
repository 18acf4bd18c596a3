// Package dbmlgen builds a YAML intermediate representation of relational
// database schemas and compiles it into DBML.
//
// A project file lists the databases to scan. Scan fills in their tables,
// columns, indexes and foreign keys; Search maps columns that carry no foreign
// key by hand; Validate reports suspicious references; Clean drops everything
// Scan produced; Generate renders the whole project, or one table and the
// tables it depends on, as DBML.
//
// # Quick Start
//
//	ws := dbmlgen.NewWorkspace(config.NewStore("~/.dbml"), slog.Default(), os.Stdout)
//	if err := ws.Scan(ctx, "shop"); err != nil {
//		return err
//	}
//	return ws.Generate(ctx, "shop", "", nil)
//
// # Project Files
//
// Projects live in the workspace root as <project>.yaml, rendered output goes
// to <project>.dbml next to it. Tables and columns are addressed by qualified
// keys:
//
//	database___table
//	database___table.column
package dbmlgen

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/tordrt/dbmlgen/internal/config"
	"github.com/tordrt/dbmlgen/internal/db"
	"github.com/tordrt/dbmlgen/internal/logging"
)

// DefaultConcurrency is the number of databases scanned at once
const DefaultConcurrency = 4

// Workspace runs the project commands against one project store
type Workspace struct {
	Store *config.Store

	// Open connects a database engine. Defaults to db.Open.
	Open db.Opener

	// Logger receives diagnostics. User-facing output goes to Out.
	Logger *slog.Logger
	Out    io.Writer

	// Concurrency bounds the number of databases scanned at once
	Concurrency int
}

// NewWorkspace creates a new workspace with the default engines
func NewWorkspace(store *config.Store, logger *slog.Logger, out io.Writer) *Workspace {
	return &Workspace{
		Store:       store,
		Open:        db.Open,
		Logger:      logger,
		Out:         out,
		Concurrency: DefaultConcurrency,
	}
}

func (w *Workspace) printf(format string, args ...any) {
	if w.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(w.Out, format, args...)
}

func (w *Workspace) logger() *slog.Logger {
	if w.Logger == nil {
		return logging.Discard()
	}
	return w.Logger
}

func (w *Workspace) opener() db.Opener {
	if w.Open == nil {
		return db.Open
	}
	return w.Open
}
