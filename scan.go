package dbmlgen

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tordrt/dbmlgen/internal/db"
	"github.com/tordrt/dbmlgen/internal/schema"
)

// scanResult holds the merged metadata of one database until every scan is done
type scanResult struct {
	tables     map[string]*schema.Table
	references schema.References
	err        error
}

// Scan reads the tables and foreign keys of every database in the project and
// saves them. A database that fails keeps its previous state while the others
// are still scanned and saved; the failures are returned together.
func (w *Workspace) Scan(ctx context.Context, project string) error {
	w.printf("Scanning project %s\n", project)

	p, err := w.Store.Load(project)
	if err != nil {
		return err
	}

	names := p.DatabaseNames()
	results := make([]scanResult, len(names))

	limit := w.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, name := range names {
		database := p.Databases[name]
		if database == nil {
			continue
		}
		conn := database.Connection
		i, name := i, name
		g.Go(func() error {
			results[i] = w.scanDatabase(ctx, name, conn)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, name := range names {
		res := results[i]
		if res.err != nil {
			w.logger().Error("scan failed", "database", name, "error", res.err)
			errs = append(errs, res.err)
			continue
		}
		if res.tables == nil {
			continue
		}
		p.Databases[name].Tables = res.tables
		schema.ReplaceDatabaseReferences(&p.References, name, res.references)
		w.logger().Info("scanned database", "database", name, "tables", len(res.tables), "references", res.references.Len())
	}

	if err := w.Store.Save(project, p); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// scanDatabase runs both engine scans of one database. It never touches the project.
func (w *Workspace) scanDatabase(ctx context.Context, name string, conn schema.Connection) scanResult {
	w.logger().Debug("scanning database", "database", name, "target", db.Redact(conn))

	engine, err := w.opener()(ctx, conn)
	if err != nil {
		return scanResult{err: fmt.Errorf("failed to scan database %s: %w", name, err)}
	}
	defer func() {
		if err := engine.Close(); err != nil {
			w.logger().Warn("failed to close connection", "database", name, "error", err)
		}
	}()

	rows, err := engine.ScanTablesAndColumns(ctx)
	if err != nil {
		return scanResult{err: fmt.Errorf("failed to scan database %s: %w", name, err)}
	}

	refRows, err := engine.ScanReferences(ctx)
	if err != nil {
		return scanResult{err: fmt.Errorf("failed to scan database %s: %w", name, err)}
	}

	namer := db.TableNamer(conn)
	res := scanResult{tables: schema.MergeColumns(rows, namer)}
	schema.MergeReferences(&res.references, name, refRows, namer)
	return res
}
