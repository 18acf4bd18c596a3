package dbmlgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tordrt/dbmlgen/internal/formatter"
	"github.com/tordrt/dbmlgen/internal/schema"
)

// Generate renders a project as DBML. With a starting table key only that
// table and the tables it depends on are rendered. Output goes to dest, or to
// the project's .dbml file in the workspace root when dest is nil. The project
// file is never modified.
func (w *Workspace) Generate(_ context.Context, project, startingTable string, dest io.Writer) error {
	w.printf("Generating the DBML file for project '%s'\n", project)

	p, err := w.Store.Load(project)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	f := formatter.NewDBMLFormatter(&buf)

	if startingTable == "" {
		if err := f.FormatProject(p); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	} else {
		sg, err := schema.ResolveDependencies(p, startingTable)
		if err != nil {
			return err
		}
		for _, key := range sg.Unresolved {
			w.logger().Warn("referenced table not found in project", "table", key)
		}
		if err := f.FormatSubgraph(sg); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	}

	if dest != nil {
		if _, err := dest.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	path := w.Store.OutputPath(project)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	w.logger().Info("wrote DBML file", "path", path)
	return nil
}
