package dbmlgen

import (
	"context"

	"github.com/tordrt/dbmlgen/internal/schema"
)

// Clean drops every scanned table and the scanned references. Connections and
// custom references are kept.
func Clean(p *schema.Project) {
	for _, database := range p.Databases {
		if database != nil {
			database.Tables = nil
		}
	}
	p.References = schema.References{}
}

// Clean removes the scan results of a project and saves it
func (w *Workspace) Clean(_ context.Context, project string) error {
	w.printf("Cleaning project '%s'\n", project)

	p, err := w.Store.Load(project)
	if err != nil {
		return err
	}

	for _, name := range p.DatabaseNames() {
		w.printf("Cleaning database %s\n", name)
	}
	Clean(p)

	return w.Store.Save(project, p)
}
