package dbmlgen

import (
	"context"
	"fmt"
	"regexp"

	"github.com/tordrt/dbmlgen/internal/schema"
)

// Match is a column without any reference entry whose name matched a search
type Match struct {
	Database string
	Table    string
	Column   string
}

// Key returns the qualified column key of the match
func (m Match) Key() string {
	return schema.ColumnKey(m.Database, m.Table, m.Column)
}

// SearchResult lists the unmapped matches and how many custom references were added
type SearchResult struct {
	Matches []Match
	Added   int
}

// Search finds columns whose name matches pattern and whose key appears in
// neither references nor custom_references. When referencedKey is set, each
// match is mapped to it in custom_references and the project is saved.
func (w *Workspace) Search(_ context.Context, project, pattern, referencedKey string) (*SearchResult, error) {
	w.printf("Looking for unmapped columns in the %s project that match %s\n", project, pattern)

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid search pattern '%s': %w", pattern, err)
	}

	p, err := w.Store.Load(project)
	if err != nil {
		return nil, err
	}

	// the target must exist before anything is appended
	if referencedKey != "" {
		ok, err := p.HasColumn(referencedKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &schema.LookupError{Key: referencedKey, Kind: schema.ErrUnknownReferencedColumn}
		}
	}

	result := &SearchResult{}
	for _, dbName := range p.DatabaseNames() {
		database := p.Databases[dbName]
		if database == nil || database.Tables == nil {
			continue
		}
		w.logger().Debug("searching database", "database", dbName, "tables", len(database.Tables))

		for _, tableName := range database.TableNames() {
			for _, column := range database.Tables[tableName].OrderedColumns() {
				if !re.MatchString(column) {
					continue
				}
				m := Match{Database: dbName, Table: tableName, Column: column}
				key := m.Key()
				if p.References.Has(key) || p.CustomReferences.Has(key) {
					continue
				}

				result.Matches = append(result.Matches, m)
				w.printf("Found an unmapped column matching '%s': %s (%s)\n", pattern, column, schema.TableKey(dbName, tableName))
			}
		}
	}

	if referencedKey != "" {
		for _, m := range result.Matches {
			if p.CustomReferences.AppendUnique(m.Key(), referencedKey) {
				result.Added++
			}
		}
	}

	if result.Added > 0 {
		if err := w.Store.Save(project, p); err != nil {
			return nil, err
		}
		w.logger().Info("added custom references", "count", result.Added, "referenced_key", referencedKey)
	}

	return result, nil
}
