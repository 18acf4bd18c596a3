package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tordrt/dbmlgen/internal/schema"
)

// DBMLFormatter writes tables and references as DBML
type DBMLFormatter struct {
	writer io.Writer
}

// NewDBMLFormatter creates a new DBML formatter
func NewDBMLFormatter(w io.Writer) *DBMLFormatter {
	return &DBMLFormatter{writer: w}
}

// FormatProject writes every scanned table, then the scanned references,
// then the custom references
func (f *DBMLFormatter) FormatProject(p *schema.Project) error {
	for _, dbName := range p.DatabaseNames() {
		db := p.Databases[dbName]
		if db == nil {
			continue
		}
		for _, tableName := range db.TableNames() {
			if err := f.WriteTable(dbName, tableName, db.Tables[tableName]); err != nil {
				return err
			}
		}
	}

	for _, refs := range []schema.References{p.References, p.CustomReferences} {
		var err error
		refs.Each(func(key, target string) {
			if err == nil {
				err = f.WriteRef(key, target)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// FormatSubgraph writes the tables of a resolved subgraph followed by its edges
func (f *DBMLFormatter) FormatSubgraph(sg *schema.Subgraph) error {
	for _, ref := range sg.Tables {
		if err := f.WriteTable(ref.Database, ref.Name, ref.Table); err != nil {
			return err
		}
	}
	for _, edge := range sg.Edges {
		if err := f.WriteRef(edge.From, edge.To); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable writes one table block followed by a blank line
func (f *DBMLFormatter) WriteTable(database, name string, t *schema.Table) error {
	_, err := io.WriteString(f.writer, RenderTable(t, database, name))
	return err
}

// WriteRef writes one reference line followed by a blank line
func (f *DBMLFormatter) WriteRef(key, referenced string) error {
	_, err := io.WriteString(f.writer, RenderRef(key, referenced)+"\n")
	return err
}

// RenderTable renders a table block. Columns follow their ordinal position.
func RenderTable(t *schema.Table, database, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s {\n", schema.TableKey(database, name))

	for _, colName := range columnsByOrdinal(t) {
		fmt.Fprintf(&b, "\t%s\n", formatColumn(colName, t.Columns[colName]))
	}

	if len(t.Indexes) > 0 {
		b.WriteString("\tindexes {\n")
		for _, idx := range t.Indexes {
			fmt.Fprintf(&b, "\t\t%s\n", formatIndex(idx))
		}
		b.WriteString("\t}\n")
	}

	b.WriteString("}\n\n")
	return b.String()
}

// RenderRef renders a single reference line
func RenderRef(key, referenced string) string {
	return fmt.Sprintf("Ref: %s - %s\n", key, referenced)
}

func formatColumn(name string, col *schema.Column) string {
	typeStr := col.Type
	if col.Precision != "" && col.Precision != "0" {
		typeStr = fmt.Sprintf("%s(%s)", col.Type, col.Precision)
	}

	var options []string
	if col.IsPrimaryKey {
		options = append(options, "pk")
	}
	if col.IsNullable {
		options = append(options, "null")
	} else {
		options = append(options, "not null")
	}
	if col.IsUnique {
		options = append(options, "unique")
	}
	if col.IsAutoIncrement {
		options = append(options, "increment")
	}
	if col.Default != nil {
		options = append(options, fmt.Sprintf("default: \"%s\"", *col.Default))
	}

	return fmt.Sprintf("%s %s [ %s ]", name, typeStr, strings.Join(options, ", "))
}

func formatIndex(idx schema.Index) string {
	cols := strings.Join(idx.Columns, ", ")
	if len(idx.Columns) > 1 {
		cols = "(" + cols + ")"
	}
	if idx.IsPrimaryKey {
		return cols + " [ pk ]"
	}
	return cols
}

// columnsByOrdinal places each column in a slot indexed by its ordinal
// position; empty slots are skipped. Columns sharing a slot are ordered by
// name, and columns without a position come last.
func columnsByOrdinal(t *schema.Table) []string {
	maxPos := 0
	for _, col := range t.Columns {
		if col.OrdinalPosition > maxPos {
			maxPos = col.OrdinalPosition
		}
	}

	slots := make([][]string, maxPos+1)
	var unplaced []string
	for name, col := range t.Columns {
		if col.OrdinalPosition <= 0 {
			unplaced = append(unplaced, name)
			continue
		}
		slots[col.OrdinalPosition] = append(slots[col.OrdinalPosition], name)
	}

	ordered := make([]string, 0, len(t.Columns))
	for _, slot := range slots {
		sort.Strings(slot)
		ordered = append(ordered, slot...)
	}
	sort.Strings(unplaced)
	return append(ordered, unplaced...)
}
