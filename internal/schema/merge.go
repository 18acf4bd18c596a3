package schema

// TableNamer maps the (schema, table) pair of an engine row to a table key
type TableNamer func(schemaName, table string) string

// BareTableName keys tables by their name alone
func BareTableName(_, table string) string {
	return table
}

// SchemaQualifiedTableName keys tables as "schema___table"
func SchemaQualifiedTableName(schemaName, table string) string {
	return schemaName + TableSeparator + table
}

// MergeColumns folds column rows into tables. Rows must be sorted by table and
// ordinal position; a new table starts whenever (schema, table) changes.
// Composite primary keys are collapsed into an index on every resulting table.
func MergeColumns(rows []ColumnInfo, name TableNamer) map[string]*Table {
	tables := make(map[string]*Table)

	var current *Table
	var currentSchema, currentTable string
	for _, row := range rows {
		if current == nil || row.Schema != currentSchema || row.Table != currentTable {
			key := name(row.Schema, row.Table)
			current = tables[key]
			if current == nil {
				current = &Table{Columns: make(map[string]*Column)}
				tables[key] = current
			}
			currentSchema, currentTable = row.Schema, row.Table
		}

		col := &Column{
			Type:            row.DataType,
			IsPrimaryKey:    row.IsPrimaryKey,
			IsNullable:      row.IsNullable,
			IsUnique:        row.IsUnique,
			IsAutoIncrement: row.IsAutoIncrement,
			Default:         row.Default,
			OrdinalPosition: row.OrdinalPosition,
		}
		if row.Precision != nil {
			col.Precision = *row.Precision
		}
		current.Columns[row.Column] = col
	}

	for _, t := range tables {
		CollapseCompositeKeys(t)
	}
	return tables
}

// CollapseCompositeKeys replaces the primary key flags of a multi-column
// primary key with a single primary key index. Single-column keys stay inline.
func CollapseCompositeKeys(t *Table) {
	var pk []string
	for _, name := range t.OrderedColumns() {
		if t.Columns[name].IsPrimaryKey {
			pk = append(pk, name)
		}
	}
	if len(pk) < 2 {
		return
	}

	for _, name := range pk {
		t.Columns[name].IsPrimaryKey = false
	}
	t.Indexes = append(t.Indexes, Index{Columns: pk, IsPrimaryKey: true})
}

// MergeReferences appends one entry per foreign key row to dst, keyed by the
// referencing column of database
func MergeReferences(dst *References, database string, rows []ReferenceInfo, name TableNamer) {
	for _, row := range rows {
		key := ColumnKey(database, name(row.Schema, row.Table), row.Column)
		referenced := ColumnKey(database, name(row.ReferencedSchema, row.ReferencedTable), row.ReferencedColumn)
		dst.Append(key, referenced)
	}
}

// ReplaceDatabaseReferences drops every entry of dst whose referencing key
// belongs to database, then appends the entries of src
func ReplaceDatabaseReferences(dst *References, database string, src References) {
	for _, key := range dst.Keys() {
		if owner, err := DatabaseOf(key); err == nil && owner == database {
			dst.Delete(key)
		}
	}
	for _, key := range src.Keys() {
		for _, target := range src.Get(key) {
			dst.Append(key, target)
		}
	}
}
