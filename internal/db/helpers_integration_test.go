//go:build integration

package db

import (
	"testing"

	"github.com/tordrt/dbmlgen/internal/schema"
)

// findColumn returns the scanned row of table.column
func findColumn(rows []schema.ColumnInfo, table, column string) *schema.ColumnInfo {
	for i := range rows {
		if rows[i].Table == table && rows[i].Column == column {
			return &rows[i]
		}
	}
	return nil
}

// verifyTablesExist checks that every expected table has at least one column row
func verifyTablesExist(t *testing.T, rows []schema.ColumnInfo, expectedTables []string) {
	t.Helper()

	tableMap := make(map[string]bool)
	for _, row := range rows {
		tableMap[row.Table] = true
	}

	for _, tableName := range expectedTables {
		if !tableMap[tableName] {
			t.Errorf("Expected table %s not found in scan", tableName)
		}
	}
}

// verifyOrdered checks the adapter contract: rows sorted by table then ordinal
func verifyOrdered(t *testing.T, rows []schema.ColumnInfo) {
	t.Helper()

	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if prev.Schema == cur.Schema && prev.Table == cur.Table && prev.OrdinalPosition >= cur.OrdinalPosition {
			t.Errorf("rows out of ordinal order at %s.%s", cur.Table, cur.Column)
		}
	}
}

// verifyReference checks that a foreign key row exists
func verifyReference(t *testing.T, refs []schema.ReferenceInfo, table, column, referencedTable, referencedColumn string) {
	t.Helper()

	for _, ref := range refs {
		if ref.Table == table && ref.Column == column && ref.ReferencedTable == referencedTable && ref.ReferencedColumn == referencedColumn {
			return
		}
	}
	t.Errorf("Expected reference %s.%s -> %s.%s not found", table, column, referencedTable, referencedColumn)
}

// verifyCompositeKey merges the rows and checks the primary key index of table
func verifyCompositeKey(t *testing.T, rows []schema.ColumnInfo, table string, want []string) {
	t.Helper()

	merged := schema.MergeColumns(rows, schema.BareTableName)
	tbl := merged[table]
	if tbl == nil {
		t.Fatalf("Table %s not found", table)
	}
	if len(tbl.Indexes) != 1 || !tbl.Indexes[0].IsPrimaryKey {
		t.Fatalf("Expected one primary key index on %s, got %+v", table, tbl.Indexes)
	}
	got := tbl.Indexes[0].Columns
	if len(got) != len(want) {
		t.Fatalf("Expected primary key %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected primary key %v, got %v", want, got)
			return
		}
	}
}
