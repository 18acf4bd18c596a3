package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tordrt/dbmlgen/internal/schema"
)

const sqliteSchema = "main"

// SQLiteEngine scans table and reference metadata from a SQLite file
type SQLiteEngine struct {
	client *SQLiteClient
	conn   schema.Connection
}

// NewSQLiteEngine opens the database file named by conn.Database
func NewSQLiteEngine(ctx context.Context, conn schema.Connection) (*SQLiteEngine, error) {
	client, err := NewSQLiteClient(ctx, sqliteDSN(conn))
	if err != nil {
		return nil, connectError(conn, "", err)
	}
	return &SQLiteEngine{client: client, conn: conn}, nil
}

// Close closes the underlying connection
func (e *SQLiteEngine) Close() error {
	return e.client.Close()
}

// ScanTablesAndColumns returns every column of every user table
func (e *SQLiteEngine) ScanTablesAndColumns(ctx context.Context) ([]schema.ColumnInfo, error) {
	unique, err := e.uniqueColumns(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			m.name,
			p.name,
			p.type,
			p."notnull",
			p.dflt_value,
			p.pk,
			p.cid,
			COALESCE(m.sql, '')
		FROM sqlite_master m
		JOIN pragma_table_info(m.name) p
		WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, p.cid
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, queryError(e.conn, "", err)
	}
	defer rows.Close()

	var columns []schema.ColumnInfo
	for rows.Next() {
		var col schema.ColumnInfo
		var declared, tableSQL string
		var notNull, pk, cid int
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Table, &col.Column, &declared, &notNull, &defaultVal, &pk, &cid, &tableSQL); err != nil {
			return nil, queryError(e.conn, "", err)
		}

		col.Schema = sqliteSchema
		col.DataType, col.Precision = splitDeclaredType(declared)
		col.IsPrimaryKey = pk > 0
		// INTEGER PRIMARY KEY aliases the rowid and can never be NULL
		rowidAlias := pk > 0 && strings.EqualFold(col.DataType, "integer")
		col.IsNullable = notNull == 0 && !rowidAlias
		col.IsAutoIncrement = rowidAlias && strings.Contains(strings.ToUpper(tableSQL), "AUTOINCREMENT")
		col.IsUnique = unique[col.Table+"."+col.Column]
		col.OrdinalPosition = cid + 1
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, queryError(e.conn, "", err)
	}
	return columns, nil
}

// uniqueColumns returns "table.column" for every single-column unique index
func (e *SQLiteEngine) uniqueColumns(ctx context.Context) (map[string]bool, error) {
	query := `
		SELECT m.name, ii.name
		FROM sqlite_master m
		JOIN pragma_index_list(m.name) il
		JOIN pragma_index_info(il.name) ii
		WHERE m.type = 'table'
			AND il."unique" = 1
			AND il.origin IN ('u', 'c')
			AND (SELECT COUNT(*) FROM pragma_index_info(il.name)) = 1
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, queryError(e.conn, "", err)
	}
	defer rows.Close()

	unique := make(map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, queryError(e.conn, "", err)
		}
		unique[table+"."+column] = true
	}

	if err := rows.Err(); err != nil {
		return nil, queryError(e.conn, "", err)
	}
	return unique, nil
}

// ScanReferences returns every foreign key column and the column it references
func (e *SQLiteEngine) ScanReferences(ctx context.Context) ([]schema.ReferenceInfo, error) {
	query := `
		SELECT m.name, f."from", f."table", f."to"
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) f
		WHERE m.type = 'table' AND f."to" IS NOT NULL
		ORDER BY m.name, f.id, f.seq
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, queryError(e.conn, "", err)
	}
	defer rows.Close()

	var refs []schema.ReferenceInfo
	for rows.Next() {
		ref := schema.ReferenceInfo{Schema: sqliteSchema, ReferencedSchema: sqliteSchema}
		if err := rows.Scan(&ref.Table, &ref.Column, &ref.ReferencedTable, &ref.ReferencedColumn); err != nil {
			return nil, queryError(e.conn, "", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, queryError(e.conn, "", err)
	}
	return refs, nil
}

// splitDeclaredType splits "VARCHAR(255)" into "VARCHAR" and "255"
func splitDeclaredType(declared string) (string, *string) {
	declared = strings.TrimSpace(declared)
	start := strings.Index(declared, "(")
	end := strings.LastIndex(declared, ")")
	if start == -1 || end == -1 || start >= end {
		return declared, nil
	}

	precision := strings.ReplaceAll(declared[start+1:end], " ", "")
	return strings.TrimSpace(declared[:start]), &precision
}
