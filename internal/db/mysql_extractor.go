package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/dbmlgen/internal/schema"
)

const mysqlSystemSchemas = "('mysql', 'information_schema', 'performance_schema', 'sys')"

// MySQLEngine scans table and reference metadata from MySQL
type MySQLEngine struct {
	client     *MySQLClient
	conn       schema.Connection
	schemaName string
	secret     string
}

// NewMySQLEngine connects to the database described by conn
func NewMySQLEngine(ctx context.Context, conn schema.Connection) (*MySQLEngine, error) {
	dsn, password, err := mysqlDSN(conn)
	if err != nil {
		return nil, connectError(conn, "", err)
	}

	client, err := NewMySQLClient(ctx, dsn)
	if err != nil {
		return nil, connectError(conn, password, err)
	}

	return &MySQLEngine{
		client:     client,
		conn:       conn,
		schemaName: PinnedSchema(conn),
		secret:     password,
	}, nil
}

// Close closes the underlying connection
func (e *MySQLEngine) Close() error {
	return e.client.Close()
}

// schemaFilter restricts a query to the pinned schema, or to user schemas
func (e *MySQLEngine) schemaFilter(column string) (string, []any) {
	if e.schemaName != "" {
		return column + " = ?", []any{e.schemaName}
	}
	return column + " NOT IN " + mysqlSystemSchemas, nil
}

// ScanTablesAndColumns returns every column of every base table
func (e *MySQLEngine) ScanTablesAndColumns(ctx context.Context) ([]schema.ColumnInfo, error) {
	filter, args := e.schemaFilter("c.table_schema")
	query := fmt.Sprintf(`
		SELECT
			c.table_schema,
			c.table_name,
			c.column_name,
			c.data_type,
			CAST(COALESCE(c.character_maximum_length, c.numeric_precision, c.datetime_precision) AS CHAR) AS data_precision,
			CASE WHEN c.column_key = 'PRI' THEN 1 ELSE 0 END AS is_primary_key,
			CASE WHEN c.is_nullable = 'YES' THEN 1 ELSE 0 END AS is_nullable,
			CASE WHEN c.column_key = 'UNI' THEN 1 ELSE 0 END AS is_unique,
			CASE WHEN c.extra LIKE '%%auto_increment%%' THEN 1 ELSE 0 END AS is_auto_increment,
			c.column_default,
			c.ordinal_position
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema
			AND t.table_name = c.table_name
			AND t.table_type = 'BASE TABLE'
		WHERE %s
		ORDER BY c.table_schema, c.table_name, c.ordinal_position
	`, filter)

	rows, err := e.client.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(e.conn, e.secret, err)
	}
	defer rows.Close()

	var columns []schema.ColumnInfo
	for rows.Next() {
		var col schema.ColumnInfo
		var precision, defaultVal sql.NullString

		if err := rows.Scan(
			&col.Schema, &col.Table, &col.Column, &col.DataType, &precision,
			&col.IsPrimaryKey, &col.IsNullable, &col.IsUnique, &col.IsAutoIncrement,
			&defaultVal, &col.OrdinalPosition,
		); err != nil {
			return nil, queryError(e.conn, e.secret, err)
		}

		if precision.Valid {
			col.Precision = &precision.String
		}
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, queryError(e.conn, e.secret, err)
	}
	return columns, nil
}

// ScanReferences returns every foreign key column and the column it references
func (e *MySQLEngine) ScanReferences(ctx context.Context) ([]schema.ReferenceInfo, error) {
	filter, args := e.schemaFilter("kcu.table_schema")
	query := fmt.Sprintf(`
		SELECT
			kcu.table_schema,
			kcu.table_name,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.referenced_column_name IS NOT NULL
			AND %s
		ORDER BY kcu.table_schema, kcu.table_name, kcu.ordinal_position
	`, filter)

	rows, err := e.client.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryError(e.conn, e.secret, err)
	}
	defer rows.Close()

	var refs []schema.ReferenceInfo
	for rows.Next() {
		var ref schema.ReferenceInfo
		if err := rows.Scan(
			&ref.Schema, &ref.Table, &ref.Column,
			&ref.ReferencedSchema, &ref.ReferencedTable, &ref.ReferencedColumn,
		); err != nil {
			return nil, queryError(e.conn, e.secret, err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, queryError(e.conn, e.secret, err)
	}
	return refs, nil
}
