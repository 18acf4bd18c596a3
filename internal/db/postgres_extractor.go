package db

import (
	"context"
	"fmt"
	"time"

	"github.com/tordrt/dbmlgen/internal/schema"
)

const postgresCloseTimeout = 5 * time.Second

// PostgresEngine scans table and reference metadata from PostgreSQL
type PostgresEngine struct {
	client     *PostgresClient
	conn       schema.Connection
	schemaName string
	secret     string
}

// NewPostgresEngine connects to the database described by conn
func NewPostgresEngine(ctx context.Context, conn schema.Connection) (*PostgresEngine, error) {
	connString, password, err := postgresURL(conn)
	if err != nil {
		return nil, connectError(conn, "", err)
	}

	client, err := NewPostgresClient(ctx, connString)
	if err != nil {
		return nil, connectError(conn, password, err)
	}

	return &PostgresEngine{
		client:     client,
		conn:       conn,
		schemaName: PinnedSchema(conn),
		secret:     password,
	}, nil
}

// Close closes the underlying connection
func (e *PostgresEngine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), postgresCloseTimeout)
	defer cancel()
	return e.client.Close(ctx)
}

// schemaFilter restricts a query to the pinned schema, or to user schemas
func (e *PostgresEngine) schemaFilter(column string) (string, []any) {
	if e.schemaName != "" {
		return column + "::text = $1", []any{e.schemaName}
	}
	return column + "::text NOT IN ('pg_catalog', 'information_schema') AND " + column + "::text NOT LIKE 'pg_toast%'", nil
}

// ScanTablesAndColumns returns every column of every base table
func (e *PostgresEngine) ScanTablesAndColumns(ctx context.Context) ([]schema.ColumnInfo, error) {
	filter, args := e.schemaFilter("c.table_schema")
	query := fmt.Sprintf(`
		SELECT
			c.table_schema::text,
			c.table_name::text,
			c.column_name::text,
			c.data_type::text,
			COALESCE(c.character_maximum_length, c.numeric_precision, c.datetime_precision)::text AS data_precision,
			EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
					AND tc.table_name = kcu.table_name
				WHERE tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND tc.constraint_type = 'PRIMARY KEY'
					AND kcu.column_name = c.column_name
			) AS is_primary_key,
			c.is_nullable = 'YES' AS is_nullable,
			EXISTS (
				SELECT 1 FROM pg_constraint con
				JOIN pg_class cl ON cl.oid = con.conrelid
				JOIN pg_namespace ns ON ns.oid = cl.relnamespace
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = con.conkey[1]
				WHERE con.contype = 'u'
					AND array_length(con.conkey, 1) = 1
					AND ns.nspname::text = c.table_schema::text
					AND cl.relname::text = c.table_name::text
					AND a.attname::text = c.column_name::text
			) AS is_unique,
			(c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%%') AS is_auto_increment,
			CASE WHEN c.column_default LIKE 'nextval(%%' THEN NULL ELSE c.column_default::text END AS default_value,
			c.ordinal_position::int
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema
			AND t.table_name = c.table_name
			AND t.table_type = 'BASE TABLE'
		WHERE %s
		ORDER BY c.table_schema, c.table_name, c.ordinal_position
	`, filter)

	rows, err := e.client.GetConnection().Query(ctx, query, args...)
	if err != nil {
		return nil, queryError(e.conn, e.secret, err)
	}
	defer rows.Close()

	var columns []schema.ColumnInfo
	for rows.Next() {
		var col schema.ColumnInfo
		if err := rows.Scan(
			&col.Schema, &col.Table, &col.Column, &col.DataType, &col.Precision,
			&col.IsPrimaryKey, &col.IsNullable, &col.IsUnique, &col.IsAutoIncrement,
			&col.Default, &col.OrdinalPosition,
		); err != nil {
			return nil, queryError(e.conn, e.secret, err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, queryError(e.conn, e.secret, err)
	}
	return columns, nil
}

// ScanReferences returns every foreign key column and the column it
// references. Columns of a composite key are paired by position.
func (e *PostgresEngine) ScanReferences(ctx context.Context) ([]schema.ReferenceInfo, error) {
	filter, args := e.schemaFilter("ns.nspname")
	query := fmt.Sprintf(`
		SELECT
			ns.nspname::text,
			cl.relname::text,
			a.attname::text,
			fns.nspname::text AS referenced_schema,
			fcl.relname::text AS referenced_table,
			fa.attname::text AS referenced_column
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cl.relnamespace
		JOIN pg_class fcl ON fcl.oid = con.confrelid
		JOIN pg_namespace fns ON fns.oid = fcl.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, fattnum, pos)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
		WHERE con.contype = 'f'
			AND %s
		ORDER BY ns.nspname, cl.relname, con.conname, k.pos
	`, filter)

	rows, err := e.client.GetConnection().Query(ctx, query, args...)
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
