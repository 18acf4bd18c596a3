package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/dbmlgen/internal/schema"
)

var (
	ErrAdapterConnection = errors.New("adapter connection error")
	ErrAdapterQuery      = errors.New("adapter query error")
)

// Engine scans the metadata of one database
type Engine interface {
	// ScanTablesAndColumns returns one row per column, sorted by schema,
	// table and ordinal position.
	ScanTablesAndColumns(ctx context.Context) ([]schema.ColumnInfo, error)

	// ScanReferences returns one row per foreign key column.
	ScanReferences(ctx context.Context) ([]schema.ReferenceInfo, error)

	Close() error
}

// Opener connects an Engine for a connection record
type Opener func(ctx context.Context, conn schema.Connection) (Engine, error)

// Open connects the engine selected by conn.Type
func Open(ctx context.Context, conn schema.Connection) (Engine, error) {
	switch conn.Type {
	case schema.EngineMySQL:
		return NewMySQLEngine(ctx, conn)
	case schema.EnginePostgres:
		return NewPostgresEngine(ctx, conn)
	case schema.EngineSQLite:
		return NewSQLiteEngine(ctx, conn)
	default:
		return nil, &UnsupportedEngineError{Type: string(conn.Type)}
	}
}

// UnsupportedEngineError is returned when a connection names an unknown engine
type UnsupportedEngineError struct {
	Type string
}

func (e *UnsupportedEngineError) Error() string {
	return "unsupported database type: " + e.Type
}

// AdapterError wraps a connection or query failure. Its message names the
// redacted target and never contains the password.
type AdapterError struct {
	Op     string // "connect" or "query"
	Target string
	Err    error

	secret string
}

func (e *AdapterError) Error() string {
	var msg string
	if e.Op == "connect" {
		msg = fmt.Sprintf("could not connect to '%s': %v", e.Target, e.Err)
	} else {
		msg = fmt.Sprintf("could not run the scan query on '%s': %v", e.Target, e.Err)
	}
	if e.secret != "" {
		msg = strings.ReplaceAll(msg, e.secret, "***")
	}
	return msg
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

func (e *AdapterError) Is(target error) bool {
	switch target {
	case ErrAdapterConnection:
		return e.Op == "connect"
	case ErrAdapterQuery:
		return e.Op == "query"
	}
	return false
}

func connectError(conn schema.Connection, secret string, err error) error {
	return &AdapterError{Op: "connect", Target: Redact(conn), Err: err, secret: secret}
}

func queryError(conn schema.Connection, secret string, err error) error {
	return &AdapterError{Op: "query", Target: Redact(conn), Err: err, secret: secret}
}

// Redact renders a connection for user-facing text with the password masked
func Redact(conn schema.Connection) string {
	if conn.Type == schema.EngineSQLite {
		return "sqlite://" + conn.Database
	}

	var b strings.Builder
	b.WriteString(string(conn.Type))
	b.WriteString("://")
	if conn.Username != "" {
		b.WriteString(conn.Username)
		if conn.Password != "" {
			b.WriteString(":***")
		}
		b.WriteString("@")
	}
	b.WriteString(conn.Host)
	if conn.Port != 0 {
		fmt.Fprintf(&b, ":%d", conn.Port)
	}
	if conn.Database != "" {
		b.WriteString("/" + conn.Database)
	}
	return b.String()
}

// PinnedSchema returns the single schema a connection scans, or "" when it
// scans every user schema
func PinnedSchema(conn schema.Connection) string {
	switch conn.Type {
	case schema.EngineMySQL:
		if conn.Schema != "" {
			return conn.Schema
		}
		return conn.Database
	case schema.EngineSQLite:
		return "main"
	default:
		return conn.Schema
	}
}

// TableNamer keys tables by bare name when they live in the schema the
// connection pins and by "schema___table" otherwise. Foreign keys into
// another schema therefore keep their schema.
func TableNamer(conn schema.Connection) schema.TableNamer {
	pinned := PinnedSchema(conn)
	if pinned == "" {
		return schema.SchemaQualifiedTableName
	}
	return func(schemaName, table string) string {
		if schemaName == pinned {
			return table
		}
		return schema.SchemaQualifiedTableName(schemaName, table)
	}
}
