package db

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/dbmlgen/internal/config"
	"github.com/tordrt/dbmlgen/internal/schema"
)

const defaultPostgresPort = 5432

// PostgresClient manages the connection to PostgreSQL
type PostgresClient struct {
	conn *pgx.Conn
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{conn: conn}, nil
}

// Close closes the database connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// postgresURL builds a postgres:// connection URL with the password resolved
func postgresURL(conn schema.Connection) (connString, password string, err error) {
	password, err = config.ResolveValue(conn.Password)
	if err != nil {
		return "", "", fmt.Errorf("resolving password: %w", err)
	}

	port := conn.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(conn.Host, strconv.Itoa(port)),
		Path:   "/" + conn.Database,
	}
	if conn.Username != "" {
		if password != "" {
			u.User = url.UserPassword(conn.Username, password)
		} else {
			u.User = url.User(conn.Username)
		}
	}

	q := url.Values{}
	for k, v := range conn.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return u.String(), password, nil
}
