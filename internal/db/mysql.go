package db

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/dbmlgen/internal/config"
	"github.com/tordrt/dbmlgen/internal/schema"
)

const defaultMySQLPort = 3306

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(ctx context.Context, connString string) (*MySQLClient, error) {
	db, err := sql.Open("mysql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLClient{db: db}, nil
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *MySQLClient) GetDB() *sql.DB {
	return c.db
}

// mysqlDSN builds a go-sql-driver DSN with the password resolved
func mysqlDSN(conn schema.Connection) (dsn, password string, err error) {
	password, err = config.ResolveValue(conn.Password)
	if err != nil {
		return "", "", fmt.Errorf("resolving password: %w", err)
	}

	port := conn.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(port))
	cfg.DBName = conn.Database
	if len(conn.Params) > 0 {
		cfg.Params = make(map[string]string, len(conn.Params))
		for k, v := range conn.Params {
			cfg.Params[k] = v
		}
	}

	return cfg.FormatDSN(), password, nil
}
