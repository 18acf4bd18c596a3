package schema

import "strings"

const (
	// TableSeparator joins a database name and a table name
	TableSeparator = "___"
	// ColumnSeparator joins a table key and a column name
	ColumnSeparator = "."

	tableKeyFormat  = "DATABASE___TABLE"
	columnKeyFormat = "DATABASE___TABLE.COLUMN"
)

// TableKey builds the "database___table" identifier
func TableKey(database, table string) string {
	return database + TableSeparator + table
}

// ColumnKey builds the "database___table.column" identifier
func ColumnKey(database, table, column string) string {
	return TableKey(database, table) + ColumnSeparator + column
}

// ParseTableKey splits "database___table". The database is the first segment;
// the table name keeps any further separators.
func ParseTableKey(s string) (database, table string, err error) {
	database, table, ok := strings.Cut(s, TableSeparator)
	if !ok || database == "" || table == "" || strings.Contains(s, ColumnSeparator) {
		return "", "", &KeyError{Key: s, Format: tableKeyFormat}
	}
	return database, table, nil
}

// ParseColumnKey splits "database___table.column". The column is everything
// after the last dot.
func ParseColumnKey(s string) (database, table, column string, err error) {
	i := strings.LastIndex(s, ColumnSeparator)
	if i < 0 || i == len(s)-1 {
		return "", "", "", &KeyError{Key: s, Format: columnKeyFormat}
	}
	database, table, err = ParseTableKey(s[:i])
	if err != nil {
		return "", "", "", &KeyError{Key: s, Format: columnKeyFormat}
	}
	return database, table, s[i+1:], nil
}

// TableKeyOf returns the table key prefix of a column key
func TableKeyOf(columnKey string) (string, error) {
	database, table, _, err := ParseColumnKey(columnKey)
	if err != nil {
		return "", err
	}
	return TableKey(database, table), nil
}

// DatabaseOf returns the database segment of a table or column key
func DatabaseOf(key string) (string, error) {
	database, _, ok := strings.Cut(key, TableSeparator)
	if !ok || database == "" {
		return "", &KeyError{Key: key, Format: tableKeyFormat}
	}
	return database, nil
}
