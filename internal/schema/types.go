package schema

import "sort"

// EngineType selects the database engine implementation for a connection
type EngineType string

const (
	EngineMySQL    EngineType = "mysql"
	EnginePostgres EngineType = "postgres"
	EngineSQLite   EngineType = "sqlite"
)

// Project is the root of the IR: a named set of databases plus the
// project-wide reference maps
type Project struct {
	Name             string               `yaml:"project"`
	Databases        map[string]*Database `yaml:"databases"`
	References       References           `yaml:"references,omitempty"`
	CustomReferences References           `yaml:"custom_references,omitempty"`
}

// Database holds the connection parameters of one database and, once scanned,
// its tables keyed by table name
type Database struct {
	Connection Connection `yaml:"connection"`
	// Tables is nil until the database is scanned. A scan that finds no
	// tables leaves an empty map, saved as {}.
	Tables map[string]*Table `yaml:"tables"`

	// References is the per-database layout of older project files. Loading
	// folds it into Project.References.
	References References `yaml:"references,omitempty"`
}

// Connection describes how to reach a database. The core never mutates it.
type Connection struct {
	Type     EngineType        `yaml:"type"`
	Host     string            `yaml:"host,omitempty"`
	Port     int               `yaml:"port,omitempty"`
	Username string            `yaml:"username,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Database string            `yaml:"database,omitempty"`
	Schema   string            `yaml:"schema,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// Table represents a scanned table
type Table struct {
	Columns map[string]*Column `yaml:"columns"`
	Indexes []Index            `yaml:"indexes,omitempty"`
}

// Column represents a table column
type Column struct {
	Type            string  `yaml:"type"`
	Precision       string  `yaml:"precision,omitempty"`
	IsPrimaryKey    bool    `yaml:"is_primary_key"`
	IsNullable      bool    `yaml:"is_nullable"`
	IsUnique        bool    `yaml:"is_unique"`
	IsAutoIncrement bool    `yaml:"is_auto_increment"`
	Default         *string `yaml:"default,omitempty"`
	OrdinalPosition int     `yaml:"ordinal_position"`
}

// Index is a multi-column index. Only composite primary keys produce one.
type Index struct {
	Columns      []string `yaml:"columns"`
	IsPrimaryKey bool     `yaml:"is_primary_key"`
}

// ColumnInfo is one row returned by an engine's column scan
type ColumnInfo struct {
	Schema          string
	Table           string
	Column          string
	DataType        string
	Precision       *string
	IsPrimaryKey    bool
	IsNullable      bool
	IsUnique        bool
	IsAutoIncrement bool
	Default         *string
	OrdinalPosition int
}

// ReferenceInfo is one row returned by an engine's foreign key scan
type ReferenceInfo struct {
	Schema           string
	Table            string
	Column           string
	ReferencedSchema string
	ReferencedTable  string
	ReferencedColumn string
}

// Table returns the named table of a database, or nil
func (p *Project) Table(database, table string) *Table {
	db, ok := p.Databases[database]
	if !ok || db == nil {
		return nil
	}
	return db.Tables[table]
}

// HasColumn reports whether the column key resolves to a scanned column
func (p *Project) HasColumn(key string) (bool, error) {
	database, table, column, err := ParseColumnKey(key)
	if err != nil {
		return false, err
	}
	t := p.Table(database, table)
	if t == nil {
		return false, nil
	}
	_, ok := t.Columns[column]
	return ok, nil
}

// FoldLegacyReferences moves per-database references into the project map.
// Keys already present at project level win.
func (p *Project) FoldLegacyReferences() {
	for _, name := range p.DatabaseNames() {
		db := p.Databases[name]
		if db == nil || db.References.Len() == 0 {
			continue
		}
		for _, key := range db.References.Keys() {
			if p.References.Has(key) {
				continue
			}
			p.References.Set(key, db.References.Get(key))
		}
		db.References = References{}
	}
}

// DatabaseNames returns the project's database names in sorted order
func (p *Project) DatabaseNames() []string {
	names := make([]string, 0, len(p.Databases))
	for name := range p.Databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableNames returns the database's table keys in sorted order
func (d *Database) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OrderedColumns returns the column names sorted by ordinal position, then name
func (t *Table) OrderedColumns() []string {
	names := make([]string, 0, len(t.Columns))
	for name := range t.Columns {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := t.Columns[names[i]], t.Columns[names[j]]
		if ci.OrdinalPosition != cj.OrdinalPosition {
			return ci.OrdinalPosition < cj.OrdinalPosition
		}
		return names[i] < names[j]
	})
	return names
}
