package schema

// TableRef is a resolved table of a subgraph
type TableRef struct {
	Database string
	Name     string
	Table    *Table
}

// Key returns the "database___table" key of the table
func (r TableRef) Key() string {
	return TableKey(r.Database, r.Name)
}

// Edge is a single reference between two column keys
type Edge struct {
	From string
	To   string
}

// Subgraph is the set of tables and references needed to render one table
// together with everything it depends on
type Subgraph struct {
	Tables []TableRef
	Edges  []Edge
	// Unresolved lists referenced table keys missing from the project
	Unresolved []string
}

// ResolveDependencies walks References depth-first from startKey. Tables are
// listed once, in first-visit order; every traversed reference is an edge,
// including the one that closes a cycle.
func ResolveDependencies(p *Project, startKey string) (*Subgraph, error) {
	database, table, err := ParseTableKey(startKey)
	if err != nil {
		return nil, err
	}
	start := p.Table(database, table)
	if start == nil {
		return nil, &LookupError{Key: startKey, Kind: ErrUnknownTable}
	}

	// outgoing edges per table key, in reference insertion order
	outgoing := make(map[string][]Edge)
	p.References.Each(func(key, target string) {
		owner, err := TableKeyOf(key)
		if err != nil {
			return
		}
		outgoing[owner] = append(outgoing[owner], Edge{From: key, To: target})
	})

	sg := &Subgraph{}
	visited := make(map[string]bool)
	unresolved := make(map[string]bool)

	var visit func(ref TableRef)
	visit = func(ref TableRef) {
		key := ref.Key()
		visited[key] = true
		sg.Tables = append(sg.Tables, ref)

		for _, edge := range outgoing[key] {
			sg.Edges = append(sg.Edges, edge)

			db, name, _, err := ParseColumnKey(edge.To)
			if err != nil {
				continue
			}
			next := TableKey(db, name)
			if visited[next] {
				continue
			}
			t := p.Table(db, name)
			if t == nil {
				if !unresolved[next] {
					unresolved[next] = true
					sg.Unresolved = append(sg.Unresolved, next)
				}
				continue
			}
			visit(TableRef{Database: db, Name: name, Table: t})
		}
	}
	visit(TableRef{Database: database, Name: table, Table: start})

	return sg, nil
}
