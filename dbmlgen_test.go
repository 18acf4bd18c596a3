package dbmlgen

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tordrt/dbmlgen/internal/config"
	"github.com/tordrt/dbmlgen/internal/db"
	"github.com/tordrt/dbmlgen/internal/logging"
	"github.com/tordrt/dbmlgen/internal/schema"
)

// fakeEngine serves fixed rows in place of a live database
type fakeEngine struct {
	columns []schema.ColumnInfo
	refs    []schema.ReferenceInfo
	scanErr error
	closed  *atomic.Int32
}

func (e *fakeEngine) ScanTablesAndColumns(ctx context.Context) ([]schema.ColumnInfo, error) {
	if e.scanErr != nil {
		return nil, e.scanErr
	}
	return e.columns, nil
}

func (e *fakeEngine) ScanReferences(ctx context.Context) ([]schema.ReferenceInfo, error) {
	return e.refs, nil
}

func (e *fakeEngine) Close() error {
	e.closed.Add(1)
	return nil
}

// fakeOpener returns the engine registered for conn.Database; an unregistered
// database fails to connect
func fakeOpener(engines map[string]*fakeEngine) db.Opener {
	return func(ctx context.Context, conn schema.Connection) (db.Engine, error) {
		e, ok := engines[conn.Database]
		if !ok {
			return nil, &db.AdapterError{Op: "connect", Target: db.Redact(conn), Err: errors.New("connection refused")}
		}
		return e, nil
	}
}

func col(table, column, dataType string, ordinal int, pk bool) schema.ColumnInfo {
	return schema.ColumnInfo{
		Schema:          "shop",
		Table:           table,
		Column:          column,
		DataType:        dataType,
		IsPrimaryKey:    pk,
		OrdinalPosition: ordinal,
	}
}

func newTestWorkspace(t *testing.T, project, content string) (*Workspace, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	if content != "" {
		if err := os.WriteFile(filepath.Join(dir, project+".yaml"), []byte(content), 0o600); err != nil {
			t.Fatalf("writing project: %v", err)
		}
	}
	out := &bytes.Buffer{}
	return NewWorkspace(config.NewStore(dir), logging.Discard(), out), out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

const scanProject = `project: shop
databases:
  shop:
    connection:
      type: mysql
      host: localhost
      database: shop
  crm:
    connection:
      type: mysql
      host: localhost
      username: crm
      password: hunter2
      database: crm
    tables:
      contacts:
        columns:
          id:
            type: int
            is_primary_key: true
            ordinal_position: 1
references:
  shop___legacy.customer_id:
    - shop___customers.id
  crm___contacts.owner_id:
    - crm___contacts.id
`

func TestScan(t *testing.T) {
	ws, out := newTestWorkspace(t, "shop", scanProject)

	var closed atomic.Int32
	shop := &fakeEngine{
		columns: []schema.ColumnInfo{
			col("customers", "id", "int", 1, true),
			col("customers", "email", "varchar", 2, false),
			col("order_items", "order_id", "int", 1, true),
			col("order_items", "line", "int", 2, true),
			col("orders", "id", "int", 1, true),
			col("orders", "customer_id", "int", 2, false),
		},
		refs: []schema.ReferenceInfo{
			{Schema: "shop", Table: "orders", Column: "customer_id", ReferencedSchema: "shop", ReferencedTable: "customers", ReferencedColumn: "id"},
			{Schema: "shop", Table: "order_items", Column: "order_id", ReferencedSchema: "shop", ReferencedTable: "orders", ReferencedColumn: "id"},
		},
		closed: &closed,
	}
	ws.Open = fakeOpener(map[string]*fakeEngine{"shop": shop})

	err := ws.Scan(context.Background(), "shop")
	if err == nil {
		t.Fatal("expected the crm failure to be reported")
	}
	if !errors.Is(err, db.ErrAdapterConnection) {
		t.Errorf("error = %v, want ErrAdapterConnection", err)
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Errorf("error leaks the password: %v", err)
	}
	if closed.Load() != 1 {
		t.Errorf("engine closed %d times, want 1", closed.Load())
	}
	if !strings.HasPrefix(out.String(), "Scanning project shop\n") {
		t.Errorf("unexpected output %q", out.String())
	}

	p, err := ws.Store.Load("shop")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := p.Databases["shop"].TableNames(); !reflect.DeepEqual(got, []string{"customers", "order_items", "orders"}) {
		t.Errorf("shop tables = %v", got)
	}
	items := p.Table("shop", "order_items")
	if len(items.Indexes) != 1 || !reflect.DeepEqual(items.Indexes[0].Columns, []string{"order_id", "line"}) {
		t.Errorf("order_items indexes = %+v", items.Indexes)
	}
	if p.Table("crm", "contacts") == nil {
		t.Error("failed database lost its previous tables")
	}

	wantKeys := []string{"crm___contacts.owner_id", "shop___orders.customer_id", "shop___order_items.order_id"}
	if got := p.References.Keys(); !reflect.DeepEqual(got, wantKeys) {
		t.Errorf("references = %v, want %v", got, wantKeys)
	}
}

func TestScanMissingProject(t *testing.T) {
	ws, _ := newTestWorkspace(t, "shop", "")
	if err := ws.Scan(context.Background(), "shop"); !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("Scan error = %v, want ErrConfigNotFound", err)
	}
}

func TestScanQueryFailureKeepsPreviousState(t *testing.T) {
	ws, _ := newTestWorkspace(t, "shop", scanProject)

	var closed atomic.Int32
	ws.Open = fakeOpener(map[string]*fakeEngine{
		"shop": {scanErr: &db.AdapterError{Op: "query", Target: "mysql://localhost/shop", Err: errors.New("timeout")}, closed: &closed},
		"crm":  {columns: []schema.ColumnInfo{{Schema: "crm", Table: "people", Column: "id", DataType: "int", OrdinalPosition: 1}}, closed: &closed},
	})

	err := ws.Scan(context.Background(), "shop")
	if !errors.Is(err, db.ErrAdapterQuery) {
		t.Fatalf("Scan error = %v, want ErrAdapterQuery", err)
	}
	if closed.Load() != 2 {
		t.Errorf("engines closed %d times, want 2", closed.Load())
	}

	p, err := ws.Store.Load("shop")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Databases["shop"].Tables != nil {
		t.Error("failed scan installed tables")
	}
	if !p.References.Has("shop___legacy.customer_id") {
		t.Error("failed scan dropped the database's references")
	}
	if got := p.Databases["crm"].TableNames(); !reflect.DeepEqual(got, []string{"people"}) {
		t.Errorf("crm tables = %v", got)
	}
	if p.References.Has("crm___contacts.owner_id") {
		t.Error("rescanned database kept stale references")
	}
}

const mappedProject = `project: shop
databases:
  shop:
    connection:
      type: sqlite
      database: shop.db
    tables:
      customers:
        columns:
          id:
            type: integer
            is_primary_key: true
            ordinal_position: 1
          name:
            type: text
            is_nullable: true
            ordinal_position: 2
      orders:
        columns:
          id:
            type: integer
            is_primary_key: true
            ordinal_position: 1
          customer_id:
            type: integer
            ordinal_position: 2
      payments:
        columns:
          id:
            type: integer
            is_primary_key: true
            ordinal_position: 1
          order_id:
            type: integer
            ordinal_position: 2
references:
  shop___payments.order_id:
    - shop___orders.id
custom_references:
  shop___customers.name:
    - crm___people.name
`

func TestSearchMapsUnmappedColumn(t *testing.T) {
	ws, out := newTestWorkspace(t, "shop", mappedProject)
	ctx := context.Background()

	result, err := ws.Search(ctx, "shop", "customer_id", "shop___customers.id")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].Key() != "shop___orders.customer_id" {
		t.Errorf("matches = %+v", result.Matches)
	}
	if result.Added != 1 {
		t.Errorf("added = %d, want 1", result.Added)
	}
	if !strings.Contains(out.String(), "Found an unmapped column matching 'customer_id': customer_id (shop___orders)\n") {
		t.Errorf("unexpected output %q", out.String())
	}

	p, err := ws.Store.Load("shop")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := p.CustomReferences.Get("shop___orders.customer_id"); !reflect.DeepEqual(got, []string{"shop___customers.id"}) {
		t.Errorf("custom reference = %v", got)
	}

	out.Reset()
	result, err = ws.Search(ctx, "shop", "customer_id", "shop___customers.id")
	if err != nil {
		t.Fatalf("second Search failed: %v", err)
	}
	if len(result.Matches) != 0 || result.Added != 0 {
		t.Errorf("second run result = %+v", result)
	}
	if strings.Contains(out.String(), "Found an unmapped column") {
		t.Errorf("second run reported a mapped column: %q", out.String())
	}
}

func TestSearchWithoutTargetNeverWrites(t *testing.T) {
	ws, _ := newTestWorkspace(t, "shop", mappedProject)
	ctx := context.Background()
	path := ws.Store.ProjectPath("shop")
	before := readFile(t, path)

	for i := 0; i < 2; i++ {
		result, err := ws.Search(ctx, "shop", "_id$", "")
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		// payments.order_id is already referenced
		if len(result.Matches) != 1 || result.Matches[0].Key() != "shop___orders.customer_id" {
			t.Errorf("matches = %+v", result.Matches)
		}
	}

	if readFile(t, path) != before {
		t.Error("search without a target modified the project file")
	}
}

func TestSearchRejectsBadTarget(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		target  string
		wantErr error
	}{
		{name: "malformed key", pattern: "customer_id", target: "customers.id", wantErr: schema.ErrMalformedKey},
		{name: "unknown column", pattern: "customer_id", target: "shop___customers.missing", wantErr: schema.ErrUnknownReferencedColumn},
		{name: "unknown table", pattern: "customer_id", target: "shop___people.id", wantErr: schema.ErrUnknownReferencedColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, _ := newTestWorkspace(t, "shop", mappedProject)
			path := ws.Store.ProjectPath("shop")
			before := readFile(t, path)

			_, err := ws.Search(context.Background(), "shop", tt.pattern, tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Search error = %v, want %v", err, tt.wantErr)
			}
			if readFile(t, path) != before {
				t.Error("failed search modified the project file")
			}
		})
	}
}

func TestSearchInvalidPattern(t *testing.T) {
	ws, _ := newTestWorkspace(t, "shop", mappedProject)
	if _, err := ws.Search(context.Background(), "shop", "(", ""); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

func TestGenerateProject(t *testing.T) {
	ws, _ := newTestWorkspace(t, "shop", mappedProject)
	path := ws.Store.ProjectPath("shop")
	before := readFile(t, path)

	if err := ws.Generate(context.Background(), "shop", "", nil); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got := readFile(t, ws.Store.OutputPath("shop"))
	customers := strings.Index(got, "Table shop___customers {")
	orders := strings.Index(got, "Table shop___orders {")
	payments := strings.Index(got, "Table shop___payments {")
	if customers == -1 || customers > orders || orders > payments {
		t.Errorf("tables missing or out of order:\n%s", got)
	}
	refs := "Ref: shop___payments.order_id - shop___orders.id\n\nRef: shop___customers.name - crm___people.name\n\n"
	if !strings.HasSuffix(got, refs) {
		t.Errorf("output does not end with the references:\n%s", got)
	}
	if readFile(t, path) != before {
		t.Error("generate modified the project file")
	}
}

func TestGenerateFromStartingTable(t *testing.T) {
	ws, _ := newTestWorkspace(t, "shop", mappedProject)
	var buf bytes.Buffer

	if err := ws.Generate(context.Background(), "shop", "shop___payments", &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "Table shop___payments {") {
		t.Errorf("starting table not rendered first:\n%s", got)
	}
	if !strings.Contains(got, "Table shop___orders {") || strings.Contains(got, "Table shop___customers {") {
		t.Errorf("unexpected tables in subgraph:\n%s", got)
	}
	if strings.Count(got, "Ref:") != 1 {
		t.Errorf("expected one reference:\n%s", got)
	}
	if _, err := os.Stat(ws.Store.OutputPath("shop")); !os.IsNotExist(err) {
		t.Error("generate with a writer also wrote the output file")
	}
}

func TestGenerateUnknownStartingTable(t *testing.T) {
	ws, _ := newTestWorkspace(t, "shop", mappedProject)
	err := ws.Generate(context.Background(), "shop", "shop___invoices", &bytes.Buffer{})
	if !errors.Is(err, schema.ErrUnknownTable) {
		t.Errorf("Generate error = %v, want ErrUnknownTable", err)
	}
}

func TestCleanThenGenerate(t *testing.T) {
	ws, out := newTestWorkspace(t, "shop", mappedProject)
	ctx := context.Background()

	if err := ws.Clean(ctx, "shop"); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if !strings.Contains(out.String(), "Cleaning database shop\n") {
		t.Errorf("unexpected output %q", out.String())
	}

	p, err := ws.Store.Load("shop")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Databases["shop"].Tables != nil || p.References.Len() != 0 {
		t.Error("clean left scanned data behind")
	}
	if p.Databases["shop"].Connection.Database != "shop.db" {
		t.Error("clean changed the connection")
	}

	var buf bytes.Buffer
	if err := ws.Generate(ctx, "shop", "", &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := "Ref: shop___customers.name - crm___people.name\n\n"
	if buf.String() != want {
		t.Errorf("Generate after clean = %q, want %q", buf.String(), want)
	}
}

func TestValidate(t *testing.T) {
	const project = `project: shop
databases: {}
references:
  shop___orders.customer_id:
    - shop___customers.id
    - crm___people.id
  shop___payments.order_id:
    - shop___orders.id
custom_references:
  shop___payments.order_id:
    - shop___orders.id
  shop___orders.seller_id:
    - shop___sellers.id
    - crm___people.id
`
	ws, out := newTestWorkspace(t, "shop", project)
	path := ws.Store.ProjectPath("shop")
	before := readFile(t, path)

	findings, err := ws.Validate(context.Background(), "shop")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	want := []Finding{
		{Kind: FindingDuplicateKey, Key: "shop___payments.order_id"},
		{Kind: FindingMultipleTargets, Key: "shop___orders.customer_id", Map: MapReferences},
		{Kind: FindingMultipleTargets, Key: "shop___orders.seller_id", Map: MapCustomReferences},
	}
	if !reflect.DeepEqual(findings, want) {
		t.Errorf("findings = %+v, want %+v", findings, want)
	}

	wantOut := "Validating the config file of the 'shop' project\n" +
		"Key 'shop___payments.order_id' exists in both 'references' and 'custom_references'\n" +
		"Key 'shop___orders.customer_id' in 'references' has more than one referenced key\n" +
		"Key 'shop___orders.seller_id' in 'custom_references' has more than one referenced key\n"
	if out.String() != wantOut {
		t.Errorf("output = %q, want %q", out.String(), wantOut)
	}
	if readFile(t, path) != before {
		t.Error("validate modified the project file")
	}
}

func TestValidateCleanProject(t *testing.T) {
	p := &schema.Project{Name: "shop"}
	p.References.Append("shop___orders.customer_id", "shop___customers.id")
	if findings := Validate(p); len(findings) != 0 {
		t.Errorf("findings = %+v, want none", findings)
	}
}

func TestCommandsSaveToLoadedFile(t *testing.T) {
	renamed := strings.Replace(mappedProject, "project: shop", "project: Shop Inventory", 1)
	ws, _ := newTestWorkspace(t, "shop", renamed)
	ctx := context.Background()

	if _, err := ws.Search(ctx, "shop", "customer_id", "shop___customers.id"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if err := ws.Clean(ctx, "shop"); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(ws.Store.ProjectPath("shop")))
	if err != nil {
		t.Fatalf("reading root: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "shop.yaml" {
		t.Errorf("root holds %v, want only shop.yaml", entries)
	}

	p, err := ws.Store.Load("shop")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Databases["shop"].Tables != nil {
		t.Error("clean did not reach shop.yaml")
	}
	if !p.CustomReferences.Has("shop___orders.customer_id") {
		t.Error("search did not reach shop.yaml")
	}
	if p.Name != "Shop Inventory" {
		t.Errorf("Name = %q, want the document name kept", p.Name)
	}
}

func TestScanWithoutTablesIsPersisted(t *testing.T) {
	const project = `project: shop
databases:
  shop:
    connection:
      type: mysql
      host: localhost
      database: shop
`
	ws, _ := newTestWorkspace(t, "shop", project)

	var closed atomic.Int32
	ws.Open = fakeOpener(map[string]*fakeEngine{"shop": {closed: &closed}})

	if err := ws.Scan(context.Background(), "shop"); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	p, err := ws.Store.Load("shop")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tables := p.Databases["shop"].Tables; tables == nil || len(tables) != 0 {
		t.Errorf("empty scan reloaded as %#v, want an empty table map", tables)
	}
}
