package natives

import (
	"testing"

	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

func TestDriverNameMapsKnownDialects(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
	}{
		{"sqlite", "sqlite"},
		{"sqlite3", "sqlite"},
		{"postgres", "postgres"},
		{"postgresql", "postgres"},
		{"mysql", "mysql"},
		{"sqlserver", "sqlserver"},
		{"mssql", "sqlserver"},
	}
	for _, test := range tests {
		got, err := driverName(test.dialect)
		if err != nil {
			t.Errorf("driverName(%q) returned error: %v", test.dialect, err)
		}
		if got != test.want {
			t.Errorf("driverName(%q) = %q, want %q", test.dialect, got, test.want)
		}
	}
}

func TestDriverNameRejectsUnknownDialect(t *testing.T) {
	if _, err := driverName("oracle"); err == nil {
		t.Fatal("expected an error for an unsupported dialect")
	}
}

func newDatabaseVariant(t *testing.T) *ffi.Variant {
	t.Helper()
	variant := ffi.NewVariant("test", sstypes.NewRegistry())
	if err := RegisterDatabase(variant); err != nil {
		t.Fatalf("RegisterDatabase: %v", err)
	}
	return variant
}

func TestDatabaseConstructRejectsWrongArity(t *testing.T) {
	variant := newDatabaseVariant(t)
	nc := variant.Classes["db@Database"]
	if _, err := nc.Construct([]ssvalue.Value{ssvalue.NewString("sqlite")}); err == nil {
		t.Fatal("expected an error constructing Database with only one argument")
	}
}

func TestDatabaseConstructRejectsUnknownDialect(t *testing.T) {
	variant := newDatabaseVariant(t)
	nc := variant.Classes["db@Database"]
	_, err := nc.Construct([]ssvalue.Value{ssvalue.NewString("oracle"), ssvalue.NewString(":memory:")})
	if err == nil {
		t.Fatal("expected an error constructing Database with an unsupported dialect")
	}
}

func TestDatabaseLifecycleOverSqlite(t *testing.T) {
	variant := newDatabaseVariant(t)
	nc := variant.Classes["db@Database"]

	obj, err := nc.Construct([]ssvalue.Value{ssvalue.NewString("sqlite"), ssvalue.NewString(":memory:")})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	execute := nc.Methods["execute"]
	if _, err := execute.Handler(obj, []ssvalue.Value{ssvalue.NewString("create table widgets (id integer, name text)")}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := execute.Handler(obj, []ssvalue.Value{ssvalue.NewString("insert into widgets (id, name) values (1, 'bolt')")}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	queryInt := nc.Methods["queryInt"]
	count, err := queryInt.Handler(obj, []ssvalue.Value{ssvalue.NewString("select count(*) from widgets")})
	if err != nil {
		t.Fatalf("queryInt: %v", err)
	}
	if count.Int() != 1 {
		t.Fatalf("row count = %d, want 1", count.Int())
	}

	queryString := nc.Methods["queryString"]
	name, err := queryString.Handler(obj, []ssvalue.Value{ssvalue.NewString("select name from widgets where id = 1")})
	if err != nil {
		t.Fatalf("queryString: %v", err)
	}
	if name.Str() != "bolt" {
		t.Fatalf("name = %q, want bolt", name.Str())
	}

	closeMethod := nc.Methods["close"]
	if _, err := closeMethod.Handler(obj, nil); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDatabasePoolIsSharedAndRefcounted(t *testing.T) {
	variant := newDatabaseVariant(t)
	nc := variant.Classes["db@Database"]
	dsn := "file:natives_pool_test?mode=memory&cache=shared"

	obj1, err := nc.Construct([]ssvalue.Value{ssvalue.NewString("sqlite"), ssvalue.NewString(dsn)})
	if err != nil {
		t.Fatalf("first Construct: %v", err)
	}
	obj2, err := nc.Construct([]ssvalue.Value{ssvalue.NewString("sqlite"), ssvalue.NewString(dsn)})
	if err != nil {
		t.Fatalf("second Construct: %v", err)
	}

	h1 := obj1.ObjectObj().Native.(*dbHandle)
	h2 := obj2.ObjectObj().Native.(*dbHandle)
	if h1.pooled != h2.pooled {
		t.Fatal("two Database handles opened against the same DSN should share one pooled connection")
	}

	poolMu.Lock()
	refs := h1.pooled.refCount
	poolMu.Unlock()
	if refs != 2 {
		t.Fatalf("pool refcount = %d, want 2 after two opens", refs)
	}

	nc.Destruct(obj1)
	poolMu.Lock()
	_, stillPooled := pool[poolKey("sqlite", dsn)]
	poolMu.Unlock()
	if !stillPooled {
		t.Fatal("pool entry was evicted after releasing only one of two references")
	}

	nc.Destruct(obj2)
	poolMu.Lock()
	_, stillPooled = pool[poolKey("sqlite", dsn)]
	poolMu.Unlock()
	if stillPooled {
		t.Fatal("pool entry should be evicted once every reference is released")
	}
}
