// Package natives wires the domain-facing host surface (spec §4.8): a
// Database native class over database/sql, a Socket native class over
// WebSocket, and a handful of native helper functions. Each registration
// follows the ffi.Variant contract from internal/ffi.
package natives

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"golang.org/x/sync/singleflight"

	"github.com/spiderscript/spiderscript/internal/ffi"
	"github.com/spiderscript/spiderscript/internal/ssvalue"
	"github.com/spiderscript/spiderscript/internal/sstypes"
)

// pooledDB is a reference-counted driver connection shared by every
// Database instance opened against the same (driver, dsn) pair, so two
// scripts that both open the same connection string reuse one
// underlying *sql.DB pool instead of exhausting the backend's connection
// limit.
type pooledDB struct {
	db       *sql.DB
	refCount int
}

var (
	poolMu    sync.Mutex
	pool      = map[string]*pooledDB{}
	openGroup singleflight.Group
)

func poolKey(driver, dsn string) string { return driver + "\x00" + dsn }

func openPooled(driver, dsn string) (*pooledDB, error) {
	key := poolKey(driver, dsn)
	v, err, _ := openGroup.Do(key, func() (interface{}, error) {
		poolMu.Lock()
		if p, ok := pool[key]; ok {
			poolMu.Unlock()
			return p, nil
		}
		poolMu.Unlock()

		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping %s: %w", driver, err)
		}

		poolMu.Lock()
		p, ok := pool[key]
		if !ok {
			p = &pooledDB{db: db}
			pool[key] = p
		} else {
			db.Close() // lost the race, another caller already installed one
		}
		poolMu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := v.(*pooledDB)
	poolMu.Lock()
	p.refCount++
	poolMu.Unlock()
	return p, nil
}

func releasePooled(driver, dsn string) {
	key := poolKey(driver, dsn)
	poolMu.Lock()
	defer poolMu.Unlock()
	p, ok := pool[key]
	if !ok {
		return
	}
	p.refCount--
	if p.refCount <= 0 {
		p.db.Close()
		delete(pool, key)
	}
}

// dbHandle is the Native payload stored on a Database ssvalue.ObjectObj.
type dbHandle struct {
	driver string
	dsn    string
	pooled *pooledDB
}

// driverName maps the script-facing dialect name to the sql.Open driver
// registered above.
func driverName(dialect string) (string, error) {
	switch dialect {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", dialect)
	}
}

// RegisterDatabase installs the Database native class on variant: a
// reference-counted SQL connection with execute/query helpers. Scripts
// construct one with `new db@Database(dialect, dsn)`.
func RegisterDatabase(variant *ffi.Variant) error {
	methods := []sstypes.MethodDef{
		{Name: "execute", Proto: variant.Registry.InternFuncProto(sstypes.FuncProto{Return: sstypes.IntType, Args: []sstypes.Ref{sstypes.StringType}})},
		{Name: "queryInt", Proto: variant.Registry.InternFuncProto(sstypes.FuncProto{Return: sstypes.IntType, Args: []sstypes.Ref{sstypes.StringType}})},
		{Name: "queryString", Proto: variant.Registry.InternFuncProto(sstypes.FuncProto{Return: sstypes.StringType, Args: []sstypes.Ref{sstypes.StringType}})},
		{Name: "close", Proto: variant.Registry.InternFuncProto(sstypes.FuncProto{Return: sstypes.VoidType})},
	}

	nc := &ffi.NativeClass{
		Construct: func(args []ssvalue.Value) (ssvalue.Value, error) {
			if len(args) != 2 {
				return ssvalue.Null(), fmt.Errorf("Database expects (dialect, dsn)")
			}
			driver, err := driverName(args[0].Str())
			if err != nil {
				return ssvalue.Null(), err
			}
			dsn := args[1].Str()
			p, err := openPooled(driver, dsn)
			if err != nil {
				return ssvalue.Null(), err
			}
			v := ssvalue.NewObject(nc.Def)
			v.ObjectObj().Native = &dbHandle{driver: driver, dsn: dsn, pooled: p}
			return v, nil
		},
		Destruct: func(recv ssvalue.Value) {
			h, ok := recv.ObjectObj().Native.(*dbHandle)
			if !ok || h == nil {
				return
			}
			releasePooled(h.driver, h.dsn)
		},
		Methods: map[string]*ffi.NativeMethod{
			"execute": {
				Proto: sstypes.FuncProto{Return: sstypes.IntType, Args: []sstypes.Ref{sstypes.StringType}},
				Handler: func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error) {
					h := recv.ObjectObj().Native.(*dbHandle)
					result, err := h.pooled.db.Exec(args[0].Str())
					if err != nil {
						return ssvalue.Null(), fmt.Errorf("execute: %w", err)
					}
					n, err := result.RowsAffected()
					if err != nil {
						return ssvalue.Null(), err
					}
					return ssvalue.NewInt(n), nil
				},
			},
			"queryInt": {
				Proto: sstypes.FuncProto{Return: sstypes.IntType, Args: []sstypes.Ref{sstypes.StringType}},
				Handler: func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error) {
					h := recv.ObjectObj().Native.(*dbHandle)
					var n int64
					if err := h.pooled.db.QueryRow(args[0].Str()).Scan(&n); err != nil {
						return ssvalue.Null(), fmt.Errorf("queryInt: %w", err)
					}
					return ssvalue.NewInt(n), nil
				},
			},
			"queryString": {
				Proto: sstypes.FuncProto{Return: sstypes.StringType, Args: []sstypes.Ref{sstypes.StringType}},
				Handler: func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error) {
					h := recv.ObjectObj().Native.(*dbHandle)
					var s string
					if err := h.pooled.db.QueryRow(args[0].Str()).Scan(&s); err != nil {
						return ssvalue.Null(), fmt.Errorf("queryString: %w", err)
					}
					return ssvalue.NewString(s), nil
				},
			},
			"close": {
				Proto: sstypes.FuncProto{Return: sstypes.VoidType},
				Handler: func(recv ssvalue.Value, args []ssvalue.Value) (ssvalue.Value, error) {
					h := recv.ObjectObj().Native.(*dbHandle)
					releasePooled(h.driver, h.dsn)
					recv.ObjectObj().Native = nil
					return ssvalue.Null(), nil
				},
			},
		},
	}
	_, err := variant.RegisterClass("db@Database", nil, methods, "", nc)
	return err
}
