// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog holds namespace/database/table/field/index definitions
// and a process-wide, cache-timestamp-invalidated read cache in front of
// them, mirroring the way erigon-lib keeps a hot in-memory view of chain
// config/genesis state in front of the KV-backed source of truth.
//
// Cross-references between catalog entities and the index/executor layers
// are arena-indexed identifiers (TableId, IndexId), not pointers, per the
// engine's cyclic-ownership design note: the catalog is the single owner.
package catalog

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/veltaerr"
)

type TableID uint64
type IndexID uint64

type TableKind int

const (
	TableAny TableKind = iota
	TableNormal
	TableRelation
)

type RelationSpec struct {
	From, To string
	Enforced bool
}

type TableDef struct {
	ID          TableID
	Name        string
	Kind        TableKind
	Relation    RelationSpec
	Permissions ast.TablePermissions
	Changefeed  bool
	Retention   int64 // nanoseconds, from a literal CHANGEFEED duration; change-feed appends do not consult it
	cacheTS     int64
}

type IndexDef struct {
	ID        IndexID
	Table     string
	Name      string
	Columns   []string // idiom.String() form, in declared order
	Kind      ast.IndexKind
	Analyzer  string
	MTreeDim  int
	MTreeDist string
}

type FieldDef struct {
	Table       string
	Name        string
	Permissions ast.ActionPermission // field-level SELECT permission; the parser supplies FULL when DEFINE FIELD has no PERMISSIONS clause
}

type NamespaceDef struct{ Name string }
type DatabaseDef struct{ Namespace, Name string }

// Catalog is the namespace+database-scoped store of definitions for one
// Datastore. It is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	tables     map[string]*TableDef
	indexes    map[string]*IndexDef   // keyed by "table/indexname"
	fields     map[string]*FieldDef   // keyed by "table/fieldpath"
	tableIdx   map[string][]*IndexDef // table -> its indexes
	nextTable  uint64
	nextIndex  uint64
	defCache   *lru.Cache[string, any]
	globalTS   int64
}

func New() *Catalog {
	cache, _ := lru.New[string, any](1024)
	return &Catalog{
		tables:   map[string]*TableDef{},
		indexes:  map[string]*IndexDef{},
		fields:   map[string]*FieldDef{},
		tableIdx: map[string][]*IndexDef{},
		defCache: cache,
	}
}

func (c *Catalog) bumpTS() int64 { return atomic.AddInt64(&c.globalTS, 1) }

// DefineTable registers or redefines a table. Redefinition merges new
// permission/changefeed clauses over the existing definition rather than
// discarding prior index/field registrations.
func (c *Catalog) DefineTable(stmt ast.DefineTableStmt) (*TableDef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	td, ok := c.tables[stmt.Name]
	if !ok {
		c.nextTable++
		td = &TableDef{ID: TableID(c.nextTable), Name: stmt.Name, Kind: TableNormal}
		c.tables[stmt.Name] = td
	}
	td.Permissions = stmt.Permissions
	if stmt.Changefeed != nil {
		td.Changefeed = true
		if lit, ok := stmt.Changefeed.(ast.Literal); ok {
			if d, ok := lit.Value.AsDuration(); ok {
				td.Retention = int64(d)
			}
		}
	}
	td.cacheTS = c.bumpTS()
	c.defCache.Remove(cacheKeyTable(stmt.Name))
	return td, nil
}

func (c *Catalog) DefineIndex(stmt ast.DefineIndexStmt) (*IndexDef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[stmt.Table]; !ok {
		return nil, veltaerr.New(veltaerr.KindTableNotFound, "table %q not found", stmt.Table)
	}
	key := stmt.Table + "/" + stmt.Name
	if _, exists := c.indexes[key]; exists {
		return nil, veltaerr.New(veltaerr.KindAlreadyExists, "index %q already defined on table %q", stmt.Name, stmt.Table)
	}
	c.nextIndex++
	cols := make([]string, len(stmt.Columns))
	for i, col := range stmt.Columns {
		cols[i] = col.String()
	}
	ix := &IndexDef{
		ID: IndexID(c.nextIndex), Table: stmt.Table, Name: stmt.Name, Columns: cols,
		Kind: stmt.Kind, Analyzer: stmt.Analyzer, MTreeDim: stmt.MTreeDim, MTreeDist: stmt.MTreeDist,
	}
	c.indexes[key] = ix
	c.tableIdx[stmt.Table] = append(c.tableIdx[stmt.Table], ix)
	c.tables[stmt.Table].cacheTS = c.bumpTS()
	c.defCache.Remove(cacheKeyIndexes(stmt.Table))
	return ix, nil
}

func (c *Catalog) DefineField(stmt ast.DefineFieldStmt) (*FieldDef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[stmt.Table]; !ok {
		return nil, veltaerr.New(veltaerr.KindTableNotFound, "table %q not found", stmt.Table)
	}
	fd := &FieldDef{Table: stmt.Table, Name: stmt.Name, Permissions: stmt.Permissions}
	c.fields[stmt.Table+"/"+stmt.Name] = fd
	c.tables[stmt.Table].cacheTS = c.bumpTS()
	return fd, nil
}

func (c *Catalog) Table(name string) (*TableDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	td, ok := c.tables[name]
	return td, ok
}

// IndexesFor returns every index defined on a table, in definition order.
func (c *Catalog) IndexesFor(table string) []*IndexDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*IndexDef, len(c.tableIdx[table]))
	copy(out, c.tableIdx[table])
	return out
}

func (c *Catalog) Field(table, path string) (*FieldDef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fd, ok := c.fields[table+"/"+path]
	return fd, ok
}

// EnsureTable implicitly defines a table on first write, the way schemaless
// CREATE/INSERT statements do against an undefined table.
func (c *Catalog) EnsureTable(name string) *TableDef {
	c.mu.Lock()
	defer c.mu.Unlock()
	if td, ok := c.tables[name]; ok {
		return td
	}
	c.nextTable++
	td := &TableDef{ID: TableID(c.nextTable), Name: name, Kind: TableNormal}
	c.tables[name] = td
	return td
}

func cacheKeyTable(name string) string   { return "table:" + name }
func cacheKeyIndexes(table string) string { return "indexes:" + table }

// InfoForTable renders an INFO FOR TABLE-style introspection summary (§6).
func (c *Catalog) InfoForTable(name string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[string]any{}
	if td, ok := c.tables[name]; ok {
		out["kind"] = td.Kind
		out["changefeed"] = td.Changefeed
	}
	idxNames := []string{}
	for _, ix := range c.tableIdx[name] {
		idxNames = append(idxNames, ix.Name)
	}
	out["indexes"] = idxNames
	return out
}
