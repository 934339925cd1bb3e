// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package core wires the catalog, planner, executor, change-feed,
// live-query, and permission layers into the transport-agnostic request
// surface of §6: a Datastore holding the process-wide catalog and
// index-binding registries, and a Session carrying the per-connection
// namespace/database/principal/variables. Every mutation goes through
// Datastore: primary-record writes and B-tree/UNIQUE index entries share
// one KV transaction, and once it commits the change-feed append (in a
// transaction of its own) and live-query dispatch run for the written
// rows.
package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veltadb/veltadb/catalog"
	"github.com/veltadb/veltadb/cf"
	"github.com/veltadb/veltadb/config"
	"github.com/veltadb/veltadb/exec"
	"github.com/veltadb/veltadb/idx/builder"
	"github.com/veltadb/veltadb/idx/ft"
	"github.com/veltadb/veltadb/idx/mtree"
	"github.com/veltadb/veltadb/keycodec"
	"github.com/veltadb/veltadb/keys"
	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/live"
	"github.com/veltadb/veltadb/perm"
	"github.com/veltadb/veltadb/planner"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// Session is the per-connection state §6's use/signin/set/unset operations
// mutate: selected namespace/database, authenticated principal, and
// session-scoped variables bound as $name in every subsequent statement.
type Session struct {
	NS, DB    string
	Principal perm.Principal
	Vars      map[string]value.Value
}

func NewSession() *Session {
	return &Session{Vars: map[string]value.Value{}}
}

func (s *Session) env() *exec.Env {
	return perm.Env(s.Principal, &exec.Env{Params: s.Vars})
}

// Response is one query-response envelope entry (§6).
type Response struct {
	Status string
	Result value.Value
	Detail string
	Time   time.Duration
}

// Datastore is the process-wide engine instance: one KV store, one
// catalog, and the registries the planner/live layers bind index
// instances and subscriptions through.
type Datastore struct {
	Store   kv.Store
	Catalog *catalog.Catalog
	Planner *planner.Registry
	Live    *live.Registry
	Builder *builder.Registry
	Opts    *config.Options
}

// NewDatastore wires every layer together for one store. opts is
// optional; a nil value falls back to config.New()'s defaults (no-op
// logger, in-process buffer sizing).
func NewDatastore(store kv.Store, opts *config.Options) *Datastore {
	if opts == nil {
		opts = config.New()
	}
	return &Datastore{
		Store:   store,
		Catalog: catalog.New(),
		Planner: planner.NewRegistry(),
		Live:    live.NewRegistry(),
		Builder: builder.NewRegistry().WithLogger(opts.Logger),
		Opts:    opts,
	}
}

// Query runs each statement in its own transaction and returns one
// Response per statement, in order, matching §6's "array of per-statement
// results, each Ok(value) or Err(detail)" envelope.
func (ds *Datastore) Query(ctx context.Context, sess *Session, stmts []ast.Statement) []Response {
	out := make([]Response, 0, len(stmts))
	for _, stmt := range stmts {
		start := time.Now()
		v, err := ds.execStmt(ctx, sess, stmt)
		resp := Response{Time: time.Since(start)}
		if err != nil {
			resp.Status = "ERR"
			resp.Detail = err.Error()
		} else {
			resp.Status = "OK"
			resp.Result = v
		}
		out = append(out, resp)
	}
	return out
}

func (ds *Datastore) execStmt(ctx context.Context, sess *Session, stmt ast.Statement) (value.Value, error) {
	switch s := stmt.(type) {
	case ast.UseStmt:
		if s.Namespace != "" {
			sess.NS = s.Namespace
		}
		if s.Database != "" {
			sess.DB = s.Database
		}
		return value.None(), nil
	case ast.SelectStmt:
		return ds.Select(ctx, sess, s)
	case ast.CreateStmt:
		return ds.Create(ctx, sess, s)
	case ast.UpdateStmt:
		return ds.Update(ctx, sess, s)
	case ast.UpsertStmt:
		return ds.Upsert(ctx, sess, s)
	case ast.DeleteStmt:
		return ds.Delete(ctx, sess, s)
	case ast.InsertStmt:
		return ds.Insert(ctx, sess, s)
	case ast.RelateStmt:
		return ds.Relate(ctx, sess, s)
	case ast.DefineTableStmt:
		td, err := ds.Catalog.DefineTable(s)
		if err != nil {
			return value.Value{}, err
		}
		return value.Str(td.Name), nil
	case ast.DefineIndexStmt:
		_, err := ds.Catalog.DefineIndex(s)
		return value.None(), err
	case ast.DefineFieldStmt:
		_, err := ds.Catalog.DefineField(s)
		return value.None(), err
	case ast.ShowChangesStmt:
		return ds.ShowChanges(ctx, sess, s)
	case ast.LiveSelectStmt, ast.KillStmt:
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "LIVE/KILL require a sink channel; use Datastore.LiveSelect/Datastore.Kill directly")
	default:
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "unsupported statement type %T", stmt)
	}
}

// tableOf extracts the table name one mutation target resolves to, plus
// the key when the target is a record id with a literal key; callers
// with several targets call it once per target.
func tableOf(e ast.Expr) (string, *value.Value, error) {
	switch t := e.(type) {
	case ast.Idiom:
		if len(t.Path) == 1 && t.Path[0].Index == nil {
			return t.Path[0].Field, nil, nil
		}
	case ast.RecordIDExpr:
		lit, ok := t.Key.(ast.Literal)
		if !ok {
			return t.Table, nil, nil
		}
		k := lit.Value
		return t.Table, &k, nil
	}
	return "", nil, veltaerr.New(veltaerr.KindUnknown, "unsupported mutation target %T", e)
}

func newRecordKey() value.Value {
	return value.Uid(uuid.New())
}

// Select plans and runs a read-only query, filtering rows the session's
// table-level SELECT permission rejects (§4.9) and, when the statement is
// LIVE, is instead expected to go through LiveSelect.
func (ds *Datastore) Select(ctx context.Context, sess *Session, stmt ast.SelectStmt) (value.Value, error) {
	if stmt.Live {
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "LIVE SELECT requires a sink channel; use Datastore.LiveSelect")
	}
	tx, err := ds.Store.Begin(ctx, false)
	if err != nil {
		return value.Value{}, err
	}
	defer tx.Cancel(ctx)

	env := sess.env()
	op, err := planner.Plan(ctx, stmt, ds.Catalog, ds.Planner, tx, sess.NS, sess.DB, env)
	if err != nil {
		return value.Value{}, err
	}
	rows, err := exec.Collect(ctx, op)
	if err != nil {
		return value.Value{}, err
	}
	if table, _, terr := tableOf(firstOr(stmt.What)); terr == nil {
		if td, ok := ds.Catalog.Table(table); ok {
			rows, err = perm.FilterSelect(sess.Principal, td, rows, env)
			if err != nil {
				return value.Value{}, err
			}
		}
	}
	return value.Array(rows...), nil
}

func firstOr(es []ast.Expr) ast.Expr {
	if len(es) == 0 {
		return nil
	}
	return es[0]
}

// LiveSelect registers a live query against stmt's table, dispatching
// matching commits to sink (§4.8).
func (ds *Datastore) LiveSelect(sess *Session, stmt ast.SelectStmt) (uuid.UUID, <-chan live.Notification, error) {
	table, _, err := tableOf(firstOr(stmt.What))
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	id := uuid.New()
	sink := make(chan live.Notification, 64)
	if err := ds.Live.Register(id, table, stmt, sess.env(), sink); err != nil {
		return uuid.UUID{}, nil, err
	}
	return id, sink, nil
}

func (ds *Datastore) Kill(id uuid.UUID) { ds.Live.Kill(id) }

// Create evaluates Content for each target and inserts it as a new row,
// generating a record key when the target is a bare table.
func (ds *Datastore) Create(ctx context.Context, sess *Session, stmt ast.CreateStmt) (value.Value, error) {
	return ds.mutateMany(ctx, sess, stmt.What, func(tx kv.Transaction, table string, key *value.Value) (value.Value, cf.Action, error) {
		content, err := exec.Eval(stmt.Content, value.None(), sess.env())
		if err != nil {
			return value.Value{}, cf.Create, err
		}
		k := key
		if k == nil {
			nk := newRecordKey()
			k = &nk
		}
		row, err := ds.insertRow(ctx, tx, sess, table, *k, content)
		return row, cf.Create, err
	})
}

// Insert bulk-creates rows from object literals (INSERT INTO tb [...]).
func (ds *Datastore) Insert(ctx context.Context, sess *Session, stmt ast.InsertStmt) (value.Value, error) {
	tx, err := ds.Store.Begin(ctx, true)
	if err != nil {
		return value.Value{}, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Cancel(ctx)
		}
	}()

	results := make([]value.Value, 0, len(stmt.Rows))
	for _, rowExpr := range stmt.Rows {
		content, err := exec.Eval(rowExpr, value.None(), sess.env())
		if err != nil {
			return value.Value{}, err
		}
		key := newRecordKey()
		if obj, ok := content.AsObject(); ok {
			if idv, ok := obj.Get("id"); ok {
				key = idv
			}
		}
		after, err := ds.insertRow(ctx, tx, sess, stmt.Into, key, content)
		if err != nil {
			return value.Value{}, err
		}
		results = append(results, after)
	}
	vs, err := tx.Commit(ctx)
	if err != nil {
		return value.Value{}, err
	}
	committed = true
	ds.afterCommit(ctx, sess, vs, stmt.Into, cf.Create, results, nil)
	return value.Array(results...), nil
}

// Update applies Content (CONTENT replaces the row, MERGE overlays
// fields onto the existing row) to every row stmt.Where matches.
func (ds *Datastore) Update(ctx context.Context, sess *Session, stmt ast.UpdateStmt) (value.Value, error) {
	return ds.mutateMatching(ctx, sess, stmt.What, stmt.Where, cf.Update, func(tx kv.Transaction, table string, key value.Value, before value.Value) (value.Value, error) {
		return ds.applyContent(ctx, tx, sess, table, key, before, stmt.Content, stmt.Merge)
	})
}

// Upsert merges Content over the row a point target names when that row
// exists, and creates it otherwise. A bare-table target always creates a
// new row under a generated key; existing rows are not matched.
func (ds *Datastore) Upsert(ctx context.Context, sess *Session, stmt ast.UpsertStmt) (value.Value, error) {
	return ds.mutateMany(ctx, sess, stmt.What, func(tx kv.Transaction, table string, key *value.Value) (value.Value, cf.Action, error) {
		content, err := exec.Eval(stmt.Content, value.None(), sess.env())
		if err != nil {
			return value.Value{}, cf.Create, err
		}
		if key == nil {
			nk := newRecordKey()
			key = &nk
		}
		existing, found, err := ds.getRow(ctx, tx, sess, table, *key)
		if err != nil {
			return value.Value{}, cf.Create, err
		}
		if !found {
			row, err := ds.insertRow(ctx, tx, sess, table, *key, content)
			return row, cf.Create, err
		}
		merged := mergeObjects(existing, content)
		row, err := ds.replaceRow(ctx, tx, sess, table, *key, existing, merged)
		return row, cf.Update, err
	})
}

// Delete removes every row stmt.Where matches (or the point target).
func (ds *Datastore) Delete(ctx context.Context, sess *Session, stmt ast.DeleteStmt) (value.Value, error) {
	return ds.mutateMatching(ctx, sess, stmt.What, stmt.Where, cf.Delete, func(tx kv.Transaction, table string, key value.Value, before value.Value) (value.Value, error) {
		return ds.deleteRow(ctx, tx, sess, table, key, before)
	})
}

// Relate creates an edge record (§3's graph-edge convention: a row in
// Edge's table carrying `in`/`out` pointers to From/To).
func (ds *Datastore) Relate(ctx context.Context, sess *Session, stmt ast.RelateStmt) (value.Value, error) {
	fromTable, fromKey, err := tableOf(stmt.From)
	if err != nil {
		return value.Value{}, err
	}
	toTable, toKey, err := tableOf(stmt.To)
	if err != nil {
		return value.Value{}, err
	}
	edgeTable, _, err := tableOf(stmt.Edge)
	if err != nil {
		return value.Value{}, err
	}
	if fromKey == nil || toKey == nil {
		return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "RELATE requires concrete record ids on both sides")
	}

	tx, err := ds.Store.Begin(ctx, true)
	if err != nil {
		return value.Value{}, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Cancel(ctx)
		}
	}()

	content := value.None()
	if stmt.Content != nil {
		content, err = exec.Eval(stmt.Content, value.None(), sess.env())
		if err != nil {
			return value.Value{}, err
		}
	}
	obj := value.NewObject()
	if existing, ok := content.AsObject(); ok {
		for _, k := range existing.Keys() {
			v, _ := existing.Get(k)
			obj.Set(k, v)
		}
	}
	obj.Set("in", value.Rid(value.NewRecordID(fromTable, *fromKey)))
	obj.Set("out", value.Rid(value.NewRecordID(toTable, *toKey)))

	key := newRecordKey()
	after, err := ds.insertRow(ctx, tx, sess, edgeTable, key, value.Obj(obj))
	if err != nil {
		return value.Value{}, err
	}
	vs, err := tx.Commit(ctx)
	if err != nil {
		return value.Value{}, err
	}
	committed = true
	ds.afterCommit(ctx, sess, vs, edgeTable, cf.Create, []value.Value{after}, nil)
	return after, nil
}

func (ds *Datastore) ShowChanges(ctx context.Context, sess *Session, stmt ast.ShowChangesStmt) (value.Value, error) {
	tx, err := ds.Store.Begin(ctx, false)
	if err != nil {
		return value.Value{}, err
	}
	defer tx.Cancel(ctx)
	since := kv.ZeroVS
	if stmt.Since != nil {
		v, err := exec.Eval(stmt.Since, value.None(), sess.env())
		if err != nil {
			return value.Value{}, err
		}
		n, _ := v.AsInt()
		since = kv.VSFromUint64(uint64(n))
	}
	groups, err := cf.ShowChanges(ctx, tx, sess.NS, sess.DB, stmt.Table, since, 0)
	if err != nil {
		return value.Value{}, err
	}
	out := make([]value.Value, 0, len(groups))
	for _, g := range groups {
		o := value.NewObject()
		o.Set("versionstamp", value.Bytes(g.Versionstamp.Bytes()))
		changes := make([]value.Value, 0, len(g.Changes))
		for _, c := range g.Changes {
			co := value.NewObject()
			co.Set("table", value.Str(c.Table))
			co.Set("action", value.Str(string(c.Action)))
			co.Set("before", c.Before)
			co.Set("after", c.After)
			changes = append(changes, value.Obj(co))
		}
		o.Set("changes", value.Array(changes...))
		out = append(out, value.Obj(o))
	}
	return value.Array(out...), nil
}

// mutateMany runs fn once per target (table-or-point), inside one
// transaction, committing and dispatching change-feed/live notifications
// for every successful row.
func (ds *Datastore) mutateMany(ctx context.Context, sess *Session, targets []ast.Expr, fn func(tx kv.Transaction, table string, key *value.Value) (value.Value, cf.Action, error)) (value.Value, error) {
	tx, err := ds.Store.Begin(ctx, true)
	if err != nil {
		return value.Value{}, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Cancel(ctx)
		}
	}()

	type pending struct {
		table  string
		after  value.Value
		action cf.Action
	}
	results := make([]value.Value, 0, len(targets))
	var dispatch []pending
	for _, t := range targets {
		table, key, err := tableOf(t)
		if err != nil {
			return value.Value{}, err
		}
		after, action, err := fn(tx, table, key)
		if err != nil {
			return value.Value{}, err
		}
		results = append(results, after)
		dispatch = append(dispatch, pending{table: table, after: after, action: action})
	}
	vs, err := tx.Commit(ctx)
	if err != nil {
		return value.Value{}, err
	}
	committed = true
	for _, d := range dispatch {
		ds.afterCommit(ctx, sess, vs, d.table, d.action, []value.Value{d.after}, nil)
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return value.Array(results...), nil
}

// mutateMatching scans every target table for rows stmt.Where selects
// (or a single point lookup) and applies fn to each.
func (ds *Datastore) mutateMatching(ctx context.Context, sess *Session, targets []ast.Expr, where ast.Expr, action cf.Action, fn func(tx kv.Transaction, table string, key value.Value, before value.Value) (value.Value, error)) (value.Value, error) {
	tx, err := ds.Store.Begin(ctx, true)
	if err != nil {
		return value.Value{}, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Cancel(ctx)
		}
	}()

	var results []value.Value
	for _, t := range targets {
		table, key, err := tableOf(t)
		if err != nil {
			return value.Value{}, err
		}
		var rows []rowWithKey
		if key != nil {
			row, found, err := ds.getRow(ctx, tx, sess, table, *key)
			if err != nil {
				return value.Value{}, err
			}
			if !found {
				continue
			}
			rows = []rowWithKey{{key: *key, row: row}}
		} else {
			rows, err = ds.scanTable(ctx, tx, sess, table, where)
			if err != nil {
				return value.Value{}, err
			}
		}
		for _, rk := range rows {
			after, err := fn(tx, table, rk.key, rk.row)
			if err != nil {
				return value.Value{}, err
			}
			results = append(results, after)
		}
	}
	vs, err := tx.Commit(ctx)
	if err != nil {
		return value.Value{}, err
	}
	committed = true
	ds.afterCommit(ctx, sess, vs, "", action, results, nil)
	return value.Array(results...), nil
}

type rowWithKey struct {
	key value.Value
	row value.Value
}

func (ds *Datastore) scanTable(ctx context.Context, tx kv.Transaction, sess *Session, table string, where ast.Expr) ([]rowWithKey, error) {
	op := exec.NewScan(tx, sess.NS, sess.DB, table)
	rows, err := exec.Collect(ctx, op)
	if err != nil {
		return nil, err
	}
	env := sess.env()
	out := make([]rowWithKey, 0, len(rows))
	for _, row := range rows {
		if where != nil {
			v, err := exec.Eval(where, row, env)
			if err != nil || !v.IsTruthy() {
				continue
			}
		}
		obj, ok := row.AsObject()
		if !ok {
			continue
		}
		idv, ok := obj.Get("id")
		if !ok {
			continue
		}
		// the stored "id" is the full record id; the primary key holds only its key part
		key := idv
		if rid, ok := idv.AsRecordID(); ok {
			key = rid.Key
		}
		out = append(out, rowWithKey{key: key, row: row})
	}
	return out, nil
}

func (ds *Datastore) getRow(ctx context.Context, tx kv.Transaction, sess *Session, table string, key value.Value) (value.Value, bool, error) {
	raw, ok, err := tx.Get(ctx, keys.PrimaryKey(sess.NS, sess.DB, table, key), nil)
	if err != nil || !ok {
		return value.Value{}, false, err
	}
	v, _, err := keycodec.Decode(raw)
	if err != nil {
		return value.Value{}, false, veltaerr.Wrap(veltaerr.KindCorruption, err, "decode row")
	}
	return v, true, nil
}

func (ds *Datastore) applyContent(ctx context.Context, tx kv.Transaction, sess *Session, table string, key value.Value, before value.Value, content ast.Expr, merge bool) (value.Value, error) {
	delta, err := exec.Eval(content, before, sess.env())
	if err != nil {
		return value.Value{}, err
	}
	after := delta
	if merge {
		after = mergeObjects(before, delta)
	}
	return ds.replaceRow(ctx, tx, sess, table, key, before, after)
}

func mergeObjects(base, delta value.Value) value.Value {
	baseObj, ok := base.AsObject()
	if !ok {
		return delta
	}
	out := baseObj.Clone()
	if deltaObj, ok := delta.AsObject(); ok {
		for _, k := range deltaObj.Keys() {
			v, _ := deltaObj.Get(k)
			out.Set(k, v)
		}
	}
	return value.Obj(out)
}

func withID(table string, key value.Value, row value.Value) value.Value {
	obj, ok := row.AsObject()
	if !ok {
		obj = value.NewObject()
	} else {
		obj = obj.Clone()
	}
	obj.Set("id", value.Rid(value.NewRecordID(table, key)))
	return value.Obj(obj)
}

// insertRow writes a brand-new primary record plus its index entries,
// checking the table's CREATE permission first.
func (ds *Datastore) insertRow(ctx context.Context, tx kv.Transaction, sess *Session, table string, key value.Value, content value.Value) (value.Value, error) {
	row := withID(table, key, content)
	td := ds.Catalog.EnsureTable(table)
	if err := perm.CheckMutation(sess.Principal, td, perm.Create, row, sess.env()); err != nil {
		return value.Value{}, err
	}
	if err := tx.Put(ctx, keys.PrimaryKey(sess.NS, sess.DB, table, key), keycodec.Encode(nil, row)); err != nil {
		return value.Value{}, err
	}
	if err := ds.indexRow(ctx, tx, sess, td, key, row, nil); err != nil {
		return value.Value{}, err
	}
	return row, nil
}

// replaceRow overwrites an existing primary record, re-derives its index
// entries (removing stale ones from the pre-image), checking the table's
// UPDATE permission first.
func (ds *Datastore) replaceRow(ctx context.Context, tx kv.Transaction, sess *Session, table string, key value.Value, before value.Value, content value.Value) (value.Value, error) {
	row := withID(table, key, content)
	td := ds.Catalog.EnsureTable(table)
	if err := perm.CheckMutation(sess.Principal, td, perm.Update, row, sess.env()); err != nil {
		return value.Value{}, err
	}
	if err := tx.Set(ctx, keys.PrimaryKey(sess.NS, sess.DB, table, key), keycodec.Encode(nil, row)); err != nil {
		return value.Value{}, err
	}
	if err := ds.indexRow(ctx, tx, sess, td, key, row, &before); err != nil {
		return value.Value{}, err
	}
	return row, nil
}

func (ds *Datastore) deleteRow(ctx context.Context, tx kv.Transaction, sess *Session, table string, key value.Value, before value.Value) (value.Value, error) {
	td := ds.Catalog.EnsureTable(table)
	if err := perm.CheckMutation(sess.Principal, td, perm.Delete, before, sess.env()); err != nil {
		return value.Value{}, err
	}
	if err := tx.Del(ctx, keys.PrimaryKey(sess.NS, sess.DB, table, key)); err != nil {
		return value.Value{}, err
	}
	if err := ds.removeIndexEntries(ctx, tx, sess, td, key, before); err != nil {
		return value.Value{}, err
	}
	return before, nil
}

func columnValues(row value.Value, cols []string) []value.Value {
	out := make([]value.Value, len(cols))
	for i, c := range cols {
		out[i] = value.Get(row, value.ParseIdiom(c))
	}
	return out
}

// indexRow maintains every catalog index on table for one write: removes
// the pre-image's entries (when before is non-nil, i.e. an update) and
// inserts after's.
func (ds *Datastore) indexRow(ctx context.Context, tx kv.Transaction, sess *Session, td *catalog.TableDef, key value.Value, after value.Value, before *value.Value) error {
	if before != nil {
		if err := ds.removeIndexEntries(ctx, tx, sess, td, key, *before); err != nil {
			return err
		}
	}
	for _, ix := range ds.Catalog.IndexesFor(td.Name) {
		switch ix.Kind {
		case ast.IndexBTree, ast.IndexUnique:
			cols := columnValues(after, ix.Columns)
			unique := ix.Kind == ast.IndexUnique
			ik := keys.IndexKey(sess.NS, sess.DB, td.Name, ix.Name, cols, key, unique)
			val := keycodec.Encode(nil, key)
			if unique {
				if err := tx.Put(ctx, ik, val); err != nil {
					return veltaerr.Wrap(veltaerr.KindConstraintViolation, err, "unique index %q violated", ix.Name)
				}
			} else if err := tx.Set(ctx, ik, val); err != nil {
				return err
			}
		case ast.IndexSearch:
			docKey := value.NewRecordID(td.Name, key).String()
			text := textOf(columnValues(after, ix.Columns))
			ds.ftIndex(td.Name, ix).Ingest(docKey, text)
		case ast.IndexMTree:
			docKey := value.NewRecordID(td.Name, key).String()
			vec, ok := vectorOf(columnValues(after, ix.Columns))
			if ok {
				ds.mtreeIndex(td.Name, ix).Upsert(docKey, vec)
			}
		}
	}
	return nil
}

func (ds *Datastore) removeIndexEntries(ctx context.Context, tx kv.Transaction, sess *Session, td *catalog.TableDef, key value.Value, before value.Value) error {
	for _, ix := range ds.Catalog.IndexesFor(td.Name) {
		switch ix.Kind {
		case ast.IndexBTree, ast.IndexUnique:
			cols := columnValues(before, ix.Columns)
			unique := ix.Kind == ast.IndexUnique
			ik := keys.IndexKey(sess.NS, sess.DB, td.Name, ix.Name, cols, key, unique)
			if err := tx.Del(ctx, ik); err != nil {
				return err
			}
		case ast.IndexSearch:
			ds.ftIndex(td.Name, ix).Delete(value.NewRecordID(td.Name, key).String())
		case ast.IndexMTree:
			ds.mtreeIndex(td.Name, ix).Delete(value.NewRecordID(td.Name, key).String())
		}
	}
	return nil
}

func (ds *Datastore) ftIndex(table string, ix *catalog.IndexDef) *ft.Index {
	key := table + "/" + ix.Name
	if existing, ok := ds.Planner.FullText[key]; ok {
		return existing
	}
	idx := ft.New(ft.DefaultAnalyzer)
	ds.Planner.FullText[key] = idx
	return idx
}

func (ds *Datastore) mtreeIndex(table string, ix *catalog.IndexDef) *mtree.Index {
	key := table + "/" + ix.Name
	if existing, ok := ds.Planner.Vector[key]; ok {
		return existing
	}
	idx := mtree.New(mtree.Distance(strings.ToLower(ix.MTreeDist)), 2)
	ds.Planner.Vector[key] = idx
	return idx
}

func textOf(cols []value.Value) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if s, ok := c.AsString(); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func vectorOf(cols []value.Value) ([]float64, bool) {
	if len(cols) != 1 {
		return nil, false
	}
	arr, ok := cols[0].AsArray()
	if !ok {
		return nil, false
	}
	out := make([]float64, len(arr))
	for i, v := range arr {
		fv, err := value.CoerceTo(v, value.KindFloat64)
		if err != nil {
			return nil, false
		}
		f, _ := fv.AsFloat()
		out[i] = f
	}
	return out, true
}

// afterCommit appends change-feed entries (when the table opts in) and
// dispatches live-query notifications for a batch of written rows.
func (ds *Datastore) afterCommit(ctx context.Context, sess *Session, versionstamp kv.VS, table string, action cf.Action, rows []value.Value, before []value.Value) {
	for i, row := range rows {
		obj, ok := row.AsObject()
		if !ok {
			continue
		}
		idv, _ := obj.Get("id")
		rid, ok := idv.AsRecordID()
		tbl := table
		if ok {
			tbl = rid.Table
		}

		// rows carries the row's last known state: for CREATE/UPDATE that's
		// the written content (the "after" image); for DELETE, since there
		// is no after image, it's the pre-deletion snapshot (the "before").
		beforeRow, afterRow := value.None(), row
		if action == cf.Delete {
			beforeRow, afterRow = row, value.None()
		} else if before != nil && i < len(before) {
			beforeRow = before[i]
		}

		if td, ok := ds.Catalog.Table(tbl); ok && td.Changefeed {
			ds.appendChangeFeed(ctx, sess, versionstamp, tbl, action, beforeRow, afterRow)
		}
		liveAction := live.Create
		switch action {
		case cf.Update:
			liveAction = live.Update
		case cf.Delete:
			liveAction = live.Delete
		}
		ds.Live.Notify(tbl, idv, liveAction, beforeRow, afterRow)
	}
}

func (ds *Datastore) appendChangeFeed(ctx context.Context, sess *Session, versionstamp kv.VS, table string, action cf.Action, before, after value.Value) {
	tx, err := ds.Store.Begin(ctx, true)
	if err != nil {
		ds.Opts.Logger.Warn("change-feed append: begin failed", zap.String("table", table), zap.Error(err))
		return
	}
	obj, ok := after.AsObject()
	if !ok {
		obj, ok = before.AsObject()
	}
	var key value.Value = value.None()
	if ok {
		if idv, ok := obj.Get("id"); ok {
			key = idv
		}
	}
	if err := cf.Append(ctx, tx, sess.NS, sess.DB, versionstamp, cf.Change{
		Table: table, RecordKey: key, Action: action, Before: before, After: after,
	}); err != nil {
		ds.Opts.Logger.Warn("change-feed append failed", zap.String("table", table), zap.Error(err))
		tx.Cancel(ctx)
		return
	}
	if _, err := tx.Commit(ctx); err != nil {
		ds.Opts.Logger.Warn("change-feed append: commit failed", zap.String("table", table), zap.Error(err))
		tx.Cancel(ctx)
	}
}
