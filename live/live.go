// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package live implements the live-query registry of §4.8: a per-table,
// process-wide subscription map keyed by UUID, notification dispatch
// after commit, and dead-sink eviction. Notifications are best-effort
// within the process; there is no cross-process replay (§4.8).
package live

import (
	"sync"

	"github.com/google/uuid"

	"github.com/veltadb/veltadb/exec"
	"github.com/veltadb/veltadb/syn/ast"
	"github.com/veltadb/veltadb/value"
	"github.com/veltadb/veltadb/veltaerr"
)

// Action is the mutation kind a notification reports.
type Action string

const (
	Create Action = "CREATE"
	Update Action = "UPDATE"
	Delete Action = "DELETE"
)

// Notification is delivered to a subscription's sink channel (§4.8).
type Notification struct {
	Action       Action
	ID           value.Value
	Result       value.Value
	Subscription uuid.UUID
}

type subscription struct {
	id        uuid.UUID
	table     string
	predicate ast.Expr
	fields    []ast.OutputField
	omit      []value.Idiom
	valueOnly bool
	env       *exec.Env
	sink      chan<- Notification
}

// Registry is the process-wide reader-writer-locked subscription map
// (§5's "Shared resources" list: reads dominate, writes occur on
// LIVE/KILL and on dead-sink eviction).
type Registry struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*subscription
	byTb map[string][]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{byID: map[uuid.UUID]*subscription{}, byTb: map[string][]uuid.UUID{}}
}

// Register adds a subscription under a caller-chosen id (typically
// freshly generated); a reused id that is still registered is rejected
// with KindDuplicateLiveId rather than silently replacing the existing
// subscription (see DESIGN.md's Open Question decision).
func (r *Registry) Register(id uuid.UUID, table string, stmt ast.SelectStmt, env *exec.Env, sink chan<- Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return veltaerr.New(veltaerr.KindDuplicateLiveId, "live query id %s is already registered", id)
	}
	sub := &subscription{
		id: id, table: table, predicate: stmt.Where, fields: stmt.Fields,
		omit: stmt.OmitPaths, valueOnly: stmt.ValueOnly, env: env, sink: sink,
	}
	r.byID[id] = sub
	r.byTb[table] = append(r.byTb[table], id)
	return nil
}

// Kill unregisters a subscription; unregistering an id that doesn't
// exist is a no-op, matching KILL's "safe to repeat" posture.
func (r *Registry) Kill(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id uuid.UUID) {
	sub, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	ids := r.byTb[sub.table]
	for i, existing := range ids {
		if existing == id {
			r.byTb[sub.table] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Notify evaluates every subscription on table against before/after and
// emits a Notification to each match. A send that blocks because the
// sink is full/closed is treated as a dead sink and the subscription is
// evicted (best-effort delivery per §4.8).
func (r *Registry) Notify(table string, recordID value.Value, action Action, before, after value.Value) {
	r.mu.RLock()
	ids := append([]uuid.UUID(nil), r.byTb[table]...)
	subs := make([]*subscription, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.byID[id]; ok {
			subs = append(subs, s)
		}
	}
	r.mu.RUnlock()

	var dead []uuid.UUID
	for _, sub := range subs {
		row := after
		if action == Delete {
			row = before
		}
		matched := true
		if sub.predicate != nil {
			v, err := exec.Eval(sub.predicate, row, sub.env)
			matched = err == nil && v.IsTruthy()
		}
		if !matched {
			continue
		}
		result, err := project(row, sub)
		if err != nil {
			continue
		}
		notif := Notification{Action: action, ID: recordID, Result: result, Subscription: sub.id}
		if !trySend(sub.sink, notif) {
			dead = append(dead, sub.id)
		}
	}
	if len(dead) > 0 {
		r.mu.Lock()
		for _, id := range dead {
			r.removeLocked(id)
		}
		r.mu.Unlock()
	}
}

func trySend(sink chan<- Notification, n Notification) bool {
	defer func() { recover() }() // sending on a closed sink panics; treat as dead
	select {
	case sink <- n:
		return true
	default:
		return false
	}
}

func project(row value.Value, sub *subscription) (value.Value, error) {
	if sub.valueOnly {
		if len(sub.fields) != 1 {
			return value.Value{}, veltaerr.New(veltaerr.KindUnknown, "VALUE projection requires exactly one field")
		}
		return exec.Eval(sub.fields[0].Expr, row, sub.env)
	}
	if len(sub.fields) == 0 {
		return row, nil
	}
	out := value.NewObject()
	for _, f := range sub.fields {
		v, err := exec.Eval(f.Expr, row, sub.env)
		if err != nil {
			return value.Value{}, err
		}
		if len(f.Alias) > 0 {
			value.Set(out, f.Alias, v)
		}
	}
	return value.Obj(out), nil
}
