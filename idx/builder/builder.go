// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package builder runs index (re)builds as a background task with
// introspectable progress (§4.6.4): Start streams rows through a
// caller-supplied function without blocking the caller, and Status
// reports progress per (table, index). Nothing in this module calls
// Start: DEFINE INDEX only registers the definition, so rows written
// before it are not added to the new index.
package builder

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/veltadb/veltadb/veltaerr"
)

// maxConcurrentBuilds bounds how many background index builds run at
// once across every Registry in the process, so a burst of DEFINE INDEX
// statements on large tables can't starve foreground request handling.
const maxConcurrentBuilds = 4

var buildSem = semaphore.NewWeighted(maxConcurrentBuilds)

var (
	buildsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veltadb_index_builds_started_total",
		Help: "Background index (re)builds started.",
	})
	rowsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veltadb_index_build_rows_indexed_total",
		Help: "Rows processed by background index builds.",
	})
	buildsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veltadb_index_builds_failed_total",
		Help: "Background index builds that finished with an error.",
	})
)

// Status is a running build's introspectable state.
type Status struct {
	Table      string
	Index      string
	Total      int64
	Done       int64
	Err        error
	Finished   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// RowFunc processes one row during a build pass, returning the error (if
// any) encountered while indexing it. Errors are retried with backoff
// (transient KV contention) rather than aborting the whole build.
type RowFunc func(ctx context.Context) error

// Registry tracks builds by (table, index) so InfoForIndex-style
// introspection (§6) can report progress without a shared RPC channel.
type Registry struct {
	mu       sync.RWMutex
	statuses map[string]*Status
	log      *zap.Logger
}

func NewRegistry() *Registry {
	return &Registry{statuses: map[string]*Status{}, log: zap.NewNop()}
}

// WithLogger attaches a structured logger for build lifecycle events,
// replacing the default no-op logger.
func (r *Registry) WithLogger(log *zap.Logger) *Registry {
	if log != nil {
		r.log = log
	}
	return r
}

func statusKey(table, index string) string { return table + "\x00" + index }

// Start launches a build in the background, bounded by a process-wide
// concurrency limit so bursts of DEFINE INDEX statements don't compete
// with foreground request handling. total is the row count estimate used
// for progress reporting; rows is called once and hands each row to
// emit, which retries it with backoff around transient failures.
func (r *Registry) Start(ctx context.Context, table, index string, total int64, rows func(ctx context.Context, emit func(RowFunc) error) error) *Status {
	st := &Status{Table: table, Index: index, Total: total, StartedAt: time.Now()}
	r.mu.Lock()
	r.statuses[statusKey(table, index)] = st
	r.mu.Unlock()

	buildsStarted.Inc()
	r.log.Info("index build started", zap.String("table", table), zap.String("index", index), zap.Int64("total", total))

	go func() {
		if err := buildSem.Acquire(ctx, 1); err != nil {
			r.mu.Lock()
			st.Err = err
			st.Finished = true
			st.FinishedAt = time.Now()
			r.mu.Unlock()
			return
		}
		defer buildSem.Release(1)

		emit := func(f RowFunc) error {
			policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
			err := backoff.Retry(func() error { return f(ctx) }, backoff.WithContext(policy, ctx))
			if err != nil {
				return veltaerr.Wrap(veltaerr.KindIndexCorruption, err, "index build: row indexing failed for %s/%s", table, index)
			}
			r.mu.Lock()
			st.Done++
			r.mu.Unlock()
			rowsIndexed.Inc()
			return nil
		}
		err := rows(ctx, emit)
		r.mu.Lock()
		st.Err = err
		st.Finished = true
		st.FinishedAt = time.Now()
		done := st.Done
		r.mu.Unlock()
		if err != nil {
			buildsFailed.Inc()
			r.log.Warn("index build failed", zap.String("table", table), zap.String("index", index), zap.Error(err))
		} else {
			r.log.Info("index build finished", zap.String("table", table), zap.String("index", index), zap.Int64("done", done))
		}
	}()

	return st
}

// Status returns a snapshot of one build's progress, or false if no build
// is (or ever was) tracked under that table/index.
func (r *Registry) Status(table, index string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.statuses[statusKey(table, index)]
	if !ok {
		return Status{}, false
	}
	return *st, true
}
