// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package savepoint implements the nested transactional checkpoint stack
// described in §4.1.1: on every set/put/del inside an active save-point, the
// previous value (or its absence) is recorded into the top frame; rollback
// replays those pre-images in reverse order.
package savepoint

import "github.com/veltadb/veltadb/veltaerr"

// PreImage is the value a key held immediately before the write that is
// being recorded, or Present=false if the key was absent.
type PreImage struct {
	Key     string
	Value   []byte
	Present bool
}

// Frame is one save-point's undo log, in the order writes happened (so
// RollbackTo can apply it by iterating in reverse).
type Frame struct {
	preImages []PreImage
}

// Stack is a transaction's save-point stack. It has exclusive, single-owner
// mutable access for the lifetime of its owning transaction (§5).
type Stack struct {
	frames []*Frame
}

func New() *Stack { return &Stack{} }

// Active reports whether at least one save-point is open.
func (s *Stack) Active() bool { return len(s.frames) > 0 }

// Push opens a new save-point on top of the stack.
func (s *Stack) Push() {
	s.frames = append(s.frames, &Frame{})
}

// Record appends a key's pre-image to the top frame. Callers must check
// Active() first; Record on an empty stack is a no-op used by backends that
// call it unconditionally for simplicity.
func (s *Stack) Record(key string, prevValue []byte, present bool) {
	if len(s.frames) == 0 {
		return
	}
	top := s.frames[len(s.frames)-1]
	top.preImages = append(top.preImages, PreImage{Key: key, Value: prevValue, Present: present})
}

// RollbackTo undoes every write recorded since the top save-point was
// pushed, in reverse order, then pops that frame. apply is called once per
// pre-image with the exact semantics required to restore it (Present=false
// means "delete this key", true means "set it back to Value").
func (s *Stack) RollbackTo(apply func(PreImage)) error {
	if len(s.frames) == 0 {
		return veltaerr.New(veltaerr.KindUnknown, "no active save-point to roll back to")
	}
	top := s.frames[len(s.frames)-1]
	for i := len(top.preImages) - 1; i >= 0; i-- {
		apply(top.preImages[i])
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

// ReleaseLast discards the top save-point without undoing it: its writes
// become part of the enclosing save-point (or the transaction, if none).
// Any pre-images it recorded are merged into the parent frame so an
// enclosing rollback still sees them, preserving the oldest pre-image per
// key (the one that restores the state from before this nested save-point
// even existed).
func (s *Stack) ReleaseLast() error {
	if len(s.frames) == 0 {
		return veltaerr.New(veltaerr.KindUnknown, "no active save-point to release")
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if len(s.frames) == 0 {
		return nil
	}
	parent := s.frames[len(s.frames)-1]
	seen := map[string]bool{}
	for _, pi := range top.preImages {
		if seen[pi.Key] {
			continue
		}
		seen[pi.Key] = true
		parent.preImages = append(parent.preImages, pi)
	}
	return nil
}

// Depth reports how many save-points are currently open.
func (s *Stack) Depth() int { return len(s.frames) }
