// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package veltaerr defines the engine-wide error taxonomy. Every fallible
// step in kv, planner, exec, idx, cf, live and perm returns (or wraps) one of
// these kinds so callers can branch on Kind without string matching.
package veltaerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies a class of failure. Kinds are grouped the way they are
// grouped in the propagation policy: Transaction/Parse/Catalog/Type/
// Permission/Query/Index/Resource/IO.
type Kind uint8

const (
	KindUnknown Kind = iota

	// Transaction
	KindTxFinished
	KindTxReadonly
	KindConditionNotMet
	KindKeyAlreadyExists
	KindUnsupportedVersionedQueries

	// Parse
	KindLexError
	KindSyntaxError
	KindDepthExceeded

	// Catalog
	KindNamespaceNotFound
	KindDatabaseNotFound
	KindTableNotFound
	KindFieldNotFound
	KindIndexNotFound
	KindUserNotFound
	KindAccessNotFound
	KindAlreadyExists

	// Type/Coercion
	KindCoercion
	KindConstraintViolation
	KindComputedFieldCycle

	// Permission
	KindPermissionDenied

	// Query/Exec
	KindNoIndexFound
	KindInvalidKnnDimension
	KindLiveQueryOnNonTable
	KindDuplicateLiveId

	// Index
	KindIndexCorruption
	KindDuplicatedMatchReference
	KindEmptyPolygon

	// Resource
	KindDeadlineExceeded
	KindCancelled

	// I/O
	KindIO
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindTxFinished:
		return "TxFinished"
	case KindTxReadonly:
		return "TxReadonly"
	case KindConditionNotMet:
		return "ConditionNotMet"
	case KindKeyAlreadyExists:
		return "KeyAlreadyExists"
	case KindUnsupportedVersionedQueries:
		return "UnsupportedVersionedQueries"
	case KindLexError:
		return "LexError"
	case KindSyntaxError:
		return "SyntaxError"
	case KindDepthExceeded:
		return "DepthExceeded"
	case KindNamespaceNotFound:
		return "NamespaceNotFound"
	case KindDatabaseNotFound:
		return "DatabaseNotFound"
	case KindTableNotFound:
		return "TableNotFound"
	case KindFieldNotFound:
		return "FieldNotFound"
	case KindIndexNotFound:
		return "IndexNotFound"
	case KindUserNotFound:
		return "UserNotFound"
	case KindAccessNotFound:
		return "AccessNotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindCoercion:
		return "Coercion"
	case KindConstraintViolation:
		return "ConstraintViolation"
	case KindComputedFieldCycle:
		return "ComputedFieldCycle"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindNoIndexFound:
		return "NoIndexFound"
	case KindInvalidKnnDimension:
		return "InvalidKnnDimension"
	case KindLiveQueryOnNonTable:
		return "LiveQueryOnNonTable"
	case KindDuplicateLiveId:
		return "DuplicateLiveId"
	case KindIndexCorruption:
		return "IndexCorruption"
	case KindDuplicatedMatchReference:
		return "DuplicatedMatchReference"
	case KindEmptyPolygon:
		return "EmptyPolygon"
	case KindDeadlineExceeded:
		return "DeadlineExceeded"
	case KindCancelled:
		return "Cancelled"
	case KindIO:
		return "IO"
	case KindCorruption:
		return "Corruption"
	default:
		return "Unknown"
	}
}

// Error is the machine-readable/human-readable error carried across every
// fallible boundary in the engine. Span is populated for parse errors only.
type Error struct {
	Kind    Kind
	Message string
	Span    *Span
	cause   error
}

// Span is a (line, column) source location used to render parse-error
// snippets with a caret, per the error-reporting requirement in §4.3.
type Span struct {
	Source string
	Line   int
	Column int
	Offset int
	Length int
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (line %d, column %d)", e.Kind, e.Message, e.Span.Line, e.Span.Column)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Snippet renders the offending source line with a caret under the error
// column, for user-visible parse-error display.
func (e *Error) Snippet() string {
	if e.Span == nil || e.Span.Source == "" {
		return ""
	}
	lines := splitLines(e.Span.Source)
	if e.Span.Line < 1 || e.Span.Line > len(lines) {
		return ""
	}
	line := lines[e.Span.Line-1]
	col := e.Span.Column
	if col < 1 {
		col = 1
	}
	caret := ""
	for i := 1; i < col; i++ {
		caret += " "
	}
	caret += "^"
	return line + "\n" + caret
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

// New builds a kind-tagged error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewSpan builds a parse-time error carrying a rendered source span.
func NewSpan(kind Kind, span Span, format string, args ...any) *Error {
	s := span
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: &s}
}

// Wrap attaches a stack-capturing cause (via github.com/pkg/errors) to a
// kind-tagged error, for I/O-boundary failures that should retain a stack.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
