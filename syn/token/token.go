// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package token defines the token kinds produced by syn/lexer.
package token

import "fmt"

type Kind int

const (
	EOF Kind = iota
	Ident
	Number
	Strand  // "..." or '...'
	Bytes   // b"..."
	Uuid    // u"..."
	Datetime // d"..."
	Duration
	Regex
	Param // $name

	// punctuation / operators
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Comma
	Dot
	DotDot   // ..
	DotDotEq // ..=
	Colon
	Semicolon
	Eq
	EqEq
	NotEq
	Lt
	LtEq
	Gt
	GtEq
	Plus
	Minus
	Star
	Slash
	Percent
	At       // @
	AtAt
	KnnOpen  // <|
	KnnClose // |>
	Arrow    // ->
	LArrow   // <-
	Question
	Bang
	Amp
	AmpAmp
	Pipe
	PipePipe

	// keywords
	KwSelect
	KwCreate
	KwUpdate
	KwUpsert
	KwInsert
	KwDelete
	KwRelate
	KwDefine
	KwTable
	KwIndex
	KwField
	KwNamespace
	KwDatabase
	KwFrom
	KwWhere
	KwSet
	KwContent
	KwMerge
	KwPatch
	KwLimit
	KwStart
	KwFetch
	KwOrder
	KwBy
	KwAsc
	KwDesc
	KwOmit
	KwValue
	KwAs
	KwAnd
	KwOr
	KwNot
	KwIn
	KwNone
	KwNull
	KwTrue
	KwFalse
	KwFull
	KwFor
	KwPermissions
	KwChangefeed
	KwShow
	KwChanges
	KwSince
	KwLive
	KwKill
	KwUse
	KwFields
	KwSearch
	KwUnique
	KwMtree
	KwDimension
	KwDist
	KwInto
	KwOn

	Illegal
)

var names = map[Kind]string{
	EOF: "EOF", Ident: "IDENT", Number: "NUMBER", Strand: "STRAND", Param: "PARAM",
	Bytes: "BYTES", Uuid: "UUID", Datetime: "DATETIME", Duration: "DURATION", Regex: "REGEX",
	LParen: "(", RParen: ")", LBracket: "[", RBracket: "]", LBrace: "{", RBrace: "}",
	Comma: ",", Dot: ".", DotDot: "..", DotDotEq: "..=", Colon: ":", Semicolon: ";",
	Eq: "=", EqEq: "==", NotEq: "!=", Lt: "<", LtEq: "<=", Gt: ">", GtEq: ">=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	At: "@", AtAt: "@@", KnnOpen: "<|", KnnClose: "|>", Arrow: "->", LArrow: "<-",
	Question: "?", Bang: "!", Amp: "&", AmpAmp: "&&", Pipe: "|", PipePipe: "||",
	Illegal: "ILLEGAL",
}

var keywords = map[string]Kind{
	"SELECT": KwSelect, "CREATE": KwCreate, "UPDATE": KwUpdate, "UPSERT": KwUpsert,
	"INSERT": KwInsert, "DELETE": KwDelete, "RELATE": KwRelate, "DEFINE": KwDefine,
	"TABLE": KwTable, "INDEX": KwIndex, "FIELD": KwField, "NAMESPACE": KwNamespace,
	"DATABASE": KwDatabase, "FROM": KwFrom, "WHERE": KwWhere, "SET": KwSet,
	"CONTENT": KwContent, "MERGE": KwMerge, "PATCH": KwPatch, "LIMIT": KwLimit,
	"START": KwStart, "FETCH": KwFetch, "ORDER": KwOrder, "BY": KwBy,
	"ASC": KwAsc, "DESC": KwDesc, "OMIT": KwOmit, "VALUE": KwValue, "AS": KwAs,
	"AND": KwAnd, "OR": KwOr, "NOT": KwNot, "IN": KwIn, "NONE": KwNone,
	"NULL": KwNull, "TRUE": KwTrue, "FALSE": KwFalse, "FULL": KwFull,
	"FOR": KwFor, "PERMISSIONS": KwPermissions, "CHANGEFEED": KwChangefeed,
	"SHOW": KwShow, "CHANGES": KwChanges, "SINCE": KwSince, "LIVE": KwLive,
	"KILL": KwKill, "USE": KwUse, "FIELDS": KwFields, "SEARCH": KwSearch,
	"UNIQUE": KwUnique, "MTREE": KwMtree, "DIMENSION": KwDimension, "DIST": KwDist,
	"INTO": KwInto, "ON": KwOn,
}

// Lookup resolves an uppercased identifier to its keyword kind, or Ident if
// it is not a reserved word.
func Lookup(upper string) Kind {
	if k, ok := keywords[upper]; ok {
		return k
	}
	return Ident
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	for kw, kind := range keywords {
		if kind == k {
			return kw
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical token with its source span.
type Token struct {
	Kind   Kind
	Text   string // raw source text, or decoded literal text for Strand/Bytes
	Line   int
	Column int
	Offset int
}
