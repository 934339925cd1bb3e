// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package config builds the Options a Datastore is constructed with:
// functional options layered over environment-variable defaults, the
// way erigon/turbo assembles its node config before opening a chain
// data directory.
package config

import (
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"
)

const (
	envOpenAIAPIKey  = "SURREAL_AI_OPENAI_API_KEY"
	envOpenAIBaseURL = "SURREAL_AI_OPENAI_BASE_URL"
)

// Options configures one Datastore instance.
type Options struct {
	// DataDir is the embedded backend's on-disk directory (boltkv). Unused
	// by the in-memory backend.
	DataDir string

	// ScanBufferSize bounds how much a single Scan call buffers before
	// returning, in bytes of encoded key+value pairs.
	ScanBufferSize datasize.ByteSize

	// ChangeFeedRetention is a default change-feed retention window.
	// Nothing outside this package reads it: DEFINE TABLE ... CHANGEFEED
	// always carries its own duration.
	ChangeFeedRetention time.Duration

	// Logger receives structured events from every layer. Defaults to a
	// no-op logger when not supplied.
	Logger *zap.Logger

	// OpenAIAPIKey/OpenAIBaseURL configure the optional embeddings stub;
	// core logic never calls it.
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// Option mutates an Options during construction.
type Option func(*Options)

func WithDataDir(dir string) Option {
	return func(o *Options) { o.DataDir = dir }
}

func WithScanBufferSize(size datasize.ByteSize) Option {
	return func(o *Options) { o.ScanBufferSize = size }
}

func WithChangeFeedRetention(d time.Duration) Option {
	return func(o *Options) { o.ChangeFeedRetention = d }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

func WithOpenAI(apiKey, baseURL string) Option {
	return func(o *Options) {
		o.OpenAIAPIKey = apiKey
		o.OpenAIBaseURL = baseURL
	}
}

// defaultScanBufferSize matches the in-memory backend's degree-32 btree
// page size times a few thousand rows, a round number rather than a
// measured figure.
const defaultScanBufferSize = 4 * datasize.MB

// New builds an Options from defaults, overlaid by opts, overlaid by
// environment variables for anything opts left unset (an explicit
// WithOpenAI call always wins over the environment).
func New(opts ...Option) *Options {
	o := &Options{
		ScanBufferSize:      defaultScanBufferSize,
		ChangeFeedRetention: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.OpenAIAPIKey == "" {
		o.OpenAIAPIKey = os.Getenv(envOpenAIAPIKey)
	}
	if o.OpenAIBaseURL == "" {
		o.OpenAIBaseURL = os.Getenv(envOpenAIBaseURL)
	}
	return o
}

// EmbeddingsProvider is the stub surface a FunctionDef can bind an
// embedding-generating function to. No code in this module calls it;
// it exists so a future `fn::embed` function definition has somewhere
// to dispatch.
type EmbeddingsProvider interface {
	Embed(text string) ([]float64, error)
}

// OpenAIEmbeddings is a stub EmbeddingsProvider: it carries the
// configured endpoint/key but performs no network I/O here.
type OpenAIEmbeddings struct {
	APIKey  string
	BaseURL string
}

// NewOpenAIEmbeddings returns nil if no API key is configured (opts out
// of the provider entirely), otherwise a provider stub carrying o's
// OpenAI settings.
func NewOpenAIEmbeddings(o *Options) *OpenAIEmbeddings {
	if o.OpenAIAPIKey == "" {
		return nil
	}
	return &OpenAIEmbeddings{APIKey: o.OpenAIAPIKey, BaseURL: o.OpenAIBaseURL}
}

// Embed is unimplemented: wiring a real HTTP call is out of scope, per
// the "never invoked by core logic" note on Options.OpenAIAPIKey.
func (p *OpenAIEmbeddings) Embed(text string) ([]float64, error) {
	return nil, errUnimplemented
}

var errUnimplemented = unimplementedError{}

type unimplementedError struct{}

func (unimplementedError) Error() string { return "embeddings provider: not implemented" }
