package config

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	o := New()
	assert.Equal(t, defaultScanBufferSize, o.ScanBufferSize)
	assert.NotNil(t, o.Logger)
}

func TestNewAppliesFunctionalOptions(t *testing.T) {
	o := New(WithDataDir("/tmp/velta"), WithScanBufferSize(16*datasize.MB))
	assert.Equal(t, "/tmp/velta", o.DataDir)
	assert.Equal(t, 16*datasize.MB, o.ScanBufferSize)
}

func TestNewReadsOpenAIFromEnvironment(t *testing.T) {
	t.Setenv(envOpenAIAPIKey, "sk-test")
	t.Setenv(envOpenAIBaseURL, "https://api.example.com")
	o := New()
	assert.Equal(t, "sk-test", o.OpenAIAPIKey)
	assert.Equal(t, "https://api.example.com", o.OpenAIBaseURL)
}

func TestWithOpenAIOverridesEnvironment(t *testing.T) {
	t.Setenv(envOpenAIAPIKey, "sk-from-env")
	o := New(WithOpenAI("sk-explicit", "https://explicit.example.com"))
	assert.Equal(t, "sk-explicit", o.OpenAIAPIKey)
}

func TestNewOpenAIEmbeddingsNilWithoutAPIKey(t *testing.T) {
	o := New()
	require.Nil(t, NewOpenAIEmbeddings(o))
}

func TestNewOpenAIEmbeddingsCarriesSettings(t *testing.T) {
	o := New(WithOpenAI("sk-explicit", "https://explicit.example.com"))
	p := NewOpenAIEmbeddings(o)
	require.NotNil(t, p)
	assert.Equal(t, "sk-explicit", p.APIKey)
	_, err := p.Embed("hello")
	assert.Error(t, err)
}
