package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthesizeSemanticID(t *testing.T) {
	assert.Equal(t, "func:a@x.go", SynthesizeSemanticID("func", "a", "x.go"))
}

func TestEnrichmentFileContext(t *testing.T) {
	assert.Equal(t, "__enrichment__/docgen/x.go", EnrichmentFileContext("docgen", "x.go"))
}

func TestEdgeKey(t *testing.T) {
	e := Edge{Type: "calls", Src: 1, Dst: 2}
	assert.Equal(t, EdgeKey{Type: "calls", Src: 1, Dst: 2}, e.Key())
}

func TestWithFileContextThenFileContextRoundTrip(t *testing.T) {
	meta := WithFileContext(`{"note":"hi"}`, "__enrichment__/docgen/x.go")
	fc, ok := FileContext(meta)
	assert.True(t, ok)
	assert.Equal(t, "__enrichment__/docgen/x.go", fc)
}

func TestWithFileContextOnEmptyMetadata(t *testing.T) {
	meta := WithFileContext("", "__enrichment__/docgen/x.go")
	fc, ok := FileContext(meta)
	assert.True(t, ok)
	assert.Equal(t, "__enrichment__/docgen/x.go", fc)
}

func TestFileContextOnOpaqueNonJSON(t *testing.T) {
	_, ok := FileContext("not json at all")
	assert.False(t, ok)
}

func TestFileContextOnMissingKey(t *testing.T) {
	_, ok := FileContext(`{"other":"value"}`)
	assert.False(t, ok)
}
