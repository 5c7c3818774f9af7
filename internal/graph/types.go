package graph

import "fmt"

// Node is one vertex of the graph: a stable, human-readable semantic id
// alongside the compact numeric id assigned on insertion.
type Node struct {
	NumericID  uint64
	SemanticID string
	Type       string
	Name       string
	File       string
	Exported   bool
	Metadata   string
}

// Edge is a directed relationship between two nodes, keyed uniquely by
// (Type, Src, Dst).
type Edge struct {
	Type     string
	Src      uint64
	Dst      uint64
	Metadata string
}

// EdgeKey is the uniqueness key for an edge: at most one live edge may
// exist per (Type, Src, Dst) triple.
type EdgeKey struct {
	Type string
	Src  uint64
	Dst  uint64
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s\x00%d\x00%d", k.Type, k.Src, k.Dst)
}

// Key returns the uniqueness key of this edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Type: e.Type, Src: e.Src, Dst: e.Dst}
}

// SynthesizeSemanticID builds the default semantic id for a node that
// was not given one explicitly: "{type}:{name}@{file}".
func SynthesizeSemanticID(typ, name, file string) string {
	return fmt.Sprintf("%s:%s@%s", typ, name, file)
}

// EnrichmentFileContext builds the synthetic owning-file label used to
// route and tombstone an enrichment producer's contribution for one
// source file: "__enrichment__/{producer}/{source-file}".
func EnrichmentFileContext(producer, sourceFile string) string {
	return "__enrichment__/" + producer + "/" + sourceFile
}
