package graph

import "encoding/json"

// FileContextKey is the single metadata field the engine itself reads
// and writes. Everything else inside Metadata is opaque to the engine.
const FileContextKey = "__file_context"

// FileContext extracts the __file_context field from an edge's opaque
// metadata string, if present. Metadata is JSON by convention; if it
// isn't valid JSON (or isn't an object), FileContext reports false
// rather than erroring — the engine tolerates arbitrary opaque payloads.
func FileContext(metadata string) (string, bool) {
	if metadata == "" {
		return "", false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(metadata), &obj); err != nil {
		return "", false
	}
	raw, ok := obj[FileContextKey]
	if !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

// WithFileContext returns a copy of metadata with __file_context set to
// fileContext, stamping it in as the commit protocol requires for every
// edge routed through an enrichment commit. If metadata is a JSON
// object, its other keys are kept alongside the reserved key. If it is
// empty or not a JSON object, the result is a fresh object holding only
// the reserved key; a non-object payload is not carried over.
func WithFileContext(metadata, fileContext string) string {
	obj := map[string]json.RawMessage{}
	if metadata != "" {
		_ = json.Unmarshal([]byte(metadata), &obj)
	}
	encoded, _ := json.Marshal(fileContext)
	obj[FileContextKey] = encoded
	out, err := json.Marshal(obj)
	if err != nil {
		return metadata
	}
	return string(out)
}
