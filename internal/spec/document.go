// Package spec loads OpenAPI documents from a directory and merges them
// into one unified document with recorded collision resolution.
package spec

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/quortexio/quortex-mcp/internal/diag"
)

// Document is one parsed OpenAPI document tagged with its originating
// filename. Immutable after load.
type Document struct {
	SourceID string
	Doc      *openapi3.T
}

// Unified is the merge result: one OpenAPI document plus the ordered log of
// collisions resolved while producing it. Read-only after Merge returns.
type Unified struct {
	Doc       *openapi3.T
	Conflicts []diag.Record
}

// OperationRef is a resolved (path, method, operation) triple in the
// unified document.
type OperationRef struct {
	ID     string
	Method string
	Path   string
	Op     *openapi3.Operation
	Item   *openapi3.PathItem
}

// Operations returns every operation in the unified document, ordered by
// path then method so iteration order is stable across runs.
func (u *Unified) Operations() []OperationRef {
	var refs []OperationRef
	if u.Doc == nil || u.Doc.Paths == nil {
		return refs
	}

	paths := sortedKeys(u.Doc.Paths.Map())
	for _, path := range paths {
		item := u.Doc.Paths.Value(path)
		ops := item.Operations()
		for _, method := range sortedKeys(ops) {
			op := ops[method]
			if op == nil {
				continue
			}
			refs = append(refs, OperationRef{
				ID:     op.OperationID,
				Method: method,
				Path:   path,
				Op:     op,
				Item:   item,
			})
		}
	}
	return refs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
