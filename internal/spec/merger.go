package spec

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/quortexio/quortex-mcp/internal/diag"
)

const (
	unifiedTitle       = "Quortex Unified API (MCP)"
	unifiedDescription = "Unified MCP server for Quortex.io services"
)

// Merge combines the ordered documents into one unified document.
//
// Collisions never abort the merge. Paths union by (path, method) with
// last-document-wins; component definitions union by name, merging silently
// when structurally identical and last-document-wins otherwise. Surviving
// duplicate operationIds are renamed with a suffix derived from their
// source filename. Every resolution is recorded in Unified.Conflicts in
// encounter order.
func Merge(docs []*Document) (*Unified, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to merge")
	}

	merged := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       unifiedTitle,
			Description: unifiedDescription,
			Version:     infoVersion(docs),
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas:         make(openapi3.Schemas),
			Parameters:      make(openapi3.ParametersMap),
			Responses:       make(openapi3.ResponseBodies),
			SecuritySchemes: make(openapi3.SecuritySchemes),
		},
	}

	var conflicts []diag.Record
	opSource := make(map[string]origin)   // "METHOD path" -> winning origin
	compSource := make(map[string]string) // "kind/name" -> source id

	for i, d := range docs {
		mergePaths(merged, d, i, opSource, &conflicts)
		mergeComponents(merged, d, compSource, &conflicts)
	}

	dedupeOperationIDs(merged, opSource, &conflicts)

	return &Unified{Doc: merged, Conflicts: conflicts}, nil
}

func infoVersion(docs []*Document) string {
	for _, d := range docs {
		if d.Doc.Info != nil && d.Doc.Info.Version != "" {
			return d.Doc.Info.Version
		}
	}
	return "1.0.0"
}

// origin records which document, by id and load position, supplied the
// surviving definition for a merged entity.
type origin struct {
	source string
	index  int
}

func mergePaths(merged *openapi3.T, d *Document, docIdx int, opSource map[string]origin, conflicts *[]diag.Record) {
	if d.Doc.Paths == nil {
		return
	}

	for _, path := range sortedKeys(d.Doc.Paths.Map()) {
		item := d.Doc.Paths.Value(path)
		ops := item.Operations()

		if err := validatePathTemplate(path); err != nil {
			for _, method := range sortedKeys(ops) {
				*conflicts = append(*conflicts, diag.Record{
					Kind:    diag.MalformedOperation,
					Subject: method + " " + path,
					Detail:  err.Error(),
					Source:  d.SourceID,
				})
			}
			continue
		}

		target := merged.Paths.Value(path)
		if target == nil {
			target = &openapi3.PathItem{
				Summary:     item.Summary,
				Description: item.Description,
				Parameters:  item.Parameters,
			}
			merged.Paths.Set(path, target)
		} else if len(item.Parameters) > 0 {
			// Path-level parameters follow the same last-document-wins rule
			target.Parameters = item.Parameters
		}

		for _, method := range sortedKeys(ops) {
			op := ops[method]
			if op == nil {
				continue
			}

			// Keep source documents untouched; the merged copy may be
			// renamed during operationId deduplication
			opCopy := *op
			if opCopy.OperationID == "" {
				opCopy.OperationID = synthesizeOperationID(method, path)
			}

			key := method + " " + path
			if target.GetOperation(method) != nil {
				*conflicts = append(*conflicts, diag.Record{
					Kind:      diag.PathCollision,
					Subject:   key,
					Detail:    "last document wins",
					Source:    d.SourceID,
					Discarded: opSource[key].source,
				})
			}
			target.SetOperation(method, &opCopy)
			opSource[key] = origin{source: d.SourceID, index: docIdx}
		}
	}
}

func mergeComponents(merged *openapi3.T, d *Document, compSource map[string]string, conflicts *[]diag.Record) {
	src := d.Doc.Components
	if src == nil {
		return
	}
	mergeComponentMap(merged.Components.Schemas, src.Schemas, "schemas", d.SourceID, compSource, conflicts)
	mergeComponentMap(merged.Components.Parameters, src.Parameters, "parameters", d.SourceID, compSource, conflicts)
	mergeComponentMap(merged.Components.Responses, src.Responses, "responses", d.SourceID, compSource, conflicts)
	mergeComponentMap(merged.Components.SecuritySchemes, src.SecuritySchemes, "securitySchemes", d.SourceID, compSource, conflicts)
}

// mergeComponentMap unions src into dst by name. Structurally identical
// definitions merge silently; differing ones are replaced (last document
// wins) with a SchemaCollision record. No field-level reconciliation is
// ever attempted: a partial merge across independently-versioned documents
// would match neither source's actual contract.
func mergeComponentMap[V any](dst map[string]V, src map[string]V, kind, sourceID string, compSource map[string]string, conflicts *[]diag.Record) {
	for _, name := range sortedKeys(src) {
		subject := kind + "/" + name
		existing, ok := dst[name]
		if ok {
			if structurallyEqual(existing, src[name]) {
				continue
			}
			*conflicts = append(*conflicts, diag.Record{
				Kind:      diag.SchemaCollision,
				Subject:   subject,
				Detail:    "last document wins",
				Source:    sourceID,
				Discarded: compSource[subject],
			})
		}
		dst[name] = src[name]
		compSource[subject] = sourceID
	}
}

func structurallyEqual(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}

// dedupeOperationIDs renames surviving operations that share an
// operationId across distinct (path, method) pairs. The operation from the
// later-loaded document loses the id and gets a suffix derived from its
// source filename; ties within one document resolve by path order.
func dedupeOperationIDs(merged *openapi3.T, opSource map[string]origin, conflicts *[]diag.Record) {
	type entry struct {
		op     *openapi3.Operation
		origin origin
	}

	var entries []entry
	byID := make(map[string][]int) // operationId -> indices into entries
	used := make(map[string]bool)

	for _, path := range sortedKeys(merged.Paths.Map()) {
		item := merged.Paths.Value(path)
		ops := item.Operations()
		for _, method := range sortedKeys(ops) {
			op := ops[method]
			if op == nil {
				continue
			}
			byID[op.OperationID] = append(byID[op.OperationID], len(entries))
			entries = append(entries, entry{op: op, origin: opSource[method+" "+path]})
			used[op.OperationID] = true
		}
	}

	renamed := make(map[int]bool)
	for _, idxs := range byID {
		if len(idxs) < 2 {
			continue
		}
		keeper := idxs[0]
		for _, i := range idxs[1:] {
			if entries[i].origin.index < entries[keeper].origin.index {
				keeper = i
			}
		}
		for _, i := range idxs {
			if i != keeper {
				renamed[i] = true
			}
		}
	}

	// Assign new ids in entry order so the conflict log is deterministic
	for i, e := range entries {
		if !renamed[i] {
			continue
		}
		base := e.op.OperationID + "_" + sanitizeToken(sourceStem(e.origin.source))
		newID := base
		for n := 2; used[newID]; n++ {
			newID = fmt.Sprintf("%s%d", base, n)
		}

		*conflicts = append(*conflicts, diag.Record{
			Kind:    diag.DuplicateOperationID,
			Subject: e.op.OperationID,
			Detail:  "renamed to " + newID,
			Source:  e.origin.source,
		})
		e.op.OperationID = newID
		used[newID] = true
	}
}

func validatePathTemplate(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path template must begin with '/'")
	}
	depth := 0
	for i, r := range path {
		switch r {
		case '{':
			if depth != 0 {
				return fmt.Errorf("nested '{' at position %d", i)
			}
			depth++
		case '}':
			if depth != 1 {
				return fmt.Errorf("unmatched '}' at position %d", i)
			}
			if path[i-1] == '{' {
				return fmt.Errorf("empty placeholder at position %d", i)
			}
			depth--
		}
	}
	if depth != 0 {
		return fmt.Errorf("unterminated placeholder")
	}
	return nil
}

func synthesizeOperationID(method, path string) string {
	return sanitizeToken(strings.ToLower(method) + path)
}

func sourceStem(sourceID string) string {
	return strings.TrimSuffix(sourceID, filepath.Ext(sourceID))
}

// sanitizeToken collapses every run of non-alphanumeric characters to a
// single underscore.
func sanitizeToken(s string) string {
	var b strings.Builder
	lastUnderscore := true // trim leading separators
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
