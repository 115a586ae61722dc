package mcpserver

import (
	"encoding/json"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/quortexio/quortex-mcp/internal/route"
	"github.com/quortexio/quortex-mcp/internal/spec"
)

// toolInputSchema derives the JSON schema exposed for a tool from the
// operation's declared parameters and its JSON request body. Hidden
// parameters are stripped: the calling agent never sees them. Best-effort;
// an operation with no usable declarations gets an empty object schema.
func toolInputSchema(op spec.OperationRef, policy route.Policy) json.RawMessage {
	properties := make(map[string]any)
	var required []string

	addParam := func(ref *openapi3.ParameterRef) {
		p := ref.Value
		if p == nil || policy.Hidden[p.Name] {
			return
		}
		prop := schemaToMap(p.Schema)
		if p.Description != "" {
			if _, ok := prop["description"]; !ok {
				prop["description"] = p.Description
			}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	for _, ref := range op.Item.Parameters {
		addParam(ref)
	}
	for _, ref := range op.Op.Parameters {
		addParam(ref)
	}

	if body := jsonBodySchema(op.Op); body != nil {
		for name, ref := range body.Properties {
			if policy.Hidden[name] {
				continue
			}
			properties[name] = schemaToMap(ref)
		}
		for _, name := range body.Required {
			if !policy.Hidden[name] {
				required = append(required, name)
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = dedupeSorted(required)
	}

	out, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return out
}

func jsonBodySchema(op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return media.Schema.Value
}

// schemaToMap renders a resolved schema as a plain map for embedding in
// the tool's input schema. $ref indirection is flattened through the
// resolved value since the agent cannot follow references into the
// unified document.
func schemaToMap(ref *openapi3.SchemaRef) map[string]any {
	fallback := map[string]any{"type": "string"}
	if ref == nil || ref.Value == nil {
		return fallback
	}
	raw, err := ref.Value.MarshalJSON()
	if err != nil {
		return fallback
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return fallback
	}
	return m
}

func dedupeSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
