package mcpserver

import (
	"encoding/json"
	"testing"

	"github.com/quortexio/quortex-mcp/internal/route"
)

func decodeSchema(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	return m
}

func TestToolInputSchemaFromParameters(t *testing.T) {
	u := mustUnified(t, serverSpec)
	op := findOp(t, u, "listWidgets")

	schema := decodeSchema(t, toolInputSchema(op, route.Policy{}))
	if schema["type"] != "object" {
		t.Errorf("expected object schema, got %v", schema["type"])
	}

	props, _ := schema["properties"].(map[string]any)
	limit, ok := props["limit"].(map[string]any)
	if !ok {
		t.Fatal("expected limit property in schema")
	}
	if limit["type"] != "integer" {
		t.Errorf("expected limit to be integer, got %v", limit["type"])
	}
	if limit["description"] != "Page size" {
		t.Errorf("expected parameter description to carry over, got %v", limit["description"])
	}
}

func TestToolInputSchemaStripsHiddenParameter(t *testing.T) {
	u := mustUnified(t, serverSpec)
	op := findOp(t, u, "listWidgets")

	schema := decodeSchema(t, toolInputSchema(op, route.Policy{
		Hidden: map[string]bool{"org": true},
	}))
	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["org"]; ok {
		t.Error("hidden parameter org leaked into the exposed schema")
	}
	if _, ok := props["limit"]; !ok {
		t.Error("visible parameter limit missing from the exposed schema")
	}
}

func TestToolInputSchemaStripsHiddenBodyProperty(t *testing.T) {
	u := mustUnified(t, serverSpec)
	op := findOp(t, u, "createWidget")

	schema := decodeSchema(t, toolInputSchema(op, route.Policy{
		Hidden: map[string]bool{"org": true},
	}))
	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["org"]; ok {
		t.Error("hidden body property org leaked into the exposed schema")
	}
	if _, ok := props["name"]; !ok {
		t.Error("visible body property name missing from the exposed schema")
	}

	// org is declared required upstream, but a hidden parameter can never
	// be required of the caller
	required, _ := schema["required"].([]any)
	for _, r := range required {
		if r == "org" {
			t.Error("hidden parameter org listed as required")
		}
	}
	found := false
	for _, r := range required {
		if r == "name" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected name in required, got %v", required)
	}
}

func TestToolInputSchemaEmptyOperation(t *testing.T) {
	body := `
openapi: 3.0.3
info: {title: Test, version: 1.0.0}
paths:
  /ping:
    post:
      operationId: ping
      responses:
        "200": {description: OK}
`
	u := mustUnified(t, body)
	op := findOp(t, u, "ping")

	schema := decodeSchema(t, toolInputSchema(op, route.Policy{}))
	if schema["type"] != "object" {
		t.Errorf("expected object schema, got %v", schema["type"])
	}
	props, _ := schema["properties"].(map[string]any)
	if len(props) != 0 {
		t.Errorf("expected no properties, got %v", props)
	}
}
