package mcpserver

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/quortexio/quortex-mcp/internal/spec"
)

const serverSpec = `
openapi: 3.0.3
info: {title: Test, version: 1.0.0}
paths:
  /widgets:
    get:
      operationId: listWidgets
      summary: List widgets
      parameters:
        - name: org
          in: query
          schema: {type: string}
        - name: limit
          in: query
          description: Page size
          schema: {type: integer}
      responses:
        "200": {description: OK}
    post:
      operationId: createWidget
      parameters:
        - name: X-Request-Source
          in: header
          schema: {type: string}
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name, org]
              properties:
                org: {type: string}
                name: {type: string}
      responses:
        "201": {description: Created}
  /widgets/{id}:
    get:
      operationId: getWidget
      parameters:
        - name: id
          in: path
          required: true
          schema: {type: string}
      responses:
        "200": {description: OK}
    delete:
      operationId: deleteWidget
      parameters:
        - name: id
          in: path
          required: true
          schema: {type: string}
        - name: org
          in: query
          schema: {type: string}
      responses:
        "204": {description: Deleted}
`

func mustUnified(t *testing.T, body string) *spec.Unified {
	t.Helper()
	ctx := context.Background()
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData([]byte(body))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	if err := doc.Validate(ctx); err != nil {
		t.Fatalf("validating fixture: %v", err)
	}
	u, err := spec.Merge([]*spec.Document{{SourceID: "test.yaml", Doc: doc}})
	if err != nil {
		t.Fatalf("merging fixture: %v", err)
	}
	return u
}

func findOp(t *testing.T, u *spec.Unified, id string) spec.OperationRef {
	t.Helper()
	for _, op := range u.Operations() {
		if op.ID == id {
			return op
		}
	}
	t.Fatalf("no operation %s in fixture", id)
	return spec.OperationRef{}
}
