package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/quortexio/quortex-mcp/internal/inject"
	"github.com/quortexio/quortex-mcp/internal/metrics"
	"github.com/quortexio/quortex-mcp/internal/route"
	"github.com/quortexio/quortex-mcp/internal/spec"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	body   map[string]any
	auth   string
}

// newUpstream records the last request and replies with a fixed JSON body.
func newUpstream(t *testing.T, status int, reply string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = map[string]string{}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		rec.auth = r.Header.Get("Authorization")
		rec.body = nil
		if r.Body != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.body = body
			}
		}
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestHandler(t *testing.T, baseURL string, env map[string]string) (*handler, *spec.Unified, map[string]route.Policy) {
	t.Helper()
	u := mustUnified(t, serverSpec)
	policies, err := route.Classify(u, route.Config{
		Hidden: []route.HiddenParameter{{Name: "org", Env: "QUORTEX_ORG"}},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	h := &handler{
		injector: inject.NewWithLookup(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}),
		metrics:   metrics.NewCollector(),
		baseURL:   baseURL,
		authToken: "secret-token",
		client:    &http.Client{},
	}
	return h, u, policies
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestToolCallInjectsHiddenParameter(t *testing.T) {
	upstream, rec := newUpstream(t, http.StatusCreated, `{"id":"w1"}`)
	h, u, policies := newTestHandler(t, upstream.URL, map[string]string{"QUORTEX_ORG": "acme"})

	op := findOp(t, u, "createWidget")
	fn := h.toolHandler(op, policies[op.ID])

	var req mcp.CallToolRequest
	req.Params.Name = op.ID
	req.Params.Arguments = map[string]any{"name": "gizmo"}

	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, res))
	}
	if toolText(t, res) != `{"id":"w1"}` {
		t.Errorf("unexpected tool result %q", toolText(t, res))
	}

	if rec.method != "POST" || rec.path != "/widgets" {
		t.Errorf("unexpected upstream call %s %s", rec.method, rec.path)
	}
	if rec.body["org"] != "acme" {
		t.Errorf("expected injected org=acme in body, got %v", rec.body["org"])
	}
	if rec.body["name"] != "gizmo" {
		t.Errorf("expected caller argument to pass through, got %v", rec.body["name"])
	}
	if rec.auth != "Bearer secret-token" {
		t.Errorf("expected bearer auth upstream, got %q", rec.auth)
	}
}

func TestToolCallOverridesSpoofedHiddenValue(t *testing.T) {
	upstream, rec := newUpstream(t, http.StatusCreated, `{}`)
	h, u, policies := newTestHandler(t, upstream.URL, map[string]string{"QUORTEX_ORG": "acme"})

	op := findOp(t, u, "createWidget")
	fn := h.toolHandler(op, policies[op.ID])

	var req mcp.CallToolRequest
	req.Params.Name = op.ID
	req.Params.Arguments = map[string]any{"name": "gizmo", "org": "spoofed"}

	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, res))
	}
	if rec.body["org"] != "acme" {
		t.Errorf("expected the injected value to win over the caller's, got %v", rec.body["org"])
	}
}

func TestToolCallMissingEnvIsPerCallError(t *testing.T) {
	upstream, rec := newUpstream(t, http.StatusCreated, `{}`)
	h, u, policies := newTestHandler(t, upstream.URL, nil)

	op := findOp(t, u, "createWidget")
	fn := h.toolHandler(op, policies[op.ID])

	var req mcp.CallToolRequest
	req.Params.Name = op.ID
	req.Params.Arguments = map[string]any{"name": "gizmo"}

	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("expected an in-band tool error, got %v", err)
	}
	if !res.IsError {
		t.Fatal("expected the call to fail without QUORTEX_ORG set")
	}
	if !strings.Contains(toolText(t, res), "QUORTEX_ORG") {
		t.Errorf("expected the error to name the variable, got %q", toolText(t, res))
	}
	if rec.method != "" {
		t.Error("upstream must not be called when injection fails")
	}
}

func TestToolCallUpstreamErrorSurfaces(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusForbidden, `{"error":"denied"}`)
	h, u, policies := newTestHandler(t, upstream.URL, map[string]string{"QUORTEX_ORG": "acme"})

	op := findOp(t, u, "createWidget")
	fn := h.toolHandler(op, policies[op.ID])

	var req mcp.CallToolRequest
	req.Params.Name = op.ID
	req.Params.Arguments = map[string]any{"name": "gizmo"}

	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("expected an in-band tool error, got %v", err)
	}
	if !res.IsError {
		t.Fatal("expected a tool error for the 403 response")
	}
	text := toolText(t, res)
	if !strings.Contains(text, "403") || !strings.Contains(text, "denied") {
		t.Errorf("expected status and body in the error, got %q", text)
	}
}

func TestResourceReadInjectsHiddenParameter(t *testing.T) {
	upstream, rec := newUpstream(t, http.StatusOK, `{"widgets":[]}`)
	h, u, policies := newTestHandler(t, upstream.URL, map[string]string{"QUORTEX_ORG": "acme"})

	op := findOp(t, u, "listWidgets")
	fn := h.readHandler(op, policies[op.ID], nil)

	var req mcp.ReadResourceRequest
	req.Params.URI = "quortex://widgets"

	contents, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected one content item, got %d", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected text contents, got %T", contents[0])
	}
	if text.URI != "quortex://widgets" || text.Text != `{"widgets":[]}` {
		t.Errorf("unexpected contents %+v", text)
	}
	if rec.query["org"] != "acme" {
		t.Errorf("expected injected org in query, got %v", rec.query)
	}
}

func TestResourceTemplateReadExtractsPathArgs(t *testing.T) {
	upstream, rec := newUpstream(t, http.StatusOK, `{"id":"w1"}`)
	h, u, policies := newTestHandler(t, upstream.URL, map[string]string{"QUORTEX_ORG": "acme"})

	op := findOp(t, u, "getWidget")
	fn := h.readHandler(op, policies[op.ID], matchTemplate)

	var req mcp.ReadResourceRequest
	req.Params.URI = "quortex://widgets/w1"

	contents, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected one content item, got %d", len(contents))
	}
	if rec.path != "/widgets/w1" {
		t.Errorf("expected upstream path /widgets/w1, got %s", rec.path)
	}
}

func TestNewRegistersByKind(t *testing.T) {
	u := mustUnified(t, serverSpec)
	policies, err := route.Classify(u, route.Config{
		Hidden: []route.HiddenParameter{{Name: "org", Env: "QUORTEX_ORG"}},
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	s := New(u, policies, inject.NewWithLookup(func(string) (string, bool) { return "acme", true }),
		metrics.NewCollector(), Options{Name: "test", Version: "0.0.0"})
	if s == nil {
		t.Fatal("expected a server")
	}
}

func TestResourceURI(t *testing.T) {
	if got := resourceURI("/widgets"); got != "quortex://widgets" {
		t.Errorf("unexpected uri %q", got)
	}
}
