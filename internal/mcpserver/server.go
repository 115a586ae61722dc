// Package mcpserver exposes the unified document's operations over the
// Model Context Protocol, dispatching invocations to the upstream API
// with hidden parameters injected.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/quortexio/quortex-mcp/internal/inject"
	"github.com/quortexio/quortex-mcp/internal/logging"
	"github.com/quortexio/quortex-mcp/internal/metrics"
	"github.com/quortexio/quortex-mcp/internal/route"
	"github.com/quortexio/quortex-mcp/internal/spec"
)

const resourceScheme = "quortex://"

// maxResponseBytes caps how much of an upstream response is returned to
// the agent.
const maxResponseBytes = 10 << 20

// Options configures the MCP server.
type Options struct {
	Name      string
	Version   string
	BaseURL   string
	AuthToken string // optional; sent as a Bearer token upstream
	Client    *http.Client
}

// New builds the MCP server from the unified document, the classification
// policies, and the injector. All three are read-only by the time they
// arrive here, so concurrent invocations share them without coordination.
func New(u *spec.Unified, policies map[string]route.Policy, inj *inject.Injector, coll *metrics.Collector, opts Options) *server.MCPServer {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}

	s := server.NewMCPServer(
		opts.Name,
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	)

	h := &handler{
		injector:  inj,
		metrics:   coll,
		baseURL:   opts.BaseURL,
		authToken: opts.AuthToken,
		client:    opts.Client,
	}

	counts := make(map[route.Kind]int)
	for _, op := range u.Operations() {
		policy, ok := policies[op.ID]
		if !ok {
			continue
		}
		counts[policy.Kind]++

		switch policy.Kind {
		case route.KindExcluded:
			logging.Debug("operation excluded from exposure",
				zap.String("operation", op.ID),
				zap.String("path", op.Path),
			)
		case route.KindTool:
			tool := mcp.NewToolWithRawSchema(op.ID, describe(op), toolInputSchema(op, policy))
			s.AddTool(tool, h.toolHandler(op, policy))
		case route.KindResource:
			res := mcp.NewResource(resourceURI(op.Path), op.ID,
				mcp.WithResourceDescription(describe(op)),
				mcp.WithMIMEType("application/json"),
			)
			s.AddResource(res, h.readHandler(op, policy, nil))
		case route.KindResourceTemplate:
			tmpl := mcp.NewResourceTemplate(resourceURI(op.Path), op.ID,
				mcp.WithTemplateDescription(describe(op)),
				mcp.WithTemplateMIMEType("application/json"),
			)
			s.AddResourceTemplate(tmpl, h.readHandler(op, policy, matchTemplate))
		}
	}

	for kind, n := range counts {
		coll.SetExposed(string(kind), n)
	}
	return s
}

type handler struct {
	injector  *inject.Injector
	metrics   *metrics.Collector
	baseURL   string
	authToken string
	client    *http.Client
}

func (h *handler) toolHandler(op spec.OperationRef, policy route.Policy) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := h.invoke(ctx, op, policy, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(body), nil
	}
}

// readHandler serves both static resources and resource templates; the
// template variant supplies extractArgs to recover path arguments from
// the requested URI.
func (h *handler) readHandler(op spec.OperationRef, policy route.Policy, extractArgs func(string, string) (map[string]any, error)) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var args map[string]any
		if extractArgs != nil {
			var err error
			args, err = extractArgs(op.Path, req.Params.URI)
			if err != nil {
				return nil, err
			}
		}

		body, err := h.invoke(ctx, op, policy, args)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     body,
			},
		}, nil
	}
}

// invoke runs one upstream call: inject hidden defaults, build the
// request, dispatch, and return the response body.
func (h *handler) invoke(ctx context.Context, op spec.OperationRef, policy route.Policy, args map[string]any) (string, error) {
	invocationID := uuid.NewString()
	log := logging.With(
		zap.String("invocation_id", invocationID),
		zap.String("operation", op.ID),
	)

	final, err := h.injector.Apply(policy, args)
	if err != nil {
		log.Warn("parameter injection failed", zap.Error(err))
		h.metrics.RecordInvocation(op.ID, err)
		return "", err
	}

	req, err := buildRequest(ctx, h.baseURL, op, final)
	if err != nil {
		log.Warn("building upstream request failed", zap.Error(err))
		h.metrics.RecordInvocation(op.ID, err)
		return "", err
	}
	if h.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.authToken)
	}

	log.Debug("dispatching upstream request",
		zap.String("method", op.Method),
		zap.String("url", req.URL.String()),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		log.Error("upstream request failed", zap.Error(err))
		h.metrics.RecordInvocation(op.ID, err)
		return "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		h.metrics.RecordInvocation(op.ID, err)
		return "", fmt.Errorf("reading upstream response: %w", err)
	}

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		log.Warn("upstream error response", zap.Int("status", resp.StatusCode))
		h.metrics.RecordInvocation(op.ID, err)
		return "", err
	}

	h.metrics.RecordInvocation(op.ID, nil)
	return string(body), nil
}

func describe(op spec.OperationRef) string {
	if op.Op.Summary != "" {
		return op.Op.Summary
	}
	if op.Op.Description != "" {
		return op.Op.Description
	}
	return op.Method + " " + op.Path
}

func resourceURI(path string) string {
	return resourceScheme + strings.TrimPrefix(path, "/")
}
