package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/quortexio/quortex-mcp/internal/spec"
)

// buildRequest maps the final argument set onto the upstream HTTP request:
// path placeholders are expanded, declared query and header parameters are
// placed where the operation declares them, and whatever remains becomes
// the JSON request body (or extra query parameters for body-less methods).
func buildRequest(ctx context.Context, baseURL string, op spec.OperationRef, args map[string]any) (*http.Request, error) {
	remaining := make(map[string]any, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	path, err := expandPath(op.Path, remaining)
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", op.ID, err)
	}

	query := url.Values{}
	header := http.Header{}
	placeParam := func(name, in string) {
		v, ok := remaining[name]
		if !ok {
			return
		}
		switch in {
		case "query":
			query.Set(name, fmt.Sprint(v))
			delete(remaining, name)
		case "header":
			header.Set(name, fmt.Sprint(v))
			delete(remaining, name)
		}
	}
	for _, ref := range op.Item.Parameters {
		if ref.Value != nil {
			placeParam(ref.Value.Name, ref.Value.In)
		}
	}
	for _, ref := range op.Op.Parameters {
		if ref.Value != nil {
			placeParam(ref.Value.Name, ref.Value.In)
		}
	}

	var body []byte
	if len(remaining) > 0 {
		if op.Op.RequestBody != nil || methodHasBody(op.Method) {
			body, err = json.Marshal(remaining)
			if err != nil {
				return nil, fmt.Errorf("operation %s: encoding request body: %w", op.ID, err)
			}
		} else {
			// Undeclared leftovers on a body-less method ride along as
			// query parameters
			for _, name := range sortedArgNames(remaining) {
				query.Set(name, fmt.Sprint(remaining[name]))
			}
		}
	}

	target := strings.TrimSuffix(baseURL, "/") + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", op.ID, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// expandPath substitutes {name} placeholders from args, consuming each
// used argument. A placeholder with no argument is an error: the upstream
// route cannot be addressed without it.
func expandPath(template string, args map[string]any) (string, error) {
	segments := strings.Split(template, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := seg[1 : len(seg)-1]
		v, ok := args[name]
		if !ok {
			return "", fmt.Errorf("missing required path parameter %q", name)
		}
		segments[i] = url.PathEscape(fmt.Sprint(v))
		delete(args, name)
	}
	return strings.Join(segments, "/"), nil
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func sortedArgNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// matchTemplate extracts the path arguments a resource-template read
// supplies through its URI, matching it segment-wise against the
// operation's path template.
func matchTemplate(pathTemplate, uri string) (map[string]any, error) {
	trimmed, ok := strings.CutPrefix(uri, resourceScheme)
	if !ok {
		return nil, fmt.Errorf("uri %q does not use the %s scheme", uri, resourceScheme)
	}

	want := strings.Split(strings.TrimPrefix(pathTemplate, "/"), "/")
	got := strings.Split(trimmed, "/")
	if len(want) != len(got) {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, pathTemplate)
	}

	args := make(map[string]any)
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			value, err := url.PathUnescape(got[i])
			if err != nil {
				value = got[i]
			}
			args[seg[1:len(seg)-1]] = value
			continue
		}
		if seg != got[i] {
			return nil, fmt.Errorf("uri %q does not match template %q", uri, pathTemplate)
		}
	}
	return args, nil
}
