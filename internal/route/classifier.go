// Package route classifies the unified document's operations into exposed
// capability kinds and derives each operation's parameter-visibility policy.
package route

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/quortexio/quortex-mcp/internal/diag"
	"github.com/quortexio/quortex-mcp/internal/spec"
)

// Kind is the exposure kind assigned to an operation.
type Kind string

const (
	KindTool             Kind = "tool"
	KindResource         Kind = "resource"
	KindResourceTemplate Kind = "resource_template"
	KindExcluded         Kind = "excluded"
)

// HiddenParameter names a parameter hidden from callers and the
// environment variable supplying its value at call time.
type HiddenParameter struct {
	Name string
	Env  string
}

// Config drives classification. It is loaded once at startup so the
// classifier can be tested in isolation from file I/O.
type Config struct {
	AdminPrefixes []string
	ExcludeTags   []string
	Hidden        []HiddenParameter
}

// Policy is the per-operation exposure decision. Immutable once produced.
type Policy struct {
	OperationID string
	Kind        Kind
	Method      string
	Path        string

	// Hidden parameters are stripped from the exposed schema; Injected
	// maps each one to the environment variable resolved at call time.
	Hidden   map[string]bool
	Injected map[string]string
}

// Classify walks every operation in the unified document and assigns it an
// exposure policy. A hidden parameter with no configured value source is a
// configuration error reported here, at startup, never deferred to first
// call.
func Classify(u *spec.Unified, cfg Config) (map[string]Policy, error) {
	hiddenEnv := make(map[string]string, len(cfg.Hidden))
	for _, hp := range cfg.Hidden {
		hiddenEnv[hp.Name] = hp.Env
	}

	excludeTags := make(map[string]bool, len(cfg.ExcludeTags))
	for _, tag := range cfg.ExcludeTags {
		excludeTags[tag] = true
	}

	policies := make(map[string]Policy)
	for _, op := range u.Operations() {
		p := Policy{
			OperationID: op.ID,
			Kind:        classifyKind(op, cfg.AdminPrefixes, excludeTags),
			Method:      op.Method,
			Path:        op.Path,
			Hidden:      make(map[string]bool),
			Injected:    make(map[string]string),
		}

		// Excluded operations are never invoked, so their parameters
		// need no value sources
		if p.Kind != KindExcluded {
			for _, name := range hiddenNames(op, hiddenEnv) {
				env := hiddenEnv[name]
				if env == "" {
					return nil, &diag.MissingSourceError{OperationID: op.ID, Parameter: name}
				}
				p.Hidden[name] = true
				p.Injected[name] = env
			}
		}

		policies[op.ID] = p
	}
	return policies, nil
}

// classifyKind applies the exclusion rules first; they override the
// method-based default.
func classifyKind(op spec.OperationRef, adminPrefixes []string, excludeTags map[string]bool) Kind {
	for _, prefix := range adminPrefixes {
		if strings.HasPrefix(op.Path, prefix) {
			return KindExcluded
		}
	}
	for _, tag := range op.Op.Tags {
		if excludeTags[tag] {
			return KindExcluded
		}
	}

	if op.Method != "GET" {
		return KindTool
	}
	// A parameterized read is never flattened into a static resource
	if strings.Contains(op.Path, "{") {
		return KindResourceTemplate
	}
	return KindResource
}

// hiddenNames returns the configured hidden parameter names this operation
// actually carries, in declaration order. Both declared parameters and
// top-level JSON request body properties count: the caller-facing argument
// surface flattens the two.
func hiddenNames(op spec.OperationRef, hiddenEnv map[string]string) []string {
	var names []string
	seen := make(map[string]bool)

	add := func(name string) {
		if _, hidden := hiddenEnv[name]; hidden && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, ref := range op.Item.Parameters {
		if ref.Value != nil {
			add(ref.Value.Name)
		}
	}
	for _, ref := range op.Op.Parameters {
		if ref.Value != nil {
			add(ref.Value.Name)
		}
	}
	for _, name := range bodyPropertyNames(op.Op) {
		add(name)
	}
	return names
}

func bodyPropertyNames(op *openapi3.Operation) []string {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}
	var names []string
	for name := range media.Schema.Value.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
