// Package inject supplies configured default values for hidden parameters
// at invocation time.
package inject

import (
	"os"
	"sort"

	"github.com/quortexio/quortex-mcp/internal/diag"
	"github.com/quortexio/quortex-mcp/internal/route"
)

// Injector resolves injected parameter values from the environment. It is
// a pure per-call transformation with no shared mutable state; concurrent
// calls never interfere.
type Injector struct {
	lookup func(string) (string, bool)
}

// New creates an Injector backed by the process environment.
func New() *Injector {
	return &Injector{lookup: os.LookupEnv}
}

// NewWithLookup creates an Injector with a custom source lookup, so tests
// don't have to mutate the process environment.
func NewWithLookup(lookup func(string) (string, bool)) *Injector {
	return &Injector{lookup: lookup}
}

// Apply merges the operation's injected defaults into the caller-supplied
// arguments and returns the final mapping. Injected values always override
// caller-supplied values: the caller cannot see a hidden parameter, so it
// must not be able to spoof one either. The input map is never mutated.
//
// A source that is unset at call time fails that single call with a
// MissingConfigurationError.
func (i *Injector) Apply(policy route.Policy, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args)+len(policy.Injected))
	for k, v := range args {
		out[k] = v
	}

	names := make([]string, 0, len(policy.Injected))
	for name := range policy.Injected {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		env := policy.Injected[name]
		value, ok := i.lookup(env)
		if !ok {
			return nil, &diag.MissingConfigurationError{
				OperationID: policy.OperationID,
				Parameter:   name,
				EnvVar:      env,
			}
		}
		out[name] = value
	}
	return out, nil
}
