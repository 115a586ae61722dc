// Package diag defines the diagnostic records produced while loading,
// merging, and classifying specification documents, plus the configuration
// errors that abort startup or fail a single invocation.
package diag

import "fmt"

// Kind identifies a diagnostic category.
type Kind string

const (
	// MalformedDocument marks a file that failed to parse as an OpenAPI
	// document. The file is skipped; the load continues.
	MalformedDocument Kind = "malformed_document"

	// MalformedOperation marks a single unusable operation (unparseable
	// path template). The operation is dropped; its document continues.
	MalformedOperation Kind = "malformed_operation"

	// PathCollision marks two documents defining the same (path, method)
	// pair. The later-loaded definition wins.
	PathCollision Kind = "path_collision"

	// SchemaCollision marks two documents defining a component of the same
	// name with different structure. The later-loaded definition wins.
	SchemaCollision Kind = "schema_collision"

	// DuplicateOperationID marks two surviving operations sharing an
	// operationId. The later-loaded one is suffixed with its source stem.
	DuplicateOperationID Kind = "duplicate_operation_id"
)

// Record is one load- or merge-time diagnostic with source attribution.
// Records never abort the merge; they are reported once at startup.
type Record struct {
	Kind      Kind
	Subject   string // path+method, component name, or filename
	Detail    string
	Source    string // source id of the surviving definition
	Discarded string // source id of the dropped definition, if any
}

func (r Record) String() string {
	s := fmt.Sprintf("%s: %s", r.Kind, r.Subject)
	if r.Detail != "" {
		s += ": " + r.Detail
	}
	if r.Source != "" {
		s += " (kept: " + r.Source
		if r.Discarded != "" {
			s += ", discarded: " + r.Discarded
		}
		s += ")"
	} else if r.Discarded != "" {
		s += " (discarded: " + r.Discarded + ")"
	}
	return s
}

// MissingSourceError reports a hidden parameter with no configured value
// source. It is fatal at startup: a hidden parameter that cannot be
// resolved would surface a partially-broken tool.
type MissingSourceError struct {
	OperationID string
	Parameter   string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("operation %s: hidden parameter %q has no configured value source", e.OperationID, e.Parameter)
}

// MissingConfigurationError reports an injected value source that resolved
// at startup but is unset at call time. It fails that single call only.
type MissingConfigurationError struct {
	OperationID string
	Parameter   string
	EnvVar      string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("operation %s: environment variable %s for hidden parameter %q is not set", e.OperationID, e.EnvVar, e.Parameter)
}
