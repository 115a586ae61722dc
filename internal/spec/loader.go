package spec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/quortexio/quortex-mcp/internal/diag"
)

var specExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// LoadDir reads every OpenAPI document in dir, in lexicographic filename
// order so downstream collision resolution is reproducible. A file that
// fails to parse or validate is skipped with a MalformedDocument record;
// the load continues. An empty or missing directory is an error.
func LoadDir(ctx context.Context, dir string) ([]*Document, []diag.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read spec directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if specExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no specification documents found in %s", dir)
	}

	var (
		docs    []*Document
		records []diag.Record
	)
	for _, name := range names {
		loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
		doc, err := loader.LoadFromFile(filepath.Join(dir, name))
		if err == nil {
			err = doc.Validate(ctx)
		}
		if err != nil {
			records = append(records, diag.Record{
				Kind:    diag.MalformedDocument,
				Subject: name,
				Detail:  err.Error(),
			})
			continue
		}
		docs = append(docs, &Document{SourceID: name, Doc: doc})
	}

	if len(docs) == 0 {
		return nil, records, fmt.Errorf("no valid specification documents in %s", dir)
	}
	return docs, records, nil
}
