// Package records reads batch input files: a YAML or JSON list of rows, each
// row a list of values bound to one statement execution.
package records

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a file containing one or more documents of rows
func ParseFile(path string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse parses YAML (or JSON) content. Rows from multiple documents are
// concatenated in order; empty documents are skipped.
func Parse(r io.Reader) ([][]any, error) {
	decoder := yaml.NewDecoder(r)
	out := [][]any{}

	for doc := 0; ; doc++ {
		var rows []any
		err := decoder.Decode(&rows)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", doc, err)
		}

		for _, row := range rows {
			values, ok := row.([]any)
			if !ok {
				return nil, fmt.Errorf("record %d: expected a list of values, got %T", len(out), row)
			}
			out = append(out, values)
		}
	}

	return out, nil
}

// ParseArgs decodes command-line statement parameters as YAML scalars, so
// "42" binds an integer, "true" a boolean and "null" a NULL. Anything that
// does not decode to a scalar is passed as the original string.
func ParseArgs(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = parseScalar(a)
	}
	return out
}

func parseScalar(s string) any {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(s), &node); err != nil || len(node.Content) != 1 {
		return s
	}
	n := node.Content[0]
	if n.Kind != yaml.ScalarNode || n.Style != 0 {
		return s
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return s
	}
	return v
}
