// Package schema validates record tables against a minimal column schema.
//
// A schema lists the columns every record must carry together with their
// JSON type. Validation is all-or-nothing: a table with a single failing
// record is rejected as a whole and no records are dropped or coerced.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dsworkflows/chidata/pkg/table"
)

// ErrValidation is matched by every *ValidationError via errors.Is.
var ErrValidation = errors.New("schema validation failed")

// Type is the JSON type a column must hold.
type Type string

const (
	// String columns hold JSON strings.
	String Type = "string"

	// Number columns hold JSON numbers.
	Number Type = "number"

	// Bool columns hold JSON booleans.
	Bool Type = "bool"
)

// Column is a required, non-null field of a given type.
type Column struct {
	Name string
	Type Type
}

// Schema is a set of required columns.
type Schema struct {
	Columns []Column
}

// New creates a schema from columns.
func New(columns ...Column) Schema {
	return Schema{Columns: columns}
}

// Failure describes one failing cell.
type Failure struct {
	Row    int
	Column string
	Reason string
}

func (f Failure) String() string {
	return fmt.Sprintf("row %d column %q: %s", f.Row, f.Column, f.Reason)
}

// ValidationError lists every failing cell of a table.
type ValidationError struct {
	Failures []Failure
}

// maxReported bounds the failures rendered by Error.
const maxReported = 5

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, maxReported)
	for i, f := range e.Failures {
		if i == maxReported {
			parts = append(parts, fmt.Sprintf("and %d more", len(e.Failures)-maxReported))
			break
		}
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate checks every record of t. It returns nil or a *ValidationError.
func (s Schema) Validate(t *table.Table) error {
	var failures []Failure
	for i, r := range t.Records() {
		for _, c := range s.Columns {
			if reason := c.check(r); reason != "" {
				failures = append(failures, Failure{Row: i, Column: c.Name, Reason: reason})
			}
		}
	}
	if len(failures) > 0 {
		return &ValidationError{Failures: failures}
	}
	return nil
}

func (c Column) check(r table.Record) string {
	v, ok := r[c.Name]
	if !ok {
		return "missing"
	}
	if v == nil {
		return "null"
	}

	var good bool
	switch c.Type {
	case String:
		_, good = v.(string)
	case Number:
		switch v.(type) {
		case json.Number, float64, int, int64:
			good = true
		}
	case Bool:
		_, good = v.(bool)
	default:
		return fmt.Sprintf("unknown column type %q", c.Type)
	}
	if !good {
		return fmt.Sprintf("expected %s, got %T", c.Type, v)
	}
	return ""
}
