// Package schema implements the declarative field-mapping and validation
// engine shared by every record type in the core. A Schema maps between the
// wire (camelCase) and storage (snake_case) representations of a record and
// validates it in two passes: built-in checks for every field first, then all
// custom validators concurrently.
package schema

import "context"

// Kind is the primitive type tag of a field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindDate    Kind = "date"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
)

// Record is the generic wire/storage representation of one record.
type Record = map[string]any

// Validator is a synchronous custom validator. It receives the entire
// candidate record so cross-field rules stay pure functions, and reports
// failures only through the accumulator.
type Validator func(rec Record, out *Result)

// AsyncValidator is a custom validator that may perform read-only lookups.
// It must not mutate shared state outside the accumulator.
type AsyncValidator func(ctx context.Context, rec Record, out *Result) error

// Field describes one logical field of a schema.
type Field struct {
	Wire      string // wire (camelCase) key
	Storage   string // storage (snake_case) column
	Required  bool
	CharLimit int
	Kind      Kind
	Editable  bool // user-editable for bulk-update operations

	Validate      Validator
	ValidateAsync AsyncValidator
}
