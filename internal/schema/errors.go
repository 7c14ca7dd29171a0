package schema

import "sort"

// FieldWithErrors is one entry of a validation failure: the field definition
// plus its accumulated errors, in the shape the HTTP boundary renders.
type FieldWithErrors struct {
	Field     string       `json:"field"`
	Storage   string       `json:"storageName"`
	Required  bool         `json:"required"`
	Kind      Kind         `json:"kind,omitempty"`
	CharLimit int          `json:"charLimit,omitempty"`
	Errors    []FieldError `json:"errors"`
}

// ValidationError carries exactly the set of fields with errors. It is
// returned, never panicked, and maps to a 400 at the HTTP boundary.
type ValidationError struct {
	Fields []FieldWithErrors `json:"fieldsWithErrors"`
}

func (e *ValidationError) Error() string {
	return "Validation Error"
}

// NewValidationError builds a ValidationError from an invalid result,
// resolving field definitions from the schema. Fields are ordered by wire
// name so the output is stable.
func NewValidationError(s *Schema, r *Result) *ValidationError {
	byField := r.FieldErrors()

	names := make([]string, 0, len(byField))
	for name := range byField {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]FieldWithErrors, 0, len(names))
	for _, name := range names {
		entry := FieldWithErrors{Field: name, Errors: byField[name]}
		if def, ok := s.FieldByWire(name); ok {
			entry.Storage = def.Storage
			entry.Required = def.Required
			entry.Kind = def.Kind
			entry.CharLimit = def.CharLimit
		}
		fields = append(fields, entry)
	}

	return &ValidationError{Fields: fields}
}
