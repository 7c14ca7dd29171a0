package schema

import "sync"

// Error kinds accumulated by validation.
const (
	ErrKindRequired = "required"
	ErrKindLimit    = "limit"
	ErrKindType     = "type"
	ErrKindInvalid  = "invalid"
)

// FieldError is one accumulated validation failure on one field.
type FieldError struct {
	Kind    string         `json:"errorKind"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Result accumulates validation failures per field. Custom validators run
// concurrently, so the accumulator is safe for concurrent use. Validation
// never fails by returning an error; all failure lives here.
type Result struct {
	mu   sync.Mutex
	errs map[string][]FieldError
}

// NewResult creates an empty accumulator.
func NewResult() *Result {
	return &Result{errs: make(map[string][]FieldError)}
}

// AddError records a failure against a field. A field may accumulate several.
func (r *Result) AddError(field, kind, message string) {
	r.AddErrorMeta(field, kind, message, nil)
}

// AddErrorMeta records a failure with structured metadata.
func (r *Result) AddErrorMeta(field, kind, message string, meta map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[field] = append(r.errs[field], FieldError{Kind: kind, Message: message, Meta: meta})
}

// FieldHasError reports whether a field accumulated any failure. Custom
// validators use this to avoid re-reporting against a sibling field that
// already failed a built-in check.
func (r *Result) FieldHasError(field string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs[field]) > 0
}

// Valid reports whether no failures were accumulated.
func (r *Result) Valid() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs) == 0
}

// FieldErrors returns a copy of the accumulated failures keyed by field.
func (r *Result) FieldErrors() map[string][]FieldError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]FieldError, len(r.errs))
	for field, errs := range r.errs {
		out[field] = append([]FieldError(nil), errs...)
	}
	return out
}
