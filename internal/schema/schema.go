package schema

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// KeyScheme selects which key set a record uses.
type KeyScheme int

const (
	// WireKeys means the record is keyed by wire (camelCase) names.
	WireKeys KeyScheme = iota
	// StorageKeys means the record is keyed by storage (snake_case) names.
	StorageKeys
)

// Schema is an ordered set of field definitions for one record type.
type Schema struct {
	fields    []Field
	byWire    map[string]int
	byStorage map[string]int
}

// New builds a schema from field definitions. Wire and storage names must
// each be unique within the schema; a duplicate is a programming error.
func New(fields ...Field) *Schema {
	s := &Schema{
		fields:    fields,
		byWire:    make(map[string]int, len(fields)),
		byStorage: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := s.byWire[f.Wire]; dup {
			panic(fmt.Sprintf("duplicate wire name: %s", f.Wire))
		}
		if _, dup := s.byStorage[f.Storage]; dup {
			panic(fmt.Sprintf("duplicate storage name: %s", f.Storage))
		}
		s.byWire[f.Wire] = i
		s.byStorage[f.Storage] = i
	}
	return s
}

// Fields returns the field definitions in declaration order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// FieldByWire looks up a field definition by wire name.
func (s *Schema) FieldByWire(name string) (Field, bool) {
	i, ok := s.byWire[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// EditableFields returns the fields marked user-editable for bulk updates.
func (s *Schema) EditableFields() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Editable {
			out = append(out, f)
		}
	}
	return out
}

// ToStorage renames wire keys to storage keys. Only keys known to the schema
// and present in the input are carried over; unknown keys are dropped, and
// missing keys are not defaulted.
func (s *Schema) ToStorage(rec Record) Record {
	out := make(Record, len(rec))
	for _, f := range s.fields {
		if v, ok := rec[f.Wire]; ok {
			out[f.Storage] = v
		}
	}
	return out
}

// ToWire renames storage keys to wire keys, with the same lossy-by-design
// behavior as ToStorage.
func (s *Schema) ToWire(rec Record) Record {
	out := make(Record, len(rec))
	for _, f := range s.fields {
		if v, ok := rec[f.Storage]; ok {
			out[f.Wire] = v
		}
	}
	return out
}

func (s *Schema) key(f Field, scheme KeyScheme) string {
	if scheme == StorageKeys {
		return f.Storage
	}
	return f.Wire
}

// Validate runs the two validation passes over rec and returns the
// accumulated result. skip lists wire names to exclude entirely. The first
// pass runs every built-in check (required, type, character limit) across
// every field; only then do custom validators run, all concurrently, so a
// custom rule can ask whether a sibling field already failed. The returned
// error reports only validator infrastructure failure (e.g. a lookup that
// could not run), never a validation failure.
func (s *Schema) Validate(ctx context.Context, rec Record, skip []string, scheme KeyScheme) (*Result, error) {
	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[name] = true
	}

	out := NewResult()

	// Pass 1: built-in checks. Required, type and character limit are
	// independent of each other; all run regardless of the others' outcome.
	for _, f := range s.fields {
		if skipped[f.Wire] {
			continue
		}
		value, present := rec[s.key(f, scheme)]

		if f.Required && isEmpty(value, present) {
			out.AddError(f.Wire, ErrKindRequired, fmt.Sprintf("%s is required", f.Wire))
		}
		if !present || value == nil {
			continue
		}
		if f.Kind != "" && f.Kind != KindString && !kindValid(f.Kind, value) {
			out.AddError(f.Wire, ErrKindType, fmt.Sprintf("%s must be a valid %s", f.Wire, f.Kind))
		}
		if f.CharLimit > 0 {
			if str, ok := value.(string); ok && len(str) > f.CharLimit {
				out.AddErrorMeta(f.Wire, ErrKindLimit,
					fmt.Sprintf("%s exceeds %d characters", f.Wire, f.CharLimit),
					map[string]any{"limit": f.CharLimit})
			}
		}
	}

	// Pass 2: custom validators, sync and async, all concurrent.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, f := range s.fields {
		if skipped[f.Wire] {
			continue
		}
		if f.Validate != nil {
			wg.Add(1)
			go func(fn Validator) {
				defer wg.Done()
				fn(rec, out)
			}(f.Validate)
		}
		if f.ValidateAsync != nil {
			wg.Add(1)
			go func(fn AsyncValidator) {
				defer wg.Done()
				if err := fn(ctx, rec, out); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}(f.ValidateAsync)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

var (
	dateRE    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	integerRE = regexp.MustCompile(`^-?\d+$`)
)

// IsDateString reports whether v is an exact YYYY-MM-DD date. A string that
// parses as a date but does not match the pattern is rejected: stored dates
// must round-trip exactly.
func IsDateString(v any) bool {
	str, ok := v.(string)
	if !ok || !dateRE.MatchString(str) {
		return false
	}
	_, err := time.Parse("2006-01-02", str)
	return err == nil
}

// IsInteger reports whether v is an integer value. 0 and "0" are valid;
// nil, "" and non-numeric strings are not.
func IsInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == float64(int64(n))
	case float32:
		return n == float32(int64(n))
	case string:
		return integerRE.MatchString(n)
	default:
		return false
	}
}

// IsNumber reports whether v is a numeric value or numeric string.
func IsNumber(v any) bool {
	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(n, 64)
		return n != "" && err == nil
	default:
		return false
	}
}

func kindValid(kind Kind, value any) bool {
	switch kind {
	case KindInteger:
		return IsInteger(value)
	case KindNumber:
		return IsNumber(value)
	case KindDate:
		return IsDateString(value)
	case KindBoolean:
		switch b := value.(type) {
		case bool:
			return true
		case int, int64:
			return b == 0 || b == 1 || b == int64(0) || b == int64(1)
		case float64:
			return b == 0 || b == 1
		default:
			return false
		}
	case KindArray:
		return value != nil && reflect.TypeOf(value).Kind() == reflect.Slice
	default:
		return true
	}
}

func isEmpty(value any, present bool) bool {
	if !present || value == nil {
		return true
	}
	if str, ok := value.(string); ok {
		return str == ""
	}
	if reflect.TypeOf(value).Kind() == reflect.Slice {
		return reflect.ValueOf(value).Len() == 0
	}
	return false
}
