package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return New(
		Field{Wire: "requestId", Storage: "request_id"},
		Field{Wire: "label", Storage: "label", Required: true, CharLimit: 10},
		Field{Wire: "count", Storage: "count", Kind: KindInteger},
		Field{Wire: "startDate", Storage: "start_date", Kind: KindDate},
		Field{Wire: "items", Storage: "items", Kind: KindArray},
	)
}

func TestToStorageToWireRoundTrip(t *testing.T) {
	s := testSchema()

	wire := Record{
		"requestId": "abc",
		"label":     "trip",
		"count":     3,
		"unknown":   "dropped",
	}

	storage := s.ToStorage(wire)
	assert.Equal(t, "abc", storage["request_id"])
	assert.Equal(t, "trip", storage["label"])
	assert.Equal(t, 3, storage["count"])
	_, hasUnknown := storage["unknown"]
	assert.False(t, hasUnknown, "unknown keys are dropped")
	_, hasMissing := storage["start_date"]
	assert.False(t, hasMissing, "missing keys are not defaulted")

	back := s.ToWire(storage)
	assert.Equal(t, Record{"requestId": "abc", "label": "trip", "count": 3}, back)
}

func TestValidateRequired(t *testing.T) {
	s := testSchema()

	result, err := s.Validate(context.Background(), Record{}, nil, WireKeys)
	require.NoError(t, err)
	assert.False(t, result.Valid())
	assert.True(t, result.FieldHasError("label"))

	result, err = s.Validate(context.Background(), Record{"label": ""}, nil, WireKeys)
	require.NoError(t, err)
	assert.True(t, result.FieldHasError("label"))
}

func TestValidateCharLimit(t *testing.T) {
	s := testSchema()

	result, err := s.Validate(context.Background(), Record{"label": "much too long for ten"}, nil, WireKeys)
	require.NoError(t, err)
	errs := result.FieldErrors()["label"]
	require.Len(t, errs, 1)
	assert.Equal(t, ErrKindLimit, errs[0].Kind)
}

func TestIntegerValidator(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"zero int", 0, true},
		{"zero string", "0", true},
		{"positive float whole", float64(42), true},
		{"negative string", "-7", true},
		{"fractional float", 41.5, false},
		{"empty string", "", false},
		{"word", "seven", false},
		{"bool", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInteger(tt.value))
		})
	}
}

func TestDateValidator(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"exact shape", "2026-03-04", true},
		{"parses but wrong shape", "2026-3-4", false},
		{"impossible date", "2026-13-40", false},
		{"with time suffix", "2026-03-04T00:00:00Z", false},
		{"not a string", 20260304, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDateString(tt.value))
		})
	}
}

func TestCustomValidatorsRunAfterBuiltins(t *testing.T) {
	// The custom validator asks whether a sibling already failed its
	// built-in checks; the two-pass ordering guarantees the answer is final.
	sawSiblingError := false
	s := New(
		Field{Wire: "startDate", Storage: "start_date", Kind: KindDate},
		Field{Wire: "endDate", Storage: "end_date", Kind: KindDate,
			Validate: func(rec Record, out *Result) {
				sawSiblingError = out.FieldHasError("startDate")
			}},
	)

	result, err := s.Validate(context.Background(),
		Record{"startDate": "not-a-date", "endDate": "2026-01-02"}, nil, WireKeys)
	require.NoError(t, err)
	assert.False(t, result.Valid())
	assert.True(t, sawSiblingError)
}

func TestValidateSkipFields(t *testing.T) {
	s := testSchema()
	result, err := s.Validate(context.Background(), Record{}, []string{"label"}, WireKeys)
	require.NoError(t, err)
	assert.True(t, result.Valid())
}

func TestResultAccumulatesMultipleErrors(t *testing.T) {
	r := NewResult()
	r.AddError("label", ErrKindRequired, "label is required")
	r.AddError("label", ErrKindLimit, "label too long")
	assert.False(t, r.Valid())
	assert.Len(t, r.FieldErrors()["label"], 2)
}

func TestNewValidationErrorCarriesFieldDefs(t *testing.T) {
	s := testSchema()
	r := NewResult()
	r.AddError("label", ErrKindRequired, "label is required")

	valErr := NewValidationError(s, r)
	require.Len(t, valErr.Fields, 1)
	assert.Equal(t, "label", valErr.Fields[0].Field)
	assert.Equal(t, "label", valErr.Fields[0].Storage)
	assert.True(t, valErr.Fields[0].Required)
	assert.Equal(t, "Validation Error", valErr.Error())
}
