package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToWhereClause(t *testing.T) {
	tests := []struct {
		name       string
		filters    map[string]any
		wantClause string
		wantValues []any
	}{
		{
			name:       "empty map",
			filters:    map[string]any{},
			wantClause: "",
			wantValues: nil,
		},
		{
			name:       "scalar equality",
			filters:    map[string]any{"status": "draft"},
			wantClause: "WHERE status = ?",
			wantValues: []any{"draft"},
		},
		{
			name:       "keys sorted deterministically",
			filters:    map[string]any{"kerberos": "jdoe", "is_current": 1},
			wantClause: "WHERE is_current = ? AND kerberos = ?",
			wantValues: []any{1, "jdoe"},
		},
		{
			name:       "string slice becomes IN",
			filters:    map[string]any{"request_id": []string{"a", "b"}},
			wantClause: "WHERE request_id IN (?, ?)",
			wantValues: []any{"a", "b"},
		},
		{
			name:       "int64 slice becomes IN",
			filters:    map[string]any{"id": []int64{3, 5, 8}},
			wantClause: "WHERE id IN (?, ?, ?)",
			wantValues: []any{int64(3), int64(5), int64(8)},
		},
		{
			name:       "empty slice matches nothing",
			filters:    map[string]any{"id": []string{}},
			wantClause: "WHERE 1 = 0",
			wantValues: nil,
		},
		{
			name:       "nil means IS NULL",
			filters:    map[string]any{"archived_at": nil},
			wantClause: "WHERE archived_at IS NULL",
			wantValues: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, values := ToWhereClause(tt.filters)
			assert.Equal(t, tt.wantClause, clause)
			assert.Equal(t, tt.wantValues, values)
		})
	}
}

func TestToUpdateClause(t *testing.T) {
	clause, values := ToUpdateClause(map[string]any{
		"amount":          "12.50",
		"accounting_code": "GL-100",
	})
	assert.Equal(t, "SET accounting_code = ?, amount = ?", clause)
	assert.Equal(t, []any{"GL-100", "12.50"}, values)
}

func TestPrepareInsert(t *testing.T) {
	cols, marks, values := PrepareInsert(map[string]any{
		"id":       "abc",
		"kerberos": "jdoe",
		"status":   "draft",
	})
	assert.Equal(t, "id, kerberos, status", cols)
	assert.Equal(t, "?, ?, ?", marks)
	assert.Equal(t, []any{"abc", "jdoe", "draft"}, values)
}
