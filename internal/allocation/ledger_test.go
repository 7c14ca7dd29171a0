package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/schema"
	"github.com/fso-systems/travelreq/internal/testutil"
	"github.com/fso-systems/travelreq/pkg/database"
)

func newLedger(t *testing.T) (*Ledger, *database.DB, int64) {
	t.Helper()
	db := testutil.NewDB(t)
	ledger := NewLedger(db, directory.New(db.DB, zap.NewNop()), zap.NewNop())
	fundID := testutil.SeedFundingSource(t, db, "Department Fund", false)
	return ledger, db, fundID
}

func allocationRecord(fundID int64) schema.Record {
	return schema.Record{
		"employees": []any{
			map[string]any{"kerberos": "jdoe", "firstName": "Jordan", "lastName": "Doe"},
			map[string]any{"kerberos": "asmith", "firstName": "Alex", "lastName": "Smith"},
		},
		"fundingSourceId": fundID,
		"startDate":       "2026-07-01",
		"endDate":         "2027-06-30",
		"amount":          "1500.00",
	}
}

func TestCreateAllocations(t *testing.T) {
	ledger, db, fundID := newLedger(t)

	created, err := ledger.Create(context.Background(), allocationRecord(fundID), "admin", false)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "asmith", created[0].Kerberos)
	assert.Equal(t, "jdoe", created[1].Kerberos)
	assert.Equal(t, "admin", created[0].CreatedBy)
	assert.Equal(t, "2026-07-01", created[0].StartDate)
	assert.False(t, created[0].Archived)

	var employeeCount int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM employees WHERE kerberos IN ('jdoe', 'asmith')",
	).Scan(&employeeCount))
	assert.Equal(t, 2, employeeCount)
}

func TestCreateAllocationsRejectsDuplicates(t *testing.T) {
	ledger, _, fundID := newLedger(t)
	ctx := context.Background()

	_, err := ledger.Create(ctx, allocationRecord(fundID), "admin", false)
	require.NoError(t, err)

	// Same window, same source, one overlapping employee.
	rec := allocationRecord(fundID)
	rec["employees"] = []any{
		map[string]any{"kerberos": "jdoe"},
		map[string]any{"kerberos": "newhire"},
	}
	_, err = ledger.Create(ctx, rec, "admin", false)
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.Fields, 1)
	assert.Equal(t, "employees", valErr.Fields[0].Field)
	require.Len(t, valErr.Fields[0].Errors, 1)
	assert.Equal(t, []string{"jdoe"}, valErr.Fields[0].Errors[0].Meta["employees"])
}

func TestCreateAllocationsAllowDuplicates(t *testing.T) {
	ledger, db, fundID := newLedger(t)
	ctx := context.Background()

	_, err := ledger.Create(ctx, allocationRecord(fundID), "admin", false)
	require.NoError(t, err)
	_, err = ledger.Create(ctx, allocationRecord(fundID), "admin", true)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM allocations WHERE kerberos = 'jdoe'",
	).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestCreateAllocationsDifferentWindowIsNotDuplicate(t *testing.T) {
	ledger, _, fundID := newLedger(t)
	ctx := context.Background()

	_, err := ledger.Create(ctx, allocationRecord(fundID), "admin", false)
	require.NoError(t, err)

	rec := allocationRecord(fundID)
	rec["startDate"] = "2027-07-01"
	rec["endDate"] = "2028-06-30"
	_, err = ledger.Create(ctx, rec, "admin", false)
	require.NoError(t, err)
}

func TestCreateAllocationsValidation(t *testing.T) {
	ledger, _, fundID := newLedger(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(rec schema.Record)
		field  string
	}{
		{
			name:   "missing employees",
			mutate: func(rec schema.Record) { delete(rec, "employees") },
			field:  "employees",
		},
		{
			name: "employee without kerberos",
			mutate: func(rec schema.Record) {
				rec["employees"] = []any{map[string]any{"firstName": "Nameless"}}
			},
			field: "employees",
		},
		{
			name:   "unknown funding source",
			mutate: func(rec schema.Record) { rec["fundingSourceId"] = int64(9999) },
			field:  "fundingSourceId",
		},
		{
			name: "end before start",
			mutate: func(rec schema.Record) {
				rec["startDate"] = "2027-06-30"
				rec["endDate"] = "2026-07-01"
			},
			field: "startDate",
		},
		{
			name:   "bad date shape",
			mutate: func(rec schema.Record) { rec["startDate"] = "July 1st" },
			field:  "startDate",
		},
		{
			name:   "non-numeric amount",
			mutate: func(rec schema.Record) { rec["amount"] = "lots" },
			field:  "amount",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := allocationRecord(fundID)
			tt.mutate(rec)
			_, err := ledger.Create(ctx, rec, "admin", false)
			var valErr *schema.ValidationError
			require.ErrorAs(t, err, &valErr)
			names := make([]string, 0, len(valErr.Fields))
			for _, f := range valErr.Fields {
				names = append(names, f.Field)
			}
			assert.Contains(t, names, tt.field)
		})
	}
}

func TestArchiveAllocations(t *testing.T) {
	ledger, _, fundID := newLedger(t)
	ctx := context.Background()

	created, err := ledger.Create(ctx, allocationRecord(fundID), "admin", false)
	require.NoError(t, err)

	ids := []string{created[0].ID, created[1].ID}
	require.NoError(t, ledger.Archive(ctx, ids, "admin"))

	archived, err := ledger.getByIDs(ctx, ids)
	require.NoError(t, err)
	for _, a := range archived {
		assert.True(t, a.Archived)
		assert.Equal(t, "admin", a.ArchivedBy)
		assert.NotNil(t, a.ArchivedAt)
	}

	// Archived rows no longer block re-creation of the same window.
	_, err = ledger.Create(ctx, allocationRecord(fundID), "admin", false)
	require.NoError(t, err)
}

func TestArchiveEmptyBatchIsNoop(t *testing.T) {
	ledger, _, _ := newLedger(t)
	require.NoError(t, ledger.Archive(context.Background(), nil, "admin"))
}
