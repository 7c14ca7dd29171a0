package reimbursement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/config"
	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/internal/request"
	"github.com/fso-systems/travelreq/internal/schema"
	"github.com/fso-systems/travelreq/internal/testutil"
	"github.com/fso-systems/travelreq/pkg/database"
)

type ledgerFixture struct {
	ledger *Ledger
	store  *request.Store
	db     *database.DB
	fundID int64
	optID  int64
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := testutil.NewDB(t)
	dir := directory.New(db.DB, zap.NewNop())
	cfg := config.WorkflowConfig{
		SystemApproverTypeID:  90,
		FinanceApproverTypeID: 91,
		NoFundingSourceID:     1,
	}
	return &ledgerFixture{
		ledger: NewLedger(db, dir, cfg, zap.NewNop()),
		store:  request.NewStore(db, dir, cfg, zap.NewNop()),
		db:     db,
		fundID: testutil.SeedFundingSource(t, db, "Department Fund", false),
		optID:  testutil.SeedExpenditureOption(t, db, "Lodging"),
	}
}

// approvedRequest submits an approval request and walks it to approved,
// returning the current (approved) revision.
func (f *ledgerFixture) approvedRequest(t *testing.T) *models.ApprovalRequest {
	t.Helper()
	rec := f.requestRecord()
	submitted, err := f.store.CreateRevision(context.Background(), rec, nil, false)
	require.NoError(t, err)

	rec["requestId"] = submitted.RequestID
	rec["status"] = models.StatusApproved
	approved, err := f.store.CreateRevision(context.Background(), rec, nil, false)
	require.NoError(t, err)
	return approved
}

func (f *ledgerFixture) requestRecord() schema.Record {
	return schema.Record{
		"status":           models.StatusSubmitted,
		"kerberos":         "jdoe",
		"label":            "Conference trip",
		"organization":     "Chemistry",
		"businessPurpose":  "Present thesis research",
		"location":         models.LocationOutOfState,
		"locationDetails":  "Denver, CO",
		"travelRequired":   true,
		"programStartDate": "2026-04-01",
		"programEndDate":   "2026-04-05",
		"travelStartDate":  "2026-03-31",
		"travelEndDate":    "2026-04-06",
		"expenditures": []any{
			map[string]any{"expenditureOptionId": f.optID, "amount": "350.00"},
		},
		"fundingSources": []any{
			map[string]any{"fundingSourceId": f.fundID, "amount": "350.00"},
		},
	}
}

func (f *ledgerFixture) reimbursementRecord(requestID string) schema.Record {
	return schema.Record{
		"requestId": requestID,
		"kerberos":  "jdoe",
		"expenses": []any{
			map[string]any{
				"category":     models.ExpenseTransportation,
				"amount":       "120.00",
				"fromLocation": "Boston",
				"toLocation":   "Denver",
			},
			map[string]any{
				"category":    models.ExpenseDailyExpense,
				"amount":      "35.00",
				"expenseDate": "2026-04-02",
			},
		},
		"receipts": []any{
			map[string]any{"fileName": "taxi.pdf", "filePath": "/receipts/taxi.pdf", "mimeType": "application/pdf"},
		},
	}
}

// approvalReimbursementStatus reads the denormalized rollup off the current
// revision.
func (f *ledgerFixture) approvalReimbursementStatus(t *testing.T, requestID string) string {
	t.Helper()
	var status string
	require.NoError(t, f.db.QueryRow(
		"SELECT reimbursement_status FROM approval_requests WHERE request_id = ? AND is_current = 1",
		requestID,
	).Scan(&status))
	return status
}

func TestCreateReimbursement(t *testing.T) {
	f := newLedgerFixture(t)
	approved := f.approvedRequest(t)

	created, err := f.ledger.Create(context.Background(), f.reimbursementRecord(approved.RequestID))
	require.NoError(t, err)

	assert.Equal(t, models.ReimbSubmitted, created.Status)
	assert.Equal(t, approved.RequestID, created.RequestID)
	assert.Len(t, created.Expenses, 2)
	assert.Len(t, created.Receipts, 1)

	assert.Equal(t, models.ReimbSubmitted, f.approvalReimbursementStatus(t, approved.RequestID))

	activity, err := f.ledger.ListActivity(context.Background(), approved.RequestID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, ActionApprovalNeeded, activity[0].Action)
	assert.Equal(t, int64(91), activity[0].ApproverTypeID)
	assert.Equal(t, "jdoe", activity[0].Kerberos)
}

func TestCreateReimbursementKeepsEmployeeNames(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	// The approval path records the submitter's names; the reimbursement
	// path only knows the kerberos and must not blank them.
	submitter := &directory.Employee{Kerberos: "jdoe", FirstName: "Jordan", LastName: "Doe"}
	rec := f.requestRecord()
	submitted, err := f.store.CreateRevision(ctx, rec, submitter, false)
	require.NoError(t, err)
	rec["requestId"] = submitted.RequestID
	rec["status"] = models.StatusApproved
	_, err = f.store.CreateRevision(ctx, rec, submitter, false)
	require.NoError(t, err)

	_, err = f.ledger.Create(ctx, f.reimbursementRecord(submitted.RequestID))
	require.NoError(t, err)

	var firstName, lastName string
	require.NoError(t, f.db.QueryRow(
		"SELECT first_name, last_name FROM employees WHERE kerberos = ?", "jdoe",
	).Scan(&firstName, &lastName))
	assert.Equal(t, "Jordan", firstName)
	assert.Equal(t, "Doe", lastName)
}

func TestCreateReimbursementRequiresApprovedParent(t *testing.T) {
	f := newLedgerFixture(t)
	submitted, err := f.store.CreateRevision(context.Background(), f.requestRecord(), nil, false)
	require.NoError(t, err)

	_, err = f.ledger.Create(context.Background(), f.reimbursementRecord(submitted.RequestID))
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.Fields, 1)
	assert.Equal(t, "requestId", valErr.Fields[0].Field)
}

func TestCreateReimbursementExpenseCategoryDetails(t *testing.T) {
	f := newLedgerFixture(t)
	approved := f.approvedRequest(t)

	rec := f.reimbursementRecord(approved.RequestID)
	rec["expenses"] = []any{
		map[string]any{"category": models.ExpenseTransportation, "amount": "120.00"},
		map[string]any{"category": models.ExpensePrivateCar, "amount": "55.00"},
	}
	_, err := f.ledger.Create(context.Background(), rec)
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.Fields, 1)
	assert.Equal(t, "expenses", valErr.Fields[0].Field)
	assert.Len(t, valErr.Fields[0].Errors, 2)
}

func TestFundTransactionRollup(t *testing.T) {
	f := newLedgerFixture(t)
	approved := f.approvedRequest(t)
	ctx := context.Background()

	reimbursement, err := f.ledger.Create(ctx, f.reimbursementRecord(approved.RequestID))
	require.NoError(t, err)

	ft, err := f.ledger.CreateFundTransaction(ctx, schema.Record{
		"reimbursementRequestId": reimbursement.ID,
		"fundingSourceId":        f.fundID,
		"amount":                 "155.00",
		"accountingCode":         "GL-100",
		"reimbursementStatus":    models.FundSubmitted,
	})
	require.NoError(t, err)
	assert.Equal(t, models.FundSubmitted, ft.ReimbursementStatus)

	// One submitted fund line: both levels move to pending.
	mid, err := f.ledger.GetByID(ctx, reimbursement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReimbPending, mid.Status)
	assert.Equal(t, models.ReimbPending, f.approvalReimbursementStatus(t, approved.RequestID))

	_, err = f.ledger.UpdateFundTransaction(ctx, ft.ID, schema.Record{
		"reimbursementStatus": models.FundFullyReimbursed,
	})
	require.NoError(t, err)

	paid, err := f.ledger.GetByID(ctx, reimbursement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReimbFullyReimbursed, paid.Status)
	assert.Equal(t, models.ReimbFullyReimbursed, f.approvalReimbursementStatus(t, approved.RequestID))

	activity, err := f.ledger.ListActivity(ctx, approved.RequestID)
	require.NoError(t, err)
	require.Len(t, activity, 3)
	assert.Equal(t, ActionFundTransaction, activity[1].Action)
	assert.Equal(t, int64(90), activity[1].ApproverTypeID)
}

func TestFundTransactionRollupIdempotent(t *testing.T) {
	f := newLedgerFixture(t)
	approved := f.approvedRequest(t)
	ctx := context.Background()

	reimbursement, err := f.ledger.Create(ctx, f.reimbursementRecord(approved.RequestID))
	require.NoError(t, err)
	ft, err := f.ledger.CreateFundTransaction(ctx, schema.Record{
		"reimbursementRequestId": reimbursement.ID,
		"fundingSourceId":        f.fundID,
		"amount":                 "155.00",
		"reimbursementStatus":    models.FundFullyReimbursed,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.ledger.UpdateFundTransaction(ctx, ft.ID, schema.Record{
			"reimbursementStatus": models.FundFullyReimbursed,
		})
		require.NoError(t, err)
	}

	current, err := f.ledger.GetByID(ctx, reimbursement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReimbFullyReimbursed, current.Status)
	assert.Equal(t, models.ReimbFullyReimbursed, f.approvalReimbursementStatus(t, approved.RequestID))
}

func TestFundTransactionCancellationResetsRollup(t *testing.T) {
	f := newLedgerFixture(t)
	approved := f.approvedRequest(t)
	ctx := context.Background()

	reimbursement, err := f.ledger.Create(ctx, f.reimbursementRecord(approved.RequestID))
	require.NoError(t, err)
	ft, err := f.ledger.CreateFundTransaction(ctx, schema.Record{
		"reimbursementRequestId": reimbursement.ID,
		"fundingSourceId":        f.fundID,
		"amount":                 "155.00",
		"reimbursementStatus":    models.FundPartiallyReimbursed,
	})
	require.NoError(t, err)

	_, err = f.ledger.UpdateFundTransaction(ctx, ft.ID, schema.Record{
		"reimbursementStatus": models.FundCancelled,
	})
	require.NoError(t, err)

	current, err := f.ledger.GetByID(ctx, reimbursement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReimbSubmitted, current.Status)
	assert.Equal(t, models.ReimbSubmitted, f.approvalReimbursementStatus(t, approved.RequestID))
}

func TestFundTransactionRejectsForeignFundingSource(t *testing.T) {
	f := newLedgerFixture(t)
	approved := f.approvedRequest(t)
	other := testutil.SeedFundingSource(t, f.db, "Unrelated Fund", false)
	ctx := context.Background()

	reimbursement, err := f.ledger.Create(ctx, f.reimbursementRecord(approved.RequestID))
	require.NoError(t, err)

	_, err = f.ledger.CreateFundTransaction(ctx, schema.Record{
		"reimbursementRequestId": reimbursement.ID,
		"fundingSourceId":        other,
		"amount":                 "10.00",
		"reimbursementStatus":    models.FundSubmitted,
	})
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.Fields, 1)
	assert.Equal(t, "fundingSourceId", valErr.Fields[0].Field)
}

func TestFundTransactionRejectsNegativeAmount(t *testing.T) {
	f := newLedgerFixture(t)
	approved := f.approvedRequest(t)
	ctx := context.Background()

	reimbursement, err := f.ledger.Create(ctx, f.reimbursementRecord(approved.RequestID))
	require.NoError(t, err)

	_, err = f.ledger.CreateFundTransaction(ctx, schema.Record{
		"reimbursementRequestId": reimbursement.ID,
		"fundingSourceId":        f.fundID,
		"amount":                 "-5.00",
		"reimbursementStatus":    models.FundSubmitted,
	})
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "amount", valErr.Fields[0].Field)
}

func TestGetFundTransactionNotFound(t *testing.T) {
	f := newLedgerFixture(t)
	_, err := f.ledger.GetFundTransaction(context.Background(), 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
