package reimbursement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/config"
	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/internal/schema"
	"github.com/fso-systems/travelreq/pkg/database"
)

// Activity actions written by the ledger.
const (
	ActionApprovalNeeded  = "approval-needed"
	ActionFundTransaction = "fund-transaction"
)

// Ledger creates reimbursement requests and fund transactions and keeps the
// two-level status rollup consistent: fund transactions roll up to their
// reimbursement request, and reimbursement requests roll up to the approval
// request's denormalized reimbursement status. Both rollups are always
// recomputed from the full child set inside the writing transaction.
type Ledger struct {
	db         *database.DB
	dir        *directory.Directory
	cfg        config.WorkflowConfig
	reqSchema  *schema.Schema
	fundSchema *schema.Schema
	logger     *zap.Logger
}

// NewLedger creates a new reimbursement ledger.
func NewLedger(db *database.DB, dir *directory.Directory, cfg config.WorkflowConfig, logger *zap.Logger) *Ledger {
	l := &Ledger{db: db, dir: dir, cfg: cfg, logger: logger}
	l.reqSchema = l.buildRequestSchema()
	l.fundSchema = l.buildFundSchema()
	return l
}

// Create validates and persists a new reimbursement request with its expenses
// and receipts, and appends an approval-needed activity entry assigned to the
// financial reviewer. The parent approval request must be current and
// approved. Everything commits or rolls back together.
func (l *Ledger) Create(ctx context.Context, data schema.Record) (*models.ReimbursementRequest, error) {
	storage := l.reqSchema.ToStorage(data)
	delete(storage, "id")
	delete(storage, "status")

	result, err := l.reqSchema.Validate(ctx, storage, nil, schema.StorageKeys)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, schema.NewValidationError(l.reqSchema, result)
	}

	requestID := schema.StringAt(storage, "request_id")
	kerberos := schema.StringAt(storage, "kerberos")
	expenses := schema.RecordsAt(storage, "expenses")
	receipts := schema.RecordsAt(storage, "receipts")
	newID := uuid.NewString()

	err = l.db.WithTransaction(func(tx *sql.Tx) error {
		if err := l.dir.UpsertInTransaction(tx, directory.Employee{Kerberos: kerberos}); err != nil {
			return err
		}

		if _, err := tx.Exec(`
			INSERT INTO reimbursement_requests (id, request_id, status, kerberos)
			VALUES (?, ?, ?, ?)`,
			newID, requestID, models.ReimbSubmitted, kerberos,
		); err != nil {
			return fmt.Errorf("failed to insert reimbursement request: %w", err)
		}

		for _, line := range expenses {
			amount, _ := schema.DecimalOf(line["amount"])
			miles, _ := schema.DecimalOf(line["estimatedMiles"])
			if _, err := tx.Exec(`
				INSERT INTO reimbursement_expenses
					(reimbursement_request_id, category, amount, from_location,
					 to_location, estimated_miles, expense_date, description)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				newID,
				schema.StringAt(line, "category"),
				amount.InexactFloat64(),
				emptyToNil(schema.StringAt(line, "fromLocation")),
				emptyToNil(schema.StringAt(line, "toLocation")),
				miles.InexactFloat64(),
				emptyToNil(schema.StringAt(line, "expenseDate")),
				emptyToNil(schema.StringAt(line, "description")),
			); err != nil {
				return fmt.Errorf("failed to insert expense: %w", err)
			}
		}

		for _, line := range receipts {
			if _, err := tx.Exec(`
				INSERT INTO reimbursement_receipts
					(reimbursement_request_id, file_name, file_path, mime_type)
				VALUES (?, ?, ?, ?)`,
				newID,
				schema.StringAt(line, "fileName"),
				schema.StringAt(line, "filePath"),
				emptyToNil(schema.StringAt(line, "mimeType")),
			); err != nil {
				return fmt.Errorf("failed to insert receipt: %w", err)
			}
		}

		if err := l.appendActivity(tx, requestID, l.cfg.FinanceApproverTypeID, kerberos,
			ActionApprovalNeeded, "reimbursement request awaiting financial review"); err != nil {
			return err
		}

		return l.updateApprovalReimbursementStatus(tx, requestID)
	})
	if err != nil {
		l.logger.Error("Failed to create reimbursement request",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}

	l.logger.Info("Created reimbursement request",
		zap.String("id", newID),
		zap.String("request_id", requestID),
		zap.String("total", sumExpenses(expenses).String()))
	return l.GetByID(ctx, newID)
}

// GetByID returns one reimbursement request with expenses and receipts, or
// ErrNotFound.
func (l *Ledger) GetByID(ctx context.Context, id string) (*models.ReimbursementRequest, error) {
	var req models.ReimbursementRequest
	err := l.db.QueryRowContext(ctx,
		"SELECT id, request_id, status, kerberos, created_at FROM reimbursement_requests WHERE id = ?",
		id,
	).Scan(&req.ID, &req.RequestID, &req.Status, &req.Kerberos, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reimbursement request: %w", err)
	}

	req.Expenses = []models.Expense{}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, category, amount, COALESCE(from_location, ''), COALESCE(to_location, ''),
			COALESCE(estimated_miles, 0), COALESCE(expense_date, ''), COALESCE(description, '')
		FROM reimbursement_expenses WHERE reimbursement_request_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.Category, &e.Amount, &e.FromLocation, &e.ToLocation,
			&e.EstimatedMiles, &e.ExpenseDate, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		req.Expenses = append(req.Expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	req.Receipts = []models.Receipt{}
	receiptRows, err := l.db.QueryContext(ctx, `
		SELECT id, file_name, file_path, COALESCE(mime_type, ''), uploaded_at
		FROM reimbursement_receipts WHERE reimbursement_request_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer receiptRows.Close()
	for receiptRows.Next() {
		var r models.Receipt
		if err := receiptRows.Scan(&r.ID, &r.FileName, &r.FilePath, &r.MimeType, &r.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		req.Receipts = append(req.Receipts, r)
	}
	return &req, receiptRows.Err()
}

// CreateFundTransaction validates and persists one ledger line, then runs
// both rollups and appends a system activity entry. All of it commits or
// rolls back together.
func (l *Ledger) CreateFundTransaction(ctx context.Context, data schema.Record) (*models.FundTransaction, error) {
	storage := l.fundSchema.ToStorage(data)
	delete(storage, "id")

	result, err := l.fundSchema.Validate(ctx, storage, nil, schema.StorageKeys)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, schema.NewValidationError(l.fundSchema, result)
	}

	reimbursementID := schema.StringAt(storage, "reimbursement_request_id")
	fundingSourceID, _ := schema.Int64Of(storage["funding_source_id"])
	amount, _ := schema.DecimalOf(storage["amount"])
	status := schema.StringAt(storage, "reimbursement_status")

	var newID int64
	err = l.db.WithTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO reimbursement_request_funds
				(reimbursement_request_id, funding_source_id, amount, accounting_code, reimbursement_status)
			VALUES (?, ?, ?, ?, ?)`,
			reimbursementID, fundingSourceID, amount.InexactFloat64(),
			emptyToNil(schema.StringAt(storage, "accounting_code")), status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert fund transaction: %w", err)
		}
		newID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		return l.rollupAndLog(tx, reimbursementID, ActionFundTransaction,
			fmt.Sprintf("fund transaction recorded with status %s", status))
	})
	if err != nil {
		l.logger.Error("Failed to create fund transaction",
			zap.String("reimbursement_request_id", reimbursementID), zap.Error(err))
		return nil, err
	}

	l.logger.Info("Created fund transaction",
		zap.Int64("id", newID),
		zap.String("reimbursement_request_id", reimbursementID),
		zap.String("status", status))
	return l.GetFundTransaction(ctx, newID)
}

// UpdateFundTransaction applies editable fields to an existing ledger line
// and re-runs both rollups and the activity append in the same transaction.
func (l *Ledger) UpdateFundTransaction(ctx context.Context, id int64, data schema.Record) (*models.FundTransaction, error) {
	existing, err := l.GetFundTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	storage := l.fundSchema.ToStorage(data)
	// Updates may not retarget the ledger line; pin the references and
	// validate the merged record.
	storage["reimbursement_request_id"] = existing.ReimbursementRequestID
	storage["funding_source_id"] = existing.FundingSourceID
	if _, ok := storage["amount"]; !ok {
		storage["amount"] = existing.Amount
	}
	if _, ok := storage["reimbursement_status"]; !ok {
		storage["reimbursement_status"] = existing.ReimbursementStatus
	}
	delete(storage, "id")

	result, err := l.fundSchema.Validate(ctx, storage, nil, schema.StorageKeys)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, schema.NewValidationError(l.fundSchema, result)
	}

	updates := make(map[string]any)
	for _, f := range l.fundSchema.EditableFields() {
		if v, ok := storage[f.Storage]; ok {
			updates[f.Storage] = v
		}
	}
	if amount, ok := schema.DecimalOf(updates["amount"]); ok {
		updates["amount"] = amount.InexactFloat64()
	}

	setClause, values := database.ToUpdateClause(updates)
	status := schema.StringAt(storage, "reimbursement_status")

	err = l.db.WithTransaction(func(tx *sql.Tx) error {
		query := fmt.Sprintf(
			"UPDATE reimbursement_request_funds %s, updated_at = CURRENT_TIMESTAMP WHERE id = ?", setClause)
		if _, err := tx.Exec(query, append(values, id)...); err != nil {
			return fmt.Errorf("failed to update fund transaction: %w", err)
		}

		return l.rollupAndLog(tx, existing.ReimbursementRequestID, ActionFundTransaction,
			fmt.Sprintf("fund transaction updated to status %s", status))
	})
	if err != nil {
		l.logger.Error("Failed to update fund transaction", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	return l.GetFundTransaction(ctx, id)
}

// GetFundTransaction returns one ledger line or ErrNotFound.
func (l *Ledger) GetFundTransaction(ctx context.Context, id int64) (*models.FundTransaction, error) {
	var ft models.FundTransaction
	var code sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT id, reimbursement_request_id, funding_source_id, amount,
			accounting_code, reimbursement_status, created_at, updated_at
		FROM reimbursement_request_funds WHERE id = ?`, id,
	).Scan(&ft.ID, &ft.ReimbursementRequestID, &ft.FundingSourceID, &ft.Amount,
		&code, &ft.ReimbursementStatus, &ft.CreatedAt, &ft.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund transaction: %w", err)
	}
	ft.AccountingCode = code.String
	return &ft, nil
}

// rollupAndLog runs both rollup levels for the reimbursement request's chain
// and appends a system activity entry, all on the caller's transaction.
func (l *Ledger) rollupAndLog(tx *sql.Tx, reimbursementID, action, note string) error {
	var requestID string
	if err := tx.QueryRow(
		"SELECT request_id FROM reimbursement_requests WHERE id = ?", reimbursementID,
	).Scan(&requestID); err != nil {
		return fmt.Errorf("failed to resolve owning request: %w", err)
	}

	if err := l.updateReimbursementRequestStatus(tx, reimbursementID); err != nil {
		return err
	}
	if err := l.updateApprovalReimbursementStatus(tx, requestID); err != nil {
		return err
	}
	return l.appendActivity(tx, requestID, l.cfg.SystemApproverTypeID, "", action, note)
}

// updateReimbursementRequestStatus recomputes one reimbursement request's
// status from the full set of its fund transactions.
func (l *Ledger) updateReimbursementRequestStatus(tx *sql.Tx, reimbursementID string) error {
	statuses, err := columnStrings(tx,
		"SELECT reimbursement_status FROM reimbursement_request_funds WHERE reimbursement_request_id = ?",
		reimbursementID)
	if err != nil {
		return fmt.Errorf("failed to load fund statuses: %w", err)
	}

	status := Rollup(statuses, fundRollup)
	if _, err := tx.Exec(
		"UPDATE reimbursement_requests SET status = ? WHERE id = ?", status, reimbursementID,
	); err != nil {
		return fmt.Errorf("failed to update reimbursement request status: %w", err)
	}
	return nil
}

// updateApprovalReimbursementStatus recomputes the approval request's
// denormalized reimbursement status from all of its reimbursement requests,
// writing it onto the current revision.
func (l *Ledger) updateApprovalReimbursementStatus(tx *sql.Tx, requestID string) error {
	statuses, err := columnStrings(tx,
		"SELECT status FROM reimbursement_requests WHERE request_id = ?", requestID)
	if err != nil {
		return fmt.Errorf("failed to load reimbursement request statuses: %w", err)
	}

	status := Rollup(statuses, requestRollup)
	if _, err := tx.Exec(
		"UPDATE approval_requests SET reimbursement_status = ? WHERE request_id = ? AND is_current = 1",
		status, requestID,
	); err != nil {
		return fmt.Errorf("failed to update approval request reimbursement status: %w", err)
	}
	return nil
}

// appendActivity writes one audit-trail row on the approval request's history.
func (l *Ledger) appendActivity(tx *sql.Tx, requestID string, approverTypeID int64, kerberos, action, note string) error {
	if _, err := tx.Exec(`
		INSERT INTO activities (request_id, approver_type_id, kerberos, action, note)
		VALUES (?, ?, ?, ?, ?)`,
		requestID, approverTypeID, emptyToNil(kerberos), action, note,
	); err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// ListActivity returns the audit trail of one approval request, oldest first.
func (l *Ledger) ListActivity(ctx context.Context, requestID string) ([]models.Activity, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, request_id, approver_type_id, COALESCE(kerberos, ''), action, COALESCE(note, ''), created_at
		FROM activities WHERE request_id = ? ORDER BY created_at, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ApproverTypeID, &a.Kerberos, &a.Action, &a.Note, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func columnStrings(tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
