package reimbursement

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/internal/schema"
)

// buildRequestSchema declares the reimbursement-request field set.
func (l *Ledger) buildRequestSchema() *schema.Schema {
	return schema.New(
		schema.Field{Wire: "id", Storage: "id"},
		schema.Field{Wire: "requestId", Storage: "request_id", Required: true,
			ValidateAsync: l.approvedParentRule()},
		schema.Field{Wire: "status", Storage: "status"},
		schema.Field{Wire: "kerberos", Storage: "kerberos", Required: true, CharLimit: 50},
		schema.Field{Wire: "expenses", Storage: "expenses", Kind: schema.KindArray, Required: true,
			Validate: expensesRule},
		schema.Field{Wire: "receipts", Storage: "receipts", Kind: schema.KindArray,
			Validate: receiptsRule},
	)
}

// buildFundSchema declares the fund-transaction field set.
func (l *Ledger) buildFundSchema() *schema.Schema {
	return schema.New(
		schema.Field{Wire: "id", Storage: "id"},
		schema.Field{Wire: "reimbursementRequestId", Storage: "reimbursement_request_id", Required: true,
			ValidateAsync: l.reimbursementExistsRule()},
		schema.Field{Wire: "fundingSourceId", Storage: "funding_source_id", Required: true, Kind: schema.KindInteger,
			ValidateAsync: l.fundingSourceRule()},
		schema.Field{Wire: "amount", Storage: "amount", Required: true, Kind: schema.KindNumber, Editable: true,
			Validate: nonNegativeAmountRule},
		schema.Field{Wire: "accountingCode", Storage: "accounting_code", CharLimit: 50, Editable: true},
		schema.Field{Wire: "reimbursementStatus", Storage: "reimbursement_status", Required: true, Editable: true,
			Validate: fundStatusRule},
	)
}

// approvedParentRule confirms the parent approval request exists, is current
// and is approved.
func (l *Ledger) approvedParentRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		requestID := schema.StringAt(rec, "request_id")
		if requestID == "" {
			return nil // required check already reported
		}
		var status string
		err := l.db.QueryRowContext(ctx,
			"SELECT status FROM approval_requests WHERE request_id = ? AND is_current = 1",
			requestID,
		).Scan(&status)
		if err == sql.ErrNoRows {
			out.AddError("requestId", schema.ErrKindInvalid, "approval request does not exist")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up approval request: %w", err)
		}
		if status != models.StatusApproved {
			out.AddError("requestId", schema.ErrKindInvalid,
				"reimbursement may only be requested against an approved request")
		}
		return nil
	}
}

// reimbursementExistsRule confirms the referenced reimbursement request exists.
func (l *Ledger) reimbursementExistsRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		id := schema.StringAt(rec, "reimbursement_request_id")
		if id == "" {
			return nil
		}
		var exists int
		err := l.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM reimbursement_requests WHERE id = ?", id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up reimbursement request: %w", err)
		}
		if exists == 0 {
			out.AddError("reimbursementRequestId", schema.ErrKindInvalid,
				"reimbursement request does not exist")
		}
		return nil
	}
}

// fundingSourceRule confirms the funding source is one of the parent approval
// request's current funding selections.
func (l *Ledger) fundingSourceRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		fundingSourceID, ok := schema.Int64Of(rec["funding_source_id"])
		if !ok {
			return nil // type check already reported
		}
		reimbursementID := schema.StringAt(rec, "reimbursement_request_id")
		if reimbursementID == "" {
			return nil
		}
		var exists int
		err := l.db.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM reimbursement_requests rr
			JOIN approval_requests ar ON ar.request_id = rr.request_id AND ar.is_current = 1
			JOIN approval_request_funding_sources afs ON afs.approval_request_id = ar.id
			WHERE rr.id = ? AND afs.funding_source_id = ?`,
			reimbursementID, fundingSourceID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up funding source: %w", err)
		}
		if exists == 0 {
			out.AddError("fundingSourceId", schema.ErrKindInvalid,
				"funding source is not part of the approval request")
		}
		return nil
	}
}

func nonNegativeAmountRule(rec schema.Record, out *schema.Result) {
	amount, ok := schema.DecimalOf(rec["amount"])
	if !ok {
		return // type check already reported
	}
	if amount.IsNegative() {
		out.AddError("amount", schema.ErrKindInvalid, "amount must not be negative")
	}
}

func fundStatusRule(rec schema.Record, out *schema.Result) {
	status := schema.StringAt(rec, "reimbursement_status")
	if status != "" && !models.ValidFundStatus(status) {
		out.AddError("reimbursementStatus", schema.ErrKindInvalid,
			"reimbursementStatus is not a recognized fund status")
	}
}

// expensesRule validates the category-specific required details of every
// expense line: transportation needs from/to, private-car instead needs
// estimated miles, daily expenses need a date, and every amount is numeric.
func expensesRule(rec schema.Record, out *schema.Result) {
	lines := schema.RecordsAt(rec, "expenses")
	for _, line := range lines {
		category := schema.StringAt(line, "category")
		if !models.ValidExpenseCategory(category) {
			out.AddError("expenses", schema.ErrKindInvalid,
				fmt.Sprintf("unknown expense category %q", category))
			continue
		}
		if _, ok := schema.DecimalOf(line["amount"]); !ok {
			out.AddError("expenses", schema.ErrKindInvalid, "expense amount must be numeric")
		}
		switch category {
		case models.ExpenseTransportation:
			if schema.StringAt(line, "fromLocation") == "" || schema.StringAt(line, "toLocation") == "" {
				out.AddError("expenses", schema.ErrKindRequired,
					"transportation expenses require from and to locations")
			}
		case models.ExpensePrivateCar:
			if _, ok := schema.DecimalOf(line["estimatedMiles"]); !ok {
				out.AddError("expenses", schema.ErrKindRequired,
					"private car expenses require estimated miles")
			}
		case models.ExpenseDailyExpense:
			if !schema.IsDateString(line["expenseDate"]) {
				out.AddError("expenses", schema.ErrKindRequired,
					"daily expenses require an expense date")
			}
		}
	}
}

// receiptsRule validates uploaded-file metadata entries.
func receiptsRule(rec schema.Record, out *schema.Result) {
	for _, line := range schema.RecordsAt(rec, "receipts") {
		if schema.StringAt(line, "fileName") == "" || schema.StringAt(line, "filePath") == "" {
			out.AddError("receipts", schema.ErrKindRequired,
				"receipts require a file name and path")
		}
	}
}

// sumExpenses totals the expense amounts for logging.
func sumExpenses(lines []schema.Record) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if amount, ok := schema.DecimalOf(line["amount"]); ok {
			total = total.Add(amount)
		}
	}
	return total
}
