// Package export writes reimbursement statements as xlsx workbooks.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/pkg/database"
)

const sheetName = "Statement"

// Writer renders one approval request's reimbursement history to a workbook.
type Writer struct {
	db     *database.DB
	logger *zap.Logger
}

// NewWriter creates a new statement writer.
func NewWriter(db *database.DB, logger *zap.Logger) *Writer {
	return &Writer{db: db, logger: logger}
}

// WriteStatement renders the statement for one logical approval request to w:
// a header block from the current revision, then one row per fund transaction
// grouped under its reimbursement request.
func (wr *Writer) WriteStatement(ctx context.Context, requestID string, w io.Writer) error {
	var label, kerberos, status, reimbursementStatus string
	err := wr.db.QueryRowContext(ctx, `
		SELECT COALESCE(label, ''), kerberos, status, reimbursement_status
		FROM approval_requests WHERE request_id = ? AND is_current = 1`,
		requestID,
	).Scan(&label, &kerberos, &status, &reimbursementStatus)
	if err != nil {
		return models.ErrNotFound
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to set sheet name: %w", err)
	}

	f.SetCellValue(sheetName, "A1", "Travel Approval Statement")
	f.SetCellValue(sheetName, "A2", "Request")
	f.SetCellValue(sheetName, "B2", label)
	f.SetCellValue(sheetName, "A3", "Submitted by")
	f.SetCellValue(sheetName, "B3", kerberos)
	f.SetCellValue(sheetName, "A4", "Approval status")
	f.SetCellValue(sheetName, "B4", status)
	f.SetCellValue(sheetName, "A5", "Reimbursement status")
	f.SetCellValue(sheetName, "B5", reimbursementStatus)

	headers := []string{"Reimbursement Request", "Funding Source", "Amount", "Accounting Code", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 7)
		f.SetCellValue(sheetName, cell, h)
	}

	rows, err := wr.db.QueryContext(ctx, `
		SELECT rr.id, fs.name, rrf.amount, COALESCE(rrf.accounting_code, ''), rrf.reimbursement_status
		FROM reimbursement_requests rr
		JOIN reimbursement_request_funds rrf ON rrf.reimbursement_request_id = rr.id
		JOIN funding_sources fs ON fs.id = rrf.funding_source_id
		WHERE rr.request_id = ?
		ORDER BY rr.created_at, rrf.id`, requestID)
	if err != nil {
		return fmt.Errorf("failed to query fund transactions: %w", err)
	}
	defer rows.Close()

	rowNum := 8
	total := 0.0
	for rows.Next() {
		var reimbursementID, sourceName, accountingCode, fundStatus string
		var amount float64
		if err := rows.Scan(&reimbursementID, &sourceName, &amount, &accountingCode, &fundStatus); err != nil {
			return fmt.Errorf("failed to scan fund transaction: %w", err)
		}
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNum), reimbursementID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum), sourceName)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum), amount)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNum), accountingCode)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), fundStatus)
		total += amount
		rowNum++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNum+1), "Total")
	f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNum+1), total)

	if err := f.Write(w); err != nil {
		wr.logger.Error("Failed to write statement", zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to write statement: %w", err)
	}
	return nil
}
