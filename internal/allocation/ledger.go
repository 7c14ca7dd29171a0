// Package allocation implements the employee-allocation ledger: batched
// creation with duplicate-window detection, and archival.
package allocation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/internal/schema"
	"github.com/fso-systems/travelreq/pkg/database"
)

// Ledger creates and archives employee allocations. One logical submission
// yields one row per employee, written in a single transaction.
type Ledger struct {
	db     *database.DB
	dir    *directory.Directory
	schema *schema.Schema
	logger *zap.Logger
}

// NewLedger creates a new allocation ledger.
func NewLedger(db *database.DB, dir *directory.Directory, logger *zap.Logger) *Ledger {
	l := &Ledger{db: db, dir: dir, logger: logger}
	l.schema = schema.New(
		schema.Field{Wire: "employees", Storage: "employees", Required: true, Kind: schema.KindArray,
			Validate: employeesRule},
		schema.Field{Wire: "fundingSourceId", Storage: "funding_source_id", Required: true, Kind: schema.KindInteger,
			ValidateAsync: l.fundingSourceExistsRule()},
		schema.Field{Wire: "startDate", Storage: "start_date", Required: true, Kind: schema.KindDate,
			Validate: dateOrderRule},
		schema.Field{Wire: "endDate", Storage: "end_date", Required: true, Kind: schema.KindDate},
		schema.Field{Wire: "amount", Storage: "amount", Required: true, Kind: schema.KindNumber},
	)
	return l
}

func employeesRule(rec schema.Record, out *schema.Result) {
	for _, emp := range schema.RecordsAt(rec, "employees") {
		if schema.StringAt(emp, "kerberos") == "" {
			out.AddError("employees", schema.ErrKindRequired, "every employee requires a kerberos")
		}
	}
}

func dateOrderRule(rec schema.Record, out *schema.Result) {
	start := schema.StringAt(rec, "start_date")
	end := schema.StringAt(rec, "end_date")
	if start == "" || end == "" {
		return // required checks already reported
	}
	if out.FieldHasError("startDate") || out.FieldHasError("endDate") {
		return
	}
	if start >= end {
		out.AddError("startDate", schema.ErrKindInvalid, "startDate must be before endDate")
	}
}

func (l *Ledger) fundingSourceExistsRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		id, ok := schema.Int64Of(rec["funding_source_id"])
		if !ok {
			return nil
		}
		var exists int
		if err := l.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM funding_sources WHERE id = ?", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to look up funding source: %w", err)
		}
		if exists == 0 {
			out.AddError("fundingSourceId", schema.ErrKindInvalid, "funding source does not exist")
		}
		return nil
	}
}

// Create validates the submission and inserts one allocation row per
// employee. Unless duplicates are explicitly allowed, an existing non-archived
// allocation with the same window, funding source and employee fails the
// whole batch, reporting the offending employees by kerberos.
func (l *Ledger) Create(ctx context.Context, data schema.Record, submitter string, allowDuplicates bool) ([]models.Allocation, error) {
	storage := l.schema.ToStorage(data)

	result, err := l.schema.Validate(ctx, storage, nil, schema.StorageKeys)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, schema.NewValidationError(l.schema, result)
	}

	employees := schema.RecordsAt(storage, "employees")
	fundingSourceID, _ := schema.Int64Of(storage["funding_source_id"])
	startDate := schema.StringAt(storage, "start_date")
	endDate := schema.StringAt(storage, "end_date")
	amount, _ := schema.DecimalOf(storage["amount"])

	kerberosList := make([]string, 0, len(employees))
	for _, emp := range employees {
		kerberosList = append(kerberosList, schema.StringAt(emp, "kerberos"))
	}

	if !allowDuplicates {
		duplicates, err := l.findDuplicates(ctx, fundingSourceID, startDate, endDate, kerberosList)
		if err != nil {
			return nil, err
		}
		if len(duplicates) > 0 {
			result.AddErrorMeta("employees", schema.ErrKindInvalid,
				"an allocation already exists for this window",
				map[string]any{"employees": duplicates})
			return nil, schema.NewValidationError(l.schema, result)
		}
	}

	ids := make([]string, 0, len(employees))
	err = l.db.WithTransaction(func(tx *sql.Tx) error {
		for _, emp := range employees {
			record := directory.Employee{
				Kerberos:  schema.StringAt(emp, "kerberos"),
				FirstName: schema.StringAt(emp, "firstName"),
				LastName:  schema.StringAt(emp, "lastName"),
			}
			if err := l.dir.UpsertInTransaction(tx, record); err != nil {
				return err
			}

			id := uuid.NewString()
			if _, err := tx.Exec(`
				INSERT INTO allocations
					(id, kerberos, funding_source_id, start_date, end_date, amount, created_by)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, record.Kerberos, fundingSourceID, startDate, endDate,
				amount.InexactFloat64(), emptyToNil(submitter),
			); err != nil {
				return fmt.Errorf("failed to insert allocation: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to create allocations",
			zap.Int64("funding_source_id", fundingSourceID), zap.Error(err))
		return nil, err
	}

	l.logger.Info("Created allocations",
		zap.Int("count", len(ids)),
		zap.Int64("funding_source_id", fundingSourceID),
		zap.String("start_date", startDate),
		zap.String("end_date", endDate))
	return l.getByIDs(ctx, ids)
}

// findDuplicates returns the kerberos of employees who already hold a
// non-archived allocation for the exact same window and funding source.
func (l *Ledger) findDuplicates(ctx context.Context, fundingSourceID int64, startDate, endDate string, kerberosList []string) ([]string, error) {
	if len(kerberosList) == 0 {
		return nil, nil
	}
	where, values := database.ToWhereClause(map[string]any{
		"archived":          0,
		"funding_source_id": fundingSourceID,
		"start_date":        startDate,
		"end_date":          endDate,
		"kerberos":          kerberosList,
	})

	rows, err := l.db.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT kerberos FROM allocations %s", where), values...)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate allocations: %w", err)
	}
	defer rows.Close()

	var duplicates []string
	for rows.Next() {
		var kerberos string
		if err := rows.Scan(&kerberos); err != nil {
			return nil, err
		}
		duplicates = append(duplicates, kerberos)
	}
	return duplicates, rows.Err()
}

// Archive soft-deletes a batch of allocations, stamping who and when, in one
// transaction.
func (l *Ledger) Archive(ctx context.Context, ids []string, archivedBy string) error {
	if len(ids) == 0 {
		return nil
	}
	where, values := database.ToWhereClause(map[string]any{"id": ids})
	err := l.db.WithTransaction(func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
			UPDATE allocations
			SET archived = 1, archived_by = ?, archived_at = CURRENT_TIMESTAMP
			%s`, where)
		if _, err := tx.Exec(query, append([]any{archivedBy}, values...)...); err != nil {
			return fmt.Errorf("failed to archive allocations: %w", err)
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to archive allocations", zap.Int("count", len(ids)), zap.Error(err))
		return err
	}

	l.logger.Info("Archived allocations", zap.Int("count", len(ids)), zap.String("archived_by", archivedBy))
	return nil
}

// getByIDs returns allocations by id, ordered by kerberos.
func (l *Ledger) getByIDs(ctx context.Context, ids []string) ([]models.Allocation, error) {
	if len(ids) == 0 {
		return []models.Allocation{}, nil
	}
	where, values := database.ToWhereClause(map[string]any{"id": ids})
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, kerberos, funding_source_id, start_date, end_date, amount,
			COALESCE(created_by, ''), created_at, archived, COALESCE(archived_by, ''), archived_at
		FROM allocations %s ORDER BY kerberos`, where), values...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	allocations := []models.Allocation{}
	for rows.Next() {
		var a models.Allocation
		var archivedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.Kerberos, &a.FundingSourceID, &a.StartDate, &a.EndDate,
			&a.Amount, &a.CreatedBy, &a.CreatedAt, &a.Archived, &a.ArchivedBy, &archivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		if archivedAt.Valid {
			t := archivedAt.Time
			a.ArchivedAt = &t
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
