// Package directory is the narrow employee-directory collaborator: given an
// employee identifier, keep a local row fresh. The external directory API and
// its sync job live outside this core.
package directory

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Employee is a directory record keyed by kerberos.
type Employee struct {
	Kerberos   string `json:"kerberos"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department,omitempty"`
}

// Directory upserts employee rows inside caller-owned transactions.
type Directory struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a new directory collaborator.
func New(db *sql.DB, logger *zap.Logger) *Directory {
	return &Directory{db: db, logger: logger}
}

// UpsertInTransaction inserts or refreshes an employee row inside the
// caller's transaction. Callers often know only the kerberos, so an empty
// name or department never overwrites a value already on record.
func (d *Directory) UpsertInTransaction(tx *sql.Tx, emp Employee) error {
	if emp.Kerberos == "" {
		return fmt.Errorf("employee kerberos is required")
	}

	query := `
		INSERT INTO employees (kerberos, first_name, last_name, department)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kerberos) DO UPDATE SET
			first_name = COALESCE(NULLIF(excluded.first_name, ''), employees.first_name),
			last_name = COALESCE(NULLIF(excluded.last_name, ''), employees.last_name),
			department = COALESCE(excluded.department, employees.department),
			updated_at = CURRENT_TIMESTAMP
	`

	var department any
	if emp.Department != "" {
		department = emp.Department
	}

	if _, err := tx.Exec(query, emp.Kerberos, emp.FirstName, emp.LastName, department); err != nil {
		d.logger.Error("Failed to upsert employee", zap.String("kerberos", emp.Kerberos), zap.Error(err))
		return fmt.Errorf("failed to upsert employee: %w", err)
	}

	return nil
}

// Get returns an employee row by kerberos, or nil when absent.
func (d *Directory) Get(kerberos string) (*Employee, error) {
	var emp Employee
	var department sql.NullString

	err := d.db.QueryRow(
		"SELECT kerberos, first_name, last_name, department FROM employees WHERE kerberos = ?",
		kerberos,
	).Scan(&emp.Kerberos, &emp.FirstName, &emp.LastName, &department)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		d.logger.Error("Failed to get employee", zap.String("kerberos", kerberos), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	if department.Valid {
		emp.Department = department.String
	}
	return &emp, nil
}
