package request

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/config"
	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/internal/schema"
	"github.com/fso-systems/travelreq/internal/workflow"
	"github.com/fso-systems/travelreq/pkg/database"
)

// Store manages approval-request revisions. Every edit produces a new
// immutable revision; exactly one revision per logical request is current,
// and the current-flip plus the new insert are atomic.
type Store struct {
	db     *database.DB
	dir    *directory.Directory
	cfg    config.WorkflowConfig
	schema *schema.Schema
	logger *zap.Logger
}

// NewStore creates a new approval-request store.
func NewStore(db *database.DB, dir *directory.Directory, cfg config.WorkflowConfig, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		dir:    dir,
		cfg:    cfg,
		schema: buildSchema(newRules(db, logger)),
		logger: logger,
	}
}

// Schema exposes the approval-request field definitions.
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// Filter narrows a Get call. A zero filter returns everything, paginated.
type Filter struct {
	IDs        []string
	RequestIDs []string
	IsCurrent  *bool
	Kerberos   string
	Page       int
	PageSize   int // -1 disables pagination
}

// AllPages is the sentinel page size disabling pagination.
const AllPages = -1

const defaultPageSize = 20

// Get returns matching revisions with their funding-source and expenditure
// children hydrated and date fields normalized to YYYY-MM-DD.
func (s *Store) Get(ctx context.Context, filter Filter) (*models.Page[models.ApprovalRequest], error) {
	conditions := make(map[string]any)
	if len(filter.IDs) > 0 {
		conditions["id"] = filter.IDs
	}
	if len(filter.RequestIDs) > 0 {
		conditions["request_id"] = filter.RequestIDs
	}
	if filter.IsCurrent != nil {
		current := 0
		if *filter.IsCurrent {
			current = 1
		}
		conditions["is_current"] = current
	}
	if filter.Kerberos != "" {
		conditions["kerberos"] = filter.Kerberos
	}

	where, values := database.ToWhereClause(conditions)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM approval_requests %s", where)
	if err := s.db.QueryRowContext(ctx, countQuery, values...).Scan(&total); err != nil {
		s.logger.Error("Failed to count approval requests", zap.Error(err))
		return nil, fmt.Errorf("failed to count approval requests: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	query := fmt.Sprintf(`
		SELECT id, request_id, is_current, status, reimbursement_status, kerberos,
			label, organization, business_purpose, location, location_details,
			travel_required, program_start_date, program_end_date,
			travel_start_date, travel_end_date, no_expenditures,
			submitted_at, created_at
		FROM approval_requests %s
		ORDER BY created_at DESC, id`, where)
	args := values
	if pageSize != AllPages {
		query += " LIMIT ? OFFSET ?"
		args = append(append([]any{}, values...), pageSize, (page-1)*pageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to query approval requests", zap.Error(err))
		return nil, fmt.Errorf("failed to query approval requests: %w", err)
	}
	defer rows.Close()

	requests := []models.ApprovalRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read approval requests: %w", err)
	}

	if err := s.hydrateChildren(ctx, requests); err != nil {
		return nil, err
	}

	totalPages := 1
	if pageSize != AllPages && pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &models.Page[models.ApprovalRequest]{
		Data:       requests,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func scanRequest(rows *sql.Rows) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	var label, organization, purpose, location, details sql.NullString
	var programStart, programEnd, travelStart, travelEnd sql.NullString
	var submittedAt sql.NullTime

	err := rows.Scan(
		&req.ID, &req.RequestID, &req.IsCurrent, &req.Status, &req.ReimbursementStatus,
		&req.Kerberos, &label, &organization, &purpose, &location, &details,
		&req.TravelRequired, &programStart, &programEnd, &travelStart, &travelEnd,
		&req.NoExpenditures, &submittedAt, &req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Label = label.String
	req.Organization = organization.String
	req.BusinessPurpose = purpose.String
	req.Location = location.String
	req.LocationDetails = details.String
	req.ProgramStartDate = normalizeDate(programStart.String)
	req.ProgramEndDate = normalizeDate(programEnd.String)
	req.TravelStartDate = normalizeDate(travelStart.String)
	req.TravelEndDate = normalizeDate(travelEnd.String)
	if submittedAt.Valid {
		t := submittedAt.Time
		req.SubmittedAt = &t
	}
	req.FundingSources = []models.FundingChoice{}
	req.Expenditures = []models.Expenditure{}
	return &req, nil
}

// normalizeDate trims any time component so stored dates leave as YYYY-MM-DD.
func normalizeDate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

func (s *Store) hydrateChildren(ctx context.Context, requests []models.ApprovalRequest) error {
	if len(requests) == 0 {
		return nil
	}
	byID := make(map[string]*models.ApprovalRequest, len(requests))
	ids := make([]string, len(requests))
	for i := range requests {
		byID[requests[i].ID] = &requests[i]
		ids[i] = requests[i].ID
	}

	where, values := database.ToWhereClause(map[string]any{"approval_request_id": ids})

	query := fmt.Sprintf(`
		SELECT id, approval_request_id, funding_source_id, amount, COALESCE(description, '')
		FROM approval_request_funding_sources %s ORDER BY id`, where)
	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to query funding sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var choice models.FundingChoice
		var revisionID string
		if err := rows.Scan(&choice.ID, &revisionID, &choice.FundingSourceID, &choice.Amount, &choice.Description); err != nil {
			return fmt.Errorf("failed to scan funding source: %w", err)
		}
		if req := byID[revisionID]; req != nil {
			req.FundingSources = append(req.FundingSources, choice)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	query = fmt.Sprintf(`
		SELECT id, approval_request_id, expenditure_option_id, amount
		FROM approval_request_expenditures %s ORDER BY id`, where)
	expRows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to query expenditures: %w", err)
	}
	defer expRows.Close()
	for expRows.Next() {
		var exp models.Expenditure
		var revisionID string
		if err := expRows.Scan(&exp.ID, &revisionID, &exp.ExpenditureOptionID, &exp.Amount); err != nil {
			return fmt.Errorf("failed to scan expenditure: %w", err)
		}
		if req := byID[revisionID]; req != nil {
			req.Expenditures = append(req.Expenditures, exp)
		}
	}
	return expRows.Err()
}

// CreateRevision validates data and writes a new current revision: the
// previously current revision is flipped to not-current and the new row plus
// its children are inserted in the same transaction. The freshly persisted
// revision is re-fetched and returned so the caller sees storage defaults.
func (s *Store) CreateRevision(ctx context.Context, data schema.Record, submitter *directory.Employee, forceValidation bool) (*models.ApprovalRequest, error) {
	// The submitting employee overrides any caller-supplied employee id;
	// a nil submitter is an explicit impersonation path.
	if submitter != nil {
		data["kerberos"] = submitter.Kerberos
	}

	storage := s.schema.ToStorage(data)
	// System-assigned fields never come from the caller.
	delete(storage, "id")
	delete(storage, "is_current")
	delete(storage, "submitted_at")
	delete(storage, "reimbursement_status")

	if forceValidation {
		ctx = withForceValidation(ctx)
	}
	result, err := s.schema.Validate(ctx, storage, []string{"requestId"}, schema.StorageKeys)
	if err != nil {
		return nil, err
	}

	status := schema.StringAt(storage, "status")
	requestID := schema.StringAt(storage, "request_id")
	previous, err := s.currentRevision(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		if !workflow.InitialAllowed(status) && models.ValidApprovalStatus(status) {
			result.AddError("status", schema.ErrKindInvalid,
				fmt.Sprintf("a new request cannot start in status %s", status))
		}
	} else if models.ValidApprovalStatus(status) && !workflow.CanTransition(previous.Status, status) {
		result.AddError("status", schema.ErrKindInvalid,
			fmt.Sprintf("cannot move from %s to %s", previous.Status, status))
	}

	if !result.Valid() {
		return nil, schema.NewValidationError(s.schema, result)
	}

	// A request with no expenditures still needs an approval chain, which is
	// derived from funding selection: force the sentinel no-funding entry and
	// drop the expenditure lines.
	noExpenditures := schema.BoolAt(storage, "no_expenditures")
	if noExpenditures {
		storage["funding_sources"] = []schema.Record{{
			"fundingSourceId": s.cfg.NoFundingSourceID,
			"amount":          0,
		}}
		delete(storage, "expenditures")
	}

	newID := uuid.NewString()
	if requestID == "" {
		requestID = uuid.NewString()
	}

	employee := directory.Employee{Kerberos: schema.StringAt(storage, "kerberos")}
	if submitter != nil {
		employee = *submitter
	}

	// The denormalized reimbursement rollup survives a revision; only a brand
	// new request starts at not-submitted (or not-required when no money is
	// requested).
	reimbursementStatus := models.ReimbNotSubmitted
	if noExpenditures {
		reimbursementStatus = models.ReimbNotRequired
	}
	if previous != nil && previous.ReimbursementStatus != "" {
		reimbursementStatus = previous.ReimbursementStatus
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.dir.UpsertInTransaction(tx, employee); err != nil {
			return err
		}

		if previous != nil {
			if _, err := tx.Exec(
				"UPDATE approval_requests SET is_current = 0 WHERE request_id = ? AND is_current = 1",
				requestID,
			); err != nil {
				return fmt.Errorf("failed to flip current revision: %w", err)
			}
		}

		row := map[string]any{
			"id":                   newID,
			"request_id":           requestID,
			"is_current":           1,
			"status":               status,
			"reimbursement_status": reimbursementStatus,
			"kerberos":             employee.Kerberos,
			"label":                nullable(schema.StringAt(storage, "label")),
			"organization":         nullable(schema.StringAt(storage, "organization")),
			"business_purpose":     nullable(schema.StringAt(storage, "business_purpose")),
			"location":             nullable(schema.StringAt(storage, "location")),
			"location_details":     nullable(schema.StringAt(storage, "location_details")),
			"travel_required":      schema.BoolAt(storage, "travel_required"),
			"program_start_date":   nullable(schema.StringAt(storage, "program_start_date")),
			"program_end_date":     nullable(schema.StringAt(storage, "program_end_date")),
			"travel_start_date":    nullable(schema.StringAt(storage, "travel_start_date")),
			"travel_end_date":      nullable(schema.StringAt(storage, "travel_end_date")),
			"no_expenditures":      noExpenditures,
		}
		if status != models.StatusDraft {
			row["submitted_at"] = time.Now().UTC()
		}

		columns, placeholders, insertValues := database.PrepareInsert(row)
		insertQuery := fmt.Sprintf("INSERT INTO approval_requests (%s) VALUES (%s)", columns, placeholders)
		if _, err := tx.Exec(insertQuery, insertValues...); err != nil {
			return fmt.Errorf("failed to insert revision: %w", err)
		}

		for _, line := range schema.RecordsAt(storage, "funding_sources") {
			fundingSourceID, _ := schema.Int64Of(line["fundingSourceId"])
			amount, _ := schema.DecimalOf(line["amount"])
			if _, err := tx.Exec(`
				INSERT INTO approval_request_funding_sources
					(approval_request_id, funding_source_id, amount, description)
				VALUES (?, ?, ?, ?)`,
				newID, fundingSourceID, amount.InexactFloat64(),
				nullable(schema.StringAt(line, "description")),
			); err != nil {
				return fmt.Errorf("failed to insert funding source: %w", err)
			}
		}

		if !noExpenditures {
			for _, line := range schema.RecordsAt(storage, "expenditures") {
				optionID, _ := schema.Int64Of(line["expenditureOptionId"])
				amount, _ := schema.DecimalOf(line["amount"])
				if _, err := tx.Exec(`
					INSERT INTO approval_request_expenditures
						(approval_request_id, expenditure_option_id, amount)
					VALUES (?, ?, ?)`,
					newID, optionID, amount.InexactFloat64(),
				); err != nil {
					return fmt.Errorf("failed to insert expenditure: %w", err)
				}
			}
		}

		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create revision",
			zap.String("request_id", requestID), zap.Error(err))
		return nil, err
	}

	created, err := s.Get(ctx, Filter{IDs: []string{newID}, PageSize: AllPages})
	if err != nil {
		return nil, err
	}
	if len(created.Data) == 0 {
		return nil, fmt.Errorf("failed to re-fetch created revision %s", newID)
	}

	s.logger.Info("Created approval request revision",
		zap.String("revision_id", newID),
		zap.String("request_id", requestID),
		zap.String("status", status))
	return &created.Data[0], nil
}

type revisionHead struct {
	ID                  string
	Status              string
	Kerberos            string
	ReimbursementStatus string
}

// currentRevision returns the current revision's head fields, or nil when the
// logical request does not exist yet.
func (s *Store) currentRevision(ctx context.Context, requestID string) (*revisionHead, error) {
	if requestID == "" {
		return nil, nil
	}
	var head revisionHead
	err := s.db.QueryRowContext(ctx,
		"SELECT id, status, kerberos, reimbursement_status FROM approval_requests WHERE request_id = ? AND is_current = 1",
		requestID,
	).Scan(&head.ID, &head.Status, &head.Kerberos, &head.ReimbursementStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current revision: %w", err)
	}
	return &head, nil
}

// DeleteDraft removes a logical request and every revision of it, but only
// while all of its revisions are still drafts. When an authorizing employee
// is supplied, the current revision must belong to them.
func (s *Store) DeleteDraft(ctx context.Context, requestID, authorizingKerberos string) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, status, kerberos, is_current FROM approval_requests WHERE request_id = ?",
		requestID,
	)
	if err != nil {
		return fmt.Errorf("failed to load revisions: %w", err)
	}
	defer rows.Close()

	var revisionIDs []string
	nonDraft := false
	currentOwner := ""
	for rows.Next() {
		var id, status, kerberos string
		var isCurrent bool
		if err := rows.Scan(&id, &status, &kerberos, &isCurrent); err != nil {
			return fmt.Errorf("failed to scan revision: %w", err)
		}
		revisionIDs = append(revisionIDs, id)
		if status != models.StatusDraft {
			nonDraft = true
		}
		if isCurrent {
			currentOwner = kerberos
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(revisionIDs) == 0 {
		return models.ErrNotFound
	}
	if authorizingKerberos != "" && currentOwner != authorizingKerberos {
		return models.ErrForbidden
	}
	if nonDraft {
		return models.ErrNotDraft
	}

	where, values := database.ToWhereClause(map[string]any{"approval_request_id": revisionIDs})
	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			fmt.Sprintf("DELETE FROM approval_request_funding_sources %s", where), values...,
		); err != nil {
			return fmt.Errorf("failed to delete funding sources: %w", err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf("DELETE FROM approval_request_expenditures %s", where), values...,
		); err != nil {
			return fmt.Errorf("failed to delete expenditures: %w", err)
		}
		if _, err := tx.Exec(
			"DELETE FROM approval_requests WHERE request_id = ?", requestID,
		); err != nil {
			return fmt.Errorf("failed to delete revisions: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete draft request", zap.String("request_id", requestID), zap.Error(err))
		return err
	}

	s.logger.Info("Deleted draft request",
		zap.String("request_id", requestID),
		zap.Int("revisions", len(revisionIDs)))
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
