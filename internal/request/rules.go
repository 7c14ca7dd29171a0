// Package request implements the revisioned approval-request store and its
// cross-field validation rules.
package request

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/internal/schema"
	"github.com/fso-systems/travelreq/pkg/database"
)

type forceValidationKey struct{}

// withForceValidation marks the validation pass as forced: draft records are
// held to the full non-draft rule set.
func withForceValidation(ctx context.Context) context.Context {
	return context.WithValue(ctx, forceValidationKey{}, true)
}

func forced(ctx context.Context) bool {
	v, _ := ctx.Value(forceValidationKey{}).(bool)
	return v
}

// rules holds the cross-field validators for the approval-request schema.
// Every rule is a no-op while the record is a draft: drafts may be
// arbitrarily incomplete.
type rules struct {
	db     *database.DB
	logger *zap.Logger
}

func newRules(db *database.DB, logger *zap.Logger) *rules {
	return &rules{db: db, logger: logger}
}

// exempt reports whether the record is exempt from full validation.
func (r *rules) exempt(ctx context.Context, rec schema.Record) bool {
	return schema.StringAt(rec, "status") == models.StatusDraft && !forced(ctx)
}

// statusRule rejects unknown approval statuses. Runs for drafts too.
func (r *rules) statusRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		status := schema.StringAt(rec, "status")
		if status != "" && !models.ValidApprovalStatus(status) {
			out.AddError("status", schema.ErrKindInvalid, "status is not a recognized approval status")
		}
		return nil
	}
}

// requiredRule makes a field required once the record is not a draft.
func (r *rules) requiredRule(wire, storageKey string) schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		if r.exempt(ctx, rec) {
			return nil
		}
		if schema.StringAt(rec, storageKey) == "" {
			out.AddError(wire, schema.ErrKindRequired, fmt.Sprintf("%s is required", wire))
		}
		return nil
	}
}

// locationRule requires location and constrains it to the known categories.
func (r *rules) locationRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		if r.exempt(ctx, rec) {
			return nil
		}
		location := schema.StringAt(rec, "location")
		if location == "" {
			out.AddError("location", schema.ErrKindRequired, "location is required")
			return nil
		}
		if !models.ValidLocation(location) {
			out.AddError("location", schema.ErrKindInvalid,
				"location must be one of in-state, out-of-state, foreign, virtual")
		}
		return nil
	}
}

// locationDetailsRule requires details unless the location is virtual.
func (r *rules) locationDetailsRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		if r.exempt(ctx, rec) {
			return nil
		}
		if schema.StringAt(rec, "location") == models.LocationVirtual {
			return nil
		}
		if schema.StringAt(rec, "location_details") == "" {
			out.AddError("locationDetails", schema.ErrKindRequired, "locationDetails is required")
		}
		return nil
	}
}

// datePairRule requires both ends of a date pair and orders them strictly.
// The travel pair is additionally gated on the travelRequired flag. When one
// side already carries an error from the built-in pass, the ordering check is
// skipped so one bad date does not cascade.
func (r *rules) datePairRule(startWire, startKey, endWire, endKey string, travelGated bool) schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		if r.exempt(ctx, rec) {
			return nil
		}
		if travelGated && !schema.BoolAt(rec, "travel_required") {
			return nil
		}

		start := schema.StringAt(rec, startKey)
		end := schema.StringAt(rec, endKey)
		if start == "" {
			out.AddError(startWire, schema.ErrKindRequired, fmt.Sprintf("%s is required", startWire))
		}
		if end == "" {
			out.AddError(endWire, schema.ErrKindRequired, fmt.Sprintf("%s is required", endWire))
		}
		if out.FieldHasError(startWire) || out.FieldHasError(endWire) {
			return nil
		}
		// YYYY-MM-DD strings order lexicographically.
		if start >= end {
			out.AddError(startWire, schema.ErrKindInvalid,
				fmt.Sprintf("%s must be before %s", startWire, endWire))
		}
		return nil
	}
}

// expendituresRule validates the expenditure lines: required non-empty unless
// the record declares no expenditures, every option must exist, every amount
// must be numeric, and the total must exceed zero.
func (r *rules) expendituresRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		if r.exempt(ctx, rec) || schema.BoolAt(rec, "no_expenditures") {
			return nil
		}

		lines := schema.RecordsAt(rec, "expenditures")
		if len(lines) == 0 {
			out.AddError("expenditures", schema.ErrKindRequired, "at least one expenditure is required")
			return nil
		}

		ids := make([]int64, 0, len(lines))
		total := decimal.Zero
		valid := true
		for _, line := range lines {
			id, ok := schema.Int64Of(line["expenditureOptionId"])
			if !ok {
				out.AddError("expenditures", schema.ErrKindInvalid, "expenditureOptionId must be an integer")
				valid = false
				continue
			}
			ids = append(ids, id)

			amount, ok := schema.DecimalOf(line["amount"])
			if !ok {
				out.AddError("expenditures", schema.ErrKindInvalid, "expenditure amount must be numeric")
				valid = false
				continue
			}
			total = total.Add(amount)
		}

		if len(ids) > 0 {
			missing, err := r.missingIDs(ctx, "expenditure_options", ids)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				out.AddErrorMeta("expenditures", schema.ErrKindInvalid,
					"one or more expenditure options do not exist",
					map[string]any{"missing": missing})
				valid = false
			}
		}

		if valid && !total.IsPositive() {
			out.AddError("expenditures", schema.ErrKindInvalid, "expenditure total must exceed zero")
		}
		return nil
	}
}

// fundingSourcesRule validates the funding lines: required non-empty unless
// no expenditures, every source must exist, description is required (and
// capped) where the source demands one, amounts must be numeric, and the
// funding total must exactly equal the expenditure total. Money requested
// must be money funded; partial funding is not allowed.
func (r *rules) fundingSourcesRule() schema.AsyncValidator {
	return func(ctx context.Context, rec schema.Record, out *schema.Result) error {
		if r.exempt(ctx, rec) || schema.BoolAt(rec, "no_expenditures") {
			return nil
		}

		lines := schema.RecordsAt(rec, "funding_sources")
		if len(lines) == 0 {
			out.AddError("fundingSources", schema.ErrKindRequired, "at least one funding source is required")
			return nil
		}

		ids := make([]int64, 0, len(lines))
		total := decimal.Zero
		valid := true
		for _, line := range lines {
			id, ok := schema.Int64Of(line["fundingSourceId"])
			if !ok {
				out.AddError("fundingSources", schema.ErrKindInvalid, "fundingSourceId must be an integer")
				valid = false
				continue
			}
			ids = append(ids, id)

			amount, ok := schema.DecimalOf(line["amount"])
			if !ok {
				out.AddError("fundingSources", schema.ErrKindInvalid, "funding source amount must be numeric")
				valid = false
				continue
			}
			total = total.Add(amount)
		}

		if len(ids) > 0 {
			requireDesc, missing, err := r.fundingSourceFlags(ctx, ids)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				out.AddErrorMeta("fundingSources", schema.ErrKindInvalid,
					"one or more funding sources do not exist",
					map[string]any{"missing": missing})
				valid = false
			}
			for _, line := range lines {
				id, ok := schema.Int64Of(line["fundingSourceId"])
				if !ok || !requireDesc[id] {
					continue
				}
				desc := schema.StringAt(line, "description")
				if desc == "" {
					out.AddError("fundingSources", schema.ErrKindRequired,
						"a description is required for the selected funding source")
				} else if len(desc) > 500 {
					out.AddError("fundingSources", schema.ErrKindLimit,
						"funding source description exceeds 500 characters")
				}
			}
		}

		if !valid {
			return nil
		}

		expTotal, expOK := expenditureTotal(rec)
		if expOK && !total.Equal(expTotal) {
			out.AddErrorMeta("fundingSources", schema.ErrKindInvalid,
				"funding source total must equal expenditure total",
				map[string]any{
					"fundingTotal":     total.String(),
					"expenditureTotal": expTotal.String(),
				})
		}
		return nil
	}
}

// expenditureTotal sums the expenditure amounts; ok is false when any amount
// fails to parse, in which case the equality check stays quiet and leaves the
// reporting to the expenditures rule.
func expenditureTotal(rec schema.Record) (decimal.Decimal, bool) {
	lines := schema.RecordsAt(rec, "expenditures")
	if len(lines) == 0 {
		return decimal.Zero, false
	}
	total := decimal.Zero
	for _, line := range lines {
		amount, ok := schema.DecimalOf(line["amount"])
		if !ok {
			return decimal.Zero, false
		}
		total = total.Add(amount)
	}
	return total, true
}

// missingIDs runs one batched existence lookup and returns the ids absent
// from the table.
func (r *rules) missingIDs(ctx context.Context, table string, ids []int64) ([]int64, error) {
	where, values := database.ToWhereClause(map[string]any{"id": ids})
	query := fmt.Sprintf("SELECT id FROM %s %s", table, where)

	rows, err := r.db.QueryContext(ctx, query, values...)
	if err != nil {
		r.logger.Error("Failed to run existence lookup", zap.String("table", table), zap.Error(err))
		return nil, fmt.Errorf("failed to run existence lookup: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !found[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing, nil
}

// fundingSourceFlags fetches require_description flags for the given ids in
// one lookup, also reporting ids that do not exist.
func (r *rules) fundingSourceFlags(ctx context.Context, ids []int64) (map[int64]bool, []int64, error) {
	where, values := database.ToWhereClause(map[string]any{"id": ids})
	query := fmt.Sprintf("SELECT id, require_description FROM funding_sources %s", where)

	rows, err := r.db.QueryContext(ctx, query, values...)
	if err != nil {
		r.logger.Error("Failed to look up funding sources", zap.Error(err))
		return nil, nil, fmt.Errorf("failed to look up funding sources: %w", err)
	}
	defer rows.Close()

	requireDesc := make(map[int64]bool, len(ids))
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		var require bool
		if err := rows.Scan(&id, &require); err != nil {
			return nil, nil, err
		}
		found[id] = true
		requireDesc[id] = require
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var missing []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !found[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return requireDesc, missing, nil
}
