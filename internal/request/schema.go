package request

import "github.com/fso-systems/travelreq/internal/schema"

// buildSchema declares the approval-request field set once; the same
// declaration drives wire/storage mapping and validation.
func buildSchema(r *rules) *schema.Schema {
	return schema.New(
		schema.Field{Wire: "id", Storage: "id"},
		schema.Field{Wire: "requestId", Storage: "request_id"},
		schema.Field{Wire: "isCurrent", Storage: "is_current", Kind: schema.KindBoolean},
		schema.Field{Wire: "status", Storage: "status", Required: true, ValidateAsync: r.statusRule()},
		schema.Field{Wire: "reimbursementStatus", Storage: "reimbursement_status"},
		schema.Field{Wire: "kerberos", Storage: "kerberos", Required: true, CharLimit: 50},
		schema.Field{Wire: "label", Storage: "label", CharLimit: 255, Editable: true,
			ValidateAsync: r.requiredRule("label", "label")},
		schema.Field{Wire: "organization", Storage: "organization", CharLimit: 255, Editable: true,
			ValidateAsync: r.requiredRule("organization", "organization")},
		schema.Field{Wire: "businessPurpose", Storage: "business_purpose", CharLimit: 2000, Editable: true,
			ValidateAsync: r.requiredRule("businessPurpose", "business_purpose")},
		schema.Field{Wire: "location", Storage: "location", Editable: true,
			ValidateAsync: r.locationRule()},
		schema.Field{Wire: "locationDetails", Storage: "location_details", CharLimit: 500, Editable: true,
			ValidateAsync: r.locationDetailsRule()},
		schema.Field{Wire: "travelRequired", Storage: "travel_required", Kind: schema.KindBoolean, Editable: true},
		schema.Field{Wire: "programStartDate", Storage: "program_start_date", Kind: schema.KindDate, Editable: true,
			ValidateAsync: r.datePairRule("programStartDate", "program_start_date", "programEndDate", "program_end_date", false)},
		schema.Field{Wire: "programEndDate", Storage: "program_end_date", Kind: schema.KindDate, Editable: true},
		schema.Field{Wire: "travelStartDate", Storage: "travel_start_date", Kind: schema.KindDate, Editable: true,
			ValidateAsync: r.datePairRule("travelStartDate", "travel_start_date", "travelEndDate", "travel_end_date", true)},
		schema.Field{Wire: "travelEndDate", Storage: "travel_end_date", Kind: schema.KindDate, Editable: true},
		schema.Field{Wire: "noExpenditures", Storage: "no_expenditures", Kind: schema.KindBoolean, Editable: true},
		schema.Field{Wire: "fundingSources", Storage: "funding_sources", Kind: schema.KindArray, Editable: true,
			ValidateAsync: r.fundingSourcesRule()},
		schema.Field{Wire: "expenditures", Storage: "expenditures", Kind: schema.KindArray, Editable: true,
			ValidateAsync: r.expendituresRule()},
		schema.Field{Wire: "submittedAt", Storage: "submitted_at"},
	)
}
