package models

import "time"

// ApprovalRequest is one immutable revision of a travel approval request.
// All revisions of one logical request share RequestID; exactly one of them
// is current.
type ApprovalRequest struct {
	ID                  string          `json:"id"`
	RequestID           string          `json:"requestId"`
	IsCurrent           bool            `json:"isCurrent"`
	Status              string          `json:"status"`
	ReimbursementStatus string          `json:"reimbursementStatus"`
	Kerberos            string          `json:"kerberos"`
	Label               string          `json:"label"`
	Organization        string          `json:"organization"`
	BusinessPurpose     string          `json:"businessPurpose"`
	Location            string          `json:"location"`
	LocationDetails     string          `json:"locationDetails"`
	TravelRequired      bool            `json:"travelRequired"`
	ProgramStartDate    string          `json:"programStartDate"`
	ProgramEndDate      string          `json:"programEndDate"`
	TravelStartDate     string          `json:"travelStartDate"`
	TravelEndDate       string          `json:"travelEndDate"`
	NoExpenditures      bool            `json:"noExpenditures"`
	SubmittedAt         *time.Time      `json:"submittedAt,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	FundingSources      []FundingChoice `json:"fundingSources"`
	Expenditures        []Expenditure   `json:"expenditures"`
}

// FundingChoice is one funding-source selection owned by a revision.
type FundingChoice struct {
	ID              int64   `json:"id"`
	FundingSourceID int64   `json:"fundingSourceId"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description,omitempty"`
}

// Expenditure is one expenditure line owned by a revision.
type Expenditure struct {
	ID                  int64   `json:"id"`
	ExpenditureOptionID int64   `json:"expenditureOptionId"`
	Amount              float64 `json:"amount"`
}

// FundingSource is a master funding-source lookup row.
type FundingSource struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	RequireDescription bool   `json:"requireDescription"`
	Active             bool   `json:"active"`
}

// ReimbursementRequest is a child of one logical approval request. Its status
// is derived from its fund transactions, never set directly.
type ReimbursementRequest struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	Status    string    `json:"status"`
	Kerberos  string    `json:"kerberos"`
	CreatedAt time.Time `json:"createdAt"`
	Expenses  []Expense `json:"expenses"`
	Receipts  []Receipt `json:"receipts"`
}

// Expense is one category-tagged expense line of a reimbursement request.
type Expense struct {
	ID             int64   `json:"id"`
	Category       string  `json:"category"`
	Amount         float64 `json:"amount"`
	FromLocation   string  `json:"fromLocation,omitempty"`
	ToLocation     string  `json:"toLocation,omitempty"`
	EstimatedMiles float64 `json:"estimatedMiles,omitempty"`
	ExpenseDate    string  `json:"expenseDate,omitempty"`
	Description    string  `json:"description,omitempty"`
}

// Receipt is uploaded-file metadata attached to a reimbursement request.
type Receipt struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"fileName"`
	FilePath   string    `json:"filePath"`
	MimeType   string    `json:"mimeType,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// FundTransaction is one ledger line recording reimbursement progress against
// one funding source of one reimbursement request.
type FundTransaction struct {
	ID                     int64     `json:"id"`
	ReimbursementRequestID string    `json:"reimbursementRequestId"`
	FundingSourceID        int64     `json:"fundingSourceId"`
	Amount                 float64   `json:"amount"`
	AccountingCode         string    `json:"accountingCode,omitempty"`
	ReimbursementStatus    string    `json:"reimbursementStatus"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Activity is one audit-trail entry on an approval request's history.
type Activity struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"requestId"`
	ApproverTypeID int64     `json:"approverTypeId"`
	Kerberos       string    `json:"kerberos,omitempty"`
	Action         string    `json:"action"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Allocation is a budget grant for one employee, one funding source, one date
// range. Archived rather than deleted.
type Allocation struct {
	ID              string     `json:"id"`
	Kerberos        string     `json:"kerberos"`
	FundingSourceID int64      `json:"fundingSourceId"`
	StartDate       string     `json:"startDate"`
	EndDate         string     `json:"endDate"`
	Amount          float64    `json:"amount"`
	CreatedBy       string     `json:"createdBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	Archived        bool       `json:"archived"`
	ArchivedBy      string     `json:"archivedBy,omitempty"`
	ArchivedAt      *time.Time `json:"archivedAt,omitempty"`
}

// Page is a paginated result set.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}
