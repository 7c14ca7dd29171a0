package models

// Approval status of one request revision. Canceled and denied are terminal.
const (
	StatusDraft             = "draft"
	StatusSubmitted         = "submitted"
	StatusInProgress        = "in-progress"
	StatusApproved          = "approved"
	StatusCanceled          = "canceled"
	StatusDenied            = "denied"
	StatusRevisionRequested = "revision-requested"
)

// Reimbursement rollup status carried on the approval request. The submitted
// value also appears here: it is what the request-level rollup yields when
// every reimbursement request is still untouched.
const (
	ReimbNotRequired         = "not-required"
	ReimbNotSubmitted        = "not-submitted"
	ReimbSubmitted           = "submitted"
	ReimbPending             = "reimbursement-pending"
	ReimbPartiallyReimbursed = "partially-reimbursed"
	ReimbFullyReimbursed     = "fully-reimbursed"
)

// Fund transaction status. Set by administrators per ledger line.
const (
	FundSubmitted           = "submitted"
	FundPending             = "reimbursement-pending"
	FundPartiallyReimbursed = "partially-reimbursed"
	FundFullyReimbursed     = "fully-reimbursed"
	FundCancelled           = "cancelled"
)

var validApprovalStatuses = map[string]bool{
	StatusDraft:             true,
	StatusSubmitted:         true,
	StatusInProgress:        true,
	StatusApproved:          true,
	StatusCanceled:          true,
	StatusDenied:            true,
	StatusRevisionRequested: true,
}

var validFundStatuses = map[string]bool{
	FundSubmitted:           true,
	FundPending:             true,
	FundPartiallyReimbursed: true,
	FundFullyReimbursed:     true,
	FundCancelled:           true,
}

// ValidApprovalStatus reports whether s is a known approval status.
func ValidApprovalStatus(s string) bool { return validApprovalStatuses[s] }

// ValidFundStatus reports whether s is a known fund transaction status.
func ValidFundStatus(s string) bool { return validFundStatuses[s] }

// Valid travel locations for a non-draft request.
const (
	LocationInState    = "in-state"
	LocationOutOfState = "out-of-state"
	LocationForeign    = "foreign"
	LocationVirtual    = "virtual"
)

var validLocations = map[string]bool{
	LocationInState:    true,
	LocationOutOfState: true,
	LocationForeign:    true,
	LocationVirtual:    true,
}

// ValidLocation reports whether s is a known location category.
func ValidLocation(s string) bool { return validLocations[s] }

// Expense categories for reimbursement request expenses.
const (
	ExpenseTransportation = "transportation"
	ExpensePrivateCar     = "private-car"
	ExpenseDailyExpense   = "daily-expense"
	ExpenseLodging        = "lodging"
	ExpenseRegistration   = "registration"
	ExpenseOther          = "other"
)

var validExpenseCategories = map[string]bool{
	ExpenseTransportation: true,
	ExpensePrivateCar:     true,
	ExpenseDailyExpense:   true,
	ExpenseLodging:        true,
	ExpenseRegistration:   true,
	ExpenseOther:          true,
}

// ValidExpenseCategory reports whether s is a known expense category.
func ValidExpenseCategory(s string) bool { return validExpenseCategories[s] }
