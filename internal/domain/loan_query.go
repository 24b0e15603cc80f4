package domain

import "time"

// LoanQuery describes a filtered read over room loans. Zero fields do not
// filter.
type LoanQuery struct {
	// BorrowerExact restricts to one borrower; set by access scoping, not by
	// user-supplied filters.
	BorrowerExact    *string
	Status           *LoanStatus
	RoomContains     string
	BorrowerContains string
	StartFrom        *time.Time
	EndUntil         *time.Time
}
