package domain

import (
	"strings"
	"time"
)

type LoanStatus string

const (
	LoanPending   LoanStatus = "Pending"
	LoanApproved  LoanStatus = "Approved"
	LoanRejected  LoanStatus = "Rejected"
	LoanCancelled LoanStatus = "Cancelled"
)

// LoanStatuses lists every status a room loan can hold.
var LoanStatuses = []LoanStatus{LoanPending, LoanApproved, LoanRejected, LoanCancelled}

// ParseLoanStatus matches s against the known statuses ignoring case.
func ParseLoanStatus(s string) (LoanStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range LoanStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanPending, LoanApproved, LoanRejected, LoanCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a loan in status from may move to status to.
// Pending -> Approved|Rejected|Cancelled, Approved|Rejected -> Cancelled.
// Cancelled is terminal.
func CanTransition(from, to LoanStatus) bool {
	switch from {
	case LoanPending:
		return to == LoanApproved || to == LoanRejected || to == LoanCancelled
	case LoanApproved, LoanRejected:
		return to == LoanCancelled
	default:
		return false
	}
}

type RoomLoan struct {
	ID           int64      `json:"id"`
	BorrowerName string     `json:"borrower_name"`
	RoomName     string     `json:"room_name"`
	Purpose      string     `json:"purpose"`
	Status       LoanStatus `json:"status"`
	Date         time.Time  `json:"date"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ApprovedBy   *string    `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RejectedBy   *string    `json:"rejected_by,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// HasInterval reports whether both start and end times are set.
func (l *RoomLoan) HasInterval() bool {
	return l.StartTime != nil && l.EndTime != nil
}

// SameRoom compares room names the way conflict detection does: exact, case-insensitive.
func SameRoom(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// RoomKey is the normalised room name used for locking and indexing.
func RoomKey(roomName string) string {
	return strings.ToLower(strings.TrimSpace(roomName))
}

// LoanStatistics holds per-status counts over an actor's visible loans.
type LoanStatistics struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Cancelled int64 `json:"cancelled"`
}
