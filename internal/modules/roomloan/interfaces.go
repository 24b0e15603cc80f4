package roomloan

import (
	"context"
	"time"

	"roombooking/internal/domain"
)

// Repository persists room loans. Calls made with the context handed to the
// Transaction callback run inside that transaction.
type Repository interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, l *domain.RoomLoan) error
	GetByID(ctx context.Context, id int64) (*domain.RoomLoan, error)
	Update(ctx context.Context, l *domain.RoomLoan) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q domain.LoanQuery) ([]domain.RoomLoan, error)
	Statistics(ctx context.Context, q domain.LoanQuery) (domain.LoanStatistics, error)
	ApprovedInRoom(ctx context.Context, room string, excludeID int64) ([]domain.RoomLoan, error)
}

type EventType string

const (
	EventCreated   EventType = "room_loan.created"
	EventUpdated   EventType = "room_loan.updated"
	EventApproved  EventType = "room_loan.approved"
	EventRejected  EventType = "room_loan.rejected"
	EventCancelled EventType = "room_loan.cancelled"
	EventDeleted   EventType = "room_loan.deleted"
)

// LoanEvent describes a committed change. Loan is the state after the change,
// or the last state for deletions.
type LoanEvent struct {
	Type  EventType       `json:"type"`
	Loan  domain.RoomLoan `json:"loan"`
	Actor string          `json:"actor"`
	At    time.Time       `json:"at"`
}

// Notifier receives loan events after commit. Implementations must not block.
type Notifier interface {
	Publish(ev LoanEvent)
}
