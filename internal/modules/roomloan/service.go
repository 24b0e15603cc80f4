package roomloan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"roombooking/internal/domain"
	"roombooking/internal/pkg/lock"
	"roombooking/internal/pkg/validator"
)

// approveAttempts bounds how often Approve re-locks when the loan's room
// changes between the first read and the locked re-read.
const approveAttempts = 3

type Service struct {
	loans    Repository
	locker   lock.Locker
	notifier Notifier
	now      func() time.Time
}

// NewService builds the loan lifecycle service. notifier may be nil.
func NewService(loans Repository, locker lock.Locker, notifier Notifier) *Service {
	return &Service{
		loans:    loans,
		locker:   locker,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.RoomLoan, error) {
	scope := ScopeFor(actor)

	var q domain.LoanQuery
	if st, ok := domain.ParseLoanStatus(f.Status); ok {
		q.Status = &st
	}
	q.RoomContains = strings.TrimSpace(f.RoomName)
	if scope.Unrestricted() {
		q.BorrowerContains = strings.TrimSpace(f.BorrowerName)
	}
	if t, _, ok := parseDateParam(f.StartDate); ok {
		q.StartFrom = &t
	}
	if t, dateOnly, ok := parseDateParam(f.EndDate); ok {
		if dateOnly {
			t = t.Add(24*time.Hour - time.Second)
		}
		q.EndUntil = &t
	}

	loans, err := s.loans.List(ctx, scope.Apply(q))
	if err != nil {
		return nil, fmt.Errorf("list room loans: %w", err)
	}
	return loans, nil
}

func (s *Service) GetByID(ctx context.Context, actor domain.Actor, id int64) (*domain.RoomLoan, error) {
	l, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ScopeFor(actor).Allows(l) {
		return nil, ErrForbidden
	}
	return l, nil
}

func (s *Service) Statistics(ctx context.Context, actor domain.Actor) (domain.LoanStatistics, error) {
	st, err := s.loans.Statistics(ctx, ScopeFor(actor).Apply(domain.LoanQuery{}))
	if err != nil {
		return domain.LoanStatistics{}, fmt.Errorf("room loan statistics: %w", err)
	}
	return st, nil
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, in LoanInput) (*domain.RoomLoan, error) {
	in, err := applyBorrower(actor, in)
	if err != nil {
		return nil, err
	}
	in, err = normalizeLoanInput(in)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	l := &domain.RoomLoan{
		BorrowerName: in.BorrowerName,
		RoomName:     in.RoomName,
		Purpose:      in.Purpose,
		Status:       domain.LoanPending,
		Date:         now,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		CreatedAt:    now,
	}

	create := func(ctx context.Context) error {
		if l.HasInterval() {
			if err := s.checkConflict(ctx, l.RoomName, *l.StartTime, *l.EndTime, 0); err != nil {
				return err
			}
		}
		return s.loans.Create(ctx, l)
	}

	if l.HasInterval() {
		err = s.withRoomLock(ctx, l.RoomName, func(ctx context.Context) error {
			return s.loans.Transaction(ctx, create)
		})
	} else {
		err = s.loans.Transaction(ctx, create)
	}
	if err != nil {
		return nil, s.mapWriteError("create room loan", err)
	}

	log.Printf("room_loan_created id=%d room=%q borrower=%q by_user=%d", l.ID, l.RoomName, l.BorrowerName, actor.UserID)
	s.publish(EventCreated, l, actor)
	return l, nil
}

// Update edits a pending loan. Scheduling conflicts are not checked here;
// they are enforced when the loan is approved.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id int64, in LoanInput) (*domain.RoomLoan, error) {
	in, err := applyBorrower(actor, in)
	if err != nil {
		return nil, err
	}
	in, err = normalizeLoanInput(in)
	if err != nil {
		return nil, err
	}

	var updated *domain.RoomLoan
	err = s.loans.Transaction(ctx, func(ctx context.Context) error {
		l, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !ScopeFor(actor).Allows(l) {
			return ErrForbidden
		}
		if l.Status != domain.LoanPending {
			return ErrInvalidState
		}

		now := s.clock()
		l.BorrowerName = in.BorrowerName
		l.RoomName = in.RoomName
		l.Purpose = in.Purpose
		l.StartTime = in.StartTime
		l.EndTime = in.EndTime
		l.UpdatedAt = &now
		if err := s.loans.Update(ctx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError("update room loan", err)
	}

	s.publish(EventUpdated, updated, actor)
	return updated, nil
}

// Approve moves a pending loan to Approved after checking that no other
// approved loan in the same room overlaps it.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, id int64, in StatusChangeInput) (*domain.RoomLoan, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	in, err := normalizeStatusChange(in)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < approveAttempts; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}

		var approved *domain.RoomLoan
		roomMoved := false
		err = s.withRoomLock(ctx, current.RoomName, func(ctx context.Context) error {
			return s.loans.Transaction(ctx, func(ctx context.Context) error {
				l, err := s.load(ctx, id)
				if err != nil {
					return err
				}
				if domain.RoomKey(l.RoomName) != domain.RoomKey(current.RoomName) {
					roomMoved = true
					return nil
				}
				if !domain.CanTransition(l.Status, domain.LoanApproved) {
					return ErrInvalidState
				}
				if l.HasInterval() {
					if err := s.checkConflict(ctx, l.RoomName, *l.StartTime, *l.EndTime, l.ID); err != nil {
						return err
					}
				}

				now := s.clock()
				by := in.UpdatedBy
				l.Status = domain.LoanApproved
				l.ApprovedBy = &by
				l.ApprovedAt = &now
				l.Notes = in.Notes
				l.UpdatedAt = &now
				if err := s.loans.Update(ctx, l); err != nil {
					return err
				}
				approved = l
				return nil
			})
		})
		if err != nil {
			return nil, s.mapWriteError("approve room loan", err)
		}
		if roomMoved {
			continue
		}

		log.Printf("room_loan_approved id=%d room=%q approved_by=%q", approved.ID, approved.RoomName, in.UpdatedBy)
		s.publish(EventApproved, approved, actor)
		return approved, nil
	}

	return nil, fmt.Errorf("approve room loan %d: room changed during approval: %w", id, ErrConflict)
}

func (s *Service) Reject(ctx context.Context, actor domain.Actor, id int64, in StatusChangeInput) (*domain.RoomLoan, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	in, err := normalizeStatusChange(in)
	if err != nil {
		return nil, err
	}

	l, err := s.transition(ctx, id, func(l *domain.RoomLoan, now time.Time) error {
		if !domain.CanTransition(l.Status, domain.LoanRejected) {
			return ErrInvalidState
		}
		by := in.UpdatedBy
		l.Status = domain.LoanRejected
		l.RejectedBy = &by
		l.RejectedAt = &now
		l.Notes = in.Notes
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError("reject room loan", err)
	}

	log.Printf("room_loan_rejected id=%d room=%q rejected_by=%q", l.ID, l.RoomName, in.UpdatedBy)
	s.publish(EventRejected, l, actor)
	return l, nil
}

// Cancel is allowed from any status except Cancelled.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id int64) (*domain.RoomLoan, error) {
	scope := ScopeFor(actor)
	l, err := s.transition(ctx, id, func(l *domain.RoomLoan, _ time.Time) error {
		if !scope.Allows(l) {
			return ErrForbidden
		}
		if !domain.CanTransition(l.Status, domain.LoanCancelled) {
			return ErrInvalidState
		}
		l.Status = domain.LoanCancelled
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError("cancel room loan", err)
	}

	log.Printf("room_loan_cancelled id=%d room=%q by_user=%d", l.ID, l.RoomName, actor.UserID)
	s.publish(EventCancelled, l, actor)
	return l, nil
}

func (s *Service) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	var deleted *domain.RoomLoan
	err := s.loans.Transaction(ctx, func(ctx context.Context) error {
		l, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := s.loans.Delete(ctx, id); err != nil {
			return err
		}
		deleted = l
		return nil
	})
	if err != nil {
		return s.mapWriteError("delete room loan", err)
	}

	log.Printf("room_loan_deleted id=%d room=%q by_user=%d", id, deleted.RoomName, actor.UserID)
	s.publish(EventDeleted, deleted, actor)
	return nil
}

// transition re-reads the loan inside a transaction, lets apply mutate it
// and stamps UpdatedAt.
func (s *Service) transition(ctx context.Context, id int64, apply func(l *domain.RoomLoan, now time.Time) error) (*domain.RoomLoan, error) {
	var out *domain.RoomLoan
	err := s.loans.Transaction(ctx, func(ctx context.Context) error {
		l, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock()
		if err := apply(l, now); err != nil {
			return err
		}
		l.UpdatedAt = &now
		if err := s.loans.Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	return out, err
}

func (s *Service) load(ctx context.Context, id int64) (*domain.RoomLoan, error) {
	l, err := s.loans.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room loan %d: %w", id, err)
	}
	return l, nil
}

func (s *Service) checkConflict(ctx context.Context, room string, start, end time.Time, excludeID int64) error {
	candidates, err := s.loans.ApprovedInRoom(ctx, room, excludeID)
	if err != nil {
		return fmt.Errorf("load approved loans: %w", err)
	}
	if c := FindConflict(candidates, room, start, end, excludeID); c != nil {
		log.Printf("room_loan_conflict room=%q conflicting_id=%d", room, c.ID)
		return ErrConflict
	}
	return nil
}

func (s *Service) withRoomLock(ctx context.Context, room string, fn func(ctx context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, domain.RoomKey(room))
	if err != nil {
		return fmt.Errorf("lock room %q: %w", room, err)
	}
	defer unlock()
	return fn(ctx)
}

// mapWriteError keeps module errors as they are and turns a storage-level
// overlap violation into ErrConflict.
func (s *Service) mapWriteError(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, domain.ErrOverlapConstraint):
		return ErrConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) publish(t EventType, l *domain.RoomLoan, actor domain.Actor) {
	if s.notifier == nil || l == nil {
		return
	}
	s.notifier.Publish(LoanEvent{
		Type:  t,
		Loan:  *l,
		Actor: actor.DisplayName,
		At:    s.clock(),
	})
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// applyBorrower records a User actor's loans under their display name. An
// explicit borrower_name naming someone else is rejected.
func applyBorrower(actor domain.Actor, in LoanInput) (LoanInput, error) {
	if actor.IsAdmin() {
		return in, nil
	}
	if name := strings.TrimSpace(in.BorrowerName); name != "" && name != actor.DisplayName {
		return in, newValidationError("borrower_name", "own_name")
	}
	in.BorrowerName = actor.DisplayName
	return in, nil
}

func normalizeLoanInput(in LoanInput) (LoanInput, error) {
	in.BorrowerName = strings.TrimSpace(in.BorrowerName)
	in.RoomName = strings.TrimSpace(in.RoomName)
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.StartTime = normalizeTime(in.StartTime)
	in.EndTime = normalizeTime(in.EndTime)

	fields := validator.Validate(in)
	if in.BorrowerName == "" {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["borrower_name"] = "required"
	}
	if len(fields) > 0 {
		return in, &ValidationError{Fields: fields}
	}

	if in.StartTime != nil && in.EndTime != nil && !in.StartTime.Before(*in.EndTime) {
		return in, newValidationError("end_time", "gtfield=start_time")
	}
	return in, nil
}

func normalizeStatusChange(in StatusChangeInput) (StatusChangeInput, error) {
	in.UpdatedBy = strings.TrimSpace(in.UpdatedBy)
	if fields := validator.Validate(in); len(fields) > 0 {
		return in, &ValidationError{Fields: fields}
	}
	return in, nil
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Second)
	return &v
}

// timestampLayouts are tried in order. Layouts without a zone read as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

// parseDateParam accepts timestamps and plain dates. dateOnly is set for the
// latter.
func parseDateParam(raw string) (t time.Time, dateOnly bool, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, false
	}
	if t, ok := parseTimestamp(raw); ok {
		return t, false, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true, true
	}
	return time.Time{}, false, false
}
