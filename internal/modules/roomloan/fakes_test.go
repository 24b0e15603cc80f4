package roomloan

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"

	"roombooking/internal/domain"
)

type fakeRepo struct {
	mu        sync.Mutex
	loans     map[int64]domain.RoomLoan
	nextID    int64
	lastQuery domain.LoanQuery
	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{loans: map[int64]domain.RoomLoan{}}
}

func (r *fakeRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeRepo) Create(_ context.Context, l *domain.RoomLoan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	r.loans[l.ID] = *l
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*domain.RoomLoan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &l, nil
}

func (r *fakeRepo) Update(_ context.Context, l *domain.RoomLoan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.loans[l.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.loans[l.ID] = *l
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loans[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.loans, id)
	return nil
}

func (r *fakeRepo) List(_ context.Context, q domain.LoanQuery) ([]domain.RoomLoan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQuery = q

	var out []domain.RoomLoan
	for _, l := range r.loans {
		if q.BorrowerExact != nil && l.BorrowerName != *q.BorrowerExact {
			continue
		}
		if q.Status != nil && l.Status != *q.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeRepo) Statistics(ctx context.Context, q domain.LoanQuery) (domain.LoanStatistics, error) {
	loans, err := r.List(ctx, q)
	if err != nil {
		return domain.LoanStatistics{}, err
	}
	var st domain.LoanStatistics
	for _, l := range loans {
		st.Total++
		switch l.Status {
		case domain.LoanPending:
			st.Pending++
		case domain.LoanApproved:
			st.Approved++
		case domain.LoanRejected:
			st.Rejected++
		case domain.LoanCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

func (r *fakeRepo) ApprovedInRoom(_ context.Context, room string, excludeID int64) ([]domain.RoomLoan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RoomLoan
	for _, l := range r.loans {
		if l.ID == excludeID || l.Status != domain.LoanApproved || !l.HasInterval() {
			continue
		}
		if domain.SameRoom(l.RoomName, room) {
			out = append(out, l)
		}
	}
	return out, nil
}

// put stores l as-is, bypassing the service.
func (r *fakeRepo) put(l domain.RoomLoan) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	r.loans[l.ID] = l
	return l.ID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []LoanEvent
}

func (n *recordingNotifier) Publish(ev LoanEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}
