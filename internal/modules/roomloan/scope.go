package roomloan

import "roombooking/internal/domain"

// Scope is the set of loans an actor may see. Admins see everything; any
// other actor sees only loans whose borrower name equals its display name.
type Scope struct {
	borrower *string
}

func ScopeFor(actor domain.Actor) Scope {
	if actor.IsAdmin() {
		return Scope{}
	}
	name := actor.DisplayName
	return Scope{borrower: &name}
}

// Unrestricted reports whether the scope admits every loan.
func (s Scope) Unrestricted() bool { return s.borrower == nil }

// Apply restricts q to the scope, replacing any borrower restriction already set.
func (s Scope) Apply(q domain.LoanQuery) domain.LoanQuery {
	q.BorrowerExact = s.borrower
	return q
}

func (s Scope) Allows(l *domain.RoomLoan) bool {
	return s.borrower == nil || l.BorrowerName == *s.borrower
}
