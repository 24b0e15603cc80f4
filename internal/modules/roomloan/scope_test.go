package roomloan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"roombooking/internal/domain"
)

func TestScopeFor(t *testing.T) {
	own := &domain.RoomLoan{BorrowerName: "Alice"}
	other := &domain.RoomLoan{BorrowerName: "alice"}

	s := ScopeFor(admin)
	assert.True(t, s.Unrestricted())
	assert.True(t, s.Allows(own))
	assert.True(t, s.Allows(other))
	assert.Nil(t, s.Apply(domain.LoanQuery{}).BorrowerExact)

	s = ScopeFor(alice)
	assert.False(t, s.Unrestricted())
	assert.True(t, s.Allows(own))
	assert.False(t, s.Allows(other), "ownership is an exact match")

	injected := "Bob"
	q := s.Apply(domain.LoanQuery{BorrowerExact: &injected})
	if assert.NotNil(t, q.BorrowerExact) {
		assert.Equal(t, "Alice", *q.BorrowerExact)
	}

	// Unknown roles are treated like users.
	s = ScopeFor(domain.Actor{Role: "Guest", DisplayName: "Alice"})
	assert.False(t, s.Unrestricted())
}
