package roomloan

import (
	"time"

	"roombooking/internal/domain"
)

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Touching
// endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// FindConflict returns the first approved loan in room whose interval
// overlaps [start,end), skipping excludeID. Candidates in other rooms, in
// other statuses or without a full interval never conflict.
func FindConflict(candidates []domain.RoomLoan, room string, start, end time.Time, excludeID int64) *domain.RoomLoan {
	for i := range candidates {
		c := &candidates[i]
		if c.ID == excludeID && excludeID != 0 {
			continue
		}
		if c.Status != domain.LoanApproved || !c.HasInterval() || !domain.SameRoom(c.RoomName, room) {
			continue
		}
		if Overlaps(*c.StartTime, *c.EndTime, start, end) {
			return c
		}
	}
	return nil
}
