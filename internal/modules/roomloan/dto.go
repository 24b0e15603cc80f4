package roomloan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LoanInput is the body of create and update requests.
type LoanInput struct {
	BorrowerName string     `json:"borrower_name" validate:"max=100"`
	RoomName     string     `json:"room_name" validate:"required,max=100"`
	Purpose      string     `json:"purpose" validate:"required,max=500"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
}

// UnmarshalJSON reads start_time and end_time in any of timestampLayouts, so
// "2026-03-01T10:00:00" is accepted as well as RFC3339. Empty strings and
// null leave the time unset.
func (in *LoanInput) UnmarshalJSON(data []byte) error {
	type plain LoanInput
	var raw struct {
		plain
		StartTime *string `json:"start_time"`
		EndTime   *string `json:"end_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := bodyTime("start_time", raw.StartTime)
	if err != nil {
		return err
	}
	end, err := bodyTime("end_time", raw.EndTime)
	if err != nil {
		return err
	}

	*in = LoanInput(raw.plain)
	in.StartTime = start
	in.EndTime = end
	return nil
}

func bodyTime(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, ok := parseTimestamp(strings.TrimSpace(*v))
	if !ok {
		return nil, fmt.Errorf("%s: unsupported time format %q", field, *v)
	}
	return &t, nil
}

// StatusChangeInput is the body of approve and reject requests. UpdatedBy is
// the name recorded as approver or rejecter.
type StatusChangeInput struct {
	UpdatedBy string  `json:"updated_by" validate:"required,max=100"`
	Notes     *string `json:"notes" validate:"omitempty,max=1000"`
}

// ListFilter holds raw query parameters. Values that do not parse are ignored.
type ListFilter struct {
	Status       string `form:"status"`
	RoomName     string `form:"roomName"`
	BorrowerName string `form:"borrowerName"`
	StartDate    string `form:"startDate"`
	EndDate      string `form:"endDate"`
}
