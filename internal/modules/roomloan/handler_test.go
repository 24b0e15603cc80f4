package roomloan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooking/internal/domain"
	"roombooking/internal/middleware"
	"roombooking/internal/pkg/jwt"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type loanBody struct {
	RoomLoan domain.RoomLoan `json:"room_loan"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	api := r.Group("/api/v1")
	// Test identity: X-Test-User selects the actor.
	api.Use(func(c *gin.Context) {
		var a domain.Actor
		switch c.GetHeader("X-Test-User") {
		case "admin":
			a = admin
		case "alice":
			a = alice
		case "bob":
			a = bob
		default:
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		middleware.SetIdentity(c, &jwt.Claims{UserID: a.UserID, Role: string(a.Role), FullName: a.DisplayName})
	})
	NewHandler(newSQLiteService(t)).RegisterRoutes(api)
	return r
}

func do(t *testing.T, r *gin.Engine, user, method, path string, body any) (int, envelope) {
	t.Helper()

	var rd *bytes.Reader
	if s, ok := body.(string); ok {
		rd = bytes.NewReader([]byte(s))
	} else if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func createBody(room, start, end string) map[string]any {
	return map[string]any{
		"room_name":  room,
		"purpose":    "study group",
		"start_time": "2025-06-01T" + start + ":00Z",
		"end_time":   "2025-06-01T" + end + ":00Z",
	}
}

func decodeLoan(t *testing.T, env envelope) domain.RoomLoan {
	t.Helper()
	var b loanBody
	require.NoError(t, json.Unmarshal(env.Data, &b))
	return b.RoomLoan
}

func TestHandler_CreateApproveConflict(t *testing.T) {
	r := setupRouter(t)

	code, env := do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", createBody("101", "10:00", "11:00"))
	require.Equal(t, http.StatusCreated, code)
	a := decodeLoan(t, env)
	assert.Equal(t, "Alice", a.BorrowerName)
	assert.Equal(t, domain.LoanPending, a.Status)

	code, env = do(t, r, "bob", http.MethodPost, "/api/v1/room-loans", createBody("101", "10:30", "11:30"))
	require.Equal(t, http.StatusCreated, code)
	b := decodeLoan(t, env)

	approve := map[string]any{"updated_by": "Administrator", "notes": "enjoy"}

	code, env = do(t, r, "alice", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/approve", a.ID), approve)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, env = do(t, r, "admin", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/approve", a.ID), approve)
	require.Equal(t, http.StatusOK, code)
	approved := decodeLoan(t, env)
	assert.Equal(t, domain.LoanApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "Administrator", *approved.ApprovedBy)

	code, env = do(t, r, "admin", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/approve", b.ID), approve)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "BOOKING_CONFLICT", env.Error.Code)

	code, env = do(t, r, "admin", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/approve", a.ID), approve)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	code, env = do(t, r, "bob", http.MethodPost, "/api/v1/room-loans", createBody("101", "10:15", "10:45"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "BOOKING_CONFLICT", env.Error.Code)
}

func TestHandler_Validation(t *testing.T) {
	r := setupRouter(t)

	code, env := do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", createBody("101", "11:00", "10:00"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Details, "end_time")

	code, env = do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", map[string]any{"purpose": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "required", env.Error.Details["room_name"])

	code, _ = do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, r, "alice", http.MethodGet, "/api/v1/room-loans/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = do(t, r, "alice", http.MethodGet, "/api/v1/room-loans/12345", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, _ = do(t, r, "admin", http.MethodPut, "/api/v1/room-loans/1/reject", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_ZonelessTimesReadAsUTC(t *testing.T) {
	r := setupRouter(t)

	code, env := do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", map[string]any{
		"room_name":  "101",
		"purpose":    "study group",
		"start_time": "2026-03-01T10:00:00",
		"end_time":   "2026-03-01T11:30",
	})
	require.Equal(t, http.StatusCreated, code)
	l := decodeLoan(t, env)
	require.NotNil(t, l.StartTime)
	require.NotNil(t, l.EndTime)
	assert.True(t, l.StartTime.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, l.EndTime.Equal(time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)))

	code, env = do(t, r, "admin", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/approve", l.ID), map[string]any{"updated_by": "Administrator"})
	require.Equal(t, http.StatusOK, code)

	// the same slot written with an explicit offset still conflicts
	code, env = do(t, r, "bob", http.MethodPost, "/api/v1/room-loans", map[string]any{
		"room_name":  "101",
		"purpose":    "overlap",
		"start_time": "2026-03-01T17:30:00+07:00",
		"end_time":   "2026-03-01T18:30:00+07:00",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "BOOKING_CONFLICT", env.Error.Code)

	code, env = do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", map[string]any{
		"room_name":  "102",
		"purpose":    "open ended",
		"start_time": "",
		"end_time":   nil,
	})
	require.Equal(t, http.StatusCreated, code)
	open := decodeLoan(t, env)
	assert.Nil(t, open.StartTime)
	assert.Nil(t, open.EndTime)

	code, env = do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", map[string]any{
		"room_name":  "101",
		"purpose":    "study group",
		"start_time": "tomorrow at ten",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestHandler_UserCannotBorrowForSomeoneElse(t *testing.T) {
	r := setupRouter(t)

	body := createBody("101", "10:00", "11:00")
	body["borrower_name"] = "Bob"
	code, env := do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "own_name", env.Error.Details["borrower_name"])

	body["borrower_name"] = "Alice"
	code, env = do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", body)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Alice", decodeLoan(t, env).BorrowerName)

	body["borrower_name"] = "Bob"
	code, env = do(t, r, "admin", http.MethodPost, "/api/v1/room-loans", body)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Bob", decodeLoan(t, env).BorrowerName)
}

func TestHandler_ScopingAndLifecycle(t *testing.T) {
	r := setupRouter(t)

	code, env := do(t, r, "alice", http.MethodPost, "/api/v1/room-loans", createBody("Lab", "09:00", "10:00"))
	require.Equal(t, http.StatusCreated, code)
	mine := decodeLoan(t, env)
	code, _ = do(t, r, "bob", http.MethodPost, "/api/v1/room-loans", createBody("Hall", "09:00", "10:00"))
	require.Equal(t, http.StatusCreated, code)

	code, env = do(t, r, "bob", http.MethodGet, fmt.Sprintf("/api/v1/room-loans/%d", mine.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = do(t, r, "bob", http.MethodGet, "/api/v1/room-loans?borrowerName=Alice", nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		RoomLoans []domain.RoomLoan `json:"room_loans"`
		Total     int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Bob", list.RoomLoans[0].BorrowerName)

	code, env = do(t, r, "admin", http.MethodGet, "/api/v1/room-loans?roomName=la&status=PENDING", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, mine.ID, list.RoomLoans[0].ID)

	code, env = do(t, r, "alice", http.MethodGet, "/api/v1/room-loans/statistics", nil)
	require.Equal(t, http.StatusOK, code)
	var st domain.LoanStatistics
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, domain.LoanStatistics{Total: 1, Pending: 1}, st)

	update := createBody("Lab 2", "09:30", "10:30")
	code, env = do(t, r, "alice", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d", mine.ID), update)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Lab 2", decodeLoan(t, env).RoomName)

	code, _ = do(t, r, "bob", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/cancel", mine.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = do(t, r, "alice", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/cancel", mine.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.LoanCancelled, decodeLoan(t, env).Status)

	code, env = do(t, r, "alice", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d/cancel", mine.ID), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	code, env = do(t, r, "alice", http.MethodPut, fmt.Sprintf("/api/v1/room-loans/%d", mine.ID), update)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	code, _ = do(t, r, "alice", http.MethodDelete, fmt.Sprintf("/api/v1/room-loans/%d", mine.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = do(t, r, "admin", http.MethodDelete, fmt.Sprintf("/api/v1/room-loans/%d", mine.ID), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, "admin", http.MethodDelete, fmt.Sprintf("/api/v1/room-loans/%d", mine.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}
