package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooking/internal/domain"
	"roombooking/internal/modules/roomloan"
	"roombooking/internal/pkg/jwt"
)

func setup(t *testing.T) (*Hub, *jwt.Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := jwt.New("ws-test-secret", time.Hour, "test", "test")
	hub := NewHub()
	r := gin.New()
	NewHandler(hub, tokens, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, tokens, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room-loans"
}

func dial(t *testing.T, tokens *jwt.Service, url string, id jwt.Identity) *websocket.Conn {
	t.Helper()
	token, _, err := tokens.GenerateToken(id)
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_DeliversByScope(t *testing.T) {
	hub, tokens, url := setup(t)

	adminConn := dial(t, tokens, url, jwt.Identity{UserID: 1, Role: "Admin", FullName: "Administrator"})
	aliceConn := dial(t, tokens, url, jwt.Identity{UserID: 2, Role: "User", FullName: "Alice"})
	bobConn := dial(t, tokens, url, jwt.Identity{UserID: 3, Role: "User", FullName: "Bob"})

	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(roomloan.LoanEvent{
		Type:  roomloan.EventApproved,
		Loan:  domain.RoomLoan{ID: 10, BorrowerName: "Alice", RoomName: "101", Status: domain.LoanApproved},
		Actor: "Administrator",
		At:    time.Now().UTC(),
	})

	for _, conn := range []*websocket.Conn{adminConn, aliceConn} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev roomloan.LoanEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, roomloan.EventApproved, ev.Type)
		assert.Equal(t, int64(10), ev.Loan.ID)
	}

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bobConn.ReadMessage()
	assert.Error(t, err, "bob must not see Alice's loan")
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, tokens, url := setup(t)

	conn := dial(t, tokens, url, jwt.Identity{UserID: 2, Role: "User", FullName: "Alice"})
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Publishing with no subscribers is a no-op.
	hub.Publish(roomloan.LoanEvent{Type: roomloan.EventCreated})
}

func TestSubscribe_RejectsBadTokens(t *testing.T) {
	_, _, url := setup(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
