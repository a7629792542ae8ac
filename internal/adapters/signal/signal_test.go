package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/seshd/internal/app"
	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/dkeye/seshd/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testBoard = "kilter/8/25/26,27,28,29/40"

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Code      string          `json:"code"`
	SessionID string          `json:"sessionId"`
	Sequence  uint64          `json:"sequence"`
	Session   json.RawMessage `json:"session"`
	Event     struct {
		Type     string `json:"type"`
		Sequence uint64 `json:"sequence"`
		Kind     string `json:"kind"`
	} `json:"event"`
	Events          []json.RawMessage `json:"events"`
	CurrentSequence uint64            `json:"currentSequence"`
	FullSync        bool              `json:"fullSync"`
}

func startServer(t *testing.T, mutations *RateLimiter) (*orch.Orchestrator, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := orch.New(store.NewMemory())
	o.Retry = app.Retrier{Attempts: 1}
	ctl := NewSignalWSController(o, mutations, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(UserIDKey, c.Query("user"))
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return o, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(v map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(v))
}

// next reads frames until one of the given type arrives.
func (c *wsClient) next(typ string) frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(c.t, c.conn.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func queueItem() map[string]any {
	return map[string]any{"uuid": uuid.NewString(), "climb": map[string]any{"uuid": "climb-1", "angle": 40}}
}

func Test_Join_Subscribe_Mutate_Over_Websocket(t *testing.T) {
	// Arrange
	_, url := startServer(t, nil)
	a := dial(t, url)
	b := dial(t, url)

	a.send(map[string]any{"type": "join", "requestId": "1", "sessionId": "sess-1", "boardPath": testBoard, "username": "Alex"})
	joined := a.next("joined")
	require.Equal(t, "1", joined.RequestID)
	b.send(map[string]any{"type": "join", "sessionId": "sess-1", "boardPath": testBoard})
	b.next("joined")

	b.send(map[string]any{"type": "subscribe", "sessionId": "sess-1"})
	sync := b.next("event")
	require.Equal(t, "FullSync", sync.Event.Type)
	b.next("subscribed")

	// Act
	a.send(map[string]any{"type": "mutate", "requestId": "m1", "sessionId": "sess-1",
		"queue": []any{queueItem()}, "correlationId": "c-1"})

	// Assert
	ack := a.next("ack")
	require.Equal(t, "m1", ack.RequestID)
	require.Equal(t, uint64(1), ack.Sequence)
	delta := b.next("event")
	require.Equal(t, "Delta", delta.Event.Type)
	require.Equal(t, uint64(1), delta.Event.Sequence)
}

func Test_Failed_Switch_Keeps_Stream_Of_Current_Session(t *testing.T) {
	// Arrange
	_, url := startServer(t, nil)
	a := dial(t, url)
	b := dial(t, url)
	c := dial(t, url)
	a.send(map[string]any{"type": "join", "sessionId": "sess-1", "boardPath": testBoard})
	a.next("joined")
	b.send(map[string]any{"type": "join", "sessionId": "sess-1", "boardPath": testBoard})
	b.next("joined")
	b.send(map[string]any{"type": "subscribe", "sessionId": "sess-1"})
	b.next("subscribed")
	c.send(map[string]any{"type": "join", "sessionId": "sess-2", "boardPath": "tension/9/10/1,2/30"})
	c.next("joined")

	// Act
	b.send(map[string]any{"type": "join", "requestId": "sw", "sessionId": "sess-2", "boardPath": testBoard})
	failed := b.next("error")
	a.send(map[string]any{"type": "mutate", "sessionId": "sess-1", "queue": []any{queueItem()}})
	a.next("ack")

	// Assert
	require.Equal(t, "sw", failed.RequestID)
	require.Equal(t, "join_failed", failed.Code)
	delta := b.next("event")
	for delta.Event.Type != "Delta" {
		delta = b.next("event")
	}
	require.Equal(t, uint64(1), delta.Event.Sequence)
	b.send(map[string]any{"type": "whoami"})
	require.Equal(t, "sess-1", b.next("whoami").SessionID)
}

func Test_Errors_Carry_Public_Codes(t *testing.T) {
	_, url := startServer(t, nil)
	c := dial(t, url)

	c.send(map[string]any{"type": "mutate", "requestId": "x", "sessionId": "sess-1", "queue": []any{}})
	notMember := c.next("error")

	c.send(map[string]any{"type": "join", "sessionId": "bad id!", "boardPath": testBoard})
	invalid := c.next("error")

	c.send(map[string]any{"type": "nope"})
	unknown := c.next("error")

	require.Equal(t, "x", notMember.RequestID)
	require.Equal(t, "unauthorized", notMember.Code)
	require.Equal(t, "validation", invalid.Code)
	require.Equal(t, "validation", unknown.Code)
}

func Test_Replay_Falls_Back_To_Full_State(t *testing.T) {
	// Arrange
	o, url := startServer(t, nil)
	c := dial(t, url)
	c.send(map[string]any{"type": "join", "sessionId": "sess-1", "boardPath": testBoard})
	c.next("joined")
	for i := 0; i < 3; i++ {
		c.send(map[string]any{"type": "mutate", "sessionId": "sess-1", "queue": []any{queueItem()}})
		c.next("ack")
	}
	o.Log.Drop("sess-1")
	o.Log.Seed("sess-1", 3)

	// Act
	c.send(map[string]any{"type": "replay", "sessionId": "sess-1", "since": 1})
	fallback := c.next("replay")
	c.send(map[string]any{"type": "replay", "sessionId": "sess-1", "since": 3})
	upToDate := c.next("replay")

	// Assert
	require.True(t, fallback.FullSync)
	require.Equal(t, uint64(3), fallback.CurrentSequence)
	require.False(t, upToDate.FullSync)
	require.Empty(t, upToDate.Events)
	require.Equal(t, uint64(3), upToDate.CurrentSequence)
}

func Test_Disconnect_Leaves_Session(t *testing.T) {
	o, url := startServer(t, nil)
	a := dial(t, url)
	b := dial(t, url)
	a.send(map[string]any{"type": "join", "sessionId": "sess-1", "boardPath": testBoard})
	a.next("joined")
	b.send(map[string]any{"type": "join", "sessionId": "sess-1", "boardPath": testBoard})
	b.next("joined")
	b.send(map[string]any{"type": "subscribe", "sessionId": "sess-1"})
	b.next("subscribed")

	require.NoError(t, a.conn.Close())

	left := b.next("event")
	for left.Event.Kind != "user_left" {
		left = b.next("event")
	}
	require.Eventually(t, func() bool {
		room, ok := o.Rooms.Get("sess-1")
		return ok && room.MemberCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func Test_Mutations_Are_Rate_Limited(t *testing.T) {
	_, url := startServer(t, NewRateLimiter(2, time.Minute))
	c := dial(t, url)

	c.send(map[string]any{"type": "join", "sessionId": "sess-1", "boardPath": testBoard})
	c.next("joined")
	for i := 0; i < 2; i++ {
		c.send(map[string]any{"type": "mutate", "sessionId": "sess-1", "queue": []any{}})
		c.next("ack")
	}
	c.send(map[string]any{"type": "mutate", "sessionId": "sess-1", "queue": []any{}})
	limited := c.next("error")

	require.Equal(t, "rate_limited", limited.Code)
}

func Test_Ping_Pong(t *testing.T) {
	_, url := startServer(t, nil)
	c := dial(t, url)

	c.send(map[string]any{"type": "ping", "requestId": "p"})

	require.Equal(t, "p", c.next("pong").RequestID)
}
