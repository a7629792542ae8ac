package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/seshd/internal/app/orch"
	"github.com/dkeye/seshd/internal/core"
	"github.com/dkeye/seshd/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultReadLimit  = 32 << 10
	DefaultPingPeriod = 54 * time.Second
	DefaultSendBuffer = 64
	writeWait         = 5 * time.Second
)

// UserIDKey is the gin context key the identity middleware stores the
// resolved user id under.
const UserIDKey = "user_id"

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = DefaultPingPeriod
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	return o
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	// Mutations and Joins throttle per connection; nil disables a limit.
	Mutations *RateLimiter
	Joins     *RateLimiter
	opts      Options
}

func NewSignalWSController(o *orch.Orchestrator, mutations, joins *RateLimiter, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:      o,
		Mutations: mutations,
		Joins:     joins,
		opts:      opts.withDefaults(),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*WsSignalConn)(nil)

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// client is the per-connection state. Handlers run on the read pump
// goroutine; subs is also touched by hub deliveries, hence the mutex.
type client struct {
	id   domain.ClientID
	conn *WsSignalConn

	mu   sync.Mutex
	subs map[domain.SessionID]func()
}

func (cl *client) setSub(sid domain.SessionID, unsubscribe func()) {
	cl.mu.Lock()
	old := cl.subs[sid]
	cl.subs[sid] = unsubscribe
	cl.mu.Unlock()
	if old != nil {
		old()
	}
}

func (cl *client) dropSub(sid domain.SessionID) bool {
	cl.mu.Lock()
	unsubscribe, ok := cl.subs[sid]
	delete(cl.subs, sid)
	cl.mu.Unlock()
	if ok {
		unsubscribe()
	}
	return ok
}

// dropSubsExcept unsubscribes from every session but keep.
func (cl *client) dropSubsExcept(keep domain.SessionID) {
	cl.mu.Lock()
	var drop []func()
	for sid, unsubscribe := range cl.subs {
		if sid != keep {
			drop = append(drop, unsubscribe)
			delete(cl.subs, sid)
		}
	}
	cl.mu.Unlock()
	for _, unsubscribe := range drop {
		unsubscribe()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	userID := domain.UserID(c.GetString(UserIDKey))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)
	registered := ctl.Orch.RegisterClient(conn, userID, cancel)
	cl := &client{id: registered.ID, conn: conn, subs: make(map[domain.SessionID]func())}
	log.Info().Str("module", "signal").Str("client_id", string(cl.id)).Str("user_id", string(userID)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cl)
}
