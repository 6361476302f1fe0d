// Package signal is the per-connection signaling relay. One controller
// instance serves the websocket endpoint; each accepted connection gets its
// own conn/pumps/heartbeat and is attached to exactly one session.
package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/app"
	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

type Controller struct {
	Registry  *app.Registry
	Heartbeat time.Duration
	ReadLimit int64
}

func NewController(reg *app.Registry, heartbeat time.Duration, readLimit int64) *Controller {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &Controller{Registry: reg, Heartbeat: heartbeat, ReadLimit: readLimit}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrSignalingClosed
	}
	select {
	case c.send <- f:
	default:
		return domain.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection, attaches it to the session named in
// the handshake params, and runs the pump pair until disconnect.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sessionID := domain.SessionID(c.Query("sessionId"))
	role, roleErr := domain.ParseRole(c.Query("role"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &wsConn{conn: ws, send: make(chan core.Frame, 32)}

	if roleErr != nil {
		ctl.rejectAndClose(ws, "unknown role")
		return
	}

	pid, err := ctl.Registry.Attach(sessionID, role, conn)
	if err != nil {
		// Never registered: one error envelope, then close.
		ctl.rejectAndClose(ws, "session not found")
		return
	}
	log.Info().Str("module", "signal").
		Str("session", string(sessionID)).
		Str("participant", string(pid)).
		Str("role", string(role)).
		Msg("signaling connection attached")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sessionID, pid, role, conn)
}

// rejectAndClose writes a single error envelope directly (the connection
// never joins the registry, so the pump pair is never started).
func (ctl *Controller) rejectAndClose(ws *websocket.Conn, reason string) {
	frame, _ := json.Marshal(domain.ErrorEnvelope(reason))
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = ws.WriteMessage(websocket.TextMessage, frame)
	_ = ws.Close()
	log.Warn().Str("module", "signal").Str("reason", reason).Msg("connection rejected")
}
