package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type dashboardConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *dashboardConn) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrSignalingClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return domain.ErrBackpressure
	}
}

func (c *dashboardConn) close() {
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

// HandleDashboard upgrades a dashboard socket, acknowledges it immediately,
// and relays its status updates until disconnect. Disconnect just drops the
// socket from the set: tickets are not owned by a connection.
func (h *Hub) HandleDashboard(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "broker").Msg("ws upgrade")
		return
	}

	conn := &dashboardConn{conn: ws, send: make(chan []byte, 32)}
	h.register(conn)

	ack, _ := json.Marshal(wsMessage{Type: MsgConnectionEstablished, Message: "connected to ticket broker"})
	if err := conn.trySend(ack); err != nil {
		log.Warn().Err(err).Str("module", "broker").Msg("ack send failed")
	}

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, conn)
	go h.readPump(ctx, cancel, conn)
}

func (h *Hub) writePump(ctx context.Context, c *dashboardConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "broker").Msg("writePump write error")
				return
			}
		}
	}
}

func (h *Hub) readPump(ctx context.Context, cancel context.CancelFunc, c *dashboardConn) {
	defer func() {
		h.unregister(c)
		cancel()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			h.handleMessage(data)
		}
	}
}

func (h *Hub) handleMessage(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Str("module", "broker").Msg("malformed dashboard message dropped")
		return
	}

	switch msg.Type {
	case MsgIdentify:
		log.Info().Str("module", "broker").Str("client_type", msg.ClientType).Msg("dashboard identified")
	case MsgUpdateTicketStatus:
		if msg.TicketID == "" {
			log.Warn().Str("module", "broker").Msg("status update without ticket id dropped")
			return
		}
		h.PublishStatus(msg.TicketID, msg.Status)
	default:
		log.Warn().Str("module", "broker").Str("type", msg.Type).Msg("unknown dashboard message")
	}
}
