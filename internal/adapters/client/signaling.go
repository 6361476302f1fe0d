package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

// SignalDialer opens the signaling websocket for one session + role.
// BaseURL is the ws(s) endpoint root, e.g. "ws://host:8080".
type SignalDialer struct {
	BaseURL string
}

func NewSignalDialer(baseURL string) *SignalDialer {
	return &SignalDialer{BaseURL: baseURL}
}

func (d *SignalDialer) Dial(ctx context.Context, id domain.SessionID, role domain.Role, ev core.TransportEvents) (core.SignalTransport, error) {
	u := fmt.Sprintf("%s/ws/signal?sessionId=%s&role=%s",
		d.BaseURL, url.QueryEscape(string(id)), url.QueryEscape(string(role)))

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignalingClosed, err)
	}

	t := &transport{
		conn: ws,
		send: make(chan []byte, 32),
	}
	go t.writePump()
	go t.readPump(ev)

	// The socket is writable as soon as the dial returns; fire OnOpen off
	// the caller's goroutine so the controller can finish its own setup
	// before the flush happens.
	if ev.OnOpen != nil {
		go ev.OnOpen()
	}
	return t, nil
}

type transport struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (t *transport) Send(env domain.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return domain.ErrSignalingClosed
	}
	select {
	case t.send <- b:
		return nil
	default:
		return domain.ErrBackpressure
	}
}

func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.send)
	t.mu.Unlock()
	return t.conn.Close()
}

func (t *transport) writePump() {
	for data := range t.send {
		if err := t.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			log.Error().Err(err).Str("module", "client.signaling").Msg("writePump set deadline")
			return
		}
		if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "client.signaling").Msg("writePump write error")
			return
		}
	}
}

func (t *transport) readPump(ev core.TransportEvents) {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			wasClosed := t.closed
			t.mu.Unlock()
			if !wasClosed && ev.OnClosed != nil {
				ev.OnClosed(fmt.Errorf("%w: %v", domain.ErrSignalingClosed, err))
			}
			return
		}
		env, err := domain.ParseEnvelope(data)
		if err != nil {
			log.Warn().Str("module", "client.signaling").Msg("malformed envelope dropped")
			continue
		}
		if ev.OnEnvelope != nil {
			ev.OnEnvelope(env)
		}
	}
}

var _ core.SignalDialer = (*SignalDialer)(nil)
