// Package broker routes escalation tickets from the kiosk to every
// connected agent dashboard and relays status changes back. Tickets are
// pass-through messages: the broker stores nothing.
package broker

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/domain"
)

// Dashboard message types on the broker websocket.
const (
	MsgIdentify              = "identify"
	MsgConnectionEstablished = "connection_established"
	MsgNewTicket             = "new_ticket"
	MsgUpdateTicket          = "update_ticket"
	MsgUpdateTicketStatus    = "update_ticket_status"
)

// wsMessage is the broker's wire union. Only the fields matching the type
// are populated.
type wsMessage struct {
	Type       string              `json:"type"`
	ClientType string              `json:"clientType,omitempty"`
	Ticket     *domain.Ticket      `json:"ticket,omitempty"`
	TicketID   string              `json:"ticketId,omitempty"`
	Status     domain.TicketStatus `json:"status,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// Hub owns the dashboard broadcast set. Mutations are serialized behind the
// mutex; a dashboard disconnecting mid-broadcast is skipped, not fatal.
type Hub struct {
	mu      sync.RWMutex
	clients map[*dashboardConn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*dashboardConn]struct{})}
}

func (h *Hub) register(c *dashboardConn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Str("module", "broker").Int("dashboards", n).Msg("dashboard connected")
}

func (h *Hub) unregister(c *dashboardConn) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	log.Info().Str("module", "broker").Int("dashboards", n).Msg("dashboard disconnected")
}

// Dashboards reports the current broadcast set size.
func (h *Hub) Dashboards() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishTicket fans a new ticket out to every connected dashboard and
// returns the number of dashboards it reached.
func (h *Hub) PublishTicket(t domain.Ticket) int {
	return h.broadcast(wsMessage{Type: MsgNewTicket, Ticket: &t})
}

// PublishStatus relays a status change to all dashboards, the originator
// included, so multiple open tabs stay consistent.
func (h *Hub) PublishStatus(ticketID string, status domain.TicketStatus) int {
	return h.broadcast(wsMessage{Type: MsgUpdateTicket, TicketID: ticketID, Status: status})
}

func (h *Hub) broadcast(msg wsMessage) int {
	frame, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "broker").Msg("broadcast marshal")
		return 0
	}

	h.mu.RLock()
	targets := make([]*dashboardConn, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.trySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "broker").Msg("dashboard send dropped")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "broker").Str("type", msg.Type).Int("sent", sent).Msg("broadcast")
	return sent
}
