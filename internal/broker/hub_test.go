package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kiosklink/assist/internal/config"
	"github.com/kiosklink/assist/internal/domain"
)

func newBrokerServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	cfg := &config.Config{Mode: "release", TicketPort: 0}
	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, hub))
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialDashboard(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dashboard"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial dashboard: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	// Every dashboard is acknowledged before anything else.
	msg := readMessage(t, ws)
	if msg.Type != MsgConnectionEstablished {
		t.Fatalf("expected %s ack, got %+v", MsgConnectionEstablished, msg)
	}
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) wsMessage {
	t.Helper()
	if err := ws.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg wsMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read dashboard message: %v", err)
	}
	return msg
}

func TestTicketFansOutToAllDashboards(t *testing.T) {
	srv, hub := newBrokerServer(t)
	first := dialDashboard(t, srv)
	second := dialDashboard(t, srv)

	if hub.Dashboards() != 2 {
		t.Fatalf("expected 2 dashboards, got %d", hub.Dashboards())
	}

	body, _ := json.Marshal(domain.Ticket{
		ID:           "t1",
		SessionID:    "ABCD2345",
		ATMID:        "atm-17",
		CustomerName: "Dana",
		IssueType:    "card_retained",
		Priority:     domain.PriorityHigh,
	})
	resp, err := http.Post(srv.URL+"/api/ticket", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatal(err)
	}
	if !submitted.Success || !strings.Contains(submitted.Message, "2 dashboards") {
		t.Fatalf("unexpected submit response: %+v", submitted)
	}

	for _, ws := range []*websocket.Conn{first, second} {
		msg := readMessage(t, ws)
		if msg.Type != MsgNewTicket {
			t.Fatalf("expected %s, got %+v", MsgNewTicket, msg)
		}
		if msg.Ticket == nil || msg.Ticket.ID != "t1" {
			t.Fatalf("ticket payload mangled: %+v", msg.Ticket)
		}
		if msg.Ticket.Status != domain.StatusPending {
			t.Fatalf("ingest must default status to pending, got %q", msg.Ticket.Status)
		}
	}
}

func TestTicketDefaultsAssignedOnIngest(t *testing.T) {
	srv, _ := newBrokerServer(t)
	ws := dialDashboard(t, srv)

	resp, err := http.Post(srv.URL+"/api/ticket", "application/json",
		strings.NewReader(`{"atmId":"atm-2","issueType":"screen_frozen"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	msg := readMessage(t, ws)
	if msg.Ticket == nil {
		t.Fatalf("missing ticket payload: %+v", msg)
	}
	if msg.Ticket.ID == "" {
		t.Fatal("broker must assign an id when the kiosk sends none")
	}
	if msg.Ticket.Priority != domain.PriorityMedium || msg.Ticket.Status != domain.StatusPending {
		t.Fatalf("defaults not applied: %+v", msg.Ticket)
	}
	if msg.Ticket.Timestamp.IsZero() {
		t.Fatal("broker must stamp the ingest time")
	}
}

func TestInvalidTicketJSONRejected(t *testing.T) {
	srv, _ := newBrokerServer(t)

	resp, err := http.Post(srv.URL+"/api/ticket", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatal(err)
	}
	if submitted.Success {
		t.Fatal("malformed ticket must not report success")
	}
}

func TestStatusUpdateReachesOriginatorToo(t *testing.T) {
	srv, _ := newBrokerServer(t)
	originator := dialDashboard(t, srv)
	other := dialDashboard(t, srv)

	update, _ := json.Marshal(wsMessage{
		Type:     MsgUpdateTicketStatus,
		TicketID: "t9",
		Status:   domain.StatusInProgress,
	})
	if err := originator.WriteMessage(websocket.TextMessage, update); err != nil {
		t.Fatal(err)
	}

	// Both sockets see the rebroadcast, the sender included.
	for _, ws := range []*websocket.Conn{originator, other} {
		msg := readMessage(t, ws)
		if msg.Type != MsgUpdateTicket {
			t.Fatalf("expected %s, got %+v", MsgUpdateTicket, msg)
		}
		if msg.TicketID != "t9" || msg.Status != domain.StatusInProgress {
			t.Fatalf("status update mangled: %+v", msg)
		}
	}
}

func TestStatusUpdateWithoutTicketIDDropped(t *testing.T) {
	srv, _ := newBrokerServer(t)
	ws := dialDashboard(t, srv)

	update, _ := json.Marshal(wsMessage{Type: MsgUpdateTicketStatus, Status: domain.StatusResolved})
	if err := ws.WriteMessage(websocket.TextMessage, update); err != nil {
		t.Fatal(err)
	}

	if err := ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	var msg wsMessage
	if err := ws.ReadJSON(&msg); err == nil {
		t.Fatalf("id-less status update must not be rebroadcast, got %+v", msg)
	}
}

func TestDisconnectShrinksBroadcastSet(t *testing.T) {
	srv, hub := newBrokerServer(t)
	first := dialDashboard(t, srv)
	_ = dialDashboard(t, srv)

	first.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Dashboards() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 dashboard after disconnect, got %d", hub.Dashboards())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
