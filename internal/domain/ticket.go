package domain

import "time"

// TicketPriority enumerates escalation urgency.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

// TicketStatus enumerates the dashboard-owned lifecycle.
type TicketStatus string

const (
	StatusPending    TicketStatus = "pending"
	StatusInProgress TicketStatus = "in-progress"
	StatusResolved   TicketStatus = "resolved"
)

// Ticket is an escalation record linking a session id to customer/issue
// metadata. The broker passes it through; it never stores one.
type Ticket struct {
	ID           string         `json:"id"`
	SessionID    SessionID      `json:"sessionId,omitempty"`
	ATMID        string         `json:"atmId,omitempty"`
	CustomerName string         `json:"customerName,omitempty"`
	IssueType    string         `json:"issueType,omitempty"`
	Description  string         `json:"description,omitempty"`
	Priority     TicketPriority `json:"priority"`
	Status       TicketStatus   `json:"status"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Normalize fills broker-owned defaults on ingest. Business fields are not
// validated here; the broker is structural-JSON-only by contract.
func (t *Ticket) Normalize(id string, now time.Time) {
	if t.ID == "" {
		t.ID = id
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.Timestamp = now
}
