package app

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []domain.Envelope
	fail   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return domain.ErrBackpressure
	}
	var env domain.Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return err
	}
	c.frames = append(c.frames, env)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) received() []domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Envelope, len(c.frames))
	copy(out, c.frames)
	return out
}

func newTestRegistry() *Registry {
	return NewRegistry([]domain.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}})
}

func TestCreateSessionCode(t *testing.T) {
	reg := newTestRegistry()
	id, ice := reg.CreateSession()

	if len(id) != codeLength {
		t.Fatalf("expected %d-char code, got %q", codeLength, id)
	}
	for _, r := range string(id) {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", id, r)
		}
	}
	if len(ice) != 1 {
		t.Fatalf("expected configured ICE servers, got %v", ice)
	}

	id2, _ := reg.CreateSession()
	if id == id2 {
		t.Fatalf("two sessions share the code %q", id)
	}
}

func TestParticipantCountTracksAttachDetach(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateSession()

	p1, err := reg.Attach(id, domain.RoleRequester, &fakeConn{})
	if err != nil {
		t.Fatalf("attach requester: %v", err)
	}
	p2, err := reg.Attach(id, domain.RoleAgent, &fakeConn{})
	if err != nil {
		t.Fatalf("attach agent: %v", err)
	}

	if got := countOf(t, reg, id); got != 2 {
		t.Fatalf("expected 2 participants, got %d", got)
	}

	reg.Detach(id, p1)
	if got := countOf(t, reg, id); got != 1 {
		t.Fatalf("expected 1 participant after detach, got %d", got)
	}

	// Detaching the same participant again is a no-op.
	reg.Detach(id, p1)
	if got := countOf(t, reg, id); got != 1 {
		t.Fatalf("double detach changed the count to %d", got)
	}

	reg.Detach(id, p2)
	if reg.ActiveSessions() != 0 {
		t.Fatalf("empty session should have been removed")
	}
}

func countOf(t *testing.T, reg *Registry, id domain.SessionID) int {
	t.Helper()
	for _, info := range reg.ListSessions() {
		if info.ID == id {
			return info.ParticipantCount
		}
	}
	t.Fatalf("session %s not listed", id)
	return 0
}

func TestAttachUnknownSession(t *testing.T) {
	reg := newTestRegistry()
	if _, err := reg.Attach("NOSUCHID", domain.RoleAgent, &fakeConn{}); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAttachAfterLastDetachFails(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateSession()

	pid, _ := reg.Attach(id, domain.RoleRequester, &fakeConn{})
	reg.Detach(id, pid)

	if _, err := reg.Attach(id, domain.RoleAgent, &fakeConn{}); err != domain.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound after cleanup, got %v", err)
	}
}

func TestAttachPeerUpdateOrdering(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateSession()

	requester := &fakeConn{}
	if _, err := reg.Attach(id, domain.RoleRequester, requester); err != nil {
		t.Fatal(err)
	}

	got := requester.received()
	if len(got) != 1 || got[0].Type != domain.EnvelopePeerUpdate {
		t.Fatalf("expected a private peer-update on join, got %v", got)
	}
	if got[0].Participants() != 1 {
		t.Fatalf("private peer-update should report 1 participant, got %d", got[0].Participants())
	}

	agent := &fakeConn{}
	if _, err := reg.Attach(id, domain.RoleAgent, agent); err != nil {
		t.Fatal(err)
	}

	got = requester.received()
	if len(got) != 2 {
		t.Fatalf("requester should have seen the agent join, got %v", got)
	}
	if got[1].Type != domain.EnvelopePeerUpdate || got[1].Participants() != 2 {
		t.Fatalf("expected peer-update{participants:2}, got %+v", got[1])
	}
	if got[1].SenderRole != domain.RoleAgent {
		t.Fatalf("peer-update should carry the joiner role, got %q", got[1].SenderRole)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateSession()

	requester := &fakeConn{}
	agent := &fakeConn{}
	reqID, _ := reg.Attach(id, domain.RoleRequester, requester)
	if _, err := reg.Attach(id, domain.RoleAgent, agent); err != nil {
		t.Fatal(err)
	}
	before := len(requester.received())

	env := domain.Envelope{Type: domain.EnvelopeOffer, SenderRole: domain.RoleRequester, SDP: "v=0"}
	sent, dropped := reg.Broadcast(id, env, reqID)
	if sent != 1 || dropped != 0 {
		t.Fatalf("expected sent=1 dropped=0, got %d/%d", sent, dropped)
	}

	if got := requester.received(); len(got) != before {
		t.Fatalf("sender received its own broadcast: %v", got[before:])
	}
	agentGot := agent.received()
	last := agentGot[len(agentGot)-1]
	if last.Type != domain.EnvelopeOffer || last.SDP != "v=0" {
		t.Fatalf("agent did not receive the offer, last envelope %+v", last)
	}
}

func TestBroadcastUnknownSessionIsNoop(t *testing.T) {
	reg := newTestRegistry()
	sent, dropped := reg.Broadcast("GONE", domain.Envelope{Type: domain.EnvelopeICE}, "")
	if sent != 0 || dropped != 0 {
		t.Fatalf("expected silent no-op, got %d/%d", sent, dropped)
	}
}

func TestBroadcastSkipsDeadParticipants(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateSession()

	sender := &fakeConn{}
	dead := &fakeConn{fail: true}
	live := &fakeConn{}
	senderID, _ := reg.Attach(id, domain.RoleRequester, sender)
	reg.Attach(id, domain.RoleAgent, dead)
	reg.Attach(id, domain.RoleAgent, live)

	sent, dropped := reg.Broadcast(id, domain.Envelope{Type: domain.EnvelopePeerReady}, senderID)
	if sent != 1 || dropped != 1 {
		t.Fatalf("expected sent=1 dropped=1, got %d/%d", sent, dropped)
	}
}

func TestDetachBroadcastsHangup(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateSession()

	requester := &fakeConn{}
	agent := &fakeConn{}
	reg.Attach(id, domain.RoleRequester, requester)
	agentID, _ := reg.Attach(id, domain.RoleAgent, agent)

	reg.Detach(id, agentID)

	got := requester.received()
	last := got[len(got)-1]
	if last.Type != domain.EnvelopeHangup {
		t.Fatalf("expected hangup broadcast, got %+v", last)
	}
	if last.SenderRole != domain.RoleAgent {
		t.Fatalf("hangup should carry the leaver role, got %q", last.SenderRole)
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	reg := newTestRegistry()
	id, _ := reg.CreateSession()

	if !reg.DeleteSession(id) {
		t.Fatal("first delete should report the session existed")
	}
	if reg.DeleteSession(id) {
		t.Fatal("second delete should be a no-op")
	}
}
