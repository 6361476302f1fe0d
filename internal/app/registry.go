// Package app owns the session directory: the only cross-connection shared
// mutable state on the server. All access goes through Attach/Detach/
// Broadcast; the underlying maps are never exposed.
package app

import (
	"crypto/rand"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

// codeAlphabet omits 0/O/1/I so session codes stay readable over the phone.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 8
)

type participant struct {
	id   domain.ParticipantID
	role domain.Role
	conn core.SignalConn
}

type sessionEntry struct {
	meta         domain.Session
	participants map[domain.ParticipantID]*participant
}

// Registry is the in-memory session directory.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	ice      []domain.ICEServer
	now      func() time.Time
}

func NewRegistry(ice []domain.ICEServer) *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
		ice:      ice,
		now:      time.Now,
	}
}

// CreateSession allocates a fresh collision-resistant code and returns it
// with the ICE servers clients should use for this session.
func (r *Registry) CreateSession() (domain.SessionID, []domain.ICEServer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id domain.SessionID
	for {
		id = domain.SessionID(newSessionCode())
		if _, exists := r.sessions[id]; !exists {
			break
		}
	}
	r.sessions[id] = &sessionEntry{
		meta:         domain.Session{ID: id, CreatedAt: r.now()},
		participants: make(map[domain.ParticipantID]*participant),
	}
	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("session created")
	return id, r.ice
}

// ICEServers returns the configured server list (for healthz reporting).
func (r *Registry) ICEServers() []domain.ICEServer { return r.ice }

// ListSessions is a snapshot for dashboard polling; it never blocks on
// in-flight negotiation.
func (r *Registry) ListSessions() []domain.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SessionInfo, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, domain.SessionInfo{
			ID:               e.meta.ID,
			CreatedAt:        e.meta.CreatedAt,
			ParticipantCount: len(e.participants),
		})
	}
	return out
}

func (r *Registry) ActiveSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DeleteSession removes a session explicitly. Idempotent: reports whether
// the id was present.
func (r *Registry) DeleteSession(id domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("session deleted")
	return true
}

// Attach registers a signaling connection with a session. The new
// participant first receives a private peer-update reflecting its own join,
// then every other participant receives the same event, so a waiting UI can
// detect arrival without polling.
func (r *Registry) Attach(id domain.SessionID, role domain.Role, conn core.SignalConn) (domain.ParticipantID, error) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return "", domain.ErrSessionNotFound
	}
	p := &participant{
		id:   domain.ParticipantID(uuid.NewString()),
		role: role,
		conn: conn,
	}
	e.participants[p.id] = p
	count := len(e.participants)
	others := othersOf(e, p.id)
	r.mu.Unlock()

	update := mustMarshal(domain.PeerUpdateEnvelope(count, role))
	if err := conn.TrySend(update); err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("session", string(id)).Msg("private peer-update dropped")
	}
	deliver(others, update)

	log.Info().Str("module", "app.registry").
		Str("session", string(id)).
		Str("participant", string(p.id)).
		Str("role", string(role)).
		Int("count", count).
		Msg("participant attached")
	return p.id, nil
}

// Detach removes a participant, notifies the rest with a hangup, and drops
// the session the instant it becomes empty. Safe to call for ids already
// gone (disconnect races are expected, not exceptional).
func (r *Registry) Detach(id domain.SessionID, pid domain.ParticipantID) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	p, ok := e.participants[pid]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(e.participants, pid)
	remaining := othersOf(e, pid)
	empty := len(e.participants) == 0
	if empty {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	deliver(remaining, mustMarshal(domain.Envelope{Type: domain.EnvelopeHangup, SenderRole: p.role}))

	log.Info().Str("module", "app.registry").
		Str("session", string(id)).
		Str("participant", string(pid)).
		Bool("session_removed", empty).
		Msg("participant detached")
}

// Broadcast delivers env to every participant of the session except the
// sender. Unknown sessions are a silent no-op. Returns delivered/dropped
// counts; a slow or half-closed participant is skipped, never waited on.
func (r *Registry) Broadcast(id domain.SessionID, env domain.Envelope, exclude domain.ParticipantID) (sent, dropped int) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.RUnlock()
		return 0, 0
	}
	targets := othersOf(e, exclude)
	r.mu.RUnlock()

	frame := mustMarshal(env)
	for _, conn := range targets {
		if err := conn.TrySend(frame); err != nil {
			dropped++
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.registry").
		Str("session", string(id)).
		Str("type", string(env.Type)).
		Int("sent", sent).
		Int("dropped", dropped).
		Msg("broadcast")
	return sent, dropped
}

func othersOf(e *sessionEntry, exclude domain.ParticipantID) []core.SignalConn {
	out := make([]core.SignalConn, 0, len(e.participants))
	for pid, p := range e.participants {
		if pid == exclude {
			continue
		}
		out = append(out, p.conn)
	}
	return out
}

func deliver(conns []core.SignalConn, frame core.Frame) {
	for _, c := range conns {
		_ = c.TrySend(frame)
	}
}

func mustMarshal(env domain.Envelope) core.Frame {
	b, err := json.Marshal(env)
	if err != nil {
		// Envelope is marshalable by construction.
		log.Error().Err(err).Str("module", "app.registry").Msg("envelope marshal")
		return core.Frame("{}")
	}
	return core.Frame(b)
}

func newSessionCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is beyond saving.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}
