// Package domain contains entities without logic, just meta-data and validation.
package domain

import "time"

type (
	SessionID     string
	ParticipantID string
)

// Role identifies which side of an assist session a participant is on.
type Role string

const (
	RoleRequester Role = "requester"
	RoleAgent     Role = "agent"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRequester, RoleAgent:
		return Role(s), nil
	default:
		return "", ErrUnknownRole
	}
}

// Session is the rendezvous point pairing a requester with an agent.
// Membership lives in the registry; this is the shared meta only.
type Session struct {
	ID        SessionID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participant is one attached signaling connection inside a session.
type Participant struct {
	ID   ParticipantID `json:"id"`
	Role Role          `json:"role"`
}

// SessionInfo is the read-only view served to dashboard polling.
type SessionInfo struct {
	ID               SessionID `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	ParticipantCount int       `json:"participantCount"`
}

// ICEServer mirrors the RTCIceServer dictionary handed to clients. Kept free
// of pion types so the registry and HTTP layer do not depend on webrtc.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}
