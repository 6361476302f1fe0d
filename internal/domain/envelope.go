package domain

import "encoding/json"

// EnvelopeType tags the signaling union.
type EnvelopeType string

const (
	EnvelopeOffer      EnvelopeType = "offer"
	EnvelopeAnswer     EnvelopeType = "answer"
	EnvelopeICE        EnvelopeType = "ice"
	EnvelopeHangup     EnvelopeType = "hangup"
	EnvelopePeerReady  EnvelopeType = "peer-ready"
	EnvelopePeerUpdate EnvelopeType = "peer-update"
	EnvelopeHeartbeat  EnvelopeType = "heartbeat"
	EnvelopeError      EnvelopeType = "error"
)

// ICECandidate is the trickle-ICE payload, shaped like RTCIceCandidateInit.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Envelope is the signaling message relayed between peers. It is transient:
// the registry never stores one. SenderRole is always stamped server-side.
type Envelope struct {
	Type       EnvelopeType   `json:"type"`
	SenderRole Role           `json:"senderRole,omitempty"`
	SDP        string         `json:"sdp,omitempty"`
	Candidate  *ICECandidate  `json:"candidate,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// relayable lists the inbound types a handler forwards to the other peers.
// Everything else is either server-generated or dropped.
var relayable = map[EnvelopeType]bool{
	EnvelopeOffer:     true,
	EnvelopeAnswer:    true,
	EnvelopeICE:       true,
	EnvelopeHangup:    true,
	EnvelopePeerReady: true,
}

func (t EnvelopeType) Relayable() bool { return relayable[t] }

// ParseEnvelope decodes a raw frame. A frame that is not valid JSON or has
// no type tag is ErrMalformedEnvelope; the caller drops it.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, ErrMalformedEnvelope
	}
	if env.Type == "" {
		return Envelope{}, ErrMalformedEnvelope
	}
	return env, nil
}

func ErrorEnvelope(msg string) Envelope {
	return Envelope{Type: EnvelopeError, Error: msg}
}

func HeartbeatEnvelope() Envelope {
	return Envelope{Type: EnvelopeHeartbeat}
}

// PeerUpdateEnvelope reports a membership change. The role is the joiner's
// (or leaver's), so a waiting requester can recognize an arriving agent.
func PeerUpdateEnvelope(participants int, role Role) Envelope {
	return Envelope{
		Type:       EnvelopePeerUpdate,
		SenderRole: role,
		Data:       map[string]any{"participants": participants},
	}
}

// Participants extracts the count from a peer-update payload, 0 if absent.
func (e Envelope) Participants() int {
	if e.Data == nil {
		return 0
	}
	switch v := e.Data["participants"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
