// Package core holds the transport-facing contracts. Adapters own the real
// resources (sockets, peer connections, media); everything above this layer
// talks through these interfaces only.
package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/kiosklink/assist/internal/domain"
)

// Frame is a raw encoded payload (a JSON signaling envelope on the wire).
type Frame []byte

// SignalConn abstracts one participant's server-side messaging transport.
// Owned by the adapter; the adapter must Close() it. TrySend never blocks:
// a full buffer returns domain.ErrBackpressure and the frame is dropped.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}

// LinkState is the reduced peer-connection state the controller reacts to.
type LinkState int

const (
	LinkConnecting LinkState = iota
	LinkConnected
	LinkDisconnected
	LinkFailed
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	case LinkDisconnected:
		return "disconnected"
	case LinkFailed:
		return "failed"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DataChannel is a labeled reliable out-of-band channel between the peers.
type DataChannel interface {
	Label() string
	SendText(data []byte) error
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	Close() error
}

// PeerLink is the RTCPeerConnection-equivalent resource the controller owns.
type PeerLink interface {
	AddTrack(track LocalTrack) error
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(cand webrtc.ICECandidateInit) error
	CreateDataChannel(label string) (DataChannel, error)
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnDataChannel(fn func(DataChannel))
	OnStateChange(fn func(LinkState))
	Close() error
}

// LinkFactory builds a PeerLink for the ICE servers a session handed out.
// Implementations fall back to built-in defaults when the list is empty.
type LinkFactory func(ice []domain.ICEServer) (PeerLink, error)

// LocalTrack is a capture source attached to the link. The pion adapter
// accepts anything that also implements webrtc.TrackLocal.
type LocalTrack interface {
	ID() string
	Kind() string
	Close() error
}

// MediaSource acquires local capture. Camera failure is fatal for a session;
// screen failure degrades to camera-only.
type MediaSource interface {
	AcquireCamera(ctx context.Context) ([]LocalTrack, error)
	AcquireScreen(ctx context.Context) (LocalTrack, error)
}

// SessionAPI is the registry's REST surface as seen by a client.
type SessionAPI interface {
	CreateSession(ctx context.Context) (domain.SessionID, []domain.ICEServer, error)
}

// TransportEvents carries the callbacks a signaling transport fires. OnOpen
// is invoked once the socket is ready for writes; envelopes queued by the
// controller before that are flushed in submission order.
type TransportEvents struct {
	OnOpen     func()
	OnEnvelope func(domain.Envelope)
	OnClosed   func(err error)
}

// SignalTransport is one open signaling connection.
type SignalTransport interface {
	Send(env domain.Envelope) error
	Close() error
}

// SignalDialer opens a signaling connection bound to a session and role.
type SignalDialer interface {
	Dial(ctx context.Context, id domain.SessionID, role domain.Role, ev TransportEvents) (SignalTransport, error)
}
