// Package peer implements the client-side session controller: one explicit
// state machine owning the peer connection resource, the signaling
// transport, and the pending-signal queue for a single assist session.
package peer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/annotation"
	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

type State string

const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateError      State = "error"
)

// Options wires the controller's collaborators. All four ports are
// required; Annotations is optional and enables the overlay channel.
type Options struct {
	API     core.SessionAPI
	Dialer  core.SignalDialer
	Media   core.MediaSource
	NewLink core.LinkFactory

	// Role defaults to requester. A requester initiates the offer; an
	// agent answers the requester's offer.
	Role domain.Role

	// Annotations, when set, receives overlay messages from the remote
	// peer; the requester side also opens the outbound channel.
	Annotations *annotation.Store
}

type Controller struct {
	opts Options

	mu        sync.Mutex
	state     State
	sessionID domain.SessionID
	link      core.PeerLink
	transport core.SignalTransport
	tracks    []core.LocalTrack
	annot     *annotation.Sender

	// pending holds envelopes submitted before the socket opened; it is
	// flushed FIFO, losslessly, exactly once.
	pending       []domain.Envelope
	transportOpen bool
	flushed       bool

	lastOffer *webrtc.SessionDescription
	offerSent bool

	warnings  []string
	errReason string
}

func NewController(opts Options) *Controller {
	if opts.Role == "" {
		opts.Role = domain.RoleRequester
	}
	return &Controller{opts: opts, state: StateIdle}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SessionID() domain.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Err returns the human-readable reason for the error state; the UI layer
// displays it verbatim.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errReason
}

// Warnings lists non-fatal degradations (e.g. screen-share unavailable).
func (c *Controller) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Annotations returns the outbound overlay sender, nil until the channel
// is open (or when annotations are disabled).
func (c *Controller) Annotations() *annotation.Sender {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.annot
}

// Start drives idle → preparing → (socket open) → connecting. It requests a
// session, builds the peer link, acquires media, and dials signaling. Any
// fatal failure lands the controller in the error state with a reason, and
// Start returns that reason as an error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("session already active (state %s)", c.state)
	}
	c.state = StatePreparing
	c.mu.Unlock()

	id, ice, err := c.opts.API.CreateSession(ctx)
	if err != nil {
		return c.fail(fmt.Sprintf("signaling endpoint unreachable: %v", err))
	}

	link, err := c.opts.NewLink(ice)
	if err != nil {
		return c.fail(fmt.Sprintf("could not create peer connection: %v", err))
	}

	// Camera (audio+video) is the baseline requirement.
	camera, err := c.opts.Media.AcquireCamera(ctx)
	if err != nil {
		_ = link.Close()
		return c.fail(fmt.Sprintf("camera unavailable: %v", err))
	}
	tracks := camera

	// Screen-share is best-effort: failure degrades to camera-only.
	screen, err := c.opts.Media.AcquireScreen(ctx)
	if err != nil {
		c.warn(fmt.Sprintf("screen share unavailable, continuing camera-only: %v", err))
	} else if screen != nil {
		tracks = append(tracks, screen)
	}

	for _, t := range tracks {
		if err := link.AddTrack(t); err != nil {
			closeTracks(tracks)
			_ = link.Close()
			return c.fail(fmt.Sprintf("could not attach local media: %v", err))
		}
	}

	var annot *annotation.Sender
	if c.opts.Annotations != nil {
		annotation.Listen(link, c.opts.Annotations)
		if c.opts.Role == domain.RoleRequester {
			// Created pre-offer so the channel rides the first negotiation.
			annot, err = annotation.Open(link)
			if err != nil {
				c.warn(fmt.Sprintf("annotation channel unavailable: %v", err))
			}
		}
	}

	c.mu.Lock()
	c.sessionID = id
	c.link = link
	c.tracks = tracks
	c.annot = annot
	c.mu.Unlock()

	link.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		// Trickle ICE: ship each candidate as discovered, even before the
		// remote description exists.
		c.sendOrQueue(candidateEnvelope(ci))
	})
	link.OnStateChange(c.onLinkState)

	transport, err := c.opts.Dialer.Dial(ctx, id, c.opts.Role, core.TransportEvents{
		OnOpen:     c.onSocketOpen,
		OnEnvelope: c.onEnvelope,
		OnClosed:   c.onTransportClosed,
	})
	if err != nil {
		closeTracks(tracks)
		_ = link.Close()
		return c.fail(fmt.Sprintf("signaling endpoint unreachable: %v", err))
	}

	c.mu.Lock()
	c.transport = transport
	open := c.transportOpen
	c.mu.Unlock()
	if open {
		c.flushAndNegotiate()
	}
	return nil
}

// Hangup tears everything down and returns to idle, from any state,
// mid-negotiation included. Idempotent: a second call is a no-op.
func (c *Controller) Hangup() {
	c.teardown(StateIdle, "")
}

func (c *Controller) onSocketOpen() {
	c.mu.Lock()
	c.transportOpen = true
	ready := c.transport != nil
	c.mu.Unlock()
	if ready {
		c.flushAndNegotiate()
	}
}

// flushAndNegotiate runs once per session: drain the pending queue in
// submission order, then (requester only) create and send the initial
// offer. Guarded because both Start and the open callback can race here.
func (c *Controller) flushAndNegotiate() {
	c.mu.Lock()
	if c.flushed || c.transport == nil || c.state != StatePreparing {
		c.mu.Unlock()
		return
	}
	c.flushed = true
	c.state = StateConnecting
	t := c.transport
	link := c.link
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, env := range pending {
		if err := t.Send(env); err != nil {
			log.Warn().Err(err).Str("module", "peer").Msg("queued signal dropped")
		}
	}

	if c.opts.Role != domain.RoleRequester {
		return
	}
	offer, err := link.CreateOffer()
	if err != nil {
		c.teardown(StateError, fmt.Sprintf("could not create offer: %v", err))
		return
	}
	c.mu.Lock()
	c.lastOffer = &offer
	c.offerSent = true
	c.mu.Unlock()
	if err := t.Send(domain.Envelope{Type: domain.EnvelopeOffer, SDP: offer.SDP}); err != nil {
		log.Warn().Err(err).Str("module", "peer").Msg("offer send failed")
	}
}

func (c *Controller) sendOrQueue(env domain.Envelope) {
	c.mu.Lock()
	if !c.flushed || c.transport == nil {
		c.pending = append(c.pending, env)
		c.mu.Unlock()
		return
	}
	t := c.transport
	c.mu.Unlock()
	if err := t.Send(env); err != nil {
		log.Warn().Err(err).Str("module", "peer").Str("type", string(env.Type)).Msg("signal send failed")
	}
}

func (c *Controller) onEnvelope(env domain.Envelope) {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link == nil {
		return
	}

	switch env.Type {
	case domain.EnvelopeAnswer:
		if err := link.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer, SDP: env.SDP,
		}); err != nil {
			log.Error().Err(err).Str("module", "peer").Msg("apply answer")
		}
	case domain.EnvelopeOffer:
		c.answerOffer(link, env)
	case domain.EnvelopeICE:
		if env.Candidate == nil {
			return
		}
		if err := link.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     env.Candidate.Candidate,
			SDPMid:        env.Candidate.SDPMid,
			SDPMLineIndex: env.Candidate.SDPMLineIndex,
		}); err != nil {
			log.Warn().Err(err).Str("module", "peer").Msg("add ice candidate")
		}
	case domain.EnvelopeHangup:
		c.teardown(StateIdle, "")
	case domain.EnvelopePeerUpdate:
		c.onPeerUpdate(env)
	case domain.EnvelopeHeartbeat, domain.EnvelopePeerReady:
		// Keepalive / informational.
	case domain.EnvelopeError:
		c.teardown(StateError, env.Error)
	}
}

// answerOffer is the agent-side negotiation path.
func (c *Controller) answerOffer(link core.PeerLink, env domain.Envelope) {
	if err := link.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: env.SDP,
	}); err != nil {
		log.Error().Err(err).Str("module", "peer").Msg("apply offer")
		return
	}
	answer, err := link.CreateAnswer()
	if err != nil {
		c.teardown(StateError, fmt.Sprintf("could not create answer: %v", err))
		return
	}
	c.sendOrQueue(domain.Envelope{Type: domain.EnvelopeAnswer, SDP: answer.SDP})
}

// onPeerUpdate compensates for the late-agent race: when an agent joins
// after our offer round already went out, re-send the last created offer
// (the same description, not a new one) so the agent gets a fresh round.
func (c *Controller) onPeerUpdate(env domain.Envelope) {
	c.mu.Lock()
	resend := env.Participants() > 1 &&
		env.SenderRole == domain.RoleAgent &&
		c.offerSent &&
		c.lastOffer != nil &&
		c.opts.Role == domain.RoleRequester
	var offer webrtc.SessionDescription
	var t core.SignalTransport
	if resend {
		offer = *c.lastOffer
		t = c.transport
	}
	c.mu.Unlock()

	if !resend || t == nil {
		return
	}
	log.Info().Str("module", "peer").Msg("agent joined late, re-sending offer")
	if err := t.Send(domain.Envelope{Type: domain.EnvelopeOffer, SDP: offer.SDP}); err != nil {
		log.Warn().Err(err).Str("module", "peer").Msg("re-offer send failed")
	}
}

func (c *Controller) onLinkState(s core.LinkState) {
	switch s {
	case core.LinkConnected:
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateConnected
		}
		c.mu.Unlock()
	case core.LinkDisconnected:
		// Transient ICE blip: stay in connecting rather than tearing down.
		c.mu.Lock()
		if c.state == StateConnected {
			c.state = StateConnecting
		}
		c.mu.Unlock()
		log.Warn().Str("module", "peer").Msg("peer disconnected, waiting for recovery")
	case core.LinkFailed:
		c.teardown(StateError, "peer connection failed")
	case core.LinkClosed:
		// Reached via our own teardown.
	}
}

func (c *Controller) onTransportClosed(err error) {
	c.mu.Lock()
	terminal := c.state == StateIdle || c.state == StateError
	c.mu.Unlock()
	if terminal {
		return
	}
	c.teardown(StateError, fmt.Sprintf("signaling transport closed: %v", err))
}

func (c *Controller) fail(reason string) error {
	c.teardown(StateError, reason)
	return fmt.Errorf("%s", reason)
}

func (c *Controller) warn(msg string) {
	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()
	log.Warn().Str("module", "peer").Msg(msg)
}

// teardown releases media, the peer resource, and the socket, clears the
// pending queue and session id, and lands in the target state. All side
// effects complete before the state is considered changed.
func (c *Controller) teardown(to State, reason string) {
	c.mu.Lock()
	if c.state == StateIdle && to == StateIdle {
		c.mu.Unlock()
		return
	}
	if c.state == StateError && to == StateError {
		c.mu.Unlock()
		return
	}
	tracks := c.tracks
	link := c.link
	transport := c.transport
	annot := c.annot
	c.tracks = nil
	c.link = nil
	c.transport = nil
	c.annot = nil
	c.pending = nil
	c.sessionID = ""
	c.transportOpen = false
	c.flushed = false
	c.lastOffer = nil
	c.offerSent = false
	c.mu.Unlock()

	closeTracks(tracks)
	if annot != nil {
		_ = annot.Close()
	}
	if link != nil {
		_ = link.Close()
	}
	if transport != nil {
		_ = transport.Close()
	}

	c.mu.Lock()
	c.state = to
	if to == StateError {
		c.errReason = reason
	} else {
		c.errReason = ""
	}
	c.mu.Unlock()

	if to == StateError {
		log.Error().Str("module", "peer").Str("reason", reason).Msg("session failed")
	} else {
		log.Info().Str("module", "peer").Msg("session ended")
	}
}

func closeTracks(tracks []core.LocalTrack) {
	for _, t := range tracks {
		_ = t.Close()
	}
}

func candidateEnvelope(ci webrtc.ICECandidateInit) domain.Envelope {
	return domain.Envelope{
		Type: domain.EnvelopeICE,
		Candidate: &domain.ICECandidate{
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		},
	}
}
