// Package rtc adapts a pion PeerConnection to core.PeerLink.
package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

type PeerLink struct {
	pc *webrtc.PeerConnection
}

// NewPeerLink builds the underlying peer connection for the ICE servers a
// session handed out, falling back to the default STUN config when the
// list is empty or unusable.
func NewPeerLink(ice []domain.ICEServer) (core.PeerLink, error) {
	cfg := webrtc.Configuration{ICEServers: toWebRTC(ice)}
	if len(cfg.ICEServers) == 0 {
		cfg = defaultConfig()
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		// Retry with defaults in case a malformed server entry was the cause.
		pc, err = webrtc.NewPeerConnection(defaultConfig())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPeerConnectionFailed, err)
		}
	}
	return &PeerLink{pc: pc}, nil
}

func defaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func toWebRTC(ice []domain.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(ice))
	for _, s := range ice {
		if len(s.URLs) == 0 {
			continue
		}
		ws := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			ws.Credential = s.Credential
		}
		out = append(out, ws)
	}
	return out
}

func (l *PeerLink) AddTrack(track core.LocalTrack) error {
	var local webrtc.TrackLocal
	switch t := track.(type) {
	case interface{ Unwrap() webrtc.TrackLocal }:
		local = t.Unwrap()
	case webrtc.TrackLocal:
		local = t
	default:
		return fmt.Errorf("track %s is not backed by a webrtc.TrackLocal", track.ID())
	}
	_, err := l.pc.AddTrack(local)
	return err
}

func (l *PeerLink) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (l *PeerLink) CreateAnswer() (webrtc.SessionDescription, error) {
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (l *PeerLink) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return l.pc.SetRemoteDescription(desc)
}

func (l *PeerLink) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return l.pc.AddICECandidate(cand)
}

func (l *PeerLink) CreateDataChannel(label string) (core.DataChannel, error) {
	dc, err := l.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return &dataChannel{dc: dc}, nil
}

func (l *PeerLink) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	l.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && fn != nil {
			fn(cand.ToJSON())
		}
	})
}

func (l *PeerLink) OnDataChannel(fn func(core.DataChannel)) {
	l.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		fn(&dataChannel{dc: dc})
	})
}

func (l *PeerLink) OnStateChange(fn func(core.LinkState)) {
	l.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_state", s.String()).Msg("peer state")
		fn(mapState(s))
	})
}

func mapState(s webrtc.PeerConnectionState) core.LinkState {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		return core.LinkConnected
	case webrtc.PeerConnectionStateDisconnected:
		return core.LinkDisconnected
	case webrtc.PeerConnectionStateFailed:
		return core.LinkFailed
	case webrtc.PeerConnectionStateClosed:
		return core.LinkClosed
	default:
		return core.LinkConnecting
	}
}

func (l *PeerLink) Close() error {
	return l.pc.Close()
}

type dataChannel struct {
	dc *webrtc.DataChannel
}

func (d *dataChannel) Label() string { return d.dc.Label() }

func (d *dataChannel) SendText(data []byte) error {
	return d.dc.SendText(string(data))
}

func (d *dataChannel) OnOpen(fn func()) { d.dc.OnOpen(fn) }

func (d *dataChannel) OnMessage(fn func(data []byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		// Copy because pion reuses internal buffers.
		fn(append([]byte(nil), msg.Data...))
	})
}

func (d *dataChannel) Close() error { return d.dc.Close() }
