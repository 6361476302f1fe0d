// Package media provides pion-backed local tracks for the controller. The
// actual capture pipeline (camera hardware, screen grabber) lives outside
// this subsystem and pushes encoded samples into the tracks it gets here.
package media

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/kiosklink/assist/internal/core"
)

// Track wraps a pion sample track behind core.LocalTrack. The rtc adapter
// unwraps it when attaching to the peer connection.
type Track struct {
	sample *webrtc.TrackLocalStaticSample
}

func (t *Track) ID() string   { return t.sample.ID() }
func (t *Track) Kind() string { return t.sample.Kind().String() }
func (t *Track) Close() error { return nil }

// Unwrap exposes the underlying pion track for the rtc adapter.
func (t *Track) Unwrap() webrtc.TrackLocal { return t.sample }

// Sample returns the writable pion track for the capture pipeline.
func (t *Track) Sample() *webrtc.TrackLocalStaticSample { return t.sample }

// SampleSource builds camera and screen tracks with the session's standard
// codecs (Opus audio, VP8 video). ScreenErr can be preset by deployments
// that know screen capture is unavailable, which exercises the controller's
// camera-only degradation instead of failing the session.
type SampleSource struct {
	ScreenErr error
}

func NewSampleSource() *SampleSource { return &SampleSource{} }

func (s *SampleSource) AcquireCamera(ctx context.Context) ([]core.LocalTrack, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "camera",
	)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "camera",
	)
	if err != nil {
		return nil, err
	}
	return []core.LocalTrack{&Track{sample: audio}, &Track{sample: video}}, nil
}

func (s *SampleSource) AcquireScreen(ctx context.Context) (core.LocalTrack, error) {
	if s.ScreenErr != nil {
		return nil, s.ScreenErr
	}
	screen, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"screen", "screen",
	)
	if err != nil {
		return nil, err
	}
	return &Track{sample: screen}, nil
}

var _ core.MediaSource = (*SampleSource)(nil)
