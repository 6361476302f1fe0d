package domain

import "errors"

var (
	// ErrSessionNotFound is terminal for the connection that triggered it:
	// the handler must emit one error envelope and close.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMalformedEnvelope marks frames that are dropped and logged, never
	// relayed and never fatal for the connection.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	ErrUnknownRole = errors.New("unknown role")

	// ErrBackpressure means a participant's send buffer is full; the frame
	// is dropped for that participant only.
	ErrBackpressure = errors.New("backpressure")

	// ErrPeerConnectionFailed triggers full client teardown.
	ErrPeerConnectionFailed = errors.New("peer connection failed")

	// ErrSignalingClosed is distinct from a peer hangup so the UI can tell
	// "agent hung up" from "network dropped".
	ErrSignalingClosed = errors.New("signaling transport closed")

	// ErrMediaAcquisition is fatal for camera, recoverable for screen-share.
	ErrMediaAcquisition = errors.New("media acquisition failed")
)
