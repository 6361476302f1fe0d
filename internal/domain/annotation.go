package domain

import (
	"encoding/json"
	"time"
)

// DefaultAnnotationTTL is applied when an annotation carries no ttlMs.
const DefaultAnnotationTTL = 20 * time.Second

type AnnotationShape string

const (
	ShapeCircle AnnotationShape = "circle"
	ShapeArrow  AnnotationShape = "arrow"
)

// NormalizedPoint is coordinate-system independent, both axes in [0,1].
type NormalizedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p NormalizedPoint) Valid() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

// Annotation is one overlay shape drawn by the agent. Ids are unique per
// drawing gesture; redelivery replaces the prior entry (last-write-wins).
type Annotation struct {
	ID    string          `json:"id"`
	Shape AnnotationShape `json:"shape"`
	Start NormalizedPoint `json:"start"`
	End   NormalizedPoint `json:"end"`
	Color string          `json:"color,omitempty"`
	TTLMs int             `json:"ttlMs,omitempty"`
}

// TTL returns the effective lifetime of the annotation.
func (a Annotation) TTL() time.Duration {
	if a.TTLMs <= 0 {
		return DefaultAnnotationTTL
	}
	return time.Duration(a.TTLMs) * time.Millisecond
}

func (a Annotation) Valid() bool {
	if a.ID == "" {
		return false
	}
	if a.Shape != ShapeCircle && a.Shape != ShapeArrow {
		return false
	}
	return a.Start.Valid() && a.End.Valid()
}

type AnnotationMessageType string

const (
	AnnotationMsgDraw  AnnotationMessageType = "annotation"
	AnnotationMsgClear AnnotationMessageType = "clear"
)

// AnnotationMessage is the wire union carried over the annotation data
// channel: a draw (embedding the Annotation fields) or a clear.
type AnnotationMessage struct {
	Type AnnotationMessageType `json:"type"`
	Annotation
	// TargetID selects one annotation to clear; empty clears all.
	TargetID string `json:"targetId,omitempty"`
}

func ParseAnnotationMessage(data []byte) (AnnotationMessage, error) {
	var msg AnnotationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return AnnotationMessage{}, ErrMalformedEnvelope
	}
	switch msg.Type {
	case AnnotationMsgDraw:
		if !msg.Annotation.Valid() {
			return AnnotationMessage{}, ErrMalformedEnvelope
		}
	case AnnotationMsgClear:
	default:
		return AnnotationMessage{}, ErrMalformedEnvelope
	}
	return msg, nil
}
