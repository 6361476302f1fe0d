package annotation

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

// ChannelLabel names the dedicated reliable data channel. Channels with any
// other label are ignored by this protocol.
const ChannelLabel = "annotations"

// Sender is the drawing side of the channel. Sends are fire-and-forget:
// a closed channel means annotations stop appearing, nothing more.
type Sender struct {
	dc core.DataChannel
}

// Open creates the labeled channel on the initiating peer's link. Call it
// before the offer is created so the channel rides the first negotiation.
func Open(link core.PeerLink) (*Sender, error) {
	dc, err := link.CreateDataChannel(ChannelLabel)
	if err != nil {
		return nil, err
	}
	return &Sender{dc: dc}, nil
}

func (s *Sender) Draw(a domain.Annotation) error {
	return s.send(domain.AnnotationMessage{Type: domain.AnnotationMsgDraw, Annotation: a})
}

// Clear removes one annotation on the remote side, or all when id is empty.
func (s *Sender) Clear(id string) error {
	return s.send(domain.AnnotationMessage{Type: domain.AnnotationMsgClear, TargetID: id})
}

func (s *Sender) send(msg domain.AnnotationMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.dc.SendText(b)
}

func (s *Sender) Close() error { return s.dc.Close() }

// Listen attaches the receiving side: it waits for a channel with the
// protocol label and feeds its messages into the store. Malformed bodies
// are logged and dropped.
func Listen(link core.PeerLink, store *Store) {
	link.OnDataChannel(func(dc core.DataChannel) {
		if dc.Label() != ChannelLabel {
			return
		}
		Attach(dc, store)
	})
}

// Attach binds message handling for an already-discovered channel.
func Attach(dc core.DataChannel, store *Store) {
	dc.OnMessage(func(data []byte) {
		msg, err := domain.ParseAnnotationMessage(data)
		if err != nil {
			log.Warn().Str("module", "annotation").Msg("malformed annotation message dropped")
			return
		}
		store.Apply(msg)
	})
	log.Info().Str("module", "annotation").Str("label", dc.Label()).Msg("annotation channel attached")
}
