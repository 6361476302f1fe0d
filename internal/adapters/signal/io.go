package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

// writePump drains the send channel and emits unicast heartbeats so idle
// connections survive intermediary proxy timeouts. Heartbeats are never
// broadcast. The ticker is stopped exactly once via defer.
func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	heartbeat := time.NewTicker(ctl.Heartbeat)
	defer heartbeat.Stop()

	hbFrame, _ := json.Marshal(domain.HeartbeatEnvelope())

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := ctl.write(c, hbFrame); err != nil {
				// Half-closed socket; the read pump will detach.
				log.Warn().Err(err).Str("module", "signal").Msg("heartbeat write")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := ctl.write(c, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) write(c *wsConn, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump relays inbound envelopes until the socket closes or errors, then
// detaches the participant (which broadcasts the hangup and may delete the
// session) and cancels the write pump.
func (ctl *Controller) readPump(
	ctx context.Context,
	cancel context.CancelFunc,
	sessionID domain.SessionID,
	pid domain.ParticipantID,
	role domain.Role,
	c *wsConn,
) {
	defer func() {
		log.Info().Str("module", "signal").
			Str("session", string(sessionID)).
			Str("participant", string(pid)).
			Msg("readPump closing")
		ctl.Registry.Detach(sessionID, pid)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.relay(sessionID, pid, role, data)
		}
	}
}

// relay validates an inbound frame and forwards it to the other
// participants. The sender role is stamped from the connection context;
// whatever the client put there is discarded (spoofing guard). Malformed
// frames are logged and dropped; the connection survives.
func (ctl *Controller) relay(sessionID domain.SessionID, pid domain.ParticipantID, role domain.Role, data []byte) {
	env, err := domain.ParseEnvelope(data)
	if err != nil {
		log.Warn().Str("module", "signal").
			Str("session", string(sessionID)).
			Str("participant", string(pid)).
			Msg("malformed envelope dropped")
		return
	}
	if !env.Type.Relayable() {
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("non-relayable envelope dropped")
		return
	}
	env.SenderRole = role
	ctl.Registry.Broadcast(sessionID, env, pid)
}

var _ core.SignalConn = (*wsConn)(nil)
