// Package client holds the kiosk/agent-side adapters: the registry REST
// client and the signaling websocket transport the peer controller uses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kiosklink/assist/internal/core"
	"github.com/kiosklink/assist/internal/domain"
)

// SessionClient talks to the registry's REST surface.
type SessionClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewSessionClient(baseURL string) *SessionClient {
	return &SessionClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SessionClient) CreateSession(ctx context.Context) (domain.SessionID, []domain.ICEServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/sessions", bytes.NewReader(nil))
	if err != nil {
		return "", nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("create session: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		SessionID  domain.SessionID   `json:"sessionId"`
		ICEServers []domain.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	return body.SessionID, body.ICEServers, nil
}

var _ core.SessionAPI = (*SessionClient)(nil)
