package config

import (
	"fmt"
	"strings"

	"github.com/kiosklink/assist/internal/domain"
)

// DefaultSTUNURL is the safe built-in fallback when no ICE urls are
// configured and STUN has not been disabled.
const DefaultSTUNURL = "stun:stun.l.google.com:19302"

// ICEServers resolves the configured comma-separated url list into the
// server list handed to clients. STUN urls are grouped into one entry; TURN
// urls get their own entry carrying the credential pair.
func (c *Config) ICEServers() ([]domain.ICEServer, error) {
	urls := splitCommaSeparated(c.ICEURLs)

	if len(urls) == 0 {
		if c.DisableSTUN {
			return []domain.ICEServer{}, nil
		}
		return []domain.ICEServer{{URLs: []string{DefaultSTUNURL}}}, nil
	}

	var stun, turn []string
	for _, u := range urls {
		switch {
		case strings.HasPrefix(u, "stun:"), strings.HasPrefix(u, "stuns:"):
			stun = append(stun, u)
		case strings.HasPrefix(u, "turn:"), strings.HasPrefix(u, "turns:"):
			turn = append(turn, u)
		default:
			return nil, fmt.Errorf("ice_urls: unsupported url scheme in %q", u)
		}
	}

	var servers []domain.ICEServer
	if c.DisableSTUN {
		stun = nil
	}
	if len(stun) > 0 {
		servers = append(servers, domain.ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		user := strings.TrimSpace(c.TurnUsername)
		cred := strings.TrimSpace(c.TurnCredential)
		if user == "" || cred == "" {
			return nil, fmt.Errorf("turn_username/turn_credential: both must be set when turn urls are configured")
		}
		servers = append(servers, domain.ICEServer{URLs: turn, Username: user, Credential: cred})
	}
	if servers == nil {
		servers = []domain.ICEServer{}
	}
	return servers, nil
}

func splitCommaSeparated(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
