package config

import (
	"strings"
	"testing"
)

func TestICEServersDefault(t *testing.T) {
	cfg := &Config{}
	servers, err := cfg.ICEServers()
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 || servers[0].URLs[0] != DefaultSTUNURL {
		t.Fatalf("expected the built-in STUN default, got %v", servers)
	}
}

func TestICEServersDisabled(t *testing.T) {
	cfg := &Config{DisableSTUN: true}
	servers, err := cfg.ICEServers()
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 0 {
		t.Fatalf("disable_stun should force an empty list, got %v", servers)
	}
}

func TestICEServersGrouping(t *testing.T) {
	cfg := &Config{
		ICEURLs:        "stun:stun.example.org:3478, turn:turn.example.org:3478, stun:stun2.example.org:3478",
		TurnUsername:   "assist",
		TurnCredential: "secret",
	}
	servers, err := cfg.ICEServers()
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected stun group + turn group, got %v", servers)
	}
	if len(servers[0].URLs) != 2 {
		t.Fatalf("stun urls not grouped: %v", servers[0])
	}
	if servers[1].Username != "assist" || servers[1].Credential != "secret" {
		t.Fatalf("turn credentials missing: %+v", servers[1])
	}
}

func TestICEServersTurnRequiresCredentials(t *testing.T) {
	cfg := &Config{ICEURLs: "turn:turn.example.org:3478"}
	if _, err := cfg.ICEServers(); err == nil || !strings.Contains(err.Error(), "turn_username") {
		t.Fatalf("expected credential pairing error, got %v", err)
	}
}

func TestICEServersRejectsUnknownScheme(t *testing.T) {
	cfg := &Config{ICEURLs: "http://not-ice.example.org"}
	if _, err := cfg.ICEServers(); err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestICEServersDisableSTUNKeepsTURN(t *testing.T) {
	cfg := &Config{
		ICEURLs:        "stun:stun.example.org:3478,turn:turn.example.org:3478",
		TurnUsername:   "assist",
		TurnCredential: "secret",
		DisableSTUN:    true,
	}
	servers, err := cfg.ICEServers()
	if err != nil {
		t.Fatal(err)
	}
	if len(servers) != 1 || !strings.HasPrefix(servers[0].URLs[0], "turn:") {
		t.Fatalf("expected turn-only list, got %v", servers)
	}
}
