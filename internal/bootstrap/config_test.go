package bootstrap

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.ServerAddr)
	}
	if cfg.HistoryLength != 2 {
		t.Errorf("expected history length 2, got %d", cfg.HistoryLength)
	}
	if cfg.FrameWidth != 64 {
		t.Errorf("expected frame width 64, got %d", cfg.FrameWidth)
	}
	if cfg.VideoSource != VideoSourceRTP {
		t.Errorf("expected rtp video source, got %s", cfg.VideoSource)
	}
	if cfg.DatabaseDriver != DatabaseDriverSQLite {
		t.Errorf("expected sqlite driver, got %s", cfg.DatabaseDriver)
	}
	if len(cfg.RTCICEServers) != 1 || cfg.RTCICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("unexpected default ICE servers %+v", cfg.RTCICEServers)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("HISTORY_LENGTH", "6")
	t.Setenv("CHAT_TIMEOUT", "15s")
	t.Setenv("AUTO_START", "true")
	t.Setenv("VIDEO_SOURCE", "WebRTC")
	t.Setenv("RTC_PORT_MIN", "40000")
	t.Setenv("RTC_PORT_MAX", "40100")
	t.Setenv("FRAME_WIDTH", "not-a-number")

	cfg := LoadConfig()

	if cfg.ServerAddr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.ServerAddr)
	}
	if cfg.HistoryLength != 6 {
		t.Errorf("expected history length 6, got %d", cfg.HistoryLength)
	}
	if cfg.ChatTimeout != 15*time.Second {
		t.Errorf("expected 15s chat timeout, got %v", cfg.ChatTimeout)
	}
	if !cfg.AutoStart {
		t.Error("expected auto start")
	}
	if cfg.VideoSource != VideoSourceWebRTC {
		t.Errorf("expected webrtc video source, got %s", cfg.VideoSource)
	}
	if cfg.RTCPortMin != 40000 || cfg.RTCPortMax != 40100 {
		t.Errorf("unexpected port range %d-%d", cfg.RTCPortMin, cfg.RTCPortMax)
	}
	if cfg.FrameWidth != 64 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.FrameWidth)
	}
}

func TestParseICEServers(t *testing.T) {
	servers := parseICEServers(" stun:a.example.com , turn:b.example.com,,turns:c.example.com ", "user", "secret")
	if len(servers) != 3 {
		t.Fatalf("expected 3 servers, got %d", len(servers))
	}
	if servers[0].URLs[0] != "stun:a.example.com" || servers[0].Username != "" {
		t.Errorf("stun server should be trimmed and credential-free, got %+v", servers[0])
	}
	if servers[1].Username != "user" || servers[1].Credential != "secret" {
		t.Errorf("turn server should carry credentials, got %+v", servers[1])
	}
	if servers[2].Username != "user" {
		t.Errorf("turns server should carry credentials, got %+v", servers[2])
	}

	servers = parseICEServers(" , ", "", "")
	if len(servers) != 1 || servers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("empty list should fall back to default STUN, got %+v", servers)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DEBUG",
		"warn":  "WARN",
		"error": "ERROR",
		"info":  "INFO",
		"":      "INFO",
	}
	for in, want := range tests {
		if got := parseLogLevel(in).String(); got != want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
