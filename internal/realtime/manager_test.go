package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type recordingSink struct {
	mu      sync.Mutex
	packets int
	resets  int
}

func (s *recordingSink) HandlePacket(*rtp.Packet) {
	s.mu.Lock()
	s.packets++
	s.mu.Unlock()
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func (s *recordingSink) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

func newTestManager(t *testing.T, sink PacketSink) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{GatherTimeout: 500 * time.Millisecond}, sink, nil)
	if err != nil {
		t.Fatalf("NewManager should not error: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// publisherOffer builds the offer a browser sending one VP8 track would make.
func publisherOffer(t *testing.T) string {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video",
		"webcam",
	)
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		t.Fatalf("failed to add track: %v", err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("failed to create offer: %v", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("failed to set local description: %v", err)
	}
	return offer.SDP
}

func TestNewManager(t *testing.T) {
	mgr, err := NewManager(Config{}, nil, nil)
	if err != nil {
		t.Fatalf("NewManager should not error: %v", err)
	}
	if mgr == nil {
		t.Fatal("NewManager should not return nil")
	}
	if mgr.Active() != "" {
		t.Error("new manager should have no publisher")
	}
	if mgr.Config().GatherTimeout != defaultGatherTimeout {
		t.Errorf("expected defaults applied, got gather timeout %v", mgr.Config().GatherTimeout)
	}
}

func TestNewManager_WithPortRange(t *testing.T) {
	mgr, err := NewManager(Config{PortRange: PortRange{Min: 10000, Max: 20000}}, nil, nil)
	if err != nil {
		t.Fatalf("NewManager should not error: %v", err)
	}
	if mgr.cfg.PortRange.Min != 10000 || mgr.cfg.PortRange.Max != 20000 {
		t.Errorf("unexpected port range %+v", mgr.cfg.PortRange)
	}
}

func TestNewManager_InvalidPortRange(t *testing.T) {
	mgr, err := NewManager(Config{PortRange: PortRange{Min: 20000, Max: 10000}}, nil, nil)
	if err != nil {
		t.Fatalf("NewManager should not error with invalid port range: %v", err)
	}
	if mgr == nil {
		t.Fatal("should still create manager")
	}
}

func TestManager_iceServers_Default(t *testing.T) {
	mgr, _ := NewManager(Config{}, nil, nil)

	servers := mgr.iceServers()
	if len(servers) != 1 {
		t.Fatalf("expected 1 default ICE server, got %d", len(servers))
	}
	if servers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("expected default STUN server, got %s", servers[0].URLs[0])
	}
}

func TestManager_iceServers_Mixed(t *testing.T) {
	mgr, _ := NewManager(Config{
		ICEServers: []ICEServerConfig{
			{URLs: []string{"stun:stun.example.com"}},
			{URLs: []string{"turn:turn.example.com"}, Username: "user", Credential: "pass"},
		},
	}, nil, nil)

	servers := mgr.iceServers()
	if len(servers) != 2 {
		t.Fatalf("expected 2 ICE servers, got %d", len(servers))
	}
	if servers[0].Username != "" {
		t.Error("first server should not have credentials")
	}
	if servers[1].Username != "user" || servers[1].CredentialType != webrtc.ICECredentialTypePassword {
		t.Error("second server should have password credentials")
	}
}

func TestManager_Accept(t *testing.T) {
	sink := &recordingSink{}
	mgr := newTestManager(t, sink)

	id, answer, err := mgr.Accept(context.Background(), publisherOffer(t))
	if err != nil {
		t.Fatalf("Accept should not error: %v", err)
	}
	if !strings.HasPrefix(id, "pub_") {
		t.Errorf("expected pub_ session id, got %q", id)
	}
	if !strings.Contains(answer, "m=video") {
		t.Error("answer should contain a video section")
	}
	if !strings.Contains(answer, "VP8") {
		t.Error("answer should negotiate VP8")
	}
	if mgr.Active() != id {
		t.Errorf("expected active publisher %q, got %q", id, mgr.Active())
	}
	if sink.Resets() != 1 {
		t.Errorf("expected sink reset once, got %d", sink.Resets())
	}
}

func TestManager_Accept_LatestPublisherWins(t *testing.T) {
	mgr := newTestManager(t, &recordingSink{})

	first, _, err := mgr.Accept(context.Background(), publisherOffer(t))
	if err != nil {
		t.Fatalf("first Accept failed: %v", err)
	}
	second, _, err := mgr.Accept(context.Background(), publisherOffer(t))
	if err != nil {
		t.Fatalf("second Accept failed: %v", err)
	}

	if first == second {
		t.Fatal("publishers should have distinct ids")
	}
	if mgr.Active() != second {
		t.Errorf("expected second publisher active, got %q", mgr.Active())
	}
	if mgr.Remove(first) {
		t.Error("replaced publisher should not be removable")
	}
}

func TestManager_Accept_InvalidOffer(t *testing.T) {
	mgr := newTestManager(t, nil)

	_, _, err := mgr.Accept(context.Background(), "not an sdp")
	if !errors.Is(err, ErrInvalidOffer) {
		t.Fatalf("expected ErrInvalidOffer, got %v", err)
	}
	if mgr.Active() != "" {
		t.Error("failed offer should not become active")
	}
}

func TestManager_Remove(t *testing.T) {
	mgr := newTestManager(t, nil)

	if mgr.Remove("nonexistent") {
		t.Error("removing unknown publisher should report false")
	}

	id, _, err := mgr.Accept(context.Background(), publisherOffer(t))
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if !mgr.Remove(id) {
		t.Error("expected publisher to be removed")
	}
	if mgr.Active() != "" {
		t.Error("no publisher should be active after removal")
	}
}

func TestManager_Close(t *testing.T) {
	mgr := newTestManager(t, nil)

	if _, _, err := mgr.Accept(context.Background(), publisherOffer(t)); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close should not error: %v", err)
	}
	if mgr.Active() != "" {
		t.Error("Close should drop the active publisher")
	}
	if err := mgr.Close(); err != nil {
		t.Error("second Close should be a no-op")
	}

	_, _, err := mgr.Accept(context.Background(), publisherOffer(t))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestManager_forward_OnlyActivePublisher(t *testing.T) {
	sink := &recordingSink{}
	mgr := newTestManager(t, sink)

	active := &Peer{id: "pub_active"}
	stale := &Peer{id: "pub_stale"}
	mgr.active = active

	mgr.forward(stale, &rtp.Packet{})
	mgr.forward(active, &rtp.Packet{})
	mgr.forward(active, &rtp.Packet{})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.packets != 2 {
		t.Errorf("expected 2 forwarded packets, got %d", sink.packets)
	}
	mgr.active = nil
}
