package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/overlord/internal/shared"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

var (
	ErrClosed       = errors.New("realtime manager closed")
	ErrInvalidOffer = errors.New("invalid offer")
)

// PacketSink receives the RTP packets of the active publisher.
type PacketSink interface {
	HandlePacket(pkt *rtp.Packet)
	Reset()
}

// Manager accepts browser webcam publishers. Only one publisher feeds the
// sink at a time; a newer offer replaces the current one.
type Manager struct {
	cfg    Config
	api    *webrtc.API
	sink   PacketSink
	logger *slog.Logger

	mu     sync.Mutex
	active *Peer
	closed bool
}

var videoRTCPFeedback = []webrtc.RTCPFeedback{
	{Type: webrtc.TypeRTCPFBNACK},
	{Type: webrtc.TypeRTCPFBNACK, Parameter: "pli"},
	{Type: webrtc.TypeRTCPFBGoogREMB},
}

func NewManager(cfg Config, sink PacketSink, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	me := &webrtc.MediaEngine{}
	if err := me.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     webrtc.MimeTypeVP8,
			ClockRate:    90000,
			RTCPFeedback: videoRTCPFeedback,
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, err
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
		return nil, err
	}

	se := &webrtc.SettingEngine{}

	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > cfg.PortRange.Min {
		if err := se.SetEphemeralUDPPortRange(uint16(cfg.PortRange.Min), uint16(cfg.PortRange.Max)); err != nil {
			return nil, err
		}
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(*se),
	)

	return &Manager{
		cfg:    cfg,
		api:    api,
		sink:   sink,
		logger: logger.With("component", "realtime"),
	}, nil
}

// Accept answers a publisher's offer and makes it the active video feed.
// ICE candidates are gathered before returning, so the answer is complete.
func (m *Manager) Accept(ctx context.Context, offerSDP string) (string, string, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return "", "", ErrClosed
	}

	pc, err := m.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: m.iceServers(),
	})
	if err != nil {
		return "", "", fmt.Errorf("create peer connection: %w", err)
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return "", "", fmt.Errorf("add video transceiver: %w", err)
	}

	peer := newPeer(shared.NewID("pub_"), pc, m.cfg.KeyframeInterval, m.forward, m.release, m.logger)

	answer, err := peer.answer(ctx, offerSDP, m.cfg.GatherTimeout)
	if err != nil {
		peer.Close()
		return "", "", err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		peer.Close()
		return "", "", ErrClosed
	}
	previous := m.active
	m.active = peer
	m.mu.Unlock()

	if m.sink != nil {
		m.sink.Reset()
	}
	if previous != nil {
		m.logger.Info("publisher replaced", "previous", previous.ID(), "session_id", peer.ID())
		previous.Close()
	} else {
		m.logger.Info("publisher connected", "session_id", peer.ID())
	}

	return peer.ID(), answer, nil
}

func (m *Manager) forward(p *Peer, pkt *rtp.Packet) {
	m.mu.Lock()
	current := m.active == p
	m.mu.Unlock()
	if current && m.sink != nil {
		m.sink.HandlePacket(pkt)
	}
}

// release drops p after its connection failed or closed.
func (m *Manager) release(p *Peer) {
	m.mu.Lock()
	if m.active == p {
		m.active = nil
	}
	m.mu.Unlock()
	p.Close()
}

// Remove hangs up the publisher with the given id.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	p := m.active
	if p == nil || p.ID() != id {
		m.mu.Unlock()
		return false
	}
	m.active = nil
	m.mu.Unlock()

	p.Close()
	m.logger.Info("publisher removed", "session_id", id)
	return true
}

// Active returns the id of the current publisher, or "" when none.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.ID()
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	p := m.active
	m.active = nil
	m.mu.Unlock()

	if p != nil {
		return p.Close()
	}
	return nil
}

func (m *Manager) iceServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(m.cfg.ICEServers))
	for _, s := range m.cfg.ICEServers {
		server := webrtc.ICEServer{
			URLs: s.URLs,
		}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}

	if len(servers) == 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}

	return servers
}

func (m *Manager) ICEServers() []ICEServerConfig {
	return m.cfg.ICEServers
}

func (m *Manager) Config() Config {
	return m.cfg
}
