package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// Peer is one publisher's receive-only connection.
type Peer struct {
	id               string
	pc               *webrtc.PeerConnection
	keyframeInterval time.Duration
	forward          func(*Peer, *rtp.Packet)
	logger           *slog.Logger

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newPeer(
	id string,
	pc *webrtc.PeerConnection,
	keyframeInterval time.Duration,
	forward func(*Peer, *rtp.Packet),
	onGone func(*Peer),
	logger *slog.Logger,
) *Peer {
	p := &Peer{
		id:               id,
		pc:               pc,
		keyframeInterval: keyframeInterval,
		forward:          forward,
		logger:           logger.With("session_id", id),
		done:             make(chan struct{}),
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		codec := track.Codec()
		p.logger.Info("track received", "kind", track.Kind().String(), "codec", codec.MimeType)
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		go p.requestKeyframes(uint32(track.SSRC()))
		go p.readVideo(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		p.logger.Debug("connection state changed", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			if onGone != nil {
				go onGone(p)
			}
		}
	})

	return p
}

func (p *Peer) ID() string {
	return p.id
}

func (p *Peer) Done() <-chan struct{} {
	return p.done
}

func (p *Peer) answer(ctx context.Context, offerSDP string, gatherTimeout time.Duration) (string, error) {
	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOffer, err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	timer := time.NewTimer(gatherTimeout)
	defer timer.Stop()

	select {
	case <-gathered:
	case <-timer.C:
		p.logger.Warn("ice gathering timed out, answering with partial candidates")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	local := p.pc.LocalDescription()
	if local == nil {
		return "", errors.New("no local description")
	}
	return local.SDP, nil
}

func (p *Peer) readVideo(track *webrtc.TrackRemote) {
	count := 0
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			p.logger.Debug("video track ended", "packets", count, "error", err)
			return
		}
		count++
		p.forward(p, pkt)
	}
}

// requestKeyframes sends a PLI on a fixed cadence so a decoder that joined
// mid-stream, or lost packets, recovers without waiting for the encoder.
func (p *Peer) requestKeyframes(ssrc uint32) {
	ticker := time.NewTicker(p.keyframeInterval)
	defer ticker.Stop()

	for {
		if err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
			p.logger.Debug("keyframe request failed", "error", err)
		}
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}
	}
}

func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.closeErr = p.pc.Close()
	})
	return p.closeErr
}
