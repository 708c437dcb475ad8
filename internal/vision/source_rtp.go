package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const rtpReadBufferSize = 1500

var errNoFrameYet = errors.New("no frame decoded yet")

// RTPSource turns an RTP video stream arriving on a UDP socket into a
// VideoSource that always reports the most recently decoded picture.
type RTPSource struct {
	addr     string
	mimeType string
	decoder  VideoDecoder
	logger   *slog.Logger

	mu            sync.RWMutex
	sampleBuilder *samplebuilder.SampleBuilder
	latest        image.Image
	conn          net.PacketConn
	stopped       bool
	done          chan struct{}
}

type RTPSourceConfig struct {
	Addr     string
	MIMEType string
	Decoder  VideoDecoder
	Logger   *slog.Logger
}

func NewRTPSource(cfg RTPSourceConfig) *RTPSource {
	if cfg.MIMEType == "" {
		cfg.MIMEType = "video/VP8"
	}
	if cfg.Decoder == nil {
		cfg.Decoder = NewVPXDecoder()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RTPSource{
		addr:     cfg.Addr,
		mimeType: cfg.MIMEType,
		decoder:  cfg.Decoder,
		logger:   cfg.Logger.With("component", "rtp-source", "addr", cfg.Addr),
	}
}

// Listen binds the UDP socket and starts reading packets in the background.
func (s *RTPSource) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", s.addr)
	if err != nil {
		return fmt.Errorf("listen rtp: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return errors.New("rtp source closed")
	}
	s.conn = conn
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("listening for rtp video", "local_addr", conn.LocalAddr().String(), "mime_type", s.mimeType)

	go s.readLoop(conn, s.done)
	return nil
}

func (s *RTPSource) LocalAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *RTPSource) readLoop(conn net.PacketConn, done chan struct{}) {
	defer close(done)

	buf := make([]byte, rtpReadBufferSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Debug("rtp read failed", "error", err)
			continue
		}

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(append([]byte(nil), buf[:n]...)); err != nil {
			s.logger.Debug("rtp unmarshal failed", "error", err)
			continue
		}
		s.HandlePacket(pkt)
	}
}

func (s *RTPSource) HandlePacket(pkt *rtp.Packet) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	if s.sampleBuilder == nil {
		s.sampleBuilder = s.createSampleBuilder(s.mimeType)
		if s.sampleBuilder == nil {
			s.mu.Unlock()
			return
		}
	}

	s.sampleBuilder.Push(pkt)

	var samples [][]byte
	for {
		sample := s.sampleBuilder.Pop()
		if sample == nil {
			break
		}
		samples = append(samples, sample.Data)
	}
	s.mu.Unlock()

	for _, data := range samples {
		s.decode(data)
	}
}

// Reset drops any partially assembled frame. Call it when a different
// publisher takes over the stream; the last decoded picture is kept.
func (s *RTPSource) Reset() {
	s.mu.Lock()
	s.sampleBuilder = nil
	s.mu.Unlock()
}

func (s *RTPSource) createSampleBuilder(mimeType string) *samplebuilder.SampleBuilder {
	switch mimeType {
	case "video/VP8":
		return samplebuilder.New(64, &codecs.VP8Packet{}, 90000)
	case "video/VP9":
		return samplebuilder.New(64, &codecs.VP9Packet{}, 90000)
	case "video/H264":
		return samplebuilder.New(64, &codecs.H264Packet{}, 90000)
	default:
		s.logger.Warn("unsupported video codec", "mime_type", mimeType)
		return nil
	}
}

func (s *RTPSource) decode(data []byte) {
	img, err := s.decoder.Decode(data, s.mimeType)
	if err != nil {
		s.logger.Debug("frame decode failed", "error", err)
		return
	}

	s.mu.Lock()
	if !s.stopped {
		s.latest = img
	}
	s.mu.Unlock()
}

func (s *RTPSource) Dimensions() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return 0, 0
	}
	b := s.latest.Bounds()
	return b.Dx(), b.Dy()
}

func (s *RTPSource) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, errNoFrameYet
	}
	return s.latest, nil
}

// Close stops the reader and releases the socket and decoder. Safe to call
// more than once.
func (s *RTPSource) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.latest = nil
	conn := s.conn
	done := s.done
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
		<-done
	}
	if s.decoder != nil {
		if derr := s.decoder.Close(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
