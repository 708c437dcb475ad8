package vision

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/webp"
)

// StillSource serves the same picture on every capture. Used for kiosks
// without a camera, the snap command and tests.
type StillSource struct {
	mu     sync.RWMutex
	img    image.Image
	closed bool
}

func NewStillSource(img image.Image) *StillSource {
	return &StillSource{img: img}
}

func OpenStillSource(path string) (*StillSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	if format == "" {
		return nil, errors.New("unknown image format")
	}
	return NewStillSource(img), nil
}

func (s *StillSource) Dimensions() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *StillSource) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("source closed")
	}
	if s.img == nil {
		return nil, errNoFrameYet
	}
	return s.img, nil
}

func (s *StillSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
