package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"time"

	"golang.org/x/image/draw"
)

type Capturer struct {
	width   int
	quality int
	now     func() time.Time
}

func NewCapturer(cfg Config) *Capturer {
	if cfg.FrameWidth <= 0 {
		cfg.FrameWidth = DefaultFrameWidth
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 80
	}
	return &Capturer{
		width:   cfg.FrameWidth,
		quality: cfg.JPEGQuality,
		now:     time.Now,
	}
}

// Capture samples the current frame of src, scales it to the configured
// width keeping the aspect ratio and returns it JPEG encoded.
func (c *Capturer) Capture(src VideoSource) (Frame, error) {
	if src == nil {
		return Frame{}, fmt.Errorf("%w: no video source", ErrCaptureUnavailable)
	}

	if w, h := src.Dimensions(); w <= 0 || h <= 0 {
		return Frame{}, fmt.Errorf("%w: source is %dx%d", ErrCaptureUnavailable, w, h)
	}

	img, err := src.Frame()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	if img == nil || img.Bounds().Empty() {
		return Frame{}, fmt.Errorf("%w: empty frame", ErrCaptureUnavailable)
	}

	// The source may have changed resolution since Dimensions; scale what
	// was actually returned.
	bounds := img.Bounds()
	dstW, dstH := ScaledSize(c.width, bounds.Dx(), bounds.Dy())
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.quality}); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrEncodingFailure, err)
	}
	if buf.Len() == 0 {
		return Frame{}, fmt.Errorf("%w: empty output", ErrEncodingFailure)
	}

	return Frame{
		Data:       buf.Bytes(),
		MIMEType:   MIMETypeJPEG,
		Width:      dstW,
		Height:     dstH,
		CapturedAt: c.now(),
	}, nil
}

// ScaledSize returns width x round(width*srcH/srcW), never less than 1px tall.
func ScaledSize(width, srcW, srcH int) (int, int) {
	h := int(math.Round(float64(width) * float64(srcH) / float64(srcW)))
	if h < 1 {
		h = 1
	}
	return width, h
}
