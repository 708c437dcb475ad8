package vision

import (
	"encoding/base64"
	"errors"
	"image"
	"time"
)

const (
	DefaultFrameWidth = 64
	MIMETypeJPEG      = "image/jpeg"
)

var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrEncodingFailure    = errors.New("encoding failure")
)

type Config struct {
	FrameWidth  int
	JPEGQuality int
}

// VideoSource is the live feed a Capturer samples from. Dimensions reports
// zero until the source is producing frames.
type VideoSource interface {
	Dimensions() (width, height int)
	Frame() (image.Image, error)
	Close() error
}

// Frame is an encoded still. Treat Data as read-only once captured.
type Frame struct {
	Data       []byte
	MIMEType   string
	Width      int
	Height     int
	CapturedAt time.Time
}

func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

func (f Frame) DataURI() string {
	mimeType := f.MIMEType
	if mimeType == "" {
		mimeType = MIMETypeJPEG
	}
	return "data:" + mimeType + ";base64," + f.Base64()
}

func (f Frame) IsZero() bool {
	return len(f.Data) == 0
}
