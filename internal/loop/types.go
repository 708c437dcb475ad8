package loop

import (
	"context"
	"errors"
	"time"

	"github.com/eleven-am/overlord/internal/conversation"
	"github.com/eleven-am/overlord/internal/insult"
	"github.com/eleven-am/overlord/internal/reveal"
	"github.com/eleven-am/overlord/internal/vision"
)

const (
	DefaultPlaceholder = "The AI Overlord is pondering your existence..."

	TextNoVideo       = "No video frame available."
	TextCaptureFailed = "Failed to capture image."
)

var ErrClosed = errors.New("loop controller closed")

type Capturer interface {
	Capture(src vision.VideoSource) (vision.Frame, error)
}

type Requester interface {
	Request(ctx context.Context, hist *conversation.History, frame vision.Frame) insult.Result
}

type Revealer interface {
	Reveal(ctx context.Context, text string, publish func(reveal.Progress)) error
}

// Recorder receives one record per completed cycle of a running loop.
type Recorder interface {
	Record(ctx context.Context, rec CycleRecord) error
}

type CycleRecord struct {
	RunID     string
	Cycle     uint64
	Text      string
	Outcome   insult.Outcome
	Err       error
	Latency   time.Duration
	Frame     vision.Frame
	Appended  bool
	StartedAt time.Time
	Duration  time.Duration
}

// State is what the display layer renders.
type State struct {
	RunID     string       `json:"run_id,omitempty"`
	Running   bool         `json:"running"`
	Cycle     uint64       `json:"cycle"`
	Text      string       `json:"text"`
	Phase     reveal.Phase `json:"phase,omitempty"`
	Status    string       `json:"status,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func statusFor(outcome insult.Outcome) string {
	switch outcome {
	case insult.OutcomeCaptureUnavailable:
		return "Could not access webcam."
	case insult.OutcomeEncodingFailure:
		return TextCaptureFailed
	case insult.OutcomeTransportFailure:
		return insult.TextSendFailed
	case insult.OutcomeParseFailure:
		return "Received a malformed response."
	case insult.OutcomeRequestFailure:
		return insult.TextRequestFailed
	default:
		return ""
	}
}

type RecorderFunc func(ctx context.Context, rec CycleRecord) error

func (f RecorderFunc) Record(ctx context.Context, rec CycleRecord) error {
	return f(ctx, rec)
}

type FrameSink interface {
	StoreFrame(ctx context.Context, runID string, frame vision.Frame) error
}

// FrameRecorder keeps the frame of every cycle that captured one.
func FrameRecorder(sink FrameSink) Recorder {
	return RecorderFunc(func(ctx context.Context, rec CycleRecord) error {
		if rec.Frame.IsZero() {
			return nil
		}
		return sink.StoreFrame(ctx, rec.RunID, rec.Frame)
	})
}
