package insult

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	DefaultModel    = "qwen/qwen2.5-vl-7b"
	CompletionsPath = "/v1/chat/completions"
	ModelsPath      = "/v1/models"

	TextNoResponse    = "No response."
	TextSendFailed    = "Failed to send image."
	TextRequestFailed = "Failed to request insult."
)

var (
	ErrTransport = errors.New("transport failure")
	ErrParse     = errors.New("parse failure")
)

type Config struct {
	BaseURL       string
	Model         string
	Timeout       time.Duration
	HistoryLength int
	SystemPrompt  string
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ImageURL struct {
	URL string `json:"url"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Message is one role-tagged turn. Content is sent as a plain string unless
// Parts is set, in which case it is sent as a content-part array.
type Message struct {
	Role  Role
	Text  string
	Parts []ContentPart
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.Parts != nil {
		return json.Marshal(struct {
			Role    Role          `json:"role"`
			Content []ContentPart `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Text})
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeNoContent          Outcome = "no_content"
	OutcomeTransportFailure   Outcome = "transport_failure"
	OutcomeParseFailure       Outcome = "parse_failure"
	OutcomeRequestFailure     Outcome = "request_failure"
	OutcomeCaptureUnavailable Outcome = "capture_unavailable"
	OutcomeEncodingFailure    Outcome = "encoding_failure"
)

// Succeeded reports whether the outcome produced a turn worth remembering.
func (o Outcome) Succeeded() bool {
	return o == OutcomeOK || o == OutcomeNoContent
}

// Result is always displayable: Text holds either the model output or a
// fallback line. Err carries the cause for logs only.
type Result struct {
	Text     string
	Outcome  Outcome
	Err      error
	Latency  time.Duration
	Appended bool
}
