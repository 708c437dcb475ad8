package realtime

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T, cfg Config) (*Handler, *Manager) {
	t.Helper()
	mgr, err := NewManager(cfg, &recordingSink{}, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return NewHandler(mgr, slog.New(slog.NewTextHandler(io.Discard, nil))), mgr
}

func TestNewHandler(t *testing.T) {
	mgr, _ := NewManager(Config{}, nil, nil)
	h := NewHandler(mgr, nil)
	if h.manager != mgr {
		t.Error("handler should use provided manager")
	}
	if h.log == nil {
		t.Error("handler should have default logger")
	}
}

func TestHandler_maxSDPSize(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	if h.maxSDPSize() != 64*1024 {
		t.Errorf("expected default max SDP size 64KB, got %d", h.maxSDPSize())
	}

	h, _ = newTestHandler(t, Config{MaxSDPSize: 128 * 1024})
	if h.maxSDPSize() != 128*1024 {
		t.Errorf("expected custom max SDP size 128KB, got %d", h.maxSDPSize())
	}
}

func TestHandler_HandleICEServers(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, Config{
		ICEServers: []ICEServerConfig{
			{URLs: []string{"stun:stun.example.com"}},
			{URLs: []string{"turn:turn.example.com"}, Username: "user", Credential: "pass"},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/video/ice-servers", nil)
	rec := httptest.NewRecorder()
	if err := h.HandleICEServers(e.NewContext(req, rec)); err != nil {
		t.Fatalf("HandleICEServers should not error: %v", err)
	}

	var resp ICEServersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.ICEServers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(resp.ICEServers))
	}
	if resp.ICEServers[1].Username != "user" {
		t.Errorf("expected username 'user', got %s", resp.ICEServers[1].Username)
	}
}

func TestHandler_iceServersResponse_Default(t *testing.T) {
	h, _ := newTestHandler(t, Config{})
	servers := h.iceServersResponse()
	if len(servers) != 1 || servers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Errorf("expected default STUN server, got %+v", servers)
	}
}

func TestHandler_extractSDP(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
		wantErr     bool
	}{
		{name: "json", contentType: "application/json", body: `{"sdp":"v=0\r\n..."}`, want: "v=0\r\n..."},
		{name: "empty content type", body: `{"sdp":"test-sdp"}`, want: "test-sdp"},
		{name: "raw sdp", contentType: "application/sdp", body: "v=0\r\no=- 123 456 IN IP4 127.0.0.1\r\n", want: "v=0\r\no=- 123 456 IN IP4 127.0.0.1\r\n"},
		{name: "invalid json", contentType: "application/json", body: "{", wantErr: true},
		{name: "unsupported", contentType: "text/plain", body: "data", wantErr: true},
	}

	e := echo.New()
	h, _ := newTestHandler(t, Config{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/video/offer", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			sdp, err := h.extractSDP(e.NewContext(req, httptest.NewRecorder()))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extractSDP should not error: %v", err)
			}
			if sdp != tt.want {
				t.Errorf("expected %q, got %q", tt.want, sdp)
			}
		})
	}
}

func TestHandler_extractSDP_Multipart(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, Config{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	other, _ := writer.CreateFormField("other")
	other.Write([]byte("ignored"))
	part, _ := writer.CreateFormField("sdp")
	part.Write([]byte("multipart-sdp-content"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/video/offer", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	sdp, err := h.extractSDP(e.NewContext(req, httptest.NewRecorder()))
	if err != nil {
		t.Fatalf("extractSDP should not error: %v", err)
	}
	if sdp != "multipart-sdp-content" {
		t.Errorf("expected multipart SDP, got %s", sdp)
	}
}

func TestHandler_extractSDP_MultipartNoSDP(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t, Config{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, _ := writer.CreateFormField("other")
	part.Write([]byte("not-sdp"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/video/offer", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if _, err := h.extractSDP(e.NewContext(req, httptest.NewRecorder())); err == nil {
		t.Error("extractSDP should error when sdp field not found")
	}
}

func TestHandler_Routes(t *testing.T) {
	e := echo.New()
	h, mgr := newTestHandler(t, Config{GatherTimeout: 500 * time.Millisecond})
	h.RegisterRoutes(e.Group("/v1"))
	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/video/offer", "application/sdp", strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty offer: expected 400, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/v1/video/offer", "application/sdp", strings.NewReader("garbage"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid offer: expected 400, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/v1/video/offer", "application/sdp", strings.NewReader(publisherOffer(t)))
	if err != nil {
		t.Fatal(err)
	}
	answer, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid offer: expected 200, got %d: %s", resp.StatusCode, answer)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/sdp") {
		t.Errorf("expected application/sdp answer, got %q", ct)
	}
	id := resp.Header.Get("X-Session-Id")
	if id == "" || id != mgr.Active() {
		t.Errorf("expected X-Session-Id to match active publisher, got %q", id)
	}

	resp, err = http.Get(srv.URL + "/v1/video")
	if err != nil {
		t.Fatal(err)
	}
	var pub PublisherResponse
	json.NewDecoder(resp.Body).Decode(&pub)
	resp.Body.Close()
	if !pub.Active || pub.SessionID != id {
		t.Errorf("unexpected publisher response %+v", pub)
	}

	del := func(path string) int {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := del("/v1/video/pub_missing"); code != http.StatusNotFound {
		t.Errorf("unknown hangup: expected 404, got %d", code)
	}
	if code := del("/v1/video/" + id); code != http.StatusNoContent {
		t.Errorf("hangup: expected 204, got %d", code)
	}
	if mgr.Active() != "" {
		t.Error("publisher should be gone after hangup")
	}
}
