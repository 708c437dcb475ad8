package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/eleven-am/overlord/internal/loop"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait            = 10 * time.Second
	pongWait             = 60 * time.Second
	pingPeriod           = (pongWait * 9) / 10
	maxMessageSize       = 4 * 1024
	sseKeepAliveInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Command struct {
	Command string `json:"command"`
}

type commandReply struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

type stateEvent struct {
	Type  string     `json:"type"`
	State loop.State `json:"state"`
}

// Events streams loop state. Clients asking for text/event-stream get SSE;
// everyone else is upgraded to a WebSocket that also takes commands.
func (h *Handler) Events(c echo.Context) error {
	accept := c.Request().Header.Get("Accept")
	if strings.Contains(accept, "text/event-stream") {
		return h.handleSSE(c)
	}
	return h.handleWebSocket(c)
}

func (h *Handler) handleSSE(c echo.Context) error {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	states, unsubscribe := h.loop.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	h.logger.Debug("state stream opened (SSE)")
	defer h.logger.Debug("state stream closed (SSE)")

	for {
		select {
		case s, ok := <-states:
			if !ok {
				return nil
			}
			data, err := json.Marshal(s)
			if err != nil {
				return err
			}
			if _, err := w.Write([]byte("event: state\ndata: ")); err != nil {
				return nil
			}
			if _, err := w.Write(data); err != nil {
				return nil
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Handler) handleWebSocket(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	states, unsubscribe := h.loop.Subscribe()
	defer unsubscribe()

	replies := make(chan commandReply, 8)

	h.logger.Debug("state stream opened (WebSocket)")
	go h.readCommands(ctx, cancel, ws, replies)
	h.writeStates(ctx, ws, states, replies)
	h.logger.Debug("state stream closed (WebSocket)")
	return nil
}

func (h *Handler) readCommands(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, replies chan<- commandReply) {
	defer cancel()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		reply := h.applyCommand(message)
		select {
		case replies <- reply:
		case <-ctx.Done():
			return
		default:
			h.logger.Warn("reply buffer full, dropping reply", "command", reply.Command)
		}
	}
}

func (h *Handler) applyCommand(message []byte) commandReply {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		return commandReply{Type: "error", Error: "invalid command"}
	}

	switch cmd.Command {
	case "start":
		if err := h.loop.Start(); err != nil {
			return commandReply{Type: "error", Command: cmd.Command, Error: err.Error()}
		}
	case "stop":
		h.loop.Stop()
	default:
		return commandReply{Type: "error", Command: cmd.Command, Error: "unknown command"}
	}
	return commandReply{Type: "ack", Command: cmd.Command}
}

func (h *Handler) writeStates(ctx context.Context, ws *websocket.Conn, states <-chan loop.State, replies <-chan commandReply) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	write := func(v any) bool {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(v); err != nil {
			h.logger.Warn("websocket write error", "error", err)
			return false
		}
		return true
	}

	for {
		select {
		case s, ok := <-states:
			if !ok {
				_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if !write(stateEvent{Type: "state", State: s}) {
				return
			}
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
