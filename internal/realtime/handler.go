package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	manager *Manager
	log     *slog.Logger
}

func NewHandler(mgr *Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		manager: mgr,
		log:     log,
	}
}

type OfferRequest struct {
	SDP string `json:"sdp"`
}

type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type ICEServersResponse struct {
	ICEServers []ICEServer `json:"ice_servers"`
}

type PublisherResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Active    bool   `json:"active"`
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/video/offer", h.HandleOffer)
	g.GET("/video", h.HandlePublisher)
	g.DELETE("/video/:session_id", h.HandleHangup)
	g.GET("/video/ice-servers", h.HandleICEServers)
}

func (h *Handler) HandleICEServers(c echo.Context) error {
	return c.JSON(http.StatusOK, ICEServersResponse{ICEServers: h.iceServersResponse()})
}

func (h *Handler) HandlePublisher(c echo.Context) error {
	id := h.manager.Active()
	return c.JSON(http.StatusOK, PublisherResponse{SessionID: id, Active: id != ""})
}

func (h *Handler) HandleHangup(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing session id")
	}
	if !h.manager.Remove(sessionID) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleOffer(c echo.Context) error {
	sdp, err := h.extractSDP(c)
	if err != nil {
		h.log.Warn("failed to extract offer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if sdp == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing sdp")
	}

	id, answer, err := h.manager.Accept(c.Request().Context(), sdp)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidOffer):
		h.log.Warn("rejected offer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "failed to process offer")
	case errors.Is(err, ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "video ingest is shutting down")
	default:
		h.log.Error("failed to accept offer", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create answer")
	}

	c.Response().Header().Set("X-Session-Id", id)
	c.Response().Header().Set("Content-Type", "application/sdp")
	return c.String(http.StatusOK, answer)
}

func (h *Handler) maxSDPSize() int64 {
	maxSize := h.manager.Config().MaxSDPSize
	if maxSize <= 0 {
		maxSize = defaultMaxSDPSize
	}
	return int64(maxSize)
}

func (h *Handler) iceServersResponse() []ICEServer {
	cfgServers := h.manager.ICEServers()
	servers := make([]ICEServer, 0, len(cfgServers))

	for _, s := range cfgServers {
		servers = append(servers, ICEServer(s))
	}

	if len(servers) == 0 {
		servers = append(servers, ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}

	return servers
}

func (h *Handler) extractSDP(c echo.Context) (string, error) {
	contentType := c.Request().Header.Get("Content-Type")
	mediaType, params, _ := mime.ParseMediaType(contentType)

	switch mediaType {
	case "application/sdp":
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, h.maxSDPSize()))
		if err != nil {
			return "", fmt.Errorf("failed to read SDP body: %w", err)
		}
		return string(body), nil

	case "multipart/form-data":
		boundary := params["boundary"]
		if boundary == "" {
			return "", fmt.Errorf("missing boundary in multipart")
		}
		reader := multipart.NewReader(c.Request().Body, boundary)
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to read multipart: %w", err)
			}
			if part.FormName() != "sdp" {
				continue
			}
			data, err := io.ReadAll(io.LimitReader(part, h.maxSDPSize()))
			if err != nil {
				return "", fmt.Errorf("failed to read SDP part: %w", err)
			}
			return string(data), nil
		}
		return "", fmt.Errorf("sdp field not found in multipart")

	case "application/json", "":
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, h.maxSDPSize()))
		if err != nil {
			return "", fmt.Errorf("failed to read request body: %w", err)
		}
		var req OfferRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		return req.SDP, nil

	default:
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}
}
