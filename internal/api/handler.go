package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/overlord/internal/journal"
	"github.com/eleven-am/overlord/internal/loop"
	"github.com/eleven-am/overlord/internal/shared"
	"github.com/eleven-am/overlord/internal/vision"
	"github.com/labstack/echo/v4"
)

type Loop interface {
	Start() error
	Stop()
	State() loop.State
	Subscribe() (<-chan loop.State, func())
}

type FrameReader interface {
	GetLatestFrame(ctx context.Context, runID string) (*vision.Frame, error)
	GetFrames(ctx context.Context, runID string, start, end time.Time, limit int) ([]*vision.Frame, error)
	DeleteFrames(ctx context.Context, runID string) error
}

type Journal interface {
	GetByID(ctx context.Context, id string) (*journal.Entry, error)
	Recent(ctx context.Context, runID string, limit int) ([]*journal.Entry, error)
	Stats(ctx context.Context, runID string) (*journal.Stats, error)
	DeleteRun(ctx context.Context, runID string) (int64, error)
}

type FrameResponse struct {
	MIMEType   string    `json:"mime_type"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
	DataURI    string    `json:"data_uri"`
}

type DeleteRunResponse struct {
	RunID          string `json:"run_id"`
	EntriesDeleted int64  `json:"entries_deleted"`
	FramesDeleted  bool   `json:"frames_deleted"`
}

type Handler struct {
	loop    Loop
	frames  FrameReader
	journal Journal
	logger  *slog.Logger
}

// NewHandler wires the HTTP surface. frames and journal may be nil when the
// corresponding backend is not configured.
func NewHandler(l Loop, frames FrameReader, j Journal, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		loop:    l,
		frames:  frames,
		journal: j,
		logger:  logger.With("component", "api"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/loop/start", h.Start)
	g.POST("/loop/stop", h.Stop)
	g.GET("/loop/state", h.State)
	g.GET("/loop/events", h.Events)
	g.GET("/loop/frames", h.ListFrames)
	g.GET("/loop/frames/latest", h.LatestFrame)
	g.GET("/journal", h.ListJournal)
	g.DELETE("/journal", h.DeleteRun)
	g.GET("/journal/stats", h.JournalStats)
	g.GET("/journal/:id", h.GetJournalEntry)
}

func (h *Handler) Start(c echo.Context) error {
	if err := h.loop.Start(); err != nil {
		if errors.Is(err, loop.ErrClosed) {
			return shared.Conflict("loop_closed", "loop is shutting down")
		}
		h.logger.Error("start loop failed", "error", err)
		return shared.InternalError("start_failed", "failed to start loop")
	}
	return c.JSON(http.StatusOK, h.loop.State())
}

func (h *Handler) Stop(c echo.Context) error {
	h.loop.Stop()
	return c.JSON(http.StatusOK, h.loop.State())
}

func (h *Handler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.loop.State())
}

func (h *Handler) LatestFrame(c echo.Context) error {
	if h.frames == nil {
		return shared.ServiceUnavailable("frames_disabled", "frame store not configured")
	}

	runID := h.runID(c)
	if runID == "" {
		return shared.NotFound("no_run", "loop has not been started")
	}

	frame, err := h.frames.GetLatestFrame(c.Request().Context(), runID)
	if err != nil {
		h.logger.Error("get latest frame failed", "run_id", runID, "error", err)
		return shared.InternalError("frame_lookup_failed", "failed to load frame")
	}
	if frame == nil {
		return shared.NotFound("frame_not_found", "no frame captured for run")
	}

	mimeType := frame.MIMEType
	if mimeType == "" {
		mimeType = vision.MIMETypeJPEG
	}
	c.Response().Header().Set("X-Run-ID", runID)
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, mimeType, frame.Data)
}

// runID resolves the run_id query, defaulting to the current run.
func (h *Handler) runID(c echo.Context) string {
	if runID := c.QueryParam("run_id"); runID != "" {
		return runID
	}
	return h.loop.State().RunID
}

func parseTimeParam(c echo.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// ListFrames returns the stored frames of a run captured between from and
// to (RFC 3339, both optional), oldest first.
func (h *Handler) ListFrames(c echo.Context) error {
	if h.frames == nil {
		return shared.ServiceUnavailable("frames_disabled", "frame store not configured")
	}

	runID := h.runID(c)
	if runID == "" {
		return shared.NotFound("no_run", "loop has not been started")
	}

	from, err := parseTimeParam(c, "from", time.Unix(0, 0))
	if err != nil {
		return shared.BadRequest("invalid_from", "from must be an RFC 3339 time")
	}
	to, err := parseTimeParam(c, "to", time.Now())
	if err != nil {
		return shared.BadRequest("invalid_to", "to must be an RFC 3339 time")
	}
	if to.Before(from) {
		return shared.BadRequest("invalid_range", "to is before from")
	}

	frames, err := h.frames.GetFrames(c.Request().Context(), runID, from, to, shared.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		h.logger.Error("list frames failed", "run_id", runID, "error", err)
		return shared.InternalError("frame_lookup_failed", "failed to load frames")
	}

	out := make([]FrameResponse, 0, len(frames))
	for _, f := range frames {
		out = append(out, FrameResponse{
			MIMEType:   f.MIMEType,
			Width:      f.Width,
			Height:     f.Height,
			CapturedAt: f.CapturedAt,
			DataURI:    f.DataURI(),
		})
	}
	c.Response().Header().Set("X-Run-ID", runID)
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListJournal(c echo.Context) error {
	if h.journal == nil {
		return shared.ServiceUnavailable("journal_disabled", "journal not configured")
	}

	limit := shared.ParseLimit(c.QueryParam("limit"))
	entries, err := h.journal.Recent(c.Request().Context(), c.QueryParam("run_id"), limit)
	if err != nil {
		h.logger.Error("list journal failed", "error", err)
		return shared.FromError(err, "failed to list journal")
	}
	if entries == nil {
		entries = []*journal.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) JournalStats(c echo.Context) error {
	if h.journal == nil {
		return shared.ServiceUnavailable("journal_disabled", "journal not configured")
	}

	stats, err := h.journal.Stats(c.Request().Context(), c.QueryParam("run_id"))
	if err != nil {
		h.logger.Error("journal stats failed", "error", err)
		return shared.FromError(err, "failed to compute stats")
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetJournalEntry(c echo.Context) error {
	if h.journal == nil {
		return shared.ServiceUnavailable("journal_disabled", "journal not configured")
	}

	entry, err := h.journal.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("get journal entry failed", "id", c.Param("id"), "error", err)
		}
		return shared.FromError(err, "failed to load journal entry")
	}
	return c.JSON(http.StatusOK, entry)
}

// DeleteRun removes a run's journal entries and, when a frame store is
// configured, its stored frames.
func (h *Handler) DeleteRun(c echo.Context) error {
	if h.journal == nil {
		return shared.ServiceUnavailable("journal_disabled", "journal not configured")
	}

	runID := c.QueryParam("run_id")
	if runID == "" {
		return shared.BadRequest("missing_run_id", "run_id is required")
	}

	ctx := c.Request().Context()
	deleted, err := h.journal.DeleteRun(ctx, runID)
	if err != nil {
		h.logger.Error("delete run failed", "run_id", runID, "error", err)
		return shared.FromError(err, "failed to delete run")
	}

	resp := DeleteRunResponse{RunID: runID, EntriesDeleted: deleted}
	if h.frames != nil {
		if err := h.frames.DeleteFrames(ctx, runID); err != nil {
			h.logger.Error("delete frames failed", "run_id", runID, "error", err)
			return shared.InternalError("frame_delete_failed", "failed to delete frames")
		}
		resp.FramesDeleted = true
	}

	h.logger.Info("run deleted", "run_id", runID, "entries", deleted)
	return c.JSON(http.StatusOK, resp)
}
