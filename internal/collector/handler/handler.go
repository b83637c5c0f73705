package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pdftrack/internal/collector/models"
	"pdftrack/internal/platform/middleware"
	dErrors "pdftrack/pkg/domain-errors"
	"pdftrack/pkg/platform/httputil"
	"pdftrack/pkg/platform/middleware/device"
	"pdftrack/pkg/platform/middleware/metadata"
	"pdftrack/pkg/platform/middleware/requesttime"
	"pdftrack/pkg/requestcontext"
)

// Service defines the collector operations the handler exposes.
type Service interface {
	Track(ctx context.Context, req models.TrackRequest) (*models.Event, error)
	Logs(ctx context.Context) ([]models.Event, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Handler serves the collector HTTP interface.
type Handler struct {
	logger       *slog.Logger
	collector    Service
	jwtValidator middleware.JWTValidator
}

// New creates a collector Handler. A nil jwtValidator leaves /track open.
func New(collector Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		collector:    collector,
		jwtValidator: jwtValidator,
	}
}

// Register registers the collector routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(metadata.ClientMetadata)
	router.Use(device.Middleware)
	router.Use(requesttime.Middleware)

	router.With(
		middleware.ContentTypeJSON,
		middleware.RequireAuth(h.jwtValidator, h.logger),
	).Post("/track", h.handleTrack)
	router.Get("/logs", h.handleLogs)
	router.Get("/stats", h.handleStats)
	router.Get("/health", h.handleHealth)

	r.Mount("/", router)
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.TrackRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if _, err := h.collector.Track(ctx, *req); err != nil {
		h.logger.ErrorContext(ctx, "failed to track event",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.TrackResponse{
		Status:  "success",
		Message: "PDF access logged",
	})
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.collector.Logs(ctx)
	if err != nil {
		h.logQueryError(ctx, "failed to list events", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.collector.Stats(ctx)
	if err != nil {
		h.logQueryError(ctx, "failed to compute stats", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.Health{
		Status: "alive",
		Time:   requestcontext.Now(r.Context()).Format(time.RFC3339Nano),
	})
}

func (h *Handler) logQueryError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(dErrors.CodeOf(err)),
		"error", err.Error(),
	)
}
