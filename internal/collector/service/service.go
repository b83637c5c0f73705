// Package service implements the collector: it stores notification events and
// answers aggregate queries recomputed from the stored log.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdftrack/internal/collector/metrics"
	"pdftrack/internal/collector/models"
	dErrors "pdftrack/pkg/domain-errors"
	"pdftrack/pkg/platform/middleware/device"
	"pdftrack/pkg/platform/sentinel"
	pstrings "pdftrack/pkg/platform/strings"
	"pdftrack/pkg/requestcontext"
)

// Store persists events append-only.
type Store interface {
	Append(ctx context.Context, event models.Event) error
	List(ctx context.Context) ([]models.Event, error)
}

// Forwarder publishes stored events downstream.
type Forwarder interface {
	Forward(ctx context.Context, event models.Event) error
}

// DefaultForwardTimeout bounds one background forward. It stays well under
// the tracker's notification timeout so a slow broker never shows up there.
const DefaultForwardTimeout = 2 * time.Second

type Service struct {
	store          Store
	forwarder      Forwarder
	forwardTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	inflight       sync.WaitGroup
}

type Option func(*Service)

func WithForwarder(f Forwarder) Option {
	return func(s *Service) {
		s.forwarder = f
	}
}

func WithForwardTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.forwardTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger, forwardTimeout: DefaultForwardTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track stores one event, stamped with the server time and the caller's
// address and user agent. Forwarding runs in the background after the append,
// on a context detached from the request, and never delays or fails it.
func (s *Service) Track(ctx context.Context, req models.TrackRequest) (*models.Event, error) {
	req.Normalize()
	event := models.Event{
		ID:         uuid.NewString(),
		Event:      req.Event,
		User:       req.User,
		PDF:        req.PDF,
		Time:       req.Time,
		TrackingID: req.TrackingID,
		ServerTime: requestcontext.Now(ctx).Format(time.RFC3339Nano),
		RemoteAddr: requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
	}
	agent, ok := device.AgentFromContext(ctx)
	if !ok {
		agent = device.Parse(event.UserAgent)
	}
	event.Browser, event.OS = agent.Browser, agent.OS

	if err := s.store.Append(ctx, event); err != nil {
		s.metrics.IncrementStoreError("append")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store event")
	}
	s.metrics.IncrementEvent(event.Event)

	s.logger.InfoContext(ctx, "pdf access logged",
		"request_id", requestcontext.RequestID(ctx),
		"event", event.Event,
		"email", event.User.Email,
		"tracking_id", event.TrackingID,
		"pdf", event.PDF,
		"time", event.Time,
	)

	if s.forwarder != nil {
		s.inflight.Add(1)
		go s.forward(context.WithoutCancel(ctx), event)
	}
	return &event, nil
}

func (s *Service) forward(ctx context.Context, event models.Event) {
	defer s.inflight.Done()
	ctx, cancel := context.WithTimeout(ctx, s.forwardTimeout)
	defer cancel()
	if err := s.forwarder.Forward(ctx, event); err != nil {
		s.metrics.IncrementForwardFailure()
		s.logger.WarnContext(ctx, "failed to forward event",
			"request_id", requestcontext.RequestID(ctx),
			"event_id", event.ID,
			"error", err,
		)
	}
}

// Wait blocks until every background forward has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Logs returns every stored event in append order.
func (s *Service) Logs(ctx context.Context) ([]models.Event, error) {
	events, err := s.store.List(ctx)
	if err != nil {
		s.metrics.IncrementStoreError("list")
		return nil, translateListError(err)
	}
	return events, nil
}

// Stats recomputes the aggregate view over the full log. Users are distinct
// non-empty emails compared case-insensitively, in first-seen order.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	events, err := s.Logs(ctx)
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(events))
	for _, ev := range events {
		emails = append(emails, ev.User.Email)
	}
	users := pstrings.DedupeAndTrimLower(emails)

	stats := &models.Stats{
		TotalAccess: len(events),
		UniqueUsers: len(users),
		Users:       users,
	}
	if n := len(events); n > 0 && events[n-1].ServerTime != "" {
		last := events[n-1].ServerTime
		stats.LastAccess = &last
	}
	return stats, nil
}

func translateListError(err error) error {
	if errors.Is(err, sentinel.ErrCorrupt) {
		return dErrors.Wrap(err, dErrors.CodeStoreCorrupt, "event store is unreadable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read events")
}
