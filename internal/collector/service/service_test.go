package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"pdftrack/internal/collector/metrics"
	"pdftrack/internal/collector/models"
	"pdftrack/internal/collector/store/memory"
	"pdftrack/internal/tracking"
	dErrors "pdftrack/pkg/domain-errors"
	"pdftrack/pkg/platform/sentinel"
	"pdftrack/pkg/requestcontext"
)

const chromeUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type forwarderFunc func(ctx context.Context, ev models.Event) error

func (f forwarderFunc) Forward(ctx context.Context, ev models.Event) error { return f(ctx, ev) }

type failingStore struct{ err error }

func (s failingStore) Append(context.Context, models.Event) error   { return s.err }
func (s failingStore) List(context.Context) ([]models.Event, error) { return nil, s.err }

type ServiceSuite struct {
	suite.Suite
	store   *memory.InMemoryStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithClientMetadata(s.ctx, "203.0.113.9", chromeUA)
}

func request(email string) models.TrackRequest {
	return models.TrackRequest{
		Event:      tracking.EventPDFGenerated,
		User:       tracking.RecipientInfo{Name: "N", Email: email, SourceAddress: "10.0.0.5"},
		PDF:        "doc_tracked.pdf",
		Time:       "2026-03-01T11:59:59Z",
		TrackingID: "0123456789abcdef",
	}
}

func (s *ServiceSuite) TestTrackStampsServerFields() {
	svc := New(s.store, s.logger, WithMetrics(s.metrics))

	ev, err := svc.Track(s.ctx, request("alice@x.com"))
	s.Require().NoError(err)

	s.NotEmpty(ev.ID)
	s.Equal(s.now.Format(time.RFC3339Nano), ev.ServerTime)
	s.Equal("203.0.113.9", ev.RemoteAddr)
	s.Equal(chromeUA, ev.UserAgent)
	s.Contains(ev.Browser, "Chrome")
	s.Equal("0123456789abcdef", ev.TrackingID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Events.WithLabelValues(tracking.EventPDFGenerated)))

	stored, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(*ev, stored[0])
}

func (s *ServiceSuite) TestTrackDefaultsEventType() {
	svc := New(s.store, s.logger)
	req := request("alice@x.com")
	req.Event = "  "

	ev, err := svc.Track(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(tracking.EventPDFGenerated, ev.Event)
}

func (s *ServiceSuite) TestForwardFailureDoesNotFailTrack() {
	forwarded := 0
	svc := New(s.store, s.logger,
		WithMetrics(s.metrics),
		WithForwarder(forwarderFunc(func(context.Context, models.Event) error {
			forwarded++
			return errors.New("broker down")
		})),
	)

	_, err := svc.Track(s.ctx, request("alice@x.com"))
	s.Require().NoError(err)
	svc.Wait()
	s.Equal(1, forwarded)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ForwardFailures))
}

func (s *ServiceSuite) TestTrackDoesNotWaitForSlowForwarder() {
	release := make(chan struct{})
	var deadline time.Time
	svc := New(s.store, s.logger,
		WithMetrics(s.metrics),
		WithForwardTimeout(50*time.Millisecond),
		WithForwarder(forwarderFunc(func(ctx context.Context, _ models.Event) error {
			deadline, _ = ctx.Deadline()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-release:
				return nil
			}
		})),
	)
	defer close(release)

	reqCtx, cancel := context.WithCancel(s.ctx)
	start := time.Now()
	ev, err := svc.Track(reqCtx, request("alice@x.com"))
	elapsed := time.Since(start)
	cancel()
	s.Require().NoError(err)
	s.Less(elapsed, time.Second)

	stored, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(ev.ID, stored[0].ID)

	svc.Wait()
	s.False(deadline.IsZero())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ForwardFailures))
}

func (s *ServiceSuite) TestStoreFailures() {
	s.Run("append failure is internal", func() {
		svc := New(failingStore{err: sentinel.ErrUnavailable}, s.logger, WithMetrics(s.metrics))
		_, err := svc.Track(s.ctx, request("a@x.com"))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("corrupt store", func() {
		svc := New(failingStore{err: fmt.Errorf("%w: line 2", sentinel.ErrCorrupt)}, s.logger)
		_, err := svc.Logs(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeStoreCorrupt))
		_, err = svc.Stats(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeStoreCorrupt))
	})

	s.Run("unavailable store is internal", func() {
		svc := New(failingStore{err: sentinel.ErrUnavailable}, s.logger)
		_, err := svc.Logs(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestStats() {
	svc := New(s.store, s.logger)

	s.Run("empty store", func() {
		stats, err := svc.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, stats.TotalAccess)
		s.Equal(0, stats.UniqueUsers)
		s.Empty(stats.Users)
		s.Nil(stats.LastAccess)
	})

	s.Run("counts distinct users", func() {
		for i, email := range []string{"a@x.com", "A@x.com", "b@x.com", ""} {
			ctx := requestcontext.WithTime(s.ctx, s.now.Add(time.Duration(i)*time.Minute))
			_, err := svc.Track(ctx, request(email))
			s.Require().NoError(err)
		}

		stats, err := svc.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal(4, stats.TotalAccess)
		s.Equal(2, stats.UniqueUsers)
		s.Equal([]string{"a@x.com", "b@x.com"}, stats.Users)
		s.Require().NotNil(stats.LastAccess)
		s.Equal(s.now.Add(3*time.Minute).Format(time.RFC3339Nano), *stats.LastAccess)
	})
}
