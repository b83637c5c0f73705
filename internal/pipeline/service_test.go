package pipeline

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pdftrack/internal/issuancelog"
	"pdftrack/internal/notify"
	"pdftrack/internal/pipeline/mocks"
	"pdftrack/internal/render"
	"pdftrack/internal/tracking"
	dErrors "pdftrack/pkg/domain-errors"
	"pdftrack/pkg/requestcontext"
)

const collectorURL = "http://collector.test/track"

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	renderer *mocks.MockRenderer
	qr       *mocks.MockQRGenerator
	embedder *mocks.MockMetadataEmbedder
	log      *mocks.MockIssuanceLog
	notifier *mocks.MockNotifier
	metrics  *Metrics
	service  *Service
	ctx      context.Context
	dir      string
	alice    tracking.RecipientInfo
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.renderer = mocks.NewMockRenderer(s.ctrl)
	s.qr = mocks.NewMockQRGenerator(s.ctrl)
	s.embedder = mocks.NewMockMetadataEmbedder(s.ctrl)
	s.log = mocks.NewMockIssuanceLog(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.dir = s.T().TempDir()
	s.service = NewService(s.renderer, s.qr, s.embedder, s.log, s.notifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithCollectorURL(collectorURL),
		WithOutputDir(s.dir),
		WithMetrics(s.metrics),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.alice = tracking.RecipientInfo{Name: "Alice", Email: "alice@x.com", SourceAddress: "10.0.0.5"}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) expectRenderAndEmbed() {
	s.qr.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("/tmp/qr.png", func() {}, nil)
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, src string, _ map[string]string) (string, error) {
			return render.TrackedPath(src), nil
		})
}

func (s *ServiceSuite) TestIssue() {
	s.Run("threads one fingerprint through every artifact", func() {
		var (
			qrContent string
			doc       render.Document
			fields    map[string]string
			rec       tracking.IssuanceRecord
			evt       tracking.NotificationEvent
			cleaned   bool
		)
		s.qr.EXPECT().Generate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, content string) (string, func(), error) {
				qrContent = content
				return "/tmp/qr.png", func() { cleaned = true }, nil
			})
		out := filepath.Join(s.dir, "doc.pdf")
		tracked := filepath.Join(s.dir, "doc_tracked.pdf")
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), out).
			DoAndReturn(func(_ context.Context, d render.Document, _ string) error {
				doc = d
				return nil
			})
		s.embedder.EXPECT().Embed(gomock.Any(), out, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, f map[string]string) (string, error) {
				fields = f
				return tracked, nil
			})
		s.log.EXPECT().Append(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r tracking.IssuanceRecord) error {
				rec = r
				return nil
			})
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), collectorURL).
			DoAndReturn(func(_ context.Context, e tracking.NotificationEvent, _ string) notify.Result {
				evt = e
				return notify.Result{Delivered: true, StatusCode: 200}
			})

		result, err := s.service.Issue(s.ctx, Request{OutputPath: out, Content: "Line1\nLine2", Recipient: s.alice})
		s.Require().NoError(err)

		fp := result.Payload.Fingerprint
		s.True(fp.Valid())
		s.Equal(tracked, result.FinalPath)

		q, err := tracking.DecodeQRPayload(qrContent)
		s.Require().NoError(err)
		s.Equal(fp.String(), q.DocID)
		s.Equal("ID: "+fp.String(), doc.IDLine)
		s.Contains(doc.Footer, fp.String())
		s.Equal([]string{"Line1", "Line2"}, doc.Lines)
		s.Equal(fp.String(), fields[tracking.MetaTrackingID])
		s.Equal(collectorURL, fields[tracking.MetaServerURL])
		s.Equal(fp, rec.Fingerprint)
		s.Equal(tracked, rec.OutputFilePath)
		s.Equal(fp, evt.Fingerprint)
		s.Equal(tracking.EventPDFGenerated, evt.EventType)
		s.True(cleaned, "qr image cleaned up")
		s.Require().NotNil(result.Notification)
		s.True(result.Notification.Delivered)
		s.Contains(result.Summary, fp.String())
	})

	s.Run("log failure is fatal and skips notification", func() {
		s.expectRenderAndEmbed()
		s.log.EXPECT().Append(gomock.Any(), gomock.Any()).
			Return(dErrors.Wrap(errors.New("disk full"), dErrors.CodeLogWriteFailed, "append issuance record"))

		result, err := s.service.Issue(s.ctx, Request{Content: "x", Recipient: s.alice})
		s.Nil(result)
		s.True(dErrors.HasCode(err, dErrors.CodeLogWriteFailed))
	})

	s.Run("plain log errors are classified as log write failures", func() {
		s.expectRenderAndEmbed()
		s.log.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("boom"))

		_, err := s.service.Issue(s.ctx, Request{Content: "x", Recipient: s.alice})
		s.True(dErrors.HasCode(err, dErrors.CodeLogWriteFailed))
	})

	s.Run("render failure stops before embedding and logging", func() {
		s.qr.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("/tmp/qr.png", func() {}, nil)
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("no space"))

		_, err := s.service.Issue(s.ctx, Request{Content: "x", Recipient: s.alice})
		s.True(dErrors.HasCode(err, dErrors.CodeRenderFailed))
	})

	s.Run("embed failure is a render failure", func() {
		s.qr.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("/tmp/qr.png", func() {}, nil)
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("bad pdf"))

		_, err := s.service.Issue(s.ctx, Request{Content: "x", Recipient: s.alice})
		s.True(dErrors.HasCode(err, dErrors.CodeRenderFailed))
	})

	s.Run("notification failure still succeeds", func() {
		s.expectRenderAndEmbed()
		s.log.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(notify.Result{Err: notify.ErrUnreachable})

		result, err := s.service.Issue(s.ctx, Request{Content: "x", Recipient: s.alice})
		s.Require().NoError(err)
		s.Require().NotNil(result.Notification)
		s.False(result.Notification.Delivered)
		s.ErrorIs(result.Notification.Err, notify.ErrUnreachable)
	})
}

func (s *ServiceSuite) TestIssue_SameRecipientDifferentTimesGiveDistinctFingerprints() {
	var records []tracking.IssuanceRecord
	for range 2 {
		s.expectRenderAndEmbed()
		s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(notify.Result{Delivered: true, StatusCode: 200})
	}
	s.log.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r tracking.IssuanceRecord) error {
			records = append(records, r)
			return nil
		}).Times(2)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := s.service.Issue(requestcontext.WithTime(context.Background(), t0), Request{Recipient: s.alice})
	s.Require().NoError(err)
	_, err = s.service.Issue(requestcontext.WithTime(context.Background(), t0.Add(time.Second)), Request{Recipient: s.alice})
	s.Require().NoError(err)

	s.Require().Len(records, 2)
	s.NotEqual(records[0].Fingerprint, records[1].Fingerprint)
}

func (s *ServiceSuite) TestIssue_RecordsMetrics() {
	s.expectRenderAndEmbed()
	s.log.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(notify.Result{StatusCode: 500, Err: errors.New("collector responded 500")})

	_, err := s.service.Issue(s.ctx, Request{Recipient: s.alice})
	s.Require().NoError(err)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Issuances.WithLabelValues(OutcomeSuccess)))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Notifications.WithLabelValues(OutcomeRejected)))
	s.Equal(1, testutil.CollectAndCount(s.metrics.IssueLatency))
}

func (s *ServiceSuite) TestIssue_NoCollectorSkipsNotification() {
	svc := NewService(s.renderer, s.qr, s.embedder, s.log, s.notifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithOutputDir(s.T().TempDir()),
	)
	s.expectRenderAndEmbed()
	s.log.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	result, err := svc.Issue(s.ctx, Request{Recipient: s.alice})
	s.Require().NoError(err)
	s.Nil(result.Notification)
	s.Empty(result.Payload.MetadataFields[tracking.MetaServerURL])
}

func (s *ServiceSuite) TestIssue_DefaultOutputPathUsesRecipientName() {
	var rendered string
	s.qr.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("/tmp/qr.png", func() {}, nil)
	s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ render.Document, path string) error {
			rendered = path
			return nil
		})
	s.embedder.EXPECT().Embed(gomock.Any(), gomock.Any(), gomock.Any()).Return("x_tracked.pdf", nil)
	s.log.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(notify.Result{Delivered: true})

	result, err := s.service.Issue(s.ctx, Request{Recipient: s.alice})
	s.Require().NoError(err)
	s.Equal("tracked_doc_Alice_"+result.Payload.Fingerprint.String()+".pdf", filepath.Base(rendered))
}

func TestDefaultOutputPath(t *testing.T) {
	const fp = tracking.Fingerprint("0123456789abcdef")
	cases := []struct {
		name string
		want string
	}{
		{"Alice", "tracked_doc_Alice_0123456789abcdef.pdf"},
		{"Bob Smith", "tracked_doc_Bob_Smith_0123456789abcdef.pdf"},
		{"../../etc/passwd", "tracked_doc_etc_passwd_0123456789abcdef.pdf"},
		{"", "tracked_doc_recipient_0123456789abcdef.pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, filepath.Join("docs", tc.want), DefaultOutputPath("docs", tc.name, fp))
		})
	}

	t.Run("names that sanitize alike stay distinct", func(t *testing.T) {
		a := DefaultOutputPath("docs", "Zoë 日本", "aaaaaaaaaaaaaaaa")
		b := DefaultOutputPath("docs", "Zoá", "bbbbbbbbbbbbbbbb")
		assert.NotEqual(t, a, b)
	})
}

// End-to-end issuance with the real renderer, QR generator, embedder and log.
func newRealService(t *testing.T, dir string, opts ...Option) (*Service, *issuancelog.Log) {
	t.Helper()
	log := issuancelog.New(filepath.Join(dir, "tracking_log.txt"))
	opts = append([]Option{
		WithCollectorURL("http://127.0.0.1:1/track"),
		WithOutputDir(dir),
	}, opts...)
	svc := NewService(
		render.NewPDFRenderer(""),
		render.NewQRGenerator(dir),
		render.NewMetadataEmbedder(),
		log,
		notify.New(nil, notify.WithTimeout(time.Second)),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		opts...,
	)
	return svc, log
}

func TestIssue_EndToEnd(t *testing.T) {
	t.Run("repeat issuances for one recipient keep both documents", func(t *testing.T) {
		dir := t.TempDir()
		svc, log := newRealService(t, dir)
		bob := tracking.RecipientInfo{Name: "Bob", Email: "bob@y.com", SourceAddress: "10.0.0.6"}

		first, err := svc.Issue(requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
			Request{Content: "v1", Recipient: bob})
		require.NoError(t, err)
		second, err := svc.Issue(requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)),
			Request{Content: "v2", Recipient: bob})
		require.NoError(t, err)

		assert.NotEqual(t, first.FinalPath, second.FinalPath)
		assert.FileExists(t, first.FinalPath)
		assert.FileExists(t, second.FinalPath)

		recs, err := log.ReadAll(context.Background())
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, first.FinalPath, recs[0].OutputFilePath)
		assert.Equal(t, second.FinalPath, recs[1].OutputFilePath)
		assert.NotEqual(t, recs[0].Fingerprint, recs[1].Fingerprint)
	})

	t.Run("known recipient with offline collector", func(t *testing.T) {
		dir := t.TempDir()
		svc, log := newRealService(t, dir)

		result, err := svc.Issue(context.Background(), Request{
			OutputPath: filepath.Join(dir, "alice.pdf"),
			Content:    "Line1\nLine2",
			Recipient:  tracking.RecipientInfo{Name: "Alice", Email: "alice@x.com", SourceAddress: "10.0.0.5"},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(result.FinalPath, "_tracked.pdf"))
		assert.FileExists(t, result.FinalPath)
		assert.NoFileExists(t, filepath.Join(dir, "alice.pdf"), "intermediate removed")
		require.NotNil(t, result.Notification)
		assert.ErrorIs(t, result.Notification.Err, notify.ErrUnreachable)

		recs, err := log.ReadAll(context.Background())
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "alice@x.com", recs[0].Recipient.Email)
		assert.True(t, recs[0].Fingerprint.Valid())
		assert.Equal(t, result.Payload.Fingerprint, recs[0].Fingerprint)
	})

	t.Run("blank address is detected", func(t *testing.T) {
		dir := t.TempDir()
		svc, log := newRealService(t, dir, WithKeepIntermediate(true))

		result, err := svc.Issue(context.Background(), Request{
			Content:   "hello",
			Recipient: tracking.RecipientInfo{Name: "Bob", Email: "bob@y.com"},
		})
		require.NoError(t, err)
		assert.FileExists(t, DefaultOutputPath(dir, "Bob", result.Payload.Fingerprint), "intermediate kept")

		ip := net.ParseIP(result.Payload.Recipient.SourceAddress)
		require.NotNil(t, ip)
		assert.NotNil(t, ip.To4())

		recs, err := log.ReadAll(context.Background())
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, result.Payload.Recipient.SourceAddress, recs[0].Recipient.SourceAddress)
	})
}
