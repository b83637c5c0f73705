// Package notify reports issuances to the remote collector. Delivery is
// best-effort: one POST, bounded by a timeout, with every failure captured in
// the returned Result.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pdftrack/internal/tracking"
	"pdftrack/pkg/platform/circuit"
)

// DefaultTimeout bounds a single notification attempt.
const DefaultTimeout = 5 * time.Second

const tokenTTL = time.Minute

var (
	// ErrUnreachable covers connection, DNS and timeout failures. Nothing was
	// delivered when a Result carries it.
	ErrUnreachable = errors.New("collector unreachable")
	// ErrCircuitOpen means the attempt was skipped after repeated failures.
	ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrUnreachable)
)

// TokenIssuer signs a bearer token for one event.
type TokenIssuer interface {
	GenerateEventToken(email, trackingID string, expiresIn time.Duration) (string, error)
}

// Result is the outcome of one notification. StatusCode is set whenever the
// collector answered; Delivered only for a 2xx answer.
type Result struct {
	Delivered  bool
	StatusCode int
	Err        error
}

// Sink posts NotificationEvents as JSON.
type Sink struct {
	client  *http.Client
	tokens  TokenIssuer
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Sink)

// WithTimeout bounds each POST. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the transport client. Its Timeout is used as-is.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTokenIssuer attaches a signed bearer token to every POST.
func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *Sink) {
		s.tokens = t
	}
}

// WithBreaker skips attempts while b is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Sink) {
		s.breaker = b
	}
}

func New(logger *slog.Logger, opts ...Option) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		client: &http.Client{Timeout: DefaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify performs a single POST of evt to endpoint. It never panics on
// transport failures and never retries.
func (s *Sink) Notify(ctx context.Context, evt tracking.NotificationEvent, endpoint string) Result {
	if s.breaker != nil && !s.breaker.Allow() {
		return Result{Err: ErrCircuitOpen}
	}

	res := s.post(ctx, evt, endpoint)
	s.record(ctx, res)
	return res
}

func (s *Sink) post(ctx context.Context, evt tracking.NotificationEvent, endpoint string) Result {
	body, err := json.Marshal(evt)
	if err != nil {
		return Result{Err: fmt.Errorf("encode event: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	req.Header.Set("Content-Type", "application/json")

	if s.tokens != nil {
		token, err := s.tokens.GenerateEventToken(evt.Recipient.Email, evt.Fingerprint.String(), tokenTTL)
		if err != nil {
			return Result{Err: fmt.Errorf("sign event token: %w", err)}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrUnreachable, err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	res := Result{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = fmt.Errorf("collector responded %d", resp.StatusCode)
		return res
	}
	res.Delivered = true
	return res
}

func (s *Sink) record(ctx context.Context, res Result) {
	if s.breaker == nil {
		return
	}
	if !errors.Is(res.Err, ErrUnreachable) {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "collector reachable again", "breaker", s.breaker.Name())
		}
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "collector marked unreachable, skipping notifications", "breaker", s.breaker.Name())
	}
}
