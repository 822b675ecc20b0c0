package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/config"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/events"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/logging"
	"github.com/therealutkarshpriyadarshi/streamflow/internal/metrics"
)

// Delivery headers
const (
	HeaderEvent     = "X-StreamFlow-Event"
	HeaderDelivery  = "X-StreamFlow-Delivery"
	HeaderSignature = "X-StreamFlow-Signature"
)

const queueSize = 256

// ErrQueueFull is returned by Publish when the delivery queue is saturated
var ErrQueueFull = errors.New("webhook delivery queue is full")

// Delivery is one event bound for one endpoint
type Delivery struct {
	ID          string
	Event       string
	Endpoint    config.WebhookEndpoint
	Payload     []byte
	Attempts    int
	StatusCode  int
	NextRetryAt time.Time
}

// Service posts activity events to the configured endpoints and retries
// failed deliveries with backoff. It implements events.Publisher.
type Service struct {
	client       *http.Client
	endpoints    []config.WebhookEndpoint
	logger       *logging.Logger
	queue        chan *Delivery
	retryDelays  []time.Duration
	pollInterval time.Duration
	now          func() time.Time

	mu      sync.Mutex
	pending []*Delivery
}

// NewService creates a new webhook service
func NewService(cfg config.WebhookConfig, logger *logging.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Service{
		client:    &http.Client{Timeout: timeout},
		endpoints: cfg.Endpoints,
		logger:    logger,
		queue:     make(chan *Delivery, queueSize),
		// Retry delays: 1min, 5min, 15min, 1hr
		retryDelays: []time.Duration{
			1 * time.Minute,
			5 * time.Minute,
			15 * time.Minute,
			1 * time.Hour,
		},
		pollInterval: 30 * time.Second,
		now:          time.Now,
	}
}

// Publish queues the event for every endpoint subscribed to its type
func (s *Service) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for _, endpoint := range s.endpoints {
		if !subscribed(endpoint, event.Type) {
			continue
		}

		d := &Delivery{
			ID:       uuid.New().String(),
			Event:    event.Type,
			Endpoint: endpoint,
			Payload:  payload,
		}

		select {
		case s.queue <- d:
		case <-ctx.Done():
			return ctx.Err()
		default:
			metrics.RecordError("webhook", "queue_full")
			return ErrQueueFull
		}
	}
	return nil
}

func subscribed(endpoint config.WebhookEndpoint, eventType string) bool {
	if len(endpoint.Events) == 0 {
		return true
	}
	for _, e := range endpoint.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Run delivers queued events until ctx is cancelled
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.queue:
			s.deliver(ctx, d)
		case <-ticker.C:
			s.retryPending(ctx)
		}
	}
}

// Pending returns the number of deliveries waiting for a retry
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) deliver(ctx context.Context, d *Delivery) {
	d.Attempts++
	logger := s.logger.WithFields(map[string]interface{}{
		"delivery_id": d.ID,
		"event":       d.Event,
		"attempt":     d.Attempts,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint.URL, bytes.NewReader(d.Payload))
	if err != nil {
		logger.WithError(err).Error("failed to create webhook request")
		metrics.RecordWebhookDelivery(d.Event, "failed")
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StreamFlow-Webhook/1.0")
	req.Header.Set(HeaderEvent, d.Event)
	req.Header.Set(HeaderDelivery, d.ID)
	if d.Endpoint.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.Payload, d.Endpoint.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		logger.WithError(err).Warn("webhook delivery failed")
		s.markFailed(d, 0)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.StatusCode = resp.StatusCode
		metrics.RecordWebhookDelivery(d.Event, "delivered")
		logger.Debug("webhook delivered")
		return
	}

	logger.WithField("status_code", resp.StatusCode).Warn("webhook rejected")
	s.markFailed(d, resp.StatusCode)
}

// markFailed schedules the next retry or gives up once the delays run out
func (s *Service) markFailed(d *Delivery, statusCode int) {
	d.StatusCode = statusCode

	if d.Attempts > len(s.retryDelays) {
		metrics.RecordWebhookDelivery(d.Event, "failed")
		metrics.RecordError("webhook", "max_retries")
		s.logger.WithField("delivery_id", d.ID).Error("webhook delivery abandoned after max retries")
		return
	}

	metrics.RecordWebhookDelivery(d.Event, "retrying")
	d.NextRetryAt = s.now().Add(s.retryDelays[d.Attempts-1])

	s.mu.Lock()
	s.pending = append(s.pending, d)
	s.mu.Unlock()
}

// retryPending redelivers every pending delivery whose retry time has come
func (s *Service) retryPending(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*Delivery
	waiting := s.pending[:0]
	for _, d := range s.pending {
		if now.Before(d.NextRetryAt) {
			waiting = append(waiting, d)
			continue
		}
		due = append(due, d)
	}
	s.pending = waiting
	s.mu.Unlock()

	for _, d := range due {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, d)
	}
}

// Sign generates the HMAC-SHA256 signature of a payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches the payload
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
