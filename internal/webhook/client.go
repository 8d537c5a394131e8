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
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/photoresize/internal/id"
)

const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"

	HeaderSignature = "X-Photoresize-Signature"
	HeaderTimestamp = "X-Photoresize-Timestamp"
	HeaderEvent     = "X-Photoresize-Event"
	HeaderDelivery  = "X-Photoresize-Delivery"
)

// Envelope is the JSON body of every delivery. ID is stable across retries so
// receivers can drop duplicates.
type Envelope struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

type Config struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	httpClient *http.Client
	secret     string
	attempts   int
	backoff    backoffPolicy
	now        func() time.Time
}

type backoffPolicy struct {
	initial time.Duration
	ceiling time.Duration
}

// next doubles the previous wait up to the ceiling. A receiver-supplied
// Retry-After wins when it is longer, still bounded by the ceiling.
func (b backoffPolicy) next(prev, retryAfter time.Duration) time.Duration {
	wait := b.initial
	if prev > 0 {
		wait = prev * 2
	}
	wait = max(wait, retryAfter)
	return min(wait, b.ceiling)
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		secret:     cfg.SigningSecret,
		attempts:   max(1, cfg.MaxAttempts),
		backoff:    backoffPolicy{initial: initial, ceiling: max(initial, cfg.MaxBackoff)},
		now:        time.Now,
	}
}

// Send wraps data in an Envelope and POSTs it to endpoint. An empty endpoint
// is a no-op. 4xx answers other than 408 and 429 are not retried.
func (c *Client) Send(ctx context.Context, endpoint, event string, data any) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}

	envelope := Envelope{
		ID:        id.New(),
		Event:     event,
		CreatedAt: c.now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal webhook envelope: %w", err)
	}
	timestamp := strconv.FormatInt(envelope.CreatedAt.Unix(), 10)
	signature := Sign(c.secret, timestamp, body)

	var (
		wait    time.Duration
		lastErr error
	)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		retryAfter, err := c.deliver(ctx, endpoint, envelope, timestamp, signature, body)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) || attempt == c.attempts {
			break
		}

		wait = c.backoff.next(wait, retryAfter)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("deliver %s %s: %w", event, envelope.ID, lastErr)
}

func (c *Client) deliver(ctx context.Context, endpoint string, envelope Envelope, timestamp, signature string, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, &permanentError{err: fmt.Errorf("build webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderEvent, envelope.Event)
	req.Header.Set(HeaderDelivery, envelope.ID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return 0, nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("webhook returned status=%d", code)
	default:
		return 0, &permanentError{err: fmt.Errorf("webhook rejected delivery status=%d", code)}
	}
}

// Sign returns the signature header value a receiver should expect for body
// delivered at timestamp.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// parseRetryAfter understands the delta-seconds form only.
func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
