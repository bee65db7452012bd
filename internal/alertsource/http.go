package alertsource

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tinytelemetry/alertscope/internal/model"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %s", e.URL, e.Status)
}

// HTTPConfig holds tunable parameters for the HTTP source.
type HTTPConfig struct {
	Client         *http.Client
	Timeout        time.Duration // per attempt, ignored when Client is set
	MaxRetries     int           // retries after the first attempt; <0 disables
	InitialBackoff time.Duration
}

// HTTPSource fetches an alert document over HTTP. Transport errors and 5xx
// responses are retried with exponential backoff; 4xx responses and decode
// errors are not.
type HTTPSource struct {
	url            string
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
}

// NewHTTPSource creates an HTTPSource for url.
func NewHTTPSource(url string, conf ...HTTPConfig) *HTTPSource {
	s := &HTTPSource{
		url:            url,
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
	}
	timeout := defaultHTTPTimeout
	if len(conf) > 0 {
		c := conf[0]
		s.client = c.Client
		if c.Timeout > 0 {
			timeout = c.Timeout
		}
		if c.MaxRetries != 0 {
			s.maxRetries = max(c.MaxRetries, 0)
		}
		if c.InitialBackoff > 0 {
			s.initialBackoff = c.InitialBackoff
		}
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: timeout}
	}
	return s
}

func (s *HTTPSource) Name() string { return s.url }

// Fetch downloads and decodes the document.
func (s *HTTPSource) Fetch(ctx context.Context) ([]model.AlertRecord, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.maxRetries)), ctx)

	records, err := backoff.RetryWithData(func() ([]model.AlertRecord, error) {
		return s.fetchOnce(ctx)
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("alertsource: fetch %s: %w", s.url, err)
	}
	return records, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]model.AlertRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{URL: s.url, StatusCode: resp.StatusCode, Status: resp.Status}
		if resp.StatusCode < 500 {
			return nil, backoff.Permanent(serr)
		}
		return nil, serr
	}

	records, err := Decode(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return records, nil
}
