// Package submit forwards accepted import payloads to the backend.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/importbridge/internal/cookie"
	"github.com/shehryarbajwa/importbridge/internal/log"
	"github.com/shehryarbajwa/importbridge/internal/metrics"
	"github.com/shehryarbajwa/importbridge/pkg/models"
)

const (
	DefaultEndpoint = "load_raw_data"
	maxResponseBody = 10 << 20
)

var (
	// ErrForeignPage is returned for page URLs outside the configured origin.
	ErrForeignPage = errors.New("page URL is not on the configured origin")

	errTransient = errors.New("transient backend response")
)

// Client posts SubmissionRequests to the backend
type Client struct {
	HTTP           *http.Client
	PageURL        *url.URL
	Endpoint       string
	MaxTries       int
	InitialBackoff time.Duration
	logger         zerolog.Logger
}

// NewClient creates a submission client. endpoint is resolved against the
// page URL the way a browser resolves a relative form action.
func NewClient(httpClient *http.Client, pageURL *url.URL, endpoint string, maxTries int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if maxTries < 1 {
		maxTries = 1
	}

	return &Client{
		HTTP:           httpClient,
		PageURL:        pageURL,
		Endpoint:       endpoint,
		MaxTries:       maxTries,
		InitialBackoff: 500 * time.Millisecond,
		logger:         log.WithComponent("submit"),
	}
}

// Target resolves the endpoint against pageURL, or the client's page URL when
// nil. An override must share the configured page's scheme and host.
func (c *Client) Target(pageURL *url.URL) (*url.URL, error) {
	if pageURL == nil {
		pageURL = c.PageURL
	} else if c.PageURL != nil && !sameOrigin(pageURL, c.PageURL) {
		return nil, fmt.Errorf("%w: %s://%s", ErrForeignPage, pageURL.Scheme, pageURL.Host)
	}
	if pageURL == nil {
		return nil, fmt.Errorf("no page URL to resolve %q against", c.Endpoint)
	}

	ref, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid submit endpoint: %w", err)
	}

	return pageURL.ResolveReference(ref), nil
}

// BuildRequest derives the backend request from a success payload.
// authToken is forwarded as-is; the anti-forgery header is omitted when the
// cookie store has no csrftoken.
func (c *Client) BuildRequest(pageURL *url.URL, payload json.RawMessage, authToken string, cookies cookie.Source) (*models.SubmissionRequest, error) {
	target, err := c.Target(pageURL)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := json.Compact(&body, payload); err != nil {
		return nil, fmt.Errorf("invalid import payload: %w", err)
	}

	header := make(http.Header)
	header.Set("Accept", "application/json")
	header.Set("Content-Type", "application/json; charset=utf-8")
	header.Set("Authorization", authToken)
	if token, ok := cookie.AntiForgeryToken(cookies); ok {
		header.Set("X-CSRFToken", token)
	}

	return &models.SubmissionRequest{
		URL:    target.String(),
		Body:   body.Bytes(),
		Header: header,
	}, nil
}

// Submit sends req up to MaxTries times. Only failures where the backend
// cannot have loaded the rows are retried: connection failures and 503.
// A load is not idempotent, so 502, 504 and any error after the request was
// sent are final. Callers classify the status with SubmissionResult.OK.
// An error is returned only when no response was ever received.
func (c *Client) Submit(ctx context.Context, req *models.SubmissionRequest) (*models.SubmissionResult, error) {
	start := time.Now()
	defer func() {
		metrics.SubmissionLatency.Observe(time.Since(start).Seconds())
	}()

	var (
		last     *models.SubmissionResult
		attempts int
	)

	operation := func() (*models.SubmissionResult, error) {
		attempts++
		result, err := c.send(ctx, req)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempts).Str("url", req.URL).Msg("submission attempt failed")
			return nil, err
		}

		result.Attempts = attempts
		last = result
		if isTransient(result.StatusCode) {
			c.logger.Warn().Int("status", result.StatusCode).Int("attempt", attempts).Msg("backend unavailable")
			return result, errTransient
		}
		return result, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.MaxTries)),
	)

	if last != nil {
		if last.OK() {
			metrics.Submissions.WithLabelValues("accepted").Inc()
		} else {
			metrics.Submissions.WithLabelValues("rejected").Inc()
		}
		return last, nil
	}

	metrics.Submissions.WithLabelValues("unreachable").Inc()
	return nil, fmt.Errorf("submission to %s failed after %d attempts: %w", req.URL, attempts, err)
}

func (c *Client) send(ctx context.Context, req *models.SubmissionRequest) (*models.SubmissionResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	httpReq.Header = req.Header.Clone()

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		if isConnectError(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &models.SubmissionResult{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

func isTransient(code int) bool {
	return code == http.StatusServiceUnavailable
}

// isConnectError reports whether err happened before the request was written.
func isConnectError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
