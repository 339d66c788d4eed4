// Package httpapi posts stamped request bodies to the custody API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxResponseBytes      = 4 << 20
	defaultRequestTimeout = 30 * time.Second
	RequestIDHeader       = "X-Request-Id"
	ClientVersionHeader   = "X-Client-Version"
)

type Client struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	// Limiter, when set, bounds the outbound request rate.
	Limiter       *rate.Limiter
	ClientVersion string
	Logger        zerolog.Logger
}

var _ ports.Transport = Client{}

// NewLimiter returns a limiter for perSecond requests, or nil when perSecond <= 0.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details []any  `json:"details"`
}

func (c Client) Post(ctx context.Context, path string, body []byte, stamp domain.Stamp) ([]byte, error) {
	endpoint, err := buildAPIURL(c.BaseURL, path)
	if err != nil {
		return nil, err
	}
	if stamp.HeaderName == "" || stamp.HeaderValue == "" {
		return nil, errors.New("request stamp is required")
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create api request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(stamp.HeaderName, stamp.HeaderValue)
	req.Header.Set(RequestIDHeader, requestID)
	if c.ClientVersion != "" {
		req.Header.Set(ClientVersionHeader, c.ClientVersion)
	}

	started := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Logger.Debug().Str("path", path).Str("request_id", requestID).Err(err).Msg("api request failed")
		return nil, &domain.NetworkError{Err: fmt.Errorf("post %s: %w", path, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	c.Logger.Debug().
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("api request")

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read %s response: %w", path, err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeError(resp.StatusCode, payload)
	}

	return payload, nil
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func decodeError(statusCode int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err != nil || apiErr.Message == "" {
		return &domain.NetworkError{StatusCode: statusCode, Message: http.StatusText(statusCode)}
	}

	return &domain.NetworkError{
		StatusCode: statusCode,
		Code:       apiErr.Code,
		Message:    apiErr.Message,
		Details:    apiErr.Details,
	}
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
