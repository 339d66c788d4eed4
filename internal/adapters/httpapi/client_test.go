package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var testStamp = domain.Stamp{HeaderName: domain.StampHeaderName, HeaderValue: "stamp-value", Scheme: domain.SchemeAPIP256, PublicKey: "02ab"}

func TestPostAttachesStampAndReturnsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/public/v1/query/whoami", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "stamp-value", r.Header.Get(domain.StampHeaderName))
		assert.Equal(t, "test", r.Header.Get(ClientVersionHeader))
		_, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		assert.NoError(t, err)

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"organizationId":"org-1"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"userId":"u-1"}`))
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL, HTTPClient: server.Client(), ClientVersion: "test"}
	got, err := client.Post(context.Background(), "/public/v1/query/whoami", []byte(`{"organizationId":"org-1"}`), testStamp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u-1"}`, string(got))
}

func TestPostMapsStructuredErrorToNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":7,"message":"policy denied","details":[{"field":"x"}]}`))
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.Post(context.Background(), "/public/v1/submit/sign", []byte(`{}`), testStamp)
	require.Error(t, err)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusForbidden, netErr.StatusCode)
	assert.Equal(t, 7, netErr.Code)
	assert.Equal(t, "policy denied", netErr.Message)
	assert.Len(t, netErr.Details, 1)
}

func TestPostMapsUnstructuredErrorToStatusText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.Post(context.Background(), "/x", nil, testStamp)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusBadGateway, netErr.StatusCode)
	assert.Equal(t, "Bad Gateway", netErr.Message)
}

func TestPostWrapsTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL, HTTPClient: server.Client(), RequestTimeout: 20 * time.Millisecond}
	_, err := client.Post(context.Background(), "/x", nil, testStamp)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPostValidatesInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		client  Client
		stamp   domain.Stamp
		wantErr string
	}{
		{name: "missing base url", client: Client{}, stamp: testStamp, wantErr: "api base url is required"},
		{name: "bad scheme", client: Client{BaseURL: "ftp://host"}, stamp: testStamp, wantErr: "must use http or https"},
		{name: "missing stamp", client: Client{BaseURL: "https://api.example.com"}, wantErr: "request stamp is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Post(context.Background(), "/x", nil, tt.stamp)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPostHonorsRateLimiter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	client := Client{BaseURL: server.URL, HTTPClient: server.Client(), Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}
	_, err := client.Post(context.Background(), "/x", nil, testStamp)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Post(ctx, "/x", nil, testStamp)
	assert.ErrorContains(t, err, "wait for rate limiter")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewLimiter(0, 5))
	limiter := NewLimiter(2, 0)
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())
}
