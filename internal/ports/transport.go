package ports

import (
	"context"

	"github.com/bnema/stampkit/internal/domain"
)

// Transport posts a stamped body and returns the raw 2xx response body.
type Transport interface {
	Post(ctx context.Context, path string, body []byte, stamp domain.Stamp) ([]byte, error)
}

type ActivityFetcher interface {
	GetActivity(ctx context.Context, activityID string) (domain.Activity, error)
}
