package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/rs/zerolog"
)

const (
	PathGetActivity           = "/public/v1/query/get_activity"
	PathWhoami                = "/public/v1/query/whoami"
	PathStampLogin            = "/public/v1/submit/stamp_login"
	PathCreateReadOnlySession = "/public/v1/submit/create_read_only_session"
)

// RefreshHook renews the session named by expired. The client calls it once
// when the API key stamper reports an expired session. Stamps made on the
// hook's ctx never call it again: an expired session seen there is returned.
type RefreshHook func(ctx context.Context, expired *domain.SessionExpiredError) error

type refreshingKey struct{}

func withRefreshing(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshingKey{}, true)
}

func refreshing(ctx context.Context) bool {
	inFlight, _ := ctx.Value(refreshingKey{}).(bool)
	return inFlight
}

type activityFetcherFunc func(ctx context.Context, activityID string) (domain.Activity, error)

func (f activityFetcherFunc) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return f(ctx, activityID)
}

// Client stamps and sends requests to the custody API with the selected credential.
type Client struct {
	transport      ports.Transport
	organizationID string
	clock          ports.Clock
	stampers       map[domain.CredentialType]ports.Stamper
	refresh        RefreshHook
	poller         *Poller
	pollerOpts     []PollerOption
	metrics        ports.Metrics
	logger         zerolog.Logger

	mu       sync.RWMutex
	selected domain.CredentialType
}

var _ ports.ActivityFetcher = (*Client)(nil)

type ClientOption func(*Client)

func WithAPIKeyStamper(stamper ports.Stamper) ClientOption {
	return withStamper(domain.CredentialAPIKey, stamper)
}

func WithPasskeyStamper(stamper ports.Stamper) ClientOption {
	return withStamper(domain.CredentialPasskey, stamper)
}

func WithWalletStamper(stamper ports.Stamper) ClientOption {
	return withStamper(domain.CredentialWallet, stamper)
}

func withStamper(credential domain.CredentialType, stamper ports.Stamper) ClientOption {
	return func(c *Client) {
		if stamper != nil {
			c.stampers[credential] = stamper
		}
	}
}

func WithRefreshHook(hook RefreshHook) ClientOption {
	return func(c *Client) {
		c.refresh = hook
	}
}

func WithClock(clock ports.Clock) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func WithPollerOptions(opts ...PollerOption) ClientOption {
	return func(c *Client) {
		c.pollerOpts = append(c.pollerOpts, opts...)
	}
}

func WithMetrics(metrics ports.Metrics) ClientOption {
	return func(c *Client) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient fails with domain.ErrMissingRefreshHook when an API key stamper is
// configured without a refresh hook.
func NewClient(transport ports.Transport, organizationID string, opts ...ClientOption) (*Client, error) {
	if transport == nil {
		return nil, errors.New("client transport is required")
	}

	c := &Client{
		transport:      transport,
		organizationID: organizationID,
		clock:          ports.SystemClock{},
		stampers:       make(map[domain.CredentialType]ports.Stamper),
		metrics:        ports.NopMetrics{},
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, ok := c.stampers[domain.CredentialAPIKey]; ok && c.refresh == nil {
		return nil, domain.ErrMissingRefreshHook
	}

	pollerOpts := append([]PollerOption{
		WithPollerMetrics(c.metrics),
		WithPollerLogger(c.logger),
	}, c.pollerOpts...)
	c.poller = NewPoller(c, c.clock, pollerOpts...)

	return c, nil
}

func (c *Client) OrganizationID() string {
	return c.organizationID
}

// UseCredential pins the stamper used for every request. An empty type goes
// back to automatic selection.
func (c *Client) UseCredential(credential domain.CredentialType) error {
	if credential != "" {
		if !credential.Valid() {
			return fmt.Errorf("unknown credential type %q", credential)
		}
		if _, ok := c.stampers[credential]; !ok {
			return &domain.CredentialError{
				Op:  "use credential",
				Err: fmt.Errorf("%w: no %s stamper configured", domain.ErrNoActiveCredential, credential),
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = credential

	return nil
}

// ActiveCredential resolves the credential type the next request will use:
// the pinned one, else the API key when it has a session or override, else
// passkey, else wallet.
func (c *Client) ActiveCredential(ctx context.Context) (domain.CredentialType, error) {
	c.mu.RLock()
	selected := c.selected
	c.mu.RUnlock()
	if selected != "" {
		return selected, nil
	}

	if stamper, ok := c.stampers[domain.CredentialAPIKey]; ok && available(ctx, stamper) {
		return domain.CredentialAPIKey, nil
	}
	if credential, ok := c.InteractiveCredential(ctx); ok {
		return credential, nil
	}

	return "", &domain.CredentialError{Op: "select credential", Err: domain.ErrNoActiveCredential}
}

// InteractiveCredential returns the passkey, else the wallet credential, when configured.
func (c *Client) InteractiveCredential(ctx context.Context) (domain.CredentialType, bool) {
	if _, ok := c.stampers[domain.CredentialPasskey]; ok {
		return domain.CredentialPasskey, true
	}
	if stamper, ok := c.stampers[domain.CredentialWallet]; ok && available(ctx, stamper) {
		return domain.CredentialWallet, true
	}

	return "", false
}

func available(ctx context.Context, stamper ports.Stamper) bool {
	probe, ok := stamper.(ports.CredentialProbe)
	return !ok || probe.HasCredential(ctx)
}

// Stamp signs payload with the active credential.
func (c *Client) Stamp(ctx context.Context, payload []byte) (domain.Stamp, error) {
	credential, err := c.ActiveCredential(ctx)
	if err != nil {
		return domain.Stamp{}, err
	}

	return c.StampAs(ctx, credential, payload)
}

// StampAs signs payload with the given credential type, refreshing an expired
// API key session once through the refresh hook.
func (c *Client) StampAs(ctx context.Context, credential domain.CredentialType, payload []byte) (domain.Stamp, error) {
	stamper, ok := c.stampers[credential]
	if !ok {
		return domain.Stamp{}, &domain.CredentialError{
			Op:  "select credential",
			Err: fmt.Errorf("%w: no %s stamper configured", domain.ErrNoActiveCredential, credential),
		}
	}

	stamp, err := stamper.Stamp(ctx, payload)
	c.metrics.ObserveStamp(credential, err)

	var expired *domain.SessionExpiredError
	if err == nil || credential != domain.CredentialAPIKey || !errors.As(err, &expired) {
		return stamp, err
	}
	if refreshing(ctx) {
		c.logger.Debug().Str("session_key", expired.SessionKey).Msg("session expired during refresh")
		return domain.Stamp{}, err
	}

	c.logger.Info().Str("session_key", expired.SessionKey).Msg("session expired, refreshing")
	if hookErr := c.refresh(withRefreshing(ctx), expired); hookErr != nil {
		return domain.Stamp{}, fmt.Errorf("refresh expired session: %w", errors.Join(err, hookErr))
	}

	stamp, err = stamper.Stamp(ctx, payload)
	c.metrics.ObserveStamp(credential, err)
	return stamp, err
}

// Query posts a read-only request. organizationId is added to body when absent
// and the bare JSON result is decoded into out.
func (c *Client) Query(ctx context.Context, path string, body any, out any) error {
	payload, err := c.withOrganization(body)
	if err != nil {
		return err
	}

	raw, err := c.post(ctx, "", path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

// SubmitActivity posts a command envelope with the active credential and waits
// for the resulting activity. Status polls are stamped with the same credential.
func (c *Client) SubmitActivity(ctx context.Context, path, activityType string, params any) (domain.Activity, error) {
	return c.submit(ctx, "", nil, path, activityType, params)
}

// SubmitActivityAs is SubmitActivity with an explicit credential type.
func (c *Client) SubmitActivityAs(ctx context.Context, credential domain.CredentialType, path, activityType string, params any) (domain.Activity, error) {
	return c.submit(ctx, credential, nil, path, activityType, params)
}

// SubmitActivityWith is SubmitActivity stamped by stamper instead of a configured credential.
func (c *Client) SubmitActivityWith(ctx context.Context, stamper ports.Stamper, path, activityType string, params any) (domain.Activity, error) {
	if stamper == nil {
		return domain.Activity{}, errors.New("stamper is required")
	}
	return c.submit(ctx, "", stamper, path, activityType, params)
}

func (c *Client) submit(ctx context.Context, credential domain.CredentialType, stamper ports.Stamper, path, activityType string, params any) (domain.Activity, error) {
	if params == nil {
		params = struct{}{}
	}
	if stamper == nil && credential == "" {
		active, err := c.ActiveCredential(ctx)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("stamp %s: %w", path, err)
		}
		credential = active
	}

	body, err := json.Marshal(domain.ActivityEnvelope{
		Type:           activityType,
		TimestampMs:    strconv.FormatInt(c.clock.Now().UnixMilli(), 10),
		OrganizationID: c.organizationID,
		Parameters:     params,
	})
	if err != nil {
		return domain.Activity{}, fmt.Errorf("encode %s: %w", activityType, err)
	}

	var raw []byte
	if stamper != nil {
		raw, err = c.postWith(ctx, stamper, path, body)
	} else {
		raw, err = c.post(ctx, credential, path, body)
	}
	if err != nil {
		return domain.Activity{}, err
	}

	activity, err := decodeActivity(raw)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("decode %s response: %w", activityType, err)
	}
	c.logger.Debug().Str("activity_id", activity.ID).Str("status", string(activity.Status)).Msg("activity submitted")

	fetcher := activityFetcherFunc(func(ctx context.Context, activityID string) (domain.Activity, error) {
		return c.getActivity(ctx, credential, stamper, activityID)
	})
	return c.poller.AwaitWith(ctx, fetcher, activity)
}

// GetActivity fetches an activity once with the active credential.
func (c *Client) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return c.getActivity(ctx, "", nil, activityID)
}

func (c *Client) getActivity(ctx context.Context, credential domain.CredentialType, stamper ports.Stamper, activityID string) (domain.Activity, error) {
	if activityID == "" {
		return domain.Activity{}, errors.New("activity id is required")
	}

	payload, err := json.Marshal(map[string]string{
		"organizationId": c.organizationID,
		"activityId":     activityID,
	})
	if err != nil {
		return domain.Activity{}, fmt.Errorf("encode get activity: %w", err)
	}

	var raw []byte
	if stamper != nil {
		raw, err = c.postWith(ctx, stamper, PathGetActivity, payload)
	} else {
		raw, err = c.post(ctx, credential, PathGetActivity, payload)
	}
	if err != nil {
		return domain.Activity{}, err
	}

	activity, err := decodeActivity(raw)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("decode activity %s: %w", activityID, err)
	}

	return activity, nil
}

// ResumeActivity continues polling an activity that previously needed consensus.
func (c *Client) ResumeActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	activity, err := c.GetActivity(ctx, activityID)
	if err != nil {
		return domain.Activity{}, err
	}

	return c.poller.Await(ctx, activity)
}

func (c *Client) post(ctx context.Context, credential domain.CredentialType, path string, body []byte) ([]byte, error) {
	var (
		stamp domain.Stamp
		err   error
	)
	if credential == "" {
		stamp, err = c.Stamp(ctx, body)
	} else {
		stamp, err = c.StampAs(ctx, credential, body)
	}
	if err != nil {
		return nil, fmt.Errorf("stamp %s: %w", path, err)
	}

	return c.transport.Post(ctx, path, body, stamp)
}

func (c *Client) postWith(ctx context.Context, stamper ports.Stamper, path string, body []byte) ([]byte, error) {
	stamp, err := stamper.Stamp(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("stamp %s: %w", path, err)
	}

	return c.transport.Post(ctx, path, body, stamp)
}

func (c *Client) withOrganization(body any) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode query body: %w", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("query body must be a JSON object: %w", err)
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	if _, ok := fields["organizationId"]; !ok {
		org, err := json.Marshal(c.organizationID)
		if err != nil {
			return nil, fmt.Errorf("encode organization id: %w", err)
		}
		fields["organizationId"] = org
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode query body: %w", err)
	}

	return payload, nil
}

type activityResponse struct {
	Activity *domain.Activity `json:"activity"`
}

func decodeActivity(raw []byte) (domain.Activity, error) {
	var resp activityResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Activity{}, err
	}
	if resp.Activity == nil || resp.Activity.ID == "" {
		return domain.Activity{}, errors.New("response has no activity")
	}

	return *resp.Activity, nil
}
