package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return fixedNow }

func (fixedClock) After(time.Duration) <-chan time.Time { return firedAfter(0) }

// probedStamper reports whether it holds a credential, like the API key stamper.
type probedStamper struct {
	*mocks.MockStamper
	has bool
}

func (s probedStamper) HasCredential(context.Context) bool { return s.has }

func stampFor(name string) domain.Stamp {
	return domain.Stamp{HeaderName: domain.StampHeaderName, HeaderValue: name, PublicKey: name}
}

func noRefresh(context.Context, *domain.SessionExpiredError) error {
	return errors.New("unexpected refresh")
}

func TestNewClientRequiresRefreshHookForAPIKeyStamper(t *testing.T) {
	transport := mocks.NewMockTransport(t)

	_, err := NewClient(transport, "org-1", WithAPIKeyStamper(mocks.NewMockStamper(t)))
	assert.ErrorIs(t, err, domain.ErrMissingRefreshHook)

	_, err = NewClient(transport, "org-1", WithPasskeyStamper(mocks.NewMockStamper(t)))
	assert.NoError(t, err)

	_, err = NewClient(nil, "org-1")
	assert.ErrorContains(t, err, "transport is required")
}

func TestSubmitActivitySendsCommandEnvelope(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	stamper := mocks.NewMockStamper(t)
	client, err := NewClient(transport, "org-1", WithPasskeyStamper(stamper), WithClock(fixedClock{}))
	require.NoError(t, err)

	var sent []byte
	stamper.EXPECT().Stamp(mock.Anything, mock.Anything).RunAndReturn(func(_ context.Context, payload []byte) (domain.Stamp, error) {
		sent = payload
		return stampFor("passkey"), nil
	}).Once()
	transport.EXPECT().Post(mock.Anything, "/public/v1/submit/sign_raw_payload", mock.Anything, stampFor("passkey")).
		RunAndReturn(func(_ context.Context, _ string, body []byte, _ domain.Stamp) ([]byte, error) {
			assert.Equal(t, sent, body)
			return []byte(`{"activity":{"id":"act-1","status":"ACTIVITY_STATUS_COMPLETED","result":{"signRawPayloadResult":{"r":"01"}}}}`), nil
		}).Once()

	activity, err := client.SubmitActivity(context.Background(), "/public/v1/submit/sign_raw_payload", "ACTIVITY_TYPE_SIGN_RAW_PAYLOAD_V2", map[string]string{"payload": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "act-1", activity.ID)
	assert.JSONEq(t, `{"signRawPayloadResult":{"r":"01"}}`, string(activity.Result))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(sent, &envelope))
	assert.Equal(t, "ACTIVITY_TYPE_SIGN_RAW_PAYLOAD_V2", envelope["type"])
	assert.Equal(t, "1772357400000", envelope["timestampMs"])
	assert.Equal(t, "org-1", envelope["organizationId"])
	assert.Equal(t, map[string]any{"payload": "abc"}, envelope["parameters"])
}

func TestSubmitActivityPollsPendingActivity(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	stamper := mocks.NewMockStamper(t)
	client, err := NewClient(transport, "org-1", WithPasskeyStamper(stamper), WithClock(fixedClock{}))
	require.NoError(t, err)

	stamper.EXPECT().Stamp(mock.Anything, mock.Anything).Return(stampFor("passkey"), nil).Times(2)
	transport.EXPECT().Post(mock.Anything, "/public/v1/submit/x", mock.Anything, mock.Anything).
		Return([]byte(`{"activity":{"id":"act-9","status":"ACTIVITY_STATUS_PENDING"}}`), nil).Once()
	transport.EXPECT().Post(mock.Anything, PathGetActivity, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, _ string, body []byte, _ domain.Stamp) ([]byte, error) {
			assert.JSONEq(t, `{"organizationId":"org-1","activityId":"act-9"}`, string(body))
			return []byte(`{"activity":{"id":"act-9","status":"ACTIVITY_STATUS_COMPLETED"}}`), nil
		}).Once()

	activity, err := client.SubmitActivity(context.Background(), "/public/v1/submit/x", "ACTIVITY_TYPE_X", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityStatusCompleted, activity.Status)
}

func TestResumeActivityContinuesPolling(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	stamper := mocks.NewMockStamper(t)
	client, err := NewClient(transport, "org-1", WithPasskeyStamper(stamper), WithClock(fixedClock{}), WithPollerOptions(WithNumRetries(1)))
	require.NoError(t, err)

	stamper.EXPECT().Stamp(mock.Anything, mock.Anything).Return(stampFor("passkey"), nil).Times(2)
	transport.EXPECT().Post(mock.Anything, PathGetActivity, mock.Anything, mock.Anything).
		Return([]byte(`{"activity":{"id":"act-9","status":"ACTIVITY_STATUS_PENDING"}}`), nil).Times(2)

	_, err = client.ResumeActivity(context.Background(), "act-9")
	var consensus *domain.ConsensusNeededError
	require.ErrorAs(t, err, &consensus)
	assert.Equal(t, "act-9", consensus.ActivityID)
}

func TestQueryAddsOrganizationAndDecodesResult(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	stamper := mocks.NewMockStamper(t)
	client, err := NewClient(transport, "org-1", WithWalletStamper(stamper))
	require.NoError(t, err)

	stamper.EXPECT().Stamp(mock.Anything, mock.Anything).Return(stampFor("wallet"), nil).Once()
	transport.EXPECT().Post(mock.Anything, PathWhoami, mock.Anything, stampFor("wallet")).
		RunAndReturn(func(_ context.Context, _ string, body []byte, _ domain.Stamp) ([]byte, error) {
			assert.JSONEq(t, `{"organizationId":"org-1","limit":10}`, string(body))
			return []byte(`{"userId":"user-1"}`), nil
		}).Once()

	var out struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, client.Query(context.Background(), PathWhoami, map[string]int{"limit": 10}, &out))
	assert.Equal(t, "user-1", out.UserID)
}

func TestActiveCredentialSelection(t *testing.T) {
	apiKey := probedStamper{MockStamper: mocks.NewMockStamper(t)}
	passkey := mocks.NewMockStamper(t)
	wallet := probedStamper{MockStamper: mocks.NewMockStamper(t), has: true}

	client, err := NewClient(mocks.NewMockTransport(t), "org-1",
		WithAPIKeyStamper(apiKey),
		WithPasskeyStamper(passkey),
		WithWalletStamper(wallet),
		WithRefreshHook(noRefresh),
	)
	require.NoError(t, err)

	credential, err := client.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CredentialPasskey, credential)

	require.NoError(t, client.UseCredential(domain.CredentialWallet))
	credential, err = client.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CredentialWallet, credential)

	assert.Error(t, client.UseCredential("smartcard"))
	require.NoError(t, client.UseCredential(""))

	withSession, err := NewClient(mocks.NewMockTransport(t), "org-1",
		WithAPIKeyStamper(probedStamper{MockStamper: mocks.NewMockStamper(t), has: true}),
		WithPasskeyStamper(passkey),
		WithRefreshHook(noRefresh),
	)
	require.NoError(t, err)
	credential, err = withSession.ActiveCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CredentialAPIKey, credential)
}

func TestActiveCredentialFailsWithoutAnyCredential(t *testing.T) {
	client, err := NewClient(mocks.NewMockTransport(t), "org-1",
		WithWalletStamper(probedStamper{MockStamper: mocks.NewMockStamper(t)}),
	)
	require.NoError(t, err)

	_, err = client.ActiveCredential(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoActiveCredential)

	err = client.UseCredential(domain.CredentialPasskey)
	assert.ErrorIs(t, err, domain.ErrNoActiveCredential)
}

func TestStampRefreshesExpiredSessionOnce(t *testing.T) {
	apiKey := probedStamper{MockStamper: mocks.NewMockStamper(t), has: true}
	expired := &domain.SessionExpiredError{SessionKey: domain.DefaultSessionKey, Expiry: 100}

	var refreshed []string
	client, err := NewClient(mocks.NewMockTransport(t), "org-1",
		WithAPIKeyStamper(apiKey),
		WithRefreshHook(func(_ context.Context, e *domain.SessionExpiredError) error {
			refreshed = append(refreshed, e.SessionKey)
			return nil
		}),
	)
	require.NoError(t, err)

	apiKey.EXPECT().Stamp(mock.Anything, []byte("body")).Return(domain.Stamp{}, expired).Once()
	apiKey.EXPECT().Stamp(mock.Anything, []byte("body")).Return(stampFor("fresh"), nil).Once()

	stamp, err := client.Stamp(context.Background(), []byte("body"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", stamp.PublicKey)
	assert.Equal(t, []string{domain.DefaultSessionKey}, refreshed)
}

func TestStampPropagatesExpiryWhenRefreshFails(t *testing.T) {
	apiKey := probedStamper{MockStamper: mocks.NewMockStamper(t), has: true}
	expired := &domain.SessionExpiredError{SessionKey: "work", Expiry: 100}
	hookErr := errors.New("passkey dismissed")

	client, err := NewClient(mocks.NewMockTransport(t), "org-1",
		WithAPIKeyStamper(apiKey),
		WithRefreshHook(func(context.Context, *domain.SessionExpiredError) error { return hookErr }),
	)
	require.NoError(t, err)

	apiKey.EXPECT().Stamp(mock.Anything, mock.Anything).Return(domain.Stamp{}, expired).Once()

	_, err = client.Stamp(context.Background(), []byte("body"))
	require.Error(t, err)

	var gotExpired *domain.SessionExpiredError
	require.ErrorAs(t, err, &gotExpired)
	assert.Equal(t, "work", gotExpired.SessionKey)
	assert.ErrorIs(t, err, hookErr)
}

func TestStampErrorsAbortTheRequest(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	stamper := mocks.NewMockStamper(t)
	client, err := NewClient(transport, "org-1", WithPasskeyStamper(stamper))
	require.NoError(t, err)

	signErr := &domain.SigningError{Op: "passkey assertion", Err: domain.ErrPasskeyCeremonyFailed}
	stamper.EXPECT().Stamp(mock.Anything, mock.Anything).Return(domain.Stamp{}, signErr).Once()

	_, err = client.SubmitActivity(context.Background(), "/public/v1/submit/x", "ACTIVITY_TYPE_X", nil)
	assert.ErrorIs(t, err, domain.ErrPasskeyCeremonyFailed)
}

func TestSubmitActivityAsPollsWithSubmittingCredential(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	apiKey := probedStamper{MockStamper: mocks.NewMockStamper(t), has: true}
	wallet := mocks.NewMockStamper(t)
	client, err := NewClient(transport, "org-1",
		WithAPIKeyStamper(apiKey),
		WithWalletStamper(wallet),
		WithRefreshHook(noRefresh),
		WithClock(fixedClock{}),
	)
	require.NoError(t, err)

	wallet.EXPECT().Stamp(mock.Anything, mock.Anything).Return(stampFor("wallet"), nil).Times(2)
	transport.EXPECT().Post(mock.Anything, "/public/v1/submit/x", mock.Anything, stampFor("wallet")).
		Return([]byte(`{"activity":{"id":"act-9","status":"ACTIVITY_STATUS_PENDING"}}`), nil).Once()
	transport.EXPECT().Post(mock.Anything, PathGetActivity, mock.Anything, stampFor("wallet")).
		Return([]byte(`{"activity":{"id":"act-9","status":"ACTIVITY_STATUS_COMPLETED"}}`), nil).Once()

	activity, err := client.SubmitActivityAs(context.Background(), domain.CredentialWallet, "/public/v1/submit/x", "ACTIVITY_TYPE_X", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityStatusCompleted, activity.Status)
}

func TestSubmitActivityWithPollsWithGivenStamper(t *testing.T) {
	transport := mocks.NewMockTransport(t)
	passkey := mocks.NewMockStamper(t)
	external := mocks.NewMockStamper(t)
	client, err := NewClient(transport, "org-1", WithPasskeyStamper(passkey), WithClock(fixedClock{}))
	require.NoError(t, err)

	external.EXPECT().Stamp(mock.Anything, mock.Anything).Return(stampFor("session-key"), nil).Times(2)
	transport.EXPECT().Post(mock.Anything, "/public/v1/submit/x", mock.Anything, stampFor("session-key")).
		Return([]byte(`{"activity":{"id":"act-9","status":"ACTIVITY_STATUS_PENDING"}}`), nil).Once()
	transport.EXPECT().Post(mock.Anything, PathGetActivity, mock.Anything, stampFor("session-key")).
		Return([]byte(`{"activity":{"id":"act-9","status":"ACTIVITY_STATUS_COMPLETED"}}`), nil).Once()

	_, err = client.SubmitActivityWith(context.Background(), external, "/public/v1/submit/x", "ACTIVITY_TYPE_X", nil)
	require.NoError(t, err)
}

func TestRefreshHookIsNotReentered(t *testing.T) {
	apiKey := probedStamper{MockStamper: mocks.NewMockStamper(t), has: true}
	expired := &domain.SessionExpiredError{SessionKey: "work", Expiry: 100}

	var (
		client   *Client
		calls    int
		innerErr error
	)
	client, err := NewClient(mocks.NewMockTransport(t), "org-1",
		WithAPIKeyStamper(apiKey),
		WithRefreshHook(func(ctx context.Context, _ *domain.SessionExpiredError) error {
			calls++
			_, innerErr = client.Stamp(ctx, []byte("body"))
			return innerErr
		}),
	)
	require.NoError(t, err)

	apiKey.EXPECT().Stamp(mock.Anything, []byte("body")).Return(domain.Stamp{}, expired).Times(2)

	_, err = client.Stamp(context.Background(), []byte("body"))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, expired, innerErr)

	var gotExpired *domain.SessionExpiredError
	require.ErrorAs(t, err, &gotExpired)
	assert.Equal(t, "work", gotExpired.SessionKey)
}
