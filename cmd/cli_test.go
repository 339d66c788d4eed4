package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/stampkit/internal/adapters/stamper"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/version"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWalletKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestVersionPrintsBuildVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)
}

func TestKeysCreateListDelete(t *testing.T) {
	home := t.TempDir()

	publicKey := createKey(t, home)
	assert.Len(t, publicKey, 66)

	stdout, _, err := executeCLI(t, home, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, publicKey)

	_, _, err = executeCLI(t, home, "keys", "delete", publicKey)
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, "no key pairs\n", stdout)
}

func TestKeysClearRequiresConfirmation(t *testing.T) {
	home := t.TempDir()
	createKey(t, home)

	_, _, err := executeCLI(t, home, "keys", "clear")
	require.ErrorIs(t, err, errClearNeedsConfirmation)

	_, _, err = executeCLI(t, home, "keys", "clear", "--yes")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "keys", "list")
	require.NoError(t, err)
	assert.Equal(t, "no key pairs\n", stdout)
}

func TestSessionImportThenList(t *testing.T) {
	home := t.TempDir()
	publicKey := createKey(t, home)

	stdout, _, err := executeCLI(t, home, "session", "import", sessionJWT(t, publicKey, time.Now().Add(10*time.Minute)), "--key", "work")
	require.NoError(t, err)
	assert.Contains(t, stdout, "stored session work (SESSION_TYPE_READ_WRITE")

	stdout, _, err = executeCLI(t, home, "session", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "* work (active)")
	assert.Contains(t, stdout, "read-write")
	assert.Contains(t, stdout, publicKey[:8]+"...")

	stdout, _, err = executeCLI(t, home, "session", "show", "--verbose")
	require.NoError(t, err)
	var view sessionView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "work", view.Key)
	assert.True(t, view.Active)
	assert.Equal(t, publicKey, view.PublicKey)
	assert.False(t, view.Expired)
}

func TestSessionImportRejectsUnknownKey(t *testing.T) {
	home := t.TempDir()
	unknown := "02" + strings.Repeat("ab", 32)

	_, _, err := executeCLI(t, home, "session", "import", sessionJWT(t, unknown, time.Now().Add(time.Minute)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestSessionUseUnknownKeyFails(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "session", "use", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionListJSONOutput(t *testing.T) {
	home := t.TempDir()
	publicKey := createKey(t, home)
	_, _, err := executeCLI(t, home, "session", "import", sessionJWT(t, publicKey, time.Now().Add(-time.Minute)))
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "session", "list", "--json")
	require.NoError(t, err)

	var views []sessionView
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 1)
	assert.Equal(t, domain.DefaultSessionKey, views[0].Key)
	assert.True(t, views[0].Expired)
}

func TestStampWithStoredKeyPrintsHeader(t *testing.T) {
	home := t.TempDir()
	publicKey := createKey(t, home)

	stdout, _, err := executeCLI(t, home, "stamp", "--key", publicKey, "--body", `{"hello":"world"}`)
	require.NoError(t, err)

	name, value, ok := strings.Cut(strings.TrimSpace(stdout), ": ")
	require.True(t, ok)
	assert.Equal(t, domain.StampHeaderName, name)

	payload, err := stamper.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, publicKey, payload.PublicKey)
	assert.Equal(t, domain.SchemeAPIP256, payload.Scheme)
}

func TestStampWithoutCredentialFails(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "stamp", "--body", "{}")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoActiveCredential)
}

func TestStampWithWalletChain(t *testing.T) {
	t.Setenv("STK_WALLET_ETHEREUM_KEY", testWalletKey)

	stdout, _, err := executeCLI(t, t.TempDir(), "stamp", "--chain", "eip155", "--body", "{}")
	require.NoError(t, err)

	_, value, ok := strings.Cut(strings.TrimSpace(stdout), ": ")
	require.True(t, ok)
	payload, err := stamper.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, domain.SchemeSecp256k1EIP191, payload.Scheme)

	_, _, err = executeCLI(t, t.TempDir(), "stamp", "--chain", "solana", "--body", "{}")
	assert.ErrorIs(t, err, domain.ErrNoProviderForChain)
}

func TestActivityWaitPollsUntilCompleted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/v1/query/get_activity", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(domain.StampHeaderName))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "act-1", body["activityId"])
		assert.Equal(t, "org-1", body["organizationId"])

		status := domain.ActivityStatusPending
		if calls.Add(1) > 1 {
			time.Sleep(200 * time.Millisecond)
			status = domain.ActivityStatusCompleted
		}
		writeActivityResponse(w, "act-1", status)
	}))
	defer server.Close()

	home := t.TempDir()
	importActiveSession(t, home)
	useServer(t, server.URL)

	stdout, stderr, err := executeCLI(t, home, "activity", "wait", "act-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "act-1  ACTIVITY_STATUS_COMPLETED")
	assert.Contains(t, stderr, "Waiting for activity act-1")
	assert.EqualValues(t, 2, calls.Load())
}

func TestActivityWaitPrintsResumeHintOnConsensus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeActivityResponse(w, "act-9", domain.ActivityStatusPending)
	}))
	defer server.Close()

	home := t.TempDir()
	importActiveSession(t, home)
	useServer(t, server.URL)
	t.Setenv("STK_ACTIVITY_NUM_RETRIES", "1")

	_, stderr, err := executeCLI(t, home, "activity", "wait", "act-9")
	require.Error(t, err)

	var consensus *domain.ConsensusNeededError
	require.ErrorAs(t, err, &consensus)
	assert.Equal(t, "act-9", consensus.ActivityID)
	assert.Contains(t, stderr, "resume with: stk activity wait act-9")
}

func TestActivityGetJSONOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeActivityResponse(w, "act-2", domain.ActivityStatusFailed)
	}))
	defer server.Close()

	home := t.TempDir()
	importActiveSession(t, home)
	useServer(t, server.URL)

	stdout, _, err := executeCLI(t, home, "activity", "get", "act-2", "--json")
	require.NoError(t, err)

	var activity domain.Activity
	require.NoError(t, json.Unmarshal([]byte(stdout), &activity))
	assert.Equal(t, domain.ActivityStatusFailed, activity.Status)
}

func TestActivityGetReturnsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"code":7,"message":"policy denied"}`)
	}))
	defer server.Close()

	home := t.TempDir()
	importActiveSession(t, home)
	useServer(t, server.URL)

	_, _, err := executeCLI(t, home, "activity", "get", "act-3")
	require.Error(t, err)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusForbidden, netErr.StatusCode)
	assert.Equal(t, "policy denied", netErr.Message)
}

func TestWhoamiAddsOrganizationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/v1/query/whoami", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"organizationId":"org-1"}`, string(raw))
		_, _ = fmt.Fprint(w, `{"organizationId":"org-1","userId":"user-1","username":"ops"}`)
	}))
	defer server.Close()

	home := t.TempDir()
	importActiveSession(t, home)
	useServer(t, server.URL)

	stdout, _, err := executeCLI(t, home, "whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"userId": "user-1"`)
}

func TestSessionLoginWithWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/v1/submit/stamp_login", r.URL.Path)

		payload, err := stamper.Decode(r.Header.Get(domain.StampHeaderName))
		assert.NoError(t, err)
		assert.Equal(t, domain.SchemeSecp256k1EIP191, payload.Scheme)

		var envelope struct {
			Type       string `json:"type"`
			Parameters struct {
				PublicKey string `json:"publicKey"`
			} `json:"parameters"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.Equal(t, domain.ActivityTypeStampLogin, envelope.Type)

		result, err := json.Marshal(map[string]any{
			"stampLoginResult": map[string]string{
				"session": sessionJWT(t, envelope.Parameters.PublicKey, time.Now().Add(15*time.Minute)),
			},
		})
		assert.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"activity": domain.Activity{
				ID:     "act-login",
				Type:   domain.ActivityTypeStampLogin,
				Status: domain.ActivityStatusCompleted,
				Result: result,
			},
		})
	}))
	defer server.Close()

	home := t.TempDir()
	useServer(t, server.URL)
	t.Setenv("STK_WALLET_ETHEREUM_KEY", testWalletKey)

	stdout, _, err := executeCLI(t, home, "session", "login", "--credential", "wallet")
	require.NoError(t, err)
	assert.Contains(t, stdout, "stored session "+domain.DefaultSessionKey)

	stdout, _, err = executeCLI(t, home, "keys", "list")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(stdout), 1)
}

func TestStatsFlagPrintsCounters(t *testing.T) {
	home := t.TempDir()
	publicKey := createKey(t, home)

	_, stderr, err := executeCLI(t, home, "--stats", "stamp", "--key", publicKey, "--body", "{}")
	require.NoError(t, err)
	assert.Contains(t, stderr, `stampkit_stamps_total{credential="api_key",result="ok"} 1`)
}

func TestUnknownSecretBackendFails(t *testing.T) {
	t.Setenv("STK_SECRETS_BACKEND", "vault")

	_, _, err := executeCLI(t, t.TempDir(), "keys", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wire secret store")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	if _, ok := os.LookupEnv("STK_SECRETS_BACKEND"); !ok {
		t.Setenv("STK_SECRETS_BACKEND", "file")
	}

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func createKey(t *testing.T, home string) string {
	t.Helper()

	stdout, _, err := executeCLI(t, home, "keys", "create")
	require.NoError(t, err)
	return strings.TrimSpace(stdout)
}

func importActiveSession(t *testing.T, home string) {
	t.Helper()

	publicKey := createKey(t, home)
	_, _, err := executeCLI(t, home, "session", "import", sessionJWT(t, publicKey, time.Now().Add(10*time.Minute)))
	require.NoError(t, err)
}

func useServer(t *testing.T, url string) {
	t.Helper()
	t.Setenv("STK_API_BASE_URL", url)
	t.Setenv("STK_API_ORGANIZATION_ID", "org-1")
	t.Setenv("STK_ACTIVITY_POLL_INTERVAL", "5ms")
}

func sessionJWT(t *testing.T, publicKey string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"public_key":      publicKey,
		"session_type":    string(domain.SessionTypeReadWrite),
		"user_id":         "user-1",
		"organization_id": "org-1",
		"exp":             expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func writeActivityResponse(w http.ResponseWriter, id string, status domain.ActivityStatus) {
	activity := domain.Activity{ID: id, Type: "ACTIVITY_TYPE_SIGN_TRANSACTION_V2", OrganizationID: "org-1", Status: status}
	if status == domain.ActivityStatusFailed {
		activity.Failure = &domain.ActivityFailure{Message: "policy rejected"}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"activity": activity})
}
