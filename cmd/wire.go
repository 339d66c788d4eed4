package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bnema/stampkit/internal/adapters/httpapi"
	"github.com/bnema/stampkit/internal/adapters/keystore"
	"github.com/bnema/stampkit/internal/adapters/metrics"
	sessionsrender "github.com/bnema/stampkit/internal/adapters/render/sessions"
	"github.com/bnema/stampkit/internal/adapters/secrets/platform"
	"github.com/bnema/stampkit/internal/adapters/sessionstore"
	"github.com/bnema/stampkit/internal/adapters/stamper/apikey"
	walletstamper "github.com/bnema/stampkit/internal/adapters/stamper/wallet"
	"github.com/bnema/stampkit/internal/adapters/wallet/evm"
	"github.com/bnema/stampkit/internal/adapters/wallet/solana"
	"github.com/bnema/stampkit/internal/application"
	"github.com/bnema/stampkit/internal/config"
	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/bnema/stampkit/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type app struct {
	cfg            config.Config
	logger         zerolog.Logger
	keys           ports.KeyStore
	sessions       ports.SessionStore
	apiKey         *apikey.Stamper
	wallet         *walletstamper.Stamper
	client         *application.Client
	service        *application.SessionService
	registry       *prometheus.Registry
	sessionsRender func([]sessionsrender.Row, sessionsrender.RenderOptions) (string, error)
	now            func() time.Time
	closers        []func()
}

type wireOptions struct {
	configPath string
	verbose    bool
	logOutput  io.Writer
}

// lazyApp wires the application on first use so that commands like version
// run without touching the secret backend.
type lazyApp struct {
	opts wireOptions

	once sync.Once
	app  *app
	err  error
}

func (l *lazyApp) get(ctx context.Context) (*app, error) {
	l.once.Do(func() {
		l.app, l.err = wireApp(ctx, l.opts)
	})

	return l.app, l.err
}

func (l *lazyApp) close() {
	if l.app == nil {
		return
	}
	for _, closeFn := range l.app.closers {
		closeFn()
	}
}

func wireApp(ctx context.Context, opts wireOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(opts.logOutput, cfg.Log.Level, opts.verbose)

	secrets, err := platform.Open(ctx, cfg.Secrets.Backend, platform.Options{
		Dir:         cfg.Secrets.Dir,
		Passphrase:  cfg.Secrets.Passphrase,
		ServiceName: cfg.Secrets.ServiceName,
		PassPrefix:  cfg.Secrets.PassPrefix,
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		RedisPrefix: cfg.Redis.Prefix,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	keys := keystore.NewStore(secrets, keystore.WithSecretKey(cfg.KeyStore.SecretKey), keystore.WithLogger(logger))

	sessions, err := sessionstore.Open(cfg.Sessions.Backend, cfg.Viper(), secrets)
	if err != nil {
		return nil, fmt.Errorf("wire session store: %w", err)
	}

	clock := ports.SystemClock{}
	apiKey := apikey.New(keys, sessions, clock)

	wallet, closers, err := wireWallet(ctx, cfg.Wallet)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("wire metrics: %w", err)
	}

	transport := httpapi.Client{
		BaseURL:        cfg.API.BaseURL,
		HTTPClient:     &http.Client{},
		RequestTimeout: cfg.API.Timeout,
		Limiter:        httpapi.NewLimiter(cfg.API.RateLimit, cfg.API.Burst),
		ClientVersion:  version.Version,
		Logger:         logger,
	}

	organizationID, err := resolveOrganizationID(ctx, cfg.API.OrganizationID, sessions)
	if err != nil {
		return nil, err
	}

	var service *application.SessionService
	clientOpts := []application.ClientOption{
		application.WithAPIKeyStamper(apiKey),
		application.WithRefreshHook(func(ctx context.Context, expired *domain.SessionExpiredError) error {
			return service.Reauthenticate(ctx, expired)
		}),
		application.WithClock(clock),
		application.WithMetrics(collector),
		application.WithLogger(logger),
		application.WithPollerOptions(
			application.WithPollInterval(cfg.Activity.PollInterval),
			application.WithNumRetries(cfg.Activity.NumRetries),
		),
	}
	if wallet != nil {
		clientOpts = append(clientOpts, application.WithWalletStamper(wallet))
	}

	client, err := application.NewClient(transport, organizationID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("wire api client: %w", err)
	}

	keyStamper := func(publicKeyHex string) ports.Stamper {
		stamper := apikey.New(keys, sessions, clock)
		stamper.SetPublicKeyOverride(publicKeyHex)
		return stamper
	}
	service = application.NewSessionService(client, keys, sessions, keyStamper, logger)

	return &app{
		cfg:            cfg,
		logger:         logger,
		keys:           keys,
		sessions:       sessions,
		apiKey:         apiKey,
		wallet:         wallet,
		client:         client,
		service:        service,
		registry:       registry,
		sessionsRender: sessionsrender.Render,
		now:            time.Now,
		closers:        closers,
	}, nil
}

// wireWallet returns nil when no wallet is configured. An RPC endpoint wins
// over a local Ethereum key.
func wireWallet(ctx context.Context, cfg config.WalletConfig) (*walletstamper.Stamper, []func(), error) {
	var (
		eth     ports.EthereumWallet
		sol     ports.SolanaWallet
		closers []func()
	)

	switch {
	case cfg.EthereumRPC != "":
		rpcWallet, err := evm.DialRPCWallet(ctx, cfg.EthereumRPC)
		if err != nil {
			return nil, nil, fmt.Errorf("wire ethereum rpc wallet: %w", err)
		}
		eth = rpcWallet
		closers = append(closers, rpcWallet.Close)
	case cfg.EthereumKey != "":
		keyWallet, err := evm.KeyWalletFromHex(cfg.EthereumKey)
		if err != nil {
			return nil, nil, fmt.Errorf("wire ethereum key wallet: %w", err)
		}
		eth = keyWallet
	}

	if cfg.SolanaKey != "" {
		keyWallet, err := solana.KeyWalletFromBase58(cfg.SolanaKey)
		if err != nil {
			return nil, nil, fmt.Errorf("wire solana key wallet: %w", err)
		}
		sol = keyWallet
	}

	if eth == nil && sol == nil {
		return nil, closers, nil
	}

	return walletstamper.New(eth, sol), closers, nil
}

// resolveOrganizationID falls back to the active session's organization when
// none is configured.
func resolveOrganizationID(ctx context.Context, configured string, sessions ports.SessionStore) (string, error) {
	if configured != "" {
		return configured, nil
	}

	session, err := sessions.GetActiveSession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSession) || errors.Is(err, domain.ErrSessionNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load active session: %w", err)
	}

	return session.OrganizationID, nil
}

func newLogger(output io.Writer, level string, verbose bool) zerolog.Logger {
	if output == nil {
		output = os.Stderr
	}

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	if verbose {
		parsed = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}).
		Level(parsed).
		With().
		Timestamp().
		Logger()
}
