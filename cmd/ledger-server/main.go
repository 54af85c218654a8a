package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cipher-rooms/internal/app/rooms"
	"cipher-rooms/internal/auth"
	"cipher-rooms/internal/config"
	"cipher-rooms/internal/confidential"
	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/logging"
	"cipher-rooms/internal/notify"
	"cipher-rooms/internal/ratelimit"
	"cipher-rooms/internal/reconcile"
	"cipher-rooms/internal/store"
	"cipher-rooms/internal/store/memstore"
	"cipher-rooms/internal/store/sqlitestore"
	"cipher-rooms/internal/stream"
	"cipher-rooms/internal/telemetry"
	httptransport "cipher-rooms/internal/transport/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("ledger server failed")
	}
}

func run(ctx context.Context, cfg config.AppConfig) error {
	if cfg.Server.OTELEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx, cfg.Server.OTELEndpoint, cfg.Server.OTELServiceName)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.reconciler.Start(cfg.Server.ReconcileInterval); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}
	defer func() { _ = a.reconciler.Stop() }()
	a.notifier.Start(ctx)

	httptransport.LogRoutes(a.router)
	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Server.Store).Msg("http listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	// Close the event buffer first so SSE and WS streams end and the server
	// can drain.
	a.events.Close()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

type app struct {
	router     *chi.Mux
	events     *stream.Buffer
	notifier   *notify.Manager
	reconciler *reconcile.Reconciler
	closers    []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	a := &app{}
	st, closeStore, err := openStore(ctx, cfg.Server)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	key, err := confidential.ParseKey(cfg.Server.CipherKey)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("cipher key: %w", err)
	}
	if len(key) == 0 {
		log.Warn().Msg("CIPHER_KEY unset; using an ephemeral key, stored ciphertexts will not survive a restart")
	}
	vault, err := confidential.NewVault(key)
	if err != nil {
		a.close()
		return nil, err
	}

	notifyCfg, err := notify.ConfigFromServer(cfg.Server)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("notify config: %w", err)
	}
	a.notifier = notify.NewManager(notifyCfg)
	a.closers = append(a.closers, a.notifier.Stop)

	a.events = stream.NewBuffer(cfg.Server.EventBufferSize)
	led, err := ledger.New(ctx, ledger.Config{
		Admin:    cfg.Ledger.Admin,
		House:    cfg.Ledger.House,
		MinStake: cfg.Ledger.MinStake,
		MaxStake: cfg.Ledger.MaxStake,
	}, st, vault, ledger.WithPublisher(a.events), ledger.WithPublisher(a.notifier))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("restore ledger: %w", err)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		a.close()
		return nil, err
	}

	limiter, err := openLimiter(ctx, cfg.Server)
	if err != nil {
		a.close()
		return nil, err
	}
	if c, ok := limiter.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}

	a.reconciler = reconcile.New(led)
	a.router = httptransport.NewRouter(rooms.NewService(led, vault, st), issuer, limiter, a.events)
	return a, nil
}

func openStore(ctx context.Context, cfg config.ServerConfig) (rooms.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return st, st.Close, nil
	case config.StoreSQLite:
		st, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	default:
		log.Warn().Msg("using in-memory store; balances and sessions are lost on exit")
		return memstore.New(), func() {}, nil
	}
}

func openLimiter(ctx context.Context, cfg config.ServerConfig) (ratelimit.Limiter, error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateLimitPerMinute, time.Minute), nil
	}
	rl, err := ratelimit.NewRedis(ctx, cfg.RedisAddr, cfg.RateLimitPerMinute, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("redis rate limiter: %w", err)
	}
	return rl, nil
}
