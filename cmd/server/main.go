package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tangled.org/vigil.community/vigil/internal/actions"
	"tangled.org/vigil.community/vigil/internal/config"
	"tangled.org/vigil.community/vigil/internal/database/boltstore"
	"tangled.org/vigil.community/vigil/internal/database/sqlitestore"
	"tangled.org/vigil.community/vigil/internal/dispatch"
	"tangled.org/vigil.community/vigil/internal/effects"
	"tangled.org/vigil.community/vigil/internal/handlers"
	"tangled.org/vigil.community/vigil/internal/metrics"
	"tangled.org/vigil.community/vigil/internal/notices"
	"tangled.org/vigil.community/vigil/internal/roles"
	"tangled.org/vigil.community/vigil/internal/routing"
	"tangled.org/vigil.community/vigil/internal/sanctions"
	"tangled.org/vigil.community/vigil/internal/security"
	"tangled.org/vigil.community/vigil/internal/tracing"
	"tangled.org/vigil.community/vigil/internal/warnings"
)

// stores bundles the five store interfaces regardless of backend.
type stores struct {
	acts      actions.Store
	sanctions sanctions.Store
	warnings  warnings.Store
	roles     roles.Store
	notices   notices.Store
	close     func() error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Backend {
	case "sqlite":
		st, err := sqlitestore.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return &stores{
			acts:      st.ActStore(),
			sanctions: st.SanctionStore(),
			warnings:  st.WarningStore(),
			roles:     st.RoleStore(),
			notices:   st.NoticeStore(),
			close:     st.Close,
		}, nil
	default:
		st, err := boltstore.Open(boltstore.Options{Path: cfg.DBPath})
		if err != nil {
			return nil, err
		}
		return &stores{
			acts:      st.ActStore(),
			sanctions: st.SanctionStore(),
			warnings:  st.WarningStore(),
			roles:     st.RoleStore(),
			notices:   st.NoticeStore(),
			close:     st.Close,
		}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Configure zerolog
	switch cfg.LogLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Vigil moderation server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEndpoint != "" {
		tp, err := tracing.Init(ctx, cfg.TracingEndpoint, cfg.TracingInsecure)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shut down tracer provider")
			}
		}()
		log.Info().Str("endpoint", cfg.TracingEndpoint).Msg("Tracing initialized")
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer st.close()
	log.Info().Str("backend", cfg.Backend).Str("path", cfg.DBPath).Msg("Database opened")

	// Wire the engine. Callbacks must be registered before any Load so
	// expirations that are already due find their handlers.
	ledger := actions.NewLedger(st.acts)
	mutes := sanctions.NewRegistry(actions.FamilyMute, st.sanctions, ledger, true)
	bans := sanctions.NewRegistry(actions.FamilyBan, st.sanctions, ledger, false)
	hides := sanctions.NewRegistry(actions.FamilyHide, st.sanctions, ledger, true)
	warns := warnings.NewService(st.warnings, ledger)
	notes := notices.NewService(st.notices)

	sec, err := security.NewService(cfg.RosterPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RosterPath).Msg("Failed to load moderator roster")
	}

	events := dispatch.NewBroadcaster()
	roleSvc := roles.NewService(st.roles, ledger, dispatch.LogEnforcer{}, events)
	engine := effects.NewEngine(ledger, mutes, bans, hides, warns, notes, dispatch.LogEnforcer{}, events)

	for _, reg := range []*sanctions.Registry{mutes, bans, hides} {
		if err := reg.Load(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to load sanction registry")
		}
		defer reg.Stop()
	}
	if err := notes.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load notices")
	}
	defer notes.Stop()

	metrics.StartCollector(ctx, metrics.StatsSource{
		ActiveWarnings: func() int {
			n, err := warns.ActiveAccumulators(context.Background())
			if err != nil {
				return 0
			}
			return n
		},
		PendingRequests: func() int {
			n, err := roleSvc.PendingCount(context.Background())
			if err != nil {
				return 0
			}
			return n
		},
		ScheduledNotices: notes.PendingCount,
		EventSubscribers: events.Subscribers,
	}, cfg.MetricsInterval)

	h := handlers.NewHandler(engine, ledger, mutes, bans, hides, warns, roleSvc, notes, sec, events)
	handler := routing.SetupRouter(routing.Config{
		Handlers: h,
		Logger:   log.Logger,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("address", cfg.Addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}
