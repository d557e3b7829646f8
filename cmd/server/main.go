package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"reliefops/internal/admin"
	"reliefops/internal/codegen"
	emergencyHandler "reliefops/internal/emergency/handler"
	emergencyMetrics "reliefops/internal/emergency/metrics"
	emergencyService "reliefops/internal/emergency/service"
	httpapi "reliefops/internal/http"
	jwttoken "reliefops/internal/jwt_token"
	personHandler "reliefops/internal/person/handler"
	personService "reliefops/internal/person/service"
	"reliefops/internal/platform/config"
	"reliefops/internal/platform/httpserver"
	"reliefops/internal/platform/logger"
	"reliefops/internal/platform/metrics"
	rescueHandler "reliefops/internal/rescue/handler"
	rescueMetrics "reliefops/internal/rescue/metrics"
	rescueService "reliefops/internal/rescue/service"
	shelterHandler "reliefops/internal/shelter/handler"
	shelterMetrics "reliefops/internal/shelter/metrics"
	shelterService "reliefops/internal/shelter/service"
	"reliefops/pkg/platform/privacy"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	pub, closePublisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	reg := prometheus.DefaultRegisterer
	codes := codegen.New(st.sequence,
		codegen.WithMaxAttempts(cfg.Codegen.MaxAttempts),
		codegen.WithLogger(log),
		codegen.WithMetrics(codegen.NewMetrics(reg)),
	)

	shelters := shelterService.New(st.shelters, st.persons, codes, st.runner,
		shelterService.WithLogger(log),
		shelterService.WithMetrics(shelterMetrics.New(reg)),
		shelterService.WithPublisher(pub),
	)
	persons := personService.New(st.persons, st.groups, shelters, codes, st.runner,
		personService.WithLogger(log),
		personService.WithPublisher(pub),
	)
	rescues := rescueService.New(st.rescues, st.zones, codes, st.runner,
		rescueService.WithLogger(log),
		rescueService.WithMetrics(rescueMetrics.New(reg)),
		rescueService.WithPublisher(pub),
	)
	calls := emergencyService.New(st.calls, rescues, st.zones, codes, st.runner,
		emergencyService.WithLogger(log),
		emergencyService.WithMetrics(emergencyMetrics.New(reg)),
		emergencyService.WithPublisher(pub),
		emergencyService.WithPhoneHasher(privacy.NewHasher(cfg.Auth.LogDigestKey)),
		emergencyService.WithFallbackTarget(orb.Point{cfg.Rescue.FallbackLon, cfg.Rescue.FallbackLat}),
	)

	var operator []httpapi.Routes
	if cfg.Auth.AdminToken != "" {
		operator = append(operator, admin.New(st.zones, cfg.Auth.AdminToken, log))
	}

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Validator: jwttoken.NewJWTServiceAdapter(jwt),
		Metrics:   metrics.New(),
		Handlers: []httpapi.Routes{
			shelterHandler.New(shelters, log),
			personHandler.New(persons, log),
			rescueHandler.New(rescues, log),
			emergencyHandler.New(calls, log),
		},
		Operator: operator,
		Checks:   st.checks,
	})

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadHeaderTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pub.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting reliefops", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("http server stopped")
		return nil
	})
	return g.Wait()
}
