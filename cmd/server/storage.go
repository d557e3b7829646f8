package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"reliefops/internal/codegen"
	emergencyService "reliefops/internal/emergency/service"
	emergencyStore "reliefops/internal/emergency/store"
	"reliefops/internal/geodata"
	geoStore "reliefops/internal/geodata/store"
	httpapi "reliefops/internal/http"
	personService "reliefops/internal/person/service"
	personStore "reliefops/internal/person/store"
	"reliefops/internal/platform/config"
	"reliefops/internal/platform/postgres"
	"reliefops/internal/platform/redis"
	rescueService "reliefops/internal/rescue/service"
	rescueStore "reliefops/internal/rescue/store"
	shelterService "reliefops/internal/shelter/service"
	shelterStore "reliefops/internal/shelter/store"
	"reliefops/pkg/platform/tx"
)

// personRepo is the person store as seen by both the person service and the
// shelter ledger's occupant port.
type personRepo interface {
	personService.PersonStore
	shelterService.Occupants
}

type zoneRepo interface {
	geodata.Directory
	geodata.Seeder
}

type storage struct {
	shelters shelterService.Store
	persons  personRepo
	groups   personService.FamilyGroupStore
	rescues  rescueService.Store
	calls    emergencyService.Store
	zones    zoneRepo
	runner   tx.Runner
	sequence codegen.SequenceSource
	checks   map[string]httpapi.HealthCheck
	closers  []func() error
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	st := &storage{checks: make(map[string]httpapi.HealthCheck)}

	var db *sql.DB
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		var err error
		db, err = postgres.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
		if cfg.Storage.Bootstrap {
			if err := postgres.Bootstrap(ctx, db); err != nil {
				st.Close()
				return nil, err
			}
		}
		st.shelters = shelterStore.NewPostgres(db)
		st.persons = personStore.NewPostgresPersonStore(db)
		st.groups = personStore.NewPostgresFamilyGroupStore(db)
		st.rescues = rescueStore.NewPostgres(db)
		st.calls = emergencyStore.NewPostgres(db)
		st.zones = geoStore.NewPostgresDirectory(db)
		st.runner = tx.NewSQLRunner(db, tx.WithTimeout(cfg.Storage.TxTimeout))
		st.checks["postgres"] = db.PingContext
		logger.Info("storage ready", "driver", config.DriverPostgres)
	default:
		shelters := shelterStore.NewInMemoryStore()
		persons := personStore.NewInMemoryPersonStore()
		groups := personStore.NewInMemoryFamilyGroupStore()
		rescues := rescueStore.NewInMemoryStore()
		calls := emergencyStore.NewInMemoryStore()
		st.shelters, st.persons, st.groups, st.rescues, st.calls = shelters, persons, groups, rescues, calls
		st.zones = geoStore.NewInMemoryDirectory()
		// one runner so a transaction spanning contexts rolls every store back
		st.runner = tx.NewMemoryRunner(shelters, persons, groups, rescues, calls)
		logger.Info("storage ready", "driver", config.DriverMemory)
	}

	switch cfg.Codegen.Sequence {
	case config.SequenceRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, client.Close)
		st.sequence = codegen.NewRedisSequence(client)
		st.checks["redis"] = client.Health
	case config.SequencePostgres:
		st.sequence = codegen.NewPostgresSequence(db)
	default:
		seq := codegen.NewMemorySequence()
		if db != nil {
			if err := codegen.SeedFrom(ctx, seq, codegen.NewPostgresHighWater(db)); err != nil {
				st.Close()
				return nil, err
			}
			logger.Warn("in-process code sequence over shared storage, run a single replica or use codegen.sequence=postgres")
		}
		st.sequence = seq
	}

	if path := cfg.Geodata.SeedFile; path != "" {
		if err := seedZones(ctx, st.zones, path, logger); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

func seedZones(ctx context.Context, dst geodata.Seeder, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open flood zone seed: %w", err)
	}
	defer f.Close()

	n, err := geodata.Seed(ctx, dst, f, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("seed flood zones from %s: %w", path, err)
	}
	logger.Info("flood zones loaded", "path", path, "zones", n)
	return nil
}
