// Gatekeeper - HTTP Basic authentication and rank-based authorisation service.
//
// This is the main entry point. Startup order is config, logger, store
// (with schema), admin seed, activity sinks, verifier and API server;
// shutdown runs in reverse.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gatekeeper/internal/activity"
	"github.com/nerrad567/gatekeeper/internal/api"
	"github.com/nerrad567/gatekeeper/internal/audit"
	"github.com/nerrad567/gatekeeper/internal/auth"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/database"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/influxdb"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/logging"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/mqtt"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/postgres"
	"github.com/nerrad567/gatekeeper/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Shutdown drain bounds.
const (
	verifierDrainTimeout = 5 * time.Second // in-flight last-login writes
	recorderDrainTimeout = 5 * time.Second // queued activity events
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gatekeeper",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.Auth.SeedAdmin.Enabled {
		if _, err := auth.SeedAdmin(ctx, st.accounts, cfg.Auth.SeedAdmin.Username, cfg.Auth.SeedAdmin.Password, log.Logger); err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
	}

	sinks, err := openSinks(cfg, log, st.audit)
	if err != nil {
		return err
	}
	defer sinks.close()

	verifier, err := auth.NewVerifier(st.accounts, auth.VerifierConfig{
		LastLoginTimeout: cfg.GetLastLoginTimeout(),
		Logger:           log.With("component", "verifier").Logger,
	})
	if err != nil {
		return fmt.Errorf("creating verifier: %w", err)
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), verifierDrainTimeout)
		defer cancel()
		log.Info("draining last-login writes")
		if closeErr := verifier.Close(drainCtx); closeErr != nil {
			log.Warn("last-login writes still pending at shutdown", "error", closeErr)
		}
	}()

	var metricsHandler http.Handler
	if sinks.metrics != nil {
		metricsHandler = sinks.metrics.Handler()
	}

	server, err := api.New(api.Deps{
		Config:         cfg.API,
		Auth:           cfg.Auth,
		Metrics:        cfg.Metrics,
		Logger:         log.With("component", "api"),
		Verifier:       verifier,
		Accounts:       st.accounts,
		Audit:          st.audit,
		Recorder:       sinks.recorder,
		MetricsHandler: metricsHandler,
		Health:         healthCheckers(st, sinks),
		Version:        version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server listening", "address", server.Addr(), "sinks", sinks.recorder.Sinks())

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// store bundles the account store, its audit repository and the
// dependency to health check.
type store struct {
	accounts auth.AccountStore
	audit    audit.Repository
	health   api.HealthChecker
	close    func()
}

func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		pgStore, err := auth.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := pgStore.EnsureSchema(ctx, migrations.Postgres()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("applying postgres schema: %w", err)
		}
		log.Info("postgres connected", "max_conns", pool.Config().MaxConns)

		return &store{
			accounts: pgStore,
			audit:    audit.NewPostgresRepository(pool),
			health:   postgres.Health{Pool: pool},
			close: func() {
				log.Info("closing postgres pool")
				pool.Close()
			},
		}, nil

	default:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.SQLite.Path,
			WALMode:     cfg.Database.SQLite.WALMode,
			BusyTimeout: cfg.Database.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.SQLite()); err != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", db.Path())

		return &store{
			accounts: auth.NewSQLiteStore(db.DB),
			audit:    audit.NewSQLiteRepository(db.DB),
			health:   db,
			close: func() {
				log.Info("closing database")
				if closeErr := db.Close(); closeErr != nil {
					log.Error("error closing database", "error", closeErr)
				}
			},
		}, nil
	}
}

// sinkSet holds the optional activity sinks and the recorder over them.
type sinkSet struct {
	recorder *activity.Recorder
	mqtt     *mqtt.Client
	influx   *influxdb.Client
	metrics  *activity.Metrics
	log      *logging.Logger
}

func openSinks(cfg *config.Config, log *logging.Logger, auditRepo audit.Repository) (*sinkSet, error) {
	s := &sinkSet{log: log}
	sinks := []activity.Sink{activity.NewAuditSink(auditRepo)}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetOnConnect(func() { log.Info("MQTT reconnected") })
		client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topic_prefix", client.Topics().Prefix(),
		)
		s.mqtt = client
		sinks = append(sinks, activity.NewMQTTSink(client))
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) { log.Error("InfluxDB write error", "error", err) })
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		s.influx = client
		sinks = append(sinks, activity.NewInfluxSink(client))
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Metrics.Enabled {
		s.metrics = activity.NewMetrics()
		sinks = append(sinks, s.metrics)
	}

	s.recorder = activity.NewRecorder(activity.RecorderConfig{
		Logger: log.With("component", "activity").Logger,
	}, sinks...)
	return s, nil
}

func (s *sinkSet) close() {
	if s.recorder != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), recorderDrainTimeout)
		defer cancel()
		if err := s.recorder.Close(drainCtx); err != nil {
			s.log.Warn("activity events still queued at shutdown", "error", err)
		}
		if dropped := s.recorder.Dropped(); dropped > 0 {
			s.log.Warn("activity events dropped", "count", dropped)
		}
	}
	if s.influx != nil {
		s.influx.Close() //nolint:errcheck // Close flushes and never fails
	}
	if s.mqtt != nil {
		s.mqtt.Close() //nolint:errcheck // Best effort on shutdown
	}
}

func healthCheckers(st *store, sinks *sinkSet) map[string]api.HealthChecker {
	checks := map[string]api.HealthChecker{"database": st.health}
	if sinks.mqtt != nil {
		checks["mqtt"] = sinks.mqtt
	}
	if sinks.influx != nil {
		checks["influxdb"] = sinks.influx
	}
	return checks
}

// getConfigPath returns GATEKEEPER_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("GATEKEEPER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
