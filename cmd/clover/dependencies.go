package main

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/config"
	auditrepo "github.com/Ramsey-B/clover/internal/repositories/audit"
	"github.com/Ramsey-B/clover/internal/repositories/contact"
	"github.com/Ramsey-B/clover/internal/repositories/organization"
	"github.com/Ramsey-B/clover/internal/repositories/suggestion"
	"github.com/Ramsey-B/clover/pkg/audit"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/dedup"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// lockPrefix namespaces every Redis key the service writes.
const lockPrefix = "dedup:"

// dependencies holds the connections opened during startup.
type dependencies struct {
	cfg    *config.Config
	logger ectologger.Logger

	tracer   *sdktrace.TracerProvider
	db       database.DB
	redis    *redis.Client
	producer *kafka.Producer
}

// register adds every dependency the HTTP service needs.
func (d *dependencies) register(s *startup.Startup) {
	d.registerTracing(s)
	d.registerDatabase(s)
	d.registerRedis(s)
	d.registerKafka(s)
}

func (d *dependencies) registerTracing(s *startup.Startup) {
	s.AddDependency(&startup.Dependency{
		Name: "tracing",
		StartFn: func(ctx context.Context) error {
			otlp := exporters.DefaultOTLPConfig()
			otlp.Endpoint = d.cfg.TracingOTLPEndpoint
			otlp.Protocol = exporters.Protocol(d.cfg.TracingOTLPProtocol)
			otlp.Insecure = d.cfg.TracingOTLPInsecure
			otlp.Timeout = d.cfg.TracingOTLPTimeout
			otlp.Headers = d.cfg.TracingOTLPHeaders

			provider, err := tracing.NewProvider(ctx, tracing.ProviderConfig{
				ServiceName: d.cfg.AppName,
				Exporter:    d.cfg.TracingExporter,
				OTLP:        otlp,
			}, d.logger)
			if err != nil {
				return err
			}
			d.tracer = provider
			return nil
		},
		StopFn: func(ctx context.Context) error {
			if d.tracer == nil {
				return nil
			}
			return d.tracer.Shutdown(ctx)
		},
	})
}

// registerDatabase connects to PostgreSQL and applies pending migrations.
func (d *dependencies) registerDatabase(s *startup.Startup) {
	s.AddDependency(&startup.Dependency{
		Name:     "database",
		Requires: []string{"tracing"},
		StartFn: func(ctx context.Context) error {
			db, err := database.Connect(ctx, database.ConnectionConfig{
				Driver:          d.cfg.DatabaseDriver,
				Host:            d.cfg.DatabaseHost,
				Port:            d.cfg.DatabasePort,
				UserName:        d.cfg.DatabaseUserName,
				Password:        d.cfg.DatabasePassword,
				Name:            d.cfg.DatabaseName,
				SSLMode:         d.cfg.DatabaseSSLMode,
				MaxOpenConns:    d.cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    d.cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: d.cfg.DatabaseConnMaxLifetime,
			}, d.logger)
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(d.logger, &database.MigrationConfig{
				MigrationFolderPath: d.cfg.DatabaseMigrationFolderPath,
				Version:             uint(d.cfg.DatabaseMigrationVersion),
				Force:               d.cfg.DatabaseMigrationForce,
				AutoRollback:        d.cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.MigratePostgres(db, d.cfg.DatabaseName); err != nil {
				_ = db.Close()
				return err
			}

			d.db = db
			return nil
		},
		StopFn: func(_ context.Context) error {
			if d.db == nil {
				return nil
			}
			return d.db.Close()
		},
	})
}

func (d *dependencies) registerRedis(s *startup.Startup) {
	if d.cfg.RedisEnabled() {
		s.AddDependency(&startup.Dependency{
			Name: "redis",
			StartFn: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, redis.Config{
					Host:     d.cfg.RedisHost,
					Port:     d.cfg.RedisPort,
					Password: d.cfg.RedisPassword,
					DB:       d.cfg.RedisDB,
				}, d.logger)
				if err != nil {
					return err
				}
				d.redis = client
				return nil
			},
			StopFn: func(_ context.Context) error {
				if d.redis == nil {
					return nil
				}
				return d.redis.Close()
			},
		})
	}
}

func (d *dependencies) registerKafka(s *startup.Startup) {
	if d.cfg.KafkaEnabled {
		s.AddDependency(&startup.Dependency{
			Name: "kafka",
			StartFn: func(_ context.Context) error {
				d.producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      d.cfg.KafkaBrokers,
					Topic:        d.cfg.KafkaAuditTopic,
					BatchSize:    d.cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(d.cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: d.cfg.KafkaRequiredAcks,
					Compression:  d.cfg.KafkaCompression,
				}, d.logger)
				return nil
			},
			StopFn: func(_ context.Context) error {
				if d.producer == nil {
					return nil
				}
				return d.producer.Close()
			},
		})
	}
}

// engine wires the repositories, audit sink and optional lock into the deduplication engine.
func (d *dependencies) engine() *dedup.Engine {
	var publisher audit.Publisher
	if d.producer != nil {
		publisher = d.producer
	}

	var locker dedup.Locker
	if d.redis != nil {
		locker = redis.NewDetectionLock(redis.NewLocker(d.redis, lockPrefix), d.cfg.DedupDetectLockTTL, d.cfg.DedupDetectLockWait)
	}

	return dedup.NewEngine(
		d.logger,
		dedup.Config{
			ResurfaceDismissed: d.cfg.DedupResurfaceDismissed,
			AuditTimeout:       d.cfg.AuditTimeout,
		},
		map[models.EntityType]dedup.EntityStore{
			models.EntityTypeOrganization: organization.NewRepository(d.db, d.logger),
			models.EntityTypeContact:      contact.NewRepository(d.db, d.logger),
		},
		suggestion.NewRepository(d.db, d.logger),
		d.db,
		audit.NewLogger(auditrepo.NewRepository(d.db, d.logger), publisher, d.logger),
		locker,
	)
}
