// Package app wires configuration into a running scheduling service: the
// store, the generation lock and the event publisher.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/config"
	"github.com/hackgods/clinician-scheduling/internal/db"
	"github.com/hackgods/clinician-scheduling/internal/events"
	redisclient "github.com/hackgods/clinician-scheduling/internal/redis"
	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

type Deps struct {
	Service   *scheduling.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Publisher events.Publisher

	logger zerolog.Logger
}

// needsRedis reports whether the configuration uses Redis at all. The memory
// store runs with an in-process lock unless events go through Redis.
func needsRedis(cfg config.Config) bool {
	return cfg.StoreDriver == config.StorePostgres || cfg.EventsDriver == config.EventsRedis
}

func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Deps, error) {
	d := &Deps{logger: logger}

	var repo scheduling.Repository
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		d.PgPool = pool
		repo = scheduling.NewPgRepository(pool)
		logger.Info().Msg("connected to Postgres")
	default:
		repo = scheduling.NewMemoryRepository()
		logger.Warn().Msg("using in-memory store, data is lost on restart")
	}

	if needsRedis(cfg) {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		d.Redis = rdb
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	var locker redisclient.Locker
	if d.Redis != nil {
		locker = redisclient.NewRedisDoctorLocker(d.Redis, cfg.GenerationLockTTL)
	} else {
		locker = redisclient.NewLocalDoctorLocker()
	}

	switch cfg.EventsDriver {
	case config.EventsRedis:
		d.Publisher = events.NewRedisPublisher(d.Redis, "scheduling")
	case config.EventsAMQP:
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("amqp connection: %w", err)
		}
		d.Publisher = pub
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("connected to RabbitMQ")
	default:
		d.Publisher = events.NewLogPublisher(logger)
	}

	d.Service = scheduling.NewService(repo, locker, d.Publisher, logger, cfg)
	return d, nil
}

// Close releases every connection Build opened. Safe on a partial Deps.
func (d *Deps) Close() {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("error closing event publisher")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("error closing redis")
		}
	}
	if d.PgPool != nil {
		d.PgPool.Close()
	}
}
