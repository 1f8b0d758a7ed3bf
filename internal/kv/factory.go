package kv

import (
	"context"
	"fmt"
	"net"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/notesbox/internal/config"
	"github.com/2beens/notesbox/internal/db"
)

type Params struct {
	Backend string

	// file
	Dir string

	// freecache
	FreecacheSizeMB int

	// redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// postgres
	PostgresHost     string
	PostgresPort     string
	PostgresDBName   string
	PostgresPassword string
	TracingEnabled   bool
}

func ParamsFromConfig(cfg *config.Config, redisPassword, postgresPassword string) Params {
	return Params{
		Backend:          cfg.StorageBackend,
		Dir:              cfg.StorageDir,
		FreecacheSizeMB:  cfg.FreecacheSizeMB,
		RedisHost:        cfg.RedisHost,
		RedisPort:        cfg.RedisPort,
		RedisPassword:    redisPassword,
		RedisDB:          cfg.RedisDB,
		PostgresHost:     cfg.PostgresHost,
		PostgresPort:     cfg.PostgresPort,
		PostgresDBName:   cfg.PostgresDBName,
		PostgresPassword: postgresPassword,
		TracingEnabled:   cfg.TracingEnabled,
	}
}

// New opens the storage medium named by params.Backend.
// Remote backends are pinged, a failed ping is only logged.
func New(ctx context.Context, params Params) (Storage, error) {
	switch params.Backend {
	case config.BackendFile, "":
		return NewFileStorage(params.Dir)
	case config.BackendFreecache:
		return NewFreecacheStorage(params.FreecacheSizeMB * 1024 * 1024), nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(params.RedisHost, params.RedisPort),
			Password: params.RedisPassword,
			DB:       params.RedisDB,
		})
		if params.TracingEnabled {
			rdb.AddHook(redisotel.NewTracingHook())
		}
		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
		return NewRedisStorage(rdb), nil
	case config.BackendPostgres:
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         params.PostgresHost,
			DBPort:         params.PostgresPort,
			DBName:         params.PostgresDBName,
			DBPassword:     params.PostgresPassword,
			TracingEnabled: params.TracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}
		storage := NewPostgresStorage(dbPool)
		if err := storage.Initialize(ctx); err != nil {
			dbPool.Close()
			return nil, err
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", params.Backend)
	}
}
