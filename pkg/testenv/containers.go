// Package testenv starts throwaway docker containers for integration tests.
package testenv

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
)

const (
	PostgresDBName = "notesbox"
	containerTTL   = 120 // seconds
)

func newPool(t *testing.T) *dockertest.Pool {
	t.Helper()

	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "could not create dockertest pool")
	require.NoError(t, pool.Client.Ping(), "could not ping docker")
	pool.MaxWait = time.Minute

	return pool
}

func hostConfig(config *docker.HostConfig) {
	config.AutoRemove = true
	config.RestartPolicy = docker.RestartPolicy{
		Name: "no",
	}
}

// RedisClient returns a client for REDIS_HOST if set, otherwise for a fresh redis container.
func RedisClient(t *testing.T) *redis.Client {
	t.Helper()

	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		t.Logf("using redis host: [%s]", redisHost)
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(redisHost, "6379"),
			Password: os.Getenv("REDIS_PASS"),
		})
		require.NoError(t, rdb.Ping(context.Background()).Err())
		t.Cleanup(func() { _ = rdb.Close() })
		return rdb
	}

	pool := newPool(t)
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, hostConfig)
	require.NoError(t, err, "run redis")
	_ = resource.Expire(containerTTL)
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("redis teardown: %s", err)
		}
	})

	rdb := redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort("localhost", resource.GetPort("6379/tcp")),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	err = pool.Retry(func() error {
		return rdb.Ping(context.Background()).Err()
	})
	require.NoError(t, err, "redis not ready")

	return rdb
}

// PostgresPool returns a pgx pool connected to a fresh postgres container.
func PostgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool := newPool(t)
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=" + PostgresDBName,
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, hostConfig)
	require.NoError(t, err, "run postgres")
	_ = resource.Expire(containerTTL)
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("postgres teardown: %s", err)
		}
	})

	connString := fmt.Sprintf(
		"postgres://postgres@localhost:%s/%s?sslmode=disable",
		resource.GetPort("5432/tcp"), PostgresDBName,
	)

	var dbPool *pgxpool.Pool
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		p, err := pgxpool.New(ctx, connString)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		dbPool = p
		return nil
	})
	require.NoError(t, err, "postgres not ready")
	t.Cleanup(dbPool.Close)

	return dbPool
}
