package config

// Redis backs the distributed rate limiter: counters are keyed by
// {tier, identifier} and shared by every running instance of a service, so
// correctness does not depend on how many replicas handle traffic.

import (
    "context"
    "crypto/tls"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient builds the shared Redis client from the environment:
// REDIS_HOST/REDIS_PORT (or REDIS_ADDR as host:port shorthand),
// REDIS_PASSWORD, REDIS_DB and REDIS_TLS.  When the server cannot be
// reached at startup it returns nil and callers run with rate limiting
// disabled (fail-open).
func NewRedisClient() *redis.Client {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host := os.Getenv("REDIS_HOST"); host != "" {
        addr = host + ":" + envStr("REDIS_PORT", "6379")
    }

    opts := &redis.Options{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
    }
    if envBool("REDIS_TLS", false) {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }

    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        client.Close()
        return nil
    }
    return client
}
