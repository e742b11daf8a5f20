package config

import (
    "os"
    "strconv"
    "time"
)

// TierConfig describes the budget for one rate-limit tier.  Every public
// endpoint is assigned to exactly one tier; counters are kept per
// {tier, identifier} in a shared Redis so that correctness does not depend
// on how many instances of a service are running.
type TierConfig struct {
    Name    string        // tier name, becomes part of the Redis key
    Limit   int           // allowed requests per window
    Window  time.Duration // length of the fixed window
    Lockout time.Duration // optional penalty window applied once the limit is exceeded
}

// RateLimitConfig carries the limiter switches and the per-tier budgets.
type RateLimitConfig struct {
    Enabled bool
    Prefix  string
    Debug   bool

    Global  TierConfig
    Auth    TierConfig
    Payment TierConfig
    Booking TierConfig
    Read    TierConfig
}

// LoadRateLimitConfig reads environment variables to build a RateLimitConfig.
// Defaults follow the documented budgets: global 100/min, auth 5/min with a
// 5 minute lockout, payment 10/min, booking 20/min, read-only 200/min.
func LoadRateLimitConfig() RateLimitConfig {
    return RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:   envBool("RATE_LIMIT_DEBUG", false),

        Global:  tier("global", envInt("RATE_LIMIT_GLOBAL", 100), time.Minute, 0),
        Auth:    tier("auth", envInt("RATE_LIMIT_AUTH", 5), time.Minute, 5*time.Minute),
        Payment: tier("payment", envInt("RATE_LIMIT_PAYMENT", 10), time.Minute, 0),
        Booking: tier("booking", envInt("RATE_LIMIT_BOOKING", 20), time.Minute, 0),
        Read:    tier("read", envInt("RATE_LIMIT_READ", 200), time.Minute, 0),
    }
}

func tier(name string, limit int, window, lockout time.Duration) TierConfig {
    if limit < 1 {
        limit = 1
    }
    return TierConfig{Name: name, Limit: limit, Window: window, Lockout: lockout}
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch v {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}
