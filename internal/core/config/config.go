package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr           string
	LogLevel       string
	RedisAddr      string
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	CacheTTL        time.Duration
	CacheOpTimeout  time.Duration
	CacheMaxEntries int
	SweepInterval   time.Duration

	CatalogCacheSize int

	// Known temporal extent of the raw dataset, in whole years. Windows
	// outside [DataMinYear, DataMaxYear] are rejected, and relative
	// windows are anchored at the upper bound.
	DataMinYear int
	DataMaxYear int

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	minYear := getint("DATA_MIN_YEAR", 1950)
	maxYear := getint("DATA_MAX_YEAR", 2100)
	if minYear > maxYear {
		minYear, maxYear = maxYear, minYear
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		ClickHouseAddr: getenv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getenv("CLICKHOUSE_DB", "climate"),
		ClickHouseUser: getenv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getenv("CLICKHOUSE_PASSWORD", ""),

		CacheTTL:        getduration("CACHE_TTL", 24*time.Hour),
		CacheOpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CacheMaxEntries: getint("CACHE_MAX_ENTRIES", 100_000),
		SweepInterval:   getduration("CACHE_SWEEP_INTERVAL", time.Minute),

		CatalogCacheSize: getint("CATALOG_CACHE_SIZE", 4096),

		DataMinYear: minYear,
		DataMaxYear: maxYear,

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "climate-ingest"),
			GroupID: getenv("KAFKA_GROUP_ID", "avg-cache-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
