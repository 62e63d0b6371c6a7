package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type config struct {
	listenAddr    string
	bufferSize    int
	maxBatch      int
	submitTimeout time.Duration
	maxBodyBytes  int64
	retryAfter    time.Duration
	logLevel      slog.Level

	sinkTopic string
	sinkBatch int

	metricsEnabled bool

	rateEnabled   bool
	rateRPS       float64
	rateBurst     int
	rateKeyHeader string
	trustXFF      bool
	addHeaders    bool

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.bufferSize = getenvIntDefault("BUFFER_SIZE", 1000)
	cfg.maxBatch = getenvIntDefault("MAX_BATCH", 256)
	cfg.submitTimeout = getenvDurationDefault("SUBMIT_TIMEOUT", 2*time.Second)
	cfg.maxBodyBytes = int64(getenvIntDefault("MAX_BODY_BYTES", 1<<20))
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)

	if err := cfg.logLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg.sinkTopic = getenvDefault("SINK_TOPIC", "submissions")
	cfg.sinkBatch = getenvIntDefault("SINK_BATCH", 32)

	cfg.metricsEnabled = getenvBoolDefault("METRICS_ENABLED", true)

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", false)
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", 10)
	// Com RPS muito baixo (ex: 0.02) um burst 20 dá a impressão de que o
	// limiter não funciona, porque as primeiras ~20 passam.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.rateBurst = burst
	} else {
		cfg.rateBurst = 20
		if getenvIsSet("RATE_RPS") && cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "relay:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

// validate junta todos os problemas num único erro.
func (c config) validate() error {
	var errs []error
	if c.bufferSize <= 0 {
		errs = append(errs, errors.New("BUFFER_SIZE must be > 0"))
	}
	if c.maxBatch <= 0 {
		errs = append(errs, errors.New("MAX_BATCH must be > 0"))
	}
	if c.submitTimeout < 0 {
		errs = append(errs, errors.New("SUBMIT_TIMEOUT must be >= 0"))
	}
	if c.maxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be > 0"))
	}
	if strings.TrimSpace(c.sinkTopic) == "" {
		errs = append(errs, errors.New("SINK_TOPIC is required"))
	}
	if c.sinkBatch <= 0 {
		errs = append(errs, errors.New("SINK_BATCH must be > 0"))
	}
	if c.rateEnabled {
		if c.rateRPS <= 0 {
			errs = append(errs, errors.New("RATE_RPS must be > 0"))
		}
		if c.rateBurst <= 0 {
			errs = append(errs, errors.New("RATE_BURST must be > 0"))
		}
	}
	if c.rateStatsEnabled && strings.TrimSpace(c.rateStatsRedisAddr) == "" {
		errs = append(errs, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true"))
	}
	return errors.Join(errs...)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
