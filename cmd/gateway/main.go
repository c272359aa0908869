package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"telemetry-gateway/api"
	"telemetry-gateway/middleware/admission"
	"telemetry-gateway/middleware/admission/domain"
	"telemetry-gateway/middleware/admission/infra"
	"telemetry-gateway/telemetry"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := readConfig()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store domain.CounterStore
	switch cfg.storeBackend {
	case "memory":
		mem := infra.NewMemoryCounterStore()
		mem.StartJanitor(ctx)
		store = mem

	case "sqlite":
		sqlite, err := infra.OpenSQLiteCounterStore(ctx, cfg.sqlitePath)
		if err != nil {
			logger.Fatal("sqlite store error", zap.Error(err))
		}
		defer func() { _ = sqlite.Close() }()
		startSQLiteSweeper(ctx, sqlite, logger)
		store = sqlite

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			logger.Fatal("redis ping error", zap.Error(err))
		}
		store = infra.NewRedisCounterStore(rdb)
	}

	var surge domain.SurgeStore
	if cfg.surgeEnabled {
		ss := infra.NewSurgeStore(cfg.surgeRPS, cfg.surgeBurst)
		ss.StartJanitor(ctx)
		surge = ss
	}

	var statsStore domain.StatsStore
	if cfg.statsEnabled {
		switch cfg.statsBackend {
		case "memory":
			statsStore = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
		case "redis":
			srdb := redis.NewClient(&redis.Options{
				Addr:     cfg.statsRedisAddr,
				Password: cfg.statsRedisPassword,
				DB:       cfg.statsRedisDB,
			})
			defer func() { _ = srdb.Close() }()

			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			_, err := srdb.Ping(pingCtx).Result()
			pingCancel()
			if err != nil {
				logger.Fatal("stats redis ping error", zap.Error(err))
			}
			statsStore = infra.NewRedisStatsStore(
				srdb,
				infra.WithStatsPrefix(cfg.statsPrefix),
				infra.WithStatsTTL(cfg.statsTTL),
				infra.WithStatsBucket(cfg.statsBucket),
				infra.WithStatsTrackKeys(cfg.statsTrackKeys),
			)
		}
	}

	registry := telemetry.NewRegistry(logger)

	mux := http.NewServeMux()
	mux.Handle("/report", &api.ReportHandler{Registry: registry, Logger: logger})

	h := http.Handler(mux)
	h = admission.CapacityMiddleware(admission.CapacityOptions{
		MaxInFlight:  cfg.capacityMax,
		RejectStatus: http.StatusServiceUnavailable,
		EnterTimeout: cfg.capacityTimeout,
	})(h)
	h = admission.Middleware(admission.Options{
		Store:               store,
		Limit:               cfg.limit,
		Window:              cfg.window,
		Surge:               surge,
		Stats:               statsStore,
		Logger:              logger,
		KeyHeader:           cfg.keyHeader,
		TrustXForwardedFor:  cfg.trustXFF,
		RetryAfter:          cfg.retryAfter,
		AddRateLimitHeaders: cfg.addHeaders,
	})(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.Int64("limit", cfg.limit),
		zap.Duration("window", cfg.window),
		zap.String("store", cfg.storeBackend),
		zap.Bool("surge", cfg.surgeEnabled),
		zap.Bool("stats", cfg.statsEnabled),
		zap.Int("maxInFlight", cfg.capacityMax))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// startSQLiteSweeper remove registros expirados de hora em hora.
// Higiene do arquivo apenas; a correção do limite não depende disso.
func startSQLiteSweeper(ctx context.Context, store *infra.SQLiteCounterStore, logger *zap.Logger) {
	t := time.NewTicker(1 * time.Hour)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := store.DeleteExpired(ctx, 24*time.Hour)
				if err != nil {
					logger.Warn("sqlite sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Info("sqlite sweep removed stale records", zap.Int64("rows", n))
				}
			}
		}
	}()
}

type config struct {
	listenAddr string

	limit  int64
	window time.Duration

	storeBackend  string
	sqlitePath    string
	redisAddr     string
	redisPassword string
	redisDB       int

	keyHeader  string
	trustXFF   bool
	retryAfter time.Duration
	addHeaders bool

	surgeEnabled bool
	surgeRPS     float64
	surgeBurst   int

	capacityMax     int
	capacityTimeout time.Duration

	statsEnabled       bool
	statsBackend       string
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackKeys     bool
}

func readConfig() (config, error) {
	env := &envReader{}

	cfg := config{}
	cfg.listenAddr = env.strDefault("LISTEN_ADDR", ":8080")

	cfg.limit = int64(env.intDefault("RATE_LIMIT", 5))
	cfg.window = env.durationDefault("RATE_WINDOW", 60*time.Second)

	cfg.storeBackend = strings.ToLower(env.strDefault("STORE_BACKEND", "sqlite"))
	cfg.sqlitePath = env.strDefault("SQLITE_PATH", "request_limit.db")
	cfg.redisAddr = env.strDefault("REDIS_ADDR", "")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = env.intDefault("REDIS_DB", 0)

	cfg.keyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = env.boolDefault("TRUST_XFF", false)
	cfg.retryAfter = env.durationDefault("RETRY_AFTER", 1*time.Second)
	cfg.addHeaders = env.boolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.surgeEnabled = env.boolDefault("SURGE_ENABLED", false)
	cfg.surgeRPS = env.floatDefault("SURGE_RPS", 10)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 20 pode dar a impressão de que
	// o pré-filtro não está funcionando, porque as primeiras ~20 passam.
	if burst, ok := env.intOpt("SURGE_BURST"); ok {
		cfg.surgeBurst = burst
	} else {
		cfg.surgeBurst = 20
		if env.isSet("SURGE_RPS") && cfg.surgeRPS > 0 && cfg.surgeRPS < 1 {
			cfg.surgeBurst = 1
		}
	}

	cfg.capacityMax = env.intDefault("CONCURRENCY_MAX", 100)
	cfg.capacityTimeout = env.durationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.statsEnabled = env.boolDefault("STATS_ENABLED", false)
	cfg.statsBackend = strings.ToLower(env.strDefault("STATS_BACKEND", "memory"))
	cfg.statsRedisAddr = env.strDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = env.intDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = env.strDefault("STATS_PREFIX", "admission:stats")
	cfg.statsTTL = env.durationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = env.strDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = env.boolDefault("STATS_TRACK_KEYS", false)

	// valor que não parseia derruba a inicialização; default silencioso
	// mascararia erro de operação
	if err := env.err(); err != nil {
		return config{}, err
	}

	if cfg.limit <= 0 {
		return config{}, errors.New("RATE_LIMIT must be > 0")
	}
	if cfg.window <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	switch cfg.storeBackend {
	case "memory", "sqlite", "redis":
	default:
		return config{}, errors.New("STORE_BACKEND must be memory, sqlite or redis")
	}
	if cfg.storeBackend == "sqlite" && strings.TrimSpace(cfg.sqlitePath) == "" {
		return config{}, errors.New("SQLITE_PATH is required when STORE_BACKEND=sqlite")
	}
	if cfg.storeBackend == "redis" && strings.TrimSpace(cfg.redisAddr) == "" {
		return config{}, errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
	}
	if cfg.surgeEnabled {
		if cfg.surgeRPS <= 0 {
			return config{}, errors.New("SURGE_RPS must be > 0")
		}
		if cfg.surgeBurst <= 0 {
			return config{}, errors.New("SURGE_BURST must be > 0")
		}
	}
	if cfg.capacityMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.statsEnabled {
		switch cfg.statsBackend {
		case "memory":
		case "redis":
			if strings.TrimSpace(cfg.statsRedisAddr) == "" {
				return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_BACKEND=redis")
			}
		default:
			return config{}, errors.New("STATS_BACKEND must be memory or redis")
		}
	}
	return cfg, nil
}

// envReader acumula os erros de parse do ambiente para reportar todos de uma
// vez e derrubar a inicialização.
type envReader struct {
	problems []string
}

func (e *envReader) complain(k, v, want string) {
	e.problems = append(e.problems, fmt.Sprintf("%s=%q is not a valid %s", k, v, want))
}

func (e *envReader) err() error {
	if len(e.problems) == 0 {
		return nil
	}
	return errors.New("invalid environment: " + strings.Join(e.problems, "; "))
}

func (e *envReader) strDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (e *envReader) intDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.complain(k, v, "integer")
		return def
	}
	return i
}

func (e *envReader) intOpt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.complain(k, v, "integer")
		return 0, false
	}
	return i, true
}

func (e *envReader) isSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func (e *envReader) floatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.complain(k, v, "number")
		return def
	}
	return f
}

func (e *envReader) boolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.complain(k, v, "boolean")
		return def
	}
	return b
}

func (e *envReader) durationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.complain(k, v, "duration")
		return def
	}
	return d
}
