package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"telemetry-gateway/middleware/admission/domain"
)

// Toda a sequência ler/reiniciar/incrementar/negar roda dentro do servidor,
// então é atômica por chave mesmo com vários gateways apontando para o mesmo
// Redis.
//
// KEYS[1] = hash do registro (count/start)
// ARGV[1] = now (unix s), ARGV[2] = window (s), ARGV[3] = limit, ARGV[4] = ttl (s)
var checkAndIncrScript = redis.NewScript(`
local rec   = redis.call("HMGET", KEYS[1], "count", "start")
local now   = tonumber(ARGV[1])
local win   = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local count = tonumber(rec[1])
local start = tonumber(rec[2])

if (not count) or (now - start > win) then
  redis.call("HSET", KEYS[1], "count", 1, "start", now)
  if ttl > 0 then redis.call("EXPIRE", KEYS[1], ttl) end
  return 1
end

if count < limit then
  redis.call("HINCRBY", KEYS[1], "count", 1)
  return 1
end

return 0
`)

// RedisCounterStore guarda os contadores de janela fixa em um Redis compartilhado.
type RedisCounterStore struct {
	rdb *redis.Client

	prefix string
	// ttl descarta registros ociosos. Se menor que 2x a janela, é elevado
	// para não perder estado de uma janela ainda viva.
	ttl time.Duration
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithCounterTTL(d time.Duration) RedisCounterOption {
	return func(s *RedisCounterStore) { s.ttl = d }
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:    rdb,
		prefix: "admission:counter",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAndIncrement implementa domain.CounterStore.
func (s *RedisCounterStore) CheckAndIncrement(ctx context.Context, key domain.Key, limit int64, window time.Duration, now time.Time) (domain.Outcome, error) {
	ttl := s.ttl
	if ttl < 2*window {
		ttl = 2 * window
	}

	res, err := checkAndIncrScript.Run(ctx, s.rdb,
		[]string{s.prefix + ":" + string(key)},
		now.Unix(),
		int64(window/time.Second),
		limit,
		int64(ttl/time.Second),
	).Int()
	if err != nil {
		return domain.Denied, fmt.Errorf("%w: redis eval: %v", domain.ErrStorageUnavailable, err)
	}
	if res == 1 {
		return domain.Admitted, nil
	}
	return domain.Denied, nil
}
