package admission

import (
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"telemetry-gateway/middleware/admission/application"
	"telemetry-gateway/middleware/admission/domain"
)

type KeyFunc func(r *http.Request) string

type Options struct {
	Store  domain.CounterStore
	Limit  int64
	Window time.Duration

	Surge  domain.SurgeStore
	Stats  domain.StatsStore
	Logger *zap.Logger

	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool

	RetryAfter          time.Duration
	AddRateLimitHeaders bool

	// Now é repassado à camada application (injeção de relógio nos testes).
	Now func() time.Time
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = application.DefaultLimit
	}
	window := opts.Window
	if window <= 0 {
		window = application.DefaultWindow
	}

	svc := application.Service{
		Store:      opts.Store,
		Limit:      limit,
		Window:     window,
		RetryAfter: opts.RetryAfter,
		Now:        opts.Now,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				w.Header().Set("X-RateLimit-Limit", formatInt64(limit))
				w.Header().Set("X-RateLimit-Window", window.String())
			}

			if opts.Surge != nil {
				if lim := opts.Surge.Get(domain.Key(key)); lim != nil && !lim.Allow() {
					// rajada: derruba antes de tocar o store durável, sem consumir cota
					recordStats(r, opts.Stats, key, domain.StatsDenied)
					w.Header().Set("Retry-After", formatInt(int(opts.RetryAfter.Seconds())))
					RespondError(w, http.StatusTooManyRequests, MsgLimitExceeded)
					return
				}
			}

			dec, err := svc.CheckAndUpdate(r.Context(), domain.Key(key))
			if err != nil {
				// detalhe vai para o log; o cliente recebe mensagem genérica
				logger.Error("admission check failed",
					zap.String("key", key),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				recordStats(r, opts.Stats, key, domain.StatsErrored)
				RespondError(w, http.StatusInternalServerError, MsgInternalError)
				return
			}
			if !dec.Allowed {
				recordStats(r, opts.Stats, key, domain.StatsDenied)
				w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				RespondError(w, http.StatusTooManyRequests, MsgLimitExceeded)
				return
			}

			recordStats(r, opts.Stats, key, domain.StatsAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func recordStats(r *http.Request, stats domain.StatsStore, key string, out domain.StatsOutcome) {
	if stats == nil {
		return
	}
	_ = stats.Record(r.Context(), domain.StatsEvent{
		Key:     domain.Key(key),
		Outcome: out,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
}
