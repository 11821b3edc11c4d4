package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/api/problem"
	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/ratelimit"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

// PublicRateLimiter limits requests per IP for unauthenticated routes. With a
// redis client the window is shared by every replica.
func PublicRateLimiter(rps int, client redis.Cmdable) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitHandler(fmt.Sprintf("Rate limit of %d req/s exceeded for this IP", rps))),
	}
	if client != nil {
		opts = append(opts, httprate.WithLimitCounter(ratelimit.NewRedisCounter(client, "ratelimit:public")))
	}
	return httprate.Limit(rps, time.Second, opts...)
}

// PrincipalRateLimiter limits authenticated users using their user ID as the key.
func PrincipalRateLimiter(rps int, client redis.Cmdable) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if userID := UserIDFromContext(r.Context()); userID != "" {
				return userID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(limitHandler(fmt.Sprintf("Rate limit of %d req/s exceeded for this user", rps))),
	}
	if client != nil {
		opts = append(opts, httprate.WithLimitCounter(ratelimit.NewRedisCounter(client, "ratelimit:principal")))
	}
	return httprate.Limit(rps, time.Second, opts...)
}

func limitHandler(detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problem.WriteError(w, r, domain.RateLimited(detail), false)
	}
}
