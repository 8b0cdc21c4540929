package mw

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/httprate"

	"github.com/firmenkern/recherche-api/internal/metrics"
	"github.com/firmenkern/recherche-api/internal/ratelimit"
)

// limitExceededBody is the 429 response for the partner limiter.
type limitExceededBody struct {
	Message           string `json:"message"`
	Limit             int    `json:"limit"`
	Window            string `json:"window"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// PartnerRateLimit returns a Huma middleware that applies the partner's
// fixed-window limits to partner operations. Runs after Auth, which puts
// the partner on the context. Allowed requests carry X-RateLimit headers
// for the most constrained window; a counter store outage fails open.
func PartnerRateLimit(limiter *ratelimit.Limiter) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || RequiredScheme(op) != SchemePartnerKey {
			next(ctx)
			return
		}

		partner := GetPartner(ctx.Context())
		if partner == nil {
			next(ctx)
			return
		}

		limits := ratelimit.Limits{
			PerMinute: partner.LimitPerMinute,
			PerHour:   partner.LimitPerHour,
			PerDay:    partner.LimitPerDay,
		}

		result, err := limiter.Check(ctx.Context(), partner.ID, limits)
		if err != nil {
			var exceeded *ratelimit.LimitExceededError
			if errors.As(err, &exceeded) {
				metrics.RateLimitRejections.WithLabelValues(exceeded.Window).Inc()
				writeLimitExceeded(ctx, exceeded)
				return
			}
			slog.Error("rate limit check failed", "partner_id", partner.ID, "error", err)
			next(ctx)
			return
		}

		if result != nil {
			ctx.SetHeader("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			ctx.SetHeader("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		}
		next(ctx)
	}
}

func writeLimitExceeded(ctx huma.Context, e *ratelimit.LimitExceededError) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetHeader("X-RateLimit-Limit", strconv.Itoa(e.Limit))
	ctx.SetHeader("X-RateLimit-Remaining", "0")
	ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(e.ResetAt.Unix(), 10))
	ctx.SetHeader("Retry-After", strconv.Itoa(e.RetryAfterSeconds))
	ctx.SetStatus(http.StatusTooManyRequests)

	_ = json.NewEncoder(ctx.BodyWriter()).Encode(limitExceededBody{
		Message:           e.Error(),
		Limit:             e.Limit,
		Window:            e.Window,
		RetryAfterSeconds: e.RetryAfterSeconds,
	})
}

// RateLimitByIP returns a middleware that rate limits by IP address.
// Applied router-wide as a backstop in front of the partner limiter.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}
