package mw

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/firmenkern/recherche-api/internal/models"
	"github.com/firmenkern/recherche-api/internal/service"
)

// UsageRecorder returns a Huma middleware that writes one api_usage row
// per partner request, including rejected ones. Added before
// PartnerRateLimit so 429s are recorded; requests bounced during auth
// carry no partner and are skipped.
func UsageRecorder(usage *service.UsageService, logger *slog.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || RequiredScheme(op) != SchemePartnerKey {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		partner := GetPartner(ctx.Context())
		if partner == nil {
			return
		}

		record := &models.UsageRecord{
			PartnerID:      partner.ID,
			Endpoint:       op.Path,
			Method:         ctx.Method(),
			StatusCode:     ctx.Status(),
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
		}
		u := ctx.URL()
		if query := u.Query(); len(query) > 0 {
			if params, err := json.Marshal(query); err == nil {
				record.ParametersJSON = string(params)
			}
		}

		// The response is already written; recording survives a closed
		// client connection.
		if err := usage.Record(context.WithoutCancel(ctx.Context()), record); err != nil {
			logger.Warn("failed to record usage",
				"partner_id", partner.ID,
				"endpoint", op.Path,
				"error", err,
			)
		}
	}
}
