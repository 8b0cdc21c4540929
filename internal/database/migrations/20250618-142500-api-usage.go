package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250618-142500",
		Description: "API usage records",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS api_usage (
				id TEXT PRIMARY KEY,
				partner_id TEXT NOT NULL,
				endpoint TEXT NOT NULL,
				method TEXT NOT NULL,
				parameters JSONB,
				status_code INTEGER NOT NULL DEFAULT 0,
				result_count INTEGER NOT NULL DEFAULT 0,
				cost_cents BIGINT NOT NULL DEFAULT 0,
				response_time_ms INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_api_usage_partner_created ON api_usage(partner_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_api_usage_created ON api_usage(created_at)`,
		},
	})
}
