package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250602-000000",
		Description: "Initial schema",
		Up: []string{
			// Partners - mirrored from the platform via webhooks.
			// Rate card and limits live here; identity stays in the platform.
			`CREATE TABLE IF NOT EXISTS par_partner (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				api_key_hash TEXT UNIQUE NOT NULL,
				base_fee_cents BIGINT NOT NULL DEFAULT 50,
				per_result_standard_cents BIGINT NOT NULL DEFAULT 5,
				per_result_premium_cents BIGINT NOT NULL DEFAULT 12,
				per_result_komplett_cents BIGINT NOT NULL DEFAULT 18,
				limit_per_minute INTEGER NOT NULL DEFAULT 0,
				limit_per_hour INTEGER NOT NULL DEFAULT 0,
				limit_per_day INTEGER NOT NULL DEFAULT 0,
				suspended BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			// Recherche orders - the unit of scheduling and billing
			`CREATE TABLE IF NOT EXISTS rch_auftrag (
				id TEXT PRIMARY KEY,
				partner_id TEXT NOT NULL REFERENCES par_partner(id),
				qualitaets_stufe TEXT NOT NULL,
				geo_ort_id TEXT,
				geo_kreis_id TEXT,
				plz TEXT,
				google_kategorie_gcid TEXT,
				branche_freitext TEXT,
				status TEXT NOT NULL DEFAULT 'ENTWURF',
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 3,
				estimated_cost_cents BIGINT NOT NULL DEFAULT 0,
				actual_cost_cents BIGINT NOT NULL DEFAULT 0,
				raw_count INTEGER NOT NULL DEFAULT 0,
				new_count INTEGER NOT NULL DEFAULT 0,
				duplicate_count INTEGER NOT NULL DEFAULT 0,
				updated_count INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				confirmed_at TIMESTAMPTZ,
				started_at TIMESTAMPTZ,
				completed_at TIMESTAMPTZ
			)`,
			// Lease ordering scan: status + created_at
			`CREATE INDEX IF NOT EXISTS idx_rch_auftrag_status_created ON rch_auftrag(status, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_rch_auftrag_partner ON rch_auftrag(partner_id, created_at)`,

			// Raw provider results - immutable once written
			`CREATE TABLE IF NOT EXISTS rch_roh_ergebnis (
				id TEXT PRIMARY KEY,
				auftrag_id TEXT NOT NULL REFERENCES rch_auftrag(id) ON DELETE CASCADE,
				quelle TEXT NOT NULL,
				external_id TEXT,
				name TEXT NOT NULL,
				strasse TEXT,
				plz TEXT,
				ort TEXT,
				land TEXT,
				telefon TEXT,
				email TEXT,
				website TEXT,
				kategorie TEXT,
				lat DOUBLE PRECISION,
				lng DOUBLE PRECISION,
				raw_payload JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rch_roh_ergebnis_auftrag ON rch_roh_ergebnis(auftrag_id)`,

			// Company directory - canonical deduplicated entities
			`CREATE TABLE IF NOT EXISTS com_unternehmen (
				id TEXT PRIMARY KEY,
				firmierung TEXT NOT NULL,
				strasse TEXT,
				plz TEXT,
				ort TEXT,
				land TEXT,
				website TEXT,
				telefon TEXT,
				email TEXT,
				lat DOUBLE PRECISION,
				lng DOUBLE PRECISION,
				metadaten JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_com_unternehmen_lat_lng ON com_unternehmen(lat, lng)`,

			// Prepaid credit accounts - one per partner, created lazily
			`CREATE TABLE IF NOT EXISTS fin_konto (
				id TEXT PRIMARY KEY,
				partner_id TEXT UNIQUE NOT NULL REFERENCES par_partner(id),
				balance_cents BIGINT NOT NULL DEFAULT 0,
				warning_threshold_cents BIGINT NOT NULL DEFAULT 1000,
				suspended BOOLEAN NOT NULL DEFAULT FALSE,
				suspension_reason TEXT,
				warning_sent_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,

			// Credit ledger - append-only, balance_after is the running sum
			`CREATE TABLE IF NOT EXISTS fin_transaktion (
				id TEXT PRIMARY KEY,
				konto_id TEXT NOT NULL REFERENCES fin_konto(id),
				type TEXT NOT NULL,
				amount_cents BIGINT NOT NULL,
				balance_after_cents BIGINT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				reference_type TEXT,
				reference_id TEXT,
				actor TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_fin_transaktion_konto ON fin_transaktion(konto_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_fin_transaktion_reference ON fin_transaktion(reference_type, reference_id)`,

			// Admin settings - encrypted values hold AES-256-GCM ciphertext
			`CREATE TABLE IF NOT EXISTS sys_einstellung (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				verschluesselt BOOLEAN NOT NULL DEFAULT FALSE,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		},
	})
}
