package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250706-091200",
		Description: "Normalized dedup lookup columns and external-id indexes",
		Up: []string{
			`ALTER TABLE com_unternehmen ADD COLUMN IF NOT EXISTS website_norm TEXT`,
			`ALTER TABLE com_unternehmen ADD COLUMN IF NOT EXISTS telefon_norm TEXT`,
			`CREATE INDEX IF NOT EXISTS idx_com_unternehmen_website_norm ON com_unternehmen(website_norm) WHERE website_norm IS NOT NULL AND website_norm <> ''`,
			`CREATE INDEX IF NOT EXISTS idx_com_unternehmen_telefon_norm ON com_unternehmen(telefon_norm) WHERE telefon_norm IS NOT NULL AND telefon_norm <> ''`,

			// One company per provider external id. The dedup engine relies
			// on these to turn racing inserts into silent duplicates.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_com_unternehmen_extid_google_places
				ON com_unternehmen ((metadaten->'google_places'->>'external_id'))
				WHERE metadaten->'google_places'->>'external_id' IS NOT NULL`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_com_unternehmen_extid_dataforseo
				ON com_unternehmen ((metadaten->'dataforseo'->>'external_id'))
				WHERE metadaten->'dataforseo'->>'external_id' IS NOT NULL`,
		},
	})
}
