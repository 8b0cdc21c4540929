package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250602-100000",
		Description: "Geo and category reference tables",
		Up: []string{
			// Reference data is seeded by the platform's import tooling,
			// not by this service.
			`CREATE TABLE IF NOT EXISTS geo_ort (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				kreis_id TEXT,
				lat DOUBLE PRECISION NOT NULL,
				lng DOUBLE PRECISION NOT NULL,
				radius_m INTEGER NOT NULL DEFAULT 5000
			)`,
			`CREATE INDEX IF NOT EXISTS idx_geo_ort_kreis ON geo_ort(kreis_id)`,

			`CREATE TABLE IF NOT EXISTS geo_kreis (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				lat DOUBLE PRECISION NOT NULL,
				lng DOUBLE PRECISION NOT NULL,
				radius_m INTEGER NOT NULL DEFAULT 15000
			)`,

			`CREATE TABLE IF NOT EXISTS geo_plz (
				plz TEXT PRIMARY KEY,
				lat DOUBLE PRECISION NOT NULL,
				lng DOUBLE PRECISION NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS google_kategorie (
				gcid TEXT PRIMARY KEY,
				name TEXT NOT NULL
			)`,
		},
	})
}
