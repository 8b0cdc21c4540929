package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250811-153000",
		Description: "Account overdraft allowance and top-up idempotency",
		Up: []string{
			`ALTER TABLE fin_konto ADD COLUMN IF NOT EXISTS credit_limit_cents BIGINT NOT NULL DEFAULT 0`,

			// A Stripe checkout session settles at most once.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_fin_transaktion_checkout_once
				ON fin_transaktion(reference_id)
				WHERE type = 'CREDIT' AND reference_type = 'stripe_checkout'`,
		},
	})
}
