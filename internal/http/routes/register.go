package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/firmenkern/recherche-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// Pass real handler implementations for the main server, or stub implementations
// for OpenAPI generation.
func Register(api huma.API, h *Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	// Health check
	mw.PublicGet(api, "/health", h.Health,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	// =========================================================================
	// Partner Routes (require partner API key)
	// =========================================================================

	// --- Auftraege ---
	mw.PartnerPost(api, "/recherche/auftraege", h.Order.CreateOrder,
		mw.WithTags("Auftraege"),
		mw.WithSummary("Create research order"),
		mw.WithDescription("Creates a draft order with a quoted price. The order only starts processing once it is confirmed."),
		mw.WithOperationID("createAuftrag"),
		mw.WithDefaultStatus(http.StatusCreated))
	mw.PartnerPost(api, "/recherche/auftraege/{id}/bestaetigen", h.Order.ConfirmOrder,
		mw.WithTags("Auftraege"),
		mw.WithSummary("Confirm research order"),
		mw.WithDescription("Accepts the quoted price and queues the order for processing."),
		mw.WithOperationID("confirmAuftrag"))
	mw.PartnerGet(api, "/recherche/auftraege", h.Order.ListOrders,
		mw.WithTags("Auftraege"),
		mw.WithSummary("List research orders"),
		mw.WithOperationID("listAuftraege"))
	mw.PartnerGet(api, "/recherche/auftraege/{id}", h.Order.GetOrder,
		mw.WithTags("Auftraege"),
		mw.WithSummary("Get research order"),
		mw.WithOperationID("getAuftrag"))
	mw.PartnerGet(api, "/recherche/auftraege/{id}/ergebnisse", h.Order.GetOrderResults,
		mw.WithTags("Auftraege"),
		mw.WithSummary("Get research order results"),
		mw.WithOperationID("getAuftragErgebnisse"))

	// --- Billing ---
	mw.PartnerGet(api, "/billing/konto", h.Billing.GetAccount,
		mw.WithTags("Billing"),
		mw.WithSummary("Get credit account"),
		mw.WithOperationID("getKonto"))
	mw.PartnerPost(api, "/billing/topup", h.Billing.CreateTopup,
		mw.WithTags("Billing"),
		mw.WithSummary("Create credit top-up"),
		mw.WithDescription("Creates a Stripe Checkout session for a credit top-up. Credits land after the payment completes."),
		mw.WithOperationID("createTopup"))

	// =========================================================================
	// Admin Routes (require admin JWT, hidden from OpenAPI)
	// =========================================================================

	mw.AdminGet(api, "/admin/settings", h.Admin.ListSettings,
		mw.WithTags("Admin"),
		mw.WithSummary("List runtime settings"),
		mw.WithOperationID("adminListSettings"),
		mw.WithHidden())
	mw.AdminPut(api, "/admin/settings/{key}", h.Admin.PutSetting,
		mw.WithTags("Admin"),
		mw.WithSummary("Store runtime setting"),
		mw.WithOperationID("adminPutSetting"),
		mw.WithHidden())
	mw.AdminGet(api, "/admin/partner/{id}", h.Admin.GetPartner,
		mw.WithTags("Admin"),
		mw.WithSummary("Get partner"),
		mw.WithOperationID("adminGetPartner"),
		mw.WithHidden())
	mw.AdminGet(api, "/admin/auftraege", h.Admin.ListOrders,
		mw.WithTags("Admin"),
		mw.WithSummary("List orders across partners"),
		mw.WithOperationID("adminListAuftraege"),
		mw.WithHidden())
}
