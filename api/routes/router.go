package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/deliveries"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Params carries everything the HTTP surface needs. Nil services produce 500s on their
// routes rather than panics so partial wiring in tests stays usable.
type Params struct {
	Config           *config.Config
	Logger           *logger.Logger
	Health           []controllers.Dependency
	Metrics          prometheus.Gatherer
	IdempotencyStore redis.IdempotencyStore

	Cart       cart.Service
	Addresses  address.Service
	Checkout   checkoutsvc.Service
	Coupons    coupons.Service
	Orders     orders.Service
	Deliveries deliveries.Service
	Returns    returns.Service
	Refunds    refunds.Service
	Inventory  inventory.Ledger

	StripeVerifier       webhookcontrollers.EventVerifier
	StripeWebhookService webhookcontrollers.StripeWebhookService
	StripeWebhookGuard   webhookcontrollers.WebhookGuard
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Health...))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhookService, p.StripeVerifier, p.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.IdempotencyStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(p.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(p.Cart, logg))
			r.Patch("/items/{skuId}", cartcontrollers.CartUpdateItem(p.Cart, logg))
			r.Delete("/items/{skuId}", cartcontrollers.CartRemoveItem(p.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(p.Cart, logg))
		})
		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(p.Addresses, logg))
			r.Post("/", controllers.AddressCreate(p.Addresses, logg))
		})
		r.Post("/checkout", controllers.Checkout(p.Checkout, logg))
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.CouponWallet(p.Coupons, logg))
			r.Post("/exchange", controllers.CouponExchange(p.Coupons, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.CancelOrder(p.Orders, logg))
		})
		r.Route("/returns", func(r chi.Router) {
			r.Get("/", controllers.ReturnList(p.Returns, logg))
			r.Post("/", controllers.ReturnCreate(p.Returns, logg))
			r.Get("/{returnId}", controllers.ReturnDetail(p.Returns, logg))
		})
		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", controllers.RefundList(p.Refunds, logg))
			r.Post("/", controllers.RefundCreate(p.Refunds, logg))
			r.Get("/{refundId}", controllers.RefundDetail(p.Refunds, logg))
		})
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", controllers.DeliveryList(p.Deliveries, logg))
			r.Get("/{deliveryId}", controllers.DeliveryDetail(p.Deliveries, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleDelivery, enums.UserRoleAdmin))
				r.Patch("/{deliveryId}/status", controllers.DeliveryUpdateStatus(p.Deliveries, logg))
				r.Post("/{deliveryId}/proof", controllers.DeliveryUploadProof(p.Deliveries, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(p.IdempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(p.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			r.Patch("/{orderId}/status", ordercontrollers.AdminAdvanceOrder(p.Orders, logg))
		})
		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", controllers.DeliveryList(p.Deliveries, logg))
			r.Post("/", controllers.DeliveryCreate(p.Deliveries, logg))
			r.Get("/{deliveryId}", controllers.DeliveryDetail(p.Deliveries, logg))
			r.Post("/{deliveryId}/assign", controllers.DeliveryAssign(p.Deliveries, logg))
			r.Patch("/{deliveryId}/status", controllers.DeliveryUpdateStatus(p.Deliveries, logg))
		})
		r.Route("/returns", func(r chi.Router) {
			r.Get("/", controllers.ReturnList(p.Returns, logg))
			r.Get("/{returnId}", controllers.ReturnDetail(p.Returns, logg))
			r.Post("/{returnId}/approve", controllers.ReturnApprove(p.Returns, logg))
			r.Post("/{returnId}/reject", controllers.ReturnReject(p.Returns, logg))
			r.Post("/{returnId}/complete", controllers.ReturnComplete(p.Returns, logg))
		})
		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", controllers.RefundList(p.Refunds, logg))
			r.Get("/{refundId}", controllers.RefundDetail(p.Refunds, logg))
			r.Post("/{refundId}/approve", controllers.RefundApprove(p.Refunds, logg))
			r.Post("/{refundId}/reject", controllers.RefundReject(p.Refunds, logg))
			r.Post("/{refundId}/complete", controllers.RefundComplete(p.Refunds, logg))
		})
		r.Route("/inventory", func(r chi.Router) {
			r.Post("/", controllers.InventoryCreate(p.Inventory, logg))
			r.Get("/{skuId}", controllers.InventoryGet(p.Inventory, logg))
			r.Post("/{skuId}/restock", controllers.InventoryRestock(p.Inventory, logg))
			r.Post("/{skuId}/release", controllers.InventoryRelease(p.Inventory, logg))
		})
	})

	return r
}
