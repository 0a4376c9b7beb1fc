package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/the-abed/zap-shift-server/controllers"
	"github.com/the-abed/zap-shift-server/metrics"
)

// Controllers groups the handlers mounted by RegisterRoutes.
type Controllers struct {
	Health   *controllers.HealthController
	Parcels  *controllers.ParcelController
	Payments *controllers.PaymentController
}

type Options struct {
	// WebhookEnabled mounts POST /stripe/webhook.
	WebhookEnabled bool
	// Metrics, when set, is served at GET /metrics.
	Metrics *metrics.Metrics
}

// RegisterRoutes sets up every public route.
func RegisterRoutes(r *gin.Engine, ctrl Controllers, opts Options) {
	r.GET("/", ctrl.Health.Root)
	r.GET("/health", ctrl.Health.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	parcels := r.Group("/parcels")
	parcels.GET("", ctrl.Parcels.ListParcels)
	parcels.GET("/:id", ctrl.Parcels.GetParcel)
	parcels.POST("", ctrl.Parcels.CreateParcel)
	parcels.DELETE("/:id", ctrl.Parcels.DeleteParcel)

	r.POST("/payment-checkout-session", ctrl.Payments.CreateCheckoutSession)
	r.PATCH("/payment-success", ctrl.Payments.ConfirmPayment)

	if opts.WebhookEnabled {
		r.POST("/stripe/webhook", ctrl.Payments.StripeWebhook)
	}
}
