package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/the-abed/zap-shift-server/logger"
	"github.com/the-abed/zap-shift-server/models"
	"github.com/the-abed/zap-shift-server/services"
	"go.uber.org/zap"
)

const SignatureHeader = "Stripe-Signature"

// PaymentController handles checkout and payment confirmation.
type PaymentController struct {
	paymentService services.PaymentService
	logger         *zap.Logger
}

func NewPaymentController(svc services.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{paymentService: svc, logger: logger}
}

// CreateCheckoutSession handles POST /payment-checkout-session
func (pc *PaymentController) CreateCheckoutSession(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	url, err := pc.paymentService.CreateCheckoutSession(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ConfirmPayment handles PATCH /payment-success?session_id=
func (pc *PaymentController) ConfirmPayment(c *gin.Context) {
	res, err := pc.paymentService.ConfirmPayment(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, confirmationBody(res))
}

// StripeWebhook handles POST /stripe/webhook. The raw body is required for
// signature verification.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	res, err := pc.paymentService.HandleWebhook(c.Request.Context(), payload, c.GetHeader(SignatureHeader))
	if err != nil {
		fail(c, err)
		return
	}

	if res != nil {
		logger.FromContext(c, pc.logger).Info("Webhook applied",
			zap.Bool("success", res.Success),
			zap.Bool("already_confirmed", res.AlreadyConfirmed),
			zap.String("transaction_id", res.TransactionID),
		)
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// confirmationBody shapes the client-facing envelope. The failure envelope
// keeps the historical sessionId:false field.
func confirmationBody(res *models.ConfirmationResult) gin.H {
	switch {
	case !res.Success:
		return gin.H{"success": false, "sessionId": false, "paymentStatus": res.PaymentStatus}
	case res.AlreadyConfirmed:
		return gin.H{
			"success":          true,
			"alreadyConfirmed": true,
			"trackingId":       res.TrackingID,
			"transactionId":    res.TransactionID,
		}
	default:
		return gin.H{
			"success":       true,
			"modifyParcel":  res.ModifyParcel,
			"trackingId":    res.TrackingID,
			"transactionId": res.TransactionID,
			"paymentInfo":   res.PaymentInfo,
		}
	}
}
