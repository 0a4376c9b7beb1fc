package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
	"github.com/the-abed/zap-shift-server/models"
)

// CheckoutGateway is the hosted-checkout provider used by PaymentService.
type CheckoutGateway interface {
	// CreateCheckoutSession returns the hosted checkout URL.
	CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (string, error)
	RetrieveSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (*models.WebhookEvent, error)
}

// StripeService implements CheckoutGateway with Stripe Checkout.
type StripeService struct {
	SecretKey  string
	WebhookKey string
	SiteDomain string
}

func NewStripeService(secretKey, webhookKey, siteDomain string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey, SiteDomain: siteDomain}
}

func (s *StripeService) successURL() string {
	return s.SiteDomain + "/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}"
}

func (s *StripeService) cancelURL() string {
	return s.SiteDomain + "/dashboard/payment-cancelled"
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(req.Cost.MinorUnits()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Please pay for: " + req.ParcelName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.successURL()),
		CancelURL:  stripe.String(s.cancelURL()),
	}
	if req.SenderEmail != "" {
		params.CustomerEmail = stripe.String(req.SenderEmail)
	}
	params.Context = ctx
	params.AddMetadata(models.MetadataParcelID, req.ParcelID)
	params.AddMetadata(models.MetadataParcelName, req.ParcelName)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *StripeService) RetrieveSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	return toCheckoutSession(sess), nil
}

func (s *StripeService) ParseWebhook(payload []byte, signature string) (*models.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.WebhookKey,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}

	out := &models.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Type == stripe.EventTypeCheckoutSessionCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = toCheckoutSession(&sess)
	}
	return out, nil
}

func toCheckoutSession(sess *stripe.CheckoutSession) *models.CheckoutSession {
	out := &models.CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		CustomerEmail: sess.CustomerEmail,
		Metadata:      sess.Metadata,
	}
	if out.CustomerEmail == "" && sess.CustomerDetails != nil {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
