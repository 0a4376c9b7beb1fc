package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/the-abed/zap-shift-server/apperrors"
	"github.com/the-abed/zap-shift-server/awsclient"
	"github.com/the-abed/zap-shift-server/metrics"
	"github.com/the-abed/zap-shift-server/models"
	"github.com/the-abed/zap-shift-server/repository"
	"go.uber.org/zap"
)

const (
	EventParcelPaid              = "parcel_paid"
	EventCheckoutSessionComplete = string(stripe.EventTypeCheckoutSessionCompleted)
)

// PaymentService defines the checkout and payment confirmation logic.
type PaymentService interface {
	// CreateCheckoutSession returns the hosted checkout URL.
	CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (string, error)
	ConfirmPayment(ctx context.Context, sessionID string) (*models.ConfirmationResult, error)
	// HandleWebhook returns nil, nil for verified events it does not act on.
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.ConfirmationResult, error)
}

type PaymentOption func(*paymentServiceImpl)

// WithLock serialises confirmations of one session through lock.
func WithLock(lock ConfirmationLock) PaymentOption {
	return func(s *paymentServiceImpl) { s.lock = lock }
}

// WithEvents publishes parcel_paid events to topicArn.
func WithEvents(publisher awsclient.SNSPublisher, topicArn string) PaymentOption {
	return func(s *paymentServiceImpl) {
		s.snsClient = publisher
		s.snsTopicArn = topicArn
	}
}

func WithMetrics(m *metrics.Metrics) PaymentOption {
	return func(s *paymentServiceImpl) { s.metrics = m }
}

type paymentServiceImpl struct {
	parcels  repository.ParcelRepository
	payments repository.PaymentRepository
	gateway  CheckoutGateway
	logger   *zap.Logger

	lock        ConfirmationLock
	snsClient   awsclient.SNSPublisher
	snsTopicArn string
	metrics     *metrics.Metrics

	newTrackingID func() string
	now           func() time.Time
}

func NewPaymentService(
	parcels repository.ParcelRepository,
	payments repository.PaymentRepository,
	gateway CheckoutGateway,
	logger *zap.Logger,
	opts ...PaymentOption,
) PaymentService {
	s := &paymentServiceImpl{
		parcels:       parcels,
		payments:      payments,
		gateway:       gateway,
		logger:        logger,
		newTrackingID: NewTrackingID,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *paymentServiceImpl) CreateCheckoutSession(ctx context.Context, req *models.CheckoutRequest) (string, error) {
	url, err := s.gateway.CreateCheckoutSession(ctx, req)
	s.metrics.ObserveCheckout(err)
	if err != nil {
		s.logger.Error("Failed to create checkout session",
			zap.String("parcel_id", req.ParcelID),
			zap.Error(err),
		)
		return "", apperrors.Wrap(apperrors.ErrGateway, err)
	}

	s.logger.Info("Checkout session created",
		zap.String("parcel_id", req.ParcelID),
		zap.Int64("amount", req.Cost.MinorUnits()),
	)
	return url, nil
}

func (s *paymentServiceImpl) ConfirmPayment(ctx context.Context, sessionID string) (*models.ConfirmationResult, error) {
	if sessionID == "" {
		return nil, apperrors.ErrMissingSession
	}

	var result *models.ConfirmationResult
	err := s.withLock(ctx, sessionID, func() error {
		session, err := s.gateway.RetrieveSession(ctx, sessionID)
		if err != nil {
			s.logger.Error("Failed to retrieve checkout session",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			return apperrors.Wrap(apperrors.ErrGateway, err)
		}
		result, err = s.confirm(ctx, session)
		return err
	})
	if err != nil {
		s.metrics.ObserveConfirmation(metrics.ResultError)
		return nil, err
	}
	return result, nil
}

func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.ConfirmationResult, error) {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("Rejected webhook", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrInvalidWebhook, err)
	}
	if event.Type != EventCheckoutSessionComplete || event.Session == nil {
		s.logger.Debug("Ignoring webhook event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil, nil
	}

	var result *models.ConfirmationResult
	err = s.withLock(ctx, event.Session.ID, func() error {
		var err error
		result, err = s.confirm(ctx, event.Session)
		return err
	})
	if err != nil {
		s.metrics.ObserveConfirmation(metrics.ResultError)
		return nil, err
	}
	return result, nil
}

// confirm applies a retrieved session to the stores. The tracking id is
// generated before the status check, so an unpaid session still consumes one.
func (s *paymentServiceImpl) confirm(ctx context.Context, session *models.CheckoutSession) (*models.ConfirmationResult, error) {
	trackingID := s.newTrackingID()

	if !session.IsPaid() {
		s.logger.Info("Checkout session not paid",
			zap.String("session_id", session.ID),
			zap.String("payment_status", session.PaymentStatus),
		)
		s.metrics.ObserveConfirmation(metrics.ResultUnpaid)
		return &models.ConfirmationResult{PaymentStatus: session.PaymentStatus}, nil
	}

	parcelID := session.ParcelID()
	oid, err := ParseParcelID(parcelID)
	if err != nil {
		s.logger.Error("Checkout session carries an invalid parcel id",
			zap.String("session_id", session.ID),
			zap.String("parcel_id", parcelID),
		)
		return nil, err
	}
	transactionID := session.PaymentIntentID

	parcel, err := s.parcels.FindByID(ctx, oid)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	if existing, err := s.existingConfirmation(ctx, session, parcel); err != nil || existing != nil {
		return existing, err
	}
	if parcel == nil {
		// the payment is still recorded so the charge is not lost
		s.logger.Warn("Paid session references a missing parcel",
			zap.String("session_id", session.ID),
			zap.String("parcel_id", parcelID),
		)
	}

	modified, err := s.parcels.MarkPaid(ctx, oid, trackingID)
	if err != nil {
		s.logger.Error("Failed to mark parcel paid", zap.String("parcel_id", parcelID), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	payment := &models.Payment{
		Amount:        session.AmountTotal,
		TransactionID: transactionID,
		ParcelID:      parcelID,
		ParcelName:    session.ParcelName(),
		SenderEmail:   session.CustomerEmail,
		Currency:      session.Currency,
		PaymentStatus: session.PaymentStatus,
		PaidAt:        s.now().UTC(),
	}
	inserted, err := s.payments.Create(ctx, payment)
	if err != nil {
		// the parcel is already marked paid; there is no rollback
		s.logger.Error("Failed to record payment",
			zap.String("parcel_id", parcelID),
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	s.logger.Info("Payment confirmed",
		zap.String("parcel_id", parcelID),
		zap.String("tracking_id", trackingID),
		zap.String("transaction_id", transactionID),
	)
	s.metrics.ObserveConfirmation(metrics.ResultPaid)

	s.publishEvent(ctx, models.ParcelPaidEvent{
		Type:          EventParcelPaid,
		ParcelID:      parcelID,
		TrackingID:    trackingID,
		TransactionID: transactionID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		SenderEmail:   payment.SenderEmail,
		Timestamp:     payment.PaidAt,
	})

	return &models.ConfirmationResult{
		Success:       true,
		PaymentStatus: session.PaymentStatus,
		ModifyParcel:  modified,
		TrackingID:    trackingID,
		TransactionID: transactionID,
		PaymentInfo:   inserted,
	}, nil
}

// existingConfirmation returns a result when the session was already applied:
// the parcel is paid or a payment with the same transaction id exists.
func (s *paymentServiceImpl) existingConfirmation(ctx context.Context, session *models.CheckoutSession, parcel *models.Parcel) (*models.ConfirmationResult, error) {
	var trackingID string
	paid := false
	if parcel != nil {
		trackingID, paid = parcel.State().TrackingID()
	}

	if !paid && session.PaymentIntentID != "" {
		payment, err := s.payments.FindByTransactionID(ctx, session.PaymentIntentID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
		}
		paid = payment != nil
	}
	if !paid {
		return nil, nil
	}

	s.logger.Info("Payment already confirmed",
		zap.String("session_id", session.ID),
		zap.String("parcel_id", session.ParcelID()),
	)
	s.metrics.ObserveConfirmation(metrics.ResultAlreadyConfirmed)
	return &models.ConfirmationResult{
		Success:          true,
		AlreadyConfirmed: true,
		PaymentStatus:    session.PaymentStatus,
		TrackingID:       trackingID,
		TransactionID:    session.PaymentIntentID,
	}, nil
}

// withLock runs fn while holding the session's confirmation lock. A lock
// backend failure is logged and fn runs unguarded.
func (s *paymentServiceImpl) withLock(ctx context.Context, sessionID string, fn func() error) error {
	if s.lock == nil {
		return fn()
	}

	release, ok, err := s.lock.Acquire(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Confirmation lock unavailable, continuing without it",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return fn()
	}
	if !ok {
		return apperrors.ErrConfirmationInProgress
	}
	defer func() {
		// release must outlive a cancelled request context
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release confirmation lock", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
	return fn()
}

// publishEvent marshals an event and publishes it to SNS (non-fatal on error).
func (s *paymentServiceImpl) publishEvent(ctx context.Context, event interface{}) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		s.logger.Debug("SNS not configured, skipping event publish")
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, b); err != nil {
		s.logger.Error("Failed to publish SNS event", zap.Error(err))
		return
	}
	s.logger.Info("Published SNS event", zap.String("topic", s.snsTopicArn))
}
