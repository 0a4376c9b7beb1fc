package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-abed/zap-shift-server/apperrors"
	"github.com/the-abed/zap-shift-server/metrics"
	"github.com/the-abed/zap-shift-server/models"
	"github.com/the-abed/zap-shift-server/repository/repositorytest"
	"github.com/the-abed/zap-shift-server/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ---- mock gateway ----

type mockGateway struct {
	url       string
	createErr error
	created   *models.CheckoutRequest

	session     *models.CheckoutSession
	retrieveErr error
	retrieved   []string

	event      *models.WebhookEvent
	webhookErr error
}

func (m *mockGateway) CreateCheckoutSession(_ context.Context, req *models.CheckoutRequest) (string, error) {
	m.created = req
	return m.url, m.createErr
}

func (m *mockGateway) RetrieveSession(_ context.Context, id string) (*models.CheckoutSession, error) {
	m.retrieved = append(m.retrieved, id)
	return m.session, m.retrieveErr
}

func (m *mockGateway) ParseWebhook(_ []byte, _ string) (*models.WebhookEvent, error) {
	return m.event, m.webhookErr
}

// ---- mock publisher ----

type mockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, _ string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return m.err
}

// ---- mock lock ----

type mockLock struct {
	held     bool
	err      error
	released int
}

func (m *mockLock) Acquire(_ context.Context, _ string) (func(context.Context) error, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held {
		return nil, false, nil
	}
	return func(context.Context) error { m.released++; return nil }, true, nil
}

var paidAt = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

type paymentFixture struct {
	parcel   *models.Parcel
	parcels  *repositorytest.ParcelRepository
	payments *repositorytest.PaymentRepository
	gateway  *mockGateway
	svc      services.PaymentService
}

func paidSession(parcelID string) *models.CheckoutSession {
	return &models.CheckoutSession{
		ID:              "cs_test_123",
		PaymentStatus:   models.SessionPaymentStatusPaid,
		AmountTotal:     2500,
		Currency:        "usd",
		CustomerEmail:   "a@b.com",
		PaymentIntentID: "pi_123",
		Metadata: map[string]string{
			models.MetadataParcelID:   parcelID,
			models.MetadataParcelName: "Box",
		},
	}
}

func newPaymentFixture(t *testing.T, opts ...services.PaymentOption) *paymentFixture {
	t.Helper()
	parcel := &models.Parcel{
		ID:            primitive.NewObjectID(),
		SenderEmail:   "a@b.com",
		ParcelName:    "Box",
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	f := &paymentFixture{
		parcel:   parcel,
		parcels:  repositorytest.NewParcelRepository(parcel),
		payments: repositorytest.NewPaymentRepository(),
		gateway:  &mockGateway{session: paidSession(parcel.ID.Hex())},
	}
	opts = append([]services.PaymentOption{
		services.WithClock(func() time.Time { return paidAt }),
	}, opts...)
	f.svc = services.NewPaymentService(f.parcels, f.payments, f.gateway, zap.NewNop(), opts...)
	return f
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Run("returns gateway url", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.url = "https://checkout.stripe.com/c/pay/cs_test_123"

		req := &models.CheckoutRequest{Cost: 25, ParcelName: "Box", ParcelID: f.parcel.ID.Hex(), SenderEmail: "a@b.com"}
		url, err := f.svc.CreateCheckoutSession(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", url)
		assert.Same(t, req, f.gateway.created)
	})

	t.Run("gateway error is 502", func(t *testing.T) {
		m := metrics.New()
		f := newPaymentFixture(t, services.WithMetrics(m))
		f.gateway.createErr = errors.New("invalid api key")

		_, err := f.svc.CreateCheckoutSession(context.Background(), &models.CheckoutRequest{Cost: 1})

		assert.ErrorIs(t, err, apperrors.ErrGateway)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutSessions.WithLabelValues("error")))
	})
}

func TestConfirmPayment_Paid(t *testing.T) {
	publisher := &mockPublisher{}
	m := metrics.New()
	f := newPaymentFixture(t,
		services.WithTrackingIDs(func() string { return "TRK-20260302-ABCDEF" }),
		services.WithEvents(publisher, "arn:aws:sns:us-east-1:000000000000:parcel-events"),
		services.WithMetrics(m),
	)

	res, err := f.svc.ConfirmPayment(context.Background(), "cs_test_123")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.AlreadyConfirmed)
	assert.Equal(t, "TRK-20260302-ABCDEF", res.TrackingID)
	assert.Equal(t, "pi_123", res.TransactionID)
	require.NotNil(t, res.ModifyParcel)
	assert.Equal(t, int64(1), res.ModifyParcel.ModifiedCount)
	require.NotNil(t, res.PaymentInfo)
	assert.NotEmpty(t, res.PaymentInfo.InsertedID)
	assert.Equal(t, []string{"cs_test_123"}, f.gateway.retrieved)

	parcel, err := f.parcels.FindByID(context.Background(), f.parcel.ID)
	require.NoError(t, err)
	tid, paid := parcel.State().TrackingID()
	assert.True(t, paid)
	assert.Equal(t, "TRK-20260302-ABCDEF", tid)

	payments := f.payments.All()
	require.Len(t, payments, 1)
	assert.Equal(t, models.Payment{
		ID:            payments[0].ID,
		Amount:        2500,
		TransactionID: "pi_123",
		ParcelID:      f.parcel.ID.Hex(),
		ParcelName:    "Box",
		SenderEmail:   "a@b.com",
		Currency:      "usd",
		PaymentStatus: "paid",
		PaidAt:        paidAt,
	}, payments[0])

	require.Len(t, publisher.messages, 1)
	var event models.ParcelPaidEvent
	require.NoError(t, json.Unmarshal(publisher.messages[0], &event))
	assert.Equal(t, services.EventParcelPaid, event.Type)
	assert.Equal(t, "TRK-20260302-ABCDEF", event.TrackingID)
	assert.Equal(t, int64(2500), event.Amount)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfirmationsTotal.WithLabelValues(metrics.ResultPaid)))
}

func TestConfirmPayment_RealTrackingIDFormat(t *testing.T) {
	f := newPaymentFixture(t)

	res, err := f.svc.ConfirmPayment(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.Regexp(t, `^TRK-\d{8}-[0-9A-F]{6}$`, res.TrackingID)
}

func TestConfirmPayment_Unpaid(t *testing.T) {
	calls := 0
	f := newPaymentFixture(t, services.WithTrackingIDs(func() string {
		calls++
		return "TRK-20260302-000000"
	}))
	f.gateway.session.PaymentStatus = models.SessionPaymentStatusUnpaid

	res, err := f.svc.ConfirmPayment(context.Background(), "cs_test_123")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "unpaid", res.PaymentStatus)
	assert.Equal(t, 1, calls, "tracking id is generated before the status check")
	assert.Equal(t, 0, f.parcels.MarkPaidCalls)
	assert.Empty(t, f.payments.All())

	parcel, _ := f.parcels.FindByID(context.Background(), f.parcel.ID)
	assert.False(t, parcel.State().IsPaid())
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	publisher := &mockPublisher{}
	f := newPaymentFixture(t, services.WithEvents(publisher, "arn:topic"))
	ctx := context.Background()

	first, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
	require.NoError(t, err)
	second, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
	require.NoError(t, err)

	assert.True(t, second.Success)
	assert.True(t, second.AlreadyConfirmed)
	assert.Equal(t, first.TrackingID, second.TrackingID, "tracking id is not re-stamped")
	assert.Nil(t, second.ModifyParcel)
	assert.Nil(t, second.PaymentInfo)
	assert.Len(t, f.payments.All(), 1)
	assert.Equal(t, 1, f.parcels.MarkPaidCalls)
	assert.Len(t, publisher.messages, 1)
}

func TestConfirmPayment_ExistingTransaction(t *testing.T) {
	f := newPaymentFixture(t)
	_, err := f.payments.Create(context.Background(), &models.Payment{TransactionID: "pi_123"})
	require.NoError(t, err)

	res, err := f.svc.ConfirmPayment(context.Background(), "cs_test_123")
	require.NoError(t, err)

	assert.True(t, res.AlreadyConfirmed)
	assert.Equal(t, 0, f.parcels.MarkPaidCalls)
	assert.Len(t, f.payments.All(), 1)
}

func TestConfirmPayment_MissingParcelStillRecordsPayment(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.session = paidSession(primitive.NewObjectID().Hex())

	res, err := f.svc.ConfirmPayment(context.Background(), "cs_test_123")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, int64(0), res.ModifyParcel.MatchedCount)
	assert.Len(t, f.payments.All(), 1)
}

func TestConfirmPayment_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing session id", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, err := f.svc.ConfirmPayment(ctx, "")
		assert.ErrorIs(t, err, apperrors.ErrMissingSession)
		assert.Empty(t, f.gateway.retrieved)
	})

	t.Run("gateway failure", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.retrieveErr = errors.New("No such checkout.session")
		_, err := f.svc.ConfirmPayment(ctx, "cs_missing")
		assert.ErrorIs(t, err, apperrors.ErrGateway)
	})

	t.Run("invalid parcel id in metadata", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.session = paidSession("not-an-object-id")
		_, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		assert.ErrorIs(t, err, apperrors.ErrInvalidParcelID)
		assert.Empty(t, f.payments.All())
	})

	t.Run("mark paid failure writes no payment", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.parcels.MarkPaidErr = errors.New("write concern")
		_, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		assert.ErrorIs(t, err, apperrors.ErrDatabaseQuery)
		assert.Empty(t, f.payments.All())
	})

	t.Run("payment insert failure leaves parcel paid", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.payments.CreateErr = errors.New("write concern")
		_, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		assert.ErrorIs(t, err, apperrors.ErrDatabaseQuery)

		parcel, _ := f.parcels.FindByID(ctx, f.parcel.ID)
		assert.True(t, parcel.State().IsPaid())
	})

	t.Run("publish failure is not fatal", func(t *testing.T) {
		f := newPaymentFixture(t, services.WithEvents(&mockPublisher{err: errors.New("throttled")}, "arn:topic"))
		res, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		require.NoError(t, err)
		assert.True(t, res.Success)
	})
}

func TestConfirmPayment_Lock(t *testing.T) {
	ctx := context.Background()

	t.Run("held lock is a conflict", func(t *testing.T) {
		f := newPaymentFixture(t, services.WithLock(&mockLock{held: true}))
		_, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		assert.ErrorIs(t, err, apperrors.ErrConfirmationInProgress)
		assert.Empty(t, f.gateway.retrieved)
	})

	t.Run("lock is released", func(t *testing.T) {
		lock := &mockLock{}
		f := newPaymentFixture(t, services.WithLock(lock))
		_, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		require.NoError(t, err)
		assert.Equal(t, 1, lock.released)
	})

	t.Run("lock backend failure proceeds", func(t *testing.T) {
		f := newPaymentFixture(t, services.WithLock(&mockLock{err: errors.New("connection refused")}))
		res, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("redis lock", func(t *testing.T) {
		_, client := newMiniRedisClient(t)
		f := newPaymentFixture(t, services.WithLock(services.NewRedisConfirmationLock(client, time.Minute)))
		res, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		require.NoError(t, err)
		assert.True(t, res.Success)

		keys, err := client.Keys(ctx, "payment-confirm:*").Result()
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("completed session confirms", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.event = &models.WebhookEvent{
			ID:      "evt_1",
			Type:    services.EventCheckoutSessionComplete,
			Session: paidSession(f.parcel.ID.Hex()),
		}

		res, err := f.svc.HandleWebhook(ctx, []byte(`{}`), "t=1,v1=abc")
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.True(t, res.Success)
		assert.Empty(t, f.gateway.retrieved, "webhook uses the embedded session")
		assert.Len(t, f.payments.All(), 1)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.event = &models.WebhookEvent{ID: "evt_2", Type: "payment_intent.created"}

		res, err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig")
		assert.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.webhookErr = errors.New("signature mismatch")

		_, err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig")
		assert.ErrorIs(t, err, apperrors.ErrInvalidWebhook)
	})

	t.Run("redirect after webhook is already confirmed", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.event = &models.WebhookEvent{
			Type:    services.EventCheckoutSessionComplete,
			Session: paidSession(f.parcel.ID.Hex()),
		}
		_, err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig")
		require.NoError(t, err)

		res, err := f.svc.ConfirmPayment(ctx, "cs_test_123")
		require.NoError(t, err)
		assert.True(t, res.AlreadyConfirmed)
		assert.Len(t, f.payments.All(), 1)
	})
}
