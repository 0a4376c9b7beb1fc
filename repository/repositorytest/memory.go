// Package repositorytest provides in-memory repositories for tests.
package repositorytest

import (
	"context"
	"sort"
	"sync"

	"github.com/the-abed/zap-shift-server/models"
	"github.com/the-abed/zap-shift-server/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ repository.ParcelRepository  = (*ParcelRepository)(nil)
	_ repository.PaymentRepository = (*PaymentRepository)(nil)
)

// ParcelRepository is an in-memory repository.ParcelRepository. Setting an
// Err field makes the matching method fail.
type ParcelRepository struct {
	mu      sync.Mutex
	parcels map[primitive.ObjectID]models.Parcel

	FindErr     error
	FindByIDErr error
	CreateErr   error
	DeleteErr   error
	MarkPaidErr error

	MarkPaidCalls int
}

func NewParcelRepository(parcels ...*models.Parcel) *ParcelRepository {
	r := &ParcelRepository{parcels: make(map[primitive.ObjectID]models.Parcel)}
	for _, p := range parcels {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		r.parcels[p.ID] = *p
	}
	return r
}

func (r *ParcelRepository) Find(_ context.Context, senderEmail string) ([]models.Parcel, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Parcel, 0, len(r.parcels))
	for _, p := range r.parcels {
		if senderEmail == "" || p.SenderEmail == senderEmail {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ParcelRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Parcel, error) {
	if r.FindByIDErr != nil {
		return nil, r.FindByIDErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parcels[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ParcelRepository) Create(_ context.Context, parcel *models.Parcel) (*models.InsertResult, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if parcel.ID.IsZero() {
		parcel.ID = primitive.NewObjectID()
	}
	r.parcels[parcel.ID] = *parcel
	return &models.InsertResult{Acknowledged: true, InsertedID: parcel.ID.Hex()}, nil
}

func (r *ParcelRepository) Delete(_ context.Context, id primitive.ObjectID) (*models.DeleteResult, error) {
	if r.DeleteErr != nil {
		return nil, r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res := &models.DeleteResult{Acknowledged: true}
	if _, ok := r.parcels[id]; ok {
		delete(r.parcels, id)
		res.DeletedCount = 1
	}
	return res, nil
}

func (r *ParcelRepository) MarkPaid(_ context.Context, id primitive.ObjectID, trackingID string) (*models.UpdateResult, error) {
	if r.MarkPaidErr != nil {
		return nil, r.MarkPaidErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.MarkPaidCalls++
	res := &models.UpdateResult{Acknowledged: true}
	p, ok := r.parcels[id]
	if !ok {
		return res, nil
	}
	res.MatchedCount = 1
	if p.PaymentStatus != models.PaymentStatusPaid || p.TrackingID != trackingID {
		res.ModifiedCount = 1
	}
	p.PaymentStatus = models.PaymentStatusPaid
	p.TrackingID = trackingID
	r.parcels[id] = p
	return res, nil
}

// Len reports the number of stored parcels.
func (r *ParcelRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.parcels)
}

// PaymentRepository is an in-memory repository.PaymentRepository.
type PaymentRepository struct {
	mu       sync.Mutex
	payments []models.Payment

	CreateErr error
	FindErr   error
}

func NewPaymentRepository(payments ...models.Payment) *PaymentRepository {
	return &PaymentRepository{payments: payments}
}

func (r *PaymentRepository) Create(_ context.Context, payment *models.Payment) (*models.InsertResult, error) {
	if r.CreateErr != nil {
		return nil, r.CreateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	r.payments = append(r.payments, *payment)
	return &models.InsertResult{Acknowledged: true, InsertedID: payment.ID.Hex()}, nil
}

func (r *PaymentRepository) FindByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.payments {
		if r.payments[i].TransactionID == transactionID {
			p := r.payments[i]
			return &p, nil
		}
	}
	return nil, nil
}

// All returns a copy of the stored payments.
func (r *PaymentRepository) All() []models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Payment(nil), r.payments...)
}
