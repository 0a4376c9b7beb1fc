package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/the-abed/zap-shift-server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const PaymentsCollection = "payments"

// PaymentRepository defines data-access operations for payment records.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) (*models.InsertResult, error)
	// FindByTransactionID returns nil, nil when no payment has the transaction id.
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
}

type MongoPaymentRepository struct {
	collection *mongo.Collection
}

func NewMongoPaymentRepository(db *mongo.Database) *MongoPaymentRepository {
	return &MongoPaymentRepository{collection: db.Collection(PaymentsCollection)}
}

func (r *MongoPaymentRepository) Create(ctx context.Context, payment *models.Payment) (*models.InsertResult, error) {
	if payment.ID.IsZero() {
		payment.ID = primitive.NewObjectID()
	}
	res, err := r.collection.InsertOne(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return insertResult(res, payment.ID), nil
}

func (r *MongoPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.collection.FindOne(ctx, bson.M{"transactionId": transactionID}).Decode(&payment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment %s: %w", transactionID, err)
	}
	return &payment, nil
}
