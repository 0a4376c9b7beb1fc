package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment is recorded once per confirmed checkout session.
type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Amount        int64              `bson:"amount" json:"amount"` // minor units
	TransactionID string             `bson:"transactionId" json:"transactionId"`
	ParcelID      string             `bson:"parcelId" json:"parcelId"`
	ParcelName    string             `bson:"parcelName" json:"parcelName"`
	SenderEmail   string             `bson:"senderEmail" json:"senderEmail"`
	Currency      string             `bson:"currency" json:"currency"`
	PaymentStatus string             `bson:"paymentStatus" json:"paymentStatus"`
	PaidAt        time.Time          `bson:"paidAt" json:"paidAt"`
}

// ParcelPaidEvent is published after a parcel's payment is confirmed.
type ParcelPaidEvent struct {
	Type          string    `json:"type"` // "parcel_paid"
	ParcelID      string    `json:"parcel_id"`
	TrackingID    string    `json:"tracking_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	SenderEmail   string    `json:"sender_email"`
	Timestamp     time.Time `json:"timestamp"`
}
