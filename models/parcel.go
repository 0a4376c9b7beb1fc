package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentStatus is the stored payment status of a parcel.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// PaymentState is the payment lifecycle of a parcel: either unpaid, or paid
// with a tracking ID. The zero value is unpaid.
type PaymentState struct {
	paid       bool
	trackingID string
}

// Unpaid returns the initial payment state.
func Unpaid() PaymentState { return PaymentState{} }

// Paid returns the confirmed payment state carrying trackingID.
func Paid(trackingID string) PaymentState {
	return PaymentState{paid: true, trackingID: trackingID}
}

func (s PaymentState) IsPaid() bool { return s.paid }

func (s PaymentState) Status() PaymentStatus {
	if s.paid {
		return PaymentStatusPaid
	}
	return PaymentStatusUnpaid
}

// TrackingID returns the tracking ID and true only for a paid parcel.
func (s PaymentState) TrackingID() (string, bool) {
	return s.trackingID, s.paid
}

// Parcel fields owned by the server. Clients cannot set these on create.
const (
	FieldID            = "_id"
	FieldSenderEmail   = "senderEmail"
	FieldParcelName    = "parcelName"
	FieldCost          = "cost"
	FieldCreatedAt     = "createdAt"
	FieldPaymentStatus = "paymentStatus"
	FieldTrackingID    = "trackingId"
)

// Parcel is a delivery booking stored in the parcels collection. Any
// client-supplied field without a typed counterpart is kept in Fields.
type Parcel struct {
	ID            primitive.ObjectID     `bson:"_id,omitempty"`
	SenderEmail   string                 `bson:"senderEmail,omitempty"`
	ParcelName    string                 `bson:"parcelName,omitempty"`
	Cost          interface{}            `bson:"cost,omitempty"`
	CreatedAt     time.Time              `bson:"createdAt"`
	PaymentStatus PaymentStatus          `bson:"paymentStatus,omitempty"`
	TrackingID    string                 `bson:"trackingId,omitempty"`
	Fields        map[string]interface{} `bson:",inline"`
}

// NewParcel builds a parcel from an arbitrary client payload. Server-owned
// keys in fields are discarded; createdAt is the supplied server time.
func NewParcel(fields map[string]interface{}, createdAt time.Time) *Parcel {
	p := &Parcel{
		CreatedAt:     createdAt,
		PaymentStatus: PaymentStatusUnpaid,
		Fields:        make(map[string]interface{}, len(fields)),
	}
	for k, v := range fields {
		switch k {
		case FieldID, FieldCreatedAt, FieldPaymentStatus, FieldTrackingID:
			continue
		case FieldSenderEmail:
			p.SenderEmail = stringValue(v)
			continue
		case FieldParcelName:
			p.ParcelName = stringValue(v)
			continue
		case FieldCost:
			p.Cost = v
			continue
		}
		p.Fields[k] = v
	}
	return p
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// State reports the parcel's payment state. A record claiming paid without
// a tracking ID is treated as unpaid.
func (p *Parcel) State() PaymentState {
	if p.PaymentStatus == PaymentStatusPaid && p.TrackingID != "" {
		return Paid(p.TrackingID)
	}
	return Unpaid()
}

// MarshalJSON flattens typed and free-form fields into one object, matching
// the document shape stored in Mongo.
func (p Parcel) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Fields)+7)
	for k, v := range p.Fields {
		out[k] = v
	}
	if !p.ID.IsZero() {
		out[FieldID] = p.ID.Hex()
	}
	if p.SenderEmail != "" {
		out[FieldSenderEmail] = p.SenderEmail
	}
	if p.ParcelName != "" {
		out[FieldParcelName] = p.ParcelName
	}
	if p.Cost != nil {
		out[FieldCost] = p.Cost
	}
	out[FieldCreatedAt] = p.CreatedAt.UTC()

	state := p.State()
	out[FieldPaymentStatus] = state.Status()
	if tid, ok := state.TrackingID(); ok {
		out[FieldTrackingID] = tid
	}
	return json.Marshal(out)
}
