package models

// InsertResult mirrors the acknowledgement returned for a single insert.
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// UpdateResult mirrors the acknowledgement returned for a single update.
type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult mirrors the acknowledgement returned for a single delete.
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// ConfirmationResult is the outcome of confirming one checkout session.
type ConfirmationResult struct {
	Success          bool
	AlreadyConfirmed bool
	PaymentStatus    string
	ModifyParcel     *UpdateResult
	TrackingID       string
	TransactionID    string
	PaymentInfo      *InsertResult
}
