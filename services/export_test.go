package services

import (
	"time"

	"github.com/the-abed/zap-shift-server/repository"
	"go.uber.org/zap"
)

func NewParcelServiceWithClock(repo repository.ParcelRepository, logger *zap.Logger, now func() time.Time) ParcelService {
	return &parcelServiceImpl{repo: repo, logger: logger, now: now}
}

func WithClock(now func() time.Time) PaymentOption {
	return func(s *paymentServiceImpl) { s.now = now }
}

func WithTrackingIDs(next func() string) PaymentOption {
	return func(s *paymentServiceImpl) { s.newTrackingID = next }
}
