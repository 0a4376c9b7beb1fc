package services

import (
	"context"
	"sync"
	"time"

	"github.com/the-abed/zap-shift-server/apperrors"
	"github.com/the-abed/zap-shift-server/models"
	"github.com/the-abed/zap-shift-server/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ParcelService defines parcel CRUD as exposed over HTTP.
type ParcelService interface {
	List(ctx context.Context, senderEmail string) ([]models.Parcel, error)
	// Get returns nil, nil for a well-formed id with no parcel.
	Get(ctx context.Context, id string) (*models.Parcel, error)
	Create(ctx context.Context, fields map[string]interface{}) (*models.InsertResult, error)
	Delete(ctx context.Context, id string) (*models.DeleteResult, error)
}

type parcelServiceImpl struct {
	repo   repository.ParcelRepository
	logger *zap.Logger

	now  func() time.Time
	mu   sync.Mutex
	last time.Time
}

func NewParcelService(repo repository.ParcelRepository, logger *zap.Logger) ParcelService {
	return &parcelServiceImpl{repo: repo, logger: logger, now: time.Now}
}

// ParseParcelID converts a hex id to an ObjectID or ErrInvalidParcelID.
func ParseParcelID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.Wrap(apperrors.ErrInvalidParcelID, err)
	}
	return oid, nil
}

func (s *parcelServiceImpl) List(ctx context.Context, senderEmail string) ([]models.Parcel, error) {
	parcels, err := s.repo.Find(ctx, senderEmail)
	if err != nil {
		s.logger.Error("Failed to list parcels", zap.String("sender_email", senderEmail), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return parcels, nil
}

func (s *parcelServiceImpl) Get(ctx context.Context, id string) (*models.Parcel, error) {
	oid, err := ParseParcelID(id)
	if err != nil {
		return nil, err
	}
	parcel, err := s.repo.FindByID(ctx, oid)
	if err != nil {
		s.logger.Error("Failed to fetch parcel", zap.String("parcel_id", id), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return parcel, nil
}

func (s *parcelServiceImpl) Create(ctx context.Context, fields map[string]interface{}) (*models.InsertResult, error) {
	parcel := models.NewParcel(fields, s.createdAt())

	res, err := s.repo.Create(ctx, parcel)
	if err != nil {
		s.logger.Error("Failed to create parcel", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	s.logger.Info("Parcel created",
		zap.String("parcel_id", res.InsertedID),
		zap.String("sender_email", parcel.SenderEmail),
	)
	return res, nil
}

func (s *parcelServiceImpl) Delete(ctx context.Context, id string) (*models.DeleteResult, error) {
	oid, err := ParseParcelID(id)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.Delete(ctx, oid)
	if err != nil {
		s.logger.Error("Failed to delete parcel", zap.String("parcel_id", id), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	if res.DeletedCount > 0 {
		s.logger.Info("Parcel deleted", zap.String("parcel_id", id))
	}
	return res, nil
}

// createdAt returns the current UTC time at the store's millisecond
// precision, never earlier than the previous value handed out.
func (s *parcelServiceImpl) createdAt() time.Time {
	t := s.now().UTC().Truncate(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}
