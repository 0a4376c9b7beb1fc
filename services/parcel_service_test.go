package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-abed/zap-shift-server/apperrors"
	"github.com/the-abed/zap-shift-server/models"
	"github.com/the-abed/zap-shift-server/repository/repositorytest"
	"github.com/the-abed/zap-shift-server/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestParcelService_CreateStampsServerFields(t *testing.T) {
	repo := repositorytest.NewParcelRepository()
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	svc := services.NewParcelServiceWithClock(repo, zap.NewNop(), func() time.Time { return fixed })

	res, err := svc.Create(context.Background(), map[string]interface{}{
		"senderEmail":   "a@b.com",
		"parcelName":    "Box",
		"cost":          "25",
		"createdAt":     "1999-01-01",
		"paymentStatus": "paid",
		"trackingId":    "TRK-FAKE",
	})
	require.NoError(t, err)
	assert.True(t, res.Acknowledged)

	parcel, err := svc.Get(context.Background(), res.InsertedID)
	require.NoError(t, err)
	require.NotNil(t, parcel)
	assert.Equal(t, fixed.Truncate(time.Millisecond), parcel.CreatedAt)
	assert.Equal(t, models.PaymentStatusUnpaid, parcel.PaymentStatus)
	assert.Empty(t, parcel.TrackingID)
	assert.Equal(t, "25", parcel.Cost)
}

func TestParcelService_CreatedAtIsMonotonic(t *testing.T) {
	repo := repositorytest.NewParcelRepository()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// the wall clock steps backwards between the second and third call
	ticks := []time.Time{base, base.Add(time.Second), base.Add(-time.Minute), base.Add(2 * time.Second)}
	i := 0
	svc := services.NewParcelServiceWithClock(repo, zap.NewNop(), func() time.Time {
		now := ticks[i]
		i++
		return now
	})

	var prev time.Time
	for range ticks {
		res, err := svc.Create(context.Background(), map[string]interface{}{"parcelName": "Box"})
		require.NoError(t, err)
		parcel, err := svc.Get(context.Background(), res.InsertedID)
		require.NoError(t, err)
		assert.False(t, parcel.CreatedAt.Before(prev), "createdAt went backwards")
		prev = parcel.CreatedAt
	}
}

func TestParcelService_ListFiltersAndOrders(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := repositorytest.NewParcelRepository(
		&models.Parcel{SenderEmail: "a@b.com", ParcelName: "old", CreatedAt: base},
		&models.Parcel{SenderEmail: "c@d.com", ParcelName: "other", CreatedAt: base.Add(time.Hour)},
		&models.Parcel{SenderEmail: "a@b.com", ParcelName: "new", CreatedAt: base.Add(2 * time.Hour)},
	)
	svc := services.NewParcelService(repo, zap.NewNop())

	mine, err := svc.List(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "new", mine[0].ParcelName)
	assert.Equal(t, "old", mine[1].ParcelName)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "other", all[1].ParcelName)

	none, err := svc.List(context.Background(), "A@B.COM")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParcelService_GetAndDelete(t *testing.T) {
	existing := &models.Parcel{ID: primitive.NewObjectID(), SenderEmail: "a@b.com"}
	repo := repositorytest.NewParcelRepository(existing)
	svc := services.NewParcelService(repo, zap.NewNop())
	ctx := context.Background()

	t.Run("malformed id is a bad request", func(t *testing.T) {
		_, err := svc.Get(ctx, "not-an-id")
		assert.ErrorIs(t, err, apperrors.ErrInvalidParcelID)

		_, err = svc.Delete(ctx, "123")
		assert.ErrorIs(t, err, apperrors.ErrInvalidParcelID)
	})

	t.Run("absent parcel is nil", func(t *testing.T) {
		parcel, err := svc.Get(ctx, primitive.NewObjectID().Hex())
		assert.NoError(t, err)
		assert.Nil(t, parcel)
	})

	t.Run("delete nonexistent is zero count", func(t *testing.T) {
		res, err := svc.Delete(ctx, primitive.NewObjectID().Hex())
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.DeletedCount)
	})

	t.Run("delete existing", func(t *testing.T) {
		res, err := svc.Delete(ctx, existing.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.DeletedCount)
		assert.Equal(t, 0, repo.Len())
	})
}

func TestParcelService_StoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	repo := repositorytest.NewParcelRepository()
	repo.FindErr, repo.FindByIDErr, repo.CreateErr, repo.DeleteErr = boom, boom, boom, boom
	svc := services.NewParcelService(repo, zap.NewNop())
	ctx := context.Background()
	id := primitive.NewObjectID().Hex()

	_, err := svc.List(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrDatabaseQuery)
	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseQuery)
	_, err = svc.Create(ctx, map[string]interface{}{})
	assert.ErrorIs(t, err, apperrors.ErrDatabaseQuery)
	_, err = svc.Delete(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseQuery)
	assert.ErrorIs(t, err, boom)
}
