package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/the-abed/zap-shift-server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ParcelsCollection = "parcels"

// ParcelRepository defines data-access operations for parcels.
type ParcelRepository interface {
	// Find returns parcels newest first, filtered by sender when senderEmail is set.
	Find(ctx context.Context, senderEmail string) ([]models.Parcel, error)
	// FindByID returns nil, nil when no parcel has the id.
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Parcel, error)
	Create(ctx context.Context, parcel *models.Parcel) (*models.InsertResult, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.DeleteResult, error)
	// MarkPaid sets the paid status and tracking id in a single update.
	MarkPaid(ctx context.Context, id primitive.ObjectID, trackingID string) (*models.UpdateResult, error)
}

// MongoParcelRepository implements ParcelRepository on a Mongo collection.
type MongoParcelRepository struct {
	collection *mongo.Collection
}

func NewMongoParcelRepository(db *mongo.Database) *MongoParcelRepository {
	return &MongoParcelRepository{collection: db.Collection(ParcelsCollection)}
}

func (r *MongoParcelRepository) Find(ctx context.Context, senderEmail string) ([]models.Parcel, error) {
	filter := bson.M{}
	if senderEmail != "" {
		filter[models.FieldSenderEmail] = senderEmail
	}
	findOptions := options.Find().SetSort(bson.D{{Key: models.FieldCreatedAt, Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find parcels: %w", err)
	}
	defer cursor.Close(ctx)

	parcels := make([]models.Parcel, 0)
	if err := cursor.All(ctx, &parcels); err != nil {
		return nil, fmt.Errorf("decode parcels: %w", err)
	}
	return parcels, nil
}

func (r *MongoParcelRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Parcel, error) {
	var parcel models.Parcel
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&parcel)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find parcel %s: %w", id.Hex(), err)
	}
	return &parcel, nil
}

func (r *MongoParcelRepository) Create(ctx context.Context, parcel *models.Parcel) (*models.InsertResult, error) {
	if parcel.ID.IsZero() {
		parcel.ID = primitive.NewObjectID()
	}
	res, err := r.collection.InsertOne(ctx, parcel)
	if err != nil {
		return nil, fmt.Errorf("insert parcel: %w", err)
	}
	return insertResult(res, parcel.ID), nil
}

func (r *MongoParcelRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.DeleteResult, error) {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("delete parcel %s: %w", id.Hex(), err)
	}
	return &models.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func (r *MongoParcelRepository) MarkPaid(ctx context.Context, id primitive.ObjectID, trackingID string) (*models.UpdateResult, error) {
	state := models.Paid(trackingID)
	update := bson.M{"$set": bson.M{
		models.FieldPaymentStatus: state.Status(),
		models.FieldTrackingID:    trackingID,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return nil, fmt.Errorf("mark parcel %s paid: %w", id.Hex(), err)
	}
	return &models.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

func insertResult(res *mongo.InsertOneResult, fallback primitive.ObjectID) *models.InsertResult {
	id := fallback.Hex()
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		id = oid.Hex()
	}
	return &models.InsertResult{Acknowledged: true, InsertedID: id}
}
