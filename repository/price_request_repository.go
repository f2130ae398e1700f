package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Vaibhavdev309/tapestry/database"
	"github.com/Vaibhavdev309/tapestry/models"
)

type PriceRequestRepository interface {
	Create(ctx context.Context, pr *models.PriceRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.PriceRequest, error)
	FindLatestByUser(ctx context.Context, userID primitive.ObjectID, statuses ...models.PriceRequestStatus) (*models.PriceRequest, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PriceRequest, error)
	List(ctx context.Context, status models.PriceRequestStatus, page, limit int) ([]models.PriceRequest, int64, error)
	// Transition writes pr only if the stored status still equals from.
	Transition(ctx context.Context, pr *models.PriceRequest, from models.PriceRequestStatus) error
	// Claim links an approved request that no order holds yet to orderID.
	Claim(ctx context.Context, id, orderID primitive.ObjectID) error
	// ReleaseClaim unlinks an approved request still held by orderID.
	ReleaseClaim(ctx context.Context, id, orderID primitive.ObjectID) error
	// Complete moves an approved request held by orderID to completed.
	Complete(ctx context.Context, id, orderID primitive.ObjectID) error
}

type MongoPriceRequestRepository struct {
	collection *mongo.Collection
}

func NewMongoPriceRequestRepository(db *mongo.Database) *MongoPriceRequestRepository {
	return &MongoPriceRequestRepository{collection: db.Collection(database.PriceRequestsCollection)}
}

func (r *MongoPriceRequestRepository) Create(ctx context.Context, pr *models.PriceRequest) error {
	if pr.ID.IsZero() {
		pr.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, pr); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert price request: %w", err)
	}
	return nil
}

func (r *MongoPriceRequestRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.PriceRequest, error) {
	var pr models.PriceRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&pr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find price request: %w", err)
	}
	return &pr, nil
}

func (r *MongoPriceRequestRepository) FindLatestByUser(ctx context.Context, userID primitive.ObjectID, statuses ...models.PriceRequestStatus) (*models.PriceRequest, error) {
	filter := bson.M{"userId": userID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var pr models.PriceRequest
	err := r.collection.FindOne(ctx, filter, opts).Decode(&pr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest price request: %w", err)
	}
	return &pr, nil
}

func (r *MongoPriceRequestRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PriceRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(50)
	return r.find(ctx, bson.M{"userId": userID}, opts)
}

func (r *MongoPriceRequestRepository) List(ctx context.Context, status models.PriceRequestStatus, page, limit int) ([]models.PriceRequest, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count price requests: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	requests, err := r.find(ctx, filter, opts)
	return requests, total, err
}

func (r *MongoPriceRequestRepository) Transition(ctx context.Context, pr *models.PriceRequest, from models.PriceRequestStatus) error {
	pr.UpdatedAt = time.Now().UTC()
	filter := bson.M{"_id": pr.ID, "status": from}
	update := bson.M{"$set": bson.M{
		"items":           pr.Items,
		"status":          pr.Status,
		"totalAmount":     pr.TotalAmount,
		"adminNote":       pr.AdminNote,
		"rejectionReason": pr.RejectionReason,
		"orderId":         pr.OrderID,
		"approvedAt":      pr.ApprovedAt,
		"updatedAt":       pr.UpdatedAt,
	}}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update price request %s: %w", pr.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *MongoPriceRequestRepository) Claim(ctx context.Context, id, orderID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "status": models.PriceRequestApproved, "orderId": nil}
	return r.updateIf(ctx, id, filter, bson.M{"orderId": orderID})
}

func (r *MongoPriceRequestRepository) ReleaseClaim(ctx context.Context, id, orderID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "status": models.PriceRequestApproved, "orderId": orderID}
	return r.updateIf(ctx, id, filter, bson.M{"orderId": nil})
}

func (r *MongoPriceRequestRepository) Complete(ctx context.Context, id, orderID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "status": models.PriceRequestApproved, "orderId": orderID}
	return r.updateIf(ctx, id, filter, bson.M{"status": models.PriceRequestCompleted})
}

// updateIf applies set when filter matches and reports ErrVersionConflict
// otherwise.
func (r *MongoPriceRequestRepository) updateIf(ctx context.Context, id primitive.ObjectID, filter, set bson.M) error {
	set["updatedAt"] = time.Now().UTC()
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update price request %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *MongoPriceRequestRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.PriceRequest, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find price requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []models.PriceRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("decode price requests: %w", err)
	}
	return requests, nil
}
