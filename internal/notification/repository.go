package notification

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"MemberPortal/internal/apperrors"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection("notifications")}
}

// ReplaceForCommunication discards every entry for the communication and
// inserts the fresh set, mirroring the recipient-ledger replacement so
// repeated fan-outs stay duplicate-free.
func (r *NotificationRepository) ReplaceForCommunication(ctx context.Context, commID primitive.ObjectID, entries []Notification) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"communication_id": commID}); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, len(entries))
	for i := range entries {
		docs[i] = entries[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *NotificationRepository) DeleteForCommunication(ctx context.Context, commID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"communication_id": commID})
	return err
}

func (r *NotificationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*Notification, error) {
	var n Notification
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("notification")
		}
		return nil, err
	}
	return &n, nil
}

// ListActiveByUser returns a user's non-expired entries, newest first.
// Expiry filtering happens here so entries past their deadline are invisible
// even before the TTL monitor deletes them.
func (r *NotificationRepository) ListActiveByUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]Notification, error) {
	filter := bson.M{"user_id": userID, "expires_at": bson.M{"$gt": time.Now()}}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var notifications []Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"read": true, "read_at": now},
	})
	return err
}

func (r *NotificationRepository) MarkDisplayed(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"displayed": true, "displayed_at": now},
	})
	return err
}

// MarkAllRead flips every unread, non-expired entry for the user in one pass
// and reports how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	now := time.Now()
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false, "expires_at": bson.M{"$gt": now}},
		bson.M{"$set": bson.M{"read": true, "read_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("notification")
	}
	return nil
}

// DeleteExpired physically removes entries past their expiry. Backstop for
// the storage-layer TTL index.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
