package communication

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"MemberPortal/internal/apperrors"
)

type CommunicationRepository struct {
	collection *mongo.Collection
}

func NewCommunicationRepository(db *mongo.Database) *CommunicationRepository {
	return &CommunicationRepository{collection: db.Collection("communications")}
}

func (r *CommunicationRepository) Insert(ctx context.Context, c *Communication) error {
	_, err := r.collection.InsertOne(ctx, c)
	return err
}

func (r *CommunicationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*Communication, error) {
	var c Communication
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.NotFound("communication")
		}
		return nil, err
	}
	return &c, nil
}

// UpdateDraft persists field changes and fails with InvalidState when the
// record is no longer a draft. The status filter makes the check atomic with
// the write.
func (r *CommunicationRepository) UpdateDraft(ctx context.Context, c *Communication) error {
	c.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": c.ID, "status": StatusDraft},
		bson.M{"$set": bson.M{
			"subject":        c.Subject,
			"body":           c.Body,
			"recipient_type": c.Audience,
			"recipient_ids":  c.RecipientIDs,
			"priority":       c.Priority,
			"attachment_url": c.AttachmentURL,
			"updated_at":     c.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.InvalidState("only draft communications can be updated")
	}
	return nil
}

// TransitionStatus atomically moves a communication from one of the allowed
// statuses. MatchedCount zero means the record was absent or in a disallowed
// status; the caller distinguishes via a prior FindByID.
func (r *CommunicationRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, allowed []Status, set bson.M) error {
	set["updated_at"] = time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": allowed}},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.InvalidState("communication is not in a dispatchable status")
	}
	return nil
}

func (r *CommunicationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("communication")
	}
	return nil
}

// ListBySender returns a sender's own communications, newest first.
func (r *CommunicationRepository) ListBySender(ctx context.Context, senderID primitive.ObjectID) ([]Communication, error) {
	return r.find(ctx, bson.M{"sender_id": senderID})
}

// ListAll returns every communication, newest first. Elevated-role view.
func (r *CommunicationRepository) ListAll(ctx context.Context) ([]Communication, error) {
	return r.find(ctx, bson.M{})
}

// ListDueScheduled returns SCHEDULED communications whose scheduled_for has
// passed. The dispatch sweep feeds these back through fan-out. Communications
// flagged with a dispatch_error are excluded until an operator repairs them.
func (r *CommunicationRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]Communication, error) {
	return r.find(ctx, bson.M{
		"status":         StatusScheduled,
		"scheduled_for":  bson.M{"$lte": now},
		"dispatch_error": bson.M{"$exists": false},
	})
}

func (r *CommunicationRepository) find(ctx context.Context, filter bson.M) ([]Communication, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var comms []Communication
	if err := cursor.All(ctx, &comms); err != nil {
		return nil, err
	}
	return comms, nil
}

type RecipientRepository struct {
	collection *mongo.Collection
}

func NewRecipientRepository(db *mongo.Database) *RecipientRepository {
	return &RecipientRepository{collection: db.Collection("communication_recipients")}
}

// ReplaceForCommunication discards every ledger row for the communication and
// bulk-inserts the fresh set. Delete-then-insert is the idempotency mechanism:
// re-running fan-out never duplicates rows and drops now-unauthorized
// recipients.
func (r *RecipientRepository) ReplaceForCommunication(ctx context.Context, commID primitive.ObjectID, entries []Recipient) error {
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

func (r *RecipientRepository) DeleteForCommunication(ctx context.Context, commID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"communication_id": commID})
	return err
}

func (r *RecipientRepository) ListByCommunication(ctx context.Context, commID primitive.ObjectID) ([]Recipient, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"communication_id": commID})
	if err != nil {
		return nil, err
	}
	var recipients []Recipient
	if err := cursor.All(ctx, &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

// MarkRead flips a single recipient row to read. Idempotent: a second call
// matches nothing and is a no-op success.
func (r *RecipientRepository) MarkRead(ctx context.Context, commID, userID primitive.ObjectID) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"communication_id": commID, "user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": now}},
	)
	return err
}

func (r *RecipientRepository) CountByCommunication(ctx context.Context, commID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"communication_id": commID})
}

func (r *RecipientRepository) CountReadByCommunication(ctx context.Context, commID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"communication_id": commID, "read": true})
}
