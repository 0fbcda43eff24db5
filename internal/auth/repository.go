package auth

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository is the user directory. The audience resolver reads it through
// the FindActive* queries; nothing in this package writes the ledgers.
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection("users")}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *User) error {
	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("email already registered")
		}
		return err
	}
	return nil
}

// FindActive returns every active user.
func (r *UserRepository) FindActive(ctx context.Context) ([]User, error) {
	return r.findUsers(ctx, bson.M{"active": true})
}

// FindActiveByRoles returns active users whose role is in roles.
func (r *UserRepository) FindActiveByRoles(ctx context.Context, roles []Role) ([]User, error) {
	return r.findUsers(ctx, bson.M{"active": true, "role": bson.M{"$in": roles}})
}

// FindActiveByIDs returns active users whose id is in ids. Inactive or unknown
// ids are simply absent from the result; the caller decides whether that is an
// error.
func (r *UserRepository) FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]User, error) {
	return r.findUsers(ctx, bson.M{"active": true, "_id": bson.M{"$in": ids}})
}

// FindByIDs returns users by id regardless of active flag, for joining user
// details onto ledger rows that may reference since-deactivated accounts.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]User, error) {
	return r.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *UserRepository) findUsers(ctx context.Context, filter bson.M) ([]User, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
