package passkeys

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
)

// Repository defines persistence operations for passkey credentials.
// Lookup methods return (nil, nil) when no record matches.
type Repository interface {
	Create(ctx context.Context, p *Passkey) error
	GetByID(ctx context.Context, id string) (*Passkey, error)
	GetByCredentialID(ctx context.Context, credentialID string) (*Passkey, error)
	ListByUser(ctx context.Context, userID string) ([]Passkey, error)
	UpdateUsage(ctx context.Context, id string, counter int64, lastUsedAt time.Time) (*Passkey, error)
	Delete(ctx context.Context, id string) error
}

// MongoRepository implements Repository using MongoDB. Global
// credentialId uniqueness is the collection's unique index; a race
// between two enrollments resolves to one insert and one conflict.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, p *Passkey) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("passkey with credential id %s already exists", p.CredentialID)
		}
		return apperr.Unavailable(err, "create passkey")
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Passkey, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetByCredentialID(ctx context.Context, credentialID string) (*Passkey, error) {
	return r.findOne(ctx, bson.M{"credentialId": credentialID})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Passkey, error) {
	var p Passkey
	if err := r.col.FindOne(ctx, filter).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperr.Unavailable(err, "find passkey")
	}
	return &p, nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]Passkey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, apperr.Unavailable(err, "list passkeys")
	}
	defer cur.Close(ctx)

	var out []Passkey
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Unavailable(err, "decode passkeys")
	}
	return out, nil
}

func (r *MongoRepository) UpdateUsage(ctx context.Context, id string, counter int64, lastUsedAt time.Time) (*Passkey, error) {
	update := bson.M{"$set": bson.M{"counter": counter, "lastUsedAt": lastUsedAt}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Passkey
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperr.Unavailable(err, "update passkey usage")
	}
	return &updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperr.Unavailable(err, "delete passkey")
	}
	return nil
}
