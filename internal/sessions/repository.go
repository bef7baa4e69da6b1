package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
)

// Repository provides session persistence operations. Lookups return
// (nil, nil) on absence; deletes treat absence as success.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	GetByID(ctx context.Context, id string) (*Session, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	// UpdateActivity writes lastActivity and, when expiresAt is
	// non-nil, the renewed expiry. No other field is touched, so
	// concurrent renewals can only race on those two monotonically
	// increasing values.
	UpdateActivity(ctx context.Context, id string, lastActivity time.Time, expiresAt *time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MongoRepository implements Repository using a Mongo collection. The
// unique token index enforces store-level token uniqueness.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastActivity.IsZero() {
		s.LastActivity = now
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = now.Add(SessionTTL)
	}
	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("session token already exists")
		}
		return apperr.Unavailable(err, "create session")
	}
	return nil
}

func (r *MongoRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*Session, error) {
	var s Session
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperr.Unavailable(err, "find session")
	}
	return &s, nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastActivity", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, apperr.Unavailable(err, "list sessions")
	}
	defer cur.Close(ctx)

	var out []Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Unavailable(err, "decode sessions")
	}
	return out, nil
}

func (r *MongoRepository) UpdateActivity(ctx context.Context, id string, lastActivity time.Time, expiresAt *time.Time) error {
	set := bson.M{"lastActivity": lastActivity}
	if expiresAt != nil {
		set["expiresAt"] = *expiresAt
	}
	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		return apperr.Unavailable(err, "update session activity")
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return apperr.Unavailable(err, "delete session")
	}
	return nil
}

func (r *MongoRepository) DeleteByToken(ctx context.Context, token string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"token": token}); err != nil {
		return apperr.Unavailable(err, "delete session by token")
	}
	return nil
}

func (r *MongoRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, apperr.Unavailable(err, "delete sessions by user")
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now}})
	if err != nil {
		return 0, apperr.Unavailable(err, "delete expired sessions")
	}
	return res.DeletedCount, nil
}
