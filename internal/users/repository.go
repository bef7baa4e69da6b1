package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
)

// UpdateData is a partial update: nil fields are left untouched.
type UpdateData struct {
	Name         *string
	AvatarURL    *string
	ExternalID   *string
	PasswordHash *string
	Role         *models.Role
}

// Repository defines persistence operations for users. Lookup methods
// return (nil, nil) when no user matches; callers branch on presence.
type Repository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	Update(ctx context.Context, id string, data UpdateData) (*models.User, error)
	UpdateByEmail(ctx context.Context, email string, data UpdateData) (*models.User, error)
	List(ctx context.Context) ([]models.PublicUser, error)
}

// MongoRepository implements Repository using MongoDB. Email and
// externalId uniqueness are enforced by unique indexes; duplicate-key
// failures surface as apperr.Conflict.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a new repository for the given collection
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("user with email %s already exists", u.Email)
		}
		return apperr.Unavailable(err, "create user")
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"externalId": externalID})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperr.Unavailable(err, "find user")
	}
	return &u, nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, data UpdateData) (*models.User, error) {
	return r.update(ctx, bson.M{"_id": id}, data)
}

func (r *MongoRepository) UpdateByEmail(ctx context.Context, email string, data UpdateData) (*models.User, error) {
	return r.update(ctx, bson.M{"email": email}, data)
}

func (r *MongoRepository) update(ctx context.Context, filter bson.M, data UpdateData) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if data.Name != nil {
		set["name"] = *data.Name
	}
	if data.AvatarURL != nil {
		set["avatarUrl"] = *data.AvatarURL
	}
	if data.ExternalID != nil {
		set["externalId"] = *data.ExternalID
	}
	if data.PasswordHash != nil {
		set["passwordHash"] = *data.PasswordHash
	}
	if data.Role != nil {
		set["role"] = *data.Role
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("external identity already linked to another user")
		}
		return nil, apperr.Unavailable(err, "update user")
	}
	return &updated, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]models.PublicUser, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"passwordHash": 0})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Unavailable(err, "list users")
	}
	defer cur.Close(ctx)

	var out []models.PublicUser
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Unavailable(err, "decode users")
	}
	return out, nil
}
