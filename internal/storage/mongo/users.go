package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hotel_booking/internal/domain"
)

type UserRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Get(ctx context.Context, id string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var u domain.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}
	if u.RecentSearchedCities == nil {
		u.RecentSearchedCities = []string{}
	}
	return u, nil
}

// Upsert syncs the profile fields; role and search history are only written on insert.
func (r *UserRepo) Upsert(ctx context.Context, u domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := r.now()
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	cities := u.RecentSearchedCities
	if cities == nil {
		cities = []string{}
	}
	update := bson.M{
		"$set":         bson.M{"username": u.Username, "email": u.Email, "image": u.Image, "updatedAt": now},
		"$setOnInsert": bson.M{"role": role, "recentSearchedCities": cities, "createdAt": created},
	}
	if _, err := r.coll.UpdateByID(ctx, u.ID, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetRole(ctx context.Context, id string, role domain.Role) error {
	return r.set(ctx, id, bson.M{"role": role})
}

func (r *UserRepo) SetRecentCities(ctx context.Context, id string, cities []string) error {
	return r.set(ctx, id, bson.M{"recentSearchedCities": cities})
}

func (r *UserRepo) set(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields["updatedAt"] = r.now()
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
