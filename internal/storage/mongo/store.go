package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersColl    = "users"
	hotelsColl   = "hotels"
	roomsColl    = "rooms"
	bookingsColl = "bookings"
	locksColl    = "room_locks"

	opTimeout = 5 * time.Second
)

// Store groups the three repositories over one database.
type Store struct {
	Users   *UserRepo
	Catalog *CatalogRepo
	Ledger  *LedgerRepo
}

// Connect dials and pings the cluster.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}
	now := func() time.Time { return time.Now().UTC() }
	return &Store{
		Users:   &UserRepo{coll: db.Collection(usersColl), now: now},
		Catalog: &CatalogRepo{rooms: db.Collection(roomsColl), hotels: db.Collection(hotelsColl)},
		Ledger: &LedgerRepo{
			bookings: db.Collection(bookingsColl),
			locks:    db.Collection(locksColl),
			now:      now,
			lockTTL:  30 * time.Second,
			retries:  20,
			backoff:  25 * time.Millisecond,
		},
	}, nil
}

// ensureIndexes creates indexes for fields frequently used in queries.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	plan := map[string][]mongo.IndexModel{
		hotelsColl: {
			{Keys: bson.D{{Key: "owner", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "city", Value: 1}}},
		},
		roomsColl: {
			{Keys: bson.D{{Key: "isAvailable", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "hotel", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		bookingsColl: {
			{Keys: bson.D{{Key: "room", Value: 1}, {Key: "checkInDate", Value: 1}, {Key: "checkOutDate", Value: 1}}},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "hotel", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "isPaid", Value: 1}, {Key: "checkoutSessionId", Value: 1}}},
		},
		locksColl: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for coll, models := range plan {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}
