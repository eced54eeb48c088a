package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hotel_booking/internal/domain"
)

type LedgerRepo struct {
	bookings *mongo.Collection
	locks    *mongo.Collection
	now      func() time.Time

	lockTTL time.Duration
	retries int
	backoff time.Duration
}

var _ domain.BookingRepository = (*LedgerRepo)(nil)

// roomLock is an advisory lock held while a reservation re-checks and inserts.
// The TTL index on expiresAt reclaims locks whose holder died.
type roomLock struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

// overlapFilter is the endpoint-inclusive interval test against stored bookings.
func overlapFilter(roomID string, checkIn, checkOut time.Time) bson.M {
	return bson.M{
		"room":         roomID,
		"checkInDate":  bson.M{"$lte": checkOut},
		"checkOutDate": bson.M{"$gte": checkIn},
	}
}

func (r *LedgerRepo) FindOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.bookings.Find(ctx, overlapFilter(roomID, checkIn, checkOut))
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return out, nil
}

// lockRoom takes the room's advisory lock, waiting briefly for a concurrent holder.
func (r *LedgerRepo) lockRoom(ctx context.Context, roomID string) (func(), error) {
	token := uuid.NewString()
	for attempt := 0; attempt < r.retries; attempt++ {
		now := r.now()
		_, err := r.locks.InsertOne(ctx, roomLock{ID: roomID, Token: token, ExpiresAt: now.Add(r.lockTTL), CreatedAt: now})
		if err == nil {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
				defer cancel()
				_, _ = r.locks.DeleteOne(ctx, bson.M{"_id": roomID, "token": token})
			}, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to lock room %s: %w", roomID, err)
		}
		// the TTL monitor only runs once a minute; clear an expired lock ourselves
		_, _ = r.locks.DeleteOne(ctx, bson.M{"_id": roomID, "expiresAt": bson.M{"$lt": now}})

		t := time.NewTimer(r.backoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("room %s busy: %w", roomID, domain.ErrLookupFailed)
}

// Reserve re-checks availability and inserts while holding the room lock.
func (r *LedgerRepo) Reserve(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*opTimeout)
	defer cancel()

	release, err := r.lockRoom(ctx, b.RoomID)
	if err != nil {
		return domain.Booking{}, err
	}
	defer release()

	n, err := r.bookings.CountDocuments(ctx, overlapFilter(b.RoomID, b.CheckInDate, b.CheckOutDate))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("failed to count bookings: %w", err)
	}
	if n > 0 {
		return domain.Booking{}, domain.ErrUnavailable
	}
	if _, err := r.bookings.InsertOne(ctx, b); err != nil {
		return domain.Booking{}, fmt.Errorf("failed to insert booking: %w", err)
	}
	return b, nil
}

func (r *LedgerRepo) Get(ctx context.Context, id string) (domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var b domain.Booking
	if err := r.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return b, nil
}

func (r *LedgerRepo) views(ctx context.Context, match bson.M) ([]domain.BookingView, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{"from": roomsColl, "localField": "room", "foreignField": "_id", "as": "roomData"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$roomData", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{"from": hotelsColl, "localField": "hotel", "foreignField": "_id", "as": "hotelData"}}},
		{{Key: "$unwind", Value: bson.M{"path": "$hotelData", "preserveNullAndEmptyArrays": true}}},
	}
	cur, err := r.bookings.Aggregate(ctx, pipe)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.BookingView{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return out, nil
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID string) ([]domain.BookingView, error) {
	return r.views(ctx, bson.M{"user": userID})
}

func (r *LedgerRepo) ListByHotel(ctx context.Context, hotelID string) ([]domain.BookingView, error) {
	return r.views(ctx, bson.M{"hotel": hotelID})
}

func (r *LedgerRepo) ListUnpaid(ctx context.Context, limit int) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"isPaid": false, "checkoutSessionId": bson.M{"$exists": true, "$ne": ""}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	cur, err := r.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpaid bookings: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return out, nil
}

func (r *LedgerRepo) UpdateByID(ctx context.Context, id string, u domain.BookingUpdate) (domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	set := bson.M{"updatedAt": r.now()}
	if u.IsPaid != nil {
		set["isPaid"] = *u.IsPaid
	}
	if u.PaymentMethod != nil {
		set["paymentMethod"] = *u.PaymentMethod
	}
	if u.CheckoutSessionID != nil {
		set["checkoutSessionId"] = *u.CheckoutSessionID
	}

	var b domain.Booking
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := r.bookings.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, fmt.Errorf("failed to update booking %s: %w", id, err)
	}
	return b, nil
}
