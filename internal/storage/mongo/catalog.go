package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"hotel_booking/internal/domain"
)

type CatalogRepo struct {
	rooms  *mongo.Collection
	hotels *mongo.Collection
}

var _ domain.CatalogRepository = (*CatalogRepo)(nil)

// withHotel joins each room with its hotel under hotelData.
var withHotel = mongo.Pipeline{
	{{Key: "$lookup", Value: bson.M{"from": hotelsColl, "localField": "hotel", "foreignField": "_id", "as": "hotelData"}}},
	{{Key: "$unwind", Value: "$hotelData"}},
}

func (r *CatalogRepo) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var room domain.Room
	if err := r.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Room{}, domain.ErrNotFound
		}
		return domain.Room{}, fmt.Errorf("failed to fetch room %s: %w", id, err)
	}
	return room, nil
}

func (r *CatalogRepo) aggregateRooms(ctx context.Context, match bson.M, newestFirst bool) ([]domain.RoomWithHotel, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipe := mongo.Pipeline{{{Key: "$match", Value: match}}}
	if newestFirst {
		pipe = append(pipe, bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}}})
	}
	pipe = append(pipe, withHotel...)

	cur, err := r.rooms.Aggregate(ctx, pipe)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.RoomWithHotel{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return out, nil
}

func (r *CatalogRepo) GetRoomWithHotel(ctx context.Context, id string) (domain.RoomWithHotel, error) {
	rooms, err := r.aggregateRooms(ctx, bson.M{"_id": id}, false)
	if err != nil {
		return domain.RoomWithHotel{}, err
	}
	if len(rooms) == 0 {
		return domain.RoomWithHotel{}, domain.ErrNotFound
	}
	return rooms[0], nil
}

func (r *CatalogRepo) ListAvailableRooms(ctx context.Context) ([]domain.RoomWithHotel, error) {
	return r.aggregateRooms(ctx, bson.M{"isAvailable": true}, true)
}

func (r *CatalogRepo) ListRoomsByHotel(ctx context.Context, hotelID string) ([]domain.RoomWithHotel, error) {
	return r.aggregateRooms(ctx, bson.M{"hotel": hotelID}, true)
}

func (r *CatalogRepo) findHotel(ctx context.Context, filter bson.M) (domain.Hotel, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var h domain.Hotel
	if err := r.hotels.FindOne(ctx, filter).Decode(&h); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Hotel{}, domain.ErrNotFound
		}
		return domain.Hotel{}, fmt.Errorf("failed to fetch hotel: %w", err)
	}
	return h, nil
}

func (r *CatalogRepo) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	return r.findHotel(ctx, bson.M{"_id": id})
}

func (r *CatalogRepo) GetHotelByOwner(ctx context.Context, owner string) (domain.Hotel, error) {
	return r.findHotel(ctx, bson.M{"owner": owner})
}

func (r *CatalogRepo) CreateHotel(ctx context.Context, h domain.Hotel) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.hotels.InsertOne(ctx, h); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("hotel of owner %s: %w", h.Owner, domain.ErrConflict)
		}
		return fmt.Errorf("failed to insert hotel: %w", err)
	}
	return nil
}

func (r *CatalogRepo) CreateRoom(ctx context.Context, room domain.Room) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if room.Amenities == nil {
		room.Amenities = []string{}
	}
	if room.Images == nil {
		room.Images = []string{}
	}
	if _, err := r.rooms.InsertOne(ctx, room); err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (r *CatalogRepo) SetRoomAvailability(ctx context.Context, id string, available bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.rooms.UpdateByID(ctx, id, bson.M{"$set": bson.M{"isAvailable": available}})
	if err != nil {
		return fmt.Errorf("failed to update room %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
