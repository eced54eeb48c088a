package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

const availableRoomsKey = "rooms:available"

type ownerPromoter interface {
	PromoteToOwner(ctx context.Context, userID string) error
}

// CatalogService owns hotels and rooms. The public room listing is cached as a whole
// and filtered in memory; every room write drops it.
type CatalogService struct {
	repo     domain.CatalogRepository
	images   domain.ImageStore
	owners   ownerPromoter
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewCatalogService(r domain.CatalogRepository, img domain.ImageStore, owners ownerPromoter, c domain.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{
		repo:     r,
		images:   img,
		owners:   owners,
		cache:    c,
		cacheTTL: ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type HotelInput struct {
	Name    string
	Address string
	Contact string
	City    string
}

func (in HotelInput) validate() error {
	ve := domain.NewValidationError()
	for field, v := range map[string]string{"name": in.Name, "address": in.Address, "contact": in.Contact, "city": in.City} {
		if strings.TrimSpace(v) == "" {
			ve.Add(field, field+" is required")
		}
	}
	return ve.OrNil()
}

// RegisterHotel creates the single hotel an owner may have and promotes the owner.
func (s *CatalogService) RegisterHotel(ctx context.Context, ownerID string, in HotelInput) (domain.Hotel, error) {
	if err := in.validate(); err != nil {
		return domain.Hotel{}, err
	}
	h := domain.Hotel{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Address:   strings.TrimSpace(in.Address),
		Contact:   strings.TrimSpace(in.Contact),
		City:      strings.TrimSpace(in.City),
		Owner:     ownerID,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateHotel(ctx, h); err != nil {
		return domain.Hotel{}, err
	}
	if err := s.owners.PromoteToOwner(ctx, ownerID); err != nil {
		return h, err
	}
	return h, nil
}

// Upload is one image attached to a new room.
type Upload struct {
	Name string
	Body io.Reader
}

type RoomInput struct {
	RoomType      string
	PricePerNight float64
	Amenities     []string
	Images        []Upload
}

func (in RoomInput) validate() error {
	ve := domain.NewValidationError()
	if strings.TrimSpace(in.RoomType) == "" {
		ve.Add("roomType", "roomType is required")
	}
	if in.PricePerNight <= 0 {
		ve.Add("pricePerNight", "pricePerNight must be positive")
	}
	return ve.OrNil()
}

func (s *CatalogService) ownedHotel(ctx context.Context, ownerID string) (domain.Hotel, error) {
	h, err := s.repo.GetHotelByOwner(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Hotel{}, fmt.Errorf("no hotel registered: %w", domain.ErrNotFound)
	}
	return h, err
}

// CreateRoom uploads the images in order and stores the room under the owner's hotel.
func (s *CatalogService) CreateRoom(ctx context.Context, ownerID string, in RoomInput) (domain.Room, error) {
	if err := in.validate(); err != nil {
		return domain.Room{}, err
	}
	h, err := s.ownedHotel(ctx, ownerID)
	if err != nil {
		return domain.Room{}, err
	}

	urls := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		u, err := s.images.Upload(ctx, img.Name, img.Body)
		if err != nil {
			return domain.Room{}, fmt.Errorf("upload %s: %w", img.Name, err)
		}
		urls = append(urls, u)
	}

	amenities := in.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	r := domain.Room{
		ID:            uuid.NewString(),
		HotelID:       h.ID,
		RoomType:      strings.TrimSpace(in.RoomType),
		PricePerNight: in.PricePerNight,
		Amenities:     amenities,
		Images:        urls,
		IsAvailable:   true,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateRoom(ctx, r); err != nil {
		return domain.Room{}, err
	}
	s.invalidateRooms(ctx)
	return r, nil
}

// ListRooms returns the available rooms matching f, newest first.
func (s *CatalogService) ListRooms(ctx context.Context, f domain.RoomFilter) ([]domain.RoomWithHotel, error) {
	var all []domain.RoomWithHotel
	hit := false
	if s.cache != nil {
		var err error
		if hit, err = s.cache.Get(ctx, availableRoomsKey, &all); err != nil {
			log.Warn().Err(err).Msg("room listing cache unreadable")
		}
	}
	if !hit {
		rooms, err := s.repo.ListAvailableRooms(ctx)
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w: %w", domain.ErrLookupFailed, err)
		}
		all = rooms
		if s.cache != nil {
			_ = s.cache.Set(ctx, availableRoomsKey, all, int(s.cacheTTL.Seconds()))
		}
	}
	return filterRooms(all, f), nil
}

// filterRooms copies so callers never mutate a cached slice.
func filterRooms(in []domain.RoomWithHotel, f domain.RoomFilter) []domain.RoomWithHotel {
	out := make([]domain.RoomWithHotel, 0, len(in))
	for _, r := range in {
		if f.City != "" && !strings.EqualFold(r.Hotel.City, f.City) {
			continue
		}
		if f.RoomType != "" && !strings.EqualFold(r.RoomType, f.RoomType) {
			continue
		}
		if f.HotelID != "" && r.HotelID != f.HotelID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *CatalogService) OwnerRooms(ctx context.Context, ownerID string) ([]domain.RoomWithHotel, error) {
	h, err := s.ownedHotel(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	rooms, err := s.repo.ListRoomsByHotel(ctx, h.ID)
	if err != nil {
		return nil, fmt.Errorf("list rooms of hotel %s: %w: %w", h.ID, domain.ErrLookupFailed, err)
	}
	if rooms == nil {
		rooms = []domain.RoomWithHotel{}
	}
	return rooms, nil
}

// ToggleAvailability flips isAvailable on a room of the owner's hotel.
func (s *CatalogService) ToggleAvailability(ctx context.Context, ownerID, roomID string) (domain.Room, error) {
	r, err := s.repo.GetRoomWithHotel(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if r.Hotel.Owner != ownerID {
		return domain.Room{}, fmt.Errorf("room %s: %w", roomID, domain.ErrForbidden)
	}
	next := !r.IsAvailable
	if err := s.repo.SetRoomAvailability(ctx, roomID, next); err != nil {
		return domain.Room{}, err
	}
	s.invalidateRooms(ctx)
	r.Room.IsAvailable = next
	return r.Room, nil
}

func (s *CatalogService) invalidateRooms(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, availableRoomsKey)
	}
}
