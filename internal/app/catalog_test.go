package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

func newCatalogService() (*app.CatalogService, *memCatalog, *memUsers, *jsonCache, *fakeImages) {
	c := newCatalog()
	users := newUsers()
	cache := newCache()
	imgs := &fakeImages{}
	idsvc := app.NewIdentityService(users, &fakeIdP{}, cache, time.Minute)
	return app.NewCatalogService(c, imgs, idsvc, cache, time.Minute), c, users, cache, imgs
}

func TestRegisterHotel_PromotesOwnerOnce(t *testing.T) {
	svc, _, users, _, _ := newCatalogService()
	users.users["u1"] = domain.User{ID: "u1", Role: domain.RoleUser}
	ctx := context.Background()
	in := app.HotelInput{Name: "Sea View", Address: "2 Beach Rd", Contact: "+351 000", City: "Porto"}

	h, err := svc.RegisterHotel(ctx, "u1", in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if h.Owner != "u1" || h.ID == "" || h.City != "Porto" {
		t.Fatalf("unexpected hotel: %+v", h)
	}
	if users.users["u1"].Role != domain.RoleHotelOwner {
		t.Fatalf("role not promoted: %s", users.users["u1"].Role)
	}

	if _, err := svc.RegisterHotel(ctx, "u1", in); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("want ErrConflict on second hotel, got %v", err)
	}
}

func TestRegisterHotel_Validation(t *testing.T) {
	svc, _, _, _, _ := newCatalogService()
	_, err := svc.RegisterHotel(context.Background(), "u1", app.HotelInput{Name: "x"})
	ve := domain.AsValidationError(err)
	if ve == nil {
		t.Fatalf("want ValidationError, got %v", err)
	}
	for _, f := range []string{"address", "contact", "city"} {
		if _, ok := ve.Fields()[f]; !ok {
			t.Fatalf("missing %s in %v", f, ve)
		}
	}
}

func TestCreateRoom_UploadsAndInvalidatesListing(t *testing.T) {
	svc, c, _, cache, imgs := newCatalogService()
	seedRoom(c, "r1", 100)
	ctx := context.Background()

	// warm the listing cache
	if _, err := svc.ListRooms(ctx, domain.RoomFilter{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	r, err := svc.CreateRoom(ctx, "owner-r1", app.RoomInput{
		RoomType:      "Suite",
		PricePerNight: 250,
		Amenities:     []string{"Free WiFi"},
		Images:        []app.Upload{{Name: "a.jpg", Body: strings.NewReader("a")}, {Name: "b.jpg", Body: strings.NewReader("b")}},
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !r.IsAvailable || r.HotelID != "h-r1" || len(r.Images) != 2 || r.Images[0] != "https://img.example/a.jpg" {
		t.Fatalf("unexpected room: %+v", r)
	}
	if len(imgs.names) != 2 {
		t.Fatalf("uploads: %v", imgs.names)
	}
	if len(cache.dels) == 0 {
		t.Fatalf("listing cache not invalidated")
	}

	rooms, _ := svc.ListRooms(ctx, domain.RoomFilter{})
	if len(rooms) != 2 || rooms[0].ID != r.ID {
		t.Fatalf("newest room should come first: %+v", rooms)
	}
}

func TestCreateRoom_RequiresHotel(t *testing.T) {
	svc, _, _, _, _ := newCatalogService()
	_, err := svc.CreateRoom(context.Background(), "stranger", app.RoomInput{RoomType: "Single", PricePerNight: 10})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	_, err = svc.CreateRoom(context.Background(), "stranger", app.RoomInput{RoomType: "Single"})
	if domain.AsValidationError(err) == nil {
		t.Fatalf("zero price should be rejected, got %v", err)
	}
}

func TestListRooms_CachedAndFiltered(t *testing.T) {
	svc, c, _, _, _ := newCatalogService()
	seedRoom(c, "r1", 100)
	seedRoom(c, "r2", 120)
	h := c.hotels["h-r2"]
	h.City = "Madrid"
	c.hotels["h-r2"] = h
	off := c.rooms["r2"]
	off.ID, off.IsAvailable = "r3", false
	c.rooms["r3"] = off
	ctx := context.Background()

	all, err := svc.ListRooms(ctx, domain.RoomFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("available rooms: %d err=%v", len(all), err)
	}
	madrid, _ := svc.ListRooms(ctx, domain.RoomFilter{City: "madrid"})
	if len(madrid) != 1 || madrid[0].ID != "r2" || madrid[0].Hotel.Name != "Grand r2" {
		t.Fatalf("city filter: %+v", madrid)
	}
	byHotel, _ := svc.ListRooms(ctx, domain.RoomFilter{HotelID: "h-r1", RoomType: "double bed"})
	if len(byHotel) != 1 || byHotel[0].ID != "r1" {
		t.Fatalf("hotel filter: %+v", byHotel)
	}
	if c.lists != 1 {
		t.Fatalf("store should be hit once, got %d", c.lists)
	}
}

func TestToggleAvailability(t *testing.T) {
	svc, c, _, _, _ := newCatalogService()
	seedRoom(c, "r1", 100)
	ctx := context.Background()

	r, err := svc.ToggleAvailability(ctx, "owner-r1", "r1")
	if err != nil || r.IsAvailable {
		t.Fatalf("toggle off: %+v err=%v", r, err)
	}
	if rooms, _ := svc.ListRooms(ctx, domain.RoomFilter{}); len(rooms) != 0 {
		t.Fatalf("hidden room still listed: %+v", rooms)
	}
	if _, err := svc.ToggleAvailability(ctx, "someone-else", "r1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("want ErrForbidden, got %v", err)
	}

	mine, err := svc.OwnerRooms(ctx, "owner-r1")
	if err != nil || len(mine) != 1 || mine[0].IsAvailable {
		t.Fatalf("owner rooms: %+v err=%v", mine, err)
	}
}
