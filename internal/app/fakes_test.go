package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"hotel_booking/internal/domain"
)

// ---- ledger ----

type memLedger struct {
	mu       sync.Mutex
	bookings map[string]domain.Booking

	findErr    error
	reserveErr error
	reserves   int
	// when gate is set, Reserve signals arrived and blocks until gate closes
	arrived chan struct{}
	gate    chan struct{}
}

func newLedger() *memLedger {
	return &memLedger{bookings: map[string]domain.Booking{}}
}

func (l *memLedger) overlapping(roomID string, in, out time.Time) []domain.Booking {
	var found []domain.Booking
	for _, b := range l.bookings {
		if b.RoomID == roomID && domain.Overlaps(b.CheckInDate, b.CheckOutDate, in, out) {
			found = append(found, b)
		}
	}
	return found
}

func (l *memLedger) FindOverlapping(ctx context.Context, roomID string, in, out time.Time) ([]domain.Booking, error) {
	if l.findErr != nil {
		return nil, l.findErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overlapping(roomID, in, out), nil
}

func (l *memLedger) Reserve(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if l.gate != nil {
		l.arrived <- struct{}{}
		<-l.gate
	}
	if l.reserveErr != nil {
		return domain.Booking{}, l.reserveErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.overlapping(b.RoomID, b.CheckInDate, b.CheckOutDate)) > 0 {
		return domain.Booking{}, domain.ErrUnavailable
	}
	l.bookings[b.ID] = b
	l.reserves++
	return b, nil
}

func (l *memLedger) Get(ctx context.Context, id string) (domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (l *memLedger) views(keep func(domain.Booking) bool) []domain.BookingView {
	var out []domain.BookingView
	for _, b := range l.bookings {
		if keep(b) {
			out = append(out, domain.BookingView{Booking: b})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (l *memLedger) ListByUser(ctx context.Context, userID string) ([]domain.BookingView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.views(func(b domain.Booking) bool { return b.UserID == userID }), nil
}

func (l *memLedger) ListByHotel(ctx context.Context, hotelID string) ([]domain.BookingView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.views(func(b domain.Booking) bool { return b.HotelID == hotelID }), nil
}

func (l *memLedger) ListUnpaid(ctx context.Context, limit int) ([]domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Booking
	for _, b := range l.bookings {
		if !b.IsPaid && b.CheckoutSessionID != "" && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (l *memLedger) UpdateByID(ctx context.Context, id string, u domain.BookingUpdate) (domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	if u.IsPaid != nil {
		b.IsPaid = *u.IsPaid
	}
	if u.PaymentMethod != nil {
		m := *u.PaymentMethod
		b.PaymentMethod = &m
	}
	if u.CheckoutSessionID != nil {
		b.CheckoutSessionID = *u.CheckoutSessionID
	}
	l.bookings[id] = b
	return b, nil
}

// ---- catalog ----

type memCatalog struct {
	mu     sync.Mutex
	hotels map[string]domain.Hotel
	rooms  map[string]domain.Room
	lists  int
}

func newCatalog() *memCatalog {
	return &memCatalog{hotels: map[string]domain.Hotel{}, rooms: map[string]domain.Room{}}
}

func (c *memCatalog) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return r, nil
}

func (c *memCatalog) GetRoomWithHotel(ctx context.Context, id string) (domain.RoomWithHotel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[id]
	if !ok {
		return domain.RoomWithHotel{}, domain.ErrNotFound
	}
	return domain.RoomWithHotel{Room: r, Hotel: c.hotels[r.HotelID]}, nil
}

func (c *memCatalog) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.hotels[id]
	if !ok {
		return domain.Hotel{}, domain.ErrNotFound
	}
	return h, nil
}

func (c *memCatalog) GetHotelByOwner(ctx context.Context, owner string) (domain.Hotel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.hotels {
		if h.Owner == owner {
			return h, nil
		}
	}
	return domain.Hotel{}, domain.ErrNotFound
}

func (c *memCatalog) joined(keep func(domain.Room) bool) []domain.RoomWithHotel {
	var out []domain.RoomWithHotel
	for _, r := range c.rooms {
		if keep(r) {
			out = append(out, domain.RoomWithHotel{Room: r, Hotel: c.hotels[r.HotelID]})
		}
	}
	return out
}

func (c *memCatalog) ListAvailableRooms(ctx context.Context) ([]domain.RoomWithHotel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	return c.joined(func(r domain.Room) bool { return r.IsAvailable }), nil
}

func (c *memCatalog) ListRoomsByHotel(ctx context.Context, hotelID string) ([]domain.RoomWithHotel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined(func(r domain.Room) bool { return r.HotelID == hotelID }), nil
}

func (c *memCatalog) CreateHotel(ctx context.Context, h domain.Hotel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, x := range c.hotels {
		if x.Owner == h.Owner {
			return domain.ErrConflict
		}
	}
	c.hotels[h.ID] = h
	return nil
}

func (c *memCatalog) CreateRoom(ctx context.Context, r domain.Room) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[r.ID] = r
	return nil
}

func (c *memCatalog) SetRoomAvailability(ctx context.Context, id string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rooms[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.IsAvailable = on
	c.rooms[id] = r
	return nil
}

// ---- users ----

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newUsers() *memUsers { return &memUsers{users: map[string]domain.User{}} }

func (u *memUsers) Get(ctx context.Context, id string) (domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	x, ok := u.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return x, nil
}

func (u *memUsers) Upsert(ctx context.Context, x domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if prev, ok := u.users[x.ID]; ok {
		x.Role = prev.Role
		x.RecentSearchedCities = prev.RecentSearchedCities
	}
	u.users[x.ID] = x
	return nil
}

func (u *memUsers) Delete(ctx context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(u.users, id)
	return nil
}

func (u *memUsers) SetRole(ctx context.Context, id string, role domain.Role) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	x, ok := u.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	x.Role = role
	u.users[id] = x
	return nil
}

func (u *memUsers) SetRecentCities(ctx context.Context, id string, cities []string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	x, ok := u.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	x.RecentSearchedCities = cities
	u.users[id] = x
	return nil
}

// ---- cache ----

// jsonCache round-trips through JSON like the Redis cache does.
type jsonCache struct {
	store map[string][]byte
	dels  []string
}

func newCache() *jsonCache { return &jsonCache{store: map[string][]byte{}} }

func (c *jsonCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *jsonCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *jsonCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// ---- gateway ----

type fakeGateway struct {
	created  []domain.CheckoutRequest
	sessions map[string]domain.CheckoutSession
	event    domain.GatewayEvent
	parseErr error
	err      error
}

func (g *fakeGateway) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	if g.err != nil {
		return domain.CheckoutSession{}, g.err
	}
	g.created = append(g.created, req)
	return domain.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1", BookingID: req.BookingID}, nil
}

func (g *fakeGateway) GetSession(ctx context.Context, id string) (domain.CheckoutSession, error) {
	s, ok := g.sessions[id]
	if !ok {
		return domain.CheckoutSession{}, domain.ErrNotFound
	}
	return s, nil
}

func (g *fakeGateway) ParseEvent(payload []byte, sig string) (domain.GatewayEvent, error) {
	if g.parseErr != nil {
		return domain.GatewayEvent{}, g.parseErr
	}
	return g.event, nil
}

// ---- identity ----

type fakeIdP struct {
	raw      domain.RawIdentityEvent
	users    map[string]map[string]any
	fetches  int
	rejected bool
}

func (p *fakeIdP) VerifySession(ctx context.Context, token string) (string, error) {
	return token, nil
}

func (p *fakeIdP) FetchUser(ctx context.Context, id string) (map[string]any, error) {
	p.fetches++
	u, ok := p.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (p *fakeIdP) VerifyWebhook(h domain.WebhookHeaders, body []byte) (domain.RawIdentityEvent, error) {
	if p.rejected {
		return domain.RawIdentityEvent{}, domain.ErrBadSignature
	}
	return p.raw, nil
}

// ---- images / mail ----

type fakeImages struct {
	names []string
	fail  bool
}

func (f *fakeImages) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if f.fail {
		return "", errors.New("upload refused")
	}
	_, _ = io.Copy(io.Discard, r)
	f.names = append(f.names, name)
	return "https://img.example/" + name, nil
}

type fakeNotifier struct {
	sent []domain.BookingConfirmation
	err  error
}

func (n *fakeNotifier) EnqueueBookingConfirmation(ctx context.Context, c domain.BookingConfirmation) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, c)
	return nil
}

// ---- helpers ----

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func ptr[T any](v T) *T { return &v }

// seedRoom stores a hotel owned by owner with one room at price per night.
func seedRoom(c *memCatalog, roomID string, price float64) domain.Room {
	h := domain.Hotel{ID: "h-" + roomID, Name: "Grand " + roomID, Address: "1 Main St", City: "Lisbon", Owner: "owner-" + roomID}
	r := domain.Room{ID: roomID, HotelID: h.ID, RoomType: "Double Bed", PricePerNight: price, IsAvailable: true, CreatedAt: day(1)}
	c.hotels[h.ID] = h
	c.rooms[r.ID] = r
	return r
}
