package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpserver "hotel_booking/internal/adapters/http_server"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

/********** fakes **********/

type fakeSessions struct{}

func (fakeSessions) VerifySession(_ context.Context, tok string) (string, error) {
	if strings.HasPrefix(tok, "tok-") {
		return strings.TrimPrefix(tok, "tok-"), nil
	}
	return "", domain.ErrUnauthorized
}

type fakeIdentity struct {
	users   map[string]domain.User
	cities  []string
	hookErr error
	hookEv  domain.IdentityEvent
}

func (f *fakeIdentity) HandleWebhook(_ context.Context, h domain.WebhookHeaders, _ []byte) (domain.IdentityEvent, error) {
	if h.Signature == "" {
		return domain.IdentityEvent{}, fmt.Errorf("%w: missing headers", domain.ErrBadSignature)
	}
	return f.hookEv, f.hookErr
}

func (f *fakeIdentity) Resolve(_ context.Context, id string) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeIdentity) StoreRecentSearchedCity(_ context.Context, _ domain.User, city string) ([]string, error) {
	if city == "" {
		ve := domain.NewValidationError()
		ve.Add("recentSearchedCity", "recentSearchedCity is required")
		return nil, ve
	}
	f.cities = append(f.cities, city)
	return f.cities, nil
}

type fakeCatalog struct {
	hotelErr  error
	rooms     []domain.RoomWithHotel
	lastRoom  app.RoomInput
	images    []string
	filter    domain.RoomFilter
	toggleErr error
}

func (f *fakeCatalog) RegisterHotel(_ context.Context, owner string, in app.HotelInput) (domain.Hotel, error) {
	if f.hotelErr != nil {
		return domain.Hotel{}, f.hotelErr
	}
	return domain.Hotel{ID: "h1", Owner: owner, Name: in.Name}, nil
}

func (f *fakeCatalog) CreateRoom(_ context.Context, _ string, in app.RoomInput) (domain.Room, error) {
	f.lastRoom = in
	for _, u := range in.Images {
		b, _ := io.ReadAll(u.Body)
		f.images = append(f.images, u.Name+":"+string(b))
	}
	return domain.Room{ID: "r-new"}, nil
}

func (f *fakeCatalog) ListRooms(_ context.Context, flt domain.RoomFilter) ([]domain.RoomWithHotel, error) {
	f.filter = flt
	return f.rooms, nil
}

func (f *fakeCatalog) OwnerRooms(context.Context, string) ([]domain.RoomWithHotel, error) {
	return f.rooms, nil
}

func (f *fakeCatalog) ToggleAvailability(_ context.Context, _, roomID string) (domain.Room, error) {
	if f.toggleErr != nil {
		return domain.Room{}, f.toggleErr
	}
	return domain.Room{ID: roomID, IsAvailable: false}, nil
}

type fakeBookings struct {
	available bool
	bookErr   error
	lastReq   app.BookingRequest
	dashErr   error
}

func (f *fakeBookings) CheckAvailability(context.Context, string, time.Time, time.Time) (bool, error) {
	return f.available, nil
}

func (f *fakeBookings) Book(_ context.Context, u domain.User, req app.BookingRequest) (domain.Booking, error) {
	req.UserID = u.ID
	f.lastReq = req
	if f.bookErr != nil {
		return domain.Booking{}, f.bookErr
	}
	return domain.Booking{ID: "b1", UserID: u.ID, RoomID: req.RoomID, TotalPrice: 300}, nil
}

func (f *fakeBookings) UserBookings(context.Context, string) ([]domain.BookingView, error) {
	return []domain.BookingView{}, nil
}

func (f *fakeBookings) OwnerDashboard(context.Context, string) (domain.Dashboard, error) {
	if f.dashErr != nil {
		return domain.Dashboard{}, f.dashErr
	}
	return domain.Dashboard{TotalBookings: 2, TotalRevenue: 450, Bookings: []domain.BookingView{}}, nil
}

type fakePayments struct {
	origin string
	event  domain.GatewayEvent
}

func (f *fakePayments) StartCheckout(_ context.Context, _, bookingID, origin string) (string, error) {
	if bookingID == "missing" {
		return "", fmt.Errorf("booking %s: %w", bookingID, domain.ErrNotFound)
	}
	f.origin = origin
	return "https://checkout.example/" + bookingID, nil
}

func (f *fakePayments) HandleGatewayEvent(_ context.Context, _ []byte, sig string) (domain.GatewayEvent, error) {
	if sig != "good" {
		return domain.GatewayEvent{}, domain.ErrBadSignature
	}
	return f.event, nil
}

type fixture struct {
	h        http.Handler
	identity *fakeIdentity
	catalog  *fakeCatalog
	bookings *fakeBookings
	payments *fakePayments
}

func newFixture() *fixture {
	f := &fixture{
		identity: &fakeIdentity{users: map[string]domain.User{
			"guest": {ID: "guest", Email: "g@example.com", Role: domain.RoleUser, RecentSearchedCities: []string{"Rome"}},
			"owner": {ID: "owner", Role: domain.RoleHotelOwner},
		}},
		catalog:  &fakeCatalog{},
		bookings: &fakeBookings{available: true},
		payments: &fakePayments{},
	}
	srv := httpserver.New(httpserver.Options{})
	srv.MountHandlers(&httpserver.Handlers{
		Sessions: fakeSessions{},
		Identity: f.identity,
		Catalog:  f.catalog,
		Bookings: f.bookings,
		Payments: f.payments,
	})
	f.h = srv.Mux()
	return f
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer tok-"+user)
	}
	return f.serve(t, req)
}

func (f *fixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, req)
	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %q: %v", rr.Body.String(), err)
		}
	}
	return rr, out
}

/********** tests **********/

func TestHealth(t *testing.T) {
	f := newFixture()
	rr, _ := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != 200 || rr.Body.String() != "API is working fine" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestAuth_MissingAndUnknownUser(t *testing.T) {
	f := newFixture()
	rr, out := f.do(t, http.MethodGet, "/api/user", "", nil)
	if rr.Code != http.StatusUnauthorized || out["success"] != false {
		t.Fatalf("no token: %d %v", rr.Code, out)
	}
	rr, _ = f.do(t, http.MethodGet, "/api/user", "ghost", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: %d", rr.Code)
	}
}

func TestGetUser(t *testing.T) {
	f := newFixture()
	rr, out := f.do(t, http.MethodGet, "/api/user", "guest", nil)
	if rr.Code != 200 || out["success"] != true || out["role"] != "user" {
		t.Fatalf("got %d %v", rr.Code, out)
	}
	if cities, _ := out["recentSearchedCities"].([]any); len(cities) != 1 || cities[0] != "Rome" {
		t.Fatalf("cities: %v", out["recentSearchedCities"])
	}
}

func TestStoreRecentSearch(t *testing.T) {
	f := newFixture()
	rr, out := f.do(t, http.MethodPost, "/api/user/store-recent-search", "guest", map[string]string{"recentSearchedCity": "Oslo"})
	if rr.Code != 200 || out["message"] != "City added" {
		t.Fatalf("got %d %v", rr.Code, out)
	}
	rr, out = f.do(t, http.MethodPost, "/api/user/store-recent-search", "guest", map[string]string{})
	if rr.Code != http.StatusBadRequest || out["errors"] == nil {
		t.Fatalf("blank city: %d %v", rr.Code, out)
	}
}

func TestRegisterHotel_Conflict(t *testing.T) {
	f := newFixture()
	rr, out := f.do(t, http.MethodPost, "/api/hotels", "guest", map[string]string{"name": "Grand"})
	if rr.Code != 200 || out["message"] != "Hotel Registered Successfully" {
		t.Fatalf("got %d %v", rr.Code, out)
	}
	f.catalog.hotelErr = fmt.Errorf("hotel of guest: %w", domain.ErrConflict)
	rr, out = f.do(t, http.MethodPost, "/api/hotels", "guest", map[string]string{"name": "Grand"})
	if rr.Code != http.StatusConflict || out["message"] != "Hotel Already Registered" {
		t.Fatalf("conflict: %d %v", rr.Code, out)
	}
}

func TestOwnerRoutes_RequireOwnerRole(t *testing.T) {
	f := newFixture()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/rooms/owner"},
		{http.MethodPost, "/api/rooms/toggle-availability"},
		{http.MethodPost, "/api/bookings/hotel"},
	} {
		rr, _ := f.do(t, tc.method, tc.path, "guest", map[string]string{})
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s as guest: %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestCreateRoom_Multipart(t *testing.T) {
	f := newFixture()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("roomType", "Double Bed")
	_ = mw.WriteField("pricePerNight", "150")
	_ = mw.WriteField("amenities", `["Free WiFi","Pool Access"]`)
	fw, _ := mw.CreateFormFile("images", "a.jpg")
	_, _ = fw.Write([]byte("jpeg-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer tok-owner")
	rr, out := f.serve(t, req)
	if rr.Code != 200 || out["success"] != true {
		t.Fatalf("got %d %v", rr.Code, out)
	}
	in := f.catalog.lastRoom
	if in.RoomType != "Double Bed" || in.PricePerNight != 150 || len(in.Amenities) != 2 || in.Amenities[1] != "Pool Access" {
		t.Fatalf("room input: %+v", in)
	}
	if len(f.catalog.images) != 1 || f.catalog.images[0] != "a.jpg:jpeg-bytes" {
		t.Fatalf("images: %v", f.catalog.images)
	}
}

func TestListRooms_PassesFilters(t *testing.T) {
	f := newFixture()
	f.catalog.rooms = []domain.RoomWithHotel{{Room: domain.Room{ID: "r1", IsAvailable: true}}}
	rr, out := f.do(t, http.MethodGet, "/api/rooms?city=Lisbon&roomType=Suite&hotel=h9", "", nil)
	if rr.Code != 200 {
		t.Fatalf("got %d", rr.Code)
	}
	if got := f.catalog.filter; got != (domain.RoomFilter{City: "Lisbon", RoomType: "Suite", HotelID: "h9"}) {
		t.Fatalf("filter: %+v", got)
	}
	if rooms, _ := out["rooms"].([]any); len(rooms) != 1 {
		t.Fatalf("rooms: %v", out["rooms"])
	}
}

func TestToggleAvailability_Forbidden(t *testing.T) {
	f := newFixture()
	f.catalog.toggleErr = fmt.Errorf("room r1: %w", domain.ErrForbidden)
	rr, _ := f.do(t, http.MethodPost, "/api/rooms/toggle-availability", "owner", map[string]string{"roomId": "r1"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d", rr.Code)
	}
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture()
	body := map[string]any{"room": "r1", "checkInDate": "2024-01-05", "checkOutDate": "2024-01-07"}
	rr, out := f.do(t, http.MethodPost, "/api/bookings/check-availability", "", body)
	if rr.Code != 200 || out["isAvailable"] != true {
		t.Fatalf("got %d %v", rr.Code, out)
	}
	rr, _ = f.do(t, http.MethodPost, "/api/bookings/check-availability", "", map[string]any{"room": "r1"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing dates: %d", rr.Code)
	}
}

func TestBook(t *testing.T) {
	f := newFixture()
	body := map[string]any{"room": "r1", "checkInDate": "2024-01-05T00:00:00Z", "checkOutDate": "2024-01-07", "guests": "2"}
	rr, out := f.do(t, http.MethodPost, "/api/bookings/book", "guest", body)
	if rr.Code != 200 || out["message"] != "Booking created successfully" {
		t.Fatalf("got %d %v", rr.Code, out)
	}
	req := f.bookings.lastReq
	if req.UserID != "guest" || req.Guests != 2 || req.CheckOut.Day() != 7 {
		t.Fatalf("request: %+v", req)
	}

	f.bookings.bookErr = domain.ErrUnavailable
	rr, out = f.do(t, http.MethodPost, "/api/bookings/book", "guest", body)
	if rr.Code != http.StatusConflict || out["message"] != "room not available" || out["success"] != false {
		t.Fatalf("unavailable: %d %v", rr.Code, out)
	}

	// a contended room lock is retryable, not a sold-out room
	f.bookings.bookErr = fmt.Errorf("reserve room r1: %w", fmt.Errorf("room r1 busy: %w", domain.ErrLookupFailed))
	rr, out = f.do(t, http.MethodPost, "/api/bookings/book", "guest", body)
	if rr.Code != http.StatusServiceUnavailable || out["message"] == "room not available" {
		t.Fatalf("busy: %d %v", rr.Code, out)
	}
}

func TestHotelDashboard(t *testing.T) {
	f := newFixture()
	rr, out := f.do(t, http.MethodPost, "/api/bookings/hotel", "owner", nil)
	if rr.Code != 200 {
		t.Fatalf("got %d", rr.Code)
	}
	d, _ := out["dashboardData"].(map[string]any)
	if d["totalBookings"] != float64(2) || d["totalRevenue"] != float64(450) {
		t.Fatalf("dashboard: %v", d)
	}

	f.bookings.dashErr = domain.ErrNotFound
	rr, out = f.do(t, http.MethodPost, "/api/bookings/hotel", "owner", nil)
	if rr.Code != http.StatusNotFound || out["message"] != "No Hotel found" {
		t.Fatalf("no hotel: %d %v", rr.Code, out)
	}
}

func TestStripePayment(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/bookings/stripe-payment", strings.NewReader(`{"bookingId":"b1"}`))
	req.Header.Set("Authorization", "Bearer tok-guest")
	req.Header.Set("Origin", "https://app.example")
	rr, out := f.serve(t, req)
	if rr.Code != 200 || out["url"] != "https://checkout.example/b1" || f.payments.origin != "https://app.example" {
		t.Fatalf("got %d %v origin=%q", rr.Code, out, f.payments.origin)
	}
	rr, _ = f.do(t, http.MethodPost, "/api/bookings/stripe-payment", "guest", map[string]string{"bookingId": "missing"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing booking: %d", rr.Code)
	}
}

func TestWebhooks_RejectBadSignature(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodPost, "/api/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "bad")
	if rr, _ := f.serve(t, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("stripe: %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/clerk", strings.NewReader(`{}`))
	if rr, _ := f.serve(t, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("clerk: %d", rr.Code)
	}
}

func TestWebhooks_Acknowledge(t *testing.T) {
	f := newFixture()
	f.payments.event = domain.GatewayEvent{Kind: domain.GatewayCheckoutCompleted, Type: "checkout.session.completed"}
	req := httptest.NewRequest(http.MethodPost, "/api/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "good")
	rr, out := f.serve(t, req)
	if rr.Code != 200 || out["received"] != true {
		t.Fatalf("stripe: %d %v", rr.Code, out)
	}

	f.identity.hookEv = domain.IdentityEvent{Kind: domain.IdentityUserCreated, Type: "user.created"}
	req = httptest.NewRequest(http.MethodPost, "/api/clerk", strings.NewReader(`{}`))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", "v1,abc")
	rr, out = f.serve(t, req)
	if rr.Code != 200 || out["message"] != "Webhook Received" {
		t.Fatalf("clerk: %d %v", rr.Code, out)
	}
}

func TestRateLimit(t *testing.T) {
	srv := httpserver.New(httpserver.Options{RateLimitRPS: 1})
	srv.Mount("/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) }))
	h := srv.Mux()

	var limited bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatal("expected a 429 after exceeding the burst")
	}
}
