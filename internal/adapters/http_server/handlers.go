package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (string, error)
}

type Identity interface {
	HandleWebhook(ctx context.Context, h domain.WebhookHeaders, body []byte) (domain.IdentityEvent, error)
	Resolve(ctx context.Context, id string) (domain.User, error)
	StoreRecentSearchedCity(ctx context.Context, u domain.User, city string) ([]string, error)
}

type Catalog interface {
	RegisterHotel(ctx context.Context, ownerID string, in app.HotelInput) (domain.Hotel, error)
	CreateRoom(ctx context.Context, ownerID string, in app.RoomInput) (domain.Room, error)
	ListRooms(ctx context.Context, f domain.RoomFilter) ([]domain.RoomWithHotel, error)
	OwnerRooms(ctx context.Context, ownerID string) ([]domain.RoomWithHotel, error)
	ToggleAvailability(ctx context.Context, ownerID, roomID string) (domain.Room, error)
}

type Bookings interface {
	CheckAvailability(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error)
	Book(ctx context.Context, u domain.User, req app.BookingRequest) (domain.Booking, error)
	UserBookings(ctx context.Context, userID string) ([]domain.BookingView, error)
	OwnerDashboard(ctx context.Context, ownerID string) (domain.Dashboard, error)
}

type Payments interface {
	StartCheckout(ctx context.Context, userID, bookingID, origin string) (string, error)
	HandleGatewayEvent(ctx context.Context, payload []byte, signature string) (domain.GatewayEvent, error)
}

type Handlers struct {
	Sessions SessionVerifier
	Identity Identity
	Catalog  Catalog
	Bookings Bookings
	Payments Payments
}

const (
	maxWebhookBody = 1 << 20
	maxUploadBody  = 32 << 20
)

func (s *Server) MountHandlers(h *Handlers) {
	alive := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("API is working fine")) }
	s.mux.Get("/", alive)
	s.mux.Get("/healthz", alive)

	// webhooks verify their own signatures over the raw body
	s.mux.Post("/api/clerk", h.identityWebhook)
	s.mux.Post("/api/stripe", h.gatewayWebhook)

	s.mux.Get("/api/rooms", h.listRooms)
	s.mux.Post("/api/bookings/check-availability", h.checkAvailability)

	s.mux.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Sessions, h.Identity))

		r.Get("/api/user", h.getUser)
		r.Post("/api/user/store-recent-search", h.storeRecentSearch)
		r.Post("/api/hotels", h.registerHotel)

		r.Post("/api/bookings/book", h.book)
		r.Get("/api/bookings/user", h.userBookings)
		r.Post("/api/bookings/stripe-payment", h.stripePayment)

		r.Group(func(r chi.Router) {
			r.Use(RequireOwner)
			r.Post("/api/rooms", h.createRoom)
			r.Get("/api/rooms/owner", h.ownerRooms)
			r.Post("/api/rooms/toggle-availability", h.toggleAvailability)
			r.Post("/api/bookings/hotel", h.hotelDashboard)
		})
	})
}

func mustUser(r *http.Request) domain.User {
	u, _ := UserFrom(r.Context())
	return u
}

/********** webhooks **********/

func readRaw(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeFail(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	return body, true
}

func (h *Handlers) identityWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readRaw(w, r)
	if !ok {
		return
	}
	hdr := domain.WebhookHeaders{
		ID:        r.Header.Get("svix-id"),
		Timestamp: r.Header.Get("svix-timestamp"),
		Signature: r.Header.Get("svix-signature"),
	}
	ev, err := h.Identity.HandleWebhook(r.Context(), hdr, body)
	if err != nil {
		if errors.Is(err, domain.ErrBadSignature) {
			observability.ObserveWebhook("clerk", "rejected")
		}
		writeErr(w, err)
		return
	}
	observability.ObserveWebhook("clerk", ev.Type)
	if ev.Kind == domain.IdentityEventUnknown {
		log.Info().Str("type", ev.Type).Msg("identity event ignored")
	}
	writeOK(w, envelope{"message": "Webhook Received"})
}

func (h *Handlers) gatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readRaw(w, r)
	if !ok {
		return
	}
	ev, err := h.Payments.HandleGatewayEvent(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrBadSignature) {
			observability.ObserveWebhook("stripe", "rejected")
			writeFail(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
			return
		}
		writeErr(w, err)
		return
	}
	observability.ObserveWebhook("stripe", ev.Type)
	if ev.Kind == domain.GatewayEventUnknown {
		log.Info().Str("type", ev.Type).Msg("unhandled gateway event")
	}
	writeJSON(w, http.StatusOK, envelope{"received": true})
}

/********** users **********/

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	u := mustUser(r)
	cities := u.RecentSearchedCities
	if cities == nil {
		cities = []string{}
	}
	writeOK(w, envelope{"role": u.Role, "recentSearchedCities": cities})
}

func (h *Handlers) storeRecentSearch(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RecentSearchedCity string `json:"recentSearchedCity"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if _, err := h.Identity.StoreRecentSearchedCity(r.Context(), mustUser(r), in.RecentSearchedCity); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"message": "City added"})
}

/********** hotels & rooms **********/

func (h *Handlers) registerHotel(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Contact string `json:"contact"`
		City    string `json:"city"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	_, err := h.Catalog.RegisterHotel(r.Context(), mustUser(r).ID, app.HotelInput{
		Name: in.Name, Address: in.Address, Contact: in.Contact, City: in.City,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeFail(w, http.StatusConflict, "Hotel Already Registered")
			return
		}
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"message": "Hotel Registered Successfully"})
}

// amenitiesField accepts a JSON array or a comma-separated list.
func amenitiesField(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	var out []string
	if strings.HasPrefix(v, "[") && json.Unmarshal([]byte(v), &out) == nil {
		return out
	}
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func openUploads(files []*multipart.FileHeader) ([]app.Upload, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	out := make([]app.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		opened = append(opened, f)
		out = append(out, app.Upload{Name: fh.Filename, Body: f})
	}
	return out, closeAll, nil
}

func (h *Handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	price, err := strconv.ParseFloat(r.FormValue("pricePerNight"), 64)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "pricePerNight must be a number")
		return
	}
	uploads, closeAll, err := openUploads(r.MultipartForm.File["images"])
	if err != nil {
		writeFail(w, http.StatusBadRequest, "unreadable image")
		return
	}
	defer closeAll()

	_, err = h.Catalog.CreateRoom(r.Context(), mustUser(r).ID, app.RoomInput{
		RoomType:      r.FormValue("roomType"),
		PricePerNight: price,
		Amenities:     amenitiesField(r.FormValue("amenities")),
		Images:        uploads,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"message": "Room created successfully"})
}

func (h *Handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rooms, err := h.Catalog.ListRooms(r.Context(), domain.RoomFilter{
		City:     q.Get("city"),
		RoomType: q.Get("roomType"),
		HotelID:  q.Get("hotel"),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"rooms": rooms})
}

func (h *Handlers) ownerRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Catalog.OwnerRooms(r.Context(), mustUser(r).ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"rooms": rooms})
}

func (h *Handlers) toggleAvailability(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RoomID string `json:"roomId"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	room, err := h.Catalog.ToggleAvailability(r.Context(), mustUser(r).ID, in.RoomID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"message": "Room availability Updated", "isAvailable": room.IsAvailable})
}

/********** bookings **********/

type bookingBody struct {
	Room         string `json:"room"`
	CheckInDate  date   `json:"checkInDate"`
	CheckOutDate date   `json:"checkOutDate"`
	Guests       count  `json:"guests"`
}

func (h *Handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var in bookingBody
	if !decodeJSON(w, r, &in) {
		return
	}
	ve := domain.NewValidationError()
	if strings.TrimSpace(in.Room) == "" {
		ve.Add("room", "room is required")
	}
	if in.CheckInDate.IsZero() || in.CheckOutDate.IsZero() {
		ve.Add("dates", "checkInDate and checkOutDate are required")
	}
	if err := ve.OrNil(); err != nil {
		writeErr(w, err)
		return
	}
	ok, err := h.Bookings.CheckAvailability(r.Context(), in.Room, in.CheckInDate.Time, in.CheckOutDate.Time)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"isAvailable": ok})
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case domain.AsValidationError(err) != nil, errors.Is(err, domain.ErrNotFound):
		return "rejected"
	case errors.Is(err, domain.ErrLookupFailed):
		return "busy"
	default:
		return "error"
	}
}

func (h *Handlers) book(w http.ResponseWriter, r *http.Request) {
	var in bookingBody
	if !decodeJSON(w, r, &in) {
		return
	}
	b, err := h.Bookings.Book(r.Context(), mustUser(r), app.BookingRequest{
		RoomID:   in.Room,
		CheckIn:  in.CheckInDate.Time,
		CheckOut: in.CheckOutDate.Time,
		Guests:   int(in.Guests),
	})
	observability.ObserveBooking(bookingOutcome(err))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"message": "Booking created successfully", "booking": b})
}

func (h *Handlers) userBookings(w http.ResponseWriter, r *http.Request) {
	out, err := h.Bookings.UserBookings(r.Context(), mustUser(r).ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"bookings": out})
}

func (h *Handlers) hotelDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Bookings.OwnerDashboard(r.Context(), mustUser(r).ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeFail(w, http.StatusNotFound, "No Hotel found")
			return
		}
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"dashboardData": d})
}

func (h *Handlers) stripePayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BookingID string `json:"bookingId"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.BookingID) == "" {
		writeFail(w, http.StatusBadRequest, "bookingId is required")
		return
	}
	url, err := h.Payments.StartCheckout(r.Context(), mustUser(r).ID, in.BookingID, r.Header.Get("Origin"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, envelope{"url": url})
}
