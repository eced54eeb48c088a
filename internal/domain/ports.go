package domain

import (
	"context"
	"io"
	"time"
)

// BookingRepository is the reservation ledger.
type BookingRepository interface {
	// Read paths
	FindOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) ([]Booking, error)
	Get(ctx context.Context, id string) (Booking, error)
	ListByUser(ctx context.Context, userID string) ([]BookingView, error)
	ListByHotel(ctx context.Context, hotelID string) ([]BookingView, error)
	ListUnpaid(ctx context.Context, limit int) ([]Booking, error)

	// Write paths
	// Reserve re-checks the overlap predicate and inserts b as one atomic step.
	// A conflicting booking yields ErrUnavailable.
	Reserve(ctx context.Context, b Booking) (Booking, error)
	UpdateByID(ctx context.Context, id string, u BookingUpdate) (Booking, error)
}

type CatalogRepository interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomWithHotel(ctx context.Context, roomID string) (RoomWithHotel, error)
	GetHotel(ctx context.Context, id string) (Hotel, error)
	GetHotelByOwner(ctx context.Context, ownerID string) (Hotel, error)
	ListAvailableRooms(ctx context.Context) ([]RoomWithHotel, error)
	ListRoomsByHotel(ctx context.Context, hotelID string) ([]RoomWithHotel, error)

	// CreateHotel fails with ErrConflict when the owner already has a hotel.
	CreateHotel(ctx context.Context, h Hotel) error
	CreateRoom(ctx context.Context, r Room) error
	SetRoomAvailability(ctx context.Context, roomID string, available bool) error
}

type UserRepository interface {
	Get(ctx context.Context, id string) (User, error)
	Upsert(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
	SetRole(ctx context.Context, id string, role Role) error
	SetRecentCities(ctx context.Context, id string, cities []string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ---- payment gateway ----

type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	GetSession(ctx context.Context, id string) (CheckoutSession, error)
	// ParseEvent verifies the signature header and decodes the event.
	ParseEvent(payload []byte, signature string) (GatewayEvent, error)
}

type CheckoutRequest struct {
	BookingID  string
	Name       string
	Amount     float64
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID        string
	URL       string
	BookingID string
	Complete  bool
	Paid      bool
}

type GatewayEventKind int

const (
	GatewayEventUnknown GatewayEventKind = iota
	GatewayCheckoutCompleted
)

func ParseGatewayEventKind(tag string) GatewayEventKind {
	switch tag {
	case "checkout.session.completed":
		return GatewayCheckoutCompleted
	default:
		return GatewayEventUnknown
	}
}

type GatewayEvent struct {
	Kind      GatewayEventKind
	Type      string
	SessionID string
	BookingID string
}

// ---- identity provider ----

type IdentityProvider interface {
	// VerifySession validates a session token and returns the user id it was issued for.
	VerifySession(ctx context.Context, token string) (string, error)
	// FetchUser returns the provider's raw user object.
	FetchUser(ctx context.Context, id string) (map[string]any, error)
	// VerifyWebhook checks the signature headers against body and decodes the envelope.
	VerifyWebhook(h WebhookHeaders, body []byte) (RawIdentityEvent, error)
}

type RawIdentityEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type WebhookHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

type IdentityEventKind int

const (
	IdentityEventUnknown IdentityEventKind = iota
	IdentityUserCreated
	IdentityUserUpdated
	IdentityUserDeleted
)

func ParseIdentityEventKind(tag string) IdentityEventKind {
	switch tag {
	case "user.created":
		return IdentityUserCreated
	case "user.updated":
		return IdentityUserUpdated
	case "user.deleted":
		return IdentityUserDeleted
	default:
		return IdentityEventUnknown
	}
}

type IdentityEvent struct {
	Kind IdentityEventKind
	Type string
	User User
}

// ---- images & mail ----

type ImageStore interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}

type Notifier interface {
	EnqueueBookingConfirmation(ctx context.Context, c BookingConfirmation) error
}

type BookingConfirmation struct {
	BookingID  string    `json:"bookingId"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	HotelName  string    `json:"hotelName"`
	Address    string    `json:"address"`
	CheckIn    time.Time `json:"checkIn"`
	CheckOut   time.Time `json:"checkOut"`
	TotalPrice float64   `json:"totalPrice"`
	Currency   string    `json:"currency"`
}
