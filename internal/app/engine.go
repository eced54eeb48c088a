package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hotel_booking/internal/domain"
)

// Engine decides whether a room can be booked and produces the booking record.
type Engine struct {
	ledger  domain.BookingRepository
	catalog domain.CatalogRepository

	now             func() time.Time
	newID           func() string
	paidOnlyRevenue bool
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) { e.newID = gen }
}

// WithPaidOnlyRevenue makes dashboards count revenue from paid bookings only.
// By default every booking of the hotel contributes.
func WithPaidOnlyRevenue(on bool) EngineOption {
	return func(e *Engine) { e.paidOnlyRevenue = on }
}

func NewEngine(l domain.BookingRepository, c domain.CatalogRepository, opts ...EngineOption) *Engine {
	e := &Engine{
		ledger:  l,
		catalog: c,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type BookingRequest struct {
	RoomID   string
	UserID   string
	CheckIn  time.Time
	CheckOut time.Time
	Guests   int
}

func (r BookingRequest) validate() error {
	ve := domain.NewValidationError()
	if strings.TrimSpace(r.RoomID) == "" {
		ve.Add("room", "room is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		ve.Add("user", "user is required")
	}
	if r.CheckIn.IsZero() {
		ve.Add("checkInDate", "checkInDate is required")
	}
	if r.CheckOut.IsZero() {
		ve.Add("checkOutDate", "checkOutDate is required")
	}
	if !r.CheckIn.IsZero() && !r.CheckOut.IsZero() && !r.CheckOut.After(r.CheckIn) {
		ve.Add("checkOutDate", "checkOutDate must be after checkInDate")
	}
	if r.Guests <= 0 {
		ve.Add("guests", "guests must be a positive integer")
	}
	return ve.OrNil()
}

// CheckAvailability reports whether no stored booking of the room overlaps the range.
// A ledger failure is reported as ErrLookupFailed, never as "unavailable".
func (e *Engine) CheckAvailability(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	found, err := e.ledger.FindOverlapping(ctx, roomID, checkIn, checkOut)
	if err != nil {
		return false, fmt.Errorf("check availability of room %s: %w: %w", roomID, domain.ErrLookupFailed, err)
	}
	return len(found) == 0, nil
}

func (e *Engine) CreateBooking(ctx context.Context, req BookingRequest) (domain.Booking, error) {
	if err := req.validate(); err != nil {
		return domain.Booking{}, err
	}

	ok, err := e.CheckAvailability(ctx, req.RoomID, req.CheckIn, req.CheckOut)
	if err != nil {
		return domain.Booking{}, err
	}
	if !ok {
		return domain.Booking{}, domain.ErrUnavailable
	}

	room, err := e.catalog.GetRoomWithHotel(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Booking{}, fmt.Errorf("room %s: %w", req.RoomID, domain.ErrNotFound)
		}
		return domain.Booking{}, fmt.Errorf("load room %s: %w: %w", req.RoomID, domain.ErrLookupFailed, err)
	}

	nights := domain.Nights(req.CheckIn, req.CheckOut)
	now := e.now()
	b := domain.Booking{
		ID:           e.newID(),
		UserID:       req.UserID,
		RoomID:       room.ID,
		HotelID:      room.Hotel.ID,
		CheckInDate:  req.CheckIn,
		CheckOutDate: req.CheckOut,
		Guests:       req.Guests,
		TotalPrice:   domain.TotalPrice(room.PricePerNight, nights),
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// the ledger re-checks under its own guard; a concurrent reservation surfaces as ErrUnavailable
	created, err := e.ledger.Reserve(ctx, b)
	if err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			return domain.Booking{}, domain.ErrUnavailable
		}
		return domain.Booking{}, fmt.Errorf("reserve room %s: %w", req.RoomID, err)
	}
	return created, nil
}

// MarkPaid sets the paid flag and payment method. Repeating the call is harmless.
func (e *Engine) MarkPaid(ctx context.Context, bookingID, method string) error {
	paid := true
	_, err := e.ledger.UpdateByID(ctx, bookingID, domain.BookingUpdate{IsPaid: &paid, PaymentMethod: &method})
	if err != nil {
		return fmt.Errorf("mark booking %s paid: %w", bookingID, err)
	}
	return nil
}

func (e *Engine) HotelDashboard(ctx context.Context, hotelID string) (domain.Dashboard, error) {
	bookings, err := e.ledger.ListByHotel(ctx, hotelID)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("list bookings of hotel %s: %w: %w", hotelID, domain.ErrLookupFailed, err)
	}
	d := domain.Dashboard{TotalBookings: len(bookings), Bookings: bookings}
	for _, b := range bookings {
		if e.paidOnlyRevenue && !b.IsPaid {
			continue
		}
		d.TotalRevenue += b.TotalPrice
	}
	if d.Bookings == nil {
		d.Bookings = []domain.BookingView{}
	}
	return d, nil
}

// OwnerDashboard resolves the hotel owned by ownerID and reduces its bookings.
func (e *Engine) OwnerDashboard(ctx context.Context, ownerID string) (domain.Dashboard, error) {
	h, err := e.catalog.GetHotelByOwner(ctx, ownerID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	return e.HotelDashboard(ctx, h.ID)
}

func (e *Engine) UserBookings(ctx context.Context, userID string) ([]domain.BookingView, error) {
	out, err := e.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of user %s: %w: %w", userID, domain.ErrLookupFailed, err)
	}
	if out == nil {
		out = []domain.BookingView{}
	}
	return out, nil
}
