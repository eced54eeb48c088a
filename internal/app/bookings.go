package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

// BookingService runs the engine for an authenticated user and fires the
// confirmation mail once a booking is stored.
type BookingService struct {
	engine   *Engine
	catalog  domain.CatalogRepository
	notifier domain.Notifier
	currency string
}

func NewBookingService(e *Engine, c domain.CatalogRepository, n domain.Notifier, currency string) *BookingService {
	return &BookingService{engine: e, catalog: c, notifier: n, currency: currency}
}

func (s *BookingService) CheckAvailability(ctx context.Context, roomID string, checkIn, checkOut time.Time) (bool, error) {
	return s.engine.CheckAvailability(ctx, roomID, checkIn, checkOut)
}

func (s *BookingService) UserBookings(ctx context.Context, userID string) ([]domain.BookingView, error) {
	return s.engine.UserBookings(ctx, userID)
}

func (s *BookingService) OwnerDashboard(ctx context.Context, ownerID string) (domain.Dashboard, error) {
	return s.engine.OwnerDashboard(ctx, ownerID)
}

// Book creates the booking for u. A failed mail enqueue is logged and does not
// undo the booking.
func (s *BookingService) Book(ctx context.Context, u domain.User, req BookingRequest) (domain.Booking, error) {
	req.UserID = u.ID
	b, err := s.engine.CreateBooking(ctx, req)
	if err != nil {
		return domain.Booking{}, err
	}
	if s.notifier == nil || u.Email == "" {
		return b, nil
	}

	msg := domain.BookingConfirmation{
		BookingID:  b.ID,
		Email:      u.Email,
		Username:   u.Username,
		CheckIn:    b.CheckInDate,
		CheckOut:   b.CheckOutDate,
		TotalPrice: b.TotalPrice,
		Currency:   s.currency,
	}
	if h, err := s.catalog.GetHotel(ctx, b.HotelID); err == nil {
		msg.HotelName = h.Name
		msg.Address = h.Address
	}
	if err := s.notifier.EnqueueBookingConfirmation(ctx, msg); err != nil {
		log.Warn().Err(err).Str("booking", b.ID).Msg("enqueue confirmation mail failed")
	}
	return b, nil
}
