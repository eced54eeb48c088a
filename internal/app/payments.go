package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

// PaymentService drives the hosted checkout and applies gateway outcomes to bookings.
type PaymentService struct {
	engine  *Engine
	ledger  domain.BookingRepository
	catalog domain.CatalogRepository
	gateway domain.PaymentGateway
}

func NewPaymentService(e *Engine, l domain.BookingRepository, c domain.CatalogRepository, g domain.PaymentGateway) *PaymentService {
	return &PaymentService{engine: e, ledger: l, catalog: c, gateway: g}
}

// StartCheckout opens a gateway session for one of the user's bookings and returns
// the URL the client should be sent to.
func (s *PaymentService) StartCheckout(ctx context.Context, userID, bookingID, origin string) (string, error) {
	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if b.UserID != userID {
		return "", fmt.Errorf("booking %s: %w", bookingID, domain.ErrForbidden)
	}
	if b.IsPaid {
		return "", fmt.Errorf("booking %s already paid: %w", bookingID, domain.ErrConflict)
	}

	name := "Hotel booking"
	if h, err := s.catalog.GetHotel(ctx, b.HotelID); err == nil && h.Name != "" {
		name = h.Name
	}
	origin = strings.TrimRight(origin, "/")
	sess, err := s.gateway.CreateCheckout(ctx, domain.CheckoutRequest{
		BookingID:  b.ID,
		Name:       name,
		Amount:     b.TotalPrice,
		SuccessURL: origin + "/loader/my-bookings",
		CancelURL:  origin + "/my-bookings",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}

	if _, err := s.ledger.UpdateByID(ctx, b.ID, domain.BookingUpdate{CheckoutSessionID: &sess.ID}); err != nil {
		return "", fmt.Errorf("remember session of booking %s: %w", b.ID, err)
	}
	return sess.URL, nil
}

// HandleGatewayEvent verifies and applies one gateway webhook delivery.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, payload []byte, signature string) (domain.GatewayEvent, error) {
	ev, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		return domain.GatewayEvent{}, err
	}

	switch ev.Kind {
	case domain.GatewayCheckoutCompleted:
		// deliveries that can never apply are acknowledged so the gateway stops redelivering
		if ev.BookingID == "" {
			log.Warn().Str("session", ev.SessionID).Msg("booking id not found in session metadata")
			return ev, nil
		}
		err := s.engine.MarkPaid(ctx, ev.BookingID, domain.PaymentMethodStripe)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Str("session", ev.SessionID).Str("booking", ev.BookingID).Msg("paid booking no longer exists")
			return ev, nil
		}
		if err != nil {
			return ev, err
		}
	case domain.GatewayEventUnknown:
	}
	return ev, nil
}

// PendingSessions lists unpaid bookings that already went through checkout.
func (s *PaymentService) PendingSessions(ctx context.Context, limit int) ([]domain.Booking, error) {
	return s.ledger.ListUnpaid(ctx, limit)
}

// Reconcile asks the gateway about the booking's session and marks the booking paid
// when the session completed. It reports whether the booking changed.
func (s *PaymentService) Reconcile(ctx context.Context, b domain.Booking) (bool, error) {
	if b.IsPaid || b.CheckoutSessionID == "" {
		return false, nil
	}
	sess, err := s.gateway.GetSession(ctx, b.CheckoutSessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", domain.ErrGateway, err)
	}
	if !sess.Complete || !sess.Paid {
		return false, nil
	}
	if err := s.engine.MarkPaid(ctx, b.ID, domain.PaymentMethodStripe); err != nil {
		return false, err
	}
	return true, nil
}
