package stripead

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

const bookingIDKey = "bookingId"

// Gateway is the hosted-checkout payment gateway.
type Gateway struct {
	sc            *client.API
	webhookSecret string
	currency      string
}

// New builds a gateway. backends may be nil; tests point it at a local server.
func New(secretKey, webhookSecret, currency string, backends *stripe.Backends) *Gateway {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Gateway{
		sc:            client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

var _ domain.PaymentGateway = (*Gateway)(nil)

// toMinor converts an amount in major units to cents.
func toMinor(amount float64) int64 { return int64(math.Round(amount * 100)) }

func (g *Gateway) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.Name)},
				UnitAmount:  stripe.Int64(toMinor(req.Amount)),
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(bookingIDKey, req.BookingID)

	start := time.Now()
	s, err := g.sc.CheckoutSessions.New(params)
	observability.ObserveExternal("stripe", "checkout_sessions.create", statusOf(err), time.Since(start))
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return toSession(s), nil
}

func (g *Gateway) GetSession(ctx context.Context, id string) (domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	start := time.Now()
	s, err := g.sc.CheckoutSessions.Get(id, params)
	observability.ObserveExternal("stripe", "checkout_sessions.get", statusOf(err), time.Since(start))
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return domain.CheckoutSession{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		return domain.CheckoutSession{}, fmt.Errorf("get checkout session %s: %w", id, err)
	}
	return toSession(s), nil
}

// ParseEvent verifies the Stripe-Signature header and decodes checkout events.
func (g *Gateway) ParseEvent(payload []byte, signature string) (domain.GatewayEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return domain.GatewayEvent{}, fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}

	out := domain.GatewayEvent{Kind: domain.ParseGatewayEventKind(string(ev.Type)), Type: string(ev.Type)}
	switch out.Kind {
	case domain.GatewayCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return domain.GatewayEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = s.ID
		out.BookingID = s.Metadata[bookingIDKey]
	case domain.GatewayEventUnknown:
	}
	return out, nil
}

func toSession(s *stripe.CheckoutSession) domain.CheckoutSession {
	return domain.CheckoutSession{
		ID:        s.ID,
		URL:       s.URL,
		BookingID: s.Metadata[bookingIDKey],
		Complete:  s.Status == stripe.CheckoutSessionStatusComplete,
		Paid:      s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode
	}
	return 0
}
