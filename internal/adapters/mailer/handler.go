package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<div style="font-family: Arial, sans-serif;">
<h2>Your Booking Details</h2>
<p>Dear {{.Username}},</p>
<p>Thank you for your booking! Here are your details:</p>
<ul>
<li><strong>Booking ID:</strong> {{.BookingID}}</li>
<li><strong>Hotel Name:</strong> {{.HotelName}}</li>
<li><strong>Location:</strong> {{.Address}}</li>
<li><strong>Date:</strong> {{.CheckIn.Format "Mon Jan 02 2006"}}</li>
<li><strong>Booking Amount:</strong> {{.Currency}} {{printf "%.2f" .TotalPrice}} for {{.Nights}} night(s)</li>
</ul>
<p>We look forward to welcoming you!</p>
<p>If you need to make any changes, feel free to contact us.</p>
</div>`))

type confirmationView struct {
	domain.BookingConfirmation
	Nights int
}

func RenderConfirmation(c domain.BookingConfirmation) (string, error) {
	var buf bytes.Buffer
	v := confirmationView{BookingConfirmation: c, Nights: domain.Nights(c.CheckIn, c.CheckOut)}
	if err := confirmationTmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HandleBookingConfirmation sends the mail for one task. Malformed payloads are not retried.
func HandleBookingConfirmation(s Sender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var c domain.BookingConfirmation
		if err := json.Unmarshal(t.Payload(), &c); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if c.Email == "" {
			return fmt.Errorf("booking %s has no recipient: %w", c.BookingID, asynq.SkipRetry)
		}
		body, err := RenderConfirmation(c)
		if err != nil {
			return fmt.Errorf("render: %v: %w", err, asynq.SkipRetry)
		}
		if err := s.Send(ctx, c.Email, "Hotel Booking Details", body); err != nil {
			return err
		}
		log.Info().Str("booking", c.BookingID).Str("to", c.Email).Msg("confirmation mail sent")
		return nil
	}
}

func Register(mux *asynq.ServeMux, s Sender) {
	mux.HandleFunc(TypeBookingConfirmation, HandleBookingConfirmation(s))
}
