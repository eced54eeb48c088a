package clerk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"hotel_booking/internal/domain"
)

// VerifyWebhook checks the svix signature headers against body and decodes the envelope.
// Deliveries older or newer than five minutes are rejected.
func (c *Client) VerifyWebhook(h domain.WebhookHeaders, body []byte) (domain.RawIdentityEvent, error) {
	if c.wh == nil {
		return domain.RawIdentityEvent{}, errors.New("webhook secret not configured")
	}
	hdr := http.Header{}
	hdr.Set("svix-id", h.ID)
	hdr.Set("svix-timestamp", h.Timestamp)
	hdr.Set("svix-signature", h.Signature)
	if err := c.wh.Verify(body, hdr); err != nil {
		return domain.RawIdentityEvent{}, fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}

	var ev domain.RawIdentityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return domain.RawIdentityEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	return ev, nil
}
