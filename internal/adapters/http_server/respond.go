package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

// envelope is the {success, ...} body every route answers with.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeOK(w http.ResponseWriter, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{"success": false, "message": msg})
}

// writeErr maps an error kind to a status and a client-safe message.
func writeErr(w http.ResponseWriter, err error) {
	if ve := domain.AsValidationError(err); ve != nil {
		writeJSON(w, http.StatusBadRequest, envelope{"success": false, "message": ve.Error(), "errors": ve.Fields()})
		return
	}
	switch {
	case errors.Is(err, domain.ErrBadSignature):
		writeFail(w, http.StatusBadRequest, domain.ErrBadSignature.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeFail(w, http.StatusConflict, domain.ErrUnavailable.Error())
	case errors.Is(err, domain.ErrConflict):
		writeFail(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeFail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeFail(w, http.StatusUnauthorized, "not authorized")
	case errors.Is(err, domain.ErrForbidden):
		writeFail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrLookupFailed):
		log.Warn().Err(err).Msg("lookup failed")
		writeFail(w, http.StatusServiceUnavailable, "temporarily unavailable, try again")
	case errors.Is(err, domain.ErrGateway):
		log.Error().Err(err).Msg("payment gateway failure")
		writeFail(w, http.StatusBadGateway, "payment provider unavailable")
	default:
		log.Error().Err(err).Msg("request failed")
		writeFail(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// date accepts a calendar day (2006-01-02) or an RFC 3339 timestamp.
type date struct{ time.Time }

func (d *date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// count accepts 2 or "2".
type count int

func (c *count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
	if err != nil {
		return err
	}
	*c = count(n)
	return nil
}
