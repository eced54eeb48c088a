package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotel_booking/internal/domain"
)

// IdentityService keeps local user records in step with the identity provider.
type IdentityService struct {
	users    domain.UserRepository
	idp      domain.IdentityProvider
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewIdentityService(u domain.UserRepository, idp domain.IdentityProvider, c domain.Cache, ttl time.Duration) *IdentityService {
	return &IdentityService{users: u, idp: idp, cache: c, cacheTTL: ttl}
}

func userKey(id string) string { return "user:" + id }

// HandleWebhook verifies and applies one identity event. Unknown event types are
// acknowledged without side effects.
func (s *IdentityService) HandleWebhook(ctx context.Context, h domain.WebhookHeaders, body []byte) (domain.IdentityEvent, error) {
	raw, err := s.idp.VerifyWebhook(h, body)
	if err != nil {
		return domain.IdentityEvent{}, err
	}
	ev := mapIdentityEvent(raw)

	switch ev.Kind {
	case domain.IdentityUserCreated, domain.IdentityUserUpdated:
		if ev.User.ID == "" {
			return ev, fmt.Errorf("%s event without user id", ev.Type)
		}
		if err := s.users.Upsert(ctx, ev.User); err != nil {
			return ev, fmt.Errorf("upsert user %s: %w", ev.User.ID, err)
		}
	case domain.IdentityUserDeleted:
		if ev.User.ID == "" {
			return ev, fmt.Errorf("%s event without user id", ev.Type)
		}
		if err := s.users.Delete(ctx, ev.User.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return ev, fmt.Errorf("delete user %s: %w", ev.User.ID, err)
		}
	case domain.IdentityEventUnknown:
		return ev, nil
	}

	s.invalidateUser(ctx, ev.User.ID)
	return ev, nil
}

// Resolve loads the user behind an authenticated id. A user the webhook has not
// delivered yet is fetched from the provider and stored.
func (s *IdentityService) Resolve(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, userKey(id), &u); ok {
			return u, nil
		}
	}

	u, err := s.users.Get(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		raw, ferr := s.idp.FetchUser(ctx, id)
		if ferr != nil {
			return domain.User{}, fmt.Errorf("fetch user %s: %w", id, ferr)
		}
		u = mapUser(raw)
		if u.ID == "" {
			u.ID = id
		}
		if err := s.users.Upsert(ctx, u); err != nil {
			return domain.User{}, fmt.Errorf("store user %s: %w", id, err)
		}
		if u.RecentSearchedCities == nil {
			u.RecentSearchedCities = []string{}
		}
	default:
		return domain.User{}, fmt.Errorf("load user %s: %w: %w", id, domain.ErrLookupFailed, err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, userKey(id), u, int(s.cacheTTL.Seconds()))
	}
	return u, nil
}

// StoreRecentSearchedCity appends city to the user's history, keeping the newest few.
func (s *IdentityService) StoreRecentSearchedCity(ctx context.Context, u domain.User, city string) ([]string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		ve := domain.NewValidationError()
		ve.Add("recentSearchedCity", "recentSearchedCity is required")
		return nil, ve
	}
	cities := pushRecent(u.RecentSearchedCities, city, domain.MaxRecentCities)
	if err := s.users.SetRecentCities(ctx, u.ID, cities); err != nil {
		return nil, fmt.Errorf("save recent cities of %s: %w", u.ID, err)
	}
	s.invalidateUser(ctx, u.ID)
	return cities, nil
}

func (s *IdentityService) PromoteToOwner(ctx context.Context, id string) error {
	if err := s.users.SetRole(ctx, id, domain.RoleHotelOwner); err != nil {
		return fmt.Errorf("promote %s: %w", id, err)
	}
	s.invalidateUser(ctx, id)
	return nil
}

func (s *IdentityService) invalidateUser(ctx context.Context, id string) {
	if s.cache == nil || id == "" {
		return
	}
	_ = s.cache.Del(ctx, userKey(id))
}

// pushRecent drops the oldest entries once max is reached. It never aliases in.
func pushRecent(in []string, city string, max int) []string {
	out := make([]string, 0, max)
	out = append(out, in...)
	if len(out) >= max {
		out = out[len(out)-max+1:]
	}
	return append(out, city)
}
