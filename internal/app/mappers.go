package app

import (
	"strings"
	"time"

	"hotel_booking/internal/domain"
)

/********** alias registry **********/

var userAliases = map[string][]string{
	"id":         {"id", "user_id"},
	"first":      {"first_name", "firstName"},
	"last":       {"last_name", "lastName"},
	"username":   {"username", "name"},
	"image":      {"image_url", "profile_image_url", "imageUrl"},
	"primary_id": {"primary_email_address_id"},
	"created_at": {"created_at", "createdAt"},
	"updated_at": {"updated_at", "updatedAt"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstAlias: first non-empty string for a named alias set.
func firstAlias(m map[string]any, key string) string {
	for _, p := range userAliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// millisAlias reads an epoch-milliseconds number (float64 after JSON decode).
func millisAlias(m map[string]any, key string) time.Time {
	for _, p := range userAliases[key] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			return time.UnixMilli(int64(v)).UTC()
		case int64:
			return time.UnixMilli(v).UTC()
		}
	}
	return time.Time{}
}

// primaryEmail prefers the address whose id matches primary_email_address_id,
// otherwise the first listed address.
func primaryEmail(m map[string]any) string {
	list, _ := lookupAny(m, "email_addresses").([]any)
	primary := firstAlias(m, "primary_id")
	first := ""
	for _, it := range list {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		addr := lookupStr(obj, "email_address")
		if addr == "" {
			continue
		}
		if first == "" {
			first = addr
		}
		if primary != "" && lookupStr(obj, "id") == primary {
			return addr
		}
	}
	return first
}

/********** mappers **********/

func mapUser(data map[string]any) domain.User {
	u := domain.User{
		ID:    firstAlias(data, "id"),
		Email: primaryEmail(data),
		Image: firstAlias(data, "image"),
		Role:  domain.RoleUser,
	}
	u.Username = joinNonEmpty(firstAlias(data, "first"), firstAlias(data, "last"))
	if u.Username == "" {
		u.Username = firstAlias(data, "username")
	}
	if u.Username == "" {
		if at := strings.IndexByte(u.Email, '@'); at > 0 {
			u.Username = u.Email[:at]
		}
	}
	u.CreatedAt = millisAlias(data, "created_at")
	u.UpdatedAt = millisAlias(data, "updated_at")
	return u
}

func mapIdentityEvent(raw domain.RawIdentityEvent) domain.IdentityEvent {
	return domain.IdentityEvent{
		Kind: domain.ParseIdentityEventKind(raw.Type),
		Type: raw.Type,
		User: mapUser(raw.Data),
	}
}
