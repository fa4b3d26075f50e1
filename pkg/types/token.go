package types

import "time"

// RefreshBuffer is the safety window before expiry inside which an access
// token is treated as stale and refreshed instead of used. Covers clock skew
// between this process and the provider's token service.
const RefreshBuffer = 5 * time.Minute

// TokenRecord is the persisted OAuth state for one (provider, alias) pair.
// Only the token manager writes it, after a successful exchange or refresh.
type TokenRecord struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	ExpiresAt    int64             `json:"expires_at,omitempty"` // epoch millis; 0 = unknown expiry
	Scopes       []string          `json:"scopes,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"` // provider-specific opaque state
}

// ExpiryTime returns ExpiresAt as a time.Time, or the zero time when unknown.
func (t *TokenRecord) ExpiryTime() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.ExpiresAt)
}

// Clone returns a deep copy so callers can hold a record without sharing
// the backing slices and maps.
func (t *TokenRecord) Clone() *TokenRecord {
	if t == nil {
		return nil
	}
	out := *t
	if t.Scopes != nil {
		out.Scopes = append([]string(nil), t.Scopes...)
	}
	if t.Extra != nil {
		out.Extra = make(map[string]string, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// Fresh reports whether the access token is usable at the given instant:
// present, with a known expiry more than RefreshBuffer in the future. A token
// with unknown expiry is never fresh.
func (t *TokenRecord) Fresh(now time.Time) bool {
	if t == nil || t.AccessToken == "" || t.ExpiresAt == 0 {
		return false
	}
	return t.ExpiryTime().Sub(now) > RefreshBuffer
}
