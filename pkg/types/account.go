package types

import "strings"

// Provider identifies one of the searchable source families.
type Provider string

const (
	ProviderLocal     Provider = "local"
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

func (p Provider) String() string {
	return string(p)
}

// Valid reports whether p names a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderMicrosoft:
		return true
	}
	return false
}

// Providers returns all providers in canonical merge order. The aggregator
// assembles results in this order so dedupe winners are deterministic.
func Providers() []Provider {
	return []Provider{ProviderLocal, ProviderGoogle, ProviderMicrosoft}
}

// Account is one configured identity for a provider. Alias is unique within
// the provider and keys the stored token record.
type Account struct {
	Provider     Provider `key:"provider" json:"provider"`
	Alias        string   `key:"alias" json:"alias"`
	ClientID     string   `key:"clientId" json:"client_id"`
	ClientSecret string   `key:"clientSecret" json:"-"`
	TenantID     string   `key:"tenantId" json:"tenant_id,omitempty"` // microsoft only
	RedirectURL  string   `key:"redirectUrl" json:"redirect_url"`
	Scopes       []string `key:"scopes" json:"scopes"`
}

// Key returns the credential-store key for this account.
func (a *Account) Key() string {
	return string(a.Provider) + ":" + a.Alias
}

// DefaultTenantID is used for Microsoft accounts that configure no tenant.
const DefaultTenantID = "common"

// Default OAuth scopes requested when an account configures none.
var (
	DefaultGoogleScopes = []string{
		"https://www.googleapis.com/auth/drive.readonly",
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/userinfo.email",
	}
	DefaultMicrosoftScopes = []string{
		"offline_access",
		"User.Read",
		"Files.Read.All",
		"Sites.Read.All",
		"Mail.Read",
	}
)

// DefaultScopes returns the provider's default OAuth scope list.
func DefaultScopes(p Provider) []string {
	switch p {
	case ProviderGoogle:
		return DefaultGoogleScopes
	case ProviderMicrosoft:
		return DefaultMicrosoftScopes
	}
	return nil
}

// Normalize applies provider defaults to the account: blank scope entries are
// dropped, duplicates removed order-preserving, and an empty list falls back
// to the provider default. Config loading calls this once so connectors never
// re-derive scope defaults inline.
func (a *Account) Normalize() {
	if a.Provider == ProviderMicrosoft && a.TenantID == "" {
		a.TenantID = DefaultTenantID
	}

	scopes := make([]string, 0, len(a.Scopes))
	seen := make(map[string]struct{}, len(a.Scopes))
	for _, s := range a.Scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		scopes = append(scopes, s)
	}
	if len(scopes) == 0 {
		scopes = append(scopes, DefaultScopes(a.Provider)...)
	} else if a.Provider == ProviderMicrosoft {
		// Without offline_access the identity platform never issues a
		// refresh token, so a custom scope list must not lose it.
		if _, ok := seen["offline_access"]; !ok {
			scopes = append([]string{"offline_access"}, scopes...)
		}
	}
	a.Scopes = scopes
}
