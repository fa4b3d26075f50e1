package types

import "strings"

// Source tags identify the fine-grained origin of a result within a provider.
const (
	SourceLocal             = "local"
	SourceGoogleDrive       = "google-drive"
	SourceGmailAttachment   = "gmail-attachment"
	SourceOneDrive          = "microsoft-onedrive"
	SourceSharePoint        = "microsoft-sharepoint"
	SourceTeams             = "microsoft-teams"
	SourceOutlookAttachment = "microsoft-outlook-attachment"
)

// providerSources maps each provider to the source tags it can emit, in
// within-account merge order.
var providerSources = map[Provider][]string{
	ProviderLocal:     {SourceLocal},
	ProviderGoogle:    {SourceGoogleDrive, SourceGmailAttachment},
	ProviderMicrosoft: {SourceOneDrive, SourceSharePoint, SourceTeams, SourceOutlookAttachment},
}

// SourcesFor returns the source tags a provider can emit.
func SourcesFor(p Provider) []string {
	return providerSources[p]
}

// KnownSource reports whether tag is a provider name or an exact source tag.
func KnownSource(tag string) bool {
	if Provider(tag).Valid() {
		return true
	}
	for _, tags := range providerSources {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
	}
	return false
}

// SourceSelectsProvider reports whether a source filter entry selects the
// given provider. Matching is family-based: the coarse provider name and any
// of the provider's fine-grained tags select it interchangeably, so a UI can
// filter by either.
func SourceSelectsProvider(entry string, p Provider) bool {
	if entry == string(p) {
		return true
	}
	for _, t := range providerSources[p] {
		if t == entry {
			return true
		}
	}
	return false
}

// SearchResult is the normalized record every connector emits. IDs are
// provider-namespaced (e.g. "gdrive:<fileId>") and stable for the same
// underlying item, so (Source, ID) keys dedupe. Results live only for the
// duration of one search call.
type SearchResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	Account  string `json:"account"`
	URL      string `json:"url,omitempty"`
	Modified *int64 `json:"modified"` // epoch millis; null = unknown recency, ranks as very old
	Size     *int64 `json:"size"`     // bytes; null = unknown
	Owner    string `json:"owner,omitempty"`

	// Score is an optional connector-supplied relevance hint in (0, 1),
	// lower = better. Zero means unset; ranking then falls back to the
	// neutral default. Never serialized.
	Score float64 `json:"-"`
}

// SearchRequest carries one aggregated search call.
type SearchRequest struct {
	Query    string   `json:"name"`
	Sources  []string `json:"sources,omitempty"`  // provider names or exact tags; empty = all
	Accounts []string `json:"accounts,omitempty"` // alias or provider:alias; empty = all
}

// NormalizeAccountRef reduces a "provider:alias" account reference to the
// bare alias. Entries whose prefix is not a known provider pass through
// unchanged.
func NormalizeAccountRef(entry string) string {
	if i := strings.IndexByte(entry, ':'); i > 0 {
		if Provider(entry[:i]).Valid() {
			return entry[i+1:]
		}
	}
	return entry
}
