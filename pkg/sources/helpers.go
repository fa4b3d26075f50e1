package sources

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docsift/docsift/pkg/types"
)

// Composite-score terms. Lower scores rank earlier.
const (
	scoreExactTitle     = 0.0
	scoreTitleSubstring = 0.2
	scoreNeutral        = 0.6

	agePenaltyPerYear  = 0.02
	agePenaltyCapYears = 5.0
)

// Dedupe collapses duplicate results, keeping the first occurrence in input
// order. The key is source + ":" + id; results without an id fall back to a
// title/size/modified composite so identical attachments surfaced by two
// sub-queries still collapse.
func Dedupe(results []types.SearchResult) []types.SearchResult {
	if len(results) < 2 {
		return results
	}

	seen := make(map[string]struct{}, len(results))
	out := results[:0]
	for _, r := range results {
		key := dedupeKey(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func dedupeKey(r types.SearchResult) string {
	if r.ID != "" {
		return r.Source + ":" + r.ID
	}

	// Known approximation: two id-less files with equal title and size and
	// both timestamps unknown collide. Connectors are expected to supply ids.
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteByte(':')
	if r.Size != nil {
		b.WriteString(strconv.FormatInt(*r.Size, 10))
	}
	b.WriteByte(':')
	if r.Modified != nil {
		b.WriteString(strconv.FormatInt(*r.Modified, 10))
	}
	return b.String()
}

// Rank orders results by ascending composite score. Equal scores keep their
// input (merge) order, so ranking is deterministic for identical inputs.
func Rank(results []types.SearchResult, query string, now time.Time) []types.SearchResult {
	queryLower := strings.ToLower(query)

	type scored struct {
		result types.SearchResult
		score  float64
	}
	ranked := make([]scored, len(results))
	for i, r := range results {
		ranked[i] = scored{result: r, score: scoreFor(r, queryLower, now)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	out := make([]types.SearchResult, len(ranked))
	for i, s := range ranked {
		out[i] = s.result
	}
	return out
}

// scoreFor computes the composite score: a title-match term (skipped for
// empty queries) plus a light recency penalty. Relevance dominates; recency
// only breaks near-ties toward newer items.
func scoreFor(r types.SearchResult, queryLower string, now time.Time) float64 {
	return baseScore(r, queryLower) + agePenalty(r.Modified, now)
}

func baseScore(r types.SearchResult, queryLower string) float64 {
	if queryLower != "" {
		title := strings.ToLower(r.Title)
		if title == queryLower {
			return scoreExactTitle
		}
		if strings.Contains(title, queryLower) {
			return scoreTitleSubstring
		}
	}
	if r.Score > 0 {
		return r.Score
	}
	return scoreNeutral
}

func agePenalty(modified *int64, now time.Time) float64 {
	years := agePenaltyCapYears // unknown recency ranks as very old
	if modified != nil {
		years = now.Sub(time.UnixMilli(*modified)).Hours() / (24 * 365)
		if years < 0 {
			years = 0
		}
		if years > agePenaltyCapYears {
			years = agePenaltyCapYears
		}
	}
	return agePenaltyPerYear * years
}

// Truncate bounds the result list to max entries. Non-positive max means
// unbounded.
func Truncate(results []types.SearchResult, max int) []types.SearchResult {
	if max > 0 && len(results) > max {
		return results[:max]
	}
	return results
}

// filterByAccounts keeps results whose account alias is in the set. Entries
// are assumed normalized (bare aliases).
func filterByAccounts(results []types.SearchResult, accounts []string) []types.SearchResult {
	if len(accounts) == 0 {
		return results
	}

	allowed := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		allowed[a] = struct{}{}
	}

	out := results[:0]
	for _, r := range results {
		if _, ok := allowed[r.Account]; ok {
			out = append(out, r)
		}
	}
	return out
}

// filterBySources keeps results whose exact source tag is selected. A
// provider name entry selects all of that provider's tags; a fine-grained
// entry selects only itself, which is deliberately stricter than the
// family-based gating used to pick which connectors run: a gmail-attachment
// filter runs the whole Google connector but drops its drive results here.
func filterBySources(results []types.SearchResult, sources []string) []types.SearchResult {
	if len(sources) == 0 {
		return results
	}

	allowed := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if p := types.Provider(s); p.Valid() {
			for _, tag := range types.SourcesFor(p) {
				allowed[tag] = struct{}{}
			}
			continue
		}
		allowed[s] = struct{}{}
	}

	out := results[:0]
	for _, r := range results {
		if _, ok := allowed[r.Source]; ok {
			out = append(out, r)
		}
	}
	return out
}
