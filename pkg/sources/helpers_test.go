package sources

import (
	"testing"
	"time"

	"github.com/docsift/docsift/pkg/types"
)

var rankNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}

func result(id, title string, modified *int64) types.SearchResult {
	return types.SearchResult{
		ID:       id,
		Title:    title,
		Source:   types.SourceLocal,
		Modified: modified,
	}
}

func ids(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestDedupe_FirstOccurrenceWins(t *testing.T) {
	in := []types.SearchResult{
		{ID: "gdrive:1", Source: types.SourceGoogleDrive, Account: "work"},
		{ID: "gdrive:2", Source: types.SourceGoogleDrive, Account: "work"},
		{ID: "gdrive:1", Source: types.SourceGoogleDrive, Account: "personal"},
	}

	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].Account != "work" {
		t.Errorf("expected first occurrence (work) to win, got %q", out[0].Account)
	}
}

func TestDedupe_SameIDDifferentSourceKept(t *testing.T) {
	// A Graph item surfaced as both onedrive and sharepoint carries distinct
	// source tags, so both survive.
	in := []types.SearchResult{
		{ID: "msgraph:7", Source: types.SourceOneDrive},
		{ID: "msgraph:7", Source: types.SourceSharePoint},
	}

	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
}

func TestDedupe_FallbackKey(t *testing.T) {
	size := int64(1024)
	otherSize := int64(2048)
	mod := int64(1700000000000)

	in := []types.SearchResult{
		{Title: "report.pdf", Source: types.SourceGmailAttachment, Size: &size, Modified: &mod},
		{Title: "report.pdf", Source: types.SourceGmailAttachment, Size: &size, Modified: &mod},
		{Title: "report.pdf", Source: types.SourceGmailAttachment, Size: &otherSize, Modified: &mod},
	}

	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected identical id-less entries to collapse, got %d results", len(out))
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []types.SearchResult{
		{ID: "a", Source: types.SourceLocal},
		{ID: "b", Source: types.SourceLocal},
		{ID: "a", Source: types.SourceLocal},
	}

	once := Dedupe(in)
	twice := Dedupe(append([]types.SearchResult(nil), once...))
	if len(once) != len(twice) {
		t.Fatalf("dedupe not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Errorf("order changed on second pass at %d: %q vs %q", i, once[i].ID, twice[i].ID)
		}
	}
}

func TestRank_ExactBeforeSubstringBeforeNeutral(t *testing.T) {
	recent := millis(rankNow.Add(-time.Hour))
	in := []types.SearchResult{
		result("neutral", "meeting notes", recent),
		result("substring", "budget 2025.xlsx", recent),
		result("exact", "budget", recent),
	}

	out := Rank(in, "budget", rankNow)
	want := []string{"exact", "substring", "neutral"}
	got := ids(out)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestRank_TitleMatchIsCaseInsensitive(t *testing.T) {
	recent := millis(rankNow.Add(-time.Hour))
	in := []types.SearchResult{
		result("substring", "Annual Report.pdf", recent),
		result("exact", "Report.PDF", recent),
	}

	out := Rank(in, "report.pdf", rankNow)
	if out[0].ID != "exact" {
		t.Fatalf("expected case-insensitive exact match first, got %v", ids(out))
	}
}

func TestRank_ExactBeatsSubstringRegardlessOfRecency(t *testing.T) {
	// Worst-case recency for the exact hit: unknown timestamp takes the full
	// age penalty, which still lands below the substring base score.
	in := []types.SearchResult{
		result("substring", "budget plan", millis(rankNow)),
		result("exact", "budget", nil),
	}

	out := Rank(in, "budget", rankNow)
	if out[0].ID != "exact" {
		t.Fatalf("expected exact title match first, got %v", ids(out))
	}
}

func TestRank_RecencyBreaksTies(t *testing.T) {
	in := []types.SearchResult{
		result("old", "budget plan", millis(rankNow.AddDate(-3, 0, 0))),
		result("new", "budget draft", millis(rankNow.Add(-time.Hour))),
	}

	out := Rank(in, "budget", rankNow)
	if out[0].ID != "new" {
		t.Fatalf("expected newer item first among equal matches, got %v", ids(out))
	}
}

func TestRank_NilModifiedRanksAsVeryOld(t *testing.T) {
	in := []types.SearchResult{
		result("unknown", "budget a", nil),
		result("ancient", "budget b", millis(rankNow.AddDate(-20, 0, 0))),
		result("recent", "budget c", millis(rankNow.Add(-time.Minute))),
	}

	out := Rank(in, "budget", rankNow)
	if out[0].ID != "recent" {
		t.Fatalf("expected recent item first, got %v", ids(out))
	}
	// The age penalty caps out, so unknown and very old tie and keep input order.
	if out[1].ID != "unknown" || out[2].ID != "ancient" {
		t.Errorf("expected capped penalties to preserve input order, got %v", ids(out))
	}
}

func TestRank_EmptyQueryIsStable(t *testing.T) {
	mod := millis(rankNow.Add(-time.Hour))
	in := []types.SearchResult{
		result("a", "zebra", mod),
		result("b", "apple", mod),
		result("c", "mango", mod),
	}

	out := Rank(in, "", rankNow)
	want := []string{"a", "b", "c"}
	got := ids(out)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("empty-query rank must preserve merge order: got %v, want %v", got, want)
		}
	}
}

func TestRank_ConnectorScoreHint(t *testing.T) {
	mod := millis(rankNow.Add(-time.Hour))

	strong := result("strong", "alpha", mod)
	strong.Score = 0.35
	weak := result("weak", "omega", mod)

	out := Rank([]types.SearchResult{weak, strong}, "", rankNow)
	if out[0].ID != "strong" {
		t.Fatalf("expected connector-scored result before the neutral default, got %v", ids(out))
	}
}

func TestTruncate(t *testing.T) {
	in := make([]types.SearchResult, 10)
	for i := range in {
		in[i] = result(string(rune('a'+i)), "x", nil)
	}

	if got := Truncate(in, 4); len(got) != 4 {
		t.Errorf("expected 4 results, got %d", len(got))
	}
	if got := Truncate(in, 100); len(got) != 10 {
		t.Errorf("expected all 10 results, got %d", len(got))
	}
	if got := Truncate(in, 0); len(got) != 10 {
		t.Errorf("non-positive max must not truncate, got %d", len(got))
	}
}

func TestFilterByAccounts(t *testing.T) {
	in := []types.SearchResult{
		{ID: "1", Account: "work"},
		{ID: "2", Account: "personal"},
		{ID: "3", Account: ""}, // local results carry no account
	}

	out := filterByAccounts(append([]types.SearchResult(nil), in...), []string{"work"})
	if len(out) != 1 || out[0].ID != "1" {
		t.Fatalf("expected only the work result, got %v", ids(out))
	}

	all := filterByAccounts(append([]types.SearchResult(nil), in...), nil)
	if len(all) != 3 {
		t.Errorf("empty filter must keep everything, got %d", len(all))
	}
}

func TestFilterBySources(t *testing.T) {
	in := []types.SearchResult{
		{ID: "1", Source: types.SourceGoogleDrive},
		{ID: "2", Source: types.SourceGmailAttachment},
		{ID: "3", Source: types.SourceLocal},
	}

	// A fine-grained tag matches exactly, even though the whole Google
	// connector ran for it.
	out := filterBySources(append([]types.SearchResult(nil), in...), []string{types.SourceGmailAttachment})
	if len(out) != 1 || out[0].ID != "2" {
		t.Fatalf("expected only the gmail attachment, got %v", ids(out))
	}

	// A provider name selects every tag in its family.
	out = filterBySources(append([]types.SearchResult(nil), in...), []string{"google"})
	if len(out) != 2 {
		t.Fatalf("expected both google results for a family entry, got %v", ids(out))
	}

	out = filterBySources(append([]types.SearchResult(nil), in...), []string{"google", types.SourceLocal})
	if len(out) != 3 {
		t.Fatalf("expected family plus exact entries to union, got %v", ids(out))
	}
}
