package sources

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docsift/docsift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConnector is a scripted connector for aggregator tests.
type stubConnector struct {
	provider types.Provider
	results  []types.SearchResult
	err      error
	panics   bool
	delay    time.Duration

	calls     atomic.Int32
	lastQuery atomic.Value
}

func (s *stubConnector) Provider() types.Provider { return s.provider }

func (s *stubConnector) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	s.calls.Add(1)
	s.lastQuery.Store(query)
	if s.panics {
		panic("connector exploded")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.results, s.err
}

func aggregatorTestConfig() types.AppConfig {
	var cfg types.AppConfig
	cfg.Search.MaxResults = 200
	cfg.Providers.Local.Enabled = true
	cfg.Providers.Google.Enabled = true
	cfg.Providers.Google.Accounts = []types.Account{
		{Provider: types.ProviderGoogle, Alias: "work"},
		{Provider: types.ProviderGoogle, Alias: "personal"},
	}
	cfg.Providers.Microsoft.Enabled = true
	cfg.Providers.Microsoft.Accounts = []types.Account{
		{Provider: types.ProviderMicrosoft, Alias: "corp"},
	}
	return cfg
}

func newTestAggregator(cfg types.AppConfig, connectors ...Connector) *Aggregator {
	registry := NewRegistry()
	for _, c := range connectors {
		registry.Register(c)
	}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return NewAggregatorWithClock(cfg, registry, func() time.Time { return now })
}

func stubResult(id, source, account string) types.SearchResult {
	mod := int64(1750000000000)
	return types.SearchResult{
		ID:       id,
		Title:    "doc-" + id,
		Source:   source,
		Account:  account,
		Modified: &mod,
	}
}

func TestAggregatorMergeOrderIsCanonical(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal, results: []types.SearchResult{
		stubResult("l1", types.SourceLocal, ""),
	}}
	google := &stubConnector{provider: types.ProviderGoogle, results: []types.SearchResult{
		stubResult("g1", types.SourceGoogleDrive, "work"),
		stubResult("g2", types.SourceGmailAttachment, "personal"),
	}}
	microsoft := &stubConnector{provider: types.ProviderMicrosoft, results: []types.SearchResult{
		stubResult("m1", types.SourceOneDrive, "corp"),
	}}

	agg := newTestAggregator(aggregatorTestConfig(), local, google, microsoft)

	results, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Identical scores everywhere, so ranking preserves merge order:
	// local, then google, then microsoft, each connector's internal order kept.
	assert.Equal(t, []string{"l1", "g1", "g2", "m1"}, ids(results))
}

func TestAggregatorTrimsQuery(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal}
	agg := newTestAggregator(aggregatorTestConfig(), local)

	_, err := agg.Search(context.Background(), types.SearchRequest{Query: "  budget  "})
	require.NoError(t, err)
	assert.Equal(t, "budget", local.lastQuery.Load())
}

func TestAggregatorDedupesAcrossAccounts(t *testing.T) {
	// The same shared-drive file reached through two accounts keeps its first
	// occurrence in merge order.
	google := &stubConnector{provider: types.ProviderGoogle, results: []types.SearchResult{
		stubResult("gdrive:shared", types.SourceGoogleDrive, "work"),
		stubResult("gdrive:shared", types.SourceGoogleDrive, "personal"),
	}}

	agg := newTestAggregator(aggregatorTestConfig(), google)

	results, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "work", results[0].Account)
}

func TestAggregatorCrossConnectorDuplicateKeepsFirst(t *testing.T) {
	// Two connectors surface the same (source, id) pair. The slower one is
	// earlier in canonical order, so its occurrence must still win: dedupe
	// follows merge order, never completion order.
	older := int64(1600000000000)
	fromMicrosoft := stubResult("x1", types.SourceOneDrive, "corp")
	fromMicrosoft.Modified = &older

	google := &stubConnector{
		provider: types.ProviderGoogle,
		delay:    20 * time.Millisecond,
		results:  []types.SearchResult{stubResult("x1", types.SourceOneDrive, "work")},
	}
	microsoft := &stubConnector{
		provider: types.ProviderMicrosoft,
		results:  []types.SearchResult{fromMicrosoft},
	}

	agg := newTestAggregator(aggregatorTestConfig(), google, microsoft)

	results, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "work", results[0].Account)
	require.NotNil(t, results[0].Modified)
	assert.EqualValues(t, 1750000000000, *results[0].Modified)
}

func TestAggregatorFilterComposition(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal, results: []types.SearchResult{
		stubResult("l1", types.SourceLocal, ""),
	}}
	google := &stubConnector{provider: types.ProviderGoogle, results: []types.SearchResult{
		stubResult("g1", types.SourceGoogleDrive, "work"),
		stubResult("g2", types.SourceGmailAttachment, "work"),
		stubResult("g3", types.SourceGoogleDrive, "personal"),
	}}
	microsoft := &stubConnector{provider: types.ProviderMicrosoft, results: []types.SearchResult{
		stubResult("m1", types.SourceOneDrive, "corp"),
	}}

	agg := newTestAggregator(aggregatorTestConfig(), local, google, microsoft)

	unfiltered, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)

	filtered, err := agg.Search(context.Background(), types.SearchRequest{
		Sources:  []string{types.SourceGoogleDrive},
		Accounts: []string{"work"},
	})
	require.NoError(t, err)

	// Filtering only narrows, and every survivor satisfies both filters.
	assert.Subset(t, ids(unfiltered), ids(filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "g1", filtered[0].ID)
	for _, r := range filtered {
		assert.Equal(t, types.SourceGoogleDrive, r.Source)
		assert.Equal(t, "work", r.Account)
	}
}

func TestAggregatorUnknownSourceFails(t *testing.T) {
	agg := newTestAggregator(aggregatorTestConfig(), &stubConnector{provider: types.ProviderLocal})

	_, err := agg.Search(context.Background(), types.SearchRequest{Sources: []string{"bogus"}})
	require.Error(t, err)
	assert.True(t, types.IsClientError(err))

	var unknown *types.ErrUnknownSource
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "bogus", unknown.Tag)
}

func TestAggregatorUnknownAccountFails(t *testing.T) {
	agg := newTestAggregator(aggregatorTestConfig(), &stubConnector{provider: types.ProviderLocal})

	_, err := agg.Search(context.Background(), types.SearchRequest{Accounts: []string{"nobody"}})
	require.Error(t, err)
	assert.True(t, types.IsClientError(err))
}

func TestAggregatorSourceFilterGatesAndPostFilters(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal}
	google := &stubConnector{provider: types.ProviderGoogle, results: []types.SearchResult{
		stubResult("g1", types.SourceGoogleDrive, "work"),
		stubResult("g2", types.SourceGmailAttachment, "work"),
	}}
	microsoft := &stubConnector{provider: types.ProviderMicrosoft}

	agg := newTestAggregator(aggregatorTestConfig(), local, google, microsoft)

	results, err := agg.Search(context.Background(), types.SearchRequest{
		Sources: []string{types.SourceGmailAttachment},
	})
	require.NoError(t, err)

	// Only the google connector runs for a gmail-attachment filter...
	assert.EqualValues(t, 0, local.calls.Load())
	assert.EqualValues(t, 1, google.calls.Load())
	assert.EqualValues(t, 0, microsoft.calls.Load())

	// ...and the post-merge filter drops the drive results it also returned.
	require.Len(t, results, 1)
	assert.Equal(t, types.SourceGmailAttachment, results[0].Source)
}

func TestAggregatorProviderNameSelectsWholeFamily(t *testing.T) {
	google := &stubConnector{provider: types.ProviderGoogle, results: []types.SearchResult{
		stubResult("g1", types.SourceGoogleDrive, "work"),
		stubResult("g2", types.SourceGmailAttachment, "work"),
	}}

	agg := newTestAggregator(aggregatorTestConfig(), google)

	results, err := agg.Search(context.Background(), types.SearchRequest{
		Sources: []string{"google"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestAggregatorAccountFilterNormalizesRefs(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal, results: []types.SearchResult{
		stubResult("l1", types.SourceLocal, ""),
	}}
	google := &stubConnector{provider: types.ProviderGoogle, results: []types.SearchResult{
		stubResult("g1", types.SourceGoogleDrive, "work"),
		stubResult("g2", types.SourceGoogleDrive, "personal"),
	}}

	agg := newTestAggregator(aggregatorTestConfig(), local, google)

	results, err := agg.Search(context.Background(), types.SearchRequest{
		Accounts: []string{"google:work"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "work", results[0].Account)
}

func TestAggregatorProviderErrorDegrades(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal, results: []types.SearchResult{
		stubResult("l1", types.SourceLocal, ""),
	}}
	google := &stubConnector{provider: types.ProviderGoogle, err: errors.New("drive API error 503")}

	agg := newTestAggregator(aggregatorTestConfig(), local, google)

	results, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, ids(results))
}

func TestAggregatorStoreOutageAborts(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal, results: []types.SearchResult{
		stubResult("l1", types.SourceLocal, ""),
	}}
	google := &stubConnector{
		provider: types.ProviderGoogle,
		err:      fmt.Errorf("%w: connection refused", types.ErrStoreUnavailable),
	}

	agg := newTestAggregator(aggregatorTestConfig(), local, google)

	_, err := agg.Search(context.Background(), types.SearchRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestAggregatorRecoversConnectorPanic(t *testing.T) {
	local := &stubConnector{provider: types.ProviderLocal, panics: true}
	google := &stubConnector{provider: types.ProviderGoogle, results: []types.SearchResult{
		stubResult("g1", types.SourceGoogleDrive, "work"),
	}}

	agg := newTestAggregator(aggregatorTestConfig(), local, google)

	results, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids(results))
}

func TestAggregatorSkipsDisabledProvider(t *testing.T) {
	cfg := aggregatorTestConfig()
	cfg.Providers.Microsoft.Enabled = false

	local := &stubConnector{provider: types.ProviderLocal, results: []types.SearchResult{
		stubResult("l1", types.SourceLocal, ""),
	}}
	microsoft := &stubConnector{provider: types.ProviderMicrosoft, results: []types.SearchResult{
		stubResult("m1", types.SourceOneDrive, "corp"),
	}}

	agg := newTestAggregator(cfg, local, microsoft)

	results, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, microsoft.calls.Load())
	assert.Equal(t, []string{"l1"}, ids(results))
}

func TestAggregatorTruncatesToMaxResults(t *testing.T) {
	many := make([]types.SearchResult, 500)
	for i := range many {
		many[i] = stubResult(fmt.Sprintf("l%03d", i), types.SourceLocal, "")
	}
	local := &stubConnector{provider: types.ProviderLocal, results: many}

	agg := newTestAggregator(aggregatorTestConfig(), local)

	results, err := agg.Search(context.Background(), types.SearchRequest{})
	require.NoError(t, err)
	require.Len(t, results, 200)
	// Equal scores keep merge order, so truncation keeps the head.
	assert.Equal(t, "l000", results[0].ID)
	assert.Equal(t, "l199", results[199].ID)
}
