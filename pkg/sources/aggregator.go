package sources

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/docsift/docsift/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Aggregator fans a search out to every eligible connector, merges the
// returned lists in a fixed order, then dedupes, ranks, and bounds the
// result. Each call is stateless and side-effect free on the search path;
// token refresh inside a connector is the one intended side effect.
//
// Merge order is fixed so repeated runs over identical data pick identical
// dedupe winners: providers in canonical order (local, google, microsoft),
// accounts in config order within a provider, sources in declaration order
// within an account.
type Aggregator struct {
	config   types.AppConfig
	registry *Registry
	now      func() time.Time
}

// NewAggregator creates an aggregator over the registered connectors.
func NewAggregator(config types.AppConfig, registry *Registry) *Aggregator {
	return NewAggregatorWithClock(config, registry, time.Now)
}

// NewAggregatorWithClock creates an aggregator with an injected clock.
func NewAggregatorWithClock(config types.AppConfig, registry *Registry, now func() time.Time) *Aggregator {
	return &Aggregator{config: config, registry: registry, now: now}
}

// Search runs the full pipeline for one request. Filter entries that
// reference unknown sources or accounts fail fast with a client error; a
// connector failure degrades to an empty contribution. The only hard
// failure is the credential store being unreachable.
func (a *Aggregator) Search(ctx context.Context, req types.SearchRequest) ([]types.SearchResult, error) {
	started := a.now()
	req.Query = strings.TrimSpace(req.Query)

	accounts, err := a.normalizeRequest(&req)
	if err != nil {
		return nil, err
	}

	providers := a.activeProviders(req.Sources)
	log.Debug().
		Str("query", req.Query).
		Strs("sources", req.Sources).
		Strs("accounts", accounts).
		Int("providers", len(providers)).
		Msg("starting search")

	// One task per provider; connectors fan out to their own accounts.
	// Contributions land in fixed slots so merge order never depends on
	// completion order.
	contributions := make([][]types.SearchResult, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		connector, ok := a.registry.Get(p)
		if !ok {
			continue
		}
		g.Go(func() error {
			results, err := runConnector(ctx, connector, req.Query)
			if err != nil {
				if errors.Is(err, types.ErrStoreUnavailable) {
					return err
				}
				log.Error().Err(err).Str("provider", string(p)).Msg("provider search failed")
				return nil
			}
			contributions[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []types.SearchResult
	for _, part := range contributions {
		merged = append(merged, part...)
	}

	merged = filterByAccounts(merged, accounts)
	merged = filterBySources(merged, req.Sources)
	merged = Dedupe(merged)
	merged = Rank(merged, req.Query, a.now())
	merged = Truncate(merged, a.config.Search.MaxResults)

	log.Debug().
		Str("query", req.Query).
		Int("results", len(merged)).
		Dur("duration", a.now().Sub(started)).
		Msg("search complete")
	return merged, nil
}

// normalizeRequest validates filter entries and reduces account references
// to bare aliases. Returns the normalized account set.
func (a *Aggregator) normalizeRequest(req *types.SearchRequest) ([]string, error) {
	for _, tag := range req.Sources {
		if !types.KnownSource(tag) {
			return nil, &types.ErrUnknownSource{Tag: tag}
		}
	}

	accounts := make([]string, 0, len(req.Accounts))
	for _, ref := range req.Accounts {
		alias := types.NormalizeAccountRef(ref)
		if !a.config.KnownAlias(alias) {
			return nil, &types.ErrUnknownAccount{Alias: alias}
		}
		accounts = append(accounts, alias)
	}
	return accounts, nil
}

// activeProviders returns the providers to query, in canonical merge order.
// Source filter entries gate by family here; the exact-tag filter runs
// post-merge.
func (a *Aggregator) activeProviders(sources []string) []types.Provider {
	var active []types.Provider
	for _, p := range types.Providers() {
		if !a.config.ProviderEnabled(p) || !a.registry.Has(p) {
			continue
		}
		if len(sources) > 0 && !selectsProvider(sources, p) {
			continue
		}
		active = append(active, p)
	}
	return active
}

func selectsProvider(entries []string, p types.Provider) bool {
	for _, entry := range entries {
		if types.SourceSelectsProvider(entry, p) {
			return true
		}
	}
	return false
}

// runConnector isolates one provider task. A panicking connector contributes
// an empty list instead of taking down the whole search.
func runConnector(ctx context.Context, connector Connector, query string) (results []types.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("provider", string(connector.Provider())).
				Msg("connector panicked")
			results, err = nil, nil
		}
	}()
	return connector.Search(ctx, query)
}
