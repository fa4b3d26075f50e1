package apiv1

import (
	"errors"
	"net/http"

	"github.com/docsift/docsift/pkg/sources"
	"github.com/docsift/docsift/pkg/types"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SearchGroup serves the aggregated document search.
type SearchGroup struct {
	aggregator *sources.Aggregator
	cache      *sources.QueryCache
}

// NewSearchGroup creates and registers search routes.
func NewSearchGroup(g *echo.Group, aggregator *sources.Aggregator, cache *sources.QueryCache) *SearchGroup {
	sg := &SearchGroup{
		aggregator: aggregator,
		cache:      cache,
	}

	g.GET("", sg.Search)

	return sg
}

// SearchResponse wraps the ordered result list.
type SearchResponse struct {
	Results []types.SearchResult `json:"results"`
	Count   int                  `json:"count"`
}

// Search runs one aggregated search. No match is a 200 with an empty list;
// bad filter input is a 400; only a credential store outage is a 500.
func (sg *SearchGroup) Search(c echo.Context) error {
	params := c.QueryParams()
	req := types.SearchRequest{
		Query:    c.QueryParam("name"),
		Sources:  splitMulti(params["sources"]),
		Accounts: splitMulti(params["accounts"]),
	}

	results, err := sg.cache.Do(sources.RequestKey(req), func() ([]types.SearchResult, error) {
		return sg.aggregator.Search(c.Request().Context(), req)
	})
	if err != nil {
		if types.IsClientError(err) {
			return ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		if errors.Is(err, types.ErrStoreUnavailable) {
			log.Error().Err(err).Str("request_id", requestID).Msg("search aborted: credential store unavailable")
			return ErrorResponse(c, http.StatusInternalServerError, types.ErrStoreUnavailable.Error())
		}
		log.Error().Err(err).Str("request_id", requestID).Msg("search failed")
		return ErrorResponse(c, http.StatusInternalServerError, "search failed")
	}

	if results == nil {
		results = []types.SearchResult{}
	}
	return SuccessResponse(c, SearchResponse{
		Results: results,
		Count:   len(results),
	})
}
