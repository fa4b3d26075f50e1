package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/docsift/docsift/pkg/oauth"
	"github.com/docsift/docsift/pkg/sources"
	"github.com/docsift/docsift/pkg/sources/clients"
	"github.com/docsift/docsift/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// outlookMessageScanLimit caps how many attachment-bearing messages get
// their attachment lists fetched.
const outlookMessageScanLimit = 25

// benignGraphErrorFragments are Graph failures that mean "this tenant
// cannot serve this sub-query", not "something broke". They downgrade to an
// info log and an empty contribution.
var benignGraphErrorFragments = []string{
	"spo license",                 // tenant has no SharePoint Online license
	"mailboxnotenabledforrestapi", // no Exchange Online mailbox
	"resourcenotfound",            // OneDrive never provisioned
	"mysite not found",
}

// MicrosoftConnector searches OneDrive, SharePoint/Teams document
// libraries, and Outlook attachments for every configured Microsoft
// account. The three Graph sub-queries per account run concurrently and
// merge in that fixed order.
type MicrosoftConnector struct {
	config  types.AppConfig
	tokens  *oauth.Manager
	limiter *sources.RateLimiter
	graph   *clients.GraphClient
}

// NewMicrosoftConnector creates the Microsoft connector.
func NewMicrosoftConnector(config types.AppConfig, tokens *oauth.Manager, limiter *sources.RateLimiter) *MicrosoftConnector {
	return &MicrosoftConnector{
		config:  config,
		tokens:  tokens,
		limiter: limiter,
		graph:   clients.NewGraphClient(config.Search.ProviderTimeout),
	}
}

func (m *MicrosoftConnector) Provider() types.Provider {
	return types.ProviderMicrosoft
}

// Search fans out to all configured accounts. Per-tenant capability gaps
// (no SharePoint license, no mailbox) degrade silently; only a credential
// store outage aborts.
func (m *MicrosoftConnector) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	accounts := m.config.AccountsFor(types.ProviderMicrosoft)
	perAccount := make([][]types.SearchResult, len(accounts))

	var group errgroup.Group
	for i, account := range accounts {
		i, account := i, account
		group.Go(func() error {
			results, err := m.searchAccount(ctx, account, query)
			if err != nil {
				return err
			}
			perAccount[i] = results
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var merged []types.SearchResult
	for _, part := range perAccount {
		merged = append(merged, part...)
	}
	return merged, nil
}

func (m *MicrosoftConnector) searchAccount(ctx context.Context, account types.Account, query string) ([]types.SearchResult, error) {
	token, err := m.tokens.AccessToken(ctx, types.ProviderMicrosoft, account.Alias)
	if err != nil {
		return nil, err
	}
	if token == "" {
		log.Warn().Str("account", account.Key()).Msg("account not authenticated, skipping")
		return nil, nil
	}

	var driveResults, searchResults, outlookResults []types.SearchResult
	var group errgroup.Group
	group.Go(func() error {
		driveResults = m.searchOneDrive(ctx, token, account.Alias, query)
		return nil
	})
	group.Go(func() error {
		searchResults = m.searchSharePoint(ctx, token, account.Alias, query)
		return nil
	})
	group.Go(func() error {
		outlookResults = m.searchOutlook(ctx, token, account.Alias, query)
		return nil
	})
	_ = group.Wait()

	merged := append(driveResults, searchResults...)
	return append(merged, outlookResults...), nil
}

// searchOneDrive queries the account's personal drive. Browse mode lists
// recently used items instead.
func (m *MicrosoftConnector) searchOneDrive(ctx context.Context, token, alias, query string) []types.SearchResult {
	if err := m.limiter.Wait(ctx, types.ProviderMicrosoft, alias); err != nil {
		return nil
	}

	var items []*clients.DriveItem
	var err error
	if query == "" {
		items, err = m.graph.ListRecentDriveItems(ctx, token, m.config.Search.PerSourceLimit)
	} else {
		items, err = m.graph.SearchDriveItems(ctx, token, query, m.config.Search.PerSourceLimit)
	}
	if err != nil {
		m.logGraphFailure(err, alias, "onedrive search")
		return nil
	}

	return m.normalizeDriveItems(items, alias, types.SourceOneDrive)
}

// searchSharePoint runs the unified /search/query endpoint over driveItem
// entities. It catches SharePoint and Teams library items the per-drive
// endpoint misses on some tenants, and re-surfaces personal items the
// dedupe pass collapses. The endpoint rejects empty query strings, so
// browse mode skips it.
func (m *MicrosoftConnector) searchSharePoint(ctx context.Context, token, alias, query string) []types.SearchResult {
	if query == "" {
		return nil
	}
	if err := m.limiter.Wait(ctx, types.ProviderMicrosoft, alias); err != nil {
		return nil
	}

	items, err := m.graph.UnifiedSearch(ctx, token, query, m.config.Search.PerSourceLimit)
	if err != nil {
		m.logGraphFailure(err, alias, "sharepoint search")
		return nil
	}

	// The unified index spans personal, team, and site libraries; the item's
	// web URL tells them apart.
	return m.normalizeDriveItems(items, alias, "")
}

// searchOutlook filters messages carrying attachments, then filters each
// message's attachment list by filename substring.
func (m *MicrosoftConnector) searchOutlook(ctx context.Context, token, alias, query string) []types.SearchResult {
	if err := m.limiter.Wait(ctx, types.ProviderMicrosoft, alias); err != nil {
		return nil
	}

	messages, err := m.graph.ListMessagesWithAttachments(ctx, token, outlookMessageScanLimit)
	if err != nil {
		m.logGraphFailure(err, alias, "outlook search")
		return nil
	}

	queryLower := strings.ToLower(query)
	var results []types.SearchResult
	for _, msg := range messages {
		if err := m.limiter.Wait(ctx, types.ProviderMicrosoft, alias); err != nil {
			break
		}
		attachments, err := m.graph.ListMessageAttachments(ctx, token, msg.ID)
		if err != nil {
			log.Debug().Err(err).Str("account", alias).Str("message_id", msg.ID).Msg("skipping unreadable message")
			continue
		}

		for _, att := range attachments {
			if att.IsInline {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(att.Name), queryLower) {
				continue
			}
			owner := msg.From.EmailAddress.Name
			if owner == "" {
				owner = msg.From.EmailAddress.Address
			}
			r := types.SearchResult{
				ID:       "outlook:" + msg.ID + ":" + att.ID,
				Title:    att.Name,
				Source:   types.SourceOutlookAttachment,
				Account:  alias,
				URL:      msg.WebLink,
				Owner:    owner,
				Modified: clients.EpochMillis(msg.ReceivedDateTime),
			}
			if att.Size > 0 {
				r.Size = clients.Int64Ptr(att.Size)
			}
			results = append(results, r)
		}
	}
	return results
}

// normalizeDriveItems converts Graph drive items to results. With an empty
// source the item's web URL decides the tag: personal OneDrive paths
// contain /personal/, Teams library paths contain /teams/, anything else is
// a SharePoint site library.
func (m *MicrosoftConnector) normalizeDriveItems(items []*clients.DriveItem, alias, source string) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(items))
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		tag := source
		if tag == "" {
			tag = classifyDriveItem(item.WebURL)
		}
		r := types.SearchResult{
			ID:       "msgraph:" + item.ID,
			Title:    item.Name,
			Source:   tag,
			Account:  alias,
			URL:      item.WebURL,
			Owner:    item.Owner,
			Modified: clients.EpochMillis(item.LastModified),
		}
		if item.HasSize {
			r.Size = clients.Int64Ptr(item.Size)
		}
		results = append(results, r)
	}
	return results
}

func classifyDriveItem(webURL string) string {
	lower := strings.ToLower(webURL)
	switch {
	case strings.Contains(lower, "/personal/"):
		return types.SourceOneDrive
	case strings.Contains(lower, "/teams/"):
		return types.SourceTeams
	default:
		return types.SourceSharePoint
	}
}

// logGraphFailure downgrades known per-tenant capability gaps to info and
// reports everything else as an error.
func (m *MicrosoftConnector) logGraphFailure(err error, alias, op string) {
	if isBenignGraphError(err) {
		log.Info().Err(err).Str("account", alias).Msgf("%s unavailable for this tenant", op)
		return
	}
	log.Error().Err(err).Str("account", alias).Msgf("%s failed", op)
}

func isBenignGraphError(err error) bool {
	var apiErr *clients.GraphAPIError
	if !errors.As(err, &apiErr) {
		return false
	}
	text := strings.ToLower(apiErr.Code + " " + apiErr.Message)
	for _, fragment := range benignGraphErrorFragments {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}

var _ sources.Connector = (*MicrosoftConnector)(nil)
