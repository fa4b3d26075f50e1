package providers

import (
	"context"
	"strings"

	"github.com/docsift/docsift/pkg/oauth"
	"github.com/docsift/docsift/pkg/sources"
	"github.com/docsift/docsift/pkg/sources/clients"
	"github.com/docsift/docsift/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// gmailMessageScanLimit caps how many candidate messages are fetched in
// full to inspect their attachment parts.
const gmailMessageScanLimit = 25

// GoogleConnector searches Drive metadata and Gmail attachments for every
// configured Google account. Accounts run concurrently, and within an
// account the two sub-queries run concurrently; results merge in config
// account order, Drive before Gmail.
type GoogleConnector struct {
	config  types.AppConfig
	tokens  *oauth.Manager
	limiter *sources.RateLimiter
	drive   *clients.DriveClient
	gmail   *clients.GmailClient
}

// NewGoogleConnector creates the Google connector.
func NewGoogleConnector(config types.AppConfig, tokens *oauth.Manager, limiter *sources.RateLimiter) *GoogleConnector {
	timeout := config.Search.ProviderTimeout
	return &GoogleConnector{
		config:  config,
		tokens:  tokens,
		limiter: limiter,
		drive:   clients.NewDriveClient(timeout),
		gmail:   clients.NewGmailClient(timeout),
	}
}

func (g *GoogleConnector) Provider() types.Provider {
	return types.ProviderGoogle
}

// Search fans out to all configured accounts. Unauthenticated accounts and
// provider-side failures contribute nothing; only a credential store outage
// aborts.
func (g *GoogleConnector) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	accounts := g.config.AccountsFor(types.ProviderGoogle)
	perAccount := make([][]types.SearchResult, len(accounts))

	var group errgroup.Group
	for i, account := range accounts {
		i, account := i, account
		group.Go(func() error {
			results, err := g.searchAccount(ctx, account, query)
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

func (g *GoogleConnector) searchAccount(ctx context.Context, account types.Account, query string) ([]types.SearchResult, error) {
	token, err := g.tokens.AccessToken(ctx, types.ProviderGoogle, account.Alias)
	if err != nil {
		return nil, err
	}
	if token == "" {
		log.Warn().Str("account", account.Key()).Msg("account not authenticated, skipping")
		return nil, nil
	}

	var driveResults, gmailResults []types.SearchResult
	var group errgroup.Group
	group.Go(func() error {
		driveResults = g.searchDrive(ctx, token, account.Alias, query)
		return nil
	})
	group.Go(func() error {
		gmailResults = g.searchGmail(ctx, token, account.Alias, query)
		return nil
	})
	_ = group.Wait()

	return append(driveResults, gmailResults...), nil
}

// searchDrive queries Drive file metadata by name and full text, spanning
// all drives the account can reach. Folders are skipped: a search for a
// document should surface documents.
func (g *GoogleConnector) searchDrive(ctx context.Context, token, alias, query string) []types.SearchResult {
	if err := g.limiter.Wait(ctx, types.ProviderGoogle, alias); err != nil {
		return nil
	}

	files, err := g.drive.ListFiles(ctx, token, clients.NameQuery(query), g.config.Search.PerSourceLimit)
	if err != nil {
		log.Error().Err(err).Str("account", alias).Msg("drive search failed")
		return nil
	}

	results := make([]types.SearchResult, 0, len(files))
	for _, f := range files {
		if f.IsFolder {
			continue
		}
		r := types.SearchResult{
			ID:       "gdrive:" + f.ID,
			Title:    f.Name,
			Source:   types.SourceGoogleDrive,
			Account:  alias,
			URL:      f.WebViewLink,
			Owner:    f.Owner,
			Modified: clients.EpochMillis(f.ModifiedTime),
		}
		if f.HasSize {
			r.Size = clients.Int64Ptr(f.Size)
		}
		results = append(results, r)
	}
	return results
}

// searchGmail finds messages whose attachments match the query, fetches
// each candidate's payload tree, and emits one result per matching
// attachment part.
func (g *GoogleConnector) searchGmail(ctx context.Context, token, alias, query string) []types.SearchResult {
	if err := g.limiter.Wait(ctx, types.ProviderGoogle, alias); err != nil {
		return nil
	}

	ids, err := g.gmail.ListMessages(ctx, token, clients.AttachmentQuery(query), gmailMessageScanLimit)
	if err != nil {
		log.Error().Err(err).Str("account", alias).Msg("gmail search failed")
		return nil
	}

	queryLower := strings.ToLower(query)
	var results []types.SearchResult
	for _, id := range ids {
		if err := g.limiter.Wait(ctx, types.ProviderGoogle, alias); err != nil {
			break
		}
		msg, err := g.gmail.GetMessage(ctx, token, id)
		if err != nil {
			log.Debug().Err(err).Str("account", alias).Str("message_id", id).Msg("skipping unreadable message")
			continue
		}

		for _, att := range msg.Attachments {
			// The server-side filename: operator matches whole tokens;
			// re-filter by substring so results honor the query verbatim.
			if query != "" && !strings.Contains(strings.ToLower(att.Filename), queryLower) {
				continue
			}
			r := types.SearchResult{
				ID:       "gmail:" + msg.ID + ":" + att.PartID,
				Title:    att.Filename,
				Source:   types.SourceGmailAttachment,
				Account:  alias,
				URL:      "https://mail.google.com/mail/u/0/#all/" + msg.ID,
				Owner:    msg.From,
				Modified: clients.EpochMillis(msg.ModifiedTime()),
			}
			if att.Size > 0 {
				r.Size = clients.Int64Ptr(att.Size)
			}
			results = append(results, r)
		}
	}
	return results
}

var _ sources.Connector = (*GoogleConnector)(nil)
