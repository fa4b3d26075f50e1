package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	GraphAPIBase = "https://graph.microsoft.com/v1.0"
)

// GraphAPIError is a structured Microsoft Graph failure. Code and Message
// come from the response body and let callers recognize per-tenant
// capability gaps (e.g. a missing SharePoint license) without string-parsing
// the wrapped error chain.
type GraphAPIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GraphAPIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error %d: %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("graph API error %d: %s", e.StatusCode, e.Message)
}

// DriveItem represents a OneDrive/SharePoint drive item
type DriveItem struct {
	ID           string
	Name         string
	Size         int64
	HasSize      bool
	WebURL       string
	LastModified time.Time
	Owner        string
	IsFolder     bool
}

// MailMessage is an Outlook message header
type MailMessage struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	From             Recipient `json:"from"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
	HasAttachments   bool      `json:"hasAttachments"`
	WebLink          string    `json:"webLink"`
}

// Recipient wraps a Graph email address
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// EmailAddress is a Graph name/address pair
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// MailAttachment is one attachment of an Outlook message
type MailAttachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	IsInline    bool   `json:"isInline"`
}

// GraphClient provides Microsoft Graph API functionality for OneDrive,
// SharePoint unified search, and Outlook attachments
type GraphClient struct {
	HTTPClient *http.Client

	// BaseURL overrides the Graph API endpoint, for tests
	BaseURL string
}

// NewGraphClient creates a new Microsoft Graph API client
func NewGraphClient(timeout time.Duration) *GraphClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GraphClient{
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *GraphClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return GraphAPIBase
}

// Request makes an authenticated Graph API call. Path may be relative to
// the API base or an absolute @odata.nextLink URL.
func (c *GraphClient) Request(ctx context.Context, token, method, path string, payload, result any) error {
	endpoint := path
	if !strings.HasPrefix(path, "http") {
		endpoint = c.baseURL() + path
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return graphAPIError(resp.StatusCode, raw)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// SearchDriveItems searches the account's personal OneDrive, newest match
// first per the service's own relevance.
func (c *GraphClient) SearchDriveItems(ctx context.Context, token, fragment string, maxResults int) ([]*DriveItem, error) {
	if maxResults <= 0 {
		maxResults = 50
	}

	// OData convention: single quotes double up inside quoted literals
	escaped := strings.ReplaceAll(fragment, "'", "''")
	path := fmt.Sprintf("/me/drive/root/search(q='%s')?$top=%d&$select=%s",
		url.PathEscape(escaped), pageSize(maxResults), url.QueryEscape(driveItemSelect))

	return c.collectDriveItems(ctx, token, path, maxResults)
}

// ListRecentDriveItems lists recently used drive items for browse mode.
func (c *GraphClient) ListRecentDriveItems(ctx context.Context, token string, maxResults int) ([]*DriveItem, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	path := fmt.Sprintf("/me/drive/recent?$top=%d", pageSize(maxResults))
	return c.collectDriveItems(ctx, token, path, maxResults)
}

const driveItemSelect = "id,name,size,webUrl,lastModifiedDateTime,folder,createdBy"

func pageSize(maxResults int) int {
	if maxResults > 200 {
		return 200
	}
	return maxResults
}

// collectDriveItems follows @odata.nextLink pages until maxResults items
// are gathered or the listing ends.
func (c *GraphClient) collectDriveItems(ctx context.Context, token, path string, maxResults int) ([]*DriveItem, error) {
	items := make([]*DriveItem, 0, maxResults)
	for path != "" && len(items) < maxResults {
		var page driveItemListResponse
		if err := c.Request(ctx, token, "GET", path, nil, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Value {
			if item := parseDriveItem(raw); item != nil {
				items = append(items, item)
				if len(items) >= maxResults {
					break
				}
			}
		}
		path = page.NextLink
	}
	return items, nil
}

// UnifiedSearch runs the Graph search endpoint over driveItem entities.
// It reaches SharePoint and Teams document libraries that the per-drive
// search endpoint misses on some tenants.
func (c *GraphClient) UnifiedSearch(ctx context.Context, token, fragment string, maxResults int) ([]*DriveItem, error) {
	if maxResults <= 0 {
		maxResults = 50
	}

	payload := unifiedSearchRequest{
		Requests: []unifiedSearchQuery{{
			EntityTypes: []string{"driveItem"},
			Query:       searchQueryString{QueryString: fragment},
			From:        0,
			Size:        pageSize(maxResults),
		}},
	}

	var result unifiedSearchResponse
	if err := c.Request(ctx, token, "POST", "/search/query", payload, &result); err != nil {
		return nil, err
	}

	var items []*DriveItem
	for _, value := range result.Value {
		for _, container := range value.HitsContainers {
			for _, hit := range container.Hits {
				if item := parseDriveItem(hit.Resource); item != nil {
					items = append(items, item)
					if len(items) >= maxResults {
						return items, nil
					}
				}
			}
		}
	}
	return items, nil
}

// ListMessagesWithAttachments lists recent Outlook messages that carry
// attachments, newest first.
func (c *GraphClient) ListMessagesWithAttachments(ctx context.Context, token string, maxResults int) ([]MailMessage, error) {
	if maxResults <= 0 {
		maxResults = 25
	}

	params := url.Values{}
	params.Set("$filter", "hasAttachments eq true")
	params.Set("$select", "id,subject,from,receivedDateTime,hasAttachments,webLink")
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", strconv.Itoa(pageSize(maxResults)))
	path := "/me/messages?" + params.Encode()

	messages := make([]MailMessage, 0, maxResults)
	for path != "" && len(messages) < maxResults {
		var page mailMessageListResponse
		if err := c.Request(ctx, token, "GET", path, nil, &page); err != nil {
			return nil, err
		}
		messages = append(messages, page.Value...)
		path = page.NextLink
	}

	if len(messages) > maxResults {
		messages = messages[:maxResults]
	}
	return messages, nil
}

// ListMessageAttachments lists attachment metadata for one message.
func (c *GraphClient) ListMessageAttachments(ctx context.Context, token, messageID string) ([]MailAttachment, error) {
	path := fmt.Sprintf("/me/messages/%s/attachments?$select=id,name,contentType,size,isInline",
		url.PathEscape(messageID))

	var result mailAttachmentListResponse
	if err := c.Request(ctx, token, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// parseDriveItem extracts structured data from a driveItem resource
func parseDriveItem(raw map[string]any) *DriveItem {
	if raw == nil {
		return nil
	}

	item := &DriveItem{
		ID:     getString(raw, "id"),
		Name:   getString(raw, "name"),
		WebURL: getString(raw, "webUrl"),
	}

	if _, ok := raw["size"]; ok {
		item.Size = getInt64(raw, "size")
		item.HasSize = true
	}
	if modTime := getString(raw, "lastModifiedDateTime"); modTime != "" {
		item.LastModified, _ = time.Parse(time.RFC3339, modTime)
	}
	if _, ok := raw["folder"]; ok {
		item.IsFolder = true
	}
	if createdBy, ok := raw["createdBy"].(map[string]any); ok {
		if user, ok := createdBy["user"].(map[string]any); ok {
			item.Owner = getString(user, "displayName")
		}
	}

	return item
}

type driveItemListResponse struct {
	Value    []map[string]any `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

type mailMessageListResponse struct {
	Value    []MailMessage `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

type mailAttachmentListResponse struct {
	Value []MailAttachment `json:"value"`
}

type unifiedSearchRequest struct {
	Requests []unifiedSearchQuery `json:"requests"`
}

type unifiedSearchQuery struct {
	EntityTypes []string          `json:"entityTypes"`
	Query       searchQueryString `json:"query"`
	From        int               `json:"from"`
	Size        int               `json:"size"`
}

type searchQueryString struct {
	QueryString string `json:"queryString"`
}

type unifiedSearchResponse struct {
	Value []struct {
		HitsContainers []struct {
			Hits []struct {
				HitID    string         `json:"hitId"`
				Rank     int            `json:"rank"`
				Resource map[string]any `json:"resource"`
			} `json:"hits"`
			MoreResultsAvailable bool `json:"moreResultsAvailable"`
		} `json:"hitsContainers"`
	} `json:"value"`
}

func graphAPIError(statusCode int, body []byte) error {
	apiErr := &GraphAPIError{StatusCode: statusCode}

	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && (parsed.Error.Code != "" || parsed.Error.Message != "") {
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message
		return apiErr
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 2048 {
		snippet = snippet[:2048] + "..."
	}
	apiErr.Message = snippet
	return apiErr
}
