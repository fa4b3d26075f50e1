package clients

import (
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
	DriveAPIBase = "https://www.googleapis.com/drive/v3"

	driveFolderMimeType = "application/vnd.google-apps.folder"
)

// DriveFile represents a Google Drive file
type DriveFile struct {
	ID           string
	Name         string
	MimeType     string
	Size         int64
	HasSize      bool
	ModifiedTime time.Time
	WebViewLink  string
	Owner        string
	IsFolder     bool
}

// DriveClient provides Google Drive API search functionality
type DriveClient struct {
	HTTPClient *http.Client

	// BaseURL overrides the Drive API endpoint, for tests
	BaseURL string
}

// NewDriveClient creates a new Google Drive API client
func NewDriveClient(timeout time.Duration) *DriveClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DriveClient{
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *DriveClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DriveAPIBase
}

// Request makes a GET request to the Drive API
func (c *DriveClient) Request(ctx context.Context, token, path string, result any) error {
	url := c.baseURL() + path
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("drive API request failed (path=%s): %w", path, driveAPIError(resp.Status, resp.StatusCode, body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// NameQuery builds the files.list q expression for a name search: name or
// full-text contains the fragment, trash excluded. An empty fragment lists
// everything not trashed.
func NameQuery(fragment string) string {
	if fragment == "" {
		return "trashed = false"
	}
	escaped := escapeDriveQueryTerm(fragment)
	return fmt.Sprintf("(name contains '%s' or fullText contains '%s') and trashed = false", escaped, escaped)
}

// escapeDriveQueryTerm escapes backslashes and single quotes for embedding
// in a Drive q expression.
func escapeDriveQueryTerm(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// ListFiles lists files matching a Drive q expression, newest first,
// spanning every drive the account can see.
func (c *DriveClient) ListFiles(ctx context.Context, token, query string, maxResults int) ([]*DriveFile, error) {
	if maxResults <= 0 {
		maxResults = 50
	}

	fields := "nextPageToken,files(id,name,mimeType,size,modifiedTime,webViewLink,owners(displayName))"

	files := make([]*DriveFile, 0, maxResults)
	pageToken := ""
	for len(files) < maxResults {
		pageSize := maxResults - len(files)
		if pageSize > 1000 {
			pageSize = 1000
		}

		path := buildFilesListRequestURI(query, pageSize, "modifiedTime desc", fields, pageToken)

		var result driveFileListResponse
		if err := c.Request(ctx, token, path, &result); err != nil {
			return nil, err
		}

		if len(result.Files) == 0 {
			break
		}

		for _, fileMap := range result.Files {
			if file := parseDriveFile(fileMap); file != nil {
				files = append(files, file)
				if len(files) >= maxResults {
					break
				}
			}
		}

		if result.NextPageToken == "" || len(files) >= maxResults {
			break
		}
		pageToken = result.NextPageToken
	}

	return files, nil
}

// parseDriveFile extracts structured data from a Drive API response
func parseDriveFile(fileMap map[string]any) *DriveFile {
	file := &DriveFile{
		ID:       getString(fileMap, "id"),
		Name:     getString(fileMap, "name"),
		MimeType: getString(fileMap, "mimeType"),
	}

	// Size comes back as a decimal string, and is absent for Google Docs
	if size, ok := fileMap["size"].(string); ok {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			file.Size = n
			file.HasSize = true
		}
	}
	if size, ok := fileMap["size"].(float64); ok {
		file.Size = int64(size)
		file.HasSize = true
	}

	if modTime, ok := fileMap["modifiedTime"].(string); ok {
		file.ModifiedTime, _ = time.Parse(time.RFC3339, modTime)
	}

	if owners, ok := fileMap["owners"].([]any); ok && len(owners) > 0 {
		if owner, ok := owners[0].(map[string]any); ok {
			file.Owner = getString(owner, "displayName")
		}
	}

	file.WebViewLink = getString(fileMap, "webViewLink")
	file.IsFolder = file.MimeType == driveFolderMimeType

	return file
}

type driveFileListResponse struct {
	Files            []map[string]any `json:"files"`
	NextPageToken    string           `json:"nextPageToken"`
	IncompleteSearch bool             `json:"incompleteSearch"`
}

func buildFilesListRequestURI(query string, pageSize int, orderBy, fields, pageToken string) string {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if pageSize > 0 {
		params.Set("pageSize", strconv.Itoa(pageSize))
	}
	if orderBy != "" {
		params.Set("orderBy", orderBy)
	}
	if fields != "" {
		params.Set("fields", fields)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	params.Set("spaces", "drive")
	params.Set("corpora", "allDrives")
	params.Set("includeItemsFromAllDrives", "true")
	params.Set("supportsAllDrives", "true")

	u := url.URL{
		Path:     "/files",
		RawQuery: params.Encode(),
	}
	return u.RequestURI()
}

func driveAPIError(status string, statusCode int, body []byte) error {
	if msg := parseDriveAPIErrorMessage(body); msg != "" {
		return fmt.Errorf("drive API: %s (HTTP %d)", msg, statusCode)
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 2048 {
		snippet = snippet[:2048] + "..."
	}
	if snippet != "" {
		return fmt.Errorf("drive API: %s - %s", status, snippet)
	}
	return fmt.Errorf("drive API: %s", status)
}

func parseDriveAPIErrorMessage(body []byte) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return ""
}
