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
	GmailAPIBase = "https://gmail.googleapis.com/gmail/v1"
)

// GmailMessage represents a parsed Gmail message
type GmailMessage struct {
	ID           string
	ThreadID     string
	From         string
	Subject      string
	Date         string
	InternalDate int64 // epoch millis, 0 when absent
	Attachments  []GmailAttachment
}

// GmailAttachment is one real attachment part of a message (inline bodies
// carry no filename and are excluded).
type GmailAttachment struct {
	AttachmentID string
	PartID       string
	Filename     string
	MimeType     string
	Size         int64
}

// GmailClient provides Gmail API message and attachment lookups
type GmailClient struct {
	HTTPClient *http.Client

	// BaseURL overrides the Gmail API endpoint, for tests
	BaseURL string
}

// NewGmailClient creates a new Gmail API client
func NewGmailClient(timeout time.Duration) *GmailClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GmailClient{
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *GmailClient) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return GmailAPIBase
}

// Request makes a GET request to the Gmail API
func (c *GmailClient) Request(ctx context.Context, token, path string, result any) error {
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

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gmail API error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// AttachmentQuery builds the Gmail search expression for messages carrying
// an attachment whose filename matches the fragment. An empty fragment
// matches any message with attachments.
func AttachmentQuery(fragment string) string {
	if fragment == "" {
		return "has:attachment"
	}
	escaped := strings.ReplaceAll(fragment, `"`, ``)
	return fmt.Sprintf(`has:attachment filename:"%s"`, escaped)
}

// ListMessages lists message IDs matching a Gmail search expression
func (c *GmailClient) ListMessages(ctx context.Context, token, query string, maxResults int) ([]string, error) {
	path := fmt.Sprintf("/users/me/messages?maxResults=%d", maxResults)
	if query != "" {
		path += "&q=" + url.QueryEscape(query)
	}

	var result map[string]any
	if err := c.Request(ctx, token, path, &result); err != nil {
		return nil, err
	}

	rawMessages, _ := result["messages"].([]any)
	ids := make([]string, 0, len(rawMessages))
	for _, m := range rawMessages {
		if msgMap, ok := m.(map[string]any); ok {
			if id := getString(msgMap, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// GetMessage fetches a single message with its full payload tree
func (c *GmailClient) GetMessage(ctx context.Context, token, msgID string) (*GmailMessage, error) {
	path := fmt.Sprintf("/users/me/messages/%s?format=full", msgID)
	var result map[string]any
	if err := c.Request(ctx, token, path, &result); err != nil {
		return nil, err
	}
	return parseGmailMessage(result), nil
}

// parseGmailMessage extracts structured data from a Gmail API response
func parseGmailMessage(result map[string]any) *GmailMessage {
	msg := &GmailMessage{
		ID:       getString(result, "id"),
		ThreadID: getString(result, "threadId"),
	}

	// internalDate is a decimal string of epoch millis
	if raw := getString(result, "internalDate"); raw != "" {
		msg.InternalDate, _ = strconv.ParseInt(raw, 10, 64)
	}

	payload, ok := result["payload"].(map[string]any)
	if !ok {
		return msg
	}

	if hdrs, ok := payload["headers"].([]any); ok {
		for _, h := range hdrs {
			if hdr, ok := h.(map[string]any); ok {
				name, _ := hdr["name"].(string)
				value, _ := hdr["value"].(string)
				switch name {
				case "From":
					msg.From = value
				case "Subject":
					msg.Subject = value
				case "Date":
					msg.Date = value
				}
			}
		}
	}

	collectAttachmentParts(payload, &msg.Attachments)
	return msg
}

// collectAttachmentParts walks the MIME part tree. Any part carrying a
// filename is a real attachment; multipart containers are recursed into.
func collectAttachmentParts(part map[string]any, out *[]GmailAttachment) {
	if filename := getString(part, "filename"); filename != "" {
		att := GmailAttachment{
			PartID:   getString(part, "partId"),
			Filename: filename,
			MimeType: getString(part, "mimeType"),
		}
		if body, ok := part["body"].(map[string]any); ok {
			att.AttachmentID = getString(body, "attachmentId")
			att.Size = getInt64(body, "size")
		}
		*out = append(*out, att)
	}

	if parts, ok := part["parts"].([]any); ok {
		for _, p := range parts {
			if subPart, ok := p.(map[string]any); ok {
				collectAttachmentParts(subPart, out)
			}
		}
	}
}

// ModifiedTime resolves the message timestamp: internalDate when present,
// otherwise the Date header.
func (m *GmailMessage) ModifiedTime() time.Time {
	if m.InternalDate > 0 {
		return time.UnixMilli(m.InternalDate)
	}
	if m.Date != "" {
		return ParseEmailDate(m.Date)
	}
	return time.Time{}
}

// ParseEmailDate parses various email date formats
func ParseEmailDate(dateStr string) time.Time {
	formats := []string{
		time.RFC1123Z,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		time.RFC3339,
	}
	for _, fmt := range formats {
		if t, err := time.Parse(fmt, dateStr); err == nil {
			return t
		}
	}
	return time.Time{}
}
