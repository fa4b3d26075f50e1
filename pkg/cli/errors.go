package cli

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// HTTPErrorMessages maps gateway status codes to human-readable messages
var HTTPErrorMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request parameters",
	http.StatusUnauthorized:        "Authentication failed - invalid or missing token",
	http.StatusForbidden:           "Access denied",
	http.StatusNotFound:            "Resource not found",
	http.StatusTooManyRequests:     "Rate limit exceeded - please try again later",
	http.StatusInternalServerError: "Internal server error",
	http.StatusServiceUnavailable:  "Service unavailable - the gateway may be shutting down",
}

// HTTPErrorSuggestions provides helpful suggestions for specific status codes
var HTTPErrorSuggestions = map[int][]string{
	http.StatusUnauthorized: {
		"Check that your token is correct: " + CodeStyle.Render("--token <token>"),
		"The token must match " + CodeStyle.Render("gateway.authToken") + " in the gateway config",
	},
	http.StatusTooManyRequests: {
		"The gateway is throttling provider API calls",
		"Try again in a few moments",
	},
}

// FormatError converts an error to a human-readable message. Gateway API
// errors and unreachable-gateway transport errors get friendly renderings.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return formatAPIError(apiErr)
	}

	if isConnectionError(err) {
		return "Cannot connect to gateway"
	}

	return cleanErrorMessage(err.Error())
}

func formatAPIError(apiErr *APIError) string {
	msg, ok := HTTPErrorMessages[apiErr.StatusCode]
	if !ok {
		return apiErr.Error()
	}
	// Include the gateway's description when it adds context
	if apiErr.Message != "" && !strings.Contains(strings.ToLower(msg), strings.ToLower(apiErr.Message)) {
		return fmt.Sprintf("%s (%s)", msg, apiErr.Message)
	}
	return msg
}

// GetErrorSuggestions returns helpful suggestions for an error
func GetErrorSuggestions(err error) []string {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return HTTPErrorSuggestions[apiErr.StatusCode]
	}

	if isConnectionError(err) {
		return []string{
			"Start the gateway: " + CodeStyle.Render("docsift serve"),
			"Verify the gateway address: " + CodeStyle.Render("--gateway <addr>"),
			"Check your " + CodeStyle.Render("DOCSIFT_GATEWAY") + " environment variable",
		}
	}

	return nil
}

// isConnectionError reports whether the error is a transport-level failure
// reaching the gateway (refused, DNS, timeout) rather than an API response.
func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// cleanErrorMessage cleans up common error message patterns
func cleanErrorMessage(msg string) string {
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "Error: ")

	// For deeply nested errors, just show the first and most specific parts
	if strings.Contains(msg, ": ") {
		parts := strings.Split(msg, ": ")
		if len(parts) > 3 {
			msg = parts[0] + ": " + parts[len(parts)-1]
		}
	}

	return msg
}

// PrintFormattedError prints an error with styling and optional suggestions
func PrintFormattedError(title string, err error) {
	fmt.Println()
	PrintErrorMsg(title)

	if err != nil {
		friendlyMsg := FormatError(err)
		fmt.Printf("  %s\n", DimStyle.Render(friendlyMsg))

		if suggestions := GetErrorSuggestions(err); len(suggestions) > 0 {
			PrintSuggestions("Suggestions:", suggestions)
		}
	}
	fmt.Println()
}
