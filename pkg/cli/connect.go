package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apiv1 "github.com/docsift/docsift/pkg/api/v1"
	"github.com/docsift/docsift/pkg/types"
)

var connectManual bool

var connectCmd = &cobra.Command{
	Use:   "connect <provider> <alias>",
	Short: "Connect an account via OAuth",
	Long: `Connect a configured account by authorizing docsift in a browser.

The account must already exist in the config file with its OAuth client
credentials. The gateway must be running, it receives the provider redirect.

With --manual the browser is not opened; paste the redirect URL (or the bare
authorization code) back into the prompt instead. Use this when the browser
runs on a different machine than the gateway.

Examples:
  docsift connect google personal
  docsift connect microsoft work --manual`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		provider := strings.ToLower(args[0])
		alias := args[1]

		p := types.Provider(provider)
		if !p.Valid() || p == types.ProviderLocal {
			PrintErrorMsg(fmt.Sprintf("provider %q does not use OAuth", provider))
			PrintHint("Use one of: google, microsoft")
			os.Exit(1)
		}

		client := getClient()
		session, err := client.CreateOAuthSession(context.Background(), provider, alias)
		if err != nil {
			PrintFormattedError("Could not start connect flow", err)
			os.Exit(1)
		}

		fmt.Printf("\n  Authorize docsift at:\n\n  %s\n\n", CodeStyle.Render(session.AuthorizeURL))

		if connectManual {
			runManualFlow(client, session, provider, alias)
			return
		}

		if err := openBrowser(session.AuthorizeURL); err != nil {
			PrintWarning("Could not open browser automatically")
		} else {
			PrintInfo("Opening browser...")
		}

		PrintInfo("Waiting for authorization...")
		result, err := pollOAuthSession(client, session.SessionID, 5*time.Minute)
		if err != nil {
			exitError(err)
		}
		reportConnectResult(provider, alias, result)
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <provider> <alias>",
	Short: "Delete the stored token for an account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		provider := strings.ToLower(args[0])
		alias := args[1]

		err := getClient().Disconnect(context.Background(), provider, alias)
		if err != nil {
			exitError(err)
		}

		PrintSuccessf("Disconnected %s", CodeStyle.Render(provider+":"+alias))
	},
}

func init() {
	connectCmd.Flags().BoolVar(&connectManual, "manual", false, "Paste the redirect URL back instead of waiting for the browser")
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}

// runManualFlow reads the pasted redirect URL (or bare code) from stdin and
// relays it to the gateway callback on the user's behalf.
func runManualFlow(client *Client, session *apiv1.CreateSessionResponse, provider, alias string) {
	fmt.Print("  Paste the redirect URL or authorization code: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		exitError(fmt.Errorf("read input: %w", err))
	}
	line = strings.TrimSpace(line)
	if line == "" {
		exitError(fmt.Errorf("no authorization code provided"))
	}

	code, state := parseCallbackInput(line, session.AuthorizeURL)
	if code == "" {
		exitError(fmt.Errorf("could not find an authorization code in the input"))
	}

	if err := client.SubmitCallback(context.Background(), code, state); err != nil {
		exitError(err)
	}

	// The callback is synchronous; one status read settles the outcome.
	result, err := pollOAuthSession(client, session.SessionID, 10*time.Second)
	if err != nil {
		exitError(err)
	}
	reportConnectResult(provider, alias, result)
}

// parseCallbackInput accepts either a full redirect URL carrying code and
// state query params, or a bare authorization code. The state falls back to
// the one embedded in the authorize URL.
func parseCallbackInput(input, authorizeURL string) (code, state string) {
	if u, err := url.Parse(input); err == nil && u.Query().Get("code") != "" {
		code = u.Query().Get("code")
		state = u.Query().Get("state")
	} else {
		code = input
	}

	if state == "" {
		if u, err := url.Parse(authorizeURL); err == nil {
			state = u.Query().Get("state")
		}
	}
	return code, state
}

func pollOAuthSession(client *Client, sessionID string, timeout time.Duration) (*apiv1.GetSessionResponse, error) {
	deadline := time.Now().Add(timeout)
	pollInterval := 2 * time.Second

	for time.Now().Before(deadline) {
		status, err := client.OAuthSession(context.Background(), sessionID)
		if err != nil {
			return nil, err
		}

		if status.Status == "complete" || status.Status == "error" {
			return status, nil
		}

		// Still pending
		time.Sleep(pollInterval)
	}

	return nil, fmt.Errorf("timeout waiting for authorization")
}

func reportConnectResult(provider, alias string, result *apiv1.GetSessionResponse) {
	if result.Status == "error" {
		PrintErrorMsg(fmt.Sprintf("Connection failed: %s", result.Error))
		os.Exit(1)
	}

	display := result.Email
	if display == "" {
		display = provider + ":" + alias
	}
	PrintSuccessf("Connected %s", CodeStyle.Render(display))
	PrintHint("Searches now include this account. Try: docsift search <name>")
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}
