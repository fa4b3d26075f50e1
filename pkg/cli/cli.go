package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/docsift/docsift/pkg/common"
)

// Build information (injected at compile time via ldflags)
var (
	Version = "dev"
)

// defaultGatewayHTTP matches the port the gateway binds out of the box.
const defaultGatewayHTTP = "http://127.0.0.1:8230"

var (
	gatewayHTTPAddr string
	authToken       string
	configPath      string
	jsonOutput      bool
)

// Custom help template with styled output
var helpTemplate = `{{with .Long}}{{. | trim}}

{{end}}{{if .HasAvailableSubCommands}}` + `{{.CommandPath}}` + ` ` + `<command>` + `

{{end}}{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if .IsAvailableCommand}}  {{rpad .Name .NamePadding }}  {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}
`

var rootCmd = &cobra.Command{
	Use:   "docsift",
	Short: "Search documents across local files, Google, and Microsoft accounts",
	Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("docsift") + ` - Search documents across local files, Google, and Microsoft accounts

Find a document by name across your local filesystem, Google Drive, Gmail
attachments, OneDrive, SharePoint, Teams, and Outlook attachments in one
ranked result list.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		SetJSONOutput(jsonOutput)

		// Commands that load config pick the flag up through the env var
		if configPath != "" {
			os.Setenv(common.ConfigPathEnv, configPath)
		}
	},
}

func init() {
	// Set custom templates
	rootCmd.SetHelpTemplate(helpTemplate)

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("docsift"), Version))

	rootCmd.PersistentFlags().StringVar(&gatewayHTTPAddr, "gateway", getEnv("DOCSIFT_GATEWAY", defaultGatewayHTTP), "Gateway HTTP address")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", getEnv("DOCSIFT_TOKEN", ""), "Gateway auth token")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.docsift/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getClient() *Client {
	return NewClient(gatewayHTTPAddr, authToken)
}

func exitError(err error) {
	PrintError(err)
	os.Exit(1)
}
