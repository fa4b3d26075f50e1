package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/docsift/docsift/pkg/common"
	"github.com/docsift/docsift/pkg/types"
)

// starterConfig is what `config init` writes: enough commented structure to
// connect a first account without reading docs.
const starterConfig = `# docsift configuration
# Full reference: all keys and their defaults live in the project README.

# Where OAuth tokens are stored: bolt (default, single file), redis,
# postgres, or memory.
credentials:
  backend: bolt

search:
  maxResults: 200

providers:
  local:
    enabled: true
    roots:
      - ~/Documents
    excludeGlobs:
      - ".*"
      - "node_modules"

  # Each account needs its own OAuth client. Create one in the provider's
  # developer console and point its redirect URL at the gateway callback:
  #   http://127.0.0.1:8230/api/v1/oauth/callback
  google:
    enabled: false
    accounts: []
    # accounts:
    #   - alias: personal
    #     clientId: your-client-id.apps.googleusercontent.com
    #     clientSecret: your-client-secret
    #     redirectUrl: http://127.0.0.1:8230/api/v1/oauth/callback

  microsoft:
    enabled: false
    accounts: []
    # accounts:
    #   - alias: work
    #     clientId: your-application-id
    #     clientSecret: your-client-secret
    #     tenantId: common
    #     redirectUrl: http://127.0.0.1:8230/api/v1/oauth/callback
`

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the docsift configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Run: func(cmd *cobra.Command, args []string) {
		path := configFilePath()

		if _, err := os.Stat(path); err == nil && !configForce {
			PrintWarning(fmt.Sprintf("Config already exists at %s", path))
			PrintHint("Pass --force to overwrite it")
			return
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			exitError(err)
		}
		if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
			exitError(err)
		}

		PrintSuccessf("Wrote %s", CodeStyle.Render(path))
		PrintHint("Enable a provider, add an account, then run: docsift serve")
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	Run: func(cmd *cobra.Command, args []string) {
		manager, err := common.NewConfigManager[types.AppConfig]()
		if err != nil {
			exitError(err)
		}

		raw := manager.Raw()
		redactSecrets(raw)

		if PrintJSON(raw) {
			return
		}

		out, err := yaml.Marshal(raw)
		if err != nil {
			exitError(err)
		}
		fmt.Print(string(out))
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func configFilePath() string {
	if configPath != "" {
		return configPath
	}
	if path := os.Getenv(common.ConfigPathEnv); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		exitError(fmt.Errorf("cannot resolve home directory: %w", err))
	}
	return filepath.Join(home, ".docsift", "config.yaml")
}

// secretKeys are config keys whose values never get printed.
var secretKeys = map[string]bool{
	"clientSecret": true,
	"sealingKey":   true,
	"password":     true,
	"authToken":    true,
}

// redactSecrets walks the raw config tree and masks secret values in place.
func redactSecrets(node any) {
	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			if secretKeys[key] {
				if s, ok := val.(string); ok && s != "" {
					v[key] = "[redacted]"
				}
				continue
			}
			redactSecrets(val)
		}
	case []any:
		for _, item := range v {
			redactSecrets(item)
		}
	}
}
