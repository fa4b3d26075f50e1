package types

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AppConfig is the root configuration for docsift.
type AppConfig struct {
	DebugMode  bool `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool `key:"prettyLogs" json:"pretty_logs"`

	Gateway     GatewayConfig     `key:"gateway" json:"gateway"`
	Credentials CredentialsConfig `key:"credentials" json:"credentials"`
	Search      SearchConfig      `key:"search" json:"search"`
	Providers   ProvidersConfig   `key:"providers" json:"providers"`
}

// ----------------------------------------------------------------------------
// Gateway Configuration
// ----------------------------------------------------------------------------

type GatewayConfig struct {
	HTTP            HTTPConfig    `key:"http" json:"http"`
	ShutdownTimeout time.Duration `key:"shutdownTimeout" json:"shutdown_timeout"`
	AuthToken       string        `key:"authToken" json:"auth_token"`
}

type HTTPConfig struct {
	Host string     `key:"host" json:"host"`
	Port int        `key:"port" json:"port"`
	CORS CORSConfig `key:"cors" json:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `key:"allowOrigins" json:"allow_origins"`
	AllowedMethods []string `key:"allowMethods" json:"allow_methods"`
	AllowedHeaders []string `key:"allowHeaders" json:"allow_headers"`
}

// ----------------------------------------------------------------------------
// Credential Store Configuration
// ----------------------------------------------------------------------------

// Credential store backends.
const (
	CredentialBackendBolt     = "bolt"
	CredentialBackendRedis    = "redis"
	CredentialBackendPostgres = "postgres"
	CredentialBackendMemory   = "memory"
)

// CredentialsConfig selects and configures the token persistence backend.
type CredentialsConfig struct {
	Backend  string         `key:"backend" json:"backend"` // bolt | redis | postgres | memory
	Bolt     BoltConfig     `key:"bolt" json:"bolt"`
	Redis    RedisConfig    `key:"redis" json:"redis"`
	Postgres PostgresConfig `key:"postgres" json:"postgres"`
}

// BoltConfig configures the file-backed credential store.
type BoltConfig struct {
	Path string `key:"path" json:"path"`
	// SealingKey is an optional hex-encoded 32-byte key. When set, token
	// records are sealed with an AEAD before they hit disk.
	SealingKey string `key:"sealingKey" json:"sealing_key"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode               RedisMode     `key:"mode" json:"mode"`
	Addrs              []string      `key:"addrs" json:"addrs"`
	Username           string        `key:"username" json:"username"`
	Password           string        `key:"password" json:"password"`
	ClientName         string        `key:"clientName" json:"client_name"`
	EnableTLS          bool          `key:"enableTLS" json:"enable_tls"`
	InsecureSkipVerify bool          `key:"insecureSkipVerify" json:"insecure_skip_verify"`
	PoolSize           int           `key:"poolSize" json:"pool_size"`
	MinIdleConns       int           `key:"minIdleConns" json:"min_idle_conns"`
	MaxIdleConns       int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxIdleTime    time.Duration `key:"connMaxIdleTime" json:"conn_max_idle_time"`
	ConnMaxLifetime    time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
	DialTimeout        time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout        time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout       time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRetries         int           `key:"maxRetries" json:"max_retries"`
}

type PostgresConfig struct {
	Host            string        `key:"host" json:"host"`
	Port            int           `key:"port" json:"port"`
	User            string        `key:"user" json:"user"`
	Password        string        `key:"password" json:"password"`
	Database        string        `key:"database" json:"database"`
	SSLMode         string        `key:"sslMode" json:"ssl_mode"`
	MaxOpenConns    int           `key:"maxOpenConns" json:"max_open_conns"`
	MaxIdleConns    int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
}

// ----------------------------------------------------------------------------
// Search Configuration
// ----------------------------------------------------------------------------

type SearchConfig struct {
	MaxResults      int           `key:"maxResults" json:"max_results"`           // final truncation bound
	ProviderTimeout time.Duration `key:"providerTimeout" json:"provider_timeout"` // per outbound API call
	PerSourceLimit  int           `key:"perSourceLimit" json:"per_source_limit"`  // fetch cap per sub-query
	LocalListLimit  int           `key:"localListLimit" json:"local_list_limit"`  // empty-query browse cap
	CacheTTL        time.Duration `key:"cacheTTL" json:"cache_ttl"`               // gateway result cache
	RatePerSecond   float64       `key:"ratePerSecond" json:"rate_per_second"`    // per-account API rate
	RateBurst       int           `key:"rateBurst" json:"rate_burst"`
}

// ----------------------------------------------------------------------------
// Provider Configuration
// ----------------------------------------------------------------------------

type ProvidersConfig struct {
	Local     LocalProviderConfig  `key:"local" json:"local"`
	Google    RemoteProviderConfig `key:"google" json:"google"`
	Microsoft RemoteProviderConfig `key:"microsoft" json:"microsoft"`
}

// LocalProviderConfig configures the filesystem connector.
type LocalProviderConfig struct {
	Enabled        bool     `key:"enabled" json:"enabled"`
	Roots          []string `key:"roots" json:"roots"`
	ExcludeGlobs   []string `key:"excludeGlobs" json:"exclude_globs"`
	FollowSymlinks bool     `key:"followSymlinks" json:"follow_symlinks"`
}

// RemoteProviderConfig configures an OAuth-backed connector and its accounts.
type RemoteProviderConfig struct {
	Enabled  bool      `key:"enabled" json:"enabled"`
	Accounts []Account `key:"accounts" json:"accounts"`
}

// ----------------------------------------------------------------------------
// Validation and lookup helpers
// ----------------------------------------------------------------------------

// Validate normalizes the configuration in place and rejects inconsistent
// input. It runs exactly once at load so downstream code never re-derives
// defaults.
func (c *AppConfig) Validate() error {
	if c.Credentials.Backend == "" {
		c.Credentials.Backend = CredentialBackendBolt
	}
	switch c.Credentials.Backend {
	case CredentialBackendBolt, CredentialBackendRedis, CredentialBackendPostgres, CredentialBackendMemory:
	default:
		return fmt.Errorf("credentials.backend: unknown backend %q", c.Credentials.Backend)
	}

	if c.Credentials.Backend == CredentialBackendBolt && c.Credentials.Bolt.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("credentials.bolt.path unset and home directory unavailable: %w", err)
		}
		c.Credentials.Bolt.Path = filepath.Join(home, ".docsift", "credentials.db")
	}

	if err := c.validateProvider(ProviderGoogle, &c.Providers.Google); err != nil {
		return err
	}
	if err := c.validateProvider(ProviderMicrosoft, &c.Providers.Microsoft); err != nil {
		return err
	}

	for i, root := range c.Providers.Local.Roots {
		c.Providers.Local.Roots[i] = expandHome(root)
	}

	return nil
}

func (c *AppConfig) validateProvider(p Provider, cfg *RemoteProviderConfig) error {
	seen := make(map[string]struct{}, len(cfg.Accounts))
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		acc.Provider = p
		if acc.Alias == "" {
			return fmt.Errorf("providers.%s.accounts[%d]: alias is required", p, i)
		}
		if _, dup := seen[acc.Alias]; dup {
			return fmt.Errorf("providers.%s: duplicate account alias %q", p, acc.Alias)
		}
		seen[acc.Alias] = struct{}{}
		acc.Normalize()
	}
	return nil
}

// ProviderEnabled reports whether a provider is switched on in config.
func (c *AppConfig) ProviderEnabled(p Provider) bool {
	switch p {
	case ProviderLocal:
		return c.Providers.Local.Enabled
	case ProviderGoogle:
		return c.Providers.Google.Enabled
	case ProviderMicrosoft:
		return c.Providers.Microsoft.Enabled
	}
	return false
}

// AccountsFor returns the configured accounts for a provider, in config
// order. Local has no accounts.
func (c *AppConfig) AccountsFor(p Provider) []Account {
	switch p {
	case ProviderGoogle:
		return c.Providers.Google.Accounts
	case ProviderMicrosoft:
		return c.Providers.Microsoft.Accounts
	}
	return nil
}

// FindAccount looks up one account by provider and alias.
func (c *AppConfig) FindAccount(p Provider, alias string) (*Account, bool) {
	accounts := c.AccountsFor(p)
	for i := range accounts {
		if accounts[i].Alias == alias {
			return &accounts[i], true
		}
	}
	return nil, false
}

// KnownAlias reports whether any enabled provider carries the alias.
func (c *AppConfig) KnownAlias(alias string) bool {
	for _, p := range Providers() {
		for _, acc := range c.AccountsFor(p) {
			if acc.Alias == alias {
				return true
			}
		}
	}
	return false
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
