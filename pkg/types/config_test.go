package types

import (
	"strings"
	"testing"
)

func validTestConfig() AppConfig {
	var cfg AppConfig
	cfg.Credentials.Backend = CredentialBackendMemory
	cfg.Providers.Google.Enabled = true
	cfg.Providers.Google.Accounts = []Account{
		{Alias: "work", ClientID: "id", ClientSecret: "secret"},
	}
	cfg.Providers.Microsoft.Enabled = true
	cfg.Providers.Microsoft.Accounts = []Account{
		{Alias: "corp", ClientID: "id", ClientSecret: "secret"},
	}
	return cfg
}

func TestValidateDefaultsBoltPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var cfg AppConfig
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Credentials.Backend != CredentialBackendBolt {
		t.Errorf("expected bolt default, got %q", cfg.Credentials.Backend)
	}
	if !strings.HasSuffix(cfg.Credentials.Bolt.Path, "credentials.db") {
		t.Errorf("expected defaulted bolt path, got %q", cfg.Credentials.Bolt.Path)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := validTestConfig()
	cfg.Credentials.Backend = "etcd"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown backend to be rejected")
	}
}

func TestValidateRejectsDuplicateAlias(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers.Google.Accounts = append(cfg.Providers.Google.Accounts,
		Account{Alias: "work", ClientID: "other"})
	if err := cfg.Validate(); err == nil {
		t.Error("expected duplicate alias within a provider to be rejected")
	}
}

func TestValidateRequiresAlias(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers.Google.Accounts[0].Alias = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing alias to be rejected")
	}
}

func TestValidateNormalizesAccounts(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers.Google.Accounts[0].Scopes = nil
	cfg.Providers.Microsoft.Accounts[0].Scopes = []string{" Mail.Read ", "Mail.Read", ""}

	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	google := cfg.Providers.Google.Accounts[0]
	if google.Provider != ProviderGoogle {
		t.Errorf("expected provider to be stamped, got %q", google.Provider)
	}
	if len(google.Scopes) != len(DefaultGoogleScopes) {
		t.Errorf("expected default google scopes, got %v", google.Scopes)
	}

	microsoft := cfg.Providers.Microsoft.Accounts[0]
	if microsoft.TenantID != DefaultTenantID {
		t.Errorf("expected default tenant, got %q", microsoft.TenantID)
	}
	if len(microsoft.Scopes) != 2 || microsoft.Scopes[0] != "offline_access" || microsoft.Scopes[1] != "Mail.Read" {
		t.Errorf("expected offline_access prepended and scopes deduplicated, got %v", microsoft.Scopes)
	}
}

func TestValidateExpandsLocalRoots(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := validTestConfig()
	cfg.Providers.Local.Roots = []string{"~/Documents", "/var/data"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if strings.HasPrefix(cfg.Providers.Local.Roots[0], "~") {
		t.Errorf("expected tilde expansion, got %q", cfg.Providers.Local.Roots[0])
	}
	if cfg.Providers.Local.Roots[1] != "/var/data" {
		t.Errorf("absolute root must pass through, got %q", cfg.Providers.Local.Roots[1])
	}
}

func TestAccountLookups(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if acc, ok := cfg.FindAccount(ProviderGoogle, "work"); !ok || acc.Alias != "work" {
		t.Error("expected to find google:work")
	}
	if _, ok := cfg.FindAccount(ProviderGoogle, "ghost"); ok {
		t.Error("did not expect to find google:ghost")
	}

	if !cfg.KnownAlias("corp") {
		t.Error("expected corp to be known")
	}
	if cfg.KnownAlias("ghost") {
		t.Error("did not expect ghost to be known")
	}

	if accounts := cfg.AccountsFor(ProviderLocal); accounts != nil {
		t.Errorf("local has no accounts, got %v", accounts)
	}
}

func TestProviderEnabled(t *testing.T) {
	cfg := validTestConfig()
	cfg.Providers.Local.Enabled = true
	cfg.Providers.Microsoft.Enabled = false

	if !cfg.ProviderEnabled(ProviderLocal) || !cfg.ProviderEnabled(ProviderGoogle) {
		t.Error("expected local and google enabled")
	}
	if cfg.ProviderEnabled(ProviderMicrosoft) {
		t.Error("expected microsoft disabled")
	}
	if cfg.ProviderEnabled(Provider("dropbox")) {
		t.Error("unknown providers are never enabled")
	}
}

func TestAccountKey(t *testing.T) {
	acc := Account{Provider: ProviderGoogle, Alias: "work"}
	if acc.Key() != "google:work" {
		t.Errorf("Key() = %q", acc.Key())
	}
}
