package common

import "fmt"

var (
	// Credential store keys
	credentialPrefix      string = "credentials"
	credentialToken       string = "credentials:token:%s:%s"        // provider, alias
	credentialIndex       string = "credentials:index"
	credentialRefreshLock string = "credentials:refresh:lock:%s:%s" // provider, alias
)

var Keys = &redisKeys{}

type redisKeys struct{}

// Credential store keys
func (rk *redisKeys) CredentialPrefix() string {
	return credentialPrefix
}

func (rk *redisKeys) CredentialToken(provider, alias string) string {
	return fmt.Sprintf(credentialToken, provider, alias)
}

func (rk *redisKeys) CredentialIndex() string {
	return credentialIndex
}

func (rk *redisKeys) CredentialRefreshLock(provider, alias string) string {
	return fmt.Sprintf(credentialRefreshLock, provider, alias)
}
