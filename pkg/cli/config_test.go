package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactSecrets(t *testing.T) {
	raw := map[string]any{
		"gateway": map[string]any{"authToken": "top-secret"},
		"credentials": map[string]any{
			"backend":    "redis",
			"sealingKey": "abcd1234",
			"redis":      map[string]any{"addr": "127.0.0.1:6379", "password": "hunter2"},
		},
		"providers": map[string]any{
			"google": map[string]any{
				"accounts": []any{
					map[string]any{"alias": "work", "clientId": "id-1", "clientSecret": "sssh"},
					map[string]any{"alias": "personal", "clientSecret": ""},
				},
			},
		},
	}

	redactSecrets(raw)

	gateway := raw["gateway"].(map[string]any)
	assert.Equal(t, "[redacted]", gateway["authToken"])

	creds := raw["credentials"].(map[string]any)
	assert.Equal(t, "redis", creds["backend"], "non-secret values pass through")
	assert.Equal(t, "[redacted]", creds["sealingKey"])

	redis := creds["redis"].(map[string]any)
	assert.Equal(t, "127.0.0.1:6379", redis["addr"])
	assert.Equal(t, "[redacted]", redis["password"])

	accounts := raw["providers"].(map[string]any)["google"].(map[string]any)["accounts"].([]any)
	work := accounts[0].(map[string]any)
	assert.Equal(t, "work", work["alias"])
	assert.Equal(t, "id-1", work["clientId"])
	assert.Equal(t, "[redacted]", work["clientSecret"])

	personal := accounts[1].(map[string]any)
	assert.Equal(t, "", personal["clientSecret"], "empty secrets stay empty rather than advertising a redaction")
}
