package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docsift/docsift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCredentialRepositoryTests exercises the CredentialRepository contract
// shared by every backend.
func runCredentialRepositoryTests(t *testing.T, repo CredentialRepository) {
	ctx := context.Background()

	t.Run("missing account reads nil", func(t *testing.T) {
		record, err := repo.Get(ctx, types.ProviderGoogle, "ghost")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	record := &types.TokenRecord{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    1750000000000,
		Scopes:       []string{"drive.readonly", "gmail.readonly"},
		Extra:        map[string]string{"email": "ana@example.com"},
	}

	t.Run("save and read back", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, types.ProviderGoogle, "work", record))

		got, err := repo.Get(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, record.AccessToken, got.AccessToken)
		assert.Equal(t, record.RefreshToken, got.RefreshToken)
		assert.Equal(t, record.ExpiresAt, got.ExpiresAt)
		assert.Equal(t, record.Scopes, got.Scopes)
		assert.Equal(t, record.Extra, got.Extra)
	})

	t.Run("returned record is isolated", func(t *testing.T) {
		got, err := repo.Get(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		got.AccessToken = "mutated"
		got.Extra["email"] = "mutated"

		again, err := repo.Get(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		assert.Equal(t, "access-1", again.AccessToken)
		assert.Equal(t, "ana@example.com", again.Extra["email"])
	})

	t.Run("save overwrites", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, types.ProviderGoogle, "work", &types.TokenRecord{
			AccessToken: "access-2",
		}))

		got, err := repo.Get(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		assert.Equal(t, "access-2", got.AccessToken)
		assert.Empty(t, got.RefreshToken)
	})

	t.Run("list returns each stored key", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, types.ProviderMicrosoft, "corp", record))

		keys, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, "google:work", keys[0].String())
		assert.Equal(t, "microsoft:corp", keys[1].String())
	})

	t.Run("delete", func(t *testing.T) {
		existed, err := repo.Delete(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		assert.True(t, existed)

		got, err := repo.Get(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		assert.Nil(t, got)

		existed, err = repo.Delete(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, repo.Ping(ctx))
	})
}

func TestMemoryCredentialRepository(t *testing.T) {
	repo := NewMemoryCredentialRepository()
	defer repo.Close()
	runCredentialRepositoryTests(t, repo)
}

func TestBoltCredentialRepository(t *testing.T) {
	repo, err := NewBoltCredentialRepository(types.BoltConfig{
		Path: filepath.Join(t.TempDir(), "credentials.db"),
	})
	require.NoError(t, err)
	defer repo.Close()
	runCredentialRepositoryTests(t, repo)
}

func TestBoltCredentialRepositorySealed(t *testing.T) {
	key := strings.Repeat("ab", 32) // 32 bytes, hex encoded
	path := filepath.Join(t.TempDir(), "credentials.db")

	repo, err := NewBoltCredentialRepository(types.BoltConfig{Path: path, SealingKey: key})
	require.NoError(t, err)
	runCredentialRepositoryTests(t, repo)
	require.NoError(t, repo.Close())

	t.Run("reopen with the same key", func(t *testing.T) {
		ctx := context.Background()
		repo, err := NewBoltCredentialRepository(types.BoltConfig{Path: path, SealingKey: key})
		require.NoError(t, err)
		defer repo.Close()

		require.NoError(t, repo.Save(ctx, types.ProviderGoogle, "work", &types.TokenRecord{AccessToken: "sealed"}))
		got, err := repo.Get(ctx, types.ProviderGoogle, "work")
		require.NoError(t, err)
		assert.Equal(t, "sealed", got.AccessToken)
	})

	t.Run("wrong key cannot unseal", func(t *testing.T) {
		repo, err := NewBoltCredentialRepository(types.BoltConfig{
			Path:       path,
			SealingKey: strings.Repeat("cd", 32),
		})
		require.NoError(t, err)
		defer repo.Close()

		_, err = repo.Get(context.Background(), types.ProviderGoogle, "work")
		assert.Error(t, err)
	})
}

func TestRedisCredentialRepository(t *testing.T) {
	repo, err := NewRedisCredentialRepositoryForTest()
	require.NoError(t, err)
	defer repo.Close()
	runCredentialRepositoryTests(t, repo)
}

func TestRedisRefreshLock(t *testing.T) {
	repo, err := NewRedisCredentialRepositoryForTest()
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	release, err := repo.ObtainRefreshLock(ctx, types.ProviderGoogle, "work")
	require.NoError(t, err)

	// A second holder must not get the lock while the first one is live.
	contendCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = repo.ObtainRefreshLock(contendCtx, types.ProviderGoogle, "work")
	assert.Error(t, err)

	release()

	release2, err := repo.ObtainRefreshLock(ctx, types.ProviderGoogle, "work")
	require.NoError(t, err)
	release2()
}

func TestNewCredentialRepositoryBackendSelection(t *testing.T) {
	repo, err := NewCredentialRepository(types.CredentialsConfig{Backend: types.CredentialBackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCredentialRepository{}, repo)
	repo.Close()

	repo, err = NewCredentialRepository(types.CredentialsConfig{
		Backend: types.CredentialBackendBolt,
		Bolt:    types.BoltConfig{Path: filepath.Join(t.TempDir(), "credentials.db")},
	})
	require.NoError(t, err)
	assert.IsType(t, &BoltCredentialRepository{}, repo)
	repo.Close()

	_, err = NewCredentialRepository(types.CredentialsConfig{Backend: "etcd"})
	assert.Error(t, err)
}
