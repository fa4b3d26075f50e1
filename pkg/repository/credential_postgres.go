package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/docsift/docsift/pkg/types"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	// Import migrations to register them with goose
	_ "github.com/docsift/docsift/pkg/repository/backend_postgres_migrations"
)

// PostgresCredentialRepository stores token records in Postgres, for
// deployments where several gateways share one credential store.
type PostgresCredentialRepository struct {
	db     *sql.DB
	config types.PostgresConfig
}

var _ CredentialRepository = (*PostgresCredentialRepository)(nil)

func NewPostgresCredentialRepository(cfg types.PostgresConfig) (*PostgresCredentialRepository, error) {
	// Apply defaults
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.Database == "" {
		cfg.Database = "docsift"
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to postgres credential store")

	return &PostgresCredentialRepository{db: db, config: cfg}, nil
}

func (r *PostgresCredentialRepository) Get(ctx context.Context, provider types.Provider, alias string) (*types.TokenRecord, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT record FROM credentials WHERE provider = $1 AND alias = $2`,
		string(provider), alias,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	var record types.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode credential %s:%s: %w", provider, alias, err)
	}
	return &record, nil
}

func (r *PostgresCredentialRepository) Save(ctx context.Context, provider types.Provider, alias string, record *types.TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO credentials (provider, alias, record, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider, alias)
		DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()`,
		string(provider), alias, data,
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (r *PostgresCredentialRepository) Delete(ctx context.Context, provider types.Provider, alias string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE provider = $1 AND alias = $2`,
		string(provider), alias,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *PostgresCredentialRepository) List(ctx context.Context) ([]CredentialKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider, alias FROM credentials ORDER BY provider, alias`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var keys []CredentialKey
	for rows.Next() {
		var key CredentialKey
		if err := rows.Scan(&key.Provider, &key.Alias); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *PostgresCredentialRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresCredentialRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations using goose
func (r *PostgresCredentialRepository) RunMigrations() error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(r.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(r.db)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Info().Int64("version", version).Msg("credential store migrations complete")
	return nil
}
