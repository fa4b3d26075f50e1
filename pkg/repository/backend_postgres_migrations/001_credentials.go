package backend_postgres_migrations

import (
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigration(upCredentials, downCredentials)
}

func upCredentials(tx *sql.Tx) error {
	createStatements := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			id SERIAL PRIMARY KEY,
			provider VARCHAR(32) NOT NULL,
			alias VARCHAR(255) NOT NULL,
			record JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (provider, alias)
		);`,

		`CREATE INDEX idx_credentials_provider ON credentials(provider);`,
	}

	for _, stmt := range createStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func downCredentials(tx *sql.Tx) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS credentials;`,
	}

	for _, stmt := range dropStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
