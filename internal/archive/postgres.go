// Package archive is the pluggable persistence collaborator. The in-memory
// log stays authoritative; an Archiver only copies appended messages out
// best-effort, so losing the database never affects relay behavior.
package archive

import (
	"context"
	"fmt"
	"time"

	"chat-relay/internal/models"
	"chat-relay/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresArchiver struct {
	pool *pgxpool.Pool
}

func NewPostgresArchiver(databaseURL string) (*PostgresArchiver, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to message archive")
	return &PostgresArchiver{pool: pool}, nil
}

// Save copies one message into the archive. Replayed ids are ignored so
// retries stay idempotent.
func (a *PostgresArchiver) Save(ctx context.Context, m models.Message) error {
	query := `
		INSERT INTO messages (id, sender, sender_conn, room, content, is_private, recipient_conn, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := a.pool.Exec(ctx, query,
		m.ID, m.Sender, m.SenderID, m.Room, m.Text, m.IsPrivate, m.RecipientID, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to archive message: %w", err)
	}
	return nil
}

// Ping reports archive connectivity for the health endpoint.
func (a *PostgresArchiver) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *PostgresArchiver) Close() {
	a.pool.Close()
}
