// Package chatstore persists the demo chat room's message history to
// Postgres, generalized from a pgxpool-backed repository pattern down to
// a single append-and-list table, with reads going through sqlx's
// struct-scanning (wired via pgx/v5's stdlib adapter) to exercise both
// of those Postgres access styles.
package chatstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Message is one persisted chat line.
type Message struct {
	ID        uuid.UUID `db:"id"`
	Room      string    `db:"room"`
	Author    string    `db:"author"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// Store writes through pgxpool and reads through sqlx (database/sql,
// backed by pgx/v5/stdlib) so both Postgres access styles stay
// exercised.
type Store struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
}

// Open connects a pgxpool for writes and an sqlx.DB over the same DSN
// (via pgx/v5/stdlib) for reads.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("chatstore: connect pool: %w", err)
	}
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	db := sqlx.NewDb(sqlDB, "pgx")
	return &Store{pool: pool, db: db}, nil
}

// Close releases both underlying connections.
func (s *Store) Close() {
	s.db.Close()
	s.pool.Close()
}

// Ping verifies the write pool can reach Postgres, for liveness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the chat_messages table if it doesn't already
// exist, for the demo's zero-migration-tooling bootstrap.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS chat_messages (
			id UUID PRIMARY KEY,
			room TEXT NOT NULL,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("chatstore: ensure schema: %w", err)
	}
	return nil
}

// Append inserts one chat message.
func (s *Store) Append(ctx context.Context, room, author, body string) (Message, error) {
	msg := Message{ID: uuid.New(), Room: room, Author: author, Body: body, CreatedAt: time.Now()}
	const q = `INSERT INTO chat_messages (id, room, author, body, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, msg.ID, msg.Room, msg.Author, msg.Body, msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("chatstore: append: %w", err)
	}
	return msg, nil
}

// History returns the most recent limit messages for room, oldest first.
func (s *Store) History(ctx context.Context, room string, limit int) ([]Message, error) {
	const q = `
		SELECT id, room, author, body, created_at
		FROM (
			SELECT * FROM chat_messages WHERE room = $1 ORDER BY created_at DESC LIMIT $2
		) recent
		ORDER BY created_at ASC`
	var msgs []Message
	if err := s.db.SelectContext(ctx, &msgs, q, room, limit); err != nil {
		return nil, fmt.Errorf("chatstore: history: %w", err)
	}
	return msgs, nil
}

// ErrNotFound lets repository callers distinguish a missing row from a
// query failure.
var ErrNotFound = pgx.ErrNoRows
