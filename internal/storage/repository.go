// Package storage keeps a local SQLite audit log of handled chat commands.
// The ledger itself lives in the remote kas service; this is only a record
// of what the bot was asked and how it answered.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kasbot/internal/core"
	"kasbot/internal/log"

	_ "modernc.org/sqlite"
)

const maxRecent = 500

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Record appends one handled command to the audit log.
func (r *SQLiteRepository) Record(ctx context.Context, rec core.CommandRecord) error {
	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO command_log
			(received_at, gateway, message_id, sender_id, chat_id, command, amount, note, outcome, balance, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receivedAt.UTC(), rec.Gateway, rec.MessageID, rec.SenderID, rec.ChatID,
		rec.Command, rec.Amount, rec.Note, rec.Outcome, rec.Balance, rec.Error)
	if err != nil {
		return fmt.Errorf("insert command log: %w", err)
	}

	id, _ := res.LastInsertId()
	r.logger.DebugContext(ctx, "Command recorded",
		"id", id,
		log.FieldCommand, rec.Command,
		"outcome", rec.Outcome)
	return nil
}

// Recent returns up to limit records, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]core.CommandRecord, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT received_at, gateway, message_id, sender_id, chat_id, command, amount, note, outcome, balance, error
		FROM command_log
		ORDER BY received_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query command log: %w", err)
	}
	defer rows.Close()

	var out []core.CommandRecord
	for rows.Next() {
		var rec core.CommandRecord
		if err := rows.Scan(&rec.ReceivedAt, &rec.Gateway, &rec.MessageID, &rec.SenderID, &rec.ChatID,
			&rec.Command, &rec.Amount, &rec.Note, &rec.Outcome, &rec.Balance, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan command log: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate command log: %w", err)
	}
	return out, nil
}
