package sonara

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sonara-lab/sonara/observability"
)

// SQLiteHistoryRepository is a HistoryRepository backed by a SQLite
// database. The history is still a single logical document: Save replaces
// every row inside one transaction, so readers see either the old or the
// new conversation, never a mix.
type SQLiteHistoryRepository struct {
	db     *sql.DB
	mu     sync.Mutex
	logger observability.Logger
}

// NewSQLiteHistoryRepository opens (or creates) the database at
// databasePath and initializes the schema.
func NewSQLiteHistoryRepository(databasePath string, logger observability.Logger) (*SQLiteHistoryRepository, error) {
	db, err := sql.Open("sqlite3", databasePath+"?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if logger == nil {
		logger = observability.NewNullLogger()
	}

	repo := &SQLiteHistoryRepository{db: db, logger: logger}
	if err := repo.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteHistoryRepository) initSchema(ctx context.Context) error {
	createDocumentTableSQL := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		saved_at DATETIME NOT NULL
	);`

	createMessagesTableSQL := `
	CREATE TABLE IF NOT EXISTS messages (
		position INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL
	);`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema init: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createDocumentTableSQL); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createMessagesTableSQL); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	return tx.Commit()
}

// Save implements HistoryRepository.Save. The document row and every
// message row are replaced in a single transaction.
func (r *SQLiteHistoryRepository) Save(ctx context.Context, messages []Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for saving history: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear previous history: %w", err)
	}

	upsertSQL := `INSERT INTO history (id, saved_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at`
	if _, err := tx.ExecContext(ctx, upsertSQL, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark history document: %w", err)
	}

	insertSQL := `INSERT INTO messages (message_id, role, text) VALUES (?, ?, ?)`
	for _, msg := range messages {
		if _, err := tx.ExecContext(ctx, insertSQL, msg.ID, string(msg.Role), msg.Text); err != nil {
			return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history save: %w", err)
	}

	return nil
}

// Load implements HistoryRepository.Load. A missing document row means no
// history was ever saved (or it was deleted), reported as
// ErrHistoryNotFound.
func (r *SQLiteHistoryRepository) Load(ctx context.Context) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	var savedAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT saved_at FROM history WHERE id = 1`).Scan(&savedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to query history document: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT message_id, role, text FROM messages ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		var roleStr string
		if err := rows.Scan(&msg.ID, &roleStr, &msg.Text); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.Role = Role(roleStr)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

// Delete implements HistoryRepository.Delete. Removing an already-missing
// document is not an error.
func (r *SQLiteHistoryRepository) Delete(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for deleting history: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to delete history document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history delete: %w", err)
	}

	return nil
}

// Close releases the database connection.
func (r *SQLiteHistoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
