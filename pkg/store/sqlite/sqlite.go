// Package sqlite implements store.ConversationStore on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/calebhart/parley/pkg/domain"
	"github.com/calebhart/parley/pkg/store"
)

// Store implements ConversationStore using SQLite.
type Store struct {
	db *sql.DB
}

// Verify interface compliance at compile time.
var _ store.ConversationStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		tool_calls TEXT NOT NULL DEFAULT '',
		tool_call_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, seq),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation_seq ON messages(conversation_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save persists the conversation, replacing any previous version.
func (s *Store) Save(ctx context.Context, conv *domain.Conversation) error {
	tags, err := json.Marshal(conv.Metadata.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, tags = excluded.tags, updated_at = excluded.updated_at`,
		conv.Metadata.ID, conv.Metadata.Title, string(tags), conv.Metadata.CreatedAt, conv.Metadata.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.Metadata.ID); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}

	for seq, msg := range conv.Messages {
		var toolCalls, image string
		if len(msg.ToolCalls) > 0 {
			b, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("encoding tool calls (message %d): %w", seq, err)
			}
			toolCalls = string(b)
		}
		if msg.Image != nil {
			b, err := json.Marshal(msg.Image)
			if err != nil {
				return fmt.Errorf("encoding image (message %d): %w", seq, err)
			}
			image = string(b)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, seq, role, content, tool_calls, tool_call_id, name, image, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			conv.Metadata.ID, seq, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, msg.Name, image, msg.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("inserting message %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a conversation with its messages.
func (s *Store) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	var meta domain.Metadata
	var tags string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, tags, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&meta.ID, &meta.Title, &tags, &meta.CreatedAt, &meta.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &meta.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, name, image, timestamp
		 FROM messages WHERE conversation_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role, toolCalls, image string
		if err := rows.Scan(&role, &msg.Content, &toolCalls, &msg.ToolCallID, &msg.Name, &image, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.Role(role)
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}
		if image != "" {
			if err := json.Unmarshal([]byte(image), &msg.Image); err != nil {
				return nil, fmt.Errorf("decoding image: %w", err)
			}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return domain.NewConversation(meta, msgs)
}

// List returns metadata for all conversations, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Metadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, tags, created_at, updated_at FROM conversations ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Metadata
	for rows.Next() {
		var meta domain.Metadata
		var tags string
		if err := rows.Scan(&meta.ID, &meta.Title, &tags, &meta.CreatedAt, &meta.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &meta.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// Delete removes a conversation and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("conversation %s: %w", id, store.ErrNotFound)
	}
	return nil
}
