// Package store defines the persistence contract for conversations.
package store

import (
	"context"
	"errors"

	"github.com/calebhart/parley/pkg/domain"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("not found")

// ConversationStore manages persisted conversations. Implementations must
// preserve message insertion order.
type ConversationStore interface {
	// Save persists the conversation and its full message list, replacing
	// any previous version with the same ID.
	Save(ctx context.Context, conv *domain.Conversation) error

	// Get retrieves a conversation with its messages by ID.
	// Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// List returns metadata for all conversations, ordered by creation time
	// descending. Messages are not loaded.
	List(ctx context.Context) ([]domain.Metadata, error)

	// Delete removes a conversation and its messages by ID.
	Delete(ctx context.Context, id string) error
}
