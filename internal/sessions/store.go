// Package sessions keeps per-caller conversation history.
package sessions

import (
	"context"
	"time"

	"gemini-relay/internal/models"
)

// Store holds the turn history of each conversation, keyed by session id.
// Entries idle for longer than the store's idle timeout are evicted.
type Store interface {
	// Load returns the history for id. Unknown ids yield an empty history.
	Load(ctx context.Context, id string) ([]models.Turn, error)
	// Append adds turns to id, creating the entry on first contact.
	Append(ctx context.Context, id string, turns ...models.Turn) error
	// Delete drops id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// Options shared by the store implementations.
type Options struct {
	IdleTimeout time.Duration
	MaxTurns    int
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.MaxTurns <= 0 {
		o.MaxTurns = 40
	}
	// Keep user/model pairs intact when trimming.
	if o.MaxTurns%2 == 1 {
		o.MaxTurns++
	}
	return o
}

// trim keeps the newest max turns.
func trim(turns []models.Turn, max int) []models.Turn {
	if len(turns) <= max {
		return turns
	}
	return append([]models.Turn(nil), turns[len(turns)-max:]...)
}
