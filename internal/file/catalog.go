package file

import (
	"context"
	"fmt"
	"sync"

	"github.com/filedrop/service/internal/feed"
)

// Feed is the change-notification source the catalog consumes.
type Feed interface {
	Subscribe(userID string, h feed.Handler) (unsubscribe func())
}

// Catalog maintains an in-memory ordered view of one user's files, seeded by
// a query and refreshed by the change feed. Every refresh replaces the view
// wholesale — no incremental patching, so interleaved notifications can never
// leave it half-updated.
type Catalog struct {
	repo Repository
	feed Feed

	mu   sync.RWMutex
	view []File
}

// NewCatalog creates a catalog over the given metadata repository and feed.
func NewCatalog(repo Repository, feed Feed) *Catalog {
	return &Catalog{repo: repo, feed: feed}
}

// Load re-queries the user's files and swaps the view atomically, returning
// the fresh listing.
func (c *Catalog) Load(ctx context.Context, userID string) ([]File, error) {
	files, err := c.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	c.mu.Lock()
	c.view = files
	c.mu.Unlock()

	return files, nil
}

// Snapshot returns the most recently loaded view.
func (c *Catalog) Snapshot() []File {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Watch loads the initial view, delivers it to handler, and re-delivers a
// freshly loaded view after every change event for the user, regardless of
// event type. It blocks until ctx is cancelled or a refresh fails; the feed
// subscription is released on every exit path.
func (c *Catalog) Watch(ctx context.Context, userID string, handler func([]File)) error {
	view, err := c.Load(ctx, userID)
	if err != nil {
		return err
	}
	handler(view)

	// Buffer of one coalesces bursts: a pending event already guarantees
	// the next refresh sees the latest state.
	events := make(chan feed.Event, 1)
	unsubscribe := c.feed.Subscribe(userID, func(ev feed.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-events:
			view, err := c.Load(ctx, userID)
			if err != nil {
				return fmt.Errorf("refresh catalog: %w", err)
			}
			handler(view)
		}
	}
}
