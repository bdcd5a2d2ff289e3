// Package feed delivers change notifications for the files table.
//
// A migration installs a trigger calling pg_notify on every insert, update,
// or delete; the Listener holds one dedicated connection on LISTEN and fans
// events out to per-user subscribers. Events carry no row data — consumers
// are expected to re-query, so a missed payload field can never desync them.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Channel is the Postgres notification channel the files trigger publishes to.
const Channel = "files_changes"

const reconnectDelay = time.Second

// Event describes a single change to some user's files.
type Event struct {
	UserID string `json:"user_id"`
	Op     string `json:"op"`
}

// Handler receives change events for a subscribed user.
type Handler func(Event)

// Listener maintains the LISTEN connection and the subscriber registry.
type Listener struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu     sync.RWMutex
	subs   map[string]map[int]Handler // userID → subscription id → handler
	nextID int
}

// NewListener creates a Listener over the given pool.
func NewListener(pool *pgxpool.Pool, logger *zap.Logger) *Listener {
	return &Listener{
		pool:   pool,
		logger: logger,
		subs:   make(map[string]map[int]Handler),
	}
}

// Start runs the notification loop until ctx is cancelled. The LISTEN
// connection is re-acquired after transient failures.
func (l *Listener) Start(ctx context.Context) {
	go l.run(ctx)
}

func (l *Listener) run(ctx context.Context) {
	for {
		if err := l.listen(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("change feed connection lost, reconnecting",
				zap.String("channel", Channel), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			l.logger.Warn("unparseable change notification",
				zap.String("payload", n.Payload), zap.Error(err))
			continue
		}
		go l.dispatch(ev)
	}
}

// Subscribe registers a handler for events on the given user's files and
// returns the matching unsubscribe function. The unsubscribe function is
// idempotent and must be called on every exit path of the consumer.
func (l *Listener) Subscribe(userID string, h Handler) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	if l.subs[userID] == nil {
		l.subs[userID] = make(map[int]Handler)
	}
	l.subs[userID][id] = h

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if handlers, ok := l.subs[userID]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(l.subs, userID)
			}
		}
	}
}

func (l *Listener) dispatch(ev Event) {
	l.mu.RLock()
	handlers := make([]Handler, 0, len(l.subs[ev.UserID]))
	for _, h := range l.subs[ev.UserID] {
		handlers = append(handlers, h)
	}
	l.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
