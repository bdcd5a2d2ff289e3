package file

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/service/internal/feed"
)

// fakeFeed dispatches events synchronously to subscribed handlers.
type fakeFeed struct {
	mu     sync.Mutex
	subs   map[int]struct {
		userID string
		h      feed.Handler
	}
	nextID int
	unsubs int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: map[int]struct {
		userID string
		h      feed.Handler
	}{}}
}

func (f *fakeFeed) Subscribe(userID string, h feed.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.subs[id] = struct {
		userID string
		h      feed.Handler
	}{userID, h}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			f.unsubs++
		}
	}
}

func (f *fakeFeed) fire(ev feed.Event) {
	f.mu.Lock()
	handlers := []feed.Handler{}
	for _, s := range f.subs {
		if s.userID == ev.UserID {
			handlers = append(handlers, s.h)
		}
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (f *fakeFeed) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func waitForViews(t *testing.T, views <-chan []File, n int) [][]File {
	t.Helper()
	var got [][]File
	for len(got) < n {
		select {
		case v := <-views:
			got = append(got, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for view %d of %d", len(got)+1, n)
		}
	}
	return got
}

func TestLoadReplacesViewWholesale(t *testing.T) {
	repo := &fakeRepo{}
	repo.files = []File{
		{ID: "f1", UserID: "u1", Name: "old.txt", Size: 1},
		{ID: "f2", UserID: "u2", Name: "other.txt", Size: 2},
	}
	cat := NewCatalog(repo, newFakeFeed())

	view, err := cat.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "old.txt", view[0].Name)
	assert.Equal(t, view, cat.Snapshot())

	repo.files = []File{{ID: "f3", UserID: "u1", Name: "new.txt", Size: 3}}
	view, err = cat.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.Equal(t, "new.txt", view[0].Name)
	assert.Equal(t, view, cat.Snapshot())
}

func TestWatchDeliversRefreshedViewOnEveryEvent(t *testing.T) {
	repo := &fakeRepo{}
	fd := newFakeFeed()
	cat := NewCatalog(repo, fd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views := make(chan []File, 8)
	done := make(chan error, 1)
	go func() {
		done <- cat.Watch(ctx, "u1", func(fs []File) { views <- fs })
	}()

	// Initial (empty) view arrives before any event.
	got := waitForViews(t, views, 1)
	assert.Empty(t, got[0])
	require.Eventually(t, func() bool { return fd.subscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	// Insert event → view matches a fresh load.
	repo.mu.Lock()
	repo.files = append(repo.files, File{ID: "f1", UserID: "u1", Name: "a.txt", Size: 10})
	repo.mu.Unlock()
	fd.fire(feed.Event{UserID: "u1", Op: "INSERT"})

	got = waitForViews(t, views, 1)
	fresh, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, fresh, got[0])

	// No-op update event → still a full refresh with identical content.
	fd.fire(feed.Event{UserID: "u1", Op: "UPDATE"})
	got = waitForViews(t, views, 1)
	assert.Equal(t, fresh, got[0])

	// Delete event → empty again, no stale entries.
	repo.mu.Lock()
	repo.files = nil
	repo.mu.Unlock()
	fd.fire(feed.Event{UserID: "u1", Op: "DELETE"})
	got = waitForViews(t, views, 1)
	assert.Empty(t, got[0])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchUnsubscribesOnCancel(t *testing.T) {
	repo := &fakeRepo{}
	fd := newFakeFeed()
	cat := NewCatalog(repo, fd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cat.Watch(ctx, "u1", func([]File) {})
	}()

	// Wait for the subscription to be registered, then cancel.
	require.Eventually(t, func() bool { return fd.subscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
	assert.Zero(t, fd.subscriberCount())
	assert.Equal(t, 1, fd.unsubs)
}

func TestWatchUnsubscribesOnRefreshFailure(t *testing.T) {
	repo := &fakeRepo{}
	fd := newFakeFeed()
	cat := NewCatalog(repo, fd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cat.Watch(ctx, "u1", func([]File) {})
	}()
	require.Eventually(t, func() bool { return fd.subscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	repo.listErr = assert.AnError
	repo.mu.Unlock()
	fd.fire(feed.Event{UserID: "u1", Op: "INSERT"})

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after refresh failure")
	}
	assert.Zero(t, fd.subscriberCount())
}

func TestWatchIgnoresOtherUsersEvents(t *testing.T) {
	repo := &fakeRepo{}
	fd := newFakeFeed()
	cat := NewCatalog(repo, fd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views := make(chan []File, 8)
	go func() {
		_ = cat.Watch(ctx, "u1", func(fs []File) { views <- fs })
	}()
	waitForViews(t, views, 1)
	require.Eventually(t, func() bool { return fd.subscriberCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	fd.fire(feed.Event{UserID: "u2", Op: "INSERT"})

	select {
	case <-views:
		t.Fatal("received a view for another user's event")
	case <-time.After(100 * time.Millisecond):
	}
}
