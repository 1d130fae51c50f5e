package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMailboxesKeepOrderPerChat(t *testing.T) {
	var (
		mu      sync.Mutex
		seen    = make(map[int64][]int)
		handled sync.WaitGroup
	)
	boxes := NewMailboxes(func(_ context.Context, ev Event) {
		mu.Lock()
		seen[ev.ChatID] = append(seen[ev.ChatID], ev.MessageID)
		mu.Unlock()
		handled.Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 200
	handled.Add(2 * n)
	for i := 1; i <= n; i++ {
		boxes.Submit(ctx, Event{ChatID: -1, MessageID: i})
		boxes.Submit(ctx, Event{ChatID: -2, MessageID: i})
	}
	handled.Wait()
	cancel()
	boxes.Wait()

	for _, chatID := range []int64{-1, -2} {
		ids := seen[chatID]
		assert.Len(t, ids, n)
		for i := range ids {
			assert.Equal(t, i+1, ids[i])
		}
	}
	assert.Equal(t, 0, boxes.Active())
}

func TestMailboxesRetireIdleWorkers(t *testing.T) {
	done := make(chan struct{}, 1)
	boxes := NewMailboxes(func(context.Context, Event) {
		done <- struct{}{}
	})
	boxes.idle = 20 * time.Millisecond

	boxes.Submit(context.Background(), Event{ChatID: -1})
	<-done
	assert.Eventually(t, func() bool { return boxes.Active() == 0 }, time.Second, 5*time.Millisecond)

	// a new event starts a fresh worker
	boxes.Submit(context.Background(), Event{ChatID: -1})
	<-done
	assert.Eventually(t, func() bool { return boxes.Active() == 0 }, time.Second, 5*time.Millisecond)
	boxes.Wait()
}

func TestMailboxesRunChatsConcurrently(t *testing.T) {
	release := make(chan struct{})
	other := make(chan struct{})
	boxes := NewMailboxes(func(_ context.Context, ev Event) {
		if ev.ChatID == -1 {
			<-release
			return
		}
		close(other)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boxes.Submit(ctx, Event{ChatID: -1})
	boxes.Submit(ctx, Event{ChatID: -2})

	select {
	case <-other:
	case <-time.After(time.Second):
		t.Fatal("chat -2 was blocked by chat -1")
	}
	close(release)
	cancel()
	boxes.Wait()
}

func TestMailboxesSubmitDoesNotWaitForBusyChat(t *testing.T) {
	release := make(chan struct{})
	other := make(chan struct{})
	boxes := NewMailboxes(func(_ context.Context, ev Event) {
		if ev.ChatID == -1 {
			<-release
			return
		}
		close(other)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i := 1; i <= 500; i++ {
			boxes.Submit(ctx, Event{ChatID: -1, MessageID: i})
		}
		boxes.Submit(ctx, Event{ChatID: -2, MessageID: 1})
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Submit waited on a busy chat")
	}
	select {
	case <-other:
	case <-time.After(time.Second):
		t.Fatal("chat -2 was starved by the backlog of chat -1")
	}
	assert.GreaterOrEqual(t, boxes.Pending(-1), 499)

	close(release)
	assert.Eventually(t, func() bool { return boxes.Pending(-1) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	boxes.Wait()
}
