package router

import (
	"context"
	"sync"
	"time"
)

const mailboxIdle = 5 * time.Minute

// mailbox is the pending queue of one chat. signal holds at most one wakeup.
type mailbox struct {
	queue  []Event
	signal chan struct{}
}

// Mailboxes runs one worker goroutine per chat. Events of a chat are handled
// in submission order; different chats proceed concurrently.
type Mailboxes struct {
	handle func(ctx context.Context, ev Event)
	idle   time.Duration

	mu    sync.Mutex
	boxes map[int64]*mailbox
	wg    sync.WaitGroup
}

// NewMailboxes creates mailboxes delivering to handle.
func NewMailboxes(handle func(ctx context.Context, ev Event)) *Mailboxes {
	return &Mailboxes{
		handle: handle,
		idle:   mailboxIdle,
		boxes:  make(map[int64]*mailbox),
	}
}

// Submit queues ev for its chat, starting a worker if none is running. It
// never waits for the worker, so a busy chat cannot stall the update loop.
func (m *Mailboxes) Submit(ctx context.Context, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	box, ok := m.boxes[ev.ChatID]
	if !ok {
		box = &mailbox{signal: make(chan struct{}, 1)}
		m.boxes[ev.ChatID] = box
		m.wg.Add(1)
		go m.run(ctx, ev.ChatID, box)
	}
	box.queue = append(box.queue, ev)

	select {
	case box.signal <- struct{}{}:
	default:
	}
}

// Active returns the number of running workers.
func (m *Mailboxes) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boxes)
}

// Pending returns the number of queued events of chatID.
func (m *Mailboxes) Pending(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if box, ok := m.boxes[chatID]; ok {
		return len(box.queue)
	}
	return 0
}

// Wait blocks until every worker has exited.
func (m *Mailboxes) Wait() {
	m.wg.Wait()
}

func (m *Mailboxes) run(ctx context.Context, chatID int64, box *mailbox) {
	defer m.wg.Done()

	timer := time.NewTimer(m.idle)
	defer timer.Stop()

	for {
		select {
		case <-box.signal:
			for {
				ev, ok := m.next(box)
				if !ok {
					break
				}
				m.handle(ctx, ev)
				if ctx.Err() != nil {
					m.retire(chatID, nil)
					return
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.idle)
		case <-timer.C:
			if m.retire(chatID, box) {
				return
			}
			timer.Reset(m.idle)
		case <-ctx.Done():
			m.retire(chatID, nil)
			return
		}
	}
}

func (m *Mailboxes) next(box *mailbox) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(box.queue) == 0 {
		return Event{}, false
	}
	ev := box.queue[0]
	box.queue[0] = Event{}
	box.queue = box.queue[1:]
	return ev, true
}

// retire removes the worker of chatID when its box is empty.
func (m *Mailboxes) retire(chatID int64, box *mailbox) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if box != nil && len(box.queue) > 0 {
		return false
	}
	delete(m.boxes, chatID)
	return true
}
