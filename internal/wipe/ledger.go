package wipe

import (
	"sync"
	"time"
)

// VoteWindowTTL is how long a vote stays valid.
const VoteWindowTTL = 24 * time.Hour

// CountMode decides how repeated votes from the same voter are counted
type CountMode int

const (
	// CountDistinct keeps one slot per voter; a repeat refreshes the voter's timestamp.
	CountDistinct CountMode = iota
	// CountRepeats appends every vote, so one voter can reach the threshold alone.
	CountRepeats
)

// Scope identifies a vote window. Total wipes use a zero UserID.
type Scope struct {
	ChatID int64
	UserID int64
}

// TotalScope is the per-chat scope used by total wipes.
func TotalScope(chatID int64) Scope {
	return Scope{ChatID: chatID}
}

// PersonalScope is the per-chat, per-requester scope used by personal wipes.
func PersonalScope(chatID, userID int64) Scope {
	return Scope{ChatID: chatID, UserID: userID}
}

// Outcome is the result of registering a vote
type Outcome struct {
	Confirmed bool
	Count     int
	Required  int
}

type vote struct {
	voter int64
	at    time.Time
}

// Ledger tracks votes per scope. All mutations happen under one mutex so a
// confirmation clears the window before any other registration can see it.
type Ledger struct {
	threshold int
	mode      CountMode
	ttl       time.Duration

	mu      sync.Mutex
	windows map[Scope][]vote
}

// NewLedger creates a ledger. Thresholds below 1 are treated as 1.
func NewLedger(threshold int, mode CountMode) *Ledger {
	if threshold < 1 {
		threshold = 1
	}
	return &Ledger{
		threshold: threshold,
		mode:      mode,
		ttl:       VoteWindowTTL,
		windows:   make(map[Scope][]vote),
	}
}

// Threshold returns the number of votes needed for confirmation.
func (l *Ledger) Threshold() int {
	return l.threshold
}

// Register records a vote from voter in scope at now.
//
// If any vote already in the window is ttl or more away from now the whole
// window is dropped first, fresher votes included.
func (l *Ledger) Register(scope Scope, voter int64, now time.Time) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.windows[scope]
	if l.isStale(window, now) {
		window = nil
	}

	window = l.add(window, voter, now)

	if len(window) >= l.threshold {
		delete(l.windows, scope)
		return Outcome{Confirmed: true, Count: len(window), Required: 0}
	}

	l.windows[scope] = window
	return Outcome{Count: len(window), Required: l.threshold - len(window)}
}

// Pending returns the current size of the window for scope.
func (l *Ledger) Pending(scope Scope) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows[scope])
}

// Sweep drops every window a subsequent Register would reset anyway and
// reports how many were removed.
func (l *Ledger) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for scope, window := range l.windows {
		if l.isStale(window, now) {
			delete(l.windows, scope)
			removed++
		}
	}
	return removed
}

// Open returns the number of non-empty windows.
func (l *Ledger) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *Ledger) add(window []vote, voter int64, now time.Time) []vote {
	if l.mode == CountDistinct {
		for i := range window {
			if window[i].voter == voter {
				window[i].at = now
				return window
			}
		}
	}
	return append(window, vote{voter: voter, at: now})
}

func (l *Ledger) isStale(window []vote, now time.Time) bool {
	for _, v := range window {
		d := now.Sub(v.at)
		if d < 0 {
			d = -d
		}
		if d >= l.ttl {
			return true
		}
	}
	return false
}
