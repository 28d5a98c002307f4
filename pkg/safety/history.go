package safety

import (
	"sync"
	"time"
)

// historyCap bounds the number of violations kept per user.
const historyCap = 100

// Entry is one recorded violation for a user.
type Entry struct {
	UserID    string
	Violation Violation
	Kind      CheckKind
	At        time.Time
}

// History keeps a bounded in-memory log of violations per user. It is
// diagnostic state only and does not survive process restarts.
type History struct {
	mu      sync.Mutex
	byUser  map[string][]Entry
	nowFunc func() time.Time
}

// NewHistory creates an empty violation history.
func NewHistory() *History {
	return &History{
		byUser:  make(map[string][]Entry),
		nowFunc: time.Now,
	}
}

// Record appends a violation to the user's log, evicting the oldest
// entry once the per-user cap is reached.
func (h *History) Record(userID string, v Violation, kind CheckKind) {
	if userID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.byUser[userID]
	entries = append(entries, Entry{
		UserID:    userID,
		Violation: v,
		Kind:      kind,
		At:        h.nowFunc().UTC(),
	})
	if len(entries) > historyCap {
		entries = entries[len(entries)-historyCap:]
	}
	h.byUser[userID] = entries
}

// For returns the recorded violations for a user, oldest first.
func (h *History) For(userID string) []Violation {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.byUser[userID]
	out := make([]Violation, len(entries))
	for i, e := range entries {
		out[i] = e.Violation
	}
	return out
}
