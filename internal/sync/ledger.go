package sync

import "sync"

// ledgerEntry tracks one in-flight data frame.
type ledgerEntry struct {
	Category string
	Attempts int
}

// RetryLedger is the transient map from outbound message id to attempt
// count. An entry exists while a data frame is pending acknowledgment and
// is removed on ack. Not persisted; a process restart resets it, and the
// store's unsynced set remains the source of truth for what to resend.
type RetryLedger struct {
	mu      sync.Mutex
	entries map[string]ledgerEntry
}

// NewRetryLedger creates an empty ledger.
func NewRetryLedger() *RetryLedger {
	return &RetryLedger{entries: make(map[string]ledgerEntry)}
}

// Sent records a send attempt for a message id.
func (l *RetryLedger) Sent(id, category string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.entries[id]
	entry.Category = category
	entry.Attempts++
	l.entries[id] = entry
}

// Ack removes the entry for an acknowledged message id and returns the
// category it was sent for. ok is false for unknown ids (e.g. an ack that
// arrives after a process restart).
func (l *RetryLedger) Ack(id string) (category string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[id]
	if !ok {
		return "", false
	}
	delete(l.entries, id)
	return entry.Category, true
}

// Attempts returns the attempt count for a pending message id.
func (l *RetryLedger) Attempts(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[id].Attempts
}

// Pending returns the number of unacknowledged message ids.
func (l *RetryLedger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
