package dedup

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLedgerSize bounds the number of retained signatures/ids.
const DefaultLedgerSize = 100

// Ledger tracks which message signatures and ids have already been
// committed, within a bounded recency window (oldest entries evicted
// first). Process-local: cross-tab or cross-process duplicates are left to
// server-side idempotency checks.
type Ledger struct {
	seen *lru.Cache[string, struct{}]
}

// NewLedger creates a ledger retaining at most size entries. A size of 0
// or less uses DefaultLedgerSize.
func NewLedger(size int) *Ledger {
	if size <= 0 {
		size = DefaultLedgerSize
	}
	// lru.New only fails for non-positive sizes, which are normalized above.
	cache, _ := lru.New[string, struct{}](size)
	return &Ledger{seen: cache}
}

// Mark records a signature or id as committed.
func (l *Ledger) Mark(key string) {
	if key == "" {
		return
	}
	l.seen.Add(key, struct{}{})
}

// Forget drops a key, releasing a claim whose write did not commit.
func (l *Ledger) Forget(key string) {
	if key == "" {
		return
	}
	l.seen.Remove(key)
}

// Seen reports whether a signature or id was committed within the
// retention window.
func (l *Ledger) Seen(key string) bool {
	if key == "" {
		return false
	}
	return l.seen.Contains(key)
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	return l.seen.Len()
}
