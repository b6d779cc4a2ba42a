package dedup_test

import (
	"fmt"
	"testing"

	"github.com/nvoronin/periscope/internal/dedup"
	"github.com/stretchr/testify/assert"
)

func TestLedgerMarkAndSeen(t *testing.T) {
	l := dedup.NewLedger(10)

	assert.False(t, l.Seen("sig-a"))
	l.Mark("sig-a")
	assert.True(t, l.Seen("sig-a"))
}

func TestLedgerForget(t *testing.T) {
	l := dedup.NewLedger(10)

	l.Mark("sig-a")
	l.Forget("sig-a")
	assert.False(t, l.Seen("sig-a"))

	// Forgetting an absent or empty key is a no-op.
	l.Forget("sig-b")
	l.Forget("")
	assert.Equal(t, 0, l.Len())
}

func TestLedgerEvictsOldest(t *testing.T) {
	l := dedup.NewLedger(3)

	for i := range 5 {
		l.Mark(fmt.Sprintf("sig-%d", i))
	}

	assert.Equal(t, 3, l.Len())
	assert.False(t, l.Seen("sig-0"), "oldest entries are evicted first")
	assert.False(t, l.Seen("sig-1"))
	assert.True(t, l.Seen("sig-4"))
}

func TestLedgerIgnoresEmptyKey(t *testing.T) {
	l := dedup.NewLedger(10)

	l.Mark("")
	assert.False(t, l.Seen(""))
	assert.Equal(t, 0, l.Len())
}

func TestLedgerDefaultSize(t *testing.T) {
	l := dedup.NewLedger(0)

	for i := range dedup.DefaultLedgerSize + 10 {
		l.Mark(fmt.Sprintf("sig-%d", i))
	}
	assert.Equal(t, dedup.DefaultLedgerSize, l.Len())
}
