package badger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/insiderlens/internal/common"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeClock is a settable time source for queue tests
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue(t *testing.T) (*QueueStorage, *BadgerDB, *fakeClock) {
	t.Helper()
	db := newTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)}
	q := NewQueueStorage(db, arbor.NewLogger()).(*QueueStorage)
	q.now = clock.Now
	return q, db, clock
}
