package timer

import (
	"time"
)

// Store is the durable key-value collaborator the snapshot lives in. Get
// reports absence via ok=false. Both operations are treated as fallible
// best-effort: losing a snapshot degrades recovery, never the running timer.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// WriteInterval bounds durable writes while the timer is running. Idle and
// paused state changes are written immediately.
const WriteInterval = 5 * time.Second

// Persister writes snapshots to a Store under a fixed key, throttling the
// steady tick traffic and honoring forced flushes (hidden tab, unload).
type Persister struct {
	store     Store
	key       string
	lastWrite time.Time
}

func NewPersister(store Store, key string) *Persister {
	return &Persister{store: store, key: key}
}

// Save persists the snapshot. While running, unforced writes are dropped
// until WriteInterval has passed since the last durable write. Storage errors
// are swallowed.
func (p *Persister) Save(snap Snapshot, now time.Time, force bool) {
	if !force && snap.IsRunning && now.Sub(p.lastWrite) < WriteInterval {
		return
	}
	payload, err := snap.Encode()
	if err != nil {
		return
	}
	if err := p.store.Set(p.key, payload); err != nil {
		return
	}
	p.lastWrite = now
}

// Load reads the last snapshot, falling back to defaults when it is absent,
// unreadable, or malformed, and applies the catch-up adjustment for time that
// passed while no process was ticking.
func (p *Persister) Load(now time.Time) Snapshot {
	payload, ok, err := p.store.Get(p.key)
	if err != nil || !ok {
		return DefaultSnapshot()
	}
	snap := DecodeSnapshot(payload)
	snap.CatchUp(now)
	return snap
}
