package state

// DedupStore answers "has this key been seen" for one run. Persisting the
// underlying records is the Store's job.
type DedupStore interface {
	Has(key string) bool
	Add(key string)
	Len() int
}

// MemoryDedup is a map-backed DedupStore.
type MemoryDedup struct {
	keys map[string]struct{}
}

// NewMemoryDedup creates a dedup set seeded with keys.
func NewMemoryDedup(keys ...string) *MemoryDedup {
	d := &MemoryDedup{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		d.Add(k)
	}
	return d
}

// LogDedup builds a dedup set from the ingest log.
func LogDedup(log []LogEntry) *MemoryDedup {
	d := NewMemoryDedup()
	for _, e := range log {
		d.Add(e.Key())
	}
	return d
}

// QueueDedup builds a dedup set from the queue, whatever the item status.
func QueueDedup(queue []QueueItem) *MemoryDedup {
	d := NewMemoryDedup()
	for _, q := range queue {
		d.Add(q.Key())
	}
	return d
}

func (d *MemoryDedup) Has(key string) bool {
	_, ok := d.keys[key]
	return ok
}

func (d *MemoryDedup) Add(key string) {
	d.keys[key] = struct{}{}
}

func (d *MemoryDedup) Len() int { return len(d.keys) }
