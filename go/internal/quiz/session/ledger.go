package session

// Capacities of the score ledgers.
const (
	RemoteScoreLedgerSize = 50
	LocalScoreLedgerSize  = 10
)

// Ledger is a bounded recency set of applied envelope keys. When full, the
// oldest key is evicted.
type Ledger struct {
	capacity int
	keys     map[string]struct{}
	order    []string
}

// NewLedger creates a ledger that remembers at most capacity keys.
func NewLedger(capacity int) *Ledger {
	if capacity < 1 {
		capacity = 1
	}
	return &Ledger{
		capacity: capacity,
		keys:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Observe records key and reports whether it had already been recorded.
func (l *Ledger) Observe(key string) (seen bool) {
	if _, ok := l.keys[key]; ok {
		return true
	}
	if len(l.order) == l.capacity {
		oldest := l.order[0]
		delete(l.keys, oldest)
		l.order = l.order[1:]
	}
	l.keys[key] = struct{}{}
	l.order = append(l.order, key)
	return false
}

// Contains reports whether key is currently remembered.
func (l *Ledger) Contains(key string) bool {
	_, ok := l.keys[key]
	return ok
}

// Len returns the number of remembered keys.
func (l *Ledger) Len() int { return len(l.order) }

// Clear forgets every key.
func (l *Ledger) Clear() {
	l.keys = make(map[string]struct{}, l.capacity)
	l.order = l.order[:0]
}
