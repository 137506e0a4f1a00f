package store

import (
	"sync"
	"time"

	"plannerbot/internal/event"
)

// ExpiredFunc is called for every record removed by the sweep, outside the
// store lock, so the original sender can be told the conversation was dropped.
type ExpiredFunc func(rec *event.Record)

// Store holds at most one in-progress event record per conversation key and
// expires records that have been idle longer than the configured timeout.
// Lifetime is the process lifetime; nothing is persisted.
type Store struct {
	mu      sync.Mutex
	records map[string]*event.Record

	// turnLocks serializes turns per conversation key. Entries are created
	// on first use and live as long as the process; the key space is
	// bounded by the set of users talking to the bot.
	turnMu    sync.Mutex
	turnLocks map[string]*sync.Mutex

	idleTimeout   time.Duration
	sweepInterval time.Duration
	onExpired     ExpiredFunc

	stop chan struct{}
	done chan struct{}
}

// Config holds store timing knobs.
type Config struct {
	IdleTimeout   time.Duration // default 5m
	SweepInterval time.Duration // default 1m
}

// New creates a conversation store. onExpired may be nil.
func New(cfg Config, onExpired ExpiredFunc) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Store{
		records:       make(map[string]*event.Record),
		turnLocks:     make(map[string]*sync.Mutex),
		idleTimeout:   cfg.IdleTimeout,
		sweepInterval: cfg.SweepInterval,
		onExpired:     onExpired,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Get returns the record for key, or nil when no negotiation is in progress.
func (s *Store) Get(key string) *event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[key]
}

// Put stores the record under key, overwriting any existing entry and
// refreshing its activity timestamp. Records with an empty key are never
// stored.
func (s *Store) Put(key string, rec *event.Record) bool {
	if key == "" || rec == nil {
		return false
	}
	rec.Touch()
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return true
}

// Remove deletes the record for key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// Keys returns a snapshot of the live conversation keys.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// LockKey acquires the per-key turn lock, serializing message handling for a
// single conversation while leaving other keys free to proceed. The returned
// function releases the lock.
func (s *Store) LockKey(key string) func() {
	s.turnMu.Lock()
	l, ok := s.turnLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.turnLocks[key] = l
	}
	s.turnMu.Unlock()

	l.Lock()
	return l.Unlock
}

// StartSweeper runs the idle-record sweep on the configured interval until
// StopSweeper is called.
func (s *Store) StartSweeper() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Sweep(time.Now())
			}
		}
	}()
}

// StopSweeper stops the background sweep and waits for it to exit.
func (s *Store) StopSweeper() {
	close(s.stop)
	<-s.done
}

// Sweep removes every record idle for at least the configured timeout and
// reports each removal through the expiry callback. Iteration works on a
// snapshot of keys so concurrent puts and removes cannot corrupt it; a key
// removed mid-sweep is simply skipped.
func (s *Store) Sweep(now time.Time) {
	var expired []*event.Record

	for _, key := range s.Keys() {
		s.mu.Lock()
		rec, ok := s.records[key]
		if ok && now.Sub(rec.LastActivity) >= s.idleTimeout {
			delete(s.records, key)
			expired = append(expired, rec)
		}
		s.mu.Unlock()
	}

	if s.onExpired != nil {
		for _, rec := range expired {
			s.onExpired(rec)
		}
	}
}
