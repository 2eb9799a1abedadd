package store

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatches is implemented by anything that wants to observe the action
// stream (the metrics collector counts dispatches by variant tag).
type Dispatches interface {
	ObserveDispatch(action string)
}

// Store owns the simulation state. All mutation funnels through Dispatch,
// which serialises reductions under one lock; timers, replication and the
// command layer each hold only a dispatch handle and read snapshots. That
// single funnel is what makes the interleaving of independent tickers safe.
type Store struct {
	mu    sync.RWMutex
	state State

	log      *zap.Logger
	observer Dispatches

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSubID   int
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	return &Store{
		state:       NewState(),
		log:         logger.Named("store"),
		subscribers: make(map[int]chan struct{}),
	}
}

// SetObserver attaches a dispatch observer. Must be called before the
// timers start; not synchronised against Dispatch.
func (s *Store) SetObserver(o Dispatches) { s.observer = o }

// Dispatch reduces the action into a new state and wakes subscribers.
func (s *Store) Dispatch(a Action) {
	name := ActionName(a)

	s.mu.Lock()
	s.state = Reduce(s.state, a)
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveDispatch(name)
	}
	s.log.Debug("dispatched", zap.String("action", name))
	s.notify()
}

// State returns a deep snapshot of the current aggregate. Timers call this
// at the moment they fire, never capturing state at registration time, so
// their reads are always current.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe returns a coalesced change signal and an unsubscribe func. The
// channel carries at most one pending notification; a subscriber that reads
// the signal then pulls State() always observes the latest aggregate, which
// is exactly the memoryless semantics replication needs.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// A notification is already pending; the subscriber will see
			// the newest state when it gets around to reading.
		}
	}
}
