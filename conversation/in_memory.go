package conversation

import (
	"sort"
	"sync"

	"github.com/hupe1980/agentwire/core"
)

// DefaultMaxTurns is the history cap used when Options.MaxTurns is unset.
const DefaultMaxTurns = 10

// Options configures an InMemoryStore.
type Options struct {
	// MaxTurns caps each peer's history. Values below 2 are raised to 2 so at
	// least one full pair is kept.
	MaxTurns int
}

type history struct {
	mu    sync.Mutex
	turns []core.Turn
}

// InMemoryStore is a volatile ConversationStore keeping per-peer histories
// in a process local map. It is safe for concurrent access: the map is
// guarded by one lock, each history by its own, so peers never contend on
// each other's appends. Returned histories are copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	peers    map[string]*history
	maxTurns int
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{MaxTurns: DefaultMaxTurns}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns < 2 {
		opts.MaxTurns = 2
	}
	return &InMemoryStore{peers: make(map[string]*history), maxTurns: opts.MaxTurns}
}

// MaxTurns returns the configured cap.
func (s *InMemoryStore) MaxTurns() int { return s.maxTurns }

// Append adds turns to the peer's history atomically, then trims it.
func (s *InMemoryStore) Append(peerID string, turns ...core.Turn) {
	h := s.get(peerID)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, turns...)
	h.turns = trim(h.turns, s.maxTurns)
}

// History returns a copy of the peer's history, creating an empty one for an
// unseen peer.
func (s *InMemoryStore) History(peerID string) []core.Turn {
	h := s.get(peerID)

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]core.Turn, len(h.turns))
	copy(out, h.turns)

	return out
}

// Len returns the number of turns held for peerID.
func (s *InMemoryStore) Len(peerID string) int {
	h := s.get(peerID)

	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.turns)
}

// Peers lists every peer seen so far in sorted order.
func (s *InMemoryStore) Peers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.peers))
	for id := range s.peers {
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}

// get returns the peer's history, allocating it lazily under the write lock.
func (s *InMemoryStore) get(peerID string) *history {
	s.mu.RLock()
	h, ok := s.peers[peerID]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok = s.peers[peerID]; !ok {
		h = &history{}
		s.peers[peerID] = h
	}

	return h
}

// trim drops the overflow, rounded up to an even count, from the head.
func trim(turns []core.Turn, maxTurns int) []core.Turn {
	overflow := len(turns) - maxTurns
	if overflow <= 0 {
		return turns
	}
	if overflow%2 != 0 {
		overflow++
	}
	if overflow > len(turns) {
		overflow = len(turns)
	}

	kept := make([]core.Turn, len(turns)-overflow)
	copy(kept, turns[overflow:])

	return kept
}
