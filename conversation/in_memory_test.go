package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentwire/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.ConversationStore = (*InMemoryStore)(nil)

func pair(i int) []core.Turn {
	return []core.Turn{core.UserTurn(fmt.Sprintf("q%d", i)), core.AssistantTurn(fmt.Sprintf("a%d", i))}
}

func TestHistory_LazyEmpty(t *testing.T) {
	s := NewInMemoryStore()
	assert.Empty(t, s.History("ghost"))
	assert.Equal(t, []string{"ghost"}, s.Peers())
	assert.Equal(t, DefaultMaxTurns, s.MaxTurns())
}

func TestAppend_ElevenTurnsKeepsLeadingPair(t *testing.T) {
	s := NewInMemoryStore()
	for i := 0; i < 5; i++ {
		s.Append("p1", pair(i)...)
	}
	s.Append("p1", core.UserTurn("q5"))

	h := s.History("p1")
	require.LessOrEqual(t, len(h), 10)
	require.GreaterOrEqual(t, len(h), 2)
	assert.Equal(t, core.RoleUser, h[0].Role)
	assert.Equal(t, core.RoleAssistant, h[1].Role)
	assert.Equal(t, "q1", h[0].Content)
	assert.Equal(t, "a1", h[1].Content)
	assert.Equal(t, "q5", h[len(h)-1].Content)
}

func TestAppend_PairwiseStaysAtCap(t *testing.T) {
	s := NewInMemoryStore()
	for i := 0; i < 20; i++ {
		s.Append("p1", pair(i)...)
		h := s.History("p1")
		assert.LessOrEqual(t, len(h), 10)
		assert.Equal(t, core.RoleUser, h[0].Role)
	}
	h := s.History("p1")
	assert.Len(t, h, 10)
	assert.Equal(t, "q15", h[0].Content)
}

func TestAppend_CustomCapBelowMinimum(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.MaxTurns = 1 })
	assert.Equal(t, 2, s.MaxTurns())
	s.Append("p1", pair(0)...)
	s.Append("p1", pair(1)...)
	assert.Equal(t, pair(1), s.History("p1"))
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	s.Append("p1", pair(0)...)
	h := s.History("p1")
	h[0].Content = "mutated"
	assert.Equal(t, "q0", s.History("p1")[0].Content)
}

func TestPeersAreIsolated(t *testing.T) {
	s := NewInMemoryStore()
	s.Append("p1", pair(1)...)
	s.Append("p2", core.UserTurn("other"))

	assert.Equal(t, pair(1), s.History("p1"))
	assert.Equal(t, []core.Turn{core.UserTurn("other")}, s.History("p2"))
	assert.Equal(t, []string{"p1", "p2"}, s.Peers())
	assert.Equal(t, 1, s.Len("p2"))
}

func TestAppend_ConcurrentPeers(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.MaxTurns = 1000 })
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append(peer, pair(i)...)
			}
		}(fmt.Sprintf("peer-%d", p))
	}
	wg.Wait()

	for _, peer := range s.Peers() {
		assert.Equal(t, 100, s.Len(peer))
	}
}
