package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

func TestTakeIfMatchingIsSingleUse(t *testing.T) {
	store := NewStore()
	store.Put("alice", Authorization, "n1", "p1")

	got, ok := store.TakeIfMatching("alice", Authorization)
	require.True(t, ok)
	assert.Equal(t, "n1", got.Nonce)
	assert.Equal(t, "p1", got.PresentationID)

	_, ok = store.TakeIfMatching("alice", Authorization)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestTakeIfMatchingKeepsOtherOperation(t *testing.T) {
	store := NewStore()
	store.Put("alice", Authentication, "n1", "p1")

	_, ok := store.TakeIfMatching("alice", Authorization)
	assert.False(t, ok)

	got, ok := store.TakeIfMatching("alice", Authentication)
	require.True(t, ok)
	assert.Equal(t, Authentication, got.Operation)
}

func TestPutOverwrites(t *testing.T) {
	store := NewStore()
	store.Put("alice", Authorization, "n1", "p1")
	store.Put("alice", Authorization, "n2", "p2")

	got, ok := store.TakeIfMatching("alice", Authorization)
	require.True(t, ok)
	assert.Equal(t, "n2", got.Nonce)
}

func TestConcurrentRequestersDoNotInterfere(t *testing.T) {
	store := NewStore()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requester := fmt.Sprintf("user-%d", i)
			store.Put(requester, Authorization, "nonce-"+requester, "pid-"+requester)
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, store.Len())

	results := make([]*Session, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, ok := store.TakeIfMatching(fmt.Sprintf("user-%d", i), Authorization)
			if ok {
				results[i] = s
			}
		}(i)
	}
	wg.Wait()

	for i, s := range results {
		require.NotNil(t, s, "session %d lost", i)
		assert.Equal(t, fmt.Sprintf("nonce-user-%d", i), s.Nonce)
	}
	assert.Equal(t, 0, store.Len())
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("Authorization")
	require.NoError(t, err)
	assert.Equal(t, Authorization, op)

	_, err = ParseOperation("Signing")
	assert.True(t, signererr.HasCode(err, signererr.CodeUnexpectedOperationType))
}
