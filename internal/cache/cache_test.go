package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_DeterministicAndKindScoped(t *testing.T) {
	a := Key(KindOCR, "hash1", "pol+eng")
	b := Key(KindOCR, "hash1", "pol+eng")
	c := Key(KindExtraction, "hash1", "pol+eng")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestKey_PartBoundaries(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide.
	assert.NotEqual(t, Key(KindOCR, "ab", "c"), Key(KindOCR, "a", "bc"))
}

func TestService_PutGet(t *testing.T) {
	s := NewService(Config{}, nil)
	k := Key(KindOCR, "h")

	_, ok := s.Get(k)
	assert.False(t, ok)

	s.Put(KindOCR, k, "text")
	v, ok := s.Get(k)
	require.True(t, ok)
	assert.Equal(t, "text", v)
}

func TestService_ReplaceIsAtomic(t *testing.T) {
	s := NewService(Config{}, nil)
	k := Key(KindVerdict, "h")

	s.Put(KindVerdict, k, 1)
	s.Put(KindVerdict, k, 2)

	v, ok := s.Get(k)
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, s.Len())
}

func TestService_Expiry(t *testing.T) {
	s := NewService(Config{VerdictTTL: time.Millisecond}, nil)
	k := Key(KindVerdict, "h")

	s.Put(KindVerdict, k, "v")
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get(k)
	assert.False(t, ok)
}

func TestService_CapacityEviction(t *testing.T) {
	s := NewService(Config{Capacity: shardCount}, nil) // one entry per shard
	for i := 0; i < 4*shardCount; i++ {
		s.Put(KindOCR, Key(KindOCR, fmt.Sprintf("h%d", i)), i)
	}
	assert.LessOrEqual(t, s.Len(), shardCount)
}

func TestService_ConcurrentAccess(t *testing.T) {
	s := NewService(Config{Capacity: 4096}, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := Key(KindExtraction, fmt.Sprintf("g%d-i%d", g, i%20))
				s.Put(KindExtraction, k, i)
				s.Get(k)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 8*20)
}
