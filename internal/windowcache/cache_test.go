package windowcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_GetMissReturnsFalse(t *testing.T) {
	c := New(1024)
	_, ok := c.Get("missing")
	require.False(t, ok)
}

func TestCache_PutThenGet_Roundtrips(t *testing.T) {
	c := New(1024)
	c.Put("a", "value-a", 10)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "value-a", v)
}

func TestCache_Put_IsIdempotentByKey(t *testing.T) {
	c := New(1024)
	c.Put("a", "first", 10)
	c.Put("a", "second", 10)
	require.Equal(t, 1, c.Len())
	require.EqualValues(t, 10, c.UsedBytes())

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "first", v, "re-inserting an existing key must not replace its value")
}

// TestCache_EvictsLeastRecentlyUsed is the LRU byte-budget invariant
// of spec.md §8 invariant 6: inserting past budget evicts the least
// recently touched entry first, and UsedBytes() never exceeds budget
// across a normal (non-oversized-single-entry) sequence.
func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(30)

	c.Put("a", "a", 10)
	c.Put("b", "b", 10)
	c.Put("c", "c", 10)
	require.Equal(t, 3, c.Len())
	require.EqualValues(t, 30, c.UsedBytes())

	// touch "a" so "b" becomes least-recently-used
	_, _ = c.Get("a")

	c.Put("d", "d", 10)

	require.LessOrEqual(t, c.UsedBytes(), int64(30))
	_, aOk := c.Get("a")
	_, bOk := c.Get("b")
	_, dOk := c.Get("d")
	require.True(t, aOk, "recently touched entry should survive eviction")
	require.False(t, bOk, "least-recently-used entry should be evicted")
	require.True(t, dOk)
}

func TestCache_NeverExceedsBudgetOverManyInsertions(t *testing.T) {
	const budget = 1000
	c := New(budget)
	for i := 0; i < 500; i++ {
		c.Put(fmt.Sprintf("k%d", i), i, 17)
		require.LessOrEqual(t, c.UsedBytes(), int64(budget))
	}
}

func TestCache_SingleEntryLargerThanBudgetIsKeptAlone(t *testing.T) {
	c := New(10)
	c.Put("huge", "huge-value", 1000)
	require.Equal(t, 1, c.Len())
	v, ok := c.Get("huge")
	require.True(t, ok)
	require.Equal(t, "huge-value", v)
}

func TestNew_NonPositiveBudgetFallsBackToDefault(t *testing.T) {
	c := New(0)
	require.NotNil(t, c)
	c.Put("a", "a", 1)
	_, ok := c.Get("a")
	require.True(t, ok)
}
