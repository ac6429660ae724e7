package layout

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridcal/internal/model"
)

func TestCache_GetOrCompute(t *testing.T) {
	c := NewCache()

	events := []model.Event{
		ev("a", "09:00", "10:00"),
		ev("b", "09:30", "10:30"),
	}

	first := c.GetOrCompute("day-1", events)
	require.Len(t, first, 2)
	assert.Equal(t, 1, c.Len())

	// Second call with the same key ignores the new event list entirely;
	// key freshness is the caller's responsibility.
	second := c.GetOrCompute("day-1", []model.Event{ev("z", "20:00", "21:00")})
	assert.Equal(t, first, second)

	// A different key computes fresh.
	third := c.GetOrCompute("day-2", []model.Event{ev("z", "20:00", "21:00")})
	require.Len(t, third, 1)
	assert.Equal(t, "z", third[0].ID)
}

func TestCache_Clear(t *testing.T) {
	c := NewCache()
	c.GetOrCompute("k1", []model.Event{ev("a", "09:00", "10:00")})
	c.GetOrCompute("k2", []model.Event{ev("b", "11:00", "12:00")})
	require.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())

	// Recompute after clear sees current data.
	got := c.GetOrCompute("k1", []model.Event{ev("c", "13:00", "14:00")})
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	events := []model.Event{
		ev("a", "09:00", "10:00"),
		ev("b", "09:30", "10:30"),
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := c.GetOrCompute("shared", events)
			assert.Len(t, got, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Len())
}

func TestContentKey(t *testing.T) {
	a := ev("a", "09:00", "10:00")
	b := ev("b", "09:30", "10:30")

	k1 := ContentKey([]model.Event{a, b})
	k2 := ContentKey([]model.Event{a, b})
	assert.Equal(t, k1, k2, "same events, same key")

	// Any change to the set changes the key.
	assert.NotEqual(t, k1, ContentKey([]model.Event{a}))

	moved := b
	moved.Start = at("09:45")
	assert.NotEqual(t, k1, ContentKey([]model.Event{a, moved}))

	flagged := b
	flagged.AllDay = true
	assert.NotEqual(t, k1, ContentKey([]model.Event{a, flagged}))

	assert.NotEmpty(t, ContentKey(nil))
}
