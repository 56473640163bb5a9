package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSpawnAvailableSpots(t *testing.T) {
	r := NewSpawnRegistry()
	assert.Equal(t, []SpawnSlot{0, 1, 2, 3}, r.AvailableSpots())

	r.Set(1, 0)
	r.Set(3, 2)
	assert.Equal(t, []SpawnSlot{1, 3}, r.AvailableSpots())
	assert.Equal(t, map[string]SpawnSlot{"1": 0, "3": 2}, r.Snapshot())
}

func TestSpawnSharedSlotIsReported(t *testing.T) {
	r := NewSpawnRegistry()
	_, taken := r.Set(1, 2)
	assert.False(t, taken)

	holder, taken := r.Set(2, 2)
	assert.True(t, taken)
	assert.Equal(t, PlayerID(1), holder)

	// 换到空闲出生点不算冲突，自己原先的出生点也不算
	_, taken = r.Set(1, 3)
	assert.False(t, taken)
	_, taken = r.Set(1, 3)
	assert.False(t, taken)
	assert.Equal(t, []SpawnSlot{0, 1}, r.AvailableSpots())
}

func TestSpawnRemove(t *testing.T) {
	r := NewSpawnRegistry()
	r.Set(4, 1)
	slot, ok := r.Remove(4)
	assert.True(t, ok)
	assert.Equal(t, SpawnSlot(1), slot)
	_, ok = r.Remove(4)
	assert.False(t, ok)
	assert.Empty(t, r.Players())
}

func TestPropertyAvailableSpotsComplement(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewSpawnRegistry()
		n := rapid.IntRange(0, 12).Draw(t, "n")
		for i := 0; i < n; i++ {
			id := PlayerID(rapid.IntRange(1, Capacity).Draw(t, "id"))
			if rapid.IntRange(0, 3).Draw(t, "op") == 0 {
				r.Remove(id)
				continue
			}
			r.Set(id, SpawnSlot(rapid.IntRange(0, SpawnSlots-1).Draw(t, "slot")))
		}

		used := make(map[SpawnSlot]bool)
		for _, s := range r.Snapshot() {
			used[s] = true
		}
		var want []SpawnSlot
		for s := SpawnSlot(0); s < SpawnSlots; s++ {
			if !used[s] {
				want = append(want, s)
			}
		}
		got := r.AvailableSpots()
		if len(got) != len(want) {
			t.Fatalf("available %v, want %v", got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("available %v, want %v", got, want)
			}
		}
	})
}
