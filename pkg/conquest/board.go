// Package conquest implements the territory-conquest game engine: the board
// graph, per-turn decision queues, the stepwise resolver, dice combat, and the
// turn-1 draft. The package is pure game logic; persistence, timers, and
// transport live in the service layer.
package conquest

import (
	"fmt"
	"sort"
)

// Territory is a single region on the board. Owner is empty while the
// territory is neutral. Troops never goes negative; it may be zero only
// transiently while a conflict is being resolved.
type Territory struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Neighbors []string `json:"neighbors"`
	Troops    int      `json:"troops"`
	Owner     string   `json:"owner,omitempty"`
}

// Board holds the territory arena. Territories are addressed by stable string
// IDs so that dependency ordering and tie-breaking are plain set operations.
type Board struct {
	Territories map[string]*Territory `json:"territories"`
}

// NewBoard builds a board from a territory list, copying each entry.
func NewBoard(territories []Territory) *Board {
	b := &Board{Territories: make(map[string]*Territory, len(territories))}
	for i := range territories {
		t := territories[i]
		b.Territories[t.ID] = &t
	}
	return b
}

// At returns the territory with the given ID, or nil.
func (b *Board) At(id string) *Territory {
	return b.Territories[id]
}

// IDs returns all territory IDs in sorted order. Sorted iteration keeps
// resolution reproducible for a given random seed.
func (b *Board) IDs() []string {
	ids := make([]string, 0, len(b.Territories))
	for id := range b.Territories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Adjacent reports whether two territories share a border.
func (b *Board) Adjacent(from, to string) bool {
	t := b.At(from)
	if t == nil {
		return false
	}
	for _, n := range t.Neighbors {
		if n == to {
			return true
		}
	}
	return false
}

// OwnedBy returns the sorted IDs of all territories held by a player.
func (b *Board) OwnedBy(player string) []string {
	var owned []string
	for _, id := range b.IDs() {
		if b.Territories[id].Owner == player {
			owned = append(owned, id)
		}
	}
	return owned
}

// HostileNeighbors returns the neighbors of a territory that are not held by
// its owner. Neutral territories count as hostile.
func (b *Board) HostileNeighbors(id string) []string {
	t := b.At(id)
	if t == nil {
		return nil
	}
	var hostile []string
	for _, n := range t.Neighbors {
		nt := b.At(n)
		if nt != nil && nt.Owner != t.Owner {
			hostile = append(hostile, n)
		}
	}
	sort.Strings(hostile)
	return hostile
}

// Unclaimed returns the sorted IDs of all territories with no owner.
func (b *Board) Unclaimed() []string {
	var free []string
	for _, id := range b.IDs() {
		if b.Territories[id].Owner == "" {
			free = append(free, id)
		}
	}
	return free
}

// CheckTroops verifies the at-rest troop invariant for every territory. The
// active conflict's territories are exempt because they may legitimately sit
// at zero between rounds.
func (b *Board) CheckTroops(exempt ...string) error {
	skip := make(map[string]bool, len(exempt))
	for _, id := range exempt {
		skip[id] = true
	}
	for _, id := range b.IDs() {
		t := b.Territories[id]
		if t.Troops < 0 {
			return fmt.Errorf("%w: territory %s has %d troops", ErrInvariant, id, t.Troops)
		}
		if t.Troops == 0 && !skip[id] {
			return fmt.Errorf("%w: territory %s at rest with zero troops", ErrInvariant, id)
		}
	}
	return nil
}

// Clone returns a deep copy of the board. Used by snapshotting and by bots
// that evaluate speculative states.
func (b *Board) Clone() *Board {
	c := &Board{Territories: make(map[string]*Territory, len(b.Territories))}
	for id, t := range b.Territories {
		cp := *t
		cp.Neighbors = append([]string(nil), t.Neighbors...)
		c.Territories[id] = &cp
	}
	return c
}
