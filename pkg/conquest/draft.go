package conquest

import (
	"fmt"
	"sort"
	"time"
)

// claimTroops is the garrison a player starts with on their drafted territory.
const claimTroops = 3

// DraftState exists only during turn 1. Each player gets a distinct slot time
// derived from their pre-season points rank; at the slot they become
// available to claim a starting territory. Players who never claim are
// force-assigned a random unclaimed territory by the resolver.
type DraftState struct {
	Slots     map[string]time.Time `json:"slots"`
	Available map[string]bool      `json:"available"`
	Claimed   map[string]bool      `json:"claimed"`
}

// NewDraft computes slot times for a roster. Players are ranked descending by
// pre-season points and slots are linearly interpolated across the window,
// earlier rank -> earlier slot, strictly increasing.
func NewDraft(gs *GameState, windowStart, windowEnd time.Time) *DraftState {
	ranked := gs.OrderedPlayers()
	span := windowEnd.Sub(windowStart)
	d := &DraftState{
		Slots:     make(map[string]time.Time, len(ranked)),
		Available: make(map[string]bool),
		Claimed:   make(map[string]bool),
	}
	for i, id := range ranked {
		d.Slots[id] = windowStart.Add(span * time.Duration(i) / time.Duration(len(ranked)))
	}
	return d
}

// MarkAvailable opens the claim action for every player whose slot time has
// arrived. Returns the newly available players, sorted.
func (d *DraftState) MarkAvailable(now time.Time) []string {
	var opened []string
	for id, slot := range d.Slots {
		if !d.Available[id] && !slot.After(now) {
			d.Available[id] = true
			opened = append(opened, id)
		}
	}
	sort.Strings(opened)
	return opened
}

// Claim assigns an unclaimed territory to an available player. The territory
// leaves the unclaimed set in the same step, so a forced assignment can never
// double-assign it.
func (d *DraftState) Claim(b *Board, player, territory string) error {
	if !d.Available[player] {
		return ErrNotAvailable
	}
	if d.Claimed[player] {
		return ErrAlreadyClaimed
	}
	t := b.At(territory)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTerritory, territory)
	}
	if t.Owner != "" {
		return fmt.Errorf("%w: %s is already claimed", ErrNotYourTerritory, territory)
	}
	t.Owner = player
	t.Troops = claimTroops
	d.Claimed[player] = true
	return nil
}

// pendingFallback returns available players who have not claimed, sorted.
func (d *DraftState) pendingFallback() []string {
	var ids []string
	for id := range d.Slots {
		if d.Available[id] && !d.Claimed[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// complete reports whether every player has a claim.
func (d *DraftState) complete() bool {
	for id := range d.Slots {
		if !d.Claimed[id] {
			return false
		}
	}
	return true
}

func (d *DraftState) clone() *DraftState {
	c := &DraftState{
		Slots:     make(map[string]time.Time, len(d.Slots)),
		Available: make(map[string]bool, len(d.Available)),
		Claimed:   make(map[string]bool, len(d.Claimed)),
	}
	for k, v := range d.Slots {
		c.Slots[k] = v
	}
	for k, v := range d.Available {
		c.Available[k] = v
	}
	for k, v := range d.Claimed {
		c.Claimed[k] = v
	}
	return c
}
