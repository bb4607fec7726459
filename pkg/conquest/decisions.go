package conquest

import (
	"fmt"
	"sort"
)

// AttackDecision is one queued attack intent.
type AttackDecision struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity int    `json:"quantity"`
}

// MoveDecision is the single optional troop move a player may queue per turn.
type MoveDecision struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity int    `json:"quantity"`
}

// DecisionQueue collects intents for one open decision window. All three maps
// are keyed by player and cleared wholesale when the window closes.
type DecisionQueue struct {
	// Allowance is how many new troops each player may still place this turn.
	Allowance map[string]int `json:"allowance"`
	// Additions holds one territory ID per troop to place.
	Additions map[string][]string         `json:"additions"`
	Attacks   map[string][]AttackDecision `json:"attacks"`
	Moves     map[string]*MoveDecision    `json:"moves"`
}

// NewDecisionQueue opens a queue with the given per-player troop allowances.
func NewDecisionQueue(allowance map[string]int) *DecisionQueue {
	return &DecisionQueue{
		Allowance: allowance,
		Additions: make(map[string][]string),
		Attacks:   make(map[string][]AttackDecision),
		Moves:     make(map[string]*MoveDecision),
	}
}

// QueueAddition queues one new troop on a territory the player holds.
// Validated at queue time: additions cannot become stale because they resolve
// before any attack can change ownership.
func (q *DecisionQueue) QueueAddition(b *Board, player, territory string) error {
	t := b.At(territory)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTerritory, territory)
	}
	if t.Owner != player {
		return fmt.Errorf("%w: %s", ErrNotYourTerritory, territory)
	}
	if q.Allowance[player] <= 0 {
		return ErrNoAllowance
	}
	q.Allowance[player]--
	q.Additions[player] = append(q.Additions[player], territory)
	return nil
}

// QueueAttack queues an attack intent. Ownership and adjacency are checked
// against the present board; the quantity is re-clamped at resolution time
// because the board may change first.
func (q *DecisionQueue) QueueAttack(b *Board, player string, d AttackDecision) error {
	from, to := b.At(d.From), b.At(d.To)
	if from == nil || to == nil {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownTerritory, d.From, d.To)
	}
	if from.Owner != player {
		return fmt.Errorf("%w: %s", ErrNotYourTerritory, d.From)
	}
	if to.Owner == player {
		return fmt.Errorf("%w: you already hold %s", ErrNotAdjacent, d.To)
	}
	if !b.Adjacent(d.From, d.To) {
		return fmt.Errorf("%w: %s and %s", ErrNotAdjacent, d.From, d.To)
	}
	if d.Quantity < 1 || d.Quantity > from.Troops-1 {
		return fmt.Errorf("%w: %s can commit at most %d", ErrNotEnoughTroops, d.From, from.Troops-1)
	}
	q.Attacks[player] = append(q.Attacks[player], d)
	return nil
}

// QueueMove queues the player's single troop move, replacing any earlier one.
// Both ends must be held by the player when queued; the move is re-validated
// at execution because the attack phase runs first.
func (q *DecisionQueue) QueueMove(b *Board, player string, d MoveDecision) error {
	from, to := b.At(d.From), b.At(d.To)
	if from == nil || to == nil {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownTerritory, d.From, d.To)
	}
	if from.Owner != player || to.Owner != player {
		return fmt.Errorf("%w: both ends of a move must be yours", ErrNotYourTerritory)
	}
	if d.Quantity < 1 || d.Quantity > from.Troops-1 {
		return fmt.Errorf("%w: %s can spare at most %d", ErrNotEnoughTroops, d.From, from.Troops-1)
	}
	q.Moves[player] = &d
	return nil
}

// Empty reports whether nothing remains queued.
func (q *DecisionQueue) Empty() bool {
	return len(q.Additions) == 0 && len(q.Attacks) == 0 && len(q.Moves) == 0
}

// attackers returns the players with queued attacks, sorted for stable
// iteration.
func (q *DecisionQueue) attackers() []string {
	var ids []string
	for id, atks := range q.Attacks {
		if len(atks) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// movers returns the players with a queued move, sorted.
func (q *DecisionQueue) movers() []string {
	var ids []string
	for id := range q.Moves {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (q *DecisionQueue) clone() *DecisionQueue {
	c := NewDecisionQueue(make(map[string]int, len(q.Allowance)))
	for k, v := range q.Allowance {
		c.Allowance[k] = v
	}
	for k, v := range q.Additions {
		c.Additions[k] = append([]string(nil), v...)
	}
	for k, v := range q.Attacks {
		c.Attacks[k] = append([]AttackDecision(nil), v...)
	}
	for k, v := range q.Moves {
		cp := *v
		c.Moves[k] = &cp
	}
	return c
}
