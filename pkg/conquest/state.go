package conquest

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors surfaced to callers. User-input errors are safe to show to
// players; ErrInvariant marks a logic bug and is fatal to the operation that
// raised it.
var (
	ErrUnknownTerritory = errors.New("unknown territory")
	ErrNotYourTerritory = errors.New("you do not hold that territory")
	ErrNotAdjacent      = errors.New("territories are not adjacent")
	ErrNotEnoughTroops  = errors.New("not enough troops")
	ErrNoOpenWindow     = errors.New("no decision window is open")
	ErrNoAllowance      = errors.New("no new troops left to place")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrDraftActive      = errors.New("draft is in progress")
	ErrNotAvailable     = errors.New("your draft slot has not opened yet")
	ErrAlreadyClaimed   = errors.New("you already claimed a territory")
	ErrInvariant        = errors.New("invariant violation")
)

// PlayerState tracks one player across a season. Points reset every turn
// boundary; FinalRank is written once when the player is eliminated or placed
// and never changes afterwards.
type PlayerState struct {
	Name      string  `json:"name"`
	Points    float64 `json:"points"`
	Color     string  `json:"color"`
	FinalRank int     `json:"final_rank,omitempty"`
	NPC       bool    `json:"npc,omitempty"`
}

// GameState is a complete snapshot of a season: the board, the roster, the
// open decision window, the active conflict, and the turn-1 draft.
type GameState struct {
	Turn       int                     `json:"turn"`
	Players    map[string]*PlayerState `json:"players"`
	Board      *Board                  `json:"board"`
	Queue      *DecisionQueue          `json:"queue,omitempty"`
	Conflict   *Conflict               `json:"conflict,omitempty"`
	Draft      *DraftState             `json:"draft,omitempty"`
	WindowOpen bool                    `json:"window_open"`
	WinnerIDs  []string                `json:"winner_ids,omitempty"`
}

// NewGameState builds the pre-season state for a roster. Territories start
// neutral; ownership is decided by the turn-1 draft.
func NewGameState(players map[string]*PlayerState) *GameState {
	return &GameState{
		Players: players,
		Board:   StandardBoard(),
	}
}

// PlayerIDs returns the roster in sorted order.
func (gs *GameState) PlayerIDs() []string {
	ids := make([]string, 0, len(gs.Players))
	for id := range gs.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AddPlayer registers a player. Joining mid-season assigns an immediate final
// rank of playerCount+1 so the elimination order stays strictly ordered
// without renumbering earlier ranks.
func (gs *GameState) AddPlayer(id string, p *PlayerState) error {
	if _, ok := gs.Players[id]; ok {
		return fmt.Errorf("%w: player %s already in season", ErrInvariant, id)
	}
	if gs.Turn > 0 {
		p.FinalRank = len(gs.Players) + 1
	}
	gs.Players[id] = p
	return nil
}

// AddPoints credits points to a player's weekly ledger.
func (gs *GameState) AddPoints(id string, pts float64) error {
	p, ok := gs.Players[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	p.Points += pts
	if p.Points < 0 {
		return fmt.Errorf("%w: player %s has negative points", ErrInvariant, id)
	}
	return nil
}

// ResetPoints zeroes every player's weekly ledger. Called at turn boundaries.
func (gs *GameState) ResetPoints() {
	for _, p := range gs.Players {
		p.Points = 0
	}
}

// SetFinalRank records a player's placement. The rank is write-once.
func (gs *GameState) SetFinalRank(id string, rank int) error {
	p, ok := gs.Players[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	if p.FinalRank != 0 {
		return fmt.Errorf("%w: final rank for %s already set to %d", ErrInvariant, id, p.FinalRank)
	}
	p.FinalRank = rank
	return nil
}

// Eliminated reports whether a player has received a final rank.
func (gs *GameState) Eliminated(id string) bool {
	p, ok := gs.Players[id]
	return ok && p.FinalRank != 0
}

// CompletionFraction is eliminatedPlayers / totalPlayers.
func (gs *GameState) CompletionFraction() float64 {
	if len(gs.Players) == 0 {
		return 0
	}
	eliminated := 0
	for _, p := range gs.Players {
		if p.FinalRank != 0 {
			eliminated++
		}
	}
	return float64(eliminated) / float64(len(gs.Players))
}

// RecordWinner freezes a player into the winner list. At most three winners
// are kept and the order never changes once assigned.
func (gs *GameState) RecordWinner(id string) {
	if len(gs.WinnerIDs) >= 3 {
		return
	}
	for _, w := range gs.WinnerIDs {
		if w == id {
			return
		}
	}
	gs.WinnerIDs = append(gs.WinnerIDs, id)
}

// OrderedPlayers returns player IDs sorted by weekly points descending, ties
// broken by ID for stability.
func (gs *GameState) OrderedPlayers() []string {
	ids := gs.PlayerIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		pi, pj := gs.Players[ids[i]].Points, gs.Players[ids[j]].Points
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Clone returns a deep copy of the state. The bot package evaluates
// speculative states without touching the live one.
func (gs *GameState) Clone() *GameState {
	c := &GameState{
		Turn:       gs.Turn,
		WindowOpen: gs.WindowOpen,
		Board:      gs.Board.Clone(),
		WinnerIDs:  append([]string(nil), gs.WinnerIDs...),
	}
	c.Players = make(map[string]*PlayerState, len(gs.Players))
	for id, p := range gs.Players {
		cp := *p
		c.Players[id] = &cp
	}
	if gs.Queue != nil {
		c.Queue = gs.Queue.clone()
	}
	if gs.Conflict != nil {
		cc := *gs.Conflict
		c.Conflict = &cc
	}
	if gs.Draft != nil {
		c.Draft = gs.Draft.clone()
	}
	return c
}
