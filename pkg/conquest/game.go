package conquest

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// baseAllowance is the minimum number of new troops per turn.
const baseAllowance = 3

// Game wraps a GameState with the transient, per-process pieces that are not
// part of the persisted snapshot: the per-player decision builders and the
// dice roller.
type Game struct {
	State *GameState

	builders map[string]*Builder
	roll     func(n int) []int
}

// NewGame starts a fresh season for a roster.
func NewGame(players map[string]*PlayerState) *Game {
	return Restore(NewGameState(players))
}

// Restore wraps a snapshot loaded from storage. Builders are transient and
// start empty after a restart; partial dialog state is deliberately not
// durable.
func Restore(gs *GameState) *Game {
	return &Game{
		State:    gs,
		builders: make(map[string]*Builder),
		roll:     rollDice,
	}
}

// BeginTurn advances the turn counter and opens a decision window. Turn 1
// runs the draft sub-protocol over the given window instead of normal
// decisions; later turns compute troop allowances, reset the weekly points
// ledger, and open the three decision queues.
func (g *Game) BeginTurn(windowStart, windowEnd time.Time) error {
	gs := g.State
	gs.Turn++

	if gs.Turn == 1 {
		gs.Draft = NewDraft(gs, windowStart, windowEnd)
		gs.WindowOpen = true
		log.Info().Int("players", len(gs.Players)).
			Time("windowStart", windowStart).Time("windowEnd", windowEnd).
			Msg("Draft opened")
		return nil
	}

	allowance := g.allowances()
	gs.ResetPoints()
	gs.Queue = NewDecisionQueue(allowance)
	gs.WindowOpen = true
	g.builders = make(map[string]*Builder)
	log.Info().Int("turn", gs.Turn).Msg("Decision window opened")
	return nil
}

// allowances computes each live player's new-troop allotment: a flat base, a
// territory-count bonus of floor(owned/3), and a point-rank bonus (top
// quartile +2, top half +1) granted only to players who scored positive
// points that week.
func (g *Game) allowances() map[string]int {
	gs := g.State
	ranked := gs.OrderedPlayers()
	n := len(ranked)

	allowance := make(map[string]int, n)
	for rank, id := range ranked {
		if gs.Eliminated(id) {
			continue
		}
		troops := baseAllowance + len(gs.Board.OwnedBy(id))/3
		if gs.Players[id].Points > 0 {
			switch {
			case rank < (n+3)/4:
				troops += 2
			case rank < (n+1)/2:
				troops++
			}
		}
		allowance[id] = troops
	}
	return allowance
}

// EndTurn closes the decision window and clears every queue. Idempotent:
// calling it twice leaves the same empty-window state.
func (g *Game) EndTurn() {
	gs := g.State
	gs.Queue = nil
	gs.Conflict = nil
	gs.WindowOpen = false
	g.builders = make(map[string]*Builder)
}

// SeasonCompletionFraction reports eliminated/total players in [0,1].
func (g *Game) SeasonCompletionFraction() float64 {
	return g.State.CompletionFraction()
}

// Winners returns up to three frozen winner IDs.
func (g *Game) Winners() []string {
	return append([]string(nil), g.State.WinnerIDs...)
}

// Points returns a player's weekly points.
func (g *Game) Points(player string) (float64, error) {
	p, ok := g.State.Players[player]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPlayer, player)
	}
	return p.Points, nil
}

// OrderedPlayers returns the roster sorted by weekly points descending.
func (g *Game) OrderedPlayers() []string {
	return g.State.OrderedPlayers()
}

// MarkDraftAvailability opens claims for every player whose slot has arrived.
// No-op outside the draft.
func (g *Game) MarkDraftAvailability(now time.Time) []string {
	if g.State.Draft == nil {
		return nil
	}
	return g.State.Draft.MarkAvailable(now)
}

// eliminateOverrun assigns final ranks to players who lost their last
// territory during resolution, and freezes winners when the season collapses
// to a single survivor.
func (g *Game) eliminateOverrun() {
	gs := g.State
	var survivors []string
	for _, id := range gs.PlayerIDs() {
		if gs.Eliminated(id) {
			continue
		}
		if len(gs.Board.OwnedBy(id)) == 0 && gs.Turn > 1 {
			rank := len(gs.Players) - eliminatedCount(gs) // next-worst placement
			if err := gs.SetFinalRank(id, rank); err != nil {
				log.Error().Err(err).Str("player", id).Msg("Failed to record elimination")
				continue
			}
			log.Info().Str("player", id).Int("rank", rank).Msg("Player eliminated")
		} else {
			survivors = append(survivors, id)
		}
	}
	if len(survivors) == 1 {
		if err := gs.SetFinalRank(survivors[0], 1); err != nil {
			log.Error().Err(err).Str("player", survivors[0]).Msg("Failed to rank season winner")
		}
		for _, id := range rankedByPlacement(gs) {
			gs.RecordWinner(id)
		}
		log.Info().Strs("winners", gs.WinnerIDs).Msg("Season complete")
	}
}

func eliminatedCount(gs *GameState) int {
	n := 0
	for _, p := range gs.Players {
		if p.FinalRank != 0 {
			n++
		}
	}
	return n
}

// rankedByPlacement lists eliminated players best placement first.
func rankedByPlacement(gs *GameState) []string {
	var ids []string
	for _, id := range gs.PlayerIDs() {
		if gs.Players[id].FinalRank != 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return gs.Players[ids[i]].FinalRank < gs.Players[ids[j]].FinalRank
	})
	return ids
}
