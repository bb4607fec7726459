// Package bot implements the NPC decision policy. NPCs queue decisions
// through the same public DecisionQueue API as human players; the resolver
// never distinguishes the two.
package bot

import (
	"github.com/rs/zerolog/log"

	"github.com/efreeman/landgrab/pkg/conquest"
)

// weakAttackProb is the chance an NPC attacks from a territory that is not
// locally stronger than the chosen target.
const weakAttackProb = 0.25

// PickClaim chooses a starting territory for an NPC's draft claim: a random
// unclaimed territory, or false when the board is full.
func PickClaim(g *conquest.Game) (string, bool) {
	open := g.State.Board.Unclaimed()
	if len(open) == 0 {
		return "", false
	}
	return open[botIntn(len(open))], true
}

// SubmitDecisions queues one turn's worth of decisions for an NPC:
// allowance troops spread uniformly over owned territories, opportunistic
// attacks from border territories, and at most one consolidating move.
// Invalid picks are skipped; the policy is best-effort, never fatal.
func SubmitDecisions(g *conquest.Game, player string) {
	gs := g.State
	if gs.Queue == nil || gs.Eliminated(player) {
		return
	}
	owned := gs.Board.OwnedBy(player)
	if len(owned) == 0 {
		return
	}

	placeAdditions(g, player, owned)
	queueAttacks(g, player, owned)
	queueMove(g, player, owned)
}

// placeAdditions spends the full allowance one troop at a time on random
// owned territories.
func placeAdditions(g *conquest.Game, player string, owned []string) {
	for g.State.Queue.Allowance[player] > 0 {
		target := owned[botIntn(len(owned))]
		if err := g.State.Queue.QueueAddition(g.State.Board, player, target); err != nil {
			log.Warn().Err(err).Str("player", player).Str("territory", target).Msg("NPC addition rejected")
			return
		}
	}
}

// queueAttacks considers every owned border territory once. A territory that
// outnumbers its chosen target always attacks; otherwise it attacks with a
// small fixed probability.
func queueAttacks(g *conquest.Game, player string, owned []string) {
	gs := g.State
	for _, from := range owned {
		t := gs.Board.At(from)
		if t == nil || t.Troops <= 1 {
			continue
		}
		hostile := gs.Board.HostileNeighbors(from)
		if len(hostile) == 0 {
			continue
		}
		to := hostile[botIntn(len(hostile))]
		stronger := t.Troops > gs.Board.At(to).Troops+1
		if !stronger && botFloat64() >= weakAttackProb {
			continue
		}
		quantity := 1 + botIntn(t.Troops-1)
		d := conquest.AttackDecision{From: from, To: to, Quantity: quantity}
		if err := gs.Queue.QueueAttack(gs.Board, player, d); err != nil {
			log.Debug().Err(err).Str("player", player).Str("from", from).Str("to", to).Msg("NPC attack rejected")
		}
	}
}

// queueMove occasionally shifts troops from a safe interior territory toward
// a random other owned territory.
func queueMove(g *conquest.Game, player string, owned []string) {
	if len(owned) < 2 || botFloat64() >= 0.5 {
		return
	}
	gs := g.State
	from := owned[botIntn(len(owned))]
	t := gs.Board.At(from)
	if t == nil || t.Troops <= 1 || len(gs.Board.HostileNeighbors(from)) > 0 {
		return
	}
	to := owned[botIntn(len(owned))]
	if to == from {
		return
	}
	d := conquest.MoveDecision{From: from, To: to, Quantity: 1 + botIntn(t.Troops-1)}
	if err := gs.Queue.QueueMove(gs.Board, player, d); err != nil {
		log.Debug().Err(err).Str("player", player).Str("from", from).Str("to", to).Msg("NPC move rejected")
	}
}
