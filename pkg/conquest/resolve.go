package conquest

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// StepResult is what one resolution step produced. Callers loop
// ProcessDecisions until Continue is false, rendering Summary between calls.
type StepResult struct {
	Summary  string
	Continue bool
}

// ProcessDecisions performs exactly one unit of resolution work. During the
// draft it force-assigns one non-responding player per call; afterwards it
// walks the fixed phase order additions -> attacks -> move, one item (or one
// combat round) per call. Mutations are final once a step returns; there is
// no rollback.
func (g *Game) ProcessDecisions() (StepResult, error) {
	gs := g.State

	if gs.Draft != nil {
		return g.stepDraft()
	}
	if gs.Queue == nil {
		return StepResult{Summary: "nothing to resolve"}, nil
	}

	if len(gs.Queue.Additions) > 0 {
		return g.stepAdditions()
	}
	if gs.Conflict != nil {
		return g.stepConflict()
	}
	if len(gs.Queue.attackers()) > 0 {
		return g.stepNextAttack()
	}
	if len(gs.Queue.movers()) > 0 {
		return g.stepNextMove()
	}

	g.eliminateOverrun()
	if err := gs.Board.CheckTroops(); err != nil {
		return StepResult{}, err
	}
	return StepResult{Summary: "turn resolved"}, nil
}

// stepDraft force-assigns one available non-claimer a random unclaimed
// territory. Self-selection is always preferred; this path only runs when the
// service decides the claim window is over.
func (g *Game) stepDraft() (StepResult, error) {
	gs := g.State
	d := gs.Draft

	pending := d.pendingFallback()
	if len(pending) == 0 {
		if !d.complete() {
			// Players whose slots never opened; open them and retry next call.
			return StepResult{Summary: "waiting on draft slots", Continue: false}, nil
		}
		gs.Draft = nil
		gs.WindowOpen = false
		log.Info().Msg("Draft complete")
		return StepResult{Summary: "draft complete"}, nil
	}

	player := pending[rngIntn(len(pending))]
	free := gs.Board.Unclaimed()
	if len(free) == 0 {
		return StepResult{}, fmt.Errorf("%w: draft has pending players but no unclaimed territories", ErrInvariant)
	}
	territory := free[rngIntn(len(free))]
	if err := d.Claim(gs.Board, player, territory); err != nil {
		return StepResult{}, fmt.Errorf("%w: forced draft claim failed: %v", ErrInvariant, err)
	}
	log.Info().Str("player", player).Str("territory", territory).Msg("Draft fallback assignment")
	return StepResult{
		Summary:  fmt.Sprintf("%s was assigned %s", player, gs.Board.At(territory).Name),
		Continue: true,
	}, nil
}

// stepAdditions applies every queued addition at once. No ordering conflicts
// are possible: each addition only increments a count on a territory its
// player already held at queue time, and additions resolve first.
func (g *Game) stepAdditions() (StepResult, error) {
	gs := g.State
	placed := 0
	for _, player := range sortedKeys(gs.Queue.Additions) {
		for _, id := range gs.Queue.Additions[player] {
			gs.Board.At(id).Troops++
			placed++
		}
	}
	gs.Queue.Additions = make(map[string][]string)
	return StepResult{
		Summary:  fmt.Sprintf("%d new troops placed", placed),
		Continue: true,
	}, nil
}

// stepConflict advances the active conflict by one dice round, committing the
// outcome to the board when one side reaches zero.
func (g *Game) stepConflict() (StepResult, error) {
	gs := g.State
	c := gs.Conflict

	round := c.fightRound(g.roll)
	if !c.Done() {
		// Mirror the defender count so renders show the battle in progress.
		gs.Board.At(c.To).Troops = c.DefenderTroops
		return StepResult{Summary: round, Continue: true}, nil
	}

	outcome := c.commit(gs.Board)
	if c.DefenderTroops == 0 && c.Defender != "" {
		if err := gs.AddPoints(c.Attacker, float64(c.InitialDefenderTroops)); err != nil {
			return StepResult{}, err
		}
	}
	gs.Conflict = nil
	return StepResult{Summary: round + "; " + outcome, Continue: true}, nil
}

// stepNextAttack picks the next queued attack in dependency order and opens a
// conflict for it. Attacks that went stale since queueing (source lost, or
// target captured by someone who now matches the attacker) are dropped.
func (g *Game) stepNextAttack() (StepResult, error) {
	gs := g.State

	player, attack := g.nextAttack()
	g.unqueueAttack(player, attack)

	from, to := gs.Board.At(attack.From), gs.Board.At(attack.To)
	if from.Owner != player || to.Owner == player || from.Troops <= 1 {
		log.Warn().Str("player", player).Str("from", attack.From).Str("to", attack.To).
			Msg("Dropping stale attack")
		return StepResult{
			Summary:  fmt.Sprintf("%s abandons the assault on %s", player, to.Name),
			Continue: true,
		}, nil
	}

	quantity := attack.Quantity
	if quantity > from.Troops-1 {
		// Board changed since queueing; clamp rather than reject.
		log.Warn().Str("player", player).Str("from", attack.From).
			Int("declared", attack.Quantity).Int("clamped", from.Troops-1).
			Msg("Clamping attack quantity")
		quantity = from.Troops - 1
	}

	from.Troops -= quantity
	gs.Conflict = &Conflict{
		From:                  attack.From,
		To:                    attack.To,
		Attacker:              player,
		Defender:              to.Owner,
		AttackerTroops:        quantity,
		DefenderTroops:        to.Troops,
		InitialAttackerTroops: quantity,
		InitialDefenderTroops: to.Troops,
	}
	return StepResult{
		Summary:  fmt.Sprintf("%s attacks %s from %s with %d troops", player, to.Name, from.Name, quantity),
		Continue: true,
	}, nil
}

// queuedAttack pairs an attack with its queueing player for ordering.
type queuedAttack struct {
	player string
	attack AttackDecision
}

// nextAttack returns the queued attack whose source territory has no pending
// attack against it: an attack into X must resolve before any attack out of
// X, because X's owner and garrison depend on the outcome. When the
// dependency relation is cyclic every candidate is blocked; the first in
// sorted order is taken, an accepted approximation rather than a fairness
// rule.
func (g *Game) nextAttack() (string, AttackDecision) {
	q := g.State.Queue

	var all []queuedAttack
	targeted := make(map[string]bool)
	for _, player := range q.attackers() {
		for _, a := range q.Attacks[player] {
			all = append(all, queuedAttack{player: player, attack: a})
			targeted[a.To] = true
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].attack.From != all[j].attack.From {
			return all[i].attack.From < all[j].attack.From
		}
		return all[i].player < all[j].player
	})

	for _, qa := range all {
		if !targeted[qa.attack.From] {
			return qa.player, qa.attack
		}
	}
	// Dependency cycle: break it arbitrarily.
	log.Warn().Int("queued", len(all)).Msg("Attack dependency cycle, breaking arbitrarily")
	return all[0].player, all[0].attack
}

// unqueueAttack removes one attack from the queue before any other work, so
// a re-entrant call can never pick it twice.
func (g *Game) unqueueAttack(player string, attack AttackDecision) {
	atks := g.State.Queue.Attacks[player]
	for i, a := range atks {
		if a == attack {
			g.State.Queue.Attacks[player] = append(atks[:i], atks[i+1:]...)
			break
		}
	}
	if len(g.State.Queue.Attacks[player]) == 0 {
		delete(g.State.Queue.Attacks, player)
	}
}

// stepNextMove executes one queued move. Moves are validated at execution
// time, not queue time: board mutation during the attack phase is expected,
// so invalid moves are skipped silently rather than treated as errors.
func (g *Game) stepNextMove() (StepResult, error) {
	gs := g.State

	player := gs.Queue.movers()[0]
	move := *gs.Queue.Moves[player]
	delete(gs.Queue.Moves, player)

	from, to := gs.Board.At(move.From), gs.Board.At(move.To)
	if from.Owner != player || to.Owner != player || from.Troops <= 1 {
		log.Warn().Str("player", player).Str("from", move.From).Str("to", move.To).
			Msg("Skipping invalid move")
		return StepResult{
			Summary:  fmt.Sprintf("%s cancels a troop movement", player),
			Continue: true,
		}, nil
	}

	quantity := move.Quantity
	if quantity > from.Troops-1 {
		log.Warn().Str("player", player).Str("from", move.From).
			Int("declared", move.Quantity).Int("clamped", from.Troops-1).
			Msg("Clamping move quantity")
		quantity = from.Troops - 1
	}
	from.Troops -= quantity
	to.Troops += quantity
	return StepResult{
		Summary:  fmt.Sprintf("%s moves %d troops from %s to %s", player, quantity, from.Name, to.Name),
		Continue: true,
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
