package conquest

import (
	"strings"
	"testing"
)

// chainGame builds a three-territory line a-b-c with distinct owners.
func chainGame() *Game {
	gs := &GameState{
		Turn: 2,
		Players: map[string]*PlayerState{
			"p1": {Name: "P1"},
			"p2": {Name: "P2"},
			"p3": {Name: "P3"},
		},
		Board: NewBoard([]Territory{
			{ID: "a", Name: "Alpha", Neighbors: []string{"b"}, Troops: 5, Owner: "p1"},
			{ID: "b", Name: "Bravo", Neighbors: []string{"a", "c"}, Troops: 3, Owner: "p2"},
			{ID: "c", Name: "Charlie", Neighbors: []string{"b"}, Troops: 3, Owner: "p3"},
		}),
		WindowOpen: true,
	}
	gs.Queue = NewDecisionQueue(map[string]int{"p1": 0, "p2": 0, "p3": 0})
	return Restore(gs)
}

func TestAttackDependencyOrdering(t *testing.T) {
	g := chainGame()
	b := g.State.Board
	// p2 queues b->c, p1 queues a->b. a->b must resolve first so that b->c
	// sees b's post-battle owner and garrison.
	if err := g.State.Queue.QueueAttack(b, "p2", AttackDecision{From: "b", To: "c", Quantity: 2}); err != nil {
		t.Fatalf("queue b->c: %v", err)
	}
	if err := g.State.Queue.QueueAttack(b, "p1", AttackDecision{From: "a", To: "b", Quantity: 4}); err != nil {
		t.Fatalf("queue a->b: %v", err)
	}

	res, err := g.ProcessDecisions()
	if err != nil {
		t.Fatalf("first attack step: %v", err)
	}
	if !strings.Contains(res.Summary, "Bravo") || !strings.Contains(res.Summary, "p1") {
		t.Fatalf("expected a->b to start first, got %q", res.Summary)
	}

	// Attacker rolls all sixes, defender all ones: b falls to p1. Rolls
	// alternate attacker, defender within each round.
	call := 0
	g.roll = func(n int) []int {
		call++
		v := 6
		if call%2 == 0 {
			v = 1
		}
		dice := make([]int, n)
		for i := range dice {
			dice[i] = v
		}
		return dice
	}
	for g.State.Conflict != nil {
		if _, err := g.ProcessDecisions(); err != nil {
			t.Fatalf("conflict round: %v", err)
		}
	}
	if got := b.At("b").Owner; got != "p1" {
		t.Fatalf("expected b captured by p1, got %q", got)
	}

	// b->c is now stale: its source belongs to p1, not the queueing p2.
	res, err = g.ProcessDecisions()
	if err != nil {
		t.Fatalf("stale attack step: %v", err)
	}
	if g.State.Conflict != nil {
		t.Error("stale attack must not open a conflict")
	}
	if !strings.Contains(res.Summary, "abandons") {
		t.Errorf("expected stale attack to be dropped, got %q", res.Summary)
	}
	if b.At("c").Owner != "p3" || b.At("c").Troops != 3 {
		t.Error("stale attack must leave its target untouched")
	}
}

func TestAttackQuantityClampedAtExecution(t *testing.T) {
	g := chainGame()
	b := g.State.Board
	if err := g.State.Queue.QueueAttack(b, "p1", AttackDecision{From: "a", To: "b", Quantity: 4}); err != nil {
		t.Fatalf("queue attack: %v", err)
	}
	// The board changed since queueing: a was itself raided.
	b.At("a").Troops = 3

	if _, err := g.ProcessDecisions(); err != nil {
		t.Fatalf("start conflict: %v", err)
	}
	c := g.State.Conflict
	if c == nil {
		t.Fatal("expected a conflict")
	}
	if c.AttackerTroops != 2 {
		t.Errorf("expected quantity clamped to 2, got %d", c.AttackerTroops)
	}
	if b.At("a").Troops != 1 {
		t.Errorf("source should retain 1 troop, got %d", b.At("a").Troops)
	}
}

func TestAdditionsApplyAllAtOnce(t *testing.T) {
	g := chainGame()
	q := g.State.Queue
	q.Allowance["p1"] = 3
	q.Allowance["p2"] = 1
	for _, id := range []string{"a", "a", "a"} {
		if err := q.QueueAddition(g.State.Board, "p1", id); err != nil {
			t.Fatalf("queue addition: %v", err)
		}
	}
	if err := q.QueueAddition(g.State.Board, "p2", "b"); err != nil {
		t.Fatalf("queue addition: %v", err)
	}
	if err := q.QueueAddition(g.State.Board, "p2", "b"); err == nil {
		t.Fatal("placing beyond the allowance should fail")
	}

	res, err := g.ProcessDecisions()
	if err != nil {
		t.Fatalf("additions step: %v", err)
	}
	if !res.Continue {
		t.Error("additions step should continue resolution")
	}
	if got := g.State.Board.At("a").Troops; got != 8 {
		t.Errorf("a should have 8 troops, got %d", got)
	}
	if got := g.State.Board.At("b").Troops; got != 4 {
		t.Errorf("b should have 4 troops, got %d", got)
	}
	if len(g.State.Queue.Additions) != 0 {
		t.Error("addition queue should be deleted after applying")
	}
}

func TestMoveValidatedAtExecutionTime(t *testing.T) {
	g := chainGame()
	b := g.State.Board
	b.At("b").Owner = "p1" // p1 holds a and b
	if err := g.State.Queue.QueueMove(b, "p1", MoveDecision{From: "a", To: "b", Quantity: 3}); err != nil {
		t.Fatalf("queue move: %v", err)
	}
	// b is lost during the attack phase; the move silently becomes a no-op.
	b.At("b").Owner = "p3"

	res, err := g.ProcessDecisions()
	if err != nil {
		t.Fatalf("move step: %v", err)
	}
	if !res.Continue {
		t.Error("skipped move still counts as one unit of work")
	}
	if b.At("a").Troops != 5 || b.At("b").Troops != 3 {
		t.Error("invalid move must not mutate the board")
	}

	res, err = g.ProcessDecisions()
	if err != nil {
		t.Fatalf("final step: %v", err)
	}
	if res.Continue {
		t.Error("resolution should be complete")
	}
}

func TestMoveClampsQuantity(t *testing.T) {
	g := chainGame()
	b := g.State.Board
	b.At("b").Owner = "p1"
	if err := g.State.Queue.QueueMove(b, "p1", MoveDecision{From: "a", To: "b", Quantity: 4}); err != nil {
		t.Fatalf("queue move: %v", err)
	}
	b.At("a").Troops = 3

	if _, err := g.ProcessDecisions(); err != nil {
		t.Fatalf("move step: %v", err)
	}
	if b.At("a").Troops != 1 {
		t.Errorf("source should keep 1 troop, got %d", b.At("a").Troops)
	}
	if b.At("b").Troops != 5 {
		t.Errorf("destination should gain 2 troops, got %d", b.At("b").Troops)
	}
}

func TestEndTurnIdempotent(t *testing.T) {
	g := chainGame()
	if err := g.State.Queue.QueueAttack(g.State.Board, "p1", AttackDecision{From: "a", To: "b", Quantity: 2}); err != nil {
		t.Fatalf("queue attack: %v", err)
	}

	g.EndTurn()
	if g.State.Queue != nil || g.State.WindowOpen {
		t.Fatal("EndTurn should clear the queue and close the window")
	}
	g.EndTurn()
	if g.State.Queue != nil || g.State.WindowOpen || g.State.Conflict != nil {
		t.Fatal("second EndTurn must leave the same empty state")
	}
}
