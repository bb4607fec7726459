package conquest

import (
	"fmt"
	"sort"
	"strings"
)

// Conflict is the transient battle between two adjacent territories, resolved
// one dice round at a time. While a conflict exists, no other decision may
// touch its territories; the resolver guarantees this by never starting a new
// attack or move until the conflict is gone.
type Conflict struct {
	From                  string `json:"from"`
	To                    string `json:"to"`
	Attacker              string `json:"attacker"`
	Defender              string `json:"defender,omitempty"`
	AttackerTroops        int    `json:"attacker_troops"`
	DefenderTroops        int    `json:"defender_troops"`
	InitialAttackerTroops int    `json:"initial_attacker_troops"`
	InitialDefenderTroops int    `json:"initial_defender_troops"`
}

// Done reports whether one side has been eliminated.
func (c *Conflict) Done() bool {
	return c.AttackerTroops == 0 || c.DefenderTroops == 0
}

// fightRound resolves one dice round: min(3, attackers) vs min(2, defenders)
// dice, both sorted descending, compared pairwise. The defender wins ties;
// the loser of each pair loses one troop.
func (c *Conflict) fightRound(roll func(n int) []int) string {
	atkDice := roll(min(3, c.AttackerTroops))
	defDice := roll(min(2, c.DefenderTroops))
	sort.Sort(sort.Reverse(sort.IntSlice(atkDice)))
	sort.Sort(sort.Reverse(sort.IntSlice(defDice)))

	atkLost, defLost := 0, 0
	for i := 0; i < min(len(atkDice), len(defDice)); i++ {
		if atkDice[i] > defDice[i] {
			defLost++
		} else {
			atkLost++
		}
	}
	c.AttackerTroops -= atkLost
	c.DefenderTroops -= defLost

	return fmt.Sprintf("%s vs %s: attacker -%d, defender -%d (%d vs %d remain)",
		diceString(atkDice), diceString(defDice), atkLost, defLost,
		c.AttackerTroops, c.DefenderTroops)
}

// commit writes the conflict outcome onto the board and clears the transient
// defender-troop mirror on the target. The committed attacking troops were
// already removed from the source when the conflict began.
func (c *Conflict) commit(b *Board) string {
	target := b.At(c.To)
	if c.DefenderTroops == 0 {
		target.Owner = c.Attacker
		target.Troops = c.AttackerTroops
		return fmt.Sprintf("%s falls to %s with %d troops", target.Name, c.Attacker, c.AttackerTroops)
	}
	target.Troops = c.DefenderTroops
	return fmt.Sprintf("%s holds %s with %d troops", defenderLabel(c.Defender), target.Name, c.DefenderTroops)
}

func defenderLabel(id string) string {
	if id == "" {
		return "the wilds"
	}
	return id
}

func diceString(dice []int) string {
	parts := make([]string, len(dice))
	for i, d := range dice {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
