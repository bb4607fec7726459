package conquest

import "math/rand"

// gameRng is the package-level random source used for dice, draft fallback
// picks, and tie-breaking shuffles. When nil, the helpers delegate to the
// global math/rand default. Use SeedRng for reproducible games and tests.
var gameRng *rand.Rand

// SeedRng sets a deterministic random source for reproducible behavior.
func SeedRng(seed int64) {
	gameRng = rand.New(rand.NewSource(seed))
}

// ResetRng reverts to the default (non-deterministic) global random source.
func ResetRng() {
	gameRng = nil
}

func rngIntn(n int) int {
	if gameRng != nil {
		return gameRng.Intn(n)
	}
	return rand.Intn(n)
}

// rollDice returns n dice values in [1,6].
func rollDice(n int) []int {
	rolls := make([]int, n)
	for i := range rolls {
		rolls[i] = rngIntn(6) + 1
	}
	return rolls
}
