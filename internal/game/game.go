// Package game defines the contract every seasonal turn-based game engine
// satisfies. Seasons record a game kind at creation; the territory engine in
// pkg/conquest is the only implementation today.
package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/efreeman/landgrab/pkg/conquest"
)

// StepResult is one unit of resolution work. Callers loop ProcessDecisions
// until Continue is false so long resolutions can be rendered incrementally.
type StepResult = conquest.StepResult

// Game is the turn/decision contract. Dispatch over game kinds is via this
// closed interface, never via name-based type tags.
type Game interface {
	// BeginTurn advances the turn counter and opens the decision window.
	// Turn 1 runs the game's draft sub-protocol over the given window.
	BeginTurn(windowStart, windowEnd time.Time) error
	// ProcessDecisions performs one resolution step.
	ProcessDecisions() (StepResult, error)
	// EndTurn clears all decision queues. Idempotent.
	EndTurn()
	// HandleInteraction routes one multi-step decision-dialog action.
	HandleInteraction(player, action string, in conquest.InteractionInput) (*conquest.InteractionReply, error)
	// ActionRow describes the decision actions currently available.
	ActionRow() []conquest.ActionButton
	// MarkDraftAvailability opens draft claims whose slot time has arrived.
	MarkDraftAvailability(now time.Time) []string

	SeasonCompletionFraction() float64
	Winners() []string
	Points(player string) (float64, error)
	OrderedPlayers() []string
}

// Kind identifies a concrete game implementation.
type Kind string

const (
	KindTerritory Kind = "territory"
)

// ErrUnknownKind is returned for game kinds no engine implements.
var ErrUnknownKind = errors.New("unknown game kind")

// ParseKind validates a stored or requested game kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTerritory:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// compile-time check that the territory game satisfies the contract.
var _ Game = (*conquest.Game)(nil)
