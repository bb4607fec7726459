package conquest

import (
	"fmt"
)

// BuilderPhase is the finite state of one player's in-progress decision
// dialog. Partial state is scoped to that player and never observed by
// others until committed into the shared queue.
type BuilderPhase int

const (
	BuilderEmpty BuilderPhase = iota
	BuilderHasSource
	BuilderHasTarget
)

// Builder accumulates one decision through the multi-step selection dialog:
// source -> destination/target -> quantity. A rejected step leaves the
// builder exactly as it was; "start over" discards it.
type Builder struct {
	Action   string // "add", "attack" or "move"
	Phase    BuilderPhase
	Source   string
	Target   string
	Quantity int
}

// Interaction actions routed through HandleInteraction.
const (
	ActionAdd       = "add"
	ActionAttack    = "attack"
	ActionMove      = "move"
	ActionSelect    = "select"
	ActionQuantity  = "quantity"
	ActionStartOver = "start_over"
	ActionClaim     = "claim"
)

// InteractionInput is the payload accompanying an interaction. Territory and
// Quantity are interpreted per the current builder phase.
type InteractionInput struct {
	Territory string `json:"territory,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// InteractionReply describes what the dialog wants next, for the chat adapter
// to render.
type InteractionReply struct {
	Prompt    string `json:"prompt"`
	Committed bool   `json:"committed"`
}

// ActionButton is an opaque UI descriptor for one available action.
type ActionButton struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ActionRow describes the decision actions currently available to players.
func (g *Game) ActionRow() []ActionButton {
	gs := g.State
	if gs.Draft != nil {
		return []ActionButton{{ID: ActionClaim, Label: "Claim a territory"}}
	}
	if !gs.WindowOpen {
		return nil
	}
	return []ActionButton{
		{ID: ActionAdd, Label: "Place troops"},
		{ID: ActionAttack, Label: "Attack"},
		{ID: ActionMove, Label: "Move troops"},
		{ID: ActionStartOver, Label: "Start over"},
	}
}

// HandleInteraction routes one dialog step for a player. User-input errors
// are returned without touching shared state or the player's partial builder.
func (g *Game) HandleInteraction(player, action string, in InteractionInput) (*InteractionReply, error) {
	gs := g.State
	if _, ok := gs.Players[player]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, player)
	}

	if action == ActionClaim {
		return g.handleClaim(player, in)
	}
	if gs.Draft != nil {
		return nil, ErrDraftActive
	}
	if !gs.WindowOpen || gs.Queue == nil {
		return nil, ErrNoOpenWindow
	}

	switch action {
	case ActionStartOver:
		delete(g.builders, player)
		return &InteractionReply{Prompt: "Decision discarded. Pick an action."}, nil
	case ActionAdd, ActionAttack, ActionMove:
		g.builders[player] = &Builder{Action: action}
		return &InteractionReply{Prompt: "Select a source territory."}, nil
	case ActionSelect:
		return g.handleSelect(player, in)
	case ActionQuantity:
		return g.handleQuantity(player, in)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvariant, action)
	}
}

func (g *Game) handleClaim(player string, in InteractionInput) (*InteractionReply, error) {
	gs := g.State
	if gs.Draft == nil {
		return nil, ErrNoOpenWindow
	}
	if err := gs.Draft.Claim(gs.Board, player, in.Territory); err != nil {
		return nil, err
	}
	return &InteractionReply{
		Prompt:    fmt.Sprintf("You claimed %s.", gs.Board.At(in.Territory).Name),
		Committed: true,
	}, nil
}

// handleSelect fills the source on the first call, then the target. Each step
// validates against present ownership so the dialog only offers legal input.
func (g *Game) handleSelect(player string, in InteractionInput) (*InteractionReply, error) {
	gs := g.State
	b, ok := g.builders[player]
	if !ok {
		return nil, fmt.Errorf("%w: pick an action first", ErrNoOpenWindow)
	}

	t := gs.Board.At(in.Territory)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTerritory, in.Territory)
	}

	switch b.Phase {
	case BuilderEmpty:
		if t.Owner != player {
			return nil, fmt.Errorf("%w: %s", ErrNotYourTerritory, in.Territory)
		}
		if b.Action == ActionAdd {
			// Additions need no target or quantity dialog: one troop per step.
			if err := gs.Queue.QueueAddition(gs.Board, player, in.Territory); err != nil {
				return nil, err
			}
			delete(g.builders, player)
			return &InteractionReply{
				Prompt:    fmt.Sprintf("Troop queued for %s (%d left).", t.Name, gs.Queue.Allowance[player]),
				Committed: true,
			}, nil
		}
		if t.Troops <= 1 {
			return nil, fmt.Errorf("%w: %s has no spare troops", ErrNotEnoughTroops, in.Territory)
		}
		b.Source = in.Territory
		b.Phase = BuilderHasSource
		return &InteractionReply{Prompt: "Select a destination."}, nil

	case BuilderHasSource:
		switch b.Action {
		case ActionAttack:
			if t.Owner == player {
				return nil, fmt.Errorf("%w: you already hold %s", ErrNotAdjacent, in.Territory)
			}
		case ActionMove:
			if t.Owner != player {
				return nil, fmt.Errorf("%w: %s", ErrNotYourTerritory, in.Territory)
			}
		}
		if b.Action == ActionAttack && !gs.Board.Adjacent(b.Source, in.Territory) {
			return nil, fmt.Errorf("%w: %s and %s", ErrNotAdjacent, b.Source, in.Territory)
		}
		b.Target = in.Territory
		b.Phase = BuilderHasTarget
		return &InteractionReply{Prompt: "How many troops?"}, nil

	default:
		return nil, fmt.Errorf("%w: a quantity is expected", ErrNoOpenWindow)
	}
}

// handleQuantity completes the dialog and commits the decision to the shared
// queue. Commit failures leave the builder intact so the player can retry.
func (g *Game) handleQuantity(player string, in InteractionInput) (*InteractionReply, error) {
	gs := g.State
	b, ok := g.builders[player]
	if !ok || b.Phase != BuilderHasTarget {
		return nil, fmt.Errorf("%w: select territories first", ErrNoOpenWindow)
	}

	var err error
	switch b.Action {
	case ActionAttack:
		err = gs.Queue.QueueAttack(gs.Board, player, AttackDecision{
			From: b.Source, To: b.Target, Quantity: in.Quantity,
		})
	case ActionMove:
		err = gs.Queue.QueueMove(gs.Board, player, MoveDecision{
			From: b.Source, To: b.Target, Quantity: in.Quantity,
		})
	}
	if err != nil {
		return nil, err
	}
	delete(g.builders, player)
	return &InteractionReply{Prompt: "Decision queued.", Committed: true}, nil
}
