package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/efreeman/landgrab/internal/bot"
	"github.com/efreeman/landgrab/internal/model"
	"github.com/efreeman/landgrab/internal/repository"
	"github.com/efreeman/landgrab/internal/scheduler"
	"github.com/efreeman/landgrab/pkg/conquest"
)

// ErrNotInSeason is returned for interactions against seasons that are not
// live in this process.
var ErrNotInSeason = errors.New("season is not active")

// Scheduler kinds owned by the turn service. Each live season gets its own
// composite kind (base + ":" + seasonID) so callbacks and cancellation stay
// per-season even though timeout records carry no payload.
const (
	kindTurnBoundary = "turn-boundary"
	kindShotClock    = "shot-clock"
	kindDraftSlot    = "draft-slot"
)

func seasonKind(base, seasonID string) string { return base + ":" + seasonID }

// maxResolutionSteps bounds the step driver. A season this size resolves in
// well under a hundred steps; hitting the cap means the resolver is stuck.
const maxResolutionSteps = 10000

// Timing holds the turn-cadence knobs, wired from config.
type Timing struct {
	// TurnDuration is the length of one decision window.
	TurnDuration time.Duration
	// DraftOpen/DraftClose bound the turn-1 draft window relative to season
	// start. Slot times are interpolated across this range.
	DraftOpen  time.Duration
	DraftClose time.Duration
	// ShotClock is the idle nudge interval; it is postponed on every
	// meaningful interaction and fires only for quiet seasons.
	ShotClock time.Duration
}

// TurnService drives seasons through their turn cycle: scheduler callbacks
// open and close decision windows, the step driver resolves queued decisions,
// and every mutation is written through to Redis with snapshots in Postgres
// at each boundary.
type TurnService struct {
	seasonRepo  repository.SeasonRepository
	cache       repository.GameCache
	sched       *scheduler.Scheduler
	broadcaster Broadcaster
	renderer    Renderer
	timing      Timing

	// games holds the live engine instance per season. Builders (partial
	// decision dialogs) live only here; persisted state deliberately
	// excludes them.
	mu    sync.Mutex
	games map[string]*conquest.Game

	// seasonLocks prevents concurrent resolution for the same season: the
	// boundary callback, interactions, and recovery can all race.
	seasonLocks sync.Map
}

// NewTurnService creates a TurnService.
func NewTurnService(
	seasonRepo repository.SeasonRepository,
	cache repository.GameCache,
	sched *scheduler.Scheduler,
	broadcaster Broadcaster,
	renderer Renderer,
	timing Timing,
) *TurnService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if renderer == nil {
		renderer = NoopRenderer{}
	}
	return &TurnService{
		seasonRepo:  seasonRepo,
		cache:       cache,
		sched:       sched,
		broadcaster: broadcaster,
		renderer:    renderer,
		timing:      timing,
		games:       make(map[string]*conquest.Game),
	}
}

// seasonLock returns the mutex for a given season ID.
func (s *TurnService) seasonLock(seasonID string) *sync.Mutex {
	v, _ := s.seasonLocks.LoadOrStore(seasonID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *TurnService) game(seasonID string) (*conquest.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[seasonID]
	return g, ok
}

func (s *TurnService) putGame(seasonID string, g *conquest.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[seasonID] = g
}

func (s *TurnService) dropGame(seasonID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, seasonID)
}

// registerSeasonHandlers binds this season's composite scheduler kinds to
// their callbacks. Must run before any Register or Recover touches the kinds.
func (s *TurnService) registerSeasonHandlers(seasonID string) {
	s.sched.Handle(seasonKind(kindTurnBoundary, seasonID), func(ctx context.Context, _ model.TimeoutRecord) {
		if err := s.AdvanceTurn(ctx, seasonID); err != nil {
			log.Error().Err(err).Str("seasonId", seasonID).Msg("Turn boundary failed")
		}
	})
	s.sched.Handle(seasonKind(kindDraftSlot, seasonID), func(ctx context.Context, _ model.TimeoutRecord) {
		if err := s.openDraftSlots(ctx, seasonID); err != nil {
			log.Error().Err(err).Str("seasonId", seasonID).Msg("Draft slot callback failed")
		}
	})
	s.sched.Handle(seasonKind(kindShotClock, seasonID), func(ctx context.Context, _ model.TimeoutRecord) {
		s.nudgeIdleSeason(seasonID)
	})
}

// InitializeSeason takes a freshly built game through its turn-1 draft setup:
// slot timeouts, the first boundary record, and the initial persisted state.
// Called by the season service with the season already marked active.
func (s *TurnService) InitializeSeason(ctx context.Context, seasonID string, g *conquest.Game) error {
	mu := s.seasonLock(seasonID)
	mu.Lock()
	defer mu.Unlock()

	s.putGame(seasonID, g)
	s.registerSeasonHandlers(seasonID)

	now := time.Now()
	windowStart := now.Add(s.timing.DraftOpen)
	windowEnd := now.Add(s.timing.DraftClose)
	if err := g.BeginTurn(windowStart, windowEnd); err != nil {
		return fmt.Errorf("begin draft turn: %w", err)
	}

	if err := s.persistBoundary(ctx, seasonID, g); err != nil {
		return err
	}
	if err := s.seasonRepo.SetTurn(ctx, seasonID, g.State.Turn); err != nil {
		return fmt.Errorf("set turn: %w", err)
	}

	// One record per draft slot; the callback reconciles every due slot, so
	// a missed record costs nothing but latency.
	for _, slot := range g.State.Draft.Slots {
		if _, err := s.sched.Register(ctx, seasonKind(kindDraftSlot, seasonID), slot, model.PolicyInvoke); err != nil {
			return fmt.Errorf("register draft slot: %w", err)
		}
	}
	if _, err := s.sched.Register(ctx, seasonKind(kindTurnBoundary, seasonID), now.Add(s.timing.TurnDuration), model.PolicyIncrementDay); err != nil {
		return fmt.Errorf("register turn boundary: %w", err)
	}

	s.broadcaster.BroadcastSeasonEvent(seasonID, "season_started", map[string]any{
		"turn":         g.State.Turn,
		"draft_opens":  windowStart.Format(time.RFC3339),
		"draft_closes": windowEnd.Format(time.RFC3339),
	})
	log.Info().Str("seasonId", seasonID).Int("players", len(g.State.Players)).Msg("Season initialized")
	return nil
}

// openDraftSlots marks every player whose slot time has arrived as available
// and lets available NPCs claim immediately. Humans claim via interaction.
func (s *TurnService) openDraftSlots(ctx context.Context, seasonID string) error {
	mu := s.seasonLock(seasonID)
	mu.Lock()
	defer mu.Unlock()

	g, ok := s.game(seasonID)
	if !ok {
		return ErrNotInSeason
	}
	opened := g.MarkDraftAvailability(time.Now())
	if len(opened) == 0 {
		return nil
	}

	for _, id := range opened {
		p := g.State.Players[id]
		if p == nil || !p.NPC {
			continue
		}
		territory, found := bot.PickClaim(g)
		if !found {
			continue
		}
		if _, err := g.HandleInteraction(id, conquest.ActionClaim, conquest.InteractionInput{Territory: territory}); err != nil {
			log.Warn().Err(err).Str("seasonId", seasonID).Str("player", id).Msg("NPC draft claim rejected")
		}
	}

	if err := s.saveLive(ctx, seasonID, g); err != nil {
		return err
	}
	s.broadcaster.BroadcastSeasonEvent(seasonID, "draft_available", map[string]any{
		"players": opened,
	})
	return nil
}

// nudgeIdleSeason fires when a decision window has seen no interaction for
// the shot-clock interval.
func (s *TurnService) nudgeIdleSeason(seasonID string) {
	deadline, ok := s.sched.Query(seasonKind(kindTurnBoundary, seasonID))
	payload := map[string]any{}
	if ok {
		payload["window_closes"] = deadline.Format(time.RFC3339)
	}
	s.broadcaster.BroadcastSeasonEvent(seasonID, "shot_clock", payload)
}

// AdvanceTurn is the boundary driver: resolve the closing turn step by step,
// finish the season if winners emerged, otherwise open the next window, run
// NPC policies, and re-arm the schedule.
func (s *TurnService) AdvanceTurn(ctx context.Context, seasonID string) error {
	mu := s.seasonLock(seasonID)
	mu.Lock()
	defer mu.Unlock()

	g, ok := s.game(seasonID)
	if !ok {
		return ErrNotInSeason
	}

	log.Info().Str("seasonId", seasonID).Int("turn", g.State.Turn).Msg("Turn boundary reached")

	// The claim window is over; open any remaining draft slots so the
	// fallback assignment can cover every non-claimer.
	if g.State.Draft != nil {
		g.MarkDraftAvailability(g.State.Draft.Slots[latestSlot(g.State.Draft)])
	}

	if err := s.runSteps(ctx, seasonID, g); err != nil {
		return fmt.Errorf("resolve turn: %w", err)
	}
	g.EndTurn()
	s.sched.CancelAllOfKind(ctx, seasonKind(kindShotClock, seasonID))
	s.sched.CancelAllOfKind(ctx, seasonKind(kindDraftSlot, seasonID))

	if err := s.persistBoundary(ctx, seasonID, g); err != nil {
		return err
	}

	if winners := g.Winners(); len(winners) > 0 {
		return s.finishSeason(ctx, seasonID, winners)
	}

	now := time.Now()
	if err := g.BeginTurn(now, now.Add(s.timing.TurnDuration)); err != nil {
		return fmt.Errorf("begin turn: %w", err)
	}
	s.runNPCs(seasonID, g)

	if err := s.saveLive(ctx, seasonID, g); err != nil {
		return err
	}
	if err := s.seasonRepo.SetTurn(ctx, seasonID, g.State.Turn); err != nil {
		return fmt.Errorf("set turn: %w", err)
	}

	if _, err := s.sched.Register(ctx, seasonKind(kindTurnBoundary, seasonID), now.Add(s.timing.TurnDuration), model.PolicyIncrementDay); err != nil {
		return fmt.Errorf("register next boundary: %w", err)
	}
	if _, err := s.sched.Register(ctx, seasonKind(kindShotClock, seasonID), now.Add(s.timing.ShotClock), model.PolicyDelete); err != nil {
		return fmt.Errorf("register shot clock: %w", err)
	}

	s.broadcaster.BroadcastSeasonEvent(seasonID, "turn_started", map[string]any{
		"turn":          g.State.Turn,
		"window_closes": now.Add(s.timing.TurnDuration).Format(time.RFC3339),
		"actions":       g.ActionRow(),
	})
	return nil
}

// latestSlot returns the player with the last draft slot time.
func latestSlot(d *conquest.DraftState) string {
	var last string
	for id, slot := range d.Slots {
		if last == "" || slot.After(d.Slots[last]) {
			last = id
		}
	}
	return last
}

// runSteps loops the engine's step resolver, broadcasting each summary with
// an optional rendered artifact, until the resolver reports completion.
func (s *TurnService) runSteps(ctx context.Context, seasonID string, g *conquest.Game) error {
	for i := 0; i < maxResolutionSteps; i++ {
		step, err := g.ProcessDecisions()
		if err != nil {
			return err
		}
		if step.Summary != "" {
			s.broadcastStep(ctx, seasonID, g, step.Summary)
		}
		if !step.Continue {
			return nil
		}
	}
	return fmt.Errorf("resolution exceeded %d steps", maxResolutionSteps)
}

func (s *TurnService) broadcastStep(ctx context.Context, seasonID string, g *conquest.Game, summary string) {
	payload := map[string]any{"summary": summary}
	if art, err := s.renderer.RenderState(seasonID, g.State); err != nil {
		log.Warn().Err(err).Str("seasonId", seasonID).Msg("Step render failed")
	} else if art != nil {
		payload["render"] = art
	}
	if err := s.cache.SetLastSummary(ctx, seasonID, summary, 0); err != nil {
		log.Warn().Err(err).Str("seasonId", seasonID).Msg("Failed to cache step summary")
	}
	s.broadcaster.BroadcastSeasonEvent(seasonID, "resolution_step", payload)
}

// runNPCs queues a full turn of decisions for every NPC in the roster.
func (s *TurnService) runNPCs(seasonID string, g *conquest.Game) {
	for _, id := range g.State.PlayerIDs() {
		p := g.State.Players[id]
		if p == nil || !p.NPC || g.State.Eliminated(id) {
			continue
		}
		bot.SubmitDecisions(g, id)
		log.Debug().Str("seasonId", seasonID).Str("player", id).Msg("NPC decisions queued")
	}
}

// finishSeason records winners, tears down schedule and cache, and broadcasts
// the final standings.
func (s *TurnService) finishSeason(ctx context.Context, seasonID string, winners []string) error {
	log.Info().Str("seasonId", seasonID).Strs("winners", winners).Msg("Season finished")

	s.sched.CancelAllOfKind(ctx, seasonKind(kindTurnBoundary, seasonID))
	s.sched.CancelAllOfKind(ctx, seasonKind(kindShotClock, seasonID))
	s.sched.CancelAllOfKind(ctx, seasonKind(kindDraftSlot, seasonID))
	if err := s.seasonRepo.SetFinished(ctx, seasonID, winners); err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	if err := s.cache.DeleteSeasonData(ctx, seasonID); err != nil {
		log.Warn().Err(err).Str("seasonId", seasonID).Msg("Failed to clear season cache")
	}
	s.broadcaster.BroadcastSeasonEvent(seasonID, "season_ended", map[string]any{
		"winners": winners,
	})
	s.dropGame(seasonID)
	return nil
}

// SubmitInteraction routes one decision-dialog action for a player. Committed
// decisions push the shot clock back; rejected input leaves all state
// untouched and surfaces the sentinel error to the caller.
func (s *TurnService) SubmitInteraction(ctx context.Context, seasonID, player, action string, in conquest.InteractionInput) (*conquest.InteractionReply, error) {
	mu := s.seasonLock(seasonID)
	mu.Lock()
	defer mu.Unlock()

	g, ok := s.game(seasonID)
	if !ok {
		return nil, ErrNotInSeason
	}
	reply, err := g.HandleInteraction(player, action, in)
	if err != nil {
		return nil, err
	}

	if err := s.saveLive(ctx, seasonID, g); err != nil {
		return nil, err
	}
	s.sched.Postpone(ctx, seasonKind(kindShotClock, seasonID), time.Now().Add(s.timing.ShotClock))

	if reply.Committed {
		s.broadcaster.BroadcastSeasonEvent(seasonID, "decision_committed", map[string]any{
			"player": player,
			"action": action,
		})
	}
	return reply, nil
}

// ActionRow exposes the currently available decision actions for a season.
func (s *TurnService) ActionRow(seasonID string) ([]conquest.ActionButton, error) {
	g, ok := s.game(seasonID)
	if !ok {
		return nil, ErrNotInSeason
	}
	mu := s.seasonLock(seasonID)
	mu.Lock()
	defer mu.Unlock()
	return g.ActionRow(), nil
}

// Standings is the queryable view of a live season.
type Standings struct {
	Turn       int                `json:"turn"`
	Fraction   float64            `json:"completion_fraction"`
	Ordered    []string           `json:"ordered_players"`
	Points     map[string]float64 `json:"points"`
	Winners    []string           `json:"winners,omitempty"`
	WindowEnds *time.Time         `json:"window_closes,omitempty"`
}

// SeasonStandings reports turn, completion fraction, point-ordered roster and
// winners for a live season.
func (s *TurnService) SeasonStandings(seasonID string) (*Standings, error) {
	g, ok := s.game(seasonID)
	if !ok {
		return nil, ErrNotInSeason
	}
	mu := s.seasonLock(seasonID)
	mu.Lock()
	defer mu.Unlock()

	st := &Standings{
		Turn:     g.State.Turn,
		Fraction: g.SeasonCompletionFraction(),
		Ordered:  g.OrderedPlayers(),
		Points:   make(map[string]float64),
		Winners:  g.Winners(),
	}
	for _, id := range g.State.PlayerIDs() {
		pts, err := g.Points(id)
		if err != nil {
			return nil, err
		}
		st.Points[id] = pts
	}
	if deadline, ok := s.sched.Query(seasonKind(kindTurnBoundary, seasonID)); ok {
		st.WindowEnds = &deadline
	}
	return st, nil
}

// RecoverSeasons rehydrates every active season after a restart: live state
// from Redis when present, otherwise the latest Postgres snapshot, then
// scheduler recovery replays or re-arms the persisted timeout records.
func (s *TurnService) RecoverSeasons(ctx context.Context) error {
	seasons, err := s.seasonRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active seasons: %w", err)
	}

	for _, season := range seasons {
		stateJSON, err := s.cache.GetGameState(ctx, season.ID)
		if err != nil {
			log.Error().Err(err).Str("seasonId", season.ID).Msg("Failed to read cached state during recovery")
		}
		if stateJSON == nil {
			snap, err := s.seasonRepo.LatestSnapshot(ctx, season.ID)
			if err != nil {
				log.Error().Err(err).Str("seasonId", season.ID).Msg("Failed to load snapshot during recovery")
				continue
			}
			if snap == nil {
				log.Warn().Str("seasonId", season.ID).Msg("Active season has no snapshot, skipping")
				continue
			}
			stateJSON = snap.State
			if err := s.cache.SetGameState(ctx, season.ID, stateJSON); err != nil {
				log.Error().Err(err).Str("seasonId", season.ID).Msg("Failed to rehydrate cache")
			}
		}

		var gs conquest.GameState
		if err := json.Unmarshal(stateJSON, &gs); err != nil {
			log.Error().Err(err).Str("seasonId", season.ID).Msg("Corrupt season state, skipping recovery")
			continue
		}
		s.putGame(season.ID, conquest.Restore(&gs))
		s.registerSeasonHandlers(season.ID)
		log.Info().Str("seasonId", season.ID).Int("turn", gs.Turn).Msg("Recovered season state")
	}

	return s.sched.Recover(ctx)
}

// saveLive writes the current engine state through to the cache.
func (s *TurnService) saveLive(ctx context.Context, seasonID string, g *conquest.Game) error {
	stateJSON, err := json.Marshal(g.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.cache.SetGameState(ctx, seasonID, stateJSON); err != nil {
		return fmt.Errorf("set game state: %w", err)
	}
	return nil
}

// persistBoundary writes both tiers: the durable Postgres snapshot and the
// live Redis blob. Called at every turn boundary.
func (s *TurnService) persistBoundary(ctx context.Context, seasonID string, g *conquest.Game) error {
	stateJSON, err := json.Marshal(g.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.seasonRepo.SaveSnapshot(ctx, seasonID, g.State.Turn, stateJSON); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.cache.SetGameState(ctx, seasonID, stateJSON); err != nil {
		return fmt.Errorf("set game state: %w", err)
	}
	return nil
}
