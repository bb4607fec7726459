package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/efreeman/landgrab/internal/game"
	"github.com/efreeman/landgrab/internal/model"
	"github.com/efreeman/landgrab/internal/repository"
	"github.com/efreeman/landgrab/pkg/conquest"
)

var (
	ErrSeasonNotFound   = errors.New("season not found")
	ErrSeasonNotWaiting = errors.New("season is not accepting players")
	ErrTooFewPlayers    = errors.New("season needs at least 2 players")
)

// minPlayers is the smallest roster a season can start with.
const minPlayers = 2

// playerColors is the assignment palette, cycled in join order.
var playerColors = []string{"red", "blue", "green", "yellow", "purple", "orange", "teal", "pink"}

// SeasonService handles season lifecycle: create, join, start. Turn cadence
// after start belongs to the TurnService.
type SeasonService struct {
	seasonRepo repository.SeasonRepository
	turnSvc    *TurnService
}

// NewSeasonService creates a SeasonService.
func NewSeasonService(seasonRepo repository.SeasonRepository, turnSvc *TurnService) *SeasonService {
	return &SeasonService{seasonRepo: seasonRepo, turnSvc: turnSvc}
}

// CreateSeason creates a new season in waiting status. An empty kind
// defaults to the territory game.
func (s *SeasonService) CreateSeason(ctx context.Context, name, kind string) (*model.Season, error) {
	if kind == "" {
		kind = string(game.KindTerritory)
	}
	k, err := game.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	season, err := s.seasonRepo.Create(ctx, name, string(k))
	if err != nil {
		return nil, err
	}
	log.Info().Str("seasonId", season.ID).Str("name", name).Str("kind", string(k)).Msg("Season created")
	return season, nil
}

// FindSeason returns a season with its roster.
func (s *SeasonService) FindSeason(ctx context.Context, seasonID string) (*model.Season, error) {
	season, err := s.seasonRepo.FindByID(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if season == nil {
		return nil, ErrSeasonNotFound
	}
	return season, nil
}

// JoinSeason adds a human player to a waiting season. The color is assigned
// from the palette by join position.
func (s *SeasonService) JoinSeason(ctx context.Context, seasonID, playerID, name string) error {
	return s.join(ctx, seasonID, playerID, name, false)
}

// AddNPC adds a computer player to a waiting season under a generated ID.
func (s *SeasonService) AddNPC(ctx context.Context, seasonID, name string) (string, error) {
	playerID := "npc-" + uuid.NewString()
	if err := s.join(ctx, seasonID, playerID, name, true); err != nil {
		return "", err
	}
	return playerID, nil
}

func (s *SeasonService) join(ctx context.Context, seasonID, playerID, name string, isNPC bool) error {
	season, err := s.FindSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if season.Status != "waiting" {
		return ErrSeasonNotWaiting
	}
	color := playerColors[len(season.Players)%len(playerColors)]
	if err := s.seasonRepo.JoinSeason(ctx, seasonID, playerID, name, color, isNPC); err != nil {
		return err
	}
	log.Info().Str("seasonId", seasonID).Str("player", playerID).Bool("npc", isNPC).Msg("Player joined season")
	return nil
}

// StartSeason builds the game engine from the roster, marks the season
// active, and hands it to the turn service for draft setup.
func (s *SeasonService) StartSeason(ctx context.Context, seasonID string) error {
	season, err := s.FindSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if season.Status != "waiting" {
		return ErrSeasonNotWaiting
	}
	if len(season.Players) < minPlayers {
		return ErrTooFewPlayers
	}

	roster := make(map[string]*conquest.PlayerState, len(season.Players))
	for _, p := range season.Players {
		roster[p.PlayerID] = &conquest.PlayerState{
			Name:  p.Name,
			Color: p.Color,
			NPC:   p.IsNPC,
		}
	}
	g := conquest.NewGame(roster)

	if err := s.seasonRepo.SetActive(ctx, seasonID); err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if err := s.turnSvc.InitializeSeason(ctx, seasonID, g); err != nil {
		return fmt.Errorf("initialize season: %w", err)
	}
	log.Info().Str("seasonId", seasonID).Int("players", len(roster)).Msg("Season started")
	return nil
}

// ListActiveSeasons returns all running seasons with rosters.
func (s *SeasonService) ListActiveSeasons(ctx context.Context) ([]model.Season, error) {
	return s.seasonRepo.ListActive(ctx)
}
