package handler

import (
	"errors"
	"net/http"

	"github.com/efreeman/landgrab/internal/game"
	"github.com/efreeman/landgrab/internal/service"
	"github.com/efreeman/landgrab/pkg/conquest"
)

// SeasonHandler handles season lifecycle and decision endpoints.
type SeasonHandler struct {
	seasonSvc *service.SeasonService
	turnSvc   *service.TurnService
}

// NewSeasonHandler creates a SeasonHandler.
func NewSeasonHandler(seasonSvc *service.SeasonService, turnSvc *service.TurnService) *SeasonHandler {
	return &SeasonHandler{seasonSvc: seasonSvc, turnSvc: turnSvc}
}

// CreateSeason handles POST /api/v1/seasons
func (h *SeasonHandler) CreateSeason(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		GameKind string `json:"game_kind"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	season, err := h.seasonSvc.CreateSeason(r.Context(), req.Name, req.GameKind)
	if err != nil {
		if errors.Is(err, game.ErrUnknownKind) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, season)
}

// GetSeason handles GET /api/v1/seasons/{id}
func (h *SeasonHandler) GetSeason(w http.ResponseWriter, r *http.Request) {
	season, err := h.seasonSvc.FindSeason(r.Context(), r.PathValue("id"))
	if err != nil {
		writeSeasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, season)
}

// ListSeasons handles GET /api/v1/seasons
func (h *SeasonHandler) ListSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.seasonSvc.ListActiveSeasons(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if seasons == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, seasons)
}

// JoinSeason handles POST /api/v1/seasons/{id}/join
func (h *SeasonHandler) JoinSeason(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "player_id and name are required")
		return
	}

	if err := h.seasonSvc.JoinSeason(r.Context(), r.PathValue("id"), req.PlayerID, req.Name); err != nil {
		writeSeasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// AddNPC handles POST /api/v1/seasons/{id}/npcs
func (h *SeasonHandler) AddNPC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	playerID, err := h.seasonSvc.AddNPC(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeSeasonError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"player_id": playerID})
}

// StartSeason handles POST /api/v1/seasons/{id}/start
func (h *SeasonHandler) StartSeason(w http.ResponseWriter, r *http.Request) {
	if err := h.seasonSvc.StartSeason(r.Context(), r.PathValue("id")); err != nil {
		writeSeasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// Standings handles GET /api/v1/seasons/{id}/standings
func (h *SeasonHandler) Standings(w http.ResponseWriter, r *http.Request) {
	st, err := h.turnSvc.SeasonStandings(r.PathValue("id"))
	if err != nil {
		writeSeasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Actions handles GET /api/v1/seasons/{id}/actions
func (h *SeasonHandler) Actions(w http.ResponseWriter, r *http.Request) {
	row, err := h.turnSvc.ActionRow(r.PathValue("id"))
	if err != nil {
		writeSeasonError(w, err)
		return
	}
	if row == nil {
		row = []conquest.ActionButton{}
	}
	writeJSON(w, http.StatusOK, row)
}

// SubmitInteraction handles POST /api/v1/seasons/{id}/interactions
func (h *SeasonHandler) SubmitInteraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID  string `json:"player_id"`
		Action    string `json:"action"`
		Territory string `json:"territory,omitempty"`
		Quantity  int    `json:"quantity,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "player_id and action are required")
		return
	}

	reply, err := h.turnSvc.SubmitInteraction(r.Context(), r.PathValue("id"), req.PlayerID, req.Action,
		conquest.InteractionInput{Territory: req.Territory, Quantity: req.Quantity})
	if err != nil {
		writeSeasonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// writeSeasonError maps service and engine errors to HTTP statuses: user
// input gets 4xx, everything else 500.
func writeSeasonError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSeasonNotFound), errors.Is(err, service.ErrNotInSeason):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSeasonNotWaiting),
		errors.Is(err, service.ErrTooFewPlayers),
		errors.Is(err, conquest.ErrUnknownTerritory),
		errors.Is(err, conquest.ErrNotYourTerritory),
		errors.Is(err, conquest.ErrNotAdjacent),
		errors.Is(err, conquest.ErrNotEnoughTroops),
		errors.Is(err, conquest.ErrNoOpenWindow),
		errors.Is(err, conquest.ErrNoAllowance),
		errors.Is(err, conquest.ErrUnknownPlayer),
		errors.Is(err, conquest.ErrDraftActive),
		errors.Is(err, conquest.ErrNotAvailable),
		errors.Is(err, conquest.ErrAlreadyClaimed):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
