package model

import (
	"encoding/json"
	"time"
)

// Past-due policies applied to a timeout record recovered after its due time.
const (
	PolicyInvoke        = "invoke"         // run the callback once, immediately
	PolicyDelete        = "delete"         // drop the record silently
	PolicyIncrementDay  = "increment_day"  // advance dueAt by days until future
	PolicyIncrementHour = "increment_hour" // advance dueAt by hours until future
)

// TimeoutRecord is one persisted scheduled callback. Records are created on
// register and deleted the instant the callback fires; an ID is never reused
// while its record is live.
type TimeoutRecord struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	DueAt  time.Time `json:"due_at"`
	Policy string    `json:"policy"`
}

// Season represents one run of a game from draft to winners.
type Season struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	GameKind   string         `json:"game_kind"`
	Status     string         `json:"status"` // waiting, active, finished
	Turn       int            `json:"turn"`
	Winners    []string       `json:"winners,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Players    []SeasonPlayer `json:"players,omitempty"`
}

// SeasonPlayer represents a player's membership in a season.
type SeasonPlayer struct {
	SeasonID string    `json:"season_id"`
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Color    string    `json:"color,omitempty"`
	IsNPC    bool      `json:"is_npc"`
	JoinedAt time.Time `json:"joined_at"`
}

// TurnSnapshot is the durable state blob written at every turn boundary and
// after resolution, used to rehydrate the live cache after a restart.
type TurnSnapshot struct {
	ID        string          `json:"id"`
	SeasonID  string          `json:"season_id"`
	Turn      int             `json:"turn"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}
