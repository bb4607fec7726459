//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/efreeman/landgrab/internal/model"
	"github.com/efreeman/landgrab/internal/testutil"
)

var testDB *sql.DB

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

func createTestSeason(t *testing.T, repo *SeasonRepo, name string) *model.Season {
	t.Helper()
	s, err := repo.Create(context.Background(), name, "conquest")
	if err != nil {
		t.Fatalf("create test season: %v", err)
	}
	return s
}

// --- SeasonRepo Tests ---

func TestSeasonCreateAndFind(t *testing.T) {
	setup(t)
	repo := NewSeasonRepo(testDB)

	s := createTestSeason(t, repo, "Spring Season")
	if s.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if s.Status != "waiting" {
		t.Fatalf("expected waiting status, got %s", s.Status)
	}

	found, err := repo.FindByID(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.Name != "Spring Season" {
		t.Fatalf("unexpected season: %+v", found)
	}
}

func TestSeasonFindMissingReturnsNil(t *testing.T) {
	setup(t)
	repo := NewSeasonRepo(testDB)

	found, err := repo.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("expected nil, got %+v", found)
	}
}

func TestSeasonJoinAndListPlayers(t *testing.T) {
	setup(t)
	repo := NewSeasonRepo(testDB)
	ctx := context.Background()

	s := createTestSeason(t, repo, "Joinable")
	if err := repo.JoinSeason(ctx, s.ID, "p1", "Alice", "red", false); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := repo.JoinSeason(ctx, s.ID, "npc1", "Rustbucket", "grey", true); err != nil {
		t.Fatalf("join npc: %v", err)
	}
	// Repeat join is a no-op.
	if err := repo.JoinSeason(ctx, s.ID, "p1", "Alice", "red", false); err != nil {
		t.Fatalf("repeat join: %v", err)
	}

	found, err := repo.FindByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(found.Players))
	}
	if !found.Players[1].IsNPC {
		t.Error("second player should be an NPC")
	}
}

func TestSeasonLifecycle(t *testing.T) {
	setup(t)
	repo := NewSeasonRepo(testDB)
	ctx := context.Background()

	s := createTestSeason(t, repo, "Lifecycle")
	if err := repo.SetActive(ctx, s.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := repo.SetTurn(ctx, s.ID, 3); err != nil {
		t.Fatalf("set turn: %v", err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Turn != 3 {
		t.Fatalf("unexpected active list: %+v", active)
	}

	if err := repo.SetFinished(ctx, s.ID, []string{"p1", "p2"}); err != nil {
		t.Fatalf("set finished: %v", err)
	}
	found, _ := repo.FindByID(ctx, s.ID)
	if found.Status != "finished" {
		t.Fatalf("expected finished, got %s", found.Status)
	}
	if len(found.Winners) != 2 || found.Winners[0] != "p1" {
		t.Fatalf("unexpected winners: %v", found.Winners)
	}

	active, _ = repo.ListActive(ctx)
	if len(active) != 0 {
		t.Fatalf("finished season still listed active")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	setup(t)
	repo := NewSeasonRepo(testDB)
	ctx := context.Background()

	s := createTestSeason(t, repo, "Snaps")
	if snap, err := repo.LatestSnapshot(ctx, s.ID); err != nil || snap != nil {
		t.Fatalf("expected no snapshot, got %+v, %v", snap, err)
	}

	if err := repo.SaveSnapshot(ctx, s.ID, 1, json.RawMessage(`{"turn":1}`)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := repo.SaveSnapshot(ctx, s.ID, 2, json.RawMessage(`{"turn":2}`)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	snap, err := repo.LatestSnapshot(ctx, s.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if snap == nil || snap.Turn != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

// --- TimeoutRepo Tests ---

func TestTimeoutSaveListDelete(t *testing.T) {
	setup(t)
	repo := NewTimeoutRepo(testDB)
	ctx := context.Background()

	due := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	rec := model.TimeoutRecord{ID: "42", Kind: "turn-boundary", DueAt: due, Policy: model.PolicyIncrementDay}
	if err := repo.SaveTimeout(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	recs, err := repo.ListTimeouts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "42" || !recs[0].DueAt.Equal(due) {
		t.Fatalf("unexpected records: %+v", recs)
	}

	// Saving again with a new due time updates in place.
	rec.DueAt = due.Add(time.Hour)
	if err := repo.SaveTimeout(ctx, rec); err != nil {
		t.Fatalf("resave: %v", err)
	}
	recs, _ = repo.ListTimeouts(ctx)
	if len(recs) != 1 || !recs[0].DueAt.Equal(due.Add(time.Hour)) {
		t.Fatalf("update not applied: %+v", recs)
	}

	if err := repo.DeleteTimeout(ctx, "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recs, _ = repo.ListTimeouts(ctx)
	if len(recs) != 0 {
		t.Fatalf("record survived delete")
	}
	// Deleting a missing record is fine.
	if err := repo.DeleteTimeout(ctx, "42"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}
