//go:build integration

package redis

import (
	"encoding/json"
	"testing"

	"github.com/efreeman/landgrab/internal/testutil"
)

func setup(t *testing.T) *Client {
	t.Helper()
	rdb := testutil.SetupRedis(t)
	testutil.CleanupRedis(t, rdb)
	return NewClientFromPool(rdb)
}

func TestGameStateRoundTrip(t *testing.T) {
	c := setup(t)
	ctx := t.Context()

	if state, err := c.GetGameState(ctx, "s1"); err != nil || state != nil {
		t.Fatalf("expected nil state, got %s, %v", state, err)
	}

	want := json.RawMessage(`{"turn":5}`)
	if err := c.SetGameState(ctx, "s1", want); err != nil {
		t.Fatalf("set state: %v", err)
	}
	got, err := c.GetGameState(ctx, "s1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestLastSummary(t *testing.T) {
	c := setup(t)
	ctx := t.Context()

	if s, err := c.GetLastSummary(ctx, "s1"); err != nil || s != "" {
		t.Fatalf("expected empty summary, got %q, %v", s, err)
	}
	if err := c.SetLastSummary(ctx, "s1", "alpha conquered beta", 0); err != nil {
		t.Fatalf("set summary: %v", err)
	}
	s, err := c.GetLastSummary(ctx, "s1")
	if err != nil || s != "alpha conquered beta" {
		t.Fatalf("got %q, %v", s, err)
	}
}

func TestDeleteSeasonData(t *testing.T) {
	c := setup(t)
	ctx := t.Context()

	c.SetGameState(ctx, "s1", json.RawMessage(`{}`))
	c.SetLastSummary(ctx, "s1", "done", 0)
	if err := c.DeleteSeasonData(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if state, _ := c.GetGameState(ctx, "s1"); state != nil {
		t.Fatal("state survived delete")
	}
	if s, _ := c.GetLastSummary(ctx, "s1"); s != "" {
		t.Fatal("summary survived delete")
	}
}
