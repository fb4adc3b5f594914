package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := InitSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "test.db"), PoolOptions{})
	if err != nil {
		t.Fatalf("Failed to init sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestResultRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteResultRepository(openTestDB(t))

	finished := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	in := engine.MatchResult{
		MatchID: "m1",
		Title:   "Town Victory!",
		Faction: "Town",
		Reason:  "Every villain is dead.",
		Rounds:  3,
		Players: []engine.PlayerResult{
			{ID: "p1", Name: "Ana", Role: "Mayor", Faction: "Town", Alive: true, Winner: true},
			{ID: "p2", Name: "Bia", Role: "AlphaKiller", Faction: "Villains", Alive: false, Winner: false},
		},
		Winners:    []string{"p1"},
		FinishedAt: finished,
	}
	if err := repo.RecordMatchResult(ctx, in); err != nil {
		t.Fatalf("Unexpected error recording: %v", err)
	}
	if err := repo.RecordMatchResult(ctx, in); err == nil {
		t.Errorf("Expected a second write of the same match to fail")
	}

	got, err := repo.Get(ctx, "m1")
	if err != nil || got == nil {
		t.Fatalf("Expected the stored result, got %v (%v)", got, err)
	}
	if got.Faction != "Town" || got.Rounds != 3 || !got.FinishedAt.Equal(finished) {
		t.Errorf("Expected the header to round trip, got %+v", got)
	}
	if len(got.Players) != 2 || got.Players[0] != in.Players[0] || got.Players[1] != in.Players[1] {
		t.Errorf("Expected both seats back in order, got %+v", got.Players)
	}
	if len(got.Winners) != 1 || got.Winners[0] != "p1" {
		t.Errorf("Expected winners [p1], got %v", got.Winners)
	}

	missing, err := repo.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for an unknown match, got %v (%v)", missing, err)
	}

	later := in
	later.MatchID = "m2"
	later.FinishedAt = finished.Add(time.Hour)
	if err := repo.RecordMatchResult(ctx, later); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	recent, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(recent) != 2 || recent[0].MatchID != "m2" {
		t.Errorf("Expected newest first, got %+v", recent)
	}
}

func seedEvents(t *testing.T, repo *SQLiteEventRepository) {
	t.Helper()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	evs := []events.GameEvent{
		{Type: events.EventTypeRolesAssigned, Payload: map[string]string{"p1": "Mayor", "p2": "AlphaKiller", "p3": "Headhunter"}},
		{Type: events.EventTypeMatchStarted, IsRevealed: true, Round: 1},
		{Type: events.EventTypeActionSubmitted, ActorID: "p2", Round: 1, Payload: engine.ActionPayload{Kind: "villain_vote", Targets: []string{"p1"}}},
		{Type: events.EventTypeDeath, TargetID: "p1", Round: 1, IsRevealed: true, Payload: engine.DeathPayload{Cause: engine.CauseVillainVote, Role: "Mayor"}},
		{Type: events.EventTypeConversion, TargetID: "p3", Round: 1, Payload: map[string]string{"role": "CommonCitizen"}},
		{Type: events.EventTypeRevival, ActorID: "p4", TargetID: "p1", Round: 2, IsRevealed: true},
		{Type: events.EventTypeLynch, TargetID: "p2", Round: 2, IsRevealed: true},
		{Type: events.EventTypeDeath, TargetID: "p2", Round: 2, IsRevealed: true, Payload: engine.DeathPayload{Cause: engine.CauseLynch, Role: "AlphaKiller"}},
	}
	for i, e := range evs {
		e.ID = events.GenerateEventID()
		e.MatchID = "m1"
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		if err := repo.Append(e); err != nil {
			t.Fatalf("Unexpected error appending %s: %v", e.Type, err)
		}
	}
	other := events.GameEvent{ID: events.GenerateEventID(), MatchID: "m2", Type: events.EventTypeMatchStarted, Timestamp: base}
	if err := repo.Append(other); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestEventRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	seedEvents(t, repo)

	all, err := repo.ByMatch(ctx, "m1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(all) != 8 {
		t.Fatalf("Expected 8 events for m1, got %d", len(all))
	}
	if all[0].EventType != string(events.EventTypeRolesAssigned) || all[7].TargetID != "p2" {
		t.Errorf("Expected write order preserved, got %s ... %s", all[0].EventType, all[7].EventType)
	}

	if got, _ := repo.ByActor(ctx, "m1", "p2"); len(got) != 1 {
		t.Errorf("Expected one event by p2, got %d", len(got))
	}
	if got, _ := repo.ByRound(ctx, "m1", 2); len(got) != 3 {
		t.Errorf("Expected three events in round 2, got %d", len(got))
	}
	if got, _ := repo.ByType(ctx, "m1", string(events.EventTypeDeath)); len(got) != 2 {
		t.Errorf("Expected two deaths, got %d", len(got))
	}
	if got, _ := repo.Revealed(ctx, "m1"); len(got) != 5 {
		t.Errorf("Expected five revealed events, got %d", len(got))
	}
}

func TestReconstructorRebuildsSeatsAndTimeline(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	seedEvents(t, repo)
	rc := NewReconstructor(repo)

	seats, err := rc.RebuildSeats(ctx, "m1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := map[string]SeatState{
		"p1": {PlayerID: "p1", Role: "Mayor", Alive: true},
		"p2": {PlayerID: "p2", Role: "AlphaKiller", Alive: false, Cause: "lynch"},
		"p3": {PlayerID: "p3", Role: "CommonCitizen", Alive: true},
	}
	if len(seats) != len(want) {
		t.Fatalf("Expected %d seats, got %+v", len(want), seats)
	}
	for _, s := range seats {
		if s != want[s.PlayerID] {
			t.Errorf("Expected %+v, got %+v", want[s.PlayerID], s)
		}
	}

	public, err := rc.Timeline(ctx, "m1", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(public) != 5 {
		t.Fatalf("Expected five public entries, got %d", len(public))
	}
	if public[1].Summary != "p1 (Mayor) died: villain_vote." {
		t.Errorf("Expected a death summary, got %q", public[1].Summary)
	}

	full, _ := rc.Timeline(ctx, "m1", false)
	if full[2].Summary != "p2 used villain_vote." {
		t.Errorf("Expected the hidden action in the full timeline, got %q", full[2].Summary)
	}
}
