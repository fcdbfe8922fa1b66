// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package profilestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/melodex/internal/recommend"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestStore_ProfileRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	// Absent profiles are (nil, nil), not an error.
	got, err := s.GetProfile(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetProfile(absent) = %+v, want nil", got)
	}

	profile := recommend.NewProfile("u1")
	profile.TotalInteractions = 12
	profile.GenrePreferences = map[string]float64{"pop": 0.75, "rock": 0.25}
	profile.LikedArtists = []string{"A", "B"}
	profile.UpdatedAt = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	if err := s.PutProfile(ctx, profile); err != nil {
		t.Fatalf("PutProfile() error = %v", err)
	}

	got, err = s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.TotalInteractions != 12 {
		t.Errorf("TotalInteractions = %d, want 12", got.TotalInteractions)
	}
	if got.GenrePreferences["pop"] != 0.75 {
		t.Errorf("pop weight = %g, want 0.75", got.GenrePreferences["pop"])
	}
	if len(got.LikedArtists) != 2 {
		t.Errorf("LikedArtists = %v", got.LikedArtists)
	}

	// Put replaces the previous snapshot.
	profile.TotalInteractions = 13
	if err := s.PutProfile(ctx, profile); err != nil {
		t.Fatalf("PutProfile() error = %v", err)
	}
	got, _ = s.GetProfile(ctx, "u1")
	if got.TotalInteractions != 13 {
		t.Errorf("TotalInteractions after replace = %d, want 13", got.TotalInteractions)
	}
}

func TestStore_SessionRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.GetSession(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetSession(absent) = %+v, want nil", got)
	}

	state := recommend.NewSessionState("u1", "s1")
	state.AddQuery("upbeat pop", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))
	if err := s.PutSession(ctx, state); err != nil {
		t.Fatalf("PutSession() error = %v", err)
	}

	got, err = s.GetSession(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if len(got.RecentQueries) != 1 || got.RecentQueries[0].Query != "upbeat pop" {
		t.Errorf("RecentQueries = %v", got.RecentQueries)
	}

	// Sessions are scoped per user: same session ID under another user
	// is a different record.
	other, err := s.GetSession(ctx, "u2", "s1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if other != nil {
		t.Error("session leaked across users")
	}
}

func TestStore_AppendInteraction_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := recommend.Interaction{
		ID: "e1", UserID: "u1", TrackID: "t1", Kind: recommend.KindLike,
		Timestamp: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
	}

	fresh, err := s.AppendInteraction(ctx, in)
	if err != nil {
		t.Fatalf("AppendInteraction() error = %v", err)
	}
	if !fresh {
		t.Error("first append reported as duplicate")
	}

	fresh, err = s.AppendInteraction(ctx, in)
	if err != nil {
		t.Fatalf("AppendInteraction() redelivery error = %v", err)
	}
	if fresh {
		t.Error("duplicate append reported as fresh")
	}

	count, err := s.CountInteractions(ctx, "u1")
	if err != nil {
		t.Fatalf("CountInteractions() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	events, err := s.GetInteractions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetInteractions() error = %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" {
		t.Errorf("events = %v", events)
	}
}

func TestStore_GetInteractions_OrderAndLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		in := recommend.Interaction{
			ID: fmt.Sprintf("e%d", i), UserID: "u1", TrackID: fmt.Sprintf("t%d", i),
			Kind: recommend.KindPlay,
		}
		if _, err := s.AppendInteraction(ctx, in); err != nil {
			t.Fatalf("AppendInteraction() error = %v", err)
		}
	}

	events, err := s.GetInteractions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetInteractions() error = %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	// Oldest first.
	if events[0].ID != "e0" || events[4].ID != "e4" {
		t.Errorf("order = %v, want insertion order", events)
	}

	limited, err := s.GetInteractions(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("GetInteractions(limit) error = %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "e0" {
		t.Errorf("limited = %v, want first two", limited)
	}
}

func TestStore_InteractionsIsolatedPerUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, user := range []string{"u1", "u2"} {
		in := recommend.Interaction{ID: "e-" + user, UserID: user, TrackID: "t1", Kind: recommend.KindLike}
		if _, err := s.AppendInteraction(ctx, in); err != nil {
			t.Fatalf("AppendInteraction() error = %v", err)
		}
	}

	events, err := s.GetInteractions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetInteractions() error = %v", err)
	}
	if len(events) != 1 || events[0].UserID != "u1" {
		t.Errorf("u1 events = %v, want only u1's", events)
	}
}

func TestStore_CountInteractions_Unknown(t *testing.T) {
	s := testStore(t)
	count, err := s.CountInteractions(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("CountInteractions() error = %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestStore_TrackRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	tracks := []recommend.Track{
		{ID: "t1", Title: "Song A", Artist: "Artist A", Genre: "pop", Features: recommend.DefaultAudioFeatures()},
		{ID: "", Title: "No ID"}, // skipped
		{ID: "t2", Title: "Song B", Artist: "Artist B", Genre: "rock"},
	}
	if err := s.PutTracks(ctx, tracks); err != nil {
		t.Fatalf("PutTracks() error = %v", err)
	}

	got, found, err := s.GetTrack(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTrack() error = %v", err)
	}
	if !found {
		t.Fatal("t1 not found")
	}
	if got.Title != "Song A" || got.Features.Tempo != 120 {
		t.Errorf("track = %+v", got)
	}

	_, found, err = s.GetTrack(ctx, "missing")
	if err != nil {
		t.Fatalf("GetTrack(missing) error = %v", err)
	}
	if found {
		t.Error("missing track reported found")
	}
}

func TestStore_HistoryMostRecentFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		rec := recommend.HistoryRecord{
			UserID: "u1", Query: fmt.Sprintf("q%d", i),
			TrackIDs:  []string{"t1", "t2"},
			Timestamp: time.Date(2026, 3, 15, 9+i, 0, 0, 0, time.UTC),
		}
		if err := s.AppendHistory(ctx, rec); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
	}

	records, err := s.GetHistory(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	if records[0].Query != "q3" || records[3].Query != "q0" {
		t.Errorf("order = [%s ... %s], want most recent first", records[0].Query, records[3].Query)
	}

	limited, err := s.GetHistory(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("GetHistory(limit) error = %v", err)
	}
	if len(limited) != 2 || limited[0].Query != "q3" {
		t.Errorf("limited = %v, want two most recent", limited)
	}
}

func TestStore_GetHistory_Unknown(t *testing.T) {
	s := testStore(t)
	records, err := s.GetHistory(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %v, want empty", records)
	}
}

func TestStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	ctx := context.Background()
	profile := recommend.NewProfile("u1")
	profile.TotalInteractions = 1
	if err := s.PutProfile(ctx, profile); err != nil {
		t.Fatalf("PutProfile() error = %v", err)
	}
	got, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got == nil || got.TotalInteractions != 1 {
		t.Errorf("profile = %+v", got)
	}
}
