// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"reflect"
	"strings"
	"testing"
)

func TestSummarizeProfile_NewUser(t *testing.T) {
	want := "New user with no preferences yet"

	if got := SummarizeProfile(nil); got != want {
		t.Errorf("SummarizeProfile(nil) = %q, want %q", got, want)
	}
	if got := SummarizeProfile(NewProfile("u1")); got != want {
		t.Errorf("SummarizeProfile(empty) = %q, want %q", got, want)
	}
}

func TestSummarizeProfile_FullProfile(t *testing.T) {
	p := NewProfile("u1")
	p.TotalInteractions = 42
	p.GenrePreferences = map[string]float64{"pop": 0.7, "rock": 0.2, "jazz": 0.1}
	p.FeaturePreferences = map[string]FeatureStats{
		"energy":       {Mean: 0.8},
		"valence":      {Mean: 0.75},
		"danceability": {Mean: 0.9},
	}
	p.LikedArtists = []string{"A", "B", "C", "D", "E", "F", "G"}

	got := SummarizeProfile(p)

	wantParts := []string{
		"Preferred genres: pop (0.70), rock (0.20), jazz (0.10)",
		"Prefers: high energy, positive mood, danceable",
		// Capped at five artists.
		"Favorite artists: A, B, C, D, E",
		"Based on 42 interactions",
	}
	for _, part := range wantParts {
		if !strings.Contains(got, part) {
			t.Errorf("summary %q missing %q", got, part)
		}
	}
	if strings.Contains(got, "F") && strings.Contains(got, "Favorite artists: A, B, C, D, E, F") {
		t.Errorf("summary %q lists more than five artists", got)
	}
}

func TestSummarizeProfile_LowDescriptors(t *testing.T) {
	p := NewProfile("u1")
	p.TotalInteractions = 3
	p.FeaturePreferences = map[string]FeatureStats{
		"energy":  {Mean: 0.2},
		"valence": {Mean: 0.1},
	}

	got := SummarizeProfile(p)
	if !strings.Contains(got, "low energy") || !strings.Contains(got, "melancholic mood") {
		t.Errorf("summary %q missing low-end descriptors", got)
	}
}

func TestSummarizeProfile_MidrangeFeaturesOmitted(t *testing.T) {
	p := NewProfile("u1")
	p.TotalInteractions = 3
	p.FeaturePreferences = map[string]FeatureStats{
		"energy":       {Mean: 0.5},
		"valence":      {Mean: 0.5},
		"danceability": {Mean: 0.5},
	}

	got := SummarizeProfile(p)
	if strings.Contains(got, "Prefers:") {
		t.Errorf("summary %q describes midrange features", got)
	}
	if !strings.Contains(got, "Based on 3 interactions") {
		t.Errorf("summary %q missing interaction count", got)
	}
}

func TestSummarizeSession(t *testing.T) {
	if got := SummarizeSession(nil); got != "" {
		t.Errorf("SummarizeSession(nil) = %q, want empty", got)
	}

	got := SummarizeSession(map[string]any{
		"recently_liked_count": 3,
		"recent_query_context": "workout music upbeat pop",
		"mood":                 "energetic",
		"activity":             "running",
	})

	wantParts := []string{
		"Recently liked 3 tracks this session.",
		"Recent searches: workout music upbeat pop.",
		// Overrides render after the well-known keys, in sorted order.
		"activity: running. mood: energetic.",
	}
	for _, part := range wantParts {
		if !strings.Contains(got, part) {
			t.Errorf("session summary %q missing %q", got, part)
		}
	}
}

func TestSummarizeSession_ZeroLikesOmitted(t *testing.T) {
	got := SummarizeSession(map[string]any{"recently_liked_count": 0})
	if got != "" {
		t.Errorf("SummarizeSession() = %q, want empty for zero likes", got)
	}
}

func TestTopGenres(t *testing.T) {
	prefs := map[string]float64{
		"pop":   0.4,
		"rock":  0.4,
		"jazz":  0.2,
		"metal": 0.0,
	}

	// Equal weights order alphabetically; zero weights are excluded.
	got := topGenres(prefs, 3)
	want := []string{"pop", "rock", "jazz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("topGenres() = %v, want %v", got, want)
	}

	got = topGenres(prefs, 2)
	if len(got) != 2 {
		t.Errorf("topGenres(n=2) returned %d entries", len(got))
	}
}
