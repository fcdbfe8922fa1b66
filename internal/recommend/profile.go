// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"math"
	"sort"
	"time"
)

// Caps on the artist preference lists.
const (
	maxLikedArtists    = 50
	maxDislikedArtists = 20

	// minArtistOccurrences is the inclusion bar: an artist enters the
	// liked or disliked list only after 2 independent signals.
	minArtistOccurrences = 2
)

// BuildProfile recomputes a user's long-term profile wholesale from the
// complete interaction history. It is a pure function: the same history and
// track metadata always produce byte-identical output, which makes redundant
// concurrent recomputation safe (last-writer-wins on the stored snapshot).
//
// Events whose track is absent from the metadata map still count toward
// TotalInteractions but contribute nothing to the aggregates.
func BuildProfile(userID string, history []Interaction, tracks map[string]Track, resolver *TimeResolver, now time.Time) *Profile {
	p := NewProfile(userID)
	p.TotalInteractions = len(history)
	p.UpdatedAt = now

	if len(history) == 0 {
		return p
	}

	var liked, disliked []Interaction
	for _, in := range history {
		if in.Liked() {
			liked = append(liked, in)
		}
		if in.Disliked() {
			disliked = append(disliked, in)
		}
	}

	p.GenrePreferences = buildGenrePreferences(liked, disliked, tracks)
	p.FeaturePreferences = buildFeaturePreferences(liked, tracks)
	p.LikedArtists = topArtists(liked, tracks, maxLikedArtists)
	p.DislikedArtists = topArtists(disliked, tracks, maxDislikedArtists)
	if resolver != nil {
		p.TimePatterns = buildTimePatterns(liked, tracks, resolver)
	}

	return p
}

// buildGenrePreferences scores genres +1.0 per like and -0.5 per dislike,
// clamps at zero, and normalizes so the weights sum to 1. A history with no
// positive genre signal yields an empty map.
func buildGenrePreferences(liked, disliked []Interaction, tracks map[string]Track) map[string]float64 {
	scores := map[string]float64{}

	for _, in := range liked {
		if t, ok := tracks[in.TrackID]; ok && t.Genre != "" {
			scores[t.Genre] += 1.0
		}
	}
	for _, in := range disliked {
		if t, ok := tracks[in.TrackID]; ok && t.Genre != "" {
			scores[t.Genre] -= 0.5
		}
	}

	total := 0.0
	for _, s := range scores {
		if s > 0 {
			total += s
		}
	}
	if total <= 0 {
		return map[string]float64{}
	}

	prefs := make(map[string]float64, len(scores))
	for genre, s := range scores {
		if s < 0 {
			s = 0
		}
		prefs[genre] = s / total
	}
	return prefs
}

// buildFeaturePreferences computes mean/std/min/max per feature over the
// liked tracks' feature vectors. Std is the population standard deviation.
func buildFeaturePreferences(liked []Interaction, tracks map[string]Track) map[string]FeatureStats {
	values := map[string][]float64{}

	for _, in := range liked {
		t, ok := tracks[in.TrackID]
		if !ok {
			continue
		}
		for name, v := range t.Features.Named() {
			values[name] = append(values[name], v)
		}
	}

	prefs := make(map[string]FeatureStats, len(values))
	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}
		m := mean(vs)
		variance := 0.0
		minV, maxV := vs[0], vs[0]
		for _, v := range vs {
			variance += (v - m) * (v - m)
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		prefs[name] = FeatureStats{
			Mean: m,
			Std:  math.Sqrt(variance / float64(len(vs))),
			Min:  minV,
			Max:  maxV,
		}
	}
	return prefs
}

// topArtists counts artist occurrences, keeps artists with at least 2
// signals, orders by frequency (ties alphabetically for determinism), and
// truncates to the cap.
func topArtists(events []Interaction, tracks map[string]Track, cap int) []string {
	counts := map[string]int{}
	for _, in := range events {
		if t, ok := tracks[in.TrackID]; ok && t.Artist != "" {
			counts[t.Artist]++
		}
	}

	artists := make([]string, 0, len(counts))
	for artist, n := range counts {
		if n >= minArtistOccurrences {
			artists = append(artists, artist)
		}
	}
	sort.SliceStable(artists, func(i, j int) bool {
		if counts[artists[i]] != counts[artists[j]] {
			return counts[artists[i]] > counts[artists[j]]
		}
		return artists[i] < artists[j]
	})

	if len(artists) > cap {
		artists = artists[:cap]
	}
	return artists
}

// buildTimePatterns averages energy/valence/danceability of liked tracks
// grouped by the time period of the interaction timestamp.
func buildTimePatterns(liked []Interaction, tracks map[string]Track, resolver *TimeResolver) map[string]TimePattern {
	type agg struct {
		energy, valence, dance float64
		count                  int
	}
	byPeriod := map[string]*agg{}

	for _, in := range liked {
		t, ok := tracks[in.TrackID]
		if !ok || in.Timestamp.IsZero() {
			continue
		}
		period := resolver.Resolve(in.Timestamp.Hour()).Name
		a := byPeriod[period]
		if a == nil {
			a = &agg{}
			byPeriod[period] = a
		}
		a.energy += t.Features.Energy
		a.valence += t.Features.Valence
		a.dance += t.Features.Danceability
		a.count++
	}

	patterns := make(map[string]TimePattern, len(byPeriod))
	for period, a := range byPeriod {
		n := float64(a.count)
		patterns[period] = TimePattern{
			AvgEnergy:       a.energy / n,
			AvgValence:      a.valence / n,
			AvgDanceability: a.dance / n,
			Count:           a.count,
		}
	}
	return patterns
}
