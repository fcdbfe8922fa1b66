// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"fmt"
	"sort"
	"strings"
)

// SummarizeProfile renders a short human-readable description of a profile:
// top genres with weights, feature descriptors, favorite artists, and the
// interaction count. It is fully deterministic and serves as the fallback
// when no Summarizer is configured or the external call fails.
func SummarizeProfile(p *Profile) string {
	if p == nil || p.TotalInteractions == 0 {
		return "New user with no preferences yet"
	}

	var parts []string

	if len(p.GenrePreferences) > 0 {
		genres := topGenres(p.GenrePreferences, 3)
		described := make([]string, 0, len(genres))
		for _, g := range genres {
			described = append(described, fmt.Sprintf("%s (%.2f)", g, p.GenrePreferences[g]))
		}
		parts = append(parts, "Preferred genres: "+strings.Join(described, ", "))
	}

	if desc := featureDescriptors(p.FeaturePreferences); len(desc) > 0 {
		parts = append(parts, "Prefers: "+strings.Join(desc, ", "))
	}

	if len(p.LikedArtists) > 0 {
		artists := p.LikedArtists
		if len(artists) > 5 {
			artists = artists[:5]
		}
		parts = append(parts, "Favorite artists: "+strings.Join(artists, ", "))
	}

	parts = append(parts, fmt.Sprintf("Based on %d interactions", p.TotalInteractions))

	return strings.Join(parts, ". ")
}

// SummarizeSession renders a session's contextual preferences as a short
// text fragment for reranker query enrichment. Well-known keys render first;
// temporary overrides follow in sorted order so output is deterministic.
func SummarizeSession(prefs map[string]any) string {
	if len(prefs) == 0 {
		return ""
	}

	var parts []string
	if n, ok := prefs["recently_liked_count"].(int); ok && n > 0 {
		parts = append(parts, fmt.Sprintf("Recently liked %d tracks this session.", n))
	}
	if q, ok := prefs["recent_query_context"].(string); ok && q != "" {
		parts = append(parts, "Recent searches: "+q+".")
	}

	overrides := make([]string, 0, len(prefs))
	for k := range prefs {
		if k == "recently_liked_count" || k == "recent_query_context" {
			continue
		}
		overrides = append(overrides, k)
	}
	sort.Strings(overrides)
	for _, k := range overrides {
		parts = append(parts, fmt.Sprintf("%s: %v.", k, prefs[k]))
	}

	return strings.Join(parts, " ")
}

func featureDescriptors(prefs map[string]FeatureStats) []string {
	var desc []string
	if stats, ok := prefs["energy"]; ok {
		if stats.Mean > 0.7 {
			desc = append(desc, "high energy")
		} else if stats.Mean < 0.3 {
			desc = append(desc, "low energy")
		}
	}
	if stats, ok := prefs["valence"]; ok {
		if stats.Mean > 0.7 {
			desc = append(desc, "positive mood")
		} else if stats.Mean < 0.3 {
			desc = append(desc, "melancholic mood")
		}
	}
	if stats, ok := prefs["danceability"]; ok && stats.Mean > 0.7 {
		desc = append(desc, "danceable")
	}
	return desc
}

// topGenres returns up to n genre names ordered by preference weight,
// ties broken alphabetically.
func topGenres(prefs map[string]float64, n int) []string {
	genres := make([]string, 0, len(prefs))
	for g, w := range prefs {
		if w > 0 {
			genres = append(genres, g)
		}
	}
	sort.SliceStable(genres, func(i, j int) bool {
		if prefs[genres[i]] != prefs[genres[j]] {
			return prefs[genres[i]] > prefs[genres[j]]
		}
		return genres[i] < genres[j]
	})
	if len(genres) > n {
		genres = genres[:n]
	}
	return genres
}
