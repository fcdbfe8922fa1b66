// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Issue severity levels, ordered from least to most serious.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityCritical = "critical"
)

// Issue types reported by the evaluator.
const (
	IssueNoRecommendations = "no_recommendations"
	IssueArtistRepetition  = "artist_repetition"
	IssueGenreImbalance    = "genre_imbalance"
	IssueLowVariety        = "low_variety"
	IssueGenreMismatch     = "genre_mismatch"
)

// Issue describes a single problem detected in a recommendation list.
type Issue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Evaluation is a quality report over a finished recommendation list. It is
// purely observational: producing it never mutates the list or the profile.
type Evaluation struct {
	DiversityScore float64 `json:"diversity_score"`
	QualityScore   float64 `json:"quality_score"`
	Issues         []Issue `json:"issues"`
	Feedback       string  `json:"feedback"`
}

// maxArtistRepeats is the per-artist occurrence ceiling before the list is
// flagged as over-represented.
const maxArtistRepeats = 3

// Evaluate scores a recommendation list for diversity and quality, flags
// structural issues, and renders an overall feedback sentence.
func Evaluate(recs []Recommendation, profile *Profile) *Evaluation {
	ev := &Evaluation{
		DiversityScore: diversityScore(recs),
		QualityScore:   qualityScore(recs),
		Issues:         identifyIssues(recs, profile),
	}
	ev.Feedback = renderFeedback(ev)
	return ev
}

// diversityScore averages genre variety, artist variety, and energy spread.
// An energy standard deviation of 0.2 or more counts as fully diverse.
func diversityScore(recs []Recommendation) float64 {
	if len(recs) == 0 {
		return 0
	}

	genres := map[string]struct{}{}
	artists := map[string]struct{}{}
	energies := make([]float64, 0, len(recs))
	for _, r := range recs {
		genres[r.Track.Genre] = struct{}{}
		artists[r.Track.Artist] = struct{}{}
		energies = append(energies, r.Track.Features.Energy)
	}

	n := float64(len(recs))
	scores := []float64{
		float64(len(genres)) / n,
		float64(len(artists)) / n,
		math.Min(1.0, stddev(energies)/0.2),
	}
	return mean(scores)
}

// qualityScore averages the best available per-item score (rerank score when
// present, combined score otherwise) and adds a spread bonus capped at 0.2,
// so a list of uniformly identical scores is rated slightly lower.
func qualityScore(recs []Recommendation) float64 {
	if len(recs) == 0 {
		return 0
	}

	scores := make([]float64, 0, len(recs))
	for _, r := range recs {
		s, ok := r.Scores[ScoreRerank]
		if !ok {
			s = r.Score
		}
		scores = append(scores, s)
	}

	q := mean(scores) + math.Min(0.2, stddev(scores))
	return math.Min(1.0, q)
}

func identifyIssues(recs []Recommendation, profile *Profile) []Issue {
	if len(recs) == 0 {
		return []Issue{{
			Type:        IssueNoRecommendations,
			Severity:    SeverityCritical,
			Description: "No recommendations were generated",
		}}
	}

	var issues []Issue

	artistCounts := map[string]int{}
	genreCounts := map[string]struct{}{}
	energies := make([]float64, 0, len(recs))
	for _, r := range recs {
		artistCounts[r.Track.Artist]++
		genreCounts[r.Track.Genre] = struct{}{}
		energies = append(energies, r.Track.Features.Energy)
	}

	// Deterministic iteration for stable issue ordering.
	artists := make([]string, 0, len(artistCounts))
	for a := range artistCounts {
		artists = append(artists, a)
	}
	sort.Strings(artists)
	for _, a := range artists {
		if n := artistCounts[a]; n > maxArtistRepeats {
			issues = append(issues, Issue{
				Type:        IssueArtistRepetition,
				Severity:    SeverityMedium,
				Description: fmt.Sprintf("%s appears %d times (over-represented)", a, n),
			})
		}
	}

	if len(genreCounts) == 1 && len(recs) > 5 {
		issues = append(issues, Issue{
			Type:        IssueGenreImbalance,
			Severity:    SeverityLow,
			Description: "All recommendations are from the same genre",
		})
	}

	if stddev(energies) < 0.1 {
		issues = append(issues, Issue{
			Type:        IssueLowVariety,
			Severity:    SeverityLow,
			Description: "Songs have very similar energy levels",
		})
	}

	if profile != nil && len(profile.GenrePreferences) > 0 {
		matched := false
		for _, g := range topGenres(profile.GenrePreferences, 3) {
			if _, ok := genreCounts[g]; ok {
				matched = true
				break
			}
		}
		if !matched {
			issues = append(issues, Issue{
				Type:        IssueGenreMismatch,
				Severity:    SeverityMedium,
				Description: "Recommendations don't match the listener's preferred genres",
			})
		}
	}

	return issues
}

func renderFeedback(ev *Evaluation) string {
	var parts []string

	switch {
	case ev.QualityScore > 0.8 && ev.DiversityScore > 0.7:
		parts = append(parts, "Excellent recommendations with high quality and diversity.")
	case ev.QualityScore > 0.6 && ev.DiversityScore > 0.5:
		parts = append(parts, "Good recommendations overall.")
	default:
		parts = append(parts, "Recommendations could be improved.")
	}

	if ev.DiversityScore < 0.5 {
		parts = append(parts, "Consider adding more variety in genres and artists.")
	} else if ev.DiversityScore > 0.8 {
		parts = append(parts, "Great variety across different genres and styles.")
	}

	if ev.QualityScore < 0.6 {
		parts = append(parts, "Some recommendations may not be highly relevant to the query.")
	}

	critical := 0
	var medium []Issue
	for _, issue := range ev.Issues {
		switch issue.Severity {
		case SeverityCritical:
			critical++
		case SeverityMedium:
			medium = append(medium, issue)
		}
	}
	if critical > 0 {
		parts = append(parts, fmt.Sprintf("Critical issues: %d found.", critical))
	}
	if len(medium) > 2 {
		medium = medium[:2]
	}
	for _, issue := range medium {
		parts = append(parts, issue.Description)
	}

	return strings.Join(parts, " ")
}

func stddev(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	m := mean(vs)
	variance := 0.0
	for _, v := range vs {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(vs)))
}
