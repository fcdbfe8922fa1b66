// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import "strings"

// Scenario is a fixed evaluation fixture: a query plus the feature and genre
// targets a well-behaved recommendation list should hit. Scenarios judge
// output quality offline; they play no part in serving.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Query       string `json:"query"`

	// ExpectedFeatures are target feature values by name ("tempo" is in
	// BPM, everything else on the 0-1 scale).
	ExpectedFeatures map[string]float64 `json:"expected_features"`

	// Genres are acceptable genre substrings. A track outside the list
	// scores 0.3 on the genre axis rather than 0.
	Genres []string `json:"genres"`

	// FeatureTolerance is the full-credit-to-zero falloff distance for
	// 0-1 features; TempoTolerance the same for tempo in BPM.
	FeatureTolerance float64 `json:"feature_tolerance"`
	TempoTolerance   float64 `json:"tempo_tolerance"`

	// Importance weights the relevance axes; unlisted features weigh 1.0
	// and "genre" defaults to 0.5.
	Importance map[string]float64 `json:"importance"`
}

// relevanceThreshold is the minimum relevance score for a track to count as
// a hit in scenario precision metrics.
const relevanceThreshold = 0.5

// Relevance scores a track against the scenario on [0, 1]: a weighted
// average over per-feature closeness and genre membership.
func (sc Scenario) Relevance(t Track) float64 {
	features := t.Features.Named()

	var sum, weightSum float64
	for name, target := range sc.ExpectedFeatures {
		v, ok := features[name]
		if !ok {
			continue
		}
		tolerance := sc.FeatureTolerance
		if name == "tempo" {
			tolerance = sc.TempoTolerance
		}
		if tolerance <= 0 {
			continue
		}
		similarity := 1 - abs(v-target)/tolerance
		if similarity < 0 {
			similarity = 0
		}
		w := sc.importance(name)
		sum += similarity * w
		weightSum += w
	}

	if len(sc.Genres) > 0 {
		match := 0.3
		genre := strings.ToLower(t.Genre)
		for _, g := range sc.Genres {
			if strings.Contains(genre, strings.ToLower(g)) {
				match = 1.0
				break
			}
		}
		w, ok := sc.Importance["genre"]
		if !ok {
			w = 0.5
		}
		sum += match * w
		weightSum += w
	}

	if weightSum == 0 {
		return 0.5
	}
	return sum / weightSum
}

func (sc Scenario) importance(name string) float64 {
	if w, ok := sc.Importance[name]; ok {
		return w
	}
	return 1.0
}

// ScenarioReport summarizes how a recommendation list performed against one
// scenario.
type ScenarioReport struct {
	Scenario      string  `json:"scenario"`
	Count         int     `json:"num_recommendations"`
	PrecisionAt5  float64 `json:"precision_at_5"`
	PrecisionAt10 float64 `json:"precision_at_10"`
	AvgRelevance  float64 `json:"avg_relevance_score"`
	RelevantCount int     `json:"relevant_count"`
}

// EvaluateScenario scores a recommendation list against a scenario fixture.
func EvaluateScenario(sc Scenario, recs []Recommendation) ScenarioReport {
	report := ScenarioReport{Scenario: sc.Name, Count: len(recs)}
	if len(recs) == 0 {
		return report
	}

	scores := make([]float64, 0, len(recs))
	for _, r := range recs {
		s := sc.Relevance(r.Track)
		scores = append(scores, s)
		if s >= relevanceThreshold {
			report.RelevantCount++
		}
	}

	report.AvgRelevance = mean(scores)
	report.PrecisionAt5 = precisionAt(scores, 5)
	report.PrecisionAt10 = precisionAt(scores, 10)
	return report
}

func precisionAt(scores []float64, k int) float64 {
	if len(scores) == 0 {
		return 0
	}
	if k > len(scores) {
		k = len(scores)
	}
	hits := 0
	for _, s := range scores[:k] {
		if s >= relevanceThreshold {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// BuiltinScenarios are the standing evaluation fixtures.
func BuiltinScenarios() []Scenario {
	return []Scenario{
		{
			Name:        "Workout User",
			Description: "High-energy music to exercise to",
			Query:       "upbeat songs for working out",
			ExpectedFeatures: map[string]float64{
				"energy": 0.85, "danceability": 0.75, "valence": 0.7, "tempo": 130,
			},
			Genres:           []string{"pop", "electronic", "hip-hop"},
			FeatureTolerance: 0.25,
			TempoTolerance:   25,
			Importance: map[string]float64{
				"energy": 2.0, "danceability": 1.5, "valence": 1.0, "tempo": 1.5, "genre": 0.5,
			},
		},
		{
			Name:        "Sad Music Seeker",
			Description: "Melancholic, emotional music",
			Query:       "sad songs for a rainy day",
			ExpectedFeatures: map[string]float64{
				"energy": 0.3, "valence": 0.2, "acousticness": 0.6, "danceability": 0.4,
			},
			Genres:           []string{"pop", "rock", "r&b"},
			FeatureTolerance: 0.25,
			Importance: map[string]float64{
				"valence": 2.0, "energy": 1.5, "acousticness": 1.0, "danceability": 0.5, "genre": 0.3,
			},
		},
		{
			Name:        "Study Session",
			Description: "Calm, focused music for studying",
			Query:       "chill music for studying",
			ExpectedFeatures: map[string]float64{
				"energy": 0.35, "valence": 0.5, "instrumentalness": 0.4, "acousticness": 0.5, "speechiness": 0.1,
			},
			Genres:           []string{"electronic", "pop"},
			FeatureTolerance: 0.3,
			Importance: map[string]float64{
				"energy": 2.0, "instrumentalness": 1.5, "speechiness": 1.5, "acousticness": 1.0, "valence": 0.5, "genre": 0.3,
			},
		},
		{
			Name:        "Party Playlist",
			Description: "Danceable party music",
			Query:       "party bangers",
			ExpectedFeatures: map[string]float64{
				"danceability": 0.85, "energy": 0.8, "valence": 0.75, "tempo": 120,
			},
			Genres:           []string{"pop", "hip-hop", "electronic"},
			FeatureTolerance: 0.2,
			TempoTolerance:   20,
			Importance: map[string]float64{
				"danceability": 2.0, "energy": 1.5, "valence": 1.0, "tempo": 1.0, "genre": 0.5,
			},
		},
		{
			Name:        "Thematic Lyrics",
			Description: "Songs with heartbreak themes",
			Query:       "songs about heartbreak and lost love",
			ExpectedFeatures: map[string]float64{
				"valence": 0.35, "energy": 0.45, "acousticness": 0.4,
			},
			Genres:           []string{"pop", "rock", "r&b"},
			FeatureTolerance: 0.35,
			Importance: map[string]float64{
				"valence": 1.5, "energy": 0.8, "acousticness": 0.5, "genre": 0.3,
			},
		},
	}
}

// ScenarioByName returns the builtin scenario with the given name,
// case-insensitively.
func ScenarioByName(name string) (Scenario, bool) {
	for _, sc := range BuiltinScenarios() {
		if strings.EqualFold(sc.Name, name) {
			return sc, true
		}
	}
	return Scenario{}, false
}
