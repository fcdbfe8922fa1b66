// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

// TimeContext is the resolved time-of-day context for one hour.
type TimeContext struct {
	Hour         int     `json:"hour"`
	Period       string  `json:"period"`
	IdealEnergy  float64 `json:"ideal_energy"`
	IdealValence float64 `json:"ideal_valence"`
	Weight       float64 `json:"weight"`
	Description  string  `json:"description"`
}

// periodDescriptions are the human-readable blurbs used in reasoning output.
var periodDescriptions = map[string]string{
	"morning":   "Morning time: Prefer uplifting, energetic songs to start the day",
	"afternoon": "Afternoon: Balanced energy, good for focus and productivity",
	"evening":   "Evening: Relaxed vibes, winding down from the day",
	"night":     "Night time: Calm, low-energy music for relaxation or sleep",
}

// TimeResolver maps an hour of day to a period and its scoring adjustment.
// It is deterministic: the same hour always resolves to the same period.
type TimeResolver struct {
	periods []Period
}

// NewTimeResolver builds a resolver from the configured period table.
func NewTimeResolver(periods []Period) *TimeResolver {
	return &TimeResolver{periods: periods}
}

// fallbackPeriod is returned when no configured range matches an hour.
// This is a defined fallback, not an error.
const fallbackPeriod = "afternoon"

// Resolve returns the period configuration for an hour. Hours matching no
// configured range resolve to the afternoon defaults.
func (r *TimeResolver) Resolve(hour int) Period {
	for _, p := range r.periods {
		if hourInPeriod(hour, p) {
			return p
		}
	}
	for _, p := range r.periods {
		if p.Name == fallbackPeriod {
			return p
		}
	}
	// No afternoon configured either; neutral defaults.
	return Period{Name: fallbackPeriod, IdealEnergy: 0.6, IdealValence: 0.6, Weight: 1.0}
}

// Context returns the full time context for an hour.
func (r *TimeResolver) Context(hour int) TimeContext {
	p := r.Resolve(hour)
	return TimeContext{
		Hour:         hour,
		Period:       p.Name,
		IdealEnergy:  p.IdealEnergy,
		IdealValence: p.IdealValence,
		Weight:       p.Weight,
		Description:  periodDescriptions[p.Name],
	}
}

// MatchScore computes how well a track's energy/valence fit the hour's ideal:
// 1 minus the average absolute difference, clamped to [0, 1].
func (r *TimeResolver) MatchScore(f AudioFeatures, hour int) float64 {
	p := r.Resolve(hour)

	energyDiff := abs(f.Energy - p.IdealEnergy)
	valenceDiff := abs(f.Valence - p.IdealValence)
	similarity := 1 - (energyDiff+valenceDiff)/2

	return clamp01(similarity)
}

// AdjustScore folds the time match into a base score:
//
//	adjusted = (base*(2-weight) + match*weight) / 2
//
// At weight=1 base and match contribute equally; above 1 the time match
// dominates. At weight=0 the result degenerates to base/2; configuration
// validation rejects weight<=0 so production never hits that, but the
// formula is preserved exactly for compatibility (see the regression test).
func (r *TimeResolver) AdjustScore(base float64, f AudioFeatures, hour int) float64 {
	match := r.MatchScore(f, hour)
	weight := r.Resolve(hour).Weight

	return (base*(2-weight) + match*weight) / 2
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
