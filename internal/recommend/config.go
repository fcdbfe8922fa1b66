// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"fmt"
)

// Weights defines the per-factor blend for the collaborative scoring stage.
// The weights must sum to at most 1. The defaults sum to 0.9: the remaining
// 0.1 belongs to time-of-day, which is applied as a separate adjustment stage
// rather than inside this linear combination. The weight vocabulary is shared
// system-wide but only a subset applies at the scoring stage.
type Weights struct {
	// Semantic is the retrieval similarity weight.
	Semantic float64 `json:"semantic" koanf:"semantic"`

	// Audio is the genre-affinity weight.
	Audio float64 `json:"audio" koanf:"audio"`

	// Preference is the profile-match weight.
	Preference float64 `json:"preference" koanf:"preference"`

	// TimeOfDay is reserved for the time adjustment stage and is not used
	// by the linear combination.
	TimeOfDay float64 `json:"time_of_day" koanf:"time_of_day"`
}

// Period configures one time-of-day period: an inclusive-start/exclusive-end
// hour range (start > end wraps across midnight), the ideal energy/valence
// pair, and a blend weight in (0, 1.5] controlling how strongly time-of-day
// influences scoring within the period.
type Period struct {
	Name         string  `json:"name" koanf:"name"`
	StartHour    int     `json:"start_hour" koanf:"start_hour"`
	EndHour      int     `json:"end_hour" koanf:"end_hour"`
	IdealEnergy  float64 `json:"ideal_energy" koanf:"ideal_energy"`
	IdealValence float64 `json:"ideal_valence" koanf:"ideal_valence"`
	Weight       float64 `json:"weight" koanf:"weight"`
}

// Config contains all tunables for the curation pipeline and profile updater.
type Config struct {
	// CandidateCount is the retrieval pool size.
	CandidateCount int `json:"candidate_count" koanf:"candidate_count"`

	// PrerankCount is the shortlist size handed to the external reranker.
	PrerankCount int `json:"prerank_count" koanf:"prerank_count"`

	// FinalCount is the served result size.
	FinalCount int `json:"final_count" koanf:"final_count"`

	// Weights blends semantic/genre/profile scores.
	Weights Weights `json:"weights" koanf:"weights"`

	// Periods is the time-of-day table. Ranges must not overlap; hours
	// matching no period fall back to "afternoon".
	Periods []Period `json:"periods" koanf:"periods"`

	// UpdateThreshold is the number of new interactions that triggers a
	// wholesale profile recompute.
	UpdateThreshold int `json:"update_threshold" koanf:"update_threshold"`

	// SessionWindow caps the per-session recent-interaction list.
	SessionWindow int `json:"session_window" koanf:"session_window"`
}

// DefaultConfig returns the production defaults. Night carries the heaviest
// blend weight, reflecting that listeners are most mood-sensitive at night.
func DefaultConfig() Config {
	return Config{
		CandidateCount: 50,
		PrerankCount:   30,
		FinalCount:     10,
		Weights: Weights{
			Semantic:   0.4,
			Audio:      0.3,
			Preference: 0.2,
			TimeOfDay:  0.1,
		},
		Periods: []Period{
			{Name: "morning", StartHour: 5, EndHour: 12, IdealEnergy: 0.7, IdealValence: 0.8, Weight: 1.2},
			{Name: "afternoon", StartHour: 12, EndHour: 17, IdealEnergy: 0.6, IdealValence: 0.6, Weight: 1.0},
			{Name: "evening", StartHour: 17, EndHour: 22, IdealEnergy: 0.4, IdealValence: 0.5, Weight: 1.1},
			{Name: "night", StartHour: 22, EndHour: 5, IdealEnergy: 0.3, IdealValence: 0.4, Weight: 1.3},
		},
		UpdateThreshold: 5,
		SessionWindow:   20,
	}
}

// Validate checks configuration consistency. Configuration errors fail fast
// at startup, never per-request.
func (c *Config) Validate() error {
	if c.CandidateCount <= 0 {
		return fmt.Errorf("candidate_count must be positive, got %d", c.CandidateCount)
	}
	if c.PrerankCount <= 0 {
		return fmt.Errorf("prerank_count must be positive, got %d", c.PrerankCount)
	}
	if c.FinalCount <= 0 {
		return fmt.Errorf("final_count must be positive, got %d", c.FinalCount)
	}
	if c.FinalCount > c.PrerankCount {
		return fmt.Errorf("final_count %d exceeds prerank_count %d", c.FinalCount, c.PrerankCount)
	}
	if c.PrerankCount > c.CandidateCount {
		return fmt.Errorf("prerank_count %d exceeds candidate_count %d", c.PrerankCount, c.CandidateCount)
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"semantic", c.Weights.Semantic},
		{"audio", c.Weights.Audio},
		{"preference", c.Weights.Preference},
		{"time_of_day", c.Weights.TimeOfDay},
	} {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("weight %s must be in [0, 1], got %g", w.name, w.value)
		}
	}
	sum := c.Weights.Semantic + c.Weights.Audio + c.Weights.Preference
	if sum > 1.0+1e-9 {
		return fmt.Errorf("scoring weights sum to %g, must not exceed 1", sum)
	}

	if len(c.Periods) == 0 {
		return fmt.Errorf("at least one time period is required")
	}
	seen := make(map[string]bool, len(c.Periods))
	for _, p := range c.Periods {
		if p.Name == "" {
			return fmt.Errorf("time period with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate time period %q", p.Name)
		}
		seen[p.Name] = true
		if p.StartHour < 0 || p.StartHour > 23 {
			return fmt.Errorf("period %q: start_hour %d out of range [0, 23]", p.Name, p.StartHour)
		}
		if p.EndHour < 0 || p.EndHour > 24 {
			return fmt.Errorf("period %q: end_hour %d out of range [0, 24]", p.Name, p.EndHour)
		}
		// Weight 0 would degenerate the adjustment formula to base/2.
		if p.Weight <= 0 || p.Weight > 1.5 {
			return fmt.Errorf("period %q: weight %g out of range (0, 1.5]", p.Name, p.Weight)
		}
	}
	for h := 0; h < 24; h++ {
		matches := 0
		for _, p := range c.Periods {
			if hourInPeriod(h, p) {
				matches++
			}
		}
		if matches > 1 {
			return fmt.Errorf("hour %d matches %d overlapping periods", h, matches)
		}
	}

	if c.UpdateThreshold <= 0 {
		return fmt.Errorf("update_threshold must be positive, got %d", c.UpdateThreshold)
	}
	if c.SessionWindow <= 0 {
		return fmt.Errorf("session_window must be positive, got %d", c.SessionWindow)
	}

	return nil
}

// hourInPeriod implements inclusive-start/exclusive-end membership with
// wrap-around: start > end means the range crosses midnight.
func hourInPeriod(hour int, p Period) bool {
	if p.StartHour > p.EndHour {
		return hour >= p.StartHour || hour < p.EndHour
	}
	return hour >= p.StartHour && hour < p.EndHour
}
