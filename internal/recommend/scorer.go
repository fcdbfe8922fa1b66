// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

// MatchScore computes how well a track matches a user's long-term profile,
// in [0, 1]. It averages whichever of the genre, feature, and artist
// contributions are computable; a brand-new profile with nothing to compare
// against yields the neutral 0.5.
//
// Contributions:
//   - genre: the profile's weight for the track's genre (0.5 for unseen
//     genres), included only when the profile has genre preferences at all.
//   - features: per-feature similarity max(0, 1 - |value-mean|/(2*std)),
//     averaged over features present in both the track and the profile.
//     When std == 0 the similarity is 1 on an exact match, else 0.5.
//   - artist: 1 for a liked artist, 0 for a disliked one; unknown artists
//     contribute nothing (neither bonus nor penalty).
func MatchScore(p *Profile, f AudioFeatures, genre, artist string) float64 {
	var scores []float64

	if genre != "" && len(p.GenrePreferences) > 0 {
		scores = append(scores, p.GenrePreference(genre))
	}

	if len(p.FeaturePreferences) > 0 {
		var featureScores []float64
		for name, value := range f.Named() {
			stats, ok := p.FeaturePreferences[name]
			if !ok {
				continue
			}

			var score float64
			if stats.Std > 0 {
				distance := abs(value-stats.Mean) / (2 * stats.Std)
				score = 1 - distance
				if score < 0 {
					score = 0
				}
			} else if value == stats.Mean {
				score = 1.0
			} else {
				score = 0.5
			}
			featureScores = append(featureScores, score)
		}
		if len(featureScores) > 0 {
			scores = append(scores, mean(featureScores))
		}
	}

	if artist != "" {
		if p.ArtistLiked(artist) {
			scores = append(scores, 1.0)
		} else if p.ArtistDisliked(artist) {
			scores = append(scores, 0.0)
		}
	}

	if len(scores) == 0 {
		return 0.5
	}
	return mean(scores)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
