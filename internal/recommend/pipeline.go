// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/melodex/internal/metrics"
)

// CurateOptions controls the optional pipeline stages for one request.
type CurateOptions struct {
	TimeMatching bool
	Reranking    bool
	// Hour is the local hour used for time-of-day matching.
	Hour int
	// Limit caps the served count below the configured final count when
	// positive.
	Limit int

	// SessionContext is short-term session context (recent likes, queries,
	// temporary preferences) appended to the reranker query enrichment.
	SessionContext string
}

// CurateStats reports what the pipeline actually did, for response metadata.
type CurateStats struct {
	TotalCandidates int
	PrerankCount    int
	FinalCount      int
	Dropped         int
	RerankApplied   bool
	TimePeriod      string
}

// Pipeline ranks retrieved candidates into a final recommendation list.
//
// Stages run in a fixed order: collaborative scoring against the profile,
// optional time-of-day adjustment, truncation to the prerank pool, optional
// external reranking, and final truncation. Reranking is best-effort: a
// failed rerank call degrades to the pre-ranked order and the request still
// succeeds.
type Pipeline struct {
	cfg      Config
	resolver *TimeResolver
	reranker Reranker
	logger   zerolog.Logger
}

// NewPipeline builds a pipeline. The reranker may be nil, in which case the
// reranking stage is skipped regardless of options.
func NewPipeline(cfg Config, reranker Reranker, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		resolver: NewTimeResolver(cfg.Periods),
		reranker: reranker,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Curate runs the full ranking pipeline over candidates and returns the
// ordered recommendations, reasoning, and stage statistics.
func (p *Pipeline) Curate(ctx context.Context, query string, candidates []Candidate, profile *Profile, profileSummary string, opts CurateOptions) ([]Recommendation, Reasoning, CurateStats) {
	stats := CurateStats{TotalCandidates: len(candidates)}

	scored, dropped := p.scoreCandidates(candidates, profile)
	stats.Dropped = dropped

	if opts.TimeMatching {
		tc := p.resolver.Context(opts.Hour)
		stats.TimePeriod = tc.Period
		scored = p.adjustForTime(scored, tc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > p.cfg.PrerankCount {
		scored = scored[:p.cfg.PrerankCount]
	}
	stats.PrerankCount = len(scored)

	finalCount := p.cfg.FinalCount
	if opts.Limit > 0 && opts.Limit < finalCount {
		finalCount = opts.Limit
	}

	final := scored
	if opts.Reranking && p.reranker != nil && len(scored) > 0 {
		reranked, ok := p.rerank(ctx, query, joinContext(profileSummary, opts.SessionContext), scored, finalCount)
		if ok {
			final = reranked
			stats.RerankApplied = true
		}
	}
	if len(final) > finalCount {
		final = final[:finalCount]
	}
	stats.FinalCount = len(final)

	recs := make([]Recommendation, 0, len(final))
	for i, c := range final {
		recs = append(recs, Recommendation{
			Position:  i + 1,
			Candidate: c,
			Reasons:   trackReasons(c, opts),
		})
	}

	return recs, p.buildReasoning(query, profileSummary, opts, stats), stats
}

// scoreCandidates combines the retrieval score with profile match and genre
// preference using the configured weights. Malformed candidates are dropped
// individually so one bad record never voids the batch; the drop count is
// surfaced in response metadata.
func (p *Pipeline) scoreCandidates(candidates []Candidate, profile *Profile) ([]Candidate, int) {
	w := p.cfg.Weights

	dropped := 0
	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Track.ID == "" || c.Track.Title == "" {
			dropped++
			metrics.CandidatesDropped.Inc()
			p.logger.Debug().Str("track_id", c.Track.ID).Msg("Dropping malformed candidate")
			continue
		}
		c = c.Clone()

		semantic := c.Score
		profileScore := MatchScore(profile, c.Track.Features, c.Track.Genre, c.Track.Artist)
		genreScore := profile.GenrePreference(c.Track.Genre)

		combined := semantic*w.Semantic + profileScore*w.Preference + genreScore*w.Audio

		c = c.withScore(ScoreSemantic, semantic, false)
		c = c.withScore(ScoreProfile, profileScore, false)
		c = c.withScore(ScoreGenre, genreScore, false)
		c = c.withScore(ScoreCombined, combined, true)

		scored = append(scored, c)
	}
	return scored, dropped
}

// adjustForTime rescores each candidate toward the current period's ideal
// energy and valence, recording the original score alongside.
func (p *Pipeline) adjustForTime(candidates []Candidate, tc TimeContext) []Candidate {
	adjusted := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		c = c.withScore(ScoreOriginal, c.Score, false)
		c = c.withScore(ScoreTimeAdjusted, p.resolver.AdjustScore(c.Score, c.Track.Features, tc.Hour), true)
		c.TimePeriod = tc.Period
		adjusted = append(adjusted, c)
	}
	return adjusted
}

// rerank calls the external reranker over synthesized track documents. It
// returns ok=false when the call fails so the caller can fall back to the
// pre-ranked order.
func (p *Pipeline) rerank(ctx context.Context, query, profileSummary string, candidates []Candidate, topN int) ([]Candidate, bool) {
	documents := make([]string, 0, len(candidates))
	for _, c := range candidates {
		documents = append(documents, buildDocument(c.Track))
	}

	if topN > len(candidates) {
		topN = len(candidates)
	}

	results, err := p.reranker.Rerank(ctx, rerankQuery(query, profileSummary), documents, topN)
	if err != nil {
		metrics.RerankDegradations.Inc()
		p.logger.Warn().Err(err).Msg("Reranking failed, falling back to pre-ranked order")
		return nil, false
	}

	reranked := make([]Candidate, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			p.logger.Warn().Int("index", res.Index).Msg("Reranker returned out-of-range index, skipping")
			continue
		}
		c := candidates[res.Index].Clone()
		c = c.withScore(ScoreRerank, res.Score, false)
		reranked = append(reranked, c)
	}
	if len(reranked) == 0 {
		return nil, false
	}
	return reranked, true
}

func (p *Pipeline) buildReasoning(query, profileSummary string, opts CurateOptions, stats CurateStats) Reasoning {
	r := Reasoning{
		Query:          query,
		ProfileSummary: profileSummary,
	}
	if r.ProfileSummary == "" {
		r.ProfileSummary = "New user"
	}

	r.Steps = append(r.Steps,
		ReasoningStep{Step: "Semantic Retrieval", Description: "Retrieved candidates based on query relevance"},
		ReasoningStep{Step: "Collaborative Filtering", Description: "Scored candidates based on listener profile and preferences"},
	)
	if opts.TimeMatching {
		tc := p.resolver.Context(opts.Hour)
		r.Steps = append(r.Steps, ReasoningStep{
			Step:        "Time-of-Day Matching",
			Description: fmt.Sprintf("Adjusted for %s listening (%s)", tc.Period, tc.Description),
		})
	}
	if stats.RerankApplied {
		r.Steps = append(r.Steps, ReasoningStep{
			Step:        "Reranking",
			Description: "Optimized ordering using semantic reranking",
		})
	}
	return r
}

// trackReasons explains why a single track made the list. Thresholds mirror
// the score bands surfaced to listeners: anything below them is noise.
func trackReasons(c Candidate, opts CurateOptions) []string {
	var reasons []string

	if s, ok := c.Scores[ScoreSemantic]; ok && s > 0.7 {
		reasons = append(reasons, "High semantic match to query")
	}
	if s, ok := c.Scores[ScoreProfile]; ok && s > 0.7 {
		reasons = append(reasons, "Matches your taste profile")
	}
	if s, ok := c.Scores[ScoreGenre]; ok && s > 0.6 && c.Track.Genre != "" {
		reasons = append(reasons, fmt.Sprintf("You enjoy %s music", c.Track.Genre))
	}
	if opts.TimeMatching {
		orig, hasOrig := c.Scores[ScoreOriginal]
		adj, hasAdj := c.Scores[ScoreTimeAdjusted]
		if hasOrig && hasAdj && adj > orig && c.TimePeriod != "" {
			reasons = append(reasons, fmt.Sprintf("Good for %s listening", c.TimePeriod))
		}
	}
	if s, ok := c.Scores[ScoreRerank]; ok {
		reasons = append(reasons, fmt.Sprintf("Relevance score: %.2f", s))
	}

	if len(reasons) == 0 {
		reasons = []string{"Matches your query"}
	}
	return reasons
}

// buildDocument renders a track as prose for the reranker.
func buildDocument(t Track) string {
	f := t.Features

	var traits []string
	switch {
	case f.Energy > 0.7:
		traits = append(traits, "high energy")
	case f.Energy < 0.3:
		traits = append(traits, "low energy")
	default:
		traits = append(traits, "moderate energy")
	}
	switch {
	case f.Valence > 0.7:
		traits = append(traits, "positive/happy")
	case f.Valence < 0.3:
		traits = append(traits, "sad/melancholic")
	default:
		traits = append(traits, "neutral mood")
	}
	if f.Danceability > 0.7 {
		traits = append(traits, "very danceable")
	}
	if f.Acousticness > 0.7 {
		traits = append(traits, "acoustic")
	}
	if f.Instrumentalness > 0.5 {
		traits = append(traits, "mostly instrumental")
	}

	genre := t.Genre
	if genre == "" {
		genre = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Song: %s by %s. ", t.Title, t.Artist)
	fmt.Fprintf(&b, "Genre: %s. ", genre)
	fmt.Fprintf(&b, "Characteristics: %s. ", strings.Join(traits, ", "))
	if t.LyricsExcerpt != "" {
		fmt.Fprintf(&b, "Lyrics excerpt: %s", t.LyricsExcerpt)
	}
	return b.String()
}

// rerankQuery enriches the listener query with the profile summary so the
// reranker sees both.
func rerankQuery(query, profileSummary string) string {
	if profileSummary == "" {
		return query
	}
	return query + ". User preferences: " + profileSummary
}

// joinContext appends session context to the profile summary, tolerating
// either being empty.
func joinContext(profileSummary, sessionContext string) string {
	switch {
	case sessionContext == "":
		return profileSummary
	case profileSummary == "":
		return sessionContext
	default:
		return profileSummary + " " + sessionContext
	}
}
