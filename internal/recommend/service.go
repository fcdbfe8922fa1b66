// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/melodex/internal/cache"
	"github.com/tomtom215/melodex/internal/metrics"
)

// Summary cache bounds. Summaries are invalidated on profile recompute, so
// the TTL only caps staleness for users whose profile never changes.
const (
	summaryCacheSize = 10000
	summaryCacheTTL  = 10 * time.Minute
)

// Validation errors returned before any pipeline stage runs.
var (
	ErrMissingUserID  = errors.New("user_id is required")
	ErrMissingQuery   = errors.New("query is required")
	ErrMissingTrackID = errors.New("track_id is required")
	ErrInvalidKind    = errors.New("invalid interaction kind")
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrRatingRequired = errors.New("rate interactions require a rating")
)

// Service orchestrates the full recommendation flow: retrieval, the ranking
// pipeline, quality evaluation, persistence, and feedback-driven profile
// recomputation.
type Service struct {
	cfg        Config
	store      Store
	retriever  Retriever
	pipeline   *Pipeline
	summarizer Summarizer
	publisher  Publisher
	resolver   *TimeResolver
	summaries  *cache.LRU[string]
	logger     zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewService wires a service. summarizer and publisher are optional: without
// a summarizer profile summaries are deterministic, and without a publisher
// feedback is processed synchronously.
func NewService(cfg Config, store Store, retriever Retriever, reranker Reranker, summarizer Summarizer, publisher Publisher, logger zerolog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		store:      store,
		retriever:  retriever,
		pipeline:   NewPipeline(cfg, reranker, logger),
		summarizer: summarizer,
		publisher:  publisher,
		resolver:   NewTimeResolver(cfg.Periods),
		summaries:  cache.NewLRU[string](summaryCacheSize, summaryCacheTTL),
		logger:     logger.With().Str("component", "recommend").Logger(),
		now:        time.Now,
	}
}

// Recommend serves one recommendation request end to end.
//
// Retrieval failure or an empty candidate pool yields a Success=false
// response rather than an error: the collaborator being down is an expected
// condition, not a server fault. Persistence failures after ranking are
// logged and do not void the response.
func (s *Service) Recommend(ctx context.Context, req Request) (*Response, error) {
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}
	if req.Query == "" {
		return nil, ErrMissingQuery
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	start := s.now()
	log := s.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Logger()

	profile, err := s.loadProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	summary := s.summarize(ctx, profile)

	candidates, err := s.retriever.Search(ctx, req.Query, s.cfg.CandidateCount, req.GenreFilter)
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues("retrieval_failed").Inc()
		log.Error().Err(err).Msg("Candidate retrieval failed")
		return s.emptyResponse(req, start, "Candidate retrieval is temporarily unavailable"), nil
	}
	if len(candidates) == 0 {
		metrics.RecommendationRequests.WithLabelValues("empty").Inc()
		log.Info().Msg("No candidates found for query")
		return s.emptyResponse(req, start, "No tracks matched your query"), nil
	}

	opts := CurateOptions{
		TimeMatching:   req.EnableTimeMatching,
		Reranking:      req.EnableReranking,
		Hour:           start.Hour(),
		Limit:          req.Limit,
		SessionContext: s.sessionContext(ctx, req.UserID, req.SessionID),
	}
	recs, reasoning, stats := s.pipeline.Curate(ctx, req.Query, candidates, profile, summary, opts)

	resp := &Response{
		Success:         true,
		Recommendations: recs,
		Reasoning:       reasoning,
		Evaluation:      Evaluate(recs, profile),
		Metadata: ResponseMetadata{
			RequestID:           req.RequestID,
			SessionID:           req.SessionID,
			TotalCandidates:     stats.TotalCandidates,
			PrerankCount:        stats.PrerankCount,
			FinalCount:          stats.FinalCount,
			Dropped:             stats.Dropped,
			TimeMatchingEnabled: req.EnableTimeMatching,
			RerankingEnabled:    req.EnableReranking,
			RerankApplied:       stats.RerankApplied,
			TimePeriod:          stats.TimePeriod,
			LatencyMS:           s.now().Sub(start).Milliseconds(),
			Timestamp:           start.UTC(),
		},
	}

	s.persistServed(ctx, req, recs, start, log)

	metrics.RecommendationRequests.WithLabelValues("ok").Inc()
	metrics.PipelineDuration.Observe(s.now().Sub(start).Seconds())
	log.Info().
		Int("candidates", stats.TotalCandidates).
		Int("final", stats.FinalCount).
		Bool("rerank_applied", stats.RerankApplied).
		Int64("latency_ms", resp.Metadata.LatencyMS).
		Msg("Served recommendations")

	return resp, nil
}

// RecordFeedback validates an interaction and hands it to the feedback bus,
// or processes it inline when no publisher is configured.
func (s *Service) RecordFeedback(ctx context.Context, in Interaction) error {
	if in.UserID == "" {
		return ErrMissingUserID
	}
	if in.TrackID == "" {
		return ErrMissingTrackID
	}
	if !in.Kind.Valid() {
		return ErrInvalidKind
	}
	if in.Kind == KindRate && in.Rating == 0 {
		return ErrRatingRequired
	}
	if in.Rating < 0 || in.Rating > 5 {
		return ErrInvalidRating
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now().UTC()
	}

	if s.publisher != nil {
		return s.publisher.PublishInteraction(ctx, in)
	}
	return s.ProcessInteraction(ctx, in)
}

// ProcessInteraction applies one feedback event: it appends the event to the
// history (idempotently), updates session state, and recomputes the profile
// wholesale once UpdateThreshold events have accumulated since the stored
// snapshot; a user with history but no profile yet gets one immediately.
// Redelivery of an already-seen event ID is a no-op.
func (s *Service) ProcessInteraction(ctx context.Context, in Interaction) error {
	fresh, err := s.store.AppendInteraction(ctx, in)
	if err != nil {
		return fmt.Errorf("appending interaction: %w", err)
	}
	if !fresh {
		s.logger.Debug().Str("event_id", in.ID).Msg("Duplicate interaction, skipping")
		return nil
	}
	metrics.FeedbackEvents.WithLabelValues(string(in.Kind)).Inc()

	if in.SessionID != "" {
		s.updateSession(ctx, in)
	}

	count, err := s.store.CountInteractions(ctx, in.UserID)
	if err != nil {
		return fmt.Errorf("counting interactions: %w", err)
	}
	profile, err := s.store.GetProfile(ctx, in.UserID)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	// Gate on events since the stored snapshot, not on the running total: a
	// forced or failed recompute must not shift the cadence. The snapshot's
	// TotalInteractions records where the last rebuild left off.
	if profile != nil && profile.TotalInteractions > 0 &&
		count-profile.TotalInteractions < s.cfg.UpdateThreshold {
		return nil
	}
	return s.recomputeProfile(ctx, in.UserID)
}

// RecomputeProfile forces a wholesale profile rebuild from the complete
// interaction history, regardless of the update threshold.
func (s *Service) RecomputeProfile(ctx context.Context, userID string) error {
	return s.recomputeProfile(ctx, userID)
}

// Profile returns the stored profile (a fresh empty one for unknown users)
// with its summary text.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, string, error) {
	if userID == "" {
		return nil, "", ErrMissingUserID
	}
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return profile, s.summarize(ctx, profile), nil
}

// History returns the user's most recent served recommendations.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]HistoryRecord, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	return s.store.GetHistory(ctx, userID, limit)
}

func (s *Service) loadProfile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = NewProfile(userID)
	}
	return profile, nil
}

// summarize prefers the configured Summarizer and falls back to the
// deterministic text on any failure. LLM summaries are cached per user and
// invalidated on profile recompute; deterministic fallbacks are cheap enough
// to rebuild each time and are never cached.
func (s *Service) summarize(ctx context.Context, profile *Profile) string {
	fallback := SummarizeProfile(profile)
	if s.summarizer == nil || profile.TotalInteractions == 0 {
		return fallback
	}
	if cached, ok := s.summaries.Get(profile.UserID); ok {
		return cached
	}
	summary, err := s.summarizer.Summarize(ctx, profile)
	if err != nil || summary == "" {
		if err != nil {
			metrics.SummarizerFallbacks.Inc()
			s.logger.Warn().Err(err).Msg("Profile summarization failed, using deterministic summary")
		}
		return fallback
	}
	s.summaries.Add(profile.UserID, summary)
	return summary
}

func (s *Service) emptyResponse(req Request, start time.Time, message string) *Response {
	return &Response{
		Success:         false,
		Message:         message,
		Recommendations: []Recommendation{},
		Metadata: ResponseMetadata{
			RequestID:           req.RequestID,
			SessionID:           req.SessionID,
			TimeMatchingEnabled: req.EnableTimeMatching,
			RerankingEnabled:    req.EnableReranking,
			LatencyMS:           s.now().Sub(start).Milliseconds(),
			Timestamp:           start.UTC(),
		},
	}
}

// persistServed records the side effects of a served response: track
// metadata for later profile recomputation, the history record, and the
// session query and conversation logs. Failures here are logged, not
// returned.
func (s *Service) persistServed(ctx context.Context, req Request, recs []Recommendation, at time.Time, log zerolog.Logger) {
	tracks := make([]Track, 0, len(recs))
	trackIDs := make([]string, 0, len(recs))
	for _, r := range recs {
		tracks = append(tracks, r.Track)
		trackIDs = append(trackIDs, r.Track.ID)
	}

	if err := s.store.PutTracks(ctx, tracks); err != nil {
		log.Error().Err(err).Msg("Failed to persist track metadata")
	}
	if err := s.store.AppendHistory(ctx, HistoryRecord{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Query:     req.Query,
		TrackIDs:  trackIDs,
		Timestamp: at.UTC(),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to persist history record")
	}

	session, err := s.store.GetSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load session state")
		return
	}
	if session == nil {
		session = NewSessionState(req.UserID, req.SessionID)
	}
	session.AddQuery(req.Query, at.UTC())
	session.AddTurn("user", req.Query, at.UTC())
	session.AddTurn("assistant", servedTitles(recs), at.UTC())
	if err := s.store.PutSession(ctx, session); err != nil {
		log.Error().Err(err).Msg("Failed to persist session state")
	}
}

// servedTitles renders the served tracks as "Title by Artist" lines for the
// assistant side of the conversation log.
func servedTitles(recs []Recommendation) string {
	titles := make([]string, 0, len(recs))
	for _, r := range recs {
		titles = append(titles, r.Track.Title+" by "+r.Track.Artist)
	}
	return "Recommended: " + strings.Join(titles, "; ")
}

// sessionContext renders recent session behavior (likes, queries, temporary
// overrides) for reranker query enrichment. Unknown or failing sessions
// contribute nothing.
func (s *Service) sessionContext(ctx context.Context, userID, sessionID string) string {
	session, err := s.store.GetSession(ctx, userID, sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load session state for context")
		return ""
	}
	if session == nil {
		return ""
	}
	return SummarizeSession(session.ContextualPreferences())
}

func (s *Service) updateSession(ctx context.Context, in Interaction) {
	session, err := s.store.GetSession(ctx, in.UserID, in.SessionID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load session state for interaction")
		return
	}
	if session == nil {
		session = NewSessionState(in.UserID, in.SessionID)
	}
	session.AddInteraction(in, s.cfg.SessionWindow)
	if err := s.store.PutSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session state for interaction")
	}
}

// recomputeProfile rebuilds the profile from the full event history, joining
// each event to stored track metadata. Events whose track is unknown still
// count but contribute no aggregates, mirroring how partial catalogs behave.
func (s *Service) recomputeProfile(ctx context.Context, userID string) error {
	history, err := s.store.GetInteractions(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("loading interaction history: %w", err)
	}

	tracks := make(map[string]Track, len(history))
	for _, in := range history {
		if _, ok := tracks[in.TrackID]; ok {
			continue
		}
		t, found, err := s.store.GetTrack(ctx, in.TrackID)
		if err != nil {
			return fmt.Errorf("loading track %s: %w", in.TrackID, err)
		}
		if found {
			tracks[in.TrackID] = t
		}
	}

	profile := BuildProfile(userID, history, tracks, s.resolver, s.now().UTC())
	if err := s.store.PutProfile(ctx, profile); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}

	s.summaries.Remove(userID)
	metrics.ProfileRecomputes.Inc()
	s.logger.Info().
		Str("user_id", userID).
		Int("interactions", profile.TotalInteractions).
		Int("genres", len(profile.GenrePreferences)).
		Msg("Recomputed listener profile")
	return nil
}
