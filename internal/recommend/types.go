// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"context"
	"time"
)

// InteractionKind classifies user-item feedback events.
type InteractionKind string

const (
	// KindLike is an explicit positive signal.
	KindLike InteractionKind = "like"
	// KindDislike is an explicit negative signal.
	KindDislike InteractionKind = "dislike"
	// KindPlay is an implicit positive signal (the user played the track).
	KindPlay InteractionKind = "play"
	// KindSave is an implicit positive signal (the user saved the track).
	KindSave InteractionKind = "save"
	// KindSkip is neutral: skips are deliberately NOT treated as dislikes
	// to avoid over-penalizing exploratory listening.
	KindSkip InteractionKind = "skip"
	// KindRate carries an explicit 1-5 star rating.
	KindRate InteractionKind = "rate"
	// KindView is neutral (the user looked at the track).
	KindView InteractionKind = "view"
)

// Valid reports whether k is one of the closed set of interaction kinds.
func (k InteractionKind) Valid() bool {
	switch k {
	case KindLike, KindDislike, KindPlay, KindSave, KindSkip, KindRate, KindView:
		return true
	default:
		return false
	}
}

// AudioFeatures is the fixed-shape audio feature vector attached to every
// track. Fields absent from upstream data are filled with the defaults from
// DefaultAudioFeatures at the retrieval boundary, so pipeline stages never
// see a partially-populated vector.
type AudioFeatures struct {
	// Energy is perceived intensity (0-1). Default 0.5.
	Energy float64 `json:"energy"`

	// Valence is musical positiveness (0-1). Default 0.5.
	Valence float64 `json:"valence"`

	// Danceability (0-1). Default 0.5.
	Danceability float64 `json:"danceability"`

	// Acousticness (0-1). Default 0.5.
	Acousticness float64 `json:"acousticness"`

	// Instrumentalness (0-1). Default 0.5.
	Instrumentalness float64 `json:"instrumentalness"`

	// Speechiness (0-1). Default 0.5.
	Speechiness float64 `json:"speechiness"`

	// Liveness (0-1). Default 0.5.
	Liveness float64 `json:"liveness"`

	// Tempo in BPM. Default 120.
	Tempo float64 `json:"tempo"`

	// Loudness in dB (typically negative). Default -10.
	Loudness float64 `json:"loudness"`

	// Key is the pitch class (0-11). Default 0.
	Key int `json:"key"`

	// Mode is modality: 1 major, 0 minor. Default 1.
	Mode int `json:"mode"`

	// TimeSignature is beats per bar. Default 4.
	TimeSignature int `json:"time_signature"`
}

// DefaultAudioFeatures returns the documented defaults for absent fields.
func DefaultAudioFeatures() AudioFeatures {
	return AudioFeatures{
		Energy:           0.5,
		Valence:          0.5,
		Danceability:     0.5,
		Acousticness:     0.5,
		Instrumentalness: 0.5,
		Speechiness:      0.5,
		Liveness:         0.5,
		Tempo:            120,
		Loudness:         -10,
		Key:              0,
		Mode:             1,
		TimeSignature:    4,
	}
}

// Named returns the unit-interval features plus tempo and loudness as a map
// keyed by feature name. This is the shape profile feature preferences are
// aggregated and matched over.
func (f AudioFeatures) Named() map[string]float64 {
	return map[string]float64{
		"energy":           f.Energy,
		"valence":          f.Valence,
		"danceability":     f.Danceability,
		"acousticness":     f.Acousticness,
		"instrumentalness": f.Instrumentalness,
		"speechiness":      f.Speechiness,
		"tempo":            f.Tempo,
		"loudness":         f.Loudness,
	}
}

// Track is catalog item metadata.
type Track struct {
	// ID is the unique catalog identifier.
	ID string `json:"id"`

	// Title is the track title.
	Title string `json:"title"`

	// Artist is the primary artist name.
	Artist string `json:"artist"`

	// Genre is the single genre label assigned by the catalog.
	Genre string `json:"genre"`

	// Features is the audio feature vector.
	Features AudioFeatures `json:"features"`

	// LyricsExcerpt is an optional short lyrics fragment used for
	// reranker document synthesis.
	LyricsExcerpt string `json:"lyrics_excerpt,omitempty"`
}

// Score breakdown keys accumulated as a candidate moves through the pipeline.
const (
	// ScoreSemantic is the retrieval similarity score.
	ScoreSemantic = "semantic"
	// ScoreProfile is the profile-match score.
	ScoreProfile = "profile"
	// ScoreGenre is the profile's genre weight alone.
	ScoreGenre = "genre"
	// ScoreCombined is the linear blend of semantic/preference/genre.
	ScoreCombined = "combined"
	// ScoreOriginal is the pre-time-adjustment score.
	ScoreOriginal = "original"
	// ScoreTimeAdjusted is the score after time-of-day adjustment.
	ScoreTimeAdjusted = "time_adjusted"
	// ScoreRerank is the external reranker's relevance score.
	ScoreRerank = "rerank"
)

// Candidate is a catalog item under active scoring consideration for one
// request. Candidates are never mutated in place: each pipeline stage clones
// its input and returns new values, so stages are testable in isolation and
// share no aliasing.
type Candidate struct {
	// Track is the catalog item metadata.
	Track Track `json:"track"`

	// Score is the current working score (0-1, higher is better) as of the
	// latest completed pipeline stage.
	Score float64 `json:"score"`

	// Scores is a breakdown keyed by the Score* constants. Key presence
	// records which stages touched the candidate.
	Scores map[string]float64 `json:"scores,omitempty"`

	// TimePeriod is set when time-of-day adjustment was applied.
	TimePeriod string `json:"time_period,omitempty"`
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	out := c
	if c.Scores != nil {
		out.Scores = make(map[string]float64, len(c.Scores)+2)
		for k, v := range c.Scores {
			out.Scores[k] = v
		}
	}
	return out
}

// withScore returns a clone with the named score recorded and, when current
// is true, the working score replaced.
func (c Candidate) withScore(name string, value float64, current bool) Candidate {
	out := c.Clone()
	if out.Scores == nil {
		out.Scores = make(map[string]float64, 4)
	}
	out.Scores[name] = value
	if current {
		out.Score = value
	}
	return out
}

// FeatureStats summarizes the distribution of one audio feature over a
// user's liked tracks.
type FeatureStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// TimePattern is the average liked-track feature subset for one time period.
type TimePattern struct {
	AvgEnergy       float64 `json:"avg_energy"`
	AvgValence      float64 `json:"avg_valence"`
	AvgDanceability float64 `json:"avg_danceability"`
	Count           int     `json:"count"`
}

// Profile is one user's persisted long-term preference aggregate. It is
// recomputed wholesale from the complete interaction history, never blended
// incrementally, which keeps recomputation a pure function of history.
//
// Invariant: GenrePreferences values are non-negative and sum to 1 (±1e-6),
// or the map is empty for a profile with zero positive signal.
type Profile struct {
	UserID string `json:"user_id"`

	// GenrePreferences maps genre name to a normalized non-negative weight.
	GenrePreferences map[string]float64 `json:"genre_preferences"`

	// FeaturePreferences maps feature name to liked-track distribution stats.
	FeaturePreferences map[string]FeatureStats `json:"feature_preferences"`

	// LikedArtists requires at least 2 independent likes per artist, is
	// ordered by like frequency, and is capped at 50 entries.
	LikedArtists []string `json:"liked_artists"`

	// DislikedArtists follows the same >=2 rule, capped at 20 entries.
	DislikedArtists []string `json:"disliked_artists"`

	// TimePatterns maps time-period name to average liked features.
	TimePatterns map[string]TimePattern `json:"time_patterns"`

	// TotalInteractions is the history size at the last recompute.
	TotalInteractions int `json:"total_interactions"`

	// UpdatedAt is when the profile was last recomputed.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile returns an empty profile for a user with no history. Every
// scorer treats an empty profile as neutral rather than an error.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:             userID,
		GenrePreferences:   map[string]float64{},
		FeaturePreferences: map[string]FeatureStats{},
		TimePatterns:       map[string]TimePattern{},
	}
}

// GenrePreference returns the weight for a genre, or the neutral 0.5 default
// for genres the profile has never observed.
func (p *Profile) GenrePreference(genre string) float64 {
	if w, ok := p.GenrePreferences[genre]; ok {
		return w
	}
	return 0.5
}

// ArtistLiked reports whether the artist is in the liked list.
func (p *Profile) ArtistLiked(artist string) bool {
	for _, a := range p.LikedArtists {
		if a == artist {
			return true
		}
	}
	return false
}

// ArtistDisliked reports whether the artist is in the disliked list.
func (p *Profile) ArtistDisliked(artist string) bool {
	for _, a := range p.DislikedArtists {
		if a == artist {
			return true
		}
	}
	return false
}

// Interaction is an immutable feedback event. Interactions are append-only
// and are the only input that mutates a user profile.
type Interaction struct {
	// ID is the idempotency key. Appending an existing ID is a no-op.
	ID string `json:"id"`

	UserID  string          `json:"user_id"`
	TrackID string          `json:"track_id"`
	Kind    InteractionKind `json:"kind"`

	// SessionID optionally ties the event to a session so short-term
	// context stays current alongside the long-term profile.
	SessionID string `json:"session_id,omitempty"`

	// Rating is an optional 1-5 rating; 0 means unrated.
	Rating int `json:"rating,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Liked reports whether the event counts as a positive signal for profile
// aggregation: rating >= 4 OR kind in {like, play, save}. Play counts as an
// implicit positive with no negative counterpart (skip stays neutral).
func (i Interaction) Liked() bool {
	if i.Rating >= 4 {
		return true
	}
	return i.Kind == KindLike || i.Kind == KindPlay || i.Kind == KindSave
}

// Disliked reports whether the event counts as a negative signal:
// rating in [1,2] OR kind == dislike.
func (i Interaction) Disliked() bool {
	if i.Rating >= 1 && i.Rating <= 2 {
		return true
	}
	return i.Kind == KindDislike
}

// QueryRecord is one remembered query within a session.
type QueryRecord struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationTurn is one remembered conversation exchange within a session.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session state caps. Queries and conversation turns use fixed caps; the
// interaction window is configurable.
const (
	maxSessionQueries = 10
	maxSessionTurns   = 20
)

// SessionState is short-term per-(user, session) context. It is persisted
// opportunistically and logically expires with the session; no hard TTL is
// enforced here (UpdatedAt lets the surrounding system expire stale records).
type SessionState struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	RecentQueries      []QueryRecord      `json:"recent_queries"`
	RecentInteractions []Interaction      `json:"recent_interactions"`
	Conversation       []ConversationTurn `json:"conversation"`

	// TempPreferences are free-form overrides valid only for this session.
	TempPreferences map[string]any `json:"temp_preferences,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState creates empty session state.
func NewSessionState(userID, sessionID string) *SessionState {
	return &SessionState{
		SessionID:       sessionID,
		UserID:          userID,
		TempPreferences: map[string]any{},
	}
}

// AddQuery records a query, evicting the oldest beyond the cap.
func (s *SessionState) AddQuery(query string, at time.Time) {
	s.RecentQueries = append(s.RecentQueries, QueryRecord{Query: query, Timestamp: at})
	if len(s.RecentQueries) > maxSessionQueries {
		s.RecentQueries = s.RecentQueries[len(s.RecentQueries)-maxSessionQueries:]
	}
}

// AddInteraction records an interaction, keeping the most recent window.
func (s *SessionState) AddInteraction(in Interaction, window int) {
	if window <= 0 {
		window = 20
	}
	s.RecentInteractions = append(s.RecentInteractions, in)
	if len(s.RecentInteractions) > window {
		s.RecentInteractions = s.RecentInteractions[len(s.RecentInteractions)-window:]
	}
}

// AddTurn records a conversation turn, evicting the oldest beyond the cap.
func (s *SessionState) AddTurn(role, content string, at time.Time) {
	s.Conversation = append(s.Conversation, ConversationTurn{Role: role, Content: content, Timestamp: at})
	if len(s.Conversation) > maxSessionTurns {
		s.Conversation = s.Conversation[len(s.Conversation)-maxSessionTurns:]
	}
}

// ContextualPreferences extracts a summary of recent session behavior:
// recently-liked count, recent query context, and temporary overrides.
func (s *SessionState) ContextualPreferences() map[string]any {
	prefs := map[string]any{}

	liked := 0
	for _, in := range s.RecentInteractions {
		if in.Rating >= 4 {
			liked++
		}
	}
	if liked > 0 {
		prefs["recently_liked_count"] = liked
	}

	if n := len(s.RecentQueries); n > 0 {
		start := n - 3
		if start < 0 {
			start = 0
		}
		ctx := ""
		for i, q := range s.RecentQueries[start:] {
			if i > 0 {
				ctx += " "
			}
			ctx += q.Query
		}
		prefs["recent_query_context"] = ctx
	}

	for k, v := range s.TempPreferences {
		prefs[k] = v
	}

	return prefs
}

// HistoryRecord is one served recommendation response, kept for audit and
// the user-facing history endpoint.
type HistoryRecord struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	TrackIDs  []string  `json:"track_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// Request is a recommendation request.
type Request struct {
	// UserID identifies the user; required.
	UserID string `json:"user_id"`

	// Query is the free-text query; required.
	Query string `json:"query"`

	// SessionID groups requests; generated when empty.
	SessionID string `json:"session_id,omitempty"`

	// GenreFilter restricts retrieval to one genre when set.
	GenreFilter string `json:"genre_filter,omitempty"`

	// Limit caps the served result count below the configured final count.
	// Zero means the configured default.
	Limit int `json:"limit,omitempty"`

	// EnableTimeMatching folds time-of-day adjustment into scoring.
	EnableTimeMatching bool `json:"enable_time_matching"`

	// EnableReranking submits the prerank shortlist to the external reranker.
	EnableReranking bool `json:"enable_reranking"`

	// RequestID is a unique identifier for tracing; generated when empty.
	RequestID string `json:"request_id,omitempty"`
}

// Recommendation is one final ranked item with its explanation.
type Recommendation struct {
	Position  int      `json:"position"`
	Candidate `json:"candidate"`
	Reasons   []string `json:"reasons"`
}

// ReasoningStep describes one pipeline stage in the response reasoning.
type ReasoningStep struct {
	Step        string `json:"step"`
	Description string `json:"description"`
}

// Reasoning is the structured explanation attached to a response.
type Reasoning struct {
	Query          string          `json:"query"`
	ProfileSummary string          `json:"profile_summary"`
	Steps          []ReasoningStep `json:"steps"`
}

// ResponseMetadata carries pipeline diagnostics for observability.
type ResponseMetadata struct {
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`

	// TotalCandidates is the retrieval pool size before any stage ran.
	TotalCandidates int `json:"total_candidates"`

	// PrerankCount is the shortlist size after truncation.
	PrerankCount int `json:"prerank_count"`

	// FinalCount is the served result count.
	FinalCount int `json:"final_count"`

	// Dropped is the number of malformed candidates discarded during scoring.
	Dropped int `json:"dropped,omitempty"`

	TimeMatchingEnabled bool `json:"time_matching_enabled"`
	RerankingEnabled    bool `json:"reranking_enabled"`

	// RerankApplied is false when reranking was disabled or degraded to
	// score-order truncation after a reranker failure.
	RerankApplied bool `json:"rerank_applied"`

	// TimePeriod is the resolved period when time matching ran.
	TimePeriod string `json:"time_period,omitempty"`

	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is the result of one recommendation request.
type Response struct {
	// Success is false only when no candidates could be retrieved.
	Success bool `json:"success"`

	// Message explains an unsuccessful response.
	Message string `json:"message,omitempty"`

	Recommendations []Recommendation `json:"recommendations"`
	Reasoning       Reasoning        `json:"reasoning"`
	Metadata        ResponseMetadata `json:"metadata"`

	// Evaluation is the advisory quality report. It never alters ranking.
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// RerankResult is one entry of an external reranker response: the index into
// the submitted document list plus the relevance score.
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// Retriever is the semantic retrieval collaborator: black-box vector search
// returning scored candidates for a text query, optionally genre-filtered.
type Retriever interface {
	Search(ctx context.Context, query string, limit int, genreFilter string) ([]Candidate, error)
}

// Reranker is the external reranking collaborator. Implementations call a
// remote cross-encoder service; on error the pipeline degrades to truncation,
// so failures must be returned, never swallowed.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// Summarizer produces a natural-language profile summary. Implementations
// may call an LLM; errors degrade to the deterministic summary text.
type Summarizer interface {
	Summarize(ctx context.Context, profile *Profile) (string, error)
}

// Store is the profile store collaborator. Implemented by the badger-backed
// profilestore package and by in-memory fakes in tests.
type Store interface {
	// GetProfile returns the stored profile, or (nil, nil) for an unknown
	// user; callers substitute NewProfile.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	PutProfile(ctx context.Context, profile *Profile) error

	// GetSession returns stored session state, or (nil, nil) when absent.
	GetSession(ctx context.Context, userID, sessionID string) (*SessionState, error)
	PutSession(ctx context.Context, state *SessionState) error

	// AppendInteraction stores the event and reports whether it was new.
	// Re-appending an existing event ID returns (false, nil).
	AppendInteraction(ctx context.Context, in Interaction) (bool, error)

	// GetInteractions returns the user's events oldest-first. limit <= 0
	// returns the full history.
	GetInteractions(ctx context.Context, userID string, limit int) ([]Interaction, error)

	// CountInteractions returns the user's total event count.
	CountInteractions(ctx context.Context, userID string) (int, error)

	// PutTracks upserts track metadata observed in served responses so
	// profile recomputation can join events back to genre/artist/features.
	PutTracks(ctx context.Context, tracks []Track) error
	GetTrack(ctx context.Context, trackID string) (Track, bool, error)

	AppendHistory(ctx context.Context, rec HistoryRecord) error
	GetHistory(ctx context.Context, userID string, limit int) ([]HistoryRecord, error)
}

// Publisher delivers interaction events to the feedback bus.
type Publisher interface {
	PublishInteraction(ctx context.Context, in Interaction) error
}
