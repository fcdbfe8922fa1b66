// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// memStore is an in-memory Store fake mirroring the badger-backed store's
// contract: idempotent appends, (nil, nil) for absent profiles.
type memStore struct {
	profiles     map[string]*Profile
	sessions     map[string]*SessionState
	interactions map[string][]Interaction
	seen         map[string]bool
	tracks       map[string]Track
	history      map[string][]HistoryRecord

	failGetProfile bool
}

func newMemStore() *memStore {
	return &memStore{
		profiles:     map[string]*Profile{},
		sessions:     map[string]*SessionState{},
		interactions: map[string][]Interaction{},
		seen:         map[string]bool{},
		tracks:       map[string]Track{},
		history:      map[string][]HistoryRecord{},
	}
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*Profile, error) {
	if m.failGetProfile {
		return nil, errors.New("store down")
	}
	return m.profiles[userID], nil
}

func (m *memStore) PutProfile(_ context.Context, profile *Profile) error {
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *memStore) GetSession(_ context.Context, userID, sessionID string) (*SessionState, error) {
	return m.sessions[userID+":"+sessionID], nil
}

func (m *memStore) PutSession(_ context.Context, state *SessionState) error {
	m.sessions[state.UserID+":"+state.SessionID] = state
	return nil
}

func (m *memStore) AppendInteraction(_ context.Context, in Interaction) (bool, error) {
	if m.seen[in.ID] {
		return false, nil
	}
	m.seen[in.ID] = true
	m.interactions[in.UserID] = append(m.interactions[in.UserID], in)
	return true, nil
}

func (m *memStore) GetInteractions(_ context.Context, userID string, limit int) ([]Interaction, error) {
	ins := m.interactions[userID]
	if limit > 0 && len(ins) > limit {
		ins = ins[:limit]
	}
	return ins, nil
}

func (m *memStore) CountInteractions(_ context.Context, userID string) (int, error) {
	return len(m.interactions[userID]), nil
}

func (m *memStore) PutTracks(_ context.Context, tracks []Track) error {
	for _, t := range tracks {
		if t.ID != "" {
			m.tracks[t.ID] = t
		}
	}
	return nil
}

func (m *memStore) GetTrack(_ context.Context, trackID string) (Track, bool, error) {
	t, ok := m.tracks[trackID]
	return t, ok, nil
}

func (m *memStore) AppendHistory(_ context.Context, rec HistoryRecord) error {
	m.history[rec.UserID] = append(m.history[rec.UserID], rec)
	return nil
}

func (m *memStore) GetHistory(_ context.Context, userID string, limit int) ([]HistoryRecord, error) {
	recs := m.history[userID]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

type fakeRetriever struct {
	candidates []Candidate
	err        error

	gotQuery string
	gotLimit int
	gotGenre string
}

func (f *fakeRetriever) Search(_ context.Context, query string, limit int, genreFilter string) ([]Candidate, error) {
	f.gotQuery = query
	f.gotLimit = limit
	f.gotGenre = genreFilter
	return f.candidates, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ *Profile) (string, error) {
	f.calls++
	return f.summary, f.err
}

type capturePublisher struct {
	published []Interaction
}

func (c *capturePublisher) PublishInteraction(_ context.Context, in Interaction) error {
	c.published = append(c.published, in)
	return nil
}

func newTestService(store Store, retriever Retriever, opts ...func(*Service)) *Service {
	svc := NewService(DefaultConfig(), store, retriever, nil, nil, nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) }
	for _, o := range opts {
		o(svc)
	}
	return svc
}

func TestService_Recommend_Validation(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeRetriever{})

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"missing user", Request{Query: "q"}, ErrMissingUserID},
		{"missing query", Request{UserID: "u1"}, ErrMissingQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Recommend(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Recommend() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Recommend_HappyPath(t *testing.T) {
	store := newMemStore()
	retriever := &fakeRetriever{candidates: []Candidate{
		testCandidate("t1", 0.9),
		testCandidate("t2", 0.4),
	}}
	svc := newTestService(store, retriever)

	resp, err := svc.Recommend(context.Background(), Request{
		UserID: "u1", Query: "happy songs", GenreFilter: "pop",
		EnableTimeMatching: true,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if !resp.Success {
		t.Error("Success = false, want true")
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(resp.Recommendations))
	}
	if resp.Metadata.RequestID == "" || resp.Metadata.SessionID == "" {
		t.Error("request or session ID not generated")
	}
	if resp.Metadata.TotalCandidates != 2 {
		t.Errorf("TotalCandidates = %d, want 2", resp.Metadata.TotalCandidates)
	}
	// 09:00 resolves to morning.
	if resp.Metadata.TimePeriod != "morning" {
		t.Errorf("TimePeriod = %q, want morning", resp.Metadata.TimePeriod)
	}
	if resp.Evaluation == nil {
		t.Error("Evaluation missing")
	}

	// Retrieval was asked for the configured pool.
	if retriever.gotLimit != 50 || retriever.gotGenre != "pop" {
		t.Errorf("retriever called with limit=%d genre=%q", retriever.gotLimit, retriever.gotGenre)
	}

	// Served tracks and history were persisted.
	if len(store.tracks) != 2 {
		t.Errorf("persisted %d tracks, want 2", len(store.tracks))
	}
	if len(store.history["u1"]) != 1 {
		t.Errorf("persisted %d history records, want 1", len(store.history["u1"]))
	}
	if len(store.sessions) != 1 {
		t.Errorf("persisted %d sessions, want 1", len(store.sessions))
	}
}

func TestService_Recommend_SessionContextEnrichesRerank(t *testing.T) {
	store := newMemStore()
	session := NewSessionState("u1", "s1")
	session.AddInteraction(Interaction{ID: "e1", UserID: "u1", TrackID: "t9", Kind: KindRate, Rating: 5}, 0)
	session.AddQuery("chill evening jazz", time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC))
	store.sessions["u1:s1"] = session

	fr := &fakeReranker{results: []RerankResult{{Index: 0, Score: 0.9}}}
	svc := newTestService(store, &fakeRetriever{candidates: []Candidate{testCandidate("t1", 0.8)}},
		func(s *Service) { s.pipeline = NewPipeline(DefaultConfig(), fr, zerolog.Nop()) })

	_, err := svc.Recommend(context.Background(), Request{
		UserID: "u1", SessionID: "s1", Query: "something mellow",
		EnableReranking: true,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	if !strings.Contains(fr.gotQuery, "Recently liked 1 tracks this session.") {
		t.Errorf("rerank query %q missing recent-like context", fr.gotQuery)
	}
	if !strings.Contains(fr.gotQuery, "Recent searches: chill evening jazz.") {
		t.Errorf("rerank query %q missing recent-search context", fr.gotQuery)
	}
}

func TestService_Recommend_RecordsConversationTurns(t *testing.T) {
	store := newMemStore()
	retriever := &fakeRetriever{candidates: []Candidate{
		{Track: Track{ID: "t1", Title: "Blue", Artist: "Miles", Genre: "jazz", Features: DefaultAudioFeatures()}, Score: 0.8},
	}}
	svc := newTestService(store, retriever)

	_, err := svc.Recommend(context.Background(), Request{UserID: "u1", SessionID: "s1", Query: "late night jazz"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	session := store.sessions["u1:s1"]
	if session == nil {
		t.Fatal("session not created")
	}
	if len(session.Conversation) != 2 {
		t.Fatalf("conversation turns = %d, want 2", len(session.Conversation))
	}
	if session.Conversation[0].Role != "user" || session.Conversation[0].Content != "late night jazz" {
		t.Errorf("user turn = %+v, want the request query", session.Conversation[0])
	}
	if session.Conversation[1].Role != "assistant" ||
		!strings.Contains(session.Conversation[1].Content, "Blue by Miles") {
		t.Errorf("assistant turn = %+v, want the served titles", session.Conversation[1])
	}
}

func TestService_Recommend_RetrievalFailure(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeRetriever{err: errors.New("connection refused")})

	resp, err := svc.Recommend(context.Background(), Request{UserID: "u1", Query: "q"})
	if err != nil {
		t.Fatalf("Recommend() error = %v, want graceful degradation", err)
	}
	if resp.Success {
		t.Error("Success = true after retrieval failure")
	}
	if resp.Message == "" {
		t.Error("Message empty on unsuccessful response")
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("got %d recommendations, want 0", len(resp.Recommendations))
	}
}

func TestService_Recommend_NoCandidates(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeRetriever{})

	resp, err := svc.Recommend(context.Background(), Request{UserID: "u1", Query: "q"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Success {
		t.Error("Success = true with no candidates")
	}
}

func TestService_Recommend_ProfileLoadFailure(t *testing.T) {
	store := newMemStore()
	store.failGetProfile = true
	svc := newTestService(store, &fakeRetriever{})

	_, err := svc.Recommend(context.Background(), Request{UserID: "u1", Query: "q"})
	if err == nil {
		t.Fatal("Recommend() = nil error, want store failure surfaced")
	}
}

func TestService_Recommend_UsesSummarizer(t *testing.T) {
	store := newMemStore()
	profile := NewProfile("u1")
	profile.TotalInteractions = 10
	store.profiles["u1"] = profile

	fs := &fakeSummarizer{summary: "An adventurous listener."}
	svc := newTestService(store, &fakeRetriever{candidates: []Candidate{testCandidate("t1", 0.5)}},
		func(s *Service) { s.summarizer = fs })

	resp, err := svc.Recommend(context.Background(), Request{UserID: "u1", Query: "q"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Reasoning.ProfileSummary != "An adventurous listener." {
		t.Errorf("ProfileSummary = %q", resp.Reasoning.ProfileSummary)
	}

	// Second request hits the summary cache.
	if _, err := svc.Recommend(context.Background(), Request{UserID: "u1", Query: "q"}); err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if fs.calls != 1 {
		t.Errorf("summarizer called %d times, want 1 (cached)", fs.calls)
	}
}

func TestService_Recommend_SummarizerFailureFallsBack(t *testing.T) {
	store := newMemStore()
	profile := NewProfile("u1")
	profile.TotalInteractions = 7
	store.profiles["u1"] = profile

	svc := newTestService(store, &fakeRetriever{candidates: []Candidate{testCandidate("t1", 0.5)}},
		func(s *Service) { s.summarizer = &fakeSummarizer{err: errors.New("llm down")} })

	resp, err := svc.Recommend(context.Background(), Request{UserID: "u1", Query: "q"})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if resp.Reasoning.ProfileSummary != SummarizeProfile(profile) {
		t.Errorf("ProfileSummary = %q, want deterministic fallback", resp.Reasoning.ProfileSummary)
	}
}

func TestService_RecordFeedback_Validation(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeRetriever{})

	tests := []struct {
		name    string
		in      Interaction
		wantErr error
	}{
		{"missing user", Interaction{TrackID: "t1", Kind: KindLike}, ErrMissingUserID},
		{"missing track", Interaction{UserID: "u1", Kind: KindLike}, ErrMissingTrackID},
		{"bad kind", Interaction{UserID: "u1", TrackID: "t1", Kind: "adore"}, ErrInvalidKind},
		{"rate without rating", Interaction{UserID: "u1", TrackID: "t1", Kind: KindRate}, ErrRatingRequired},
		{"rating out of range", Interaction{UserID: "u1", TrackID: "t1", Kind: KindRate, Rating: 6}, ErrInvalidRating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.RecordFeedback(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RecordFeedback() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_RecordFeedback_Publishes(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(newMemStore(), &fakeRetriever{}, func(s *Service) { s.publisher = pub })

	err := svc.RecordFeedback(context.Background(), Interaction{UserID: "u1", TrackID: "t1", Kind: KindLike})
	if err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
	in := pub.published[0]
	if in.ID == "" {
		t.Error("event ID not generated")
	}
	if in.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestService_RecordFeedback_InlineWithoutPublisher(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeRetriever{})

	err := svc.RecordFeedback(context.Background(), Interaction{UserID: "u1", TrackID: "t1", Kind: KindLike})
	if err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	if len(store.interactions["u1"]) != 1 {
		t.Errorf("stored %d interactions, want 1 (inline processing)", len(store.interactions["u1"]))
	}
}

func TestService_ProcessInteraction_DuplicateIsNoop(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeRetriever{})
	in := Interaction{ID: "e1", UserID: "u1", TrackID: "t1", Kind: KindLike}

	if err := svc.ProcessInteraction(context.Background(), in); err != nil {
		t.Fatalf("ProcessInteraction() error = %v", err)
	}
	if err := svc.ProcessInteraction(context.Background(), in); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if got := len(store.interactions["u1"]); got != 1 {
		t.Errorf("stored %d interactions, want 1", got)
	}
}

func TestService_ProcessInteraction_ThresholdTriggersRecompute(t *testing.T) {
	store := newMemStore()
	store.tracks["t1"] = Track{ID: "t1", Title: "A", Artist: "X", Genre: "pop", Features: DefaultAudioFeatures()}
	svc := newTestService(store, &fakeRetriever{})

	// A user with history but no profile gets one on the first event.
	first := Interaction{ID: "a", UserID: "u1", TrackID: "t1", Kind: KindLike}
	if err := svc.ProcessInteraction(context.Background(), first); err != nil {
		t.Fatalf("ProcessInteraction() error = %v", err)
	}
	profile := store.profiles["u1"]
	if profile == nil {
		t.Fatal("profile not built for a new user")
	}
	if profile.TotalInteractions != 1 {
		t.Errorf("TotalInteractions = %d, want 1", profile.TotalInteractions)
	}
	if profile.GenrePreferences["pop"] != 1.0 {
		t.Errorf("pop weight = %g, want 1.0", profile.GenrePreferences["pop"])
	}

	// Threshold is 5: the next four events stay under it.
	for i := 0; i < 4; i++ {
		in := Interaction{ID: string(rune('b' + i)), UserID: "u1", TrackID: "t1", Kind: KindLike}
		if err := svc.ProcessInteraction(context.Background(), in); err != nil {
			t.Fatalf("ProcessInteraction() error = %v", err)
		}
	}
	if got := store.profiles["u1"].TotalInteractions; got != 1 {
		t.Fatalf("recomputed before the threshold: TotalInteractions = %d, want 1", got)
	}

	// The fifth event since the snapshot crosses it.
	in := Interaction{ID: "f", UserID: "u1", TrackID: "t1", Kind: KindLike}
	if err := svc.ProcessInteraction(context.Background(), in); err != nil {
		t.Fatalf("ProcessInteraction() error = %v", err)
	}
	if got := store.profiles["u1"].TotalInteractions; got != 6 {
		t.Errorf("TotalInteractions = %d, want 6", got)
	}
}

func TestService_ProcessInteraction_ThresholdCountsFromSnapshot(t *testing.T) {
	store := newMemStore()
	store.tracks["t1"] = Track{ID: "t1", Title: "A", Artist: "X", Genre: "pop", Features: DefaultAudioFeatures()}
	svc := newTestService(store, &fakeRetriever{})

	// Seven events on record, snapshot taken at three: the cadence follows
	// the snapshot, so the rebuild lands at eight, not at ten.
	for i := 0; i < 3; i++ {
		in := Interaction{ID: string(rune('a' + i)), UserID: "u1", TrackID: "t1", Kind: KindLike}
		if err := svc.ProcessInteraction(context.Background(), in); err != nil {
			t.Fatalf("ProcessInteraction() error = %v", err)
		}
	}
	if err := svc.RecomputeProfile(context.Background(), "u1"); err != nil {
		t.Fatalf("RecomputeProfile() error = %v", err)
	}
	if got := store.profiles["u1"].TotalInteractions; got != 3 {
		t.Fatalf("snapshot TotalInteractions = %d, want 3", got)
	}

	for i := 0; i < 4; i++ {
		in := Interaction{ID: string(rune('d' + i)), UserID: "u1", TrackID: "t1", Kind: KindLike}
		if err := svc.ProcessInteraction(context.Background(), in); err != nil {
			t.Fatalf("ProcessInteraction() error = %v", err)
		}
	}
	if got := store.profiles["u1"].TotalInteractions; got != 3 {
		t.Fatalf("recomputed before five events since the snapshot: TotalInteractions = %d", got)
	}

	in := Interaction{ID: "h", UserID: "u1", TrackID: "t1", Kind: KindLike}
	if err := svc.ProcessInteraction(context.Background(), in); err != nil {
		t.Fatalf("ProcessInteraction() error = %v", err)
	}
	if got := store.profiles["u1"].TotalInteractions; got != 8 {
		t.Errorf("TotalInteractions = %d, want 8 (threshold met at snapshot+5)", got)
	}
}

func TestService_ProcessInteraction_UpdatesSession(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeRetriever{})

	in := Interaction{ID: "e1", UserID: "u1", TrackID: "t1", SessionID: "s1", Kind: KindLike}
	if err := svc.ProcessInteraction(context.Background(), in); err != nil {
		t.Fatalf("ProcessInteraction() error = %v", err)
	}

	session := store.sessions["u1:s1"]
	if session == nil {
		t.Fatal("session not created")
	}
	if len(session.RecentInteractions) != 1 {
		t.Errorf("session interactions = %d, want 1", len(session.RecentInteractions))
	}
}

func TestService_RecomputeProfile_Forced(t *testing.T) {
	store := newMemStore()
	store.tracks["t1"] = Track{ID: "t1", Title: "A", Artist: "X", Genre: "rock", Features: DefaultAudioFeatures()}
	store.interactions["u1"] = []Interaction{
		{ID: "e1", UserID: "u1", TrackID: "t1", Kind: KindLike},
	}
	svc := newTestService(store, &fakeRetriever{})

	if err := svc.RecomputeProfile(context.Background(), "u1"); err != nil {
		t.Fatalf("RecomputeProfile() error = %v", err)
	}
	if store.profiles["u1"] == nil {
		t.Fatal("profile not stored")
	}
	if store.profiles["u1"].GenrePreferences["rock"] != 1.0 {
		t.Errorf("rock weight = %g, want 1.0", store.profiles["u1"].GenrePreferences["rock"])
	}
}

func TestService_Profile(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeRetriever{})

	if _, _, err := svc.Profile(context.Background(), ""); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("Profile(\"\") error = %v, want ErrMissingUserID", err)
	}

	// Unknown users get a fresh empty profile, not an error.
	profile, summary, err := svc.Profile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.UserID != "nobody" || profile.TotalInteractions != 0 {
		t.Errorf("profile = %+v, want fresh empty", profile)
	}
	if summary != "New user with no preferences yet" {
		t.Errorf("summary = %q", summary)
	}
}

func TestService_History(t *testing.T) {
	store := newMemStore()
	store.history["u1"] = []HistoryRecord{{UserID: "u1", Query: "q1"}}
	svc := newTestService(store, &fakeRetriever{})

	if _, err := svc.History(context.Background(), "", 10); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("History(\"\") error = %v, want ErrMissingUserID", err)
	}

	recs, err := svc.History(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Query != "q1" {
		t.Errorf("History() = %v", recs)
	}
}
