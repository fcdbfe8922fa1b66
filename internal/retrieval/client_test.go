// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package retrieval

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func newTestClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RateLimit = 1000
	cfg.Burst = 1000
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_Search(t *testing.T) {
	var gotReq searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("got %s %s, want POST /search", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"id": "t1", "title": "Song A", "artist": "Artist A", "genre": "pop",
			 "score": 0.92, "features": {"energy": 0.8, "valence": 0.7}},
			{"id": "t2", "title": "Song B", "artist": "Artist B", "genre": "rock",
			 "score": 1.7, "features": {}}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	candidates, err := c.Search(context.Background(), "upbeat pop", 50, "pop")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotReq.Query != "upbeat pop" || gotReq.Limit != 50 || gotReq.Genre != "pop" {
		t.Errorf("wire request = %+v", gotReq)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}

	first := candidates[0]
	if first.Track.ID != "t1" || first.Score != 0.92 {
		t.Errorf("first candidate = %+v", first)
	}
	if first.Track.Features.Energy != 0.8 {
		t.Errorf("Energy = %g, want 0.8", first.Track.Features.Energy)
	}
	// Absent fields take the documented defaults.
	if first.Track.Features.Tempo != 120 || first.Track.Features.Loudness != -10 {
		t.Errorf("defaults not applied: %+v", first.Track.Features)
	}

	// Out-of-range scores are clamped.
	if candidates[1].Score != 1.0 {
		t.Errorf("out-of-range score = %g, want clamped 1.0", candidates[1].Score)
	}
}

func TestClient_Search_AbsentScoreDefaultsToNeutral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"id": "t1", "title": "Unscored", "artist": "Artist", "genre": "pop", "features": {}},
			{"id": "t2", "title": "Zero", "artist": "Artist", "genre": "pop", "score": 0, "features": {}}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	candidates, err := c.Search(context.Background(), "q", 10, "")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}

	// No score key at all means "unscored", which is neutral, not worthless.
	if candidates[0].Score != 0.5 {
		t.Errorf("absent score = %g, want 0.5 default", candidates[0].Score)
	}
	// An explicit zero is a real score and passes through.
	if candidates[1].Score != 0 {
		t.Errorf("explicit zero score = %g, want 0", candidates[1].Score)
	}
}

func TestClient_Search_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Search(context.Background(), "q", 10, "")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search() error = %v, want ErrUnavailable", err)
	}
}

func TestClient_Search_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // deliberately closed

	c := newTestClient(srv.URL)
	_, err := c.Search(context.Background(), "q", 10, "")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Search() error = %v, want ErrUnavailable", err)
	}
}

func TestClient_Search_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Search(context.Background(), "q", 10, ""); err == nil {
		t.Error("Search() = nil error for malformed body")
	}
}

func TestClient_Search_CancelledContext(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Search(ctx, "q", 10, ""); err == nil {
		t.Error("Search() = nil error with cancelled context")
	}
}

func TestWireFeatures_ToFeatures(t *testing.T) {
	f64 := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }

	t.Run("empty wire features yield full defaults", func(t *testing.T) {
		f := wireFeatures{}.toFeatures()
		if f.Energy != 0.5 || f.Tempo != 120 || f.Mode != 1 || f.TimeSignature != 4 {
			t.Errorf("defaults = %+v", f)
		}
	})

	t.Run("unit features are clamped", func(t *testing.T) {
		f := wireFeatures{Energy: f64(1.8), Valence: f64(-0.4)}.toFeatures()
		if f.Energy != 1.0 {
			t.Errorf("Energy = %g, want 1.0", f.Energy)
		}
		if f.Valence != 0.0 {
			t.Errorf("Valence = %g, want 0.0", f.Valence)
		}
	})

	t.Run("explicit zero differs from absent", func(t *testing.T) {
		f := wireFeatures{Energy: f64(0)}.toFeatures()
		if f.Energy != 0 {
			t.Errorf("explicit zero Energy = %g, want 0", f.Energy)
		}
	})

	t.Run("invalid discrete values fall back", func(t *testing.T) {
		f := wireFeatures{Key: i(15), Mode: i(3), Tempo: f64(-10), TimeSignature: i(0)}.toFeatures()
		if f.Key != 0 || f.Mode != 1 || f.Tempo != 120 || f.TimeSignature != 4 {
			t.Errorf("fallbacks = %+v", f)
		}
	})

	t.Run("valid discrete values pass through", func(t *testing.T) {
		f := wireFeatures{Key: i(7), Mode: i(0), Tempo: f64(98), Loudness: f64(-22)}.toFeatures()
		if f.Key != 7 || f.Mode != 0 || f.Tempo != 98 || f.Loudness != -22 {
			t.Errorf("values = %+v", f)
		}
	})
}
