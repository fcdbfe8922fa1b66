// Melodex - Personalized Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/melodex

package profilestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/melodex/internal/metrics"
	"github.com/tomtom215/melodex/internal/recommend"
)

// Key prefixes for BadgerDB storage.
const (
	profileKeyPrefix  = "profile:"
	sessionKeyPrefix  = "session:"
	trackKeyPrefix    = "track:"
	eventKeyPrefix    = "event:"
	eventIDKeyPrefix  = "event_id:"
	eventSeqKeyPrefix = "event_seq:"
	eventCountPrefix  = "event_count:"
	historyKeyPrefix  = "history:"
	historySeqPrefix  = "history_seq:"
)

// ErrNotFound is returned internally for absent keys; public accessors
// translate it to their documented absent-value conventions.
var ErrNotFound = errors.New("profilestore: not found")

// Store is the BadgerDB-backed implementation of the engine's persistence
// interface: profiles, session state, the append-only interaction log,
// track metadata, and served-recommendation history.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a BadgerDB database at path and wraps it in a
// Store. Badger's own logger is disabled; the store's callers log outcomes.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral in-memory store, used in tests and for
// stateless deployments.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory badger: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open BadgerDB handle.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProfile returns the stored profile, or (nil, nil) for an unknown user.
func (s *Store) GetProfile(ctx context.Context, userID string) (*recommend.Profile, error) {
	start := time.Now()
	var profile recommend.Profile
	err := s.getJSON(profileKeyPrefix+userID, &profile)
	metrics.RecordStoreOperation("get_profile", time.Since(start), ignoreNotFound(err))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// PutProfile stores a profile snapshot, replacing any previous one.
func (s *Store) PutProfile(ctx context.Context, profile *recommend.Profile) error {
	start := time.Now()
	err := s.putJSON(profileKeyPrefix+profile.UserID, profile)
	metrics.RecordStoreOperation("put_profile", time.Since(start), err)
	return err
}

// GetSession returns stored session state, or (nil, nil) when absent.
func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*recommend.SessionState, error) {
	start := time.Now()
	var state recommend.SessionState
	err := s.getJSON(sessionKey(userID, sessionID), &state)
	metrics.RecordStoreOperation("get_session", time.Since(start), ignoreNotFound(err))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// PutSession stores session state.
func (s *Store) PutSession(ctx context.Context, state *recommend.SessionState) error {
	start := time.Now()
	err := s.putJSON(sessionKey(state.UserID, state.SessionID), state)
	metrics.RecordStoreOperation("put_session", time.Since(start), err)
	return err
}

// AppendInteraction appends an event to the user's log and reports whether
// it was new. The event ID is the idempotency key: re-appending a seen ID
// returns (false, nil) without touching the log. Sequence assignment, the
// ID marker, and the running count all commit in one transaction.
func (s *Store) AppendInteraction(ctx context.Context, in recommend.Interaction) (bool, error) {
	start := time.Now()
	fresh := false

	err := s.db.Update(func(txn *badger.Txn) error {
		idKey := []byte(eventIDKeyPrefix + in.ID)
		_, err := txn.Get(idKey)
		if err == nil {
			return nil // duplicate
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("checking event id: %w", err)
		}

		seq, err := nextSeq(txn, eventSeqKeyPrefix+in.UserID)
		if err != nil {
			return err
		}

		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal interaction: %w", err)
		}
		eventKey := []byte(fmt.Sprintf("%s%s:%020d", eventKeyPrefix, in.UserID, seq))
		if err := txn.Set(eventKey, data); err != nil {
			return fmt.Errorf("set interaction: %w", err)
		}
		if err := txn.Set(idKey, eventKey); err != nil {
			return fmt.Errorf("set event id marker: %w", err)
		}
		if err := incrementCount(txn, eventCountPrefix+in.UserID); err != nil {
			return err
		}

		fresh = true
		return nil
	})

	metrics.RecordStoreOperation("append_interaction", time.Since(start), err)
	if err != nil {
		return false, err
	}
	return fresh, nil
}

// GetInteractions returns the user's events oldest-first. limit <= 0 returns
// the full history.
func (s *Store) GetInteractions(ctx context.Context, userID string, limit int) ([]recommend.Interaction, error) {
	start := time.Now()
	var events []recommend.Interaction

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(eventKeyPrefix + userID + ":")
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var in recommend.Interaction
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &in)
			}); err != nil {
				return fmt.Errorf("unmarshal interaction: %w", err)
			}
			events = append(events, in)
		}
		return nil
	})

	metrics.RecordStoreOperation("get_interactions", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CountInteractions returns the user's total event count.
func (s *Store) CountInteractions(ctx context.Context, userID string) (int, error) {
	start := time.Now()
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(eventCountPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get event count: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &count)
		})
	})

	metrics.RecordStoreOperation("count_interactions", time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PutTracks upserts track metadata in one transaction.
func (s *Store) PutTracks(ctx context.Context, tracks []recommend.Track) error {
	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, t := range tracks {
			if t.ID == "" {
				continue
			}
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("marshal track %s: %w", t.ID, err)
			}
			if err := txn.Set([]byte(trackKeyPrefix+t.ID), data); err != nil {
				return fmt.Errorf("set track %s: %w", t.ID, err)
			}
		}
		return nil
	})
	metrics.RecordStoreOperation("put_tracks", time.Since(start), err)
	return err
}

// GetTrack returns stored track metadata; found is false for unknown IDs.
func (s *Store) GetTrack(ctx context.Context, trackID string) (recommend.Track, bool, error) {
	start := time.Now()
	var track recommend.Track
	err := s.getJSON(trackKeyPrefix+trackID, &track)
	metrics.RecordStoreOperation("get_track", time.Since(start), ignoreNotFound(err))
	if errors.Is(err, ErrNotFound) {
		return recommend.Track{}, false, nil
	}
	if err != nil {
		return recommend.Track{}, false, err
	}
	return track, true, nil
}

// AppendHistory records one served response.
func (s *Store) AppendHistory(ctx context.Context, rec recommend.HistoryRecord) error {
	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn, historySeqPrefix+rec.UserID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal history record: %w", err)
		}
		key := []byte(fmt.Sprintf("%s%s:%020d", historyKeyPrefix, rec.UserID, seq))
		return txn.Set(key, data)
	})
	metrics.RecordStoreOperation("append_history", time.Since(start), err)
	return err
}

// GetHistory returns the user's served responses, most recent first.
// limit <= 0 returns everything.
func (s *Store) GetHistory(ctx context.Context, userID string, limit int) ([]recommend.HistoryRecord, error) {
	start := time.Now()
	var records []recommend.HistoryRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		prefix := []byte(historyKeyPrefix + userID + ":")
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the last key under the prefix.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec recommend.HistoryRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("unmarshal history record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})

	metrics.RecordStoreOperation("get_history", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func sessionKey(userID, sessionID string) string {
	return sessionKeyPrefix + userID + ":" + sessionID
}

func (s *Store) getJSON(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// nextSeq returns the next value of a monotonic per-key counter, persisting
// the increment within the caller's transaction.
func nextSeq(txn *badger.Txn, key string) (uint64, error) {
	var seq uint64
	item, err := txn.Get([]byte(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		seq = 0
	case err != nil:
		return 0, fmt.Errorf("get sequence %s: %w", key, err)
	default:
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &seq)
		}); err != nil {
			return 0, fmt.Errorf("unmarshal sequence %s: %w", key, err)
		}
	}

	seq++
	data, err := json.Marshal(seq)
	if err != nil {
		return 0, fmt.Errorf("marshal sequence %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return 0, fmt.Errorf("set sequence %s: %w", key, err)
	}
	return seq, nil
}

func incrementCount(txn *badger.Txn, key string) error {
	count := 0
	item, err := txn.Get([]byte(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("get count %s: %w", key, err)
	default:
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &count)
		}); err != nil {
			return fmt.Errorf("unmarshal count %s: %w", key, err)
		}
	}

	count++
	data, err := json.Marshal(count)
	if err != nil {
		return fmt.Errorf("marshal count %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set count %s: %w", key, err)
	}
	return nil
}

// ignoreNotFound keeps expected absences out of the error-rate metrics.
func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
