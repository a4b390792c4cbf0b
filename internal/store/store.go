// Package store provides the observable view state shared by the sync
// services and the presentation layer.
//
// Every write replaces whole values on a copy of the current State and then
// swaps it in under a single lock, so readers see either the previous or the
// next committed State. Listeners are notified after the swap, in commit
// order.
package store

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/token-monitor-tui/internal/aggregate"
	"github.com/j-veylop/token-monitor-tui/internal/models"
)

// ErrClosed is returned by writes issued after Close.
var ErrClosed = errors.New("store closed")

// LogCapacity is the number of log entries retained.
const LogCapacity = 50

// State is an immutable view of the store. Slices and pointers in a State
// are never modified after commit and must be treated as read-only.
type State struct {
	Stats            *models.Snapshot       `json:"stats"`
	DailyActivities  []models.DailyActivity `json:"daily_activities"`
	TodayStats       models.TodayStats      `json:"today_stats"`
	Providers        []models.Provider      `json:"providers"`
	ProviderStats    []models.ProviderStats `json:"provider_stats"`
	ActiveProviderID *int64                 `json:"active_provider_id"`
	Logs             []models.LogEntry      `json:"logs"`
	IsLoading        bool                   `json:"is_loading"`
	Error            string                 `json:"error"`

	StreamState string    `json:"stream_state,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	Version     uint64    `json:"version"`
}

// ActiveProvider returns the provider matching ActiveProviderID.
func (s State) ActiveProvider() (models.Provider, bool) {
	if s.ActiveProviderID == nil {
		return models.Provider{}, false
	}
	for _, p := range s.Providers {
		if p.ID == *s.ActiveProviderID {
			return p, true
		}
	}
	return models.Provider{}, false
}

// Listener receives the committed State. Listeners run synchronously on the
// committing goroutine and must not write to the store.
type Listener func(State)

// RefreshBatch is the result of one complete snapshot fetch.
type RefreshBatch struct {
	Stats           models.Snapshot
	ProviderStats   []models.ProviderStats
	DailyActivities []models.DailyActivity
}

// providerEdit is an optimistic provider change. A nil name removes the
// provider.
type providerEdit struct {
	seq  uint64
	id   int64
	name *string
}

// Store is the single owner of the view state.
type Store struct {
	commitMu sync.Mutex

	mu        sync.RWMutex
	state     State
	inflight  int
	closed    bool
	listeners map[uint64]Listener
	nextID    uint64

	// Provider edits made while a batch is in flight are replayed onto that
	// batch when it commits. starts holds the edit sequence seen by each
	// in-flight batch, oldest first.
	editSeq uint64
	edits   []providerEdit
	starts  []uint64

	now   func() time.Time
	newID func() string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		listeners: make(map[uint64]Listener),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// State returns the last committed State.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers l for notifications and returns a function that
// removes it. Subscribing to a closed store returns a no-op.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	s.nextID++
	id := s.nextID
	s.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Close rejects all further writes and drops every listener. It waits for
// a notification in progress to finish.
func (s *Store) Close() {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.listeners = make(map[uint64]Listener)
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// commit applies fn to a copy of the state. When fn reports a change the
// copy replaces the state and listeners are notified.
func (s *Store) commit(fn func(st *State) bool) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	next := s.state
	if !fn(&next) {
		s.mu.Unlock()
		return nil
	}
	next.Version++
	s.state = next

	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = s.listeners[id]
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return nil
}

// BeginRefresh marks a snapshot batch as in flight and clears the error.
func (s *Store) BeginRefresh() error {
	return s.commit(func(st *State) bool {
		s.inflight++
		s.starts = append(s.starts, s.editSeq)
		st.IsLoading = true
		st.Error = ""
		return true
	})
}

// CommitRefresh ends an in-flight batch and applies its results together.
func (s *Store) CommitRefresh(b RefreshBatch) error {
	return s.commit(func(st *State) bool {
		since := s.endFlight(st)
		st.Stats = newerSnapshot(st.Stats, aggregate.NormalizeSnapshot(b.Stats))
		setProviderStats(st, s.replayEdits(slices.Clone(b.ProviderStats), since))
		s.pruneEdits()
		st.DailyActivities = slices.Clone(b.DailyActivities)
		st.LastUpdated = s.now()
		return true
	})
}

// FailRefresh ends an in-flight batch and records its error. Previously
// committed data is kept.
func (s *Store) FailRefresh(msg string) error {
	return s.commit(func(st *State) bool {
		s.endFlight(st)
		s.pruneEdits()
		st.Error = msg
		return true
	})
}

// endFlight ends the oldest in-flight batch and returns the edit sequence
// it started at.
func (s *Store) endFlight(st *State) uint64 {
	if s.inflight > 0 {
		s.inflight--
	}
	st.IsLoading = s.inflight > 0

	since := s.editSeq
	if len(s.starts) > 0 {
		since = s.starts[0]
		s.starts = s.starts[1:]
	}
	return since
}

// recordEdit keeps e for replay while any batch is in flight.
func (s *Store) recordEdit(e providerEdit) {
	s.editSeq++
	if len(s.starts) == 0 {
		return
	}
	e.seq = s.editSeq
	s.edits = append(s.edits, e)
}

// replayEdits applies the edits made after since to stats.
func (s *Store) replayEdits(stats []models.ProviderStats, since uint64) []models.ProviderStats {
	for _, e := range s.edits {
		if e.seq <= since {
			continue
		}
		if e.name == nil {
			stats = slices.DeleteFunc(stats, func(ps models.ProviderStats) bool {
				return ps.Provider.ID == e.id
			})
			continue
		}
		for i := range stats {
			if stats[i].Provider.ID == e.id {
				stats[i].Provider.DisplayName = e.name
			}
		}
	}
	return stats
}

// pruneEdits drops edits that no in-flight batch started before.
func (s *Store) pruneEdits() {
	if len(s.starts) == 0 {
		s.edits = nil
		return
	}
	oldest := s.starts[0]
	s.edits = slices.DeleteFunc(s.edits, func(e providerEdit) bool {
		return e.seq <= oldest
	})
}

// ApplySnapshot replaces the stats with a pushed snapshot. Snapshots older
// than the current one are ignored. Models that grew since the previous
// snapshot are recorded in the log.
func (s *Store) ApplySnapshot(snap models.Snapshot) error {
	return s.commit(func(st *State) bool {
		normalized := aggregate.NormalizeSnapshot(snap)
		picked := newerSnapshot(st.Stats, normalized)
		if picked == st.Stats {
			return false
		}

		deltas := aggregate.ModelDeltas(st.Stats, picked)
		if len(deltas) > 0 {
			at := s.now()
			entries := make([]models.LogEntry, len(deltas))
			for i, d := range deltas {
				entries[i] = models.LogEntry{
					ID:        s.newID(),
					Timestamp: at,
					Model:     d.Model,
					Context:   d.Context,
					Cost:      d.Cost,
				}
			}
			st.Logs = prependLogs(st.Logs, entries)
		}

		st.Stats = picked
		st.LastUpdated = s.now()
		return true
	})
}

// SetActiveProvider records the provider the backend reported as active.
func (s *Store) SetActiveProvider(id int64) error {
	return s.commit(func(st *State) bool {
		if st.ActiveProviderID != nil && *st.ActiveProviderID == id {
			return false
		}
		st.ActiveProviderID = &id
		return true
	})
}

// RemoveProvider drops a provider from both provider sequences.
func (s *Store) RemoveProvider(id int64) error {
	return s.commit(func(st *State) bool {
		s.recordEdit(providerEdit{id: id})

		providers := slices.DeleteFunc(slices.Clone(st.Providers), func(p models.Provider) bool {
			return p.ID == id
		})
		stats := slices.DeleteFunc(slices.Clone(st.ProviderStats), func(ps models.ProviderStats) bool {
			return ps.Provider.ID == id
		})

		st.Providers = providers
		st.ProviderStats = stats
		st.TodayStats = aggregate.Today(stats)
		if st.ActiveProviderID != nil && *st.ActiveProviderID == id {
			st.ActiveProviderID = aggregate.ActiveProviderID(stats)
		}
		return true
	})
}

// RenameProvider replaces a provider's display name in both sequences.
func (s *Store) RenameProvider(id int64, name string) error {
	return s.commit(func(st *State) bool {
		s.recordEdit(providerEdit{id: id, name: &name})

		providers := slices.Clone(st.Providers)
		for i := range providers {
			if providers[i].ID == id {
				providers[i].DisplayName = &name
			}
		}
		stats := slices.Clone(st.ProviderStats)
		for i := range stats {
			if stats[i].Provider.ID == id {
				stats[i].Provider.DisplayName = &name
			}
		}

		st.Providers = providers
		st.ProviderStats = stats
		return true
	})
}

// SetError records an error message without touching data.
func (s *Store) SetError(msg string) error {
	return s.commit(func(st *State) bool {
		if st.Error == msg {
			return false
		}
		st.Error = msg
		return true
	})
}

// SetStreamState records the push channel connection state.
func (s *Store) SetStreamState(state string) error {
	return s.commit(func(st *State) bool {
		if st.StreamState == state {
			return false
		}
		st.StreamState = state
		return true
	})
}

// setProviderStats installs a new provider stats sequence together with
// everything derived from it.
func setProviderStats(st *State, stats []models.ProviderStats) {
	st.ProviderStats = stats
	st.Providers = aggregate.Providers(stats)
	st.TodayStats = aggregate.Today(stats)
	st.ActiveProviderID = aggregate.ActiveProviderID(stats)
}

// newerSnapshot returns cur when in is older than it, otherwise a pointer to
// in. Snapshots without a timestamp always win.
func newerSnapshot(cur *models.Snapshot, in models.Snapshot) *models.Snapshot {
	if cur != nil && !in.UpdatedAt.IsZero() && in.UpdatedAt.Before(cur.UpdatedAt) {
		return cur
	}
	return &in
}

// prependLogs returns a new slice with entries inserted in front of logs, the
// last entry first, trimmed to LogCapacity.
func prependLogs(logs, entries []models.LogEntry) []models.LogEntry {
	out := make([]models.LogEntry, 0, min(len(logs)+len(entries), LogCapacity))
	for i := len(entries) - 1; i >= 0 && len(out) < LogCapacity; i-- {
		out = append(out, entries[i])
	}
	for _, e := range logs {
		if len(out) == LogCapacity {
			break
		}
		out = append(out, e)
	}
	return out
}
