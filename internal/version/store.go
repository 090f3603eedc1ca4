// Package version tracks the genealogy of strategy parameter sets: an
// in-memory store with lock-free snapshot reads plus an optional
// Postgres sink for durable snapshots.
package version

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quantlabhq/tradelab/internal/indicators"
	"github.com/quantlabhq/tradelab/internal/strategy"
)

// MediumScore is the floor a version must have reached before the
// similarity search will consider it.
const MediumScore = 50.0

// distancePenalty scales the market-distance term in FindBestFor.
const distancePenalty = 10.0

// Version is one annotated parameter set in the genealogy.
type Version struct {
	ID               string                      `json:"id"`
	Name             string                      `json:"name"`
	ParentID         string                      `json:"parent_id,omitempty"`
	Config           strategy.GraphConfig        `json:"config"`
	Score            float64                     `json:"score"`
	WinRate          float64                     `json:"win_rate"`
	Conditions       indicators.MarketConditions `json:"conditions"`
	TotalSimulations int                         `json:"total_simulations"`
	IsProduction     bool                        `json:"is_production"`
	Changes          []string                    `json:"changes,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// snapshot is the immutable state behind the atomic pointer. Readers
// never take the lock.
type snapshot struct {
	versions  []Version
	currentID string
}

// Store holds the version genealogy. Writes are single-writer under a
// mutex and publish a fresh copy-on-write snapshot; reads are
// lock-free.
type Store struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]

	// Clock hook, overridden in tests
	now func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{now: time.Now}
	s.snap.Store(&snapshot{})
	return s
}

// Create appends a new version and returns it. The parent may be
// empty for root versions.
func (s *Store) Create(cfg strategy.GraphConfig, parentID, name string, changes []string) Version {
	v := Version{
		ID:        uuid.New().String()[:8],
		Name:      name,
		ParentID:  parentID,
		Config:    cfg,
		Changes:   changes,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	next := &snapshot{
		versions:  append(copyVersions(cur.versions), v),
		currentID: cur.currentID,
	}
	s.snap.Store(next)
	return v
}

// Restore inserts a previously persisted version, keeping its identity
// and annotations. Already-present IDs are ignored, so reloading the
// sink is idempotent.
func (s *Store) Restore(v Version) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	for _, existing := range cur.versions {
		if existing.ID == v.ID {
			return false
		}
	}

	s.snap.Store(&snapshot{
		versions:  append(copyVersions(cur.versions), v),
		currentID: cur.currentID,
	})
	return true
}

// Current returns the adopted version, if any.
func (s *Store) Current() (Version, bool) {
	snap := s.snap.Load()
	if snap.currentID == "" {
		return Version{}, false
	}
	return find(snap.versions, snap.currentID)
}

// Adopt makes the given version current. Adopting the version that is
// already current is a no-op.
func (s *Store) Adopt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	if cur.currentID == id {
		return nil
	}
	if _, ok := find(cur.versions, id); !ok {
		return fmt.Errorf("unknown version %q", id)
	}

	s.snap.Store(&snapshot{
		versions:  cur.versions,
		currentID: id,
	})
	return nil
}

// Annotate records a simulation outcome against a version and bumps
// its simulation counter.
func (s *Store) Annotate(id string, score, winRate float64, conditions indicators.MarketConditions) error {
	return s.update(id, func(v *Version) {
		v.Score = score
		v.WinRate = winRate
		v.Conditions = conditions
		v.TotalSimulations++
	})
}

// MarkProduction flags a version as validated for live trading.
func (s *Store) MarkProduction(id string) error {
	return s.update(id, func(v *Version) {
		v.IsProduction = true
	})
}

func (s *Store) update(id string, mutate func(*Version)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	versions := copyVersions(cur.versions)
	for i := range versions {
		if versions[i].ID == id {
			mutate(&versions[i])
			s.snap.Store(&snapshot{versions: versions, currentID: cur.currentID})
			return nil
		}
	}
	return fmt.Errorf("unknown version %q", id)
}

// Get looks a version up by ID.
func (s *Store) Get(id string) (Version, bool) {
	return find(s.snap.Load().versions, id)
}

// List returns all versions, oldest first.
func (s *Store) List() []Version {
	return copyVersions(s.snap.Load().versions)
}

// Len returns the number of versions.
func (s *Store) Len() int {
	return len(s.snap.Load().versions)
}

// FindBestFor ranks non-current versions that have proven themselves
// (score at or above the medium threshold) by score minus a penalty
// for market distance, and returns the winner.
func (s *Store) FindBestFor(conditions indicators.MarketConditions) (Version, bool) {
	snap := s.snap.Load()

	var best Version
	bestRank := 0.0
	found := false

	for _, v := range snap.versions {
		if v.ID == snap.currentID || v.Score < MediumScore {
			continue
		}
		rank := v.Score - distancePenalty*indicators.Distance(conditions, v.Conditions)
		if !found || rank > bestRank {
			best = v
			bestRank = rank
			found = true
		}
	}
	return best, found
}

func find(versions []Version, id string) (Version, bool) {
	for _, v := range versions {
		if v.ID == id {
			return v, true
		}
	}
	return Version{}, false
}

func copyVersions(in []Version) []Version {
	out := make([]Version, len(in))
	copy(out, in)
	return out
}
