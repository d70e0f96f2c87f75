// Package rolebackup keeps a short-lived snapshot of a member's roles so they
// can be restored after a removal, a blacklist reversal or a rejoin. Each
// (scope, subject) pair holds at most one snapshot; a new save always
// replaces the old one.
package rolebackup

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
)

// TTL is how long a snapshot stays restorable. Past it the backup is
// considered stale; restoring day-old roles after a moderation action is
// worse than restoring none.
const TTL = 24 * time.Hour

// Backup is one role snapshot.
type Backup struct {
	ScopeID   string    `json:"scopeId"`
	SubjectID string    `json:"subjectId"`
	RoleIDs   []string  `json:"roleIds"`
	SavedAt   time.Time `json:"savedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is the file-backed backup store. The on-disk form is a scope-keyed
// JSON document mapping subject IDs to their single snapshot. With an empty
// path the store is memory only.
type Store struct {
	mu   sync.Mutex
	path string
	db   map[string]map[string]Backup
	now  func() time.Time
}

func NewStore(path string) *Store {
	s := &Store{path: path, db: make(map[string]map[string]Backup), now: time.Now}
	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			obs.Error("rolebackup: read store", err, map[string]any{"path": path})
		}
		return s
	}
	if err := s.load(data); err != nil {
		// An unreadable store degrades to empty rather than blocking startup;
		// backups are short-lived so the loss is bounded.
		obs.Error("rolebackup: decode store", err, map[string]any{"path": path})
		s.db = make(map[string]map[string]Backup)
	}
	return s
}

// load decodes the store document. Older deployments kept one backup per
// scope as a bare object; those entries are lifted into the per-subject map
// so they expire through the normal path.
func (s *Store) load(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for scopeID, msg := range raw {
		var scope map[string]Backup
		if err := json.Unmarshal(msg, &scope); err == nil {
			s.db[scopeID] = scope
			continue
		}
		var legacy Backup
		if err := json.Unmarshal(msg, &legacy); err != nil {
			return err
		}
		if legacy.SubjectID == "" {
			continue
		}
		s.db[scopeID] = map[string]Backup{legacy.SubjectID: legacy}
	}
	return nil
}

// SetNow overrides the clock; tests only.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) persist() {
	if s.path == "" {
		return
	}
	data, err := json.MarshalIndent(s.db, "", "  ")
	if err != nil {
		obs.Error("rolebackup: encode store", err, nil)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		obs.Error("rolebackup: write store", err, map[string]any{"path": s.path})
	}
}

// Save replaces any existing snapshot for the pair. Saving an empty role list
// is allowed and still clears the prior backup; latest wins unconditionally.
func (s *Store) Save(ctx context.Context, scopeID, subjectID string, roleIDs []string) (Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	b := Backup{
		ScopeID:   scopeID,
		SubjectID: subjectID,
		RoleIDs:   append([]string(nil), roleIDs...),
		SavedAt:   now,
		ExpiresAt: now.Add(TTL),
	}
	scope := s.db[scopeID]
	if scope == nil {
		scope = make(map[string]Backup)
		s.db[scopeID] = scope
	}
	scope[subjectID] = b
	s.persist()
	return b, nil
}

// Get returns the stored role IDs, or nil when no live snapshot exists. A
// snapshot past its expiry is deleted as a side effect of the read.
func (s *Store) Get(ctx context.Context, scopeID, subjectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.db[scopeID][subjectID]
	if !ok {
		return nil, nil
	}
	if s.now().After(b.ExpiresAt) {
		s.deleteLocked(scopeID, subjectID)
		s.persist()
		return nil, nil
	}
	return append([]string(nil), b.RoleIDs...), nil
}

// SweepExpired removes every snapshot past expiration and reports how many
// were dropped. Run at startup so stale entries from a previous process do
// not linger until someone reads them.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for scopeID, scope := range s.db {
		for subjectID, b := range scope {
			if now.After(b.ExpiresAt) {
				delete(scope, subjectID)
				removed++
			}
		}
		if len(scope) == 0 {
			delete(s.db, scopeID)
		}
	}
	if removed > 0 {
		s.persist()
	}
	return removed, nil
}

// Count reports the number of live snapshots in a scope. Expired entries
// still on disk are not counted.
func (s *Store) Count(ctx context.Context, scopeID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, b := range s.db[scopeID] {
		if !now.After(b.ExpiresAt) {
			n++
		}
	}
	return n
}

func (s *Store) deleteLocked(scopeID, subjectID string) {
	scope := s.db[scopeID]
	if scope == nil {
		return
	}
	delete(scope, subjectID)
	if len(scope) == 0 {
		delete(s.db, scopeID)
	}
}
