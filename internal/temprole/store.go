// Package temprole tracks time-boxed role grants and expires them on a
// periodic sweep. The store only tracks deadlines; applying and removing the
// role on the platform is the caller's (or the sweeper's) job.
package temprole

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
)

// Grant is one tracked temporary role assignment. One active grant exists
// per (scope, subject, role) key; re-granting replaces the deadline.
type Grant struct {
	ScopeID   string    `json:"scopeId"`
	SubjectID string    `json:"subjectId"`
	RoleID    string    `json:"roleId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type key struct {
	scopeID   string
	subjectID string
	roleID    string
}

// Store is the file-backed grant store. With an empty path it is memory
// only. The on-disk form is a flat JSON array; the key is implicit in the
// record fields.
type Store struct {
	mu   sync.Mutex
	path string
	db   map[key]Grant
	now  func() time.Time
}

func NewStore(path string) *Store {
	s := &Store{path: path, db: make(map[key]Grant), now: time.Now}
	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			obs.Error("temprole: read store", err, map[string]any{"path": path})
		}
		return s
	}
	var recs []Grant
	if err := json.Unmarshal(data, &recs); err != nil {
		obs.Error("temprole: decode store", err, map[string]any{"path": path})
		return s
	}
	for _, g := range recs {
		s.db[key{g.ScopeID, g.SubjectID, g.RoleID}] = g
	}
	return s
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
	recs := make([]Grant, 0, len(s.db))
	for _, g := range s.db {
		recs = append(recs, g)
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		obs.Error("temprole: encode store", err, nil)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		obs.Error("temprole: write store", err, map[string]any{"path": s.path})
	}
}

// Grant upserts a tracking record with a deadline of now + ttl. The caller
// applies the role itself; the store only remembers when to take it away.
func (s *Store) Grant(ctx context.Context, scopeID, subjectID, roleID string, ttl time.Duration) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := Grant{
		ScopeID:   scopeID,
		SubjectID: subjectID,
		RoleID:    roleID,
		ExpiresAt: s.now().UTC().Add(ttl),
	}
	s.db[key{scopeID, subjectID, roleID}] = g
	s.persist()
	return g, nil
}

// Revoke deletes the tracking record and reports whether it existed. A
// revoke racing a sweep on the same key sees the record already gone and
// reports false.
func (s *Store) Revoke(ctx context.Context, scopeID, subjectID, roleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{scopeID, subjectID, roleID}
	if _, ok := s.db[k]; !ok {
		return false, nil
	}
	delete(s.db, k)
	s.persist()
	return true, nil
}

// Status returns the grant if tracked, expired or not. Status never mutates;
// an operator asking about an expired grant should see "expired", not
// nothing.
func (s *Store) Status(ctx context.Context, scopeID, subjectID, roleID string) (Grant, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.db[key{scopeID, subjectID, roleID}]
	return g, ok, nil
}

// Expired returns a snapshot of every grant past its deadline. The snapshot
// is taken under the lock but processed outside it, so sweeping and command
// traffic never block each other for long.
func (s *Store) Expired(ctx context.Context) ([]Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []Grant
	for _, g := range s.db {
		if !g.ExpiresAt.After(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

// remove drops a single key if it is still present. Used by the sweeper
// after processing a snapshot entry.
func (s *Store) remove(scopeID, subjectID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{scopeID, subjectID, roleID}
	if _, ok := s.db[k]; !ok {
		return
	}
	delete(s.db, k)
	s.persist()
}
