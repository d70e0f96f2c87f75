package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
)

// Service defines case ledger operations. Records are append-only within a
// scope; the only mutation is the explicit administrative Remove and TTL
// pruning.
type Service interface {
	// Allocate returns the next case ID for the kind without persisting
	// anything. Sequential kinds get PREFIX-dddd counters; all other kinds
	// get a composite ID.
	Allocate(ctx context.Context, scopeID string, kind Kind) (string, error)
	// Append allocates a case ID, stamps the timestamp and persists the
	// record, returning the stored form.
	Append(ctx context.Context, scopeID string, rec Record) (Record, error)
	FindByID(ctx context.Context, scopeID, caseID string) (Record, error)
	FindBySubject(ctx context.Context, scopeID, subjectID string) ([]Record, error)
	FindByKind(ctx context.Context, scopeID string, kind Kind) ([]Record, error)
	// LatestBySubjectKind returns the newest record of the kind for the
	// subject across every scope.
	LatestBySubjectKind(ctx context.Context, subjectID string, kind Kind) (Record, error)
	Remove(ctx context.Context, scopeID, caseID, subjectID string) (Record, error)
	// Prune deletes punitive records older than maxAge and reports how many
	// were removed.
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// Ledger is the file-backed Service. The on-disk form is a scope-keyed JSON
// document, human readable and safe to hand-edit for operational recovery;
// edits are picked up on restart. All access goes through one mutex; each
// mutation persists the full document (load-mutate-persist).
type Ledger struct {
	mu   sync.Mutex
	path string
	db   map[string][]Record
	now  func() time.Time
}

var _ Service = (*Ledger)(nil)

// NewLedger opens (or initializes) the ledger at path. An empty path keeps
// the ledger purely in memory. Read failures degrade to an empty ledger.
func NewLedger(path string) *Ledger {
	l := &Ledger{
		path: path,
		db:   make(map[string][]Record),
		now:  time.Now,
	}
	if path == "" {
		return l
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			obs.Error("case ledger load failed", err, map[string]any{"path": path})
		}
		return l
	}
	if err := json.Unmarshal(data, &l.db); err != nil {
		obs.Error("case ledger parse failed", err, map[string]any{"path": path})
		l.db = make(map[string][]Record)
	}
	return l
}

// SetNow overrides the clock. Only intended for test use.
func (l *Ledger) SetNow(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) persist() {
	if l.path == "" {
		return
	}
	data, err := json.MarshalIndent(l.db, "", "  ")
	if err != nil {
		obs.Error("case ledger marshal failed", err, nil)
		return
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		obs.Error("case ledger save failed", err, map[string]any{"path": l.path})
	}
}

func (l *Ledger) Allocate(ctx context.Context, scopeID string, kind Kind) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocateLocked(scopeID, kind), nil
}

func (l *Ledger) allocateLocked(scopeID string, kind Kind) string {
	prefix, global, ok := sequentialPrefix(kind)
	if !ok {
		return compositeID(scopeID, l.now())
	}
	max := 0
	scan := func(recs []Record) {
		for _, r := range recs {
			n, ok := caseNumber(prefix, r.CaseID)
			if !ok || n >= maxSequential {
				continue
			}
			if n > max {
				max = n
			}
		}
	}
	if global {
		for _, recs := range l.db {
			scan(recs)
		}
	} else {
		scan(l.db[scopeID])
	}
	return formatCaseID(prefix, max+1)
}

// compositeID builds the non-sequential fallback ID: a scope fragment, the
// millisecond timestamp and a random suffix.
func compositeID(scopeID string, now time.Time) string {
	frag := scopeID
	if len(frag) > 6 {
		frag = frag[len(frag)-6:]
	}
	return fmt.Sprintf("CASE-%s-%d-%04d", frag, now.UnixMilli(), rand.Intn(10000))
}

// CompositeID exposes the fallback ID format for alternative Service
// implementations.
func CompositeID(scopeID string, now time.Time) string {
	return compositeID(scopeID, now)
}

func (l *Ledger) Append(ctx context.Context, scopeID string, rec Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.CaseID = l.allocateLocked(scopeID, rec.Kind)
	rec.Timestamp = l.now().UTC()
	l.db[scopeID] = append(l.db[scopeID], rec)
	l.persist()
	obs.CaseAppended(string(rec.Kind))
	return rec, nil
}

func (l *Ledger) FindByID(ctx context.Context, scopeID, caseID string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.db[scopeID] {
		if r.CaseID == caseID {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (l *Ledger) FindBySubject(ctx context.Context, scopeID, subjectID string) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, r := range l.db[scopeID] {
		if r.SubjectID == subjectID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *Ledger) FindByKind(ctx context.Context, scopeID string, kind Kind) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Record
	for _, r := range l.db[scopeID] {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *Ledger) LatestBySubjectKind(ctx context.Context, subjectID string, kind Kind) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matches []Record
	for _, recs := range l.db {
		for _, r := range recs {
			if r.SubjectID == subjectID && r.Kind == kind {
				matches = append(matches, r)
			}
		}
	}
	if len(matches) == 0 {
		return Record{}, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	return matches[0], nil
}

func (l *Ledger) Remove(ctx context.Context, scopeID, caseID, subjectID string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := l.db[scopeID]
	for i, r := range recs {
		if r.CaseID == caseID && r.SubjectID == subjectID {
			l.db[scopeID] = append(recs[:i:i], recs[i+1:]...)
			l.persist()
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (l *Ledger) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	removed := 0
	for scopeID, recs := range l.db {
		kept := recs[:0]
		for _, r := range recs {
			if r.Kind.Punitive() && r.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(l.db, scopeID)
			continue
		}
		l.db[scopeID] = kept
	}
	if removed > 0 {
		l.persist()
		obs.CasesPruned(removed)
	}
	return removed, nil
}
