package cases

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSequentialAllocationPerScope(t *testing.T) {
	l := NewLedger("")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		rec, err := l.Append(ctx, "G1", Record{SubjectID: "u1", Kind: KindBlacklist, ActorID: "m1"})
		if err != nil {
			t.Fatal(err)
		}
		want := formatCaseID("CASE", i)
		if rec.CaseID != want {
			t.Fatalf("append %d: got %q, want %q", i, rec.CaseID, want)
		}
	}

	// A different scope starts its own CASE counter.
	rec, _ := l.Append(ctx, "G2", Record{SubjectID: "u2", Kind: KindBlacklist, ActorID: "m1"})
	if rec.CaseID != "CASE-0001" {
		t.Fatalf("scope-local counter leaked across scopes: %q", rec.CaseID)
	}
}

func TestGlobalNumberingSpansScopes(t *testing.T) {
	l := NewLedger("")
	ctx := context.Background()

	a, _ := l.Append(ctx, "G1", Record{SubjectID: "u1", Kind: KindGlobalBan, ActorID: "m1"})
	b, _ := l.Append(ctx, "G2", Record{SubjectID: "u2", Kind: KindGlobalBan, ActorID: "m1"})
	if a.CaseID != "PNET-0001" || b.CaseID != "PNET-0002" {
		t.Fatalf("global counter broken: %q then %q", a.CaseID, b.CaseID)
	}

	// Unban shares the PNET counter.
	c, _ := l.Append(ctx, "G1", Record{SubjectID: "u1", Kind: KindGlobalUnban, ActorID: "m1"})
	if c.CaseID != "PNET-0003" {
		t.Fatalf("unban should continue the PNET counter: %q", c.CaseID)
	}
}

func TestAllocationIgnoresForeignNumbers(t *testing.T) {
	l := NewLedger("")
	ctx := context.Background()

	// Seed a legacy high-numbered record directly; allocation must not see it.
	l.db["G1"] = []Record{
		{CaseID: "CASE-1000", SubjectID: "u0", Kind: KindBlacklist, Timestamp: time.Now()},
		{CaseID: "CASE-4821", SubjectID: "u0", Kind: KindBlacklist, Timestamp: time.Now()},
		{CaseID: "CASE-0002", SubjectID: "u0", Kind: KindBlacklist, Timestamp: time.Now()},
	}

	id, err := l.Allocate(ctx, "G1", KindBlacklist)
	if err != nil {
		t.Fatal(err)
	}
	if id != "CASE-0003" {
		t.Fatalf("allocation influenced by foreign numbers: %q", id)
	}
}

func TestCompositeFallbackID(t *testing.T) {
	l := NewLedger("")
	rec, err := l.Append(context.Background(), "guild-123456789", Record{SubjectID: "u1", Kind: KindWarning, ActorID: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rec.CaseID, "CASE-456789-") {
		t.Fatalf("composite ID missing scope fragment: %q", rec.CaseID)
	}
	if _, ok := caseNumber("CASE", rec.CaseID); ok {
		t.Fatalf("composite ID must not parse as sequential: %q", rec.CaseID)
	}
}

func TestFindAndRemove(t *testing.T) {
	l := NewLedger("")
	ctx := context.Background()

	rec, _ := l.Append(ctx, "G1", Record{SubjectID: "u1", Kind: KindBlacklist, ActorID: "m1", Reason: "spam"})
	got, err := l.FindByID(ctx, "G1", rec.CaseID)
	if err != nil || got.Reason != "spam" {
		t.Fatalf("FindByID: %+v, %v", got, err)
	}

	bySubject, _ := l.FindBySubject(ctx, "G1", "u1")
	if len(bySubject) != 1 {
		t.Fatalf("FindBySubject returned %d records", len(bySubject))
	}

	// Remove requires both fields to match.
	if _, err := l.Remove(ctx, "G1", rec.CaseID, "someone-else"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for mismatched subject, got %v", err)
	}
	removed, err := l.Remove(ctx, "G1", rec.CaseID, "u1")
	if err != nil || removed.CaseID != rec.CaseID {
		t.Fatalf("Remove: %+v, %v", removed, err)
	}
	if _, err := l.FindByID(ctx, "G1", rec.CaseID); err != ErrNotFound {
		t.Fatalf("record still present after remove: %v", err)
	}
}

func TestLatestBySubjectKindSpansScopes(t *testing.T) {
	l := NewLedger("")
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	l.SetNow(func() time.Time { return base })

	l.Append(ctx, "G1", Record{SubjectID: "u1", Kind: KindGlobalBan, ActorID: "m1", Reason: "first"})
	l.SetNow(func() time.Time { return base.Add(time.Minute) })
	l.Append(ctx, "G2", Record{SubjectID: "u1", Kind: KindGlobalBan, ActorID: "m1", Reason: "second"})

	got, err := l.LatestBySubjectKind(ctx, "u1", KindGlobalBan)
	if err != nil {
		t.Fatal(err)
	}
	if got.Reason != "second" {
		t.Fatalf("want the newest record across scopes, got %q", got.Reason)
	}

	if _, err := l.LatestBySubjectKind(ctx, "nobody", KindGlobalBan); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneSelectivity(t *testing.T) {
	l := NewLedger("")
	ctx := context.Background()
	now := time.Now()

	old := now.Add(-15 * 24 * time.Hour)
	l.db["G1"] = []Record{
		{CaseID: "CASE-0001", SubjectID: "u1", Kind: KindBlacklist, Timestamp: old},
		{CaseID: "CASE-0002", SubjectID: "u1", Kind: KindUnblacklist, Timestamp: old},
		{CaseID: "PNET-0001", SubjectID: "u2", Kind: KindGlobalBan, Timestamp: now.Add(-time.Hour)},
	}

	removed, err := l.Prune(ctx, 14*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("pruned %d records, want 1", removed)
	}
	if _, err := l.FindByID(ctx, "G1", "CASE-0002"); err != nil {
		t.Fatal("non-punitive record must survive pruning")
	}
	if _, err := l.FindByID(ctx, "G1", "PNET-0001"); err != nil {
		t.Fatal("recent punitive record must survive pruning")
	}
	if _, err := l.FindByID(ctx, "G1", "CASE-0001"); err != ErrNotFound {
		t.Fatal("old punitive record must be pruned")
	}
}

func TestNumberingRestartsAfterPrune(t *testing.T) {
	// Documented consequence of TTL pruning: numbers derive from surviving
	// records, so a fully pruned counter restarts at 1.
	l := NewLedger("")
	ctx := context.Background()

	l.db["G1"] = []Record{
		{CaseID: "CASE-0005", SubjectID: "u1", Kind: KindBlacklist, Timestamp: time.Now().Add(-30 * 24 * time.Hour)},
	}
	if _, err := l.Prune(ctx, 14*24*time.Hour); err != nil {
		t.Fatal(err)
	}
	id, _ := l.Allocate(ctx, "G1", KindBlacklist)
	if id != "CASE-0001" {
		t.Fatalf("counter should restart at 1 after full prune: %q", id)
	}
}

func TestLedgerPersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case_database.json")
	ctx := context.Background()

	l := NewLedger(path)
	rec, err := l.Append(ctx, "G1", Record{SubjectID: "u1", Kind: KindBlacklist, ActorID: "m1"})
	if err != nil {
		t.Fatal(err)
	}

	reopened := NewLedger(path)
	got, err := reopened.FindByID(ctx, "G1", rec.CaseID)
	if err != nil || got.SubjectID != "u1" {
		t.Fatalf("reopened ledger lost the record: %+v, %v", got, err)
	}

	// The file is the documented human-readable form.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"caseId": "CASE-0001"`) {
		t.Fatalf("unexpected on-disk form:\n%s", data)
	}
}

func TestCorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case_database.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLedger(path)
	recs, err := l.FindBySubject(context.Background(), "G1", "u1")
	if err != nil || len(recs) != 0 {
		t.Fatalf("corrupt store must degrade to empty view: %v, %v", recs, err)
	}
}
