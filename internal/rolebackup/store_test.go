package rolebackup

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestSaveLatestWins(t *testing.T) {
	s := NewStore("")
	ctx := context.Background()

	s.Save(ctx, "G1", "u1", []string{"a", "b"})
	s.Save(ctx, "G1", "u1", []string{"c"})

	got, err := s.Get(ctx, "G1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("want [c], got %v", got)
	}
}

func TestEmptySaveClearsPriorBackup(t *testing.T) {
	s := NewStore("")
	ctx := context.Background()

	s.Save(ctx, "G1", "u1", []string{"a"})
	s.Save(ctx, "G1", "u1", nil)

	got, _ := s.Get(ctx, "G1", "u1")
	if len(got) != 0 {
		t.Fatalf("empty save must replace, got %v", got)
	}
}

func TestGetExpiresLazily(t *testing.T) {
	s := NewStore("")
	ctx := context.Background()
	base := time.Now()
	s.SetNow(func() time.Time { return base })

	s.Save(ctx, "G1", "u1", []string{"a"})

	s.SetNow(func() time.Time { return base.Add(25 * time.Hour) })
	got, err := s.Get(ctx, "G1", "u1")
	if err != nil || got != nil {
		t.Fatalf("expired read must return nil: %v, %v", got, err)
	}
	if n := s.Count(ctx, "G1"); n != 0 {
		t.Fatalf("expired read must delete the entry, %d remain", n)
	}
}

func TestSweepExpired(t *testing.T) {
	s := NewStore("")
	ctx := context.Background()
	base := time.Now()
	s.SetNow(func() time.Time { return base })

	s.Save(ctx, "G1", "u1", []string{"a"})
	s.Save(ctx, "G1", "u2", []string{"b"})

	s.SetNow(func() time.Time { return base.Add(12 * time.Hour) })
	s.Save(ctx, "G2", "u3", []string{"c"})

	s.SetNow(func() time.Time { return base.Add(25 * time.Hour) })
	removed, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("swept %d, want 2", removed)
	}
	if got, _ := s.Get(ctx, "G2", "u3"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("fresh backup must survive the sweep: %v", got)
	}
}

func TestStorePersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "role_backup.json")
	ctx := context.Background()

	s := NewStore(path)
	s.Save(ctx, "G1", "u1", []string{"a", "b"})

	reopened := NewStore(path)
	got, err := reopened.Get(ctx, "G1", "u1")
	if err != nil || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("reopened store lost the backup: %v, %v", got, err)
	}
}

func TestLoadLegacySingleBackupFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "role_backup.json")
	legacy := `{"G1": {"scopeId":"G1","subjectId":"u1","roleIds":["a"],"savedAt":"2026-01-01T00:00:00Z","expiresAt":"2026-01-02T00:00:00Z"}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path)
	s.SetNow(func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) })

	got, err := s.Get(context.Background(), "G1", "u1")
	if err != nil || !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("legacy record not lifted: %v, %v", got, err)
	}

	// Past expiry the lifted record sweeps like any other.
	s.SetNow(func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) })
	removed, _ := s.SweepExpired(context.Background())
	if removed != 1 {
		t.Fatalf("swept %d legacy records, want 1", removed)
	}
}
