// Package pg is the Postgres-backed case ledger, for deployments where the
// JSON file store is not durable enough (multiple bot instances, managed
// hosting without a persistent volume).
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/cases"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ cases.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, now: time.Now}, nil
}

// NewWithDB wraps an existing handle; the caller owns its lifecycle.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// SetNow overrides the clock; tests only.
func (s *Store) SetNow(now func() time.Time) { s.now = now }

// sequentialMax matches only the exact PREFIX-dddd shape so composite IDs
// and legacy numbers at or above 1000 never feed the counter.
const sequentialMax = `
	select coalesce(max((substring(case_id from 6))::int), 0)
	from case_records
	where case_id ~ ('^' || $1 || '-[0-9]{4}$')
	  and (substring(case_id from 6))::int between 1 and 999
`

func (s *Store) Allocate(ctx context.Context, scopeID string, kind cases.Kind) (string, error) {
	prefix, global, ok := cases.AllocationRule(kind)
	if !ok {
		return cases.CompositeID(scopeID, s.now()), nil
	}
	id, err := allocate(ctx, s.db, scopeID, prefix, global)
	if err != nil {
		return "", err
	}
	return id, nil
}

// querier covers *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func allocate(ctx context.Context, q querier, scopeID, prefix string, global bool) (string, error) {
	query := sequentialMax
	args := []any{prefix}
	if !global {
		query += ` and scope_id = $2`
		args = append(args, scopeID)
	}
	var max int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return "", err
	}
	return cases.FormatCaseID(prefix, max+1), nil
}

func (s *Store) Append(ctx context.Context, scopeID string, rec cases.Record) (cases.Record, error) {
	// Serializable so two concurrent appends cannot both read the same
	// counter maximum.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return cases.Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	prefix, global, seq := cases.AllocationRule(rec.Kind)
	if seq {
		rec.CaseID, err = allocate(ctx, tx, scopeID, prefix, global)
		if err != nil {
			return cases.Record{}, err
		}
	} else {
		rec.CaseID = cases.CompositeID(scopeID, s.now())
	}
	rec.Timestamp = s.now().UTC()

	if _, err := tx.ExecContext(ctx, `
		insert into case_records(
			scope_id, case_id, subject_id, subject_tag, kind,
			actor_id, actor_tag, reason, created_at,
			duration_seconds, expires_at, message_count, original_case_id)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, scopeID, rec.CaseID, rec.SubjectID, rec.SubjectTag, string(rec.Kind),
		rec.ActorID, rec.ActorTag, rec.Reason, rec.Timestamp,
		rec.DurationSeconds, nullTime(rec.ExpiresAt), rec.MessageCount, rec.OriginalCaseID); err != nil {
		return cases.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return cases.Record{}, err
	}
	obs.CaseAppended(string(rec.Kind))
	return rec, nil
}

const recordColumns = `
	case_id, subject_id, subject_tag, kind, actor_id, actor_tag, reason,
	created_at, duration_seconds, expires_at, message_count, original_case_id
`

func (s *Store) FindByID(ctx context.Context, scopeID, caseID string) (cases.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+recordColumns+`
		from case_records where scope_id=$1 and case_id=$2
	`, scopeID, caseID)
	return scanRecord(row)
}

func (s *Store) FindBySubject(ctx context.Context, scopeID, subjectID string) ([]cases.Record, error) {
	return s.query(ctx, `
		select `+recordColumns+`
		from case_records where scope_id=$1 and subject_id=$2
		order by created_at asc
	`, scopeID, subjectID)
}

func (s *Store) FindByKind(ctx context.Context, scopeID string, kind cases.Kind) ([]cases.Record, error) {
	return s.query(ctx, `
		select `+recordColumns+`
		from case_records where scope_id=$1 and kind=$2
		order by created_at asc
	`, scopeID, string(kind))
}

func (s *Store) LatestBySubjectKind(ctx context.Context, subjectID string, kind cases.Kind) (cases.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+recordColumns+`
		from case_records where subject_id=$1 and kind=$2
		order by created_at desc limit 1
	`, subjectID, string(kind))
	return scanRecord(row)
}

func (s *Store) Remove(ctx context.Context, scopeID, caseID, subjectID string) (cases.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		delete from case_records
		where scope_id=$1 and case_id=$2 and subject_id=$3
		returning `+recordColumns, scopeID, caseID, subjectID)
	return scanRecord(row)
}

func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	kinds := cases.PunitiveKinds()
	args := make([]any, 0, len(kinds)+1)
	args = append(args, s.now().Add(-maxAge))
	holes := make([]string, 0, len(kinds))
	for i, k := range kinds {
		holes = append(holes, fmt.Sprintf("$%d", i+2))
		args = append(args, string(k))
	}
	res, err := s.db.ExecContext(ctx, `
		delete from case_records
		where created_at < $1 and kind in (`+strings.Join(holes, ",")+`)
	`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		obs.CasesPruned(int(n))
	}
	return int(n), nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]cases.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cases.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (cases.Record, error) {
	var rec cases.Record
	var kind string
	var expires sql.NullTime
	err := row.Scan(&rec.CaseID, &rec.SubjectID, &rec.SubjectTag, &kind,
		&rec.ActorID, &rec.ActorTag, &rec.Reason, &rec.Timestamp,
		&rec.DurationSeconds, &expires, &rec.MessageCount, &rec.OriginalCaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return cases.Record{}, cases.ErrNotFound
	}
	if err != nil {
		return cases.Record{}, err
	}
	rec.Kind = cases.Kind(kind)
	if expires.Valid {
		rec.ExpiresAt = expires.Time
	}
	return rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
