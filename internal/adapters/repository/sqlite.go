package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS assessments (
	id          TEXT PRIMARY KEY,
	user_id     INTEGER NOT NULL,
	level       TEXT NOT NULL,
	pattern     TEXT NOT NULL,
	urgency     TEXT NOT NULL,
	risk_7      REAL NOT NULL,
	risk_30     REAL NOT NULL,
	assessed_at INTEGER NOT NULL,
	payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessments(user_id, assessed_at);
CREATE INDEX IF NOT EXISTS idx_assessments_time ON assessments(assessed_at);
`

// SQLiteAssessmentStore implements AssessmentStore on an embedded SQLite
// database. Full assessments are kept as JSON next to indexed columns.
type SQLiteAssessmentStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteAssessmentStore opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteAssessmentStore(ctx context.Context, path string) (*SQLiteAssessmentStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path must not be empty")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	s := &SQLiteAssessmentStore{db: db}
	metrics.UpdateAssessmentsStored(s.Count(ctx))
	return s, nil
}

// Save implements AssessmentStore.
func (s *SQLiteAssessmentStore) Save(ctx context.Context, a model.Assessment) error {
	start := time.Now()
	defer observe("save", start)

	if s.closed.Load() {
		return ErrClosed
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode assessment %s: %w", a.AssessmentID, err)
	}
	r := a.Record()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO assessments (id, user_id, level, pattern, urgency, risk_7, risk_30, assessed_at, payload)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	user_id = excluded.user_id,
	level = excluded.level,
	pattern = excluded.pattern,
	urgency = excluded.urgency,
	risk_7 = excluded.risk_7,
	risk_30 = excluded.risk_30,
	assessed_at = excluded.assessed_at,
	payload = excluded.payload`,
		r.AssessmentID, r.UserID, string(r.Level), string(r.Pattern), string(r.Urgency),
		r.Risk7Day, r.Risk30Day, r.AssessedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("save assessment %s: %w", a.AssessmentID, err)
	}
	metrics.UpdateAssessmentsStored(s.Count(ctx))
	return nil
}

// Get implements AssessmentStore.
func (s *SQLiteAssessmentStore) Get(ctx context.Context, id string) (model.Assessment, error) {
	start := time.Now()
	defer observe("get", start)

	if s.closed.Load() {
		return model.Assessment{}, ErrClosed
	}
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM assessments WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Assessment{}, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Assessment{}, fmt.Errorf("get assessment %s: %w", id, err)
	}
	return decodeAssessment(payload)
}

// List implements AssessmentStore.
func (s *SQLiteAssessmentStore) List(ctx context.Context, limit int) ([]model.Assessment, error) {
	start := time.Now()
	defer observe("list", start)

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM assessments ORDER BY assessed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a, err := decodeAssessment(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return out, nil
}

// Latest implements AssessmentStore.
func (s *SQLiteAssessmentStore) Latest(ctx context.Context) ([]model.Record, error) {
	start := time.Now()
	defer observe("latest", start)

	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, level, pattern, urgency, risk_7, risk_30, assessed_at FROM (
	SELECT *, ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY assessed_at DESC, rowid DESC) AS rn
	FROM assessments
) WHERE rn = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("latest assessments: %w", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var (
			r                       model.Record
			level, pattern, urgency string
			at                      int64
		)
		if err := rows.Scan(&r.AssessmentID, &r.UserID, &level, &pattern, &urgency, &r.Risk7Day, &r.Risk30Day, &at); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Level = model.RiskLevel(level)
		r.Pattern = model.Pattern(pattern)
		r.Urgency = model.Urgency(urgency)
		r.AssessedAt = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest assessments: %w", err)
	}
	return out, nil
}

// Count implements AssessmentStore. Errors count as zero.
func (s *SQLiteAssessmentStore) Count(ctx context.Context) int {
	if s.closed.Load() {
		return 0
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close implements AssessmentStore.
func (s *SQLiteAssessmentStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func decodeAssessment(payload string) (model.Assessment, error) {
	var a model.Assessment
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return model.Assessment{}, fmt.Errorf("decode assessment: %w", err)
	}
	return a, nil
}
