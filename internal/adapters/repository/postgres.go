package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/coachlens/internal/domain/model"
	"github.com/okian/coachlens/internal/domain/types"
	"github.com/okian/coachlens/pkg/metrics"
)

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	DSN               string        `koanf:"dsn"`
	MaxConns          int32         `koanf:"max_conns"`
	MinConns          int32         `koanf:"min_conns"`
	MaxConnLifetime   time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `koanf:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `koanf:"health_check_period"`
}

// DefaultPostgresConfig returns pool defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// PoolConfig parses the DSN and applies pool limits.
func (c PostgresConfig) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = c.HealthCheckPeriod
	}
	return pc, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS student_records (
	student_id   TEXT PRIMARY KEY,
	risk_score   INTEGER NOT NULL,
	tier         TEXT NOT NULL,
	signal       TEXT NOT NULL,
	evaluated_at TIMESTAMPTZ NOT NULL,
	payload      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS student_records_triage_idx ON student_records (risk_score DESC, student_id ASC);

CREATE TABLE IF NOT EXISTS metrics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	student_id  TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	rsr         DOUBLE PRECISION NOT NULL,
	ksi         INTEGER,
	velocity    INTEGER NOT NULL,
	risk_score  INTEGER NOT NULL,
	der         INTEGER,
	pdi         DOUBLE PRECISION,
	tier        TEXT NOT NULL,
	daily_xp    DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS metrics_snapshots_student_idx ON metrics_snapshots (student_id, captured_at);

CREATE TABLE IF NOT EXISTS interventions (
	id          TEXT PRIMARY KEY,
	student_id  TEXT NOT NULL,
	coach       TEXT NOT NULL,
	objective   TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore is a Store backed by PostgreSQL through pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and applies the schema.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// IsNoRows reports whether err is pgx's no-rows error.
func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, msSince(start), err)
}

// SaveRecord implements Store.SaveRecord.
func (s *PostgresStore) SaveRecord(ctx context.Context, rec types.StudentRecord) (prev *types.StudentRecord, err error) {
	start := time.Now()
	defer func() { observe("save_record", start, err) }()

	if rec.StudentID == "" {
		return nil, ErrInvalidInput
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode record: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var raw []byte
		qerr := tx.QueryRow(ctx,
			`SELECT payload FROM student_records WHERE student_id = $1 FOR UPDATE`, rec.StudentID,
		).Scan(&raw)
		switch {
		case IsNoRows(qerr):
		case qerr != nil:
			return fmt.Errorf("postgres: load previous record: %w", qerr)
		default:
			var old types.StudentRecord
			if err := json.Unmarshal(raw, &old); err != nil {
				return fmt.Errorf("postgres: decode previous record: %w", err)
			}
			prev = &old
		}

		_, xerr := tx.Exec(ctx, `
			INSERT INTO student_records (student_id, risk_score, tier, signal, evaluated_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (student_id) DO UPDATE SET
				risk_score = EXCLUDED.risk_score,
				tier = EXCLUDED.tier,
				signal = EXCLUDED.signal,
				evaluated_at = EXCLUDED.evaluated_at,
				payload = EXCLUDED.payload
		`, rec.StudentID, rec.DRI.RiskScore, string(rec.DRI.Tier), rec.DRI.Signal, rec.EvaluatedAt, payload)
		if xerr != nil {
			return fmt.Errorf("postgres: upsert record: %w", xerr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// Record implements Store.Record.
func (s *PostgresStore) Record(ctx context.Context, studentID string) (types.StudentRecord, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM student_records WHERE student_id = $1`, studentID).Scan(&raw)
	if IsNoRows(err) {
		return types.StudentRecord{}, ErrNotFound
	}
	if err != nil {
		return types.StudentRecord{}, fmt.Errorf("postgres: get record: %w", err)
	}
	var rec types.StudentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.StudentRecord{}, fmt.Errorf("postgres: decode record: %w", err)
	}
	return rec, nil
}

// Records implements Store.Records.
func (s *PostgresStore) Records(ctx context.Context) ([]types.StudentRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM student_records ORDER BY student_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records: %w", err)
	}
	defer rows.Close()

	var out []types.StudentRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan record: %w", err)
		}
		var rec types.StudentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("postgres: decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TopRisk implements Store.TopRisk.
func (s *PostgresStore) TopRisk(ctx context.Context, n int) (out []types.TriageEntry, err error) {
	start := time.Now()
	defer func() { observe("top_risk", start, err) }()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT student_id, tier, signal, risk_score
		FROM student_records
		ORDER BY risk_score DESC, student_id ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: triage query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e types.TriageEntry
		var tier string
		if err := rows.Scan(&e.StudentID, &tier, &e.Signal, &e.RiskScore); err != nil {
			return nil, fmt.Errorf("postgres: scan triage row: %w", err)
		}
		e.Tier = model.Tier(tier)
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// TriageRank implements Store.TriageRank.
func (s *PostgresStore) TriageRank(ctx context.Context, studentID string) (rank int, err error) {
	start := time.Now()
	defer func() { observe("triage_rank", start, err) }()

	var risk int
	err = s.pool.QueryRow(ctx, `SELECT risk_score FROM student_records WHERE student_id = $1`, studentID).Scan(&risk)
	if IsNoRows(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: get risk: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) + 1 FROM student_records
		WHERE risk_score > $1 OR (risk_score = $1 AND student_id < $2)
	`, risk, studentID).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("postgres: triage rank: %w", err)
	}
	return rank, nil
}

// AppendSnapshot implements Store.AppendSnapshot.
func (s *PostgresStore) AppendSnapshot(ctx context.Context, snap model.MetricsSnapshot) (err error) {
	start := time.Now()
	defer func() { observe("append_snapshot", start, err) }()

	if snap.StudentID == "" {
		return ErrInvalidInput
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO metrics_snapshots
			(student_id, captured_at, rsr, ksi, velocity, risk_score, der, pdi, tier, daily_xp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, snap.StudentID, snap.CapturedAt, snap.RSR, snap.KSI, snap.Velocity, snap.RiskScore,
		snap.DER, snap.PDI, string(snap.Tier), snap.DailyXP)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot: %w", err)
	}
	return nil
}

// Snapshots implements Store.Snapshots.
func (s *PostgresStore) Snapshots(ctx context.Context, studentID string) ([]model.MetricsSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT student_id, captured_at, rsr, ksi, velocity, risk_score, der, pdi, tier, daily_xp
		FROM metrics_snapshots
		WHERE student_id = $1
		ORDER BY captured_at, id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.MetricsSnapshot
	for rows.Next() {
		var snap model.MetricsSnapshot
		var tier string
		if err := rows.Scan(&snap.StudentID, &snap.CapturedAt, &snap.RSR, &snap.KSI, &snap.Velocity,
			&snap.RiskScore, &snap.DER, &snap.PDI, &tier, &snap.DailyXP); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snap.Tier = model.Tier(tier)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SaveIntervention implements Store.SaveIntervention.
func (s *PostgresStore) SaveIntervention(ctx context.Context, ev model.InterventionEvent) (err error) {
	start := time.Now()
	defer func() { observe("save_intervention", start, err) }()

	if ev.ID == "" || ev.StudentID == "" {
		return ErrInvalidInput
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO interventions (id, student_id, coach, objective, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.StudentID, ev.Coach, ev.Objective, ev.At)
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("postgres: insert intervention: %w", err)
	}
	return nil
}

// Intervention implements Store.Intervention.
func (s *PostgresStore) Intervention(ctx context.Context, id string) (model.InterventionEvent, error) {
	var ev model.InterventionEvent
	err := s.pool.QueryRow(ctx, `
		SELECT id, student_id, coach, objective, occurred_at FROM interventions WHERE id = $1
	`, id).Scan(&ev.ID, &ev.StudentID, &ev.Coach, &ev.Objective, &ev.At)
	if IsNoRows(err) {
		return model.InterventionEvent{}, ErrNotFound
	}
	if err != nil {
		return model.InterventionEvent{}, fmt.Errorf("postgres: get intervention: %w", err)
	}
	return ev, nil
}

// Interventions implements Store.Interventions.
func (s *PostgresStore) Interventions(ctx context.Context) ([]model.InterventionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, student_id, coach, objective, occurred_at FROM interventions ORDER BY occurred_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list interventions: %w", err)
	}
	defer rows.Close()

	var out []model.InterventionEvent
	for rows.Next() {
		var ev model.InterventionEvent
		if err := rows.Scan(&ev.ID, &ev.StudentID, &ev.Coach, &ev.Objective, &ev.At); err != nil {
			return nil, fmt.Errorf("postgres: scan intervention: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count implements Store.Count. Errors count as zero.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM student_records`).Scan(&n); err != nil {
		metrics.RecordError("repository", "count")
		return 0
	}
	return n
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
