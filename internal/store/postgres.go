package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/glampguide/funnel-cli/internal/db"
	"github.com/glampguide/funnel-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const leadColumns = `id, email, phone, first_name, last_name, property_name, city, country, raw_scrap,
	validation_status, validation_sub_status, validated_at, resolution_status, resolved_at, created_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"fetch_eligible": `SELECT ` + leadColumns + ` FROM leads
		WHERE validation_status = 'valid' AND resolution_status = '' AND id > $2 ORDER BY id LIMIT $1`,
	"fetch_unvalidated": `SELECT ` + leadColumns + ` FROM leads
		WHERE validation_status = '' AND email <> '' ORDER BY id LIMIT $1`,
	"set_validation": `UPDATE leads SET validation_status = $1, validation_sub_status = $2, validated_at = $3 WHERE id = $4`,
	"mark_resolved": `UPDATE leads SET resolution_status = 'resolved', resolved_at = $1
		WHERE id = $2 AND resolution_status = ''`,
	"insert_outcome": `INSERT INTO resolution_outcomes
		(id, lead_id, classification, reason, needs_deal, matched_ids, contact_id, deal_id, match_type, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	email                 TEXT NOT NULL UNIQUE,
	phone                 TEXT NOT NULL DEFAULT '',
	first_name            TEXT NOT NULL DEFAULT '',
	last_name             TEXT NOT NULL DEFAULT '',
	property_name         TEXT NOT NULL DEFAULT '',
	city                  TEXT NOT NULL DEFAULT '',
	country               TEXT NOT NULL DEFAULT '',
	raw_scrap             TEXT NOT NULL DEFAULT '',
	validation_status     TEXT NOT NULL DEFAULT '',
	validation_sub_status TEXT NOT NULL DEFAULT '',
	validated_at          TIMESTAMPTZ,
	extracted_at          TIMESTAMPTZ,
	resolution_status     TEXT NOT NULL DEFAULT '',
	resolved_at           TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_validation_status ON leads(validation_status);
CREATE INDEX IF NOT EXISTS idx_leads_resolution ON leads(validation_status, resolution_status);

CREATE TABLE IF NOT EXISTS resolution_outcomes (
	id             TEXT PRIMARY KEY,
	lead_id        BIGINT NOT NULL REFERENCES leads(id),
	classification TEXT NOT NULL,
	reason         TEXT NOT NULL,
	needs_deal     BOOLEAN NOT NULL,
	matched_ids    JSONB,
	contact_id     TEXT NOT NULL DEFAULT '',
	deal_id        TEXT NOT NULL DEFAULT '',
	match_type     TEXT NOT NULL DEFAULT '',
	resolved_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_lead_id ON resolution_outcomes(lead_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_reason ON resolution_outcomes(reason);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// upsertColumns are the columns importers may write. Stage-owned fields
// (validation, resolution) are never part of an ingest upsert.
var upsertColumns = []string{"email", "phone", "first_name", "last_name", "property_name", "city", "country", "raw_scrap"}

func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		if l.Email == "" {
			continue
		}
		rows = append(rows, []any{l.Email, l.Phone, l.FirstName, l.LastName, l.PropertyName, l.City, l.Country, l.RawScrap})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      upsertColumns,
		ConflictKeys: []string{"email"},
	}, rows)
}

func (s *PostgresStore) FetchUnextracted(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE raw_scrap <> '' AND extracted_at IS NULL ORDER BY id LIMIT $1`,
		fetchLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch unextracted")
	}
	return scanLeads(rows)
}

func (s *PostgresStore) SetExtracted(ctx context.Context, leadID int64, fields model.ExtractedFields) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
			first_name    = COALESCE(NULLIF($1, ''), first_name),
			last_name     = COALESCE(NULLIF($2, ''), last_name),
			property_name = COALESCE(NULLIF($3, ''), property_name),
			city          = COALESCE(NULLIF($4, ''), city),
			country       = COALESCE(NULLIF($5, ''), country),
			phone         = COALESCE(NULLIF($6, ''), phone),
			extracted_at  = $7
		 WHERE id = $8`,
		fields.FirstName, fields.LastName, fields.PropertyName, fields.City, fields.Country, fields.Phone,
		time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set extracted %d", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %d", leadID)
	}
	return nil
}

func (s *PostgresStore) FetchUnvalidated(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE validation_status = '' AND email <> '' ORDER BY id LIMIT $1`,
		fetchLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch unvalidated")
	}
	return scanLeads(rows)
}

func (s *PostgresStore) SetValidation(ctx context.Context, leadID int64, status model.ValidationStatus, subStatus string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET validation_status = $1, validation_sub_status = $2, validated_at = $3 WHERE id = $4`,
		string(status), subStatus, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set validation %d", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %d", leadID)
	}
	return nil
}

func (s *PostgresStore) FetchEligible(ctx context.Context, limit int, startID int64) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE validation_status = 'valid' AND resolution_status = '' AND id > $2 ORDER BY id LIMIT $1`,
		fetchLimit(limit), startID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch eligible")
	}
	return scanLeads(rows)
}

// CommitOutcome records the outcome and flips the lead to resolved in one
// transaction. The guarded UPDATE makes the flip at most once: a lead
// already resolved by an earlier run is an error, never a second write.
func (s *PostgresStore) CommitOutcome(ctx context.Context, leadID int64, outcome *model.Outcome) error {
	matchedJSON, err := json.Marshal(outcome.MatchedIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal matched ids")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin commit tx")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO resolution_outcomes
		 (id, lead_id, classification, reason, needs_deal, matched_ids, contact_id, deal_id, match_type, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.New().String(), leadID, string(outcome.Classification), string(outcome.Reason),
		outcome.NeedsDeal, matchedJSON, outcome.ContactID, outcome.DealID, string(outcome.MatchType),
		outcome.ResolvedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert outcome for lead %d", leadID)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE leads SET resolution_status = 'resolved', resolved_at = $1
		 WHERE id = $2 AND resolution_status = ''`,
		outcome.ResolvedAt, leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark resolved %d", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead already resolved or missing: %d", leadID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit outcome tx")
}

func (s *PostgresStore) StageCounts(ctx context.Context) (*StageCounts, error) {
	var sc StageCounts
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
			count(*) FILTER (WHERE validation_status = ''),
			count(*) FILTER (WHERE validation_status = 'valid'),
			count(*) FILTER (WHERE validation_status IN ('invalid', 'catch-all')),
			count(*) FILTER (WHERE validation_status = 'valid' AND resolution_status = ''),
			count(*) FILTER (WHERE resolution_status = 'resolved')
		 FROM leads`,
	).Scan(&sc.Total, &sc.PendingValidation, &sc.Valid, &sc.Invalid, &sc.PendingResolution, &sc.Resolved)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stage counts")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT reason, count(*) FROM resolution_outcomes GROUP BY reason`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: outcome counts")
	}
	defer rows.Close()

	sc.ByReason = make(map[model.Reason]int)
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome count")
		}
		sc.ByReason[model.Reason(reason)] = count
	}
	return &sc, eris.Wrap(rows.Err(), "postgres: outcome counts iterate")
}

func fetchLimit(limit int) int {
	if limit <= 0 {
		return 500
	}
	return limit
}

func scanLeads(rows pgx.Rows) ([]model.Lead, error) {
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(
			&l.ID, &l.Email, &l.Phone, &l.FirstName, &l.LastName, &l.PropertyName, &l.City, &l.Country,
			&l.RawScrap, &l.ValidationStatus, &l.ValidationSubStatus, &l.ValidatedAt,
			&l.ResolutionStatus, &l.ResolvedAt, &l.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: leads iterate")
}
