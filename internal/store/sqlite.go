package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/glampguide/funnel-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// single-operator runs where a Postgres instance is not worth standing up.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
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
	validated_at          DATETIME,
	extracted_at          DATETIME,
	resolution_status     TEXT NOT NULL DEFAULT '',
	resolved_at           DATETIME,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_validation_status ON leads(validation_status);
CREATE INDEX IF NOT EXISTS idx_leads_resolution ON leads(validation_status, resolution_status);

CREATE TABLE IF NOT EXISTS resolution_outcomes (
	id             TEXT PRIMARY KEY,
	lead_id        INTEGER NOT NULL REFERENCES leads(id),
	classification TEXT NOT NULL,
	reason         TEXT NOT NULL,
	needs_deal     INTEGER NOT NULL,
	matched_ids    TEXT,
	contact_id     TEXT NOT NULL DEFAULT '',
	deal_id        TEXT NOT NULL DEFAULT '',
	match_type     TEXT NOT NULL DEFAULT '',
	resolved_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_lead_id ON resolution_outcomes(lead_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_reason ON resolution_outcomes(reason);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (email, phone, first_name, last_name, property_name, city, country, raw_scrap)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET
			phone = excluded.phone, first_name = excluded.first_name, last_name = excluded.last_name,
			property_name = excluded.property_name, city = excluded.city, country = excluded.country,
			raw_scrap = excluded.raw_scrap`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	var n int64
	for _, l := range leads {
		if l.Email == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, l.Email, l.Phone, l.FirstName, l.LastName, l.PropertyName, l.City, l.Country, l.RawScrap)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert lead %s", l.Email)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return n, nil
}

const sqliteLeadColumns = `id, email, phone, first_name, last_name, property_name, city, country, raw_scrap,
	validation_status, validation_sub_status, validated_at, resolution_status, resolved_at, created_at`

func (s *SQLiteStore) FetchUnextracted(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads
		 WHERE raw_scrap <> '' AND extracted_at IS NULL ORDER BY id LIMIT ?`,
		fetchLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch unextracted")
	}
	return scanSQLiteLeads(rows)
}

func (s *SQLiteStore) SetExtracted(ctx context.Context, leadID int64, fields model.ExtractedFields) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			first_name    = CASE WHEN ? <> '' THEN ? ELSE first_name END,
			last_name     = CASE WHEN ? <> '' THEN ? ELSE last_name END,
			property_name = CASE WHEN ? <> '' THEN ? ELSE property_name END,
			city          = CASE WHEN ? <> '' THEN ? ELSE city END,
			country       = CASE WHEN ? <> '' THEN ? ELSE country END,
			phone         = CASE WHEN ? <> '' THEN ? ELSE phone END,
			extracted_at  = ?
		 WHERE id = ?`,
		fields.FirstName, fields.FirstName, fields.LastName, fields.LastName,
		fields.PropertyName, fields.PropertyName, fields.City, fields.City,
		fields.Country, fields.Country, fields.Phone, fields.Phone,
		time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set extracted %d", leadID)
	}
	return checkRowsAffected(res, leadID)
}

func (s *SQLiteStore) FetchUnvalidated(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads
		 WHERE validation_status = '' AND email <> '' ORDER BY id LIMIT ?`,
		fetchLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch unvalidated")
	}
	return scanSQLiteLeads(rows)
}

func (s *SQLiteStore) SetValidation(ctx context.Context, leadID int64, status model.ValidationStatus, subStatus string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET validation_status = ?, validation_sub_status = ?, validated_at = ? WHERE id = ?`,
		string(status), subStatus, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set validation %d", leadID)
	}
	return checkRowsAffected(res, leadID)
}

func (s *SQLiteStore) FetchEligible(ctx context.Context, limit int, startID int64) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads
		 WHERE validation_status = 'valid' AND resolution_status = '' AND id > ? ORDER BY id LIMIT ?`,
		startID, fetchLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch eligible")
	}
	return scanSQLiteLeads(rows)
}

func (s *SQLiteStore) CommitOutcome(ctx context.Context, leadID int64, outcome *model.Outcome) error {
	matchedJSON, err := json.Marshal(outcome.MatchedIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal matched ids")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin commit tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO resolution_outcomes
		 (id, lead_id, classification, reason, needs_deal, matched_ids, contact_id, deal_id, match_type, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), leadID, string(outcome.Classification), string(outcome.Reason),
		outcome.NeedsDeal, string(matchedJSON), outcome.ContactID, outcome.DealID, string(outcome.MatchType),
		outcome.ResolvedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert outcome for lead %d", leadID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE leads SET resolution_status = 'resolved', resolved_at = ?
		 WHERE id = ? AND resolution_status = ''`,
		outcome.ResolvedAt, leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark resolved %d", leadID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Errorf("lead already resolved or missing: %d", leadID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit outcome tx")
}

func (s *SQLiteStore) StageCounts(ctx context.Context) (*StageCounts, error) {
	var sc StageCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
			sum(CASE WHEN validation_status = '' THEN 1 ELSE 0 END),
			sum(CASE WHEN validation_status = 'valid' THEN 1 ELSE 0 END),
			sum(CASE WHEN validation_status IN ('invalid', 'catch-all') THEN 1 ELSE 0 END),
			sum(CASE WHEN validation_status = 'valid' AND resolution_status = '' THEN 1 ELSE 0 END),
			sum(CASE WHEN resolution_status = 'resolved' THEN 1 ELSE 0 END)
		 FROM leads`,
	).Scan(&sc.Total, &sc.PendingValidation, &sc.Valid, &sc.Invalid, &sc.PendingResolution, &sc.Resolved)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stage counts")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT reason, count(*) FROM resolution_outcomes GROUP BY reason`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: outcome counts")
	}
	defer rows.Close()

	sc.ByReason = make(map[model.Reason]int)
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome count")
		}
		sc.ByReason[model.Reason(reason)] = count
	}
	return &sc, eris.Wrap(rows.Err(), "sqlite: outcome counts iterate")
}

func checkRowsAffected(res sql.Result, leadID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Errorf("lead not found: %d", leadID)
	}
	return nil
}

func scanSQLiteLeads(rows *sql.Rows) ([]model.Lead, error) {
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var validatedAt, resolvedAt sql.NullTime
		var validation, resolution string
		if err := rows.Scan(
			&l.ID, &l.Email, &l.Phone, &l.FirstName, &l.LastName, &l.PropertyName, &l.City, &l.Country,
			&l.RawScrap, &validation, &l.ValidationSubStatus, &validatedAt,
			&resolution, &resolvedAt, &l.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		l.ValidationStatus = model.ValidationStatus(validation)
		l.ResolutionStatus = model.ResolutionStatus(resolution)
		if validatedAt.Valid {
			t := validatedAt.Time
			l.ValidatedAt = &t
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			l.ResolvedAt = &t
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: leads iterate")
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
