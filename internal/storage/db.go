package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"groupwatch/internal"
	"groupwatch/internal/pipeline"
)

// DB is the SQLite adapter.
type DB struct {
	conn *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create dir for %s", path)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: open %s", path)
	}

	if _, err := conn.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "storage: enable wal")
	}

	db := &DB{conn: conn}
	if err := db.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS canonical_groups (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL CHECK (name <> ''),
  nameOrigin TEXT NOT NULL,
  sourceSheet TEXT NOT NULL,
  sourceRow INTEGER NOT NULL,
  memberCount INTEGER NOT NULL DEFAULT 0 CHECK (memberCount >= 0),
  platformsJson TEXT NOT NULL,
  socialLinksJson TEXT NOT NULL,
  phone TEXT,
  email TEXT,
  location TEXT,
  influencerRefs TEXT,
  type TEXT NOT NULL,
  riskLevel TEXT NOT NULL,
  category TEXT NOT NULL,
  monitoringEnabled INTEGER NOT NULL,
  status TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_groups_source ON canonical_groups(sourceSheet, sourceRow);
CREATE INDEX IF NOT EXISTS idx_groups_risk ON canonical_groups(riskLevel);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return eris.Wrap(err, "storage: migrate sqlite")
	}
	return nil
}

func (d *DB) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, chunk := range chunks(ids, lookupChunk) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT id FROM canonical_groups WHERE id IN (?` + strings.Repeat(`, ?`, len(chunk)-1) + `)`
		rows, err := d.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, eris.Wrap(err, "storage: query existing ids")
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, eris.Wrap(err, "storage: scan existing id")
			}
			out[id] = true
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, eris.Wrap(err, "storage: iterate existing ids")
		}
	}
	return out, nil
}

// InsertGroup stores g unless its id is already present, in which case it
// returns pipeline.ErrWriteConflict and leaves the stored row untouched.
func (d *DB) InsertGroup(ctx context.Context, g internal.CanonicalGroup) error {
	rec, err := encodeGroup(g)
	if err != nil {
		return err
	}
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO canonical_groups (
  id, name, nameOrigin, sourceSheet, sourceRow, memberCount,
  platformsJson, socialLinksJson, phone, email, location, influencerRefs,
  type, riskLevel, category, monitoringEnabled, status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`,
		g.ID, g.Name, string(g.NameOrigin), g.SourceSheet, g.SourceRow, g.MemberCount,
		string(rec.platforms), string(rec.links), g.Contact.Phone, g.Contact.Email, g.Location, g.InfluencerRefs,
		string(g.Type), string(g.RiskLevel), g.Category, g.MonitoringEnabled, string(g.Status),
	)
	if err != nil {
		return eris.Wrapf(err, "storage: insert group %s", g.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "storage: insert group %s", g.ID)
	}
	if n == 0 {
		return eris.Wrapf(pipeline.ErrWriteConflict, "storage: group %s", g.ID)
	}
	return nil
}

func (d *DB) ListGroups(ctx context.Context) ([]internal.CanonicalGroup, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, name, nameOrigin, sourceSheet, sourceRow, memberCount,
       platformsJson, socialLinksJson, phone, email, location, influencerRefs,
       type, riskLevel, category, monitoringEnabled, status
FROM canonical_groups
ORDER BY sourceSheet, sourceRow`)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list groups")
	}
	defer rows.Close()

	var out []internal.CanonicalGroup
	for rows.Next() {
		var g internal.CanonicalGroup
		var platforms, links string
		var phone, email, location, influencers sql.NullString
		if err := rows.Scan(
			&g.ID, &g.Name, &g.NameOrigin, &g.SourceSheet, &g.SourceRow, &g.MemberCount,
			&platforms, &links, &phone, &email, &location, &influencers,
			&g.Type, &g.RiskLevel, &g.Category, &g.MonitoringEnabled, &g.Status,
		); err != nil {
			return nil, eris.Wrap(err, "storage: scan group")
		}
		if err := decodeGroupJSON(&g, []byte(platforms), []byte(links)); err != nil {
			return nil, err
		}
		g.Contact.Phone = nullString(phone)
		g.Contact.Email = nullString(email)
		g.Location = nullString(location)
		g.InfluencerRefs = nullString(influencers)
		out = append(out, g)
	}

	return out, eris.Wrap(rows.Err(), "storage: iterate groups")
}

func (d *DB) InsertRun(ctx context.Context, report internal.AuditReport) error {
	rec, err := encodeRun(report)
	if err != nil {
		return err
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "storage: begin run")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (traceId, timingsJson, countsJson) VALUES (?, ?, ?)`,
		rec.traceID, string(rec.timings), string(rec.counts)); err != nil {
		return eris.Wrap(err, "storage: insert run")
	}
	if _, err := tx.ExecContext(ctx, upsertMetadataSQLite, MetaLastRun, rec.traceID); err != nil {
		return eris.Wrap(err, "storage: record last run")
	}
	return eris.Wrap(tx.Commit(), "storage: commit run")
}

const upsertMetadataSQLite = `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, upsertMetadataSQLite, key, value)
	return eris.Wrapf(err, "storage: set metadata %s", key)
}

func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "storage: get metadata %s", key)
	}
	return &value, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
