package storage

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"groupwatch/internal"
	"groupwatch/internal/pipeline"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationLockID = 4207311

// Pool is the subset of *pgxpool.Pool the adapter uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres is the PostgreSQL adapter.
type Postgres struct {
	pool Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "storage: parse database url")
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "storage: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "storage: ping postgres")
	}

	pg := NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pg, nil
}

func NewPostgres(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Migrate applies pending migrations in filename order inside one
// transaction, recording each in schema_migrations. The advisory lock is
// transaction scoped, so it lives on the same connection and is released on
// commit or rollback.
func (p *Postgres) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "storage.migrate"))

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "storage: begin migration")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "storage: acquire migration lock")
	}

	if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
  filename TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return eris.Wrap(err, "storage: create schema_migrations")
	}

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "storage: read migrations")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var done []string
	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "storage: read migration %s", name)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "storage: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			return eris.Wrapf(err, "storage: record migration %s", name)
		}
		done = append(done, name)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "storage: commit migrations")
	}
	for _, name := range done {
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

func appliedMigrations(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "storage: list applied migrations")
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "storage: scan migration")
		}
		out[name] = true
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate migrations")
}

func (p *Postgres) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, chunk := range chunks(ids, lookupChunk) {
		rows, err := p.pool.Query(ctx, "SELECT id FROM canonical_groups WHERE id = ANY($1)", chunk)
		if err != nil {
			return nil, eris.Wrap(err, "storage: query existing ids")
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "storage: scan existing id")
			}
			out[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "storage: iterate existing ids")
		}
	}
	return out, nil
}

const insertGroupPG = `INSERT INTO canonical_groups (
  id, name, name_origin, source_sheet, source_row, member_count,
  platforms, social_links, phone, email, location, influencer_refs,
  type, risk_level, category, monitoring_enabled, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (id) DO NOTHING`

// InsertGroup stores g unless its id is already present, in which case it
// returns pipeline.ErrWriteConflict.
func (p *Postgres) InsertGroup(ctx context.Context, g internal.CanonicalGroup) error {
	rec, err := encodeGroup(g)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, insertGroupPG,
		g.ID, g.Name, string(g.NameOrigin), g.SourceSheet, g.SourceRow, g.MemberCount,
		string(rec.platforms), string(rec.links), g.Contact.Phone, g.Contact.Email, g.Location, g.InfluencerRefs,
		string(g.Type), string(g.RiskLevel), g.Category, g.MonitoringEnabled, string(g.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return eris.Wrapf(pipeline.ErrWriteConflict, "storage: group %s", g.ID)
		}
		return eris.Wrapf(err, "storage: insert group %s", g.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(pipeline.ErrWriteConflict, "storage: group %s", g.ID)
	}
	return nil
}

func (p *Postgres) ListGroups(ctx context.Context) ([]internal.CanonicalGroup, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, name_origin, source_sheet, source_row, member_count,
       platforms::text, social_links::text, phone, email, location, influencer_refs,
       type, risk_level, category, monitoring_enabled, status
FROM canonical_groups
ORDER BY source_sheet, source_row`)
	if err != nil {
		return nil, eris.Wrap(err, "storage: list groups")
	}
	defer rows.Close()

	var out []internal.CanonicalGroup
	for rows.Next() {
		var g internal.CanonicalGroup
		var origin, typ, risk, status string
		var platforms, links string
		if err := rows.Scan(
			&g.ID, &g.Name, &origin, &g.SourceSheet, &g.SourceRow, &g.MemberCount,
			&platforms, &links, &g.Contact.Phone, &g.Contact.Email, &g.Location, &g.InfluencerRefs,
			&typ, &risk, &g.Category, &g.MonitoringEnabled, &status,
		); err != nil {
			return nil, eris.Wrap(err, "storage: scan group")
		}
		g.NameOrigin = internal.NameOrigin(origin)
		g.Type = internal.GroupType(typ)
		g.RiskLevel = internal.RiskLevel(risk)
		g.Status = internal.GroupStatus(status)
		if err := decodeGroupJSON(&g, []byte(platforms), []byte(links)); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, eris.Wrap(rows.Err(), "storage: iterate groups")
}

const upsertMetadataPG = `INSERT INTO metadata (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

func (p *Postgres) InsertRun(ctx context.Context, report internal.AuditReport) error {
	rec, err := encodeRun(report)
	if err != nil {
		return err
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "storage: begin run")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "INSERT INTO runs (trace_id, timings, counts) VALUES ($1, $2, $3)",
		rec.traceID, string(rec.timings), string(rec.counts)); err != nil {
		return eris.Wrap(err, "storage: insert run")
	}
	if _, err := tx.Exec(ctx, upsertMetadataPG, MetaLastRun, rec.traceID); err != nil {
		return eris.Wrap(err, "storage: record last run")
	}
	return eris.Wrap(tx.Commit(ctx), "storage: commit run")
}

func (p *Postgres) SetMetadata(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, upsertMetadataPG, key, value)
	return eris.Wrapf(err, "storage: set metadata %s", key)
}

func (p *Postgres) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := p.pool.QueryRow(ctx, "SELECT value FROM metadata WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "storage: get metadata %s", key)
	}
	return &value, nil
}
