package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"groupwatch/internal"
	"groupwatch/internal/pipeline"
	"groupwatch/internal/util"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockPostgres(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgres(mock), mock
}

func anyArgs(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = pgxmock.AnyArg()
	}
	return out
}

func TestPostgresMigrate_Fresh(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS canonical_groups").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("001_groups.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, pg.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate_AlreadyApplied(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_groups.sql"))
	mock.ExpectCommit()

	require.NoError(t, pg.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate_FailureRollsBackAndReleasesLock(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS canonical_groups").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := pg.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_groups.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExistingIDs(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT id FROM canonical_groups").
		WithArgs([]string{"a", "b", "c"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("b"))

	got, err := pg.ExistingIDs(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"b": true}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExistingIDs_Error(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT id FROM canonical_groups").
		WithArgs([]string{"a"}).
		WillReturnError(errors.New("connection reset"))

	_, err := pg.ExistingIDs(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresInsertGroup(t *testing.T) {
	pg, mock := newMockPostgres(t)
	g := sampleGroup("g-1", 2)

	mock.ExpectExec("INSERT INTO canonical_groups").
		WithArgs(anyArgs(17)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, pg.InsertGroup(context.Background(), g))

	mock.ExpectExec("INSERT INTO canonical_groups").
		WithArgs(anyArgs(17)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	err := pg.InsertGroup(context.Background(), g)
	assert.ErrorIs(t, err, pipeline.ErrWriteConflict)

	mock.ExpectExec("INSERT INTO canonical_groups").
		WithArgs(anyArgs(17)...).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	err = pg.InsertGroup(context.Background(), g)
	assert.ErrorIs(t, err, pipeline.ErrWriteConflict)

	mock.ExpectExec("INSERT INTO canonical_groups").
		WithArgs(anyArgs(17)...).
		WillReturnError(&pgconn.PgError{Code: "23514", Message: "check constraint"})
	err = pg.InsertGroup(context.Background(), g)
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrWriteConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListGroups(t *testing.T) {
	pg, mock := newMockPostgres(t)

	cols := []string{
		"id", "name", "name_origin", "source_sheet", "source_row", "member_count",
		"platforms", "social_links", "phone", "email", "location", "influencer_refs",
		"type", "risk_level", "category", "monitoring_enabled", "status",
	}
	var none *string
	mock.ExpectQuery("SELECT id, name, name_origin").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"g-1", "Group: 12345", "DERIVED_FROM_URL", "Extremist Groups", 7, 0,
			`["facebook"]`, `{"facebook":"https://facebook.com/groups/12345"}`, none, util.StringPtr("a@b.org"), none, none,
			"OTHER", "HIGH", "Extremist Groups", true, "ACTIVE",
		))

	groups, err := pg.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, internal.NameFromURL, g.NameOrigin)
	assert.Equal(t, internal.RiskHigh, g.RiskLevel)
	assert.True(t, g.MonitoringEnabled)
	assert.Equal(t, []internal.Platform{internal.PlatformFacebook}, g.Platforms)
	assert.Equal(t, "https://facebook.com/groups/12345", g.SocialLinks[internal.PlatformFacebook])
	require.NotNil(t, g.Contact.Email)
	assert.Nil(t, g.Contact.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertRun(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WithArgs("trace-9", pgxmock.AnyArg(), pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO metadata").WithArgs(MetaLastRun, "trace-9").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, pg.InsertRun(context.Background(), internal.AuditReport{TraceID: "trace-9"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMetadata(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT value FROM metadata").WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("v"))
	mock.ExpectQuery("SELECT value FROM metadata").WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	v, err := pg.GetMetadata(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "v", *v)

	v, err = pg.GetMetadata(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}
