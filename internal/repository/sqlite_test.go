package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinyakov/boxcatalog/internal/db"
	"github.com/atinyakov/boxcatalog/internal/models"
	"github.com/atinyakov/boxcatalog/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "catalog.db") + "?_foreign_keys=on"
	conn, err := db.Init("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func countRows(t *testing.T, conn *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestSQLite_RegisterAndList(t *testing.T) {
	conn := openSQLite(t)
	repo := repository.NewCatalogRepository(conn)
	ctx := context.Background()

	peek, err := repo.PeekNextSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), peek)

	in := models.TripleBoxInput{
		Subject:   "Contracts",
		EntryDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Location:  "Shelf 1",
	}
	first, err := repo.CreateTripleBox(ctx, in, 2024)
	require.NoError(t, err)
	assert.Equal(t, "T-2024-001", first.Code)

	in.Location = "Shelf 1"
	second, err := repo.CreateTripleBox(ctx, in, 2024)
	require.NoError(t, err)
	assert.Equal(t, "T-2024-002", second.Code)
	assert.Equal(t, first.SubjectID, second.SubjectID)
	assert.NotEqual(t, first.LocationID, second.LocationID)

	assert.Equal(t, 1, countRows(t, conn, "subjects"))
	assert.Equal(t, 2, countRows(t, conn, "locations"))
	assert.Equal(t, 2, countRows(t, conn, "triple_boxes"))
	assert.Equal(t, 6, countRows(t, conn, "individual_boxes"))

	rows, err := repo.ListBoxes(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	want := []string{"T-2024-001-A", "T-2024-001-B", "T-2024-001-C", "T-2024-002-A", "T-2024-002-B", "T-2024-002-C"}
	for i, row := range rows {
		assert.Equal(t, want[i], row.BoxCode)
		assert.Equal(t, "Contracts", row.Subject)
		assert.Equal(t, "2024-03-15", row.EntryDate)
		assert.Equal(t, "available", row.Status)
	}

	peek, err = repo.PeekNextSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), peek)
}

func TestSQLite_SequenceIsGlobalAcrossYears(t *testing.T) {
	conn := openSQLite(t)
	repo := repository.NewCatalogRepository(conn)
	ctx := context.Background()

	in := models.TripleBoxInput{Subject: "Tax", EntryDate: time.Now(), Location: "A"}
	_, err := repo.CreateTripleBox(ctx, in, 2024)
	require.NoError(t, err)

	next, err := repo.CreateTripleBox(ctx, in, 2025)
	require.NoError(t, err)
	assert.Equal(t, "T-2025-002", next.Code)
}

func TestSQLite_DuplicateRollsBackAndSyncRecovers(t *testing.T) {
	conn := openSQLite(t)
	repo := repository.NewCatalogRepository(conn)
	ctx := context.Background()

	// A row written outside the sequence, e.g. by an import.
	conn.MustExec(`INSERT INTO subjects (name) VALUES ('Imported')`)
	conn.MustExec(`INSERT INTO locations (label) VALUES ('Dock')`)
	conn.MustExec(`INSERT INTO triple_boxes (code, year, subject_id, entry_date, location_id, notes)
		VALUES ('T-2024-001', 2024, 1, '2024-01-01', 1, '')`)

	in := models.TripleBoxInput{Subject: "Contracts", EntryDate: time.Now(), Location: "Shelf 9"}
	_, err := repo.CreateTripleBox(ctx, in, 2024)
	require.ErrorIs(t, err, models.ErrDuplicateCode)

	// Nothing from the failed attempt survives, the sequence number included.
	assert.Equal(t, 1, countRows(t, conn, "subjects"))
	assert.Equal(t, 1, countRows(t, conn, "locations"))
	assert.Equal(t, 0, countRows(t, conn, "individual_boxes"))
	peek, err := repo.PeekNextSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), peek)

	last, err := repo.SyncSequence(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)

	triple, err := repo.CreateTripleBox(ctx, in, 2024)
	require.NoError(t, err)
	assert.Equal(t, "T-2024-002", triple.Code)
}

func TestSQLite_SyncSequenceNeverLowers(t *testing.T) {
	conn := openSQLite(t)
	repo := repository.NewCatalogRepository(conn)
	conn.MustExec(`UPDATE triple_sequence SET last_no = 40 WHERE name = 'triple'`)

	last, err := repo.SyncSequence(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(40), last)
}

func TestSQLite_SessionUpsertKeepsLoginTime(t *testing.T) {
	conn := openSQLite(t)
	repo := repository.NewAuthRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, models.User{Username: "alice", PasswordHash: "h", Role: models.RoleAdmin}))
	assert.ErrorIs(t, repo.CreateUser(ctx, models.User{Username: "alice", PasswordHash: "h2", Role: models.RoleUser}), models.ErrUserExists)

	first := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpsertSession(ctx, models.ActiveSession{
		Username: "alice", TokenHash: "one", LoginTime: first, LastActivity: first,
	}))

	second := first.Add(30 * time.Minute)
	require.NoError(t, repo.UpsertSession(ctx, models.ActiveSession{
		Username: "alice", TokenHash: "two", LoginTime: second, LastActivity: second,
	}))

	s, err := repo.GetSession(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "two", s.TokenHash)
	assert.True(t, s.LoginTime.Equal(first), "login time %v", s.LoginTime)
	assert.True(t, s.LastActivity.Equal(second), "last activity %v", s.LastActivity)
	assert.Equal(t, 1, countRows(t, conn, "active_sessions"))

	require.NoError(t, repo.DeleteSession(ctx, "alice"))
	_, err = repo.GetSession(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}
