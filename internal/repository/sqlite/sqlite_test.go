package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/watch-storefront/internal/apperror"
	"github.com/sakif/watch-storefront/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// ":memory:" gives every test a fresh, isolated database that disappears
// when the connection closes. The schema is the real one from migrate().
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test db")
	t.Cleanup(func() { db.Close() })
	return db
}

// newMockDB wires a *DB to go-sqlmock for driver failures that a real SQLite
// database cannot be coaxed into producing.
func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

func strPtr(s string) *string { return &s }

func TestNew_RunsMigrationsIdempotently(t *testing.T) {
	db := newTestDB(t)

	// Running migrate a second time must not fail.
	require.NoError(t, db.migrate())
	require.NoError(t, db.PingContext(context.Background()))
}

// =========================================================================
// USERS
// =========================================================================

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	u := &model.User{Name: "Test User", Email: email, PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	u := createTestUser(t, db, "ana@example.com")

	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, u.CreatedAt.Location())

	got, err := db.GetUserByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Nil(t, got.GitHubID)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dup@example.com")

	err := db.CreateUser(context.Background(), &model.User{Name: "Other", Email: "dup@example.com"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
	assert.Equal(t, "USER_ALREADY_EXISTS", apperror.CodeOf(err))
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = db.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = db.GetUserByGitHubID(ctx, 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestLinkGitHub(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	first := createTestUser(t, db, "first@example.com")
	second := createTestUser(t, db, "second@example.com")

	require.NoError(t, db.LinkGitHub(ctx, first.ID, 777))

	got, err := db.GetUserByGitHubID(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	require.NotNil(t, got.GitHubID)
	assert.Equal(t, int64(777), *got.GitHubID)

	t.Run("github id already linked elsewhere", func(t *testing.T) {
		err := db.LinkGitHub(ctx, second.ID, 777)
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := db.LinkGitHub(ctx, "nope", 888)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

// =========================================================================
// CATALOG DOWNLOADS
// =========================================================================

func TestCreateDownload_UserAndAnonymous(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	owned := &model.CatalogDownload{UserID: strPtr("u1"), CatalogType: model.CatalogPremium}
	require.NoError(t, db.CreateDownload(ctx, owned))
	assert.NotEmpty(t, owned.ID)
	assert.False(t, owned.DownloadedAt.IsZero())

	anon := &model.CatalogDownload{Email: strPtr("guest@example.com"), CatalogType: model.CatalogPublic}
	require.NoError(t, db.CreateDownload(ctx, anon))

	list, err := db.ListDownloadsByUser(ctx, "u1", defaultPage)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.CatalogPremium, list[0].CatalogType)
	assert.Nil(t, list[0].Email)
	assert.Nil(t, list[0].ReferredBy)
}

func TestCreateDownload_StorageConstraints(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		d    model.CatalogDownload
	}{
		{"neither user nor email", model.CatalogDownload{CatalogType: model.CatalogPublic}},
		{"both user and email", model.CatalogDownload{UserID: strPtr("u1"), Email: strPtr("a@b.co"), CatalogType: model.CatalogPublic}},
		{"anonymous premium", model.CatalogDownload{Email: strPtr("a@b.co"), CatalogType: model.CatalogPremium}},
		{"unknown type", model.CatalogDownload{UserID: strPtr("u1"), CatalogType: "deluxe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.d
			assert.Error(t, db.CreateDownload(ctx, &d))
		})
	}
}

func TestCreateDownload_DuplicateReferral(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.CatalogDownload{Email: strPtr("friend@example.com"), CatalogType: model.CatalogPublic, ReferredBy: strPtr("ref-1")}
	require.NoError(t, db.CreateDownload(ctx, first))

	again := &model.CatalogDownload{Email: strPtr("friend@example.com"), CatalogType: model.CatalogPublic, ReferredBy: strPtr("ref-1")}
	err := db.CreateDownload(ctx, again)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, "ALREADY_REFERRED", apperror.CodeOf(err))

	// Same email, different referrer, and unreferred repeats are all fine.
	other := &model.CatalogDownload{Email: strPtr("friend@example.com"), CatalogType: model.CatalogPublic, ReferredBy: strPtr("ref-2")}
	require.NoError(t, db.CreateDownload(ctx, other))
	for i := 0; i < 2; i++ {
		plain := &model.CatalogDownload{Email: strPtr("friend@example.com"), CatalogType: model.CatalogPublic}
		require.NoError(t, db.CreateDownload(ctx, plain))
	}

	exists, err := db.ReferredDownloadExists(ctx, "friend@example.com", "ref-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = db.ReferredDownloadExists(ctx, "stranger@example.com", "ref-1")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := db.CountDownloadsReferredBy(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListDownloadsByUser_OrderAndPaging(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		d := &model.CatalogDownload{
			UserID:       strPtr("u1"),
			CatalogType:  model.CatalogPublic,
			DownloadedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.CreateDownload(ctx, d))
	}

	page, err := db.ListDownloadsByUser(ctx, "u1", pageOf(2, 1))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].DownloadedAt.Equal(base.Add(3*time.Hour)))
	assert.True(t, page[1].DownloadedAt.Equal(base.Add(2*time.Hour)))

	empty, err := db.ListDownloadsByUser(ctx, "nobody", defaultPage)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCreateDownload_DriverError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO catalog_downloads").WillReturnError(errors.New("disk I/O error"))

	err := db.CreateDownload(context.Background(), &model.CatalogDownload{UserID: strPtr("u1"), CatalogType: model.CatalogPublic})

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrConflict)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountDownloadsReferredBy_DriverError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))

	_, err := db.CountDownloadsReferredBy(context.Background(), "ref-1")

	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
