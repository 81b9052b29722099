package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/hrapp/hr-backend/models"
	"github.com/hrapp/hr-backend/repositories"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var userRowColumns = []string{
	"id", "login", "password_hash", "first_name", "last_name", "email", "activated",
	"lang_key", "created_by", "created_at", "updated_by", "updated_at",
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return WrapDB(sqlDB, zap.NewNop()), mock
}

func userRow(id uuid.UUID, login, email string, activated bool) *sqlmock.Rows {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(userRowColumns).
		AddRow(id.String(), login, "$2a$10$hash", "", "", email, activated, "en", "system", now, "", now)
}

func TestUserRepository_FindByLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("returns user with authorities", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("FROM sec_user WHERE login = $1")).
			WithArgs("alice").
			WillReturnRows(userRow(id, "alice", "alice@example.com", true))
		mock.ExpectQuery(regexp.QuoteMeta("FROM sec_user_authority")).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "authority_name"}).
				AddRow(id.String(), "ROLE_ADMIN").
				AddRow(id.String(), "ROLE_USER"))

		user, err := repo.FindByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice", user.Login)
		assert.True(t, user.Activated)
		assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, user.Authorities)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM sec_user WHERE login = $1")).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		user, err := repo.FindByLogin(ctx, "ghost")
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.Nil(t, user)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		dbErr := errors.New("connection reset")

		mock.ExpectQuery(regexp.QuoteMeta("FROM sec_user WHERE login = $1")).
			WillReturnError(dbErr)

		_, err := repo.FindByLogin(ctx, "alice")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestUserRepository_FindByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("Alice@Example.com").
		WillReturnRows(userRow(id, "alice", "alice@example.com", false))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sec_user_authority")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "authority_name"}))

	user, err := repo.FindByEmail(context.Background(), "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Login)
	assert.False(t, user.Activated)
	assert.Empty(t, user.Authorities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts user and authority links", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("admin", "admin@example.com", "$2a$10$hash", "system")
		user.Activated = true
		user.Authorities = []string{"ROLE_USER", "ROLE_ADMIN"}

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sec_user (")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sec_user_authority")).
			WithArgs(user.ID, "ROLE_ADMIN").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sec_user_authority")).
			WithArgs(user.ID, "ROLE_USER").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := models.NewUser("admin", "", "$2a$10$hash", "system")

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sec_user (")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "sec_user_login_key"})

		err := repo.Create(ctx, user)
		assert.ErrorIs(t, err, repositories.ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()

	updated := func() *models.User {
		user := models.NewUser("bob", "bob@example.com", "$2a$10$hash", "system")
		user.UpdatedBy = "admin"
		user.Authorities = []string{"ROLE_USER"}
		return user
	}

	t.Run("rewrites row and replaces authority links", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())
		user := updated()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE sec_user")).
			WithArgs(user.ID, "bob", nil, nil, "bob@example.com", false, nil, "admin", user.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sec_user_authority WHERE user_id = $1")).
			WithArgs(user.ID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sec_user_authority")).
			WithArgs(user.ID, "ROLE_USER").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(ctx, user))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec(regexp.QuoteMeta("UPDATE sec_user")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, updated())
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("email collision names the constraint", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db, zap.NewNop())

		mock.ExpectExec(regexp.QuoteMeta("UPDATE sec_user")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_sec_user_email_lower"})

		err := repo.Update(ctx, updated())
		assert.ErrorIs(t, err, repositories.ErrDuplicate)

		var dup *repositories.DuplicateError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "idx_sec_user_email_lower", dup.Constraint)
	})
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sec_user WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sec_user WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListActivated(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()
	a := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, login FROM sec_user WHERE activated = true ORDER BY login LIMIT $1 OFFSET $2")).
		WithArgs(5, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "login"}).AddRow(a.String(), "alice"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sec_user WHERE activated = true")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	users, err := repo.ListActivated(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, a, users[0].ID)
	assert.Equal(t, "alice", users[0].Login)
	assert.True(t, users[0].Activated)
	assert.Empty(t, users[0].Authorities)

	count, err := repo.CountActivated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListAndCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	rows := userRow(a, "admin", "", true)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows.AddRow(b.String(), "bob", "$2a$10$hash", "", "", "", false, "", "admin", now, "", now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sec_user ORDER BY login LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sec_user_authority")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "authority_name"}).
			AddRow(a.String(), "ROLE_ADMIN").
			AddRow(b.String(), "ROLE_USER"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sec_user")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	users, err := repo.List(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, []string{"ROLE_ADMIN"}, users[0].Authorities)
	assert.Equal(t, []string{"ROLE_USER"}, users[1].Authorities)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorityRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuthorityRepository(db, zap.NewNop())
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sec_authority (name) VALUES ($1) ON CONFLICT (name) DO NOTHING")).
		WithArgs("ROLE_ADMIN").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM sec_authority ORDER BY name")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ROLE_ADMIN").AddRow("ROLE_USER"))

	require.NoError(t, repo.Ensure(ctx, "ROLE_ADMIN"))

	names, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits and routes queries through the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		authorities := NewAuthorityRepository(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sec_authority")).
			WithArgs("ROLE_USER").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
			_, ok := GetTransactionFromContext(ctx)
			assert.True(t, ok)
			return authorities.Ensure(ctx, "ROLE_USER")
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		fnErr := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
			return fnErr
		})
		assert.ErrorIs(t, err, fnErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin().WillReturnError(errors.New("no connection"))

		called := false
		err := tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestDB_HealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := WrapDB(sqlDB, zap.NewNop())

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
