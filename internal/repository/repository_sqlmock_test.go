package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gianverdum/member-registry/internal/models"
	"github.com/gianverdum/member-registry/internal/testutil"
)

func TestCreate_UniqueViolationFromStore(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	repo := NewMemberRepository(db)

	// the fast path sees no row, a concurrent writer wins the insert
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "members" WHERE phone = \$1`).
		WithArgs("11911112222").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO "members"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"idx_members_phone\""})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), valid("John Doe", "11911112222", "Rotary Club"))

	assert.ErrorIs(t, err, ErrDuplicatePhone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_StorageFailureRollsBack(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	repo := NewMemberRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO "members"`).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), valid("John Doe", "11911112222", "Rotary Club"))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicatePhone)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_LocksRow(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	repo := NewMemberRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "phone", "club", "created_at", "updated_at"}).
		AddRow(1, "John Doe", "11911112222", "Rotary Club", now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "members" WHERE .* FOR UPDATE`).WillReturnRows(rows)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "members" WHERE phone = \$1 AND id <> \$2`).
		WithArgs("11987654321", 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE "members" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// the new values are derived from the locked row
	updated, err := repo.Update(context.Background(), 1, func(current *models.Member) (models.ValidMember, error) {
		return valid(current.Name, "11987654321", current.Club), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "11987654321", updated.Phone)
	assert.Equal(t, "Rotary Club", updated.Club)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFoundRollsBack(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	repo := NewMemberRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "members" WHERE .* FOR UPDATE`).WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), 42, func(*models.Member) (models.ValidMember, error) {
		t.Fatal("apply must not run for a missing member")
		return models.ValidMember{}, nil
	})

	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_StorageFailure(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	repo := NewMemberRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "members"`).WillReturnError(errors.New("connection refused"))

	_, err := repo.List(context.Background(), models.MemberFilter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list members")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_PostgresUsesILIKE(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	repo := NewMemberRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "members" WHERE name ILIKE \$1 ESCAPE '\\' AND club ILIKE \$2 ESCAPE '\\'`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "club"}).
			AddRow(1, "ÉLISE Dupont", "11911112222", "Rotary Club"))

	members, err := repo.List(context.Background(), models.MemberFilter{Name: "élise", Club: "rotary"})

	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_MissingRowRollsBack(t *testing.T) {
	db, mock := testutil.SetupMockDB(t)
	repo := NewMemberRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "members" WHERE "members"."id" = \$1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 7)

	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
