package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-request-api/internal/models"
)

var requestRowColumns = []string{"id", "owner", "category", "details", "status", "submitted_at", "estimated_completion", "processed_at", "processed_by", "note", "cancelled_at"}

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRequestRepositoryInsertAndFind(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.Request{Owner: "alice", Category: "transcript", Details: "two copies", SubmittedAt: now, EstimatedCompletion: now.Add(15 * time.Minute)}
	id, err := repo.Insert(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, models.RequestStatusPending, req.Status)

	rows := sqlmock.NewRows(requestRowColumns).
		AddRow(id, "alice", "transcript", "two copies", "PENDING", now, now.Add(15*time.Minute), nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner, category")).
		WithArgs(id).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "alice", found.Owner)
	require.Nil(t, found.ProcessedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner, category")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	_, err := NewRequestRepository(db).FindByID(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestRequestRepositoryListsReturnEmptySlices(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE owner = ?")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	list, err := NewRequestRepository(db).FindByOwner(context.Background(), "bob")
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestRequestRepositoryCountPending(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests WHERE category = ? AND status = ?")).
		WithArgs("transcript", models.RequestStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := NewRequestRepository(db).CountPending(context.Background(), "transcript")
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestRequestRepositoryConditionalUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	now := time.Now().UTC()
	update := models.StatusUpdate{ProcessedAt: now, ProcessedBy: "staff-1"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = ?, processed_at = ?")).
		WithArgs(models.RequestStatusApproved, now, "staff-1", nil, "req-1", models.RequestStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.ConditionalUpdateStatus(context.Background(), "req-1", models.RequestStatusPending, models.RequestStatusApproved, update)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = ?, processed_at = ?")).
		WithArgs(models.RequestStatusRejected, now, "staff-1", nil, "req-1", models.RequestStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.ConditionalUpdateStatus(context.Background(), "req-1", models.RequestStatusPending, models.RequestStatusRejected, update)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryConditionalCancelPropagatesStoreError(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()

	at := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = ?, cancelled_at = ?")).
		WithArgs(models.RequestStatusCancelled, at, "req-1", "alice", models.RequestStatusPending).
		WillReturnError(sql.ErrConnDone)

	ok, err := NewRequestRepository(db).ConditionalCancel(context.Background(), "req-1", "alice", at)
	require.Error(t, err)
	require.True(t, errors.Is(err, sql.ErrConnDone))
	require.False(t, ok)
}
