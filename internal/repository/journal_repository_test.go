package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-class-console/internal/models"
)

var journalRowColumns = []string{"id", "draft_id", "actor_id", "school_id", "class_id", "mode", "status", "slot_total", "slot_created", "failed_slots", "error_code", "error_message", "created_at"}

func newJournalRepoMock(t *testing.T) (*JournalRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewJournalRepository(sqlx.NewDb(db, "postgres"), nil), mock, func() { db.Close() }
}

func TestJournalRepositoryInsert(t *testing.T) {
	repo, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	classID := int64(41)
	code := "SCHEDULE_CREATION_FAILED"
	msg := "1 of 2 schedule slots could not be created"
	entry := &models.SubmissionJournal{
		ID:           "j-1",
		DraftID:      "d-1",
		ActorID:      "u-1",
		SchoolID:     12,
		ClassID:      &classID,
		Mode:         models.DraftModeCreate,
		Status:       models.SubmissionFailed,
		SlotTotal:    2,
		SlotCreated:  1,
		FailedSlots:  pq.Int64Array{1},
		ErrorCode:    &code,
		ErrorMessage: &msg,
		CreatedAt:    time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO class_submission_journal")).
		WithArgs("j-1", "d-1", "u-1", int64(12), sqlmock.AnyArg(), "CREATE", "FAILED", 2, 1, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepositoryGetByID(t *testing.T) {
	repo, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(journalRowColumns).
		AddRow("j-1", "d-1", "u-1", 12, 41, "CREATE", "SUCCEEDED", 2, 2, "{}", nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_submission_journal WHERE id = $1")).
		WithArgs("j-1").
		WillReturnRows(rows)

	entry, err := repo.GetByID(context.Background(), "j-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSucceeded, entry.Status)
	require.NotNil(t, entry.ClassID)
	assert.Equal(t, int64(41), *entry.ClassID)
	assert.Empty(t, entry.FailedSlots)
	assert.Nil(t, entry.ErrorCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepositoryGetByIDMissing(t *testing.T) {
	repo, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_submission_journal WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestJournalRepositoryListFiltersByClass(t *testing.T) {
	repo, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	classID := int64(41)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_submission_journal WHERE school_id = $1 AND class_id = $2")).
		WithArgs(int64(12), classID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_submission_journal WHERE school_id = $1 AND class_id = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(int64(12), classID, 2, 2).
		WillReturnRows(sqlmock.NewRows(journalRowColumns).
			AddRow("j-3", "d-3", "u-1", 12, 41, "EDIT", "FAILED", 1, 0, "{0}", "CLASS_UPDATE_FAILED", "failed to update class", time.Now()))

	entries, total, err := repo.List(context.Background(), models.JournalFilter{SchoolID: 12, ClassID: &classID, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 1)
	assert.Equal(t, pq.Int64Array{0}, entries[0].FailedSlots)
	assert.Equal(t, models.DraftModeEdit, entries[0].Mode)
	require.NoError(t, mock.ExpectationsWereMet())
}
