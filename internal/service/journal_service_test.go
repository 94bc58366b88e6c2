package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/jobs"
)

type journalRepoFake struct {
	mu       sync.Mutex
	inserted []*models.SubmissionJournal
	byID     map[string]*models.SubmissionJournal
	filter   models.JournalFilter
	err      error
}

func (f *journalRepoFake) Insert(_ context.Context, entry *models.SubmissionJournal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, entry)
	return nil
}

func (f *journalRepoFake) GetByID(_ context.Context, id string) (*models.SubmissionJournal, error) {
	if entry, ok := f.byID[id]; ok {
		return entry, nil
	}
	return nil, sql.ErrNoRows
}

func (f *journalRepoFake) List(_ context.Context, filter models.JournalFilter) ([]models.SubmissionJournal, int, error) {
	f.filter = filter
	return []models.SubmissionJournal{{ID: "j-1", SchoolID: filter.SchoolID}}, 1, nil
}

type queueFake struct {
	jobs []jobs.Job
	err  error
}

func (q *queueFake) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestJournalRecordInline(t *testing.T) {
	repo := &journalRepoFake{}
	svc := NewJournalService(repo, nil)
	fixed := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	entry := &models.SubmissionJournal{DraftID: "d-1", SchoolID: 3}
	require.NoError(t, svc.Record(context.Background(), entry))

	require.Len(t, repo.inserted, 1)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, fixed, entry.CreatedAt)
}

func TestJournalRecordThroughQueue(t *testing.T) {
	repo := &journalRepoFake{}
	queue := &queueFake{}
	svc := NewJournalService(repo, nil)
	svc.UseQueue(queue)

	entry := &models.SubmissionJournal{DraftID: "d-1"}
	require.NoError(t, svc.Record(context.Background(), entry))

	assert.Empty(t, repo.inserted)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeJournal, queue.jobs[0].Type)
	assert.Equal(t, entry.ID, queue.jobs[0].ID)

	require.NoError(t, svc.Handle(context.Background(), queue.jobs[0]))
	assert.Len(t, repo.inserted, 1)
}

func TestJournalRecordFallsBackWhenQueueClosed(t *testing.T) {
	repo := &journalRepoFake{}
	svc := NewJournalService(repo, nil)
	svc.UseQueue(&queueFake{err: jobs.ErrClosed})

	require.NoError(t, svc.Record(context.Background(), &models.SubmissionJournal{DraftID: "d-1"}))
	assert.Len(t, repo.inserted, 1)
}

func TestJournalRecordNilService(t *testing.T) {
	var svc *JournalService
	assert.NoError(t, svc.Record(context.Background(), &models.SubmissionJournal{}))
}

func TestJournalRecordWriteFailure(t *testing.T) {
	svc := NewJournalService(&journalRepoFake{err: errors.New("db down")}, nil)

	err := svc.Record(context.Background(), &models.SubmissionJournal{DraftID: "d-1"})

	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
}

func TestJournalHandleRejectsForeignPayload(t *testing.T) {
	svc := NewJournalService(&journalRepoFake{}, nil)

	err := svc.Handle(context.Background(), jobs.Job{ID: "x", Payload: "nope"})

	assert.Error(t, err)
}

func TestJournalListClampsPaging(t *testing.T) {
	repo := &journalRepoFake{}
	svc := NewJournalService(repo, nil)

	_, page, err := svc.List(context.Background(), models.JournalFilter{SchoolID: 3, PageSize: 500})

	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, int64(3), repo.filter.SchoolID)
}

func TestJournalGetScopedToSchool(t *testing.T) {
	repo := &journalRepoFake{byID: map[string]*models.SubmissionJournal{"j-1": {ID: "j-1", SchoolID: 3}}}
	svc := NewJournalService(repo, nil)

	entry, err := svc.Get(context.Background(), "j-1", 3)
	require.NoError(t, err)
	assert.Equal(t, "j-1", entry.ID)

	_, err = svc.Get(context.Background(), "j-1", 4)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.Get(context.Background(), "missing", 3)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestNewEntryFromPartialFailure(t *testing.T) {
	draft := &models.Draft{ID: "d-1", SchoolID: 3, Mode: models.DraftModeCreate, Slots: make([]models.ScheduleSlotDraft, 3)}
	result := &SubmissionResult{Status: models.SubmissionFailed, ClassID: 77, SlotTotal: 3, SlotCreated: 2, FailedSlots: []int{1}}
	submitErr := appErrors.Clone(appErrors.ErrScheduleCreation, "1 of 3 slots failed")

	entry := NewEntry(draft, "40", result, submitErr)

	assert.Equal(t, models.SubmissionFailed, entry.Status)
	require.NotNil(t, entry.ClassID)
	assert.Equal(t, int64(77), *entry.ClassID)
	assert.Equal(t, []int64{1}, []int64(entry.FailedSlots))
	assert.Equal(t, 2, entry.SlotCreated)
	require.NotNil(t, entry.ErrorCode)
	assert.Equal(t, appErrors.ErrScheduleCreation.Code, *entry.ErrorCode)
}

func TestNewEntryWithoutResult(t *testing.T) {
	draft := &models.Draft{ID: "d-1", SchoolID: 3, Mode: models.DraftModeCreate, Slots: make([]models.ScheduleSlotDraft, 2)}

	entry := NewEntry(draft, "40", nil, appErrors.Clone(appErrors.ErrDraftInvalid, "name is required"))

	assert.Equal(t, models.SubmissionFailed, entry.Status)
	assert.Nil(t, entry.ClassID)
	assert.Equal(t, 2, entry.SlotTotal)
	assert.Empty(t, entry.FailedSlots)
}
