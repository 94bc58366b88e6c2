package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/jobs"
)

// JobTypeJournal tags journal writes on the background queue.
const JobTypeJournal = "submission_journal"

type journalRepository interface {
	Insert(ctx context.Context, entry *models.SubmissionJournal) error
	GetByID(ctx context.Context, id string) (*models.SubmissionJournal, error)
	List(ctx context.Context, filter models.JournalFilter) ([]models.SubmissionJournal, int, error)
}

type journalQueue interface {
	Enqueue(job jobs.Job) error
}

// JournalService records submission outcomes, including partial failures, and serves them back.
type JournalService struct {
	repo   journalRepository
	queue  journalQueue
	logger *zap.Logger
	now    func() time.Time
}

// NewJournalService constructs a JournalService that writes synchronously until UseQueue is called.
func NewJournalService(repo journalRepository, logger *zap.Logger) *JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{repo: repo, logger: logger, now: time.Now}
}

// UseQueue routes writes through q so they never hold up the response.
func (s *JournalService) UseQueue(q journalQueue) {
	s.queue = q
}

// NewEntry builds a journal row from a submission outcome.
func NewEntry(draft *models.Draft, actorID string, result *SubmissionResult, submitErr error) *models.SubmissionJournal {
	entry := &models.SubmissionJournal{
		DraftID:     draft.ID,
		ActorID:     actorID,
		SchoolID:    draft.SchoolID,
		Mode:        draft.Mode,
		Status:      models.SubmissionSucceeded,
		SlotTotal:   len(draft.Slots),
		FailedSlots: []int64{},
	}
	if result != nil {
		entry.Status = result.Status
		entry.SlotTotal = result.SlotTotal
		entry.SlotCreated = result.SlotCreated
		if result.ClassID > 0 {
			classID := result.ClassID
			entry.ClassID = &classID
		}
		for _, idx := range result.FailedSlots {
			entry.FailedSlots = append(entry.FailedSlots, int64(idx))
		}
	}
	if submitErr != nil {
		entry.Status = models.SubmissionFailed
		appErr := appErrors.FromError(submitErr)
		code, msg := appErr.Code, appErr.Message
		entry.ErrorCode = &code
		entry.ErrorMessage = &msg
	}
	return entry
}

// Record stores entry, asynchronously when a queue is attached.
func (s *JournalService) Record(ctx context.Context, entry *models.SubmissionJournal) error {
	if s == nil || entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: JobTypeJournal, Payload: entry})
		if err == nil {
			return nil
		}
		s.logger.Warn("journal queue unavailable, writing inline", zap.String("journal_id", entry.ID), zap.Error(err))
	}
	return s.write(ctx, entry)
}

// Handle is the queue handler for journal jobs.
func (s *JournalService) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.SubmissionJournal)
	if !ok {
		return fmt.Errorf("journal job %s: unexpected payload %T", job.ID, job.Payload)
	}
	return s.write(ctx, entry)
}

func (s *JournalService) write(ctx context.Context, entry *models.SubmissionJournal) error {
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("journal write failed", zap.String("journal_id", entry.ID), zap.String("draft_id", entry.DraftID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}
	return nil
}

// List returns a school's journal entries, newest first.
func (s *JournalService) List(ctx context.Context, filter models.JournalFilter) ([]models.SubmissionJournal, *models.Pagination, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one entry, hiding entries of other schools.
func (s *JournalService) Get(ctx context.Context, id string, schoolID int64) (*models.SubmissionJournal, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if entry.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}
	return entry, nil
}
