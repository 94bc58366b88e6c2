package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

// DraftRepository persists authoring sessions and their locks.
// Get returns an error with code NOT_FOUND for unknown or expired drafts. A lock is owned by the
// token AcquireSubmitLock hands out; refresh and release are no-ops for any other token.
type DraftRepository interface {
	Get(ctx context.Context, id string) (*models.Draft, error)
	Save(ctx context.Context, draft *models.Draft, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	AcquireSubmitLock(ctx context.Context, id string, ttl time.Duration) (string, bool, error)
	RefreshSubmitLock(ctx context.Context, id, token string, ttl time.Duration) (bool, error)
	ReleaseSubmitLock(ctx context.Context, id, token string) error
}

const lockPollInterval = 20 * time.Millisecond

type referenceLoader interface {
	SchoolID(ctx context.Context, session *upstream.Session) (int64, error)
	LoadForSchool(ctx context.Context, session *upstream.Session, schoolID int64, refresh bool) (*models.ReferenceData, error)
}

type editLoader interface {
	LoadForEdit(ctx context.Context, session *upstream.Session, classID, schoolID int64) (models.ClassDraft, []models.ScheduleSlotDraft, error)
}

type draftSubmitter interface {
	Submit(ctx context.Context, session *upstream.Session, req SubmissionRequest) (*SubmissionResult, error)
}

type submissionRecorder interface {
	Record(ctx context.Context, entry *models.SubmissionJournal) error
}

// Actor is the authenticated console user acting on a draft.
type Actor struct {
	ID   string
	Role models.UserRole
}

// DraftConfig holds session lifetimes. SubmitLockTTL bounds how long a crashed holder blocks the
// draft; a live submission keeps extending it. EditLockWait is how long an edit waits for the lock.
type DraftConfig struct {
	TTL           time.Duration
	SubmitLockTTL time.Duration
	EditLockWait  time.Duration
}

// DraftSession is returned when a draft is opened, together with the lookups the form needs.
type DraftSession struct {
	Draft     *models.Draft         `json:"draft"`
	Reference *models.ReferenceData `json:"reference"`
}

// ValidationReport is the validator outcome plus non-blocking overlap warnings.
type ValidationReport struct {
	Result   models.ValidationResult `json:"result"`
	Warnings []models.SlotOverlap    `json:"warnings"`
}

// DraftService manages per-user authoring sessions for class creation and editing.
type DraftService struct {
	repo      DraftRepository
	reference referenceLoader
	edits     editLoader
	submitter draftSubmitter
	validator *DraftValidator
	journal   submissionRecorder
	cfg       DraftConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewDraftService wires the authoring session service. journal may be nil.
func NewDraftService(
	repo DraftRepository,
	reference referenceLoader,
	edits editLoader,
	submitter draftSubmitter,
	validator *DraftValidator,
	journal submissionRecorder,
	cfg DraftConfig,
	logger *zap.Logger,
) *DraftService {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.SubmitLockTTL <= 0 {
		cfg.SubmitLockTTL = time.Minute
	}
	if cfg.EditLockWait < 0 {
		cfg.EditLockWait = 0
	}
	if validator == nil {
		validator = NewDraftValidator(false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{
		repo:      repo,
		reference: reference,
		edits:     edits,
		submitter: submitter,
		validator: validator,
		journal:   journal,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Create opens a draft. A positive classID opens it in edit mode pre-filled from the backend.
func (s *DraftService) Create(ctx context.Context, actor Actor, session *upstream.Session, classID int64) (*DraftSession, error) {
	schoolID, err := s.reference.SchoolID(ctx, session)
	if err != nil {
		return nil, err
	}
	reference, err := s.reference.LoadForSchool(ctx, session, schoolID, false)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	draft := &models.Draft{
		ID:        uuid.NewString(),
		OwnerID:   actor.ID,
		Mode:      models.DraftModeCreate,
		SchoolID:  schoolID,
		Slots:     []models.ScheduleSlotDraft{},
		Status:    models.SubmissionIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if classID > 0 {
		class, slots, err := s.edits.LoadForEdit(ctx, session, classID, schoolID)
		if err != nil {
			return nil, err
		}
		draft.Mode = models.DraftModeEdit
		draft.ClassID = classID
		draft.Class = class
		draft.Slots = slots
	}

	if err := s.repo.Save(ctx, draft, s.cfg.TTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store draft")
	}
	s.logger.Info("class draft opened", zap.String("draft_id", draft.ID), zap.String("mode", string(draft.Mode)), zap.String("actor_id", actor.ID))
	return &DraftSession{Draft: draft, Reference: reference}, nil
}

// Get returns the caller's draft.
func (s *DraftService) Get(ctx context.Context, actor Actor, id string) (*models.Draft, error) {
	return s.load(ctx, actor, id)
}

// UpdateField sets one class field.
func (s *DraftService) UpdateField(ctx context.Context, actor Actor, id, field, value string) (*models.Draft, error) {
	return s.mutate(ctx, actor, id, func(d *models.Draft) error {
		class, err := UpdateField(d.Class, field, value)
		if err != nil {
			return err
		}
		d.Class = class
		return nil
	})
}

// AddSlot appends an empty slot.
func (s *DraftService) AddSlot(ctx context.Context, actor Actor, id string) (*models.Draft, error) {
	return s.mutate(ctx, actor, id, func(d *models.Draft) error {
		d.Slots = AddSlot(d.Slots)
		return nil
	})
}

// UpdateSlot sets one field of one slot.
func (s *DraftService) UpdateSlot(ctx context.Context, actor Actor, id string, index int, field, value string) (*models.Draft, error) {
	return s.mutate(ctx, actor, id, func(d *models.Draft) error {
		slots, err := UpdateSlot(d.Slots, index, field, value)
		if err != nil {
			return err
		}
		d.Slots = slots
		return nil
	})
}

// RemoveSlot deletes one slot.
func (s *DraftService) RemoveSlot(ctx context.Context, actor Actor, id string, index int) (*models.Draft, error) {
	return s.mutate(ctx, actor, id, func(d *models.Draft) error {
		slots, err := RemoveSlot(d.Slots, index)
		if err != nil {
			return err
		}
		d.Slots = slots
		return nil
	})
}

// Validate runs the validator without submitting.
func (s *DraftService) Validate(ctx context.Context, actor Actor, id string) (*ValidationReport, error) {
	draft, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &ValidationReport{
		Result:   s.validator.Validate(draft.Class, draft.Slots),
		Warnings: DetectOverlaps(draft.Slots),
	}, nil
}

// Submit sends the draft to the backend while holding its lock. Every attempt is journaled.
// A successful submission discards the draft; a failed one keeps it editable with the error attached.
func (s *DraftService) Submit(ctx context.Context, actor Actor, session *upstream.Session, id string) (*SubmissionResult, error) {
	draft, token, err := s.lock(ctx, actor, id, 0)
	if err != nil {
		return nil, err
	}
	bg := context.WithoutCancel(ctx)
	stop := s.keepLock(bg, id, token)
	defer func() {
		stop()
		s.unlock(bg, id, token)
	}()

	if draft.Status == models.SubmissionSucceeded {
		return nil, appErrors.Clone(appErrors.ErrSubmitInProgress, "draft was already submitted")
	}

	draft.LastError = nil
	result, submitErr := s.submitter.Submit(ctx, session, SubmissionRequest{
		Mode:     draft.Mode,
		ClassID:  draft.ClassID,
		SchoolID: draft.SchoolID,
		Class:    draft.Class,
		Slots:    draft.Slots,
		OnState: func(status models.SubmissionStatus) {
			draft.Status = status
			s.save(bg, draft)
		},
	})

	if s.journal != nil {
		if err := s.journal.Record(bg, NewEntry(draft, actor.ID, result, submitErr)); err != nil {
			s.logger.Warn("failed to journal submission", zap.String("draft_id", id), zap.Error(err))
		}
	}

	if submitErr != nil {
		appErr := appErrors.FromError(submitErr)
		draft.Status = models.SubmissionFailed
		draft.LastError = &models.DraftError{Code: appErr.Code, Message: appErr.Message}
		s.save(bg, draft)
		return result, submitErr
	}

	if err := s.repo.Delete(bg, id); err != nil {
		s.logger.Warn("failed to discard submitted draft", zap.String("draft_id", id), zap.Error(err))
	}
	return result, nil
}

// Discard deletes the caller's draft. A draft under submission cannot be discarded.
func (s *DraftService) Discard(ctx context.Context, actor Actor, id string) error {
	_, token, err := s.lock(ctx, actor, id, s.cfg.EditLockWait)
	if err != nil {
		return err
	}
	defer s.unlock(context.WithoutCancel(ctx), id, token)

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard draft")
	}
	return nil
}

func (s *DraftService) load(ctx context.Context, actor Actor, id string) (*models.Draft, error) {
	draft, err := s.repo.Get(ctx, id)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found or expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load draft")
	}
	if draft.OwnerID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "draft belongs to another user")
	}
	return draft, nil
}

func (s *DraftService) mutate(ctx context.Context, actor Actor, id string, apply func(*models.Draft) error) (*models.Draft, error) {
	draft, token, err := s.lock(ctx, actor, id, s.cfg.EditLockWait)
	if err != nil {
		return nil, err
	}
	defer s.unlock(context.WithoutCancel(ctx), id, token)

	if err := apply(draft); err != nil {
		return nil, err
	}
	draft.Status = models.SubmissionIdle
	draft.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, draft, s.cfg.TTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store draft")
	}
	return draft, nil
}

// lock checks ownership, takes the draft lock and reloads the draft under it.
// A lock still held after wait yields SUBMISSION_IN_PROGRESS.
func (s *DraftService) lock(ctx context.Context, actor Actor, id string, wait time.Duration) (*models.Draft, string, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, "", err
	}

	started := time.Now()
	var token string
	for {
		t, ok, err := s.repo.AcquireSubmitLock(ctx, id, s.cfg.SubmitLockTTL)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock draft")
		}
		if ok {
			token = t
			break
		}
		if time.Since(started) >= wait {
			return nil, "", appErrors.Clone(appErrors.ErrSubmitInProgress, "")
		}
		select {
		case <-ctx.Done():
			return nil, "", appErrors.Clone(appErrors.ErrSubmitInProgress, "")
		case <-time.After(lockPollInterval):
		}
	}

	draft, err := s.load(ctx, actor, id)
	if err != nil {
		s.unlock(context.WithoutCancel(ctx), id, token)
		return nil, "", err
	}
	return draft, token, nil
}

func (s *DraftService) unlock(ctx context.Context, id, token string) {
	if err := s.repo.ReleaseSubmitLock(ctx, id, token); err != nil {
		s.logger.Warn("failed to release draft lock", zap.String("draft_id", id), zap.Error(err))
	}
}

// keepLock extends the lock every third of its TTL until the returned stop func is called.
func (s *DraftService) keepLock(ctx context.Context, id, token string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(max(s.cfg.SubmitLockTTL/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				held, err := s.repo.RefreshSubmitLock(ctx, id, token, s.cfg.SubmitLockTTL)
				if err != nil || !held {
					s.logger.Warn("failed to extend submit lock", zap.String("draft_id", id), zap.Bool("held", held), zap.Error(err))
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (s *DraftService) save(ctx context.Context, draft *models.Draft) {
	draft.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, draft, s.cfg.TTL); err != nil {
		s.logger.Warn("failed to persist draft state", zap.String("draft_id", draft.ID), zap.String("status", string(draft.Status)), zap.Error(err))
	}
}
