package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type submissionClient interface {
	CreateClass(ctx context.Context, s *upstream.Session, payload models.ClassPayload) (*models.Class, error)
	CreateSchedule(ctx context.Context, s *upstream.Session, payload models.SchedulePayload) (*models.Schedule, error)
	UpdateClass(ctx context.Context, s *upstream.Session, classID int64, payload models.ClassUpdatePayload) (*models.Class, error)
}

// SubmissionRequest is one draft handed to the orchestrator.
type SubmissionRequest struct {
	Mode     models.DraftMode
	ClassID  int64
	SchoolID int64
	Class    models.ClassDraft
	Slots    []models.ScheduleSlotDraft
	// OnState, when set, is called on every state transition.
	OnState func(models.SubmissionStatus)
}

// SubmissionResult describes how far a submission got. On failure it still reports the class id
// and the slots that were created, since nothing is rolled back.
type SubmissionResult struct {
	Mode        models.DraftMode        `json:"mode"`
	Status      models.SubmissionStatus `json:"status"`
	ClassID     int64                   `json:"classId,omitempty"`
	SlotTotal   int                     `json:"slotTotal"`
	SlotCreated int                     `json:"slotCreated"`
	FailedSlots []int                   `json:"failedSlots,omitempty"`
	ScheduleIDs []int64                 `json:"scheduleIds,omitempty"`
}

// SlotFailureDetails is attached to SCHEDULE_CREATION_FAILED errors.
type SlotFailureDetails struct {
	ClassID     int64 `json:"classId"`
	FailedSlots []int `json:"failedSlots"`
	Created     int   `json:"created"`
	Total       int   `json:"total"`
}

// SubmissionService writes a validated draft to the backend: the class first, then its slots.
type SubmissionService struct {
	client        submissionClient
	validator     *DraftValidator
	metrics       *MetricsService
	logger        *zap.Logger
	maxConcurrent int
}

// NewSubmissionService constructs the orchestrator. maxConcurrent <= 0 leaves slot creation unbounded.
func NewSubmissionService(client submissionClient, validator *DraftValidator, metrics *MetricsService, logger *zap.Logger, maxConcurrent int) *SubmissionService {
	if validator == nil {
		validator = NewDraftValidator(false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{client: client, validator: validator, metrics: metrics, logger: logger, maxConcurrent: maxConcurrent}
}

// Submit validates and sends the draft. The returned result is non-nil whenever err is nil and
// also on failures after validation, so callers can record partially persisted state.
// The submission is not cancelled when ctx is; only transport timeouts stop it.
func (s *SubmissionService) Submit(ctx context.Context, session *upstream.Session, req SubmissionRequest) (*SubmissionResult, error) {
	ctx = context.WithoutCancel(ctx)
	mode := req.Mode
	if mode == "" {
		mode = models.DraftModeCreate
	}
	result := &SubmissionResult{Mode: mode, Status: models.SubmissionValidating, SlotTotal: len(req.Slots)}
	transition := func(status models.SubmissionStatus) {
		result.Status = status
		if req.OnState != nil {
			req.OnState(status)
		}
	}
	fail := func(err error) (*SubmissionResult, error) {
		transition(models.SubmissionFailed)
		s.metrics.RecordSubmission(mode, models.SubmissionFailed)
		s.logger.Warn("class submission failed",
			zap.String("mode", string(mode)),
			zap.Int64("class_id", result.ClassID),
			zap.Int("slot_created", result.SlotCreated),
			zap.Int("slot_total", result.SlotTotal),
			zap.Error(err),
		)
		return result, err
	}

	transition(models.SubmissionValidating)
	if check := s.validator.Validate(req.Class, req.Slots); !check.Valid {
		return fail(ValidationError(check))
	}

	classPayload := BuildClassPayload(req.SchoolID, req.Class)
	schedules, err := BuildSchedulePayloads(0, req.Slots)
	if err != nil {
		return fail(appErrors.Wrap(err, appErrors.ErrDraftInvalid.Code, appErrors.ErrDraftInvalid.Status, err.Error()))
	}

	if mode == models.DraftModeEdit {
		return s.update(ctx, session, req.ClassID, classPayload, schedules, result, transition, fail)
	}

	transition(models.SubmissionSubmittingClass)
	class, err := s.client.CreateClass(ctx, session, classPayload)
	if err != nil {
		if errors.Is(err, upstream.ErrDecode) {
			return fail(appErrors.Wrap(err, appErrors.ErrMissingCreatedID.Code, appErrors.ErrMissingCreatedID.Status, appErrors.ErrMissingCreatedID.Message))
		}
		return fail(upstreamFailure(err, appErrors.ErrClassCreation, ""))
	}
	if class == nil || class.ID <= 0 {
		return fail(appErrors.Clone(appErrors.ErrMissingCreatedID, ""))
	}
	result.ClassID = class.ID

	if len(schedules) > 0 {
		transition(models.SubmissionSubmittingSlots)
		for i := range schedules {
			schedules[i].ClassID = class.ID
		}
		if err := s.createSlots(ctx, session, schedules, result); err != nil {
			return fail(err)
		}
	}

	transition(models.SubmissionSucceeded)
	s.metrics.RecordSubmission(mode, models.SubmissionSucceeded)
	s.logger.Info("class submitted", zap.Int64("class_id", result.ClassID), zap.Int("slots", result.SlotCreated))
	return result, nil
}

func (s *SubmissionService) update(
	ctx context.Context,
	session *upstream.Session,
	classID int64,
	classPayload models.ClassPayload,
	schedules []models.SchedulePayload,
	result *SubmissionResult,
	transition func(models.SubmissionStatus),
	fail func(error) (*SubmissionResult, error),
) (*SubmissionResult, error) {
	if classID <= 0 {
		return fail(appErrors.Clone(appErrors.ErrValidation, "class id required in edit mode"))
	}
	result.ClassID = classID
	for i := range schedules {
		schedules[i].ClassID = classID
	}

	transition(models.SubmissionSubmittingClass)
	_, err := s.client.UpdateClass(ctx, session, classID, models.ClassUpdatePayload{
		ClassPayload: classPayload,
		Schedules:    schedules,
	})
	if err != nil {
		return fail(upstreamFailure(err, appErrors.ErrClassUpdate, ""))
	}
	result.SlotCreated = len(schedules)

	transition(models.SubmissionSucceeded)
	s.metrics.RecordSubmission(models.DraftModeEdit, models.SubmissionSucceeded)
	s.logger.Info("class updated", zap.Int64("class_id", classID), zap.Int("slots", len(schedules)))
	return result, nil
}

// createSlots posts every slot concurrently and waits for all of them. A failed slot does not
// stop its siblings, and nothing already created is undone.
func (s *SubmissionService) createSlots(ctx context.Context, session *upstream.Session, schedules []models.SchedulePayload, result *SubmissionResult) error {
	ids := make([]int64, len(schedules))
	errs := make([]error, len(schedules))

	var g errgroup.Group
	if s.maxConcurrent > 0 {
		g.SetLimit(s.maxConcurrent)
	}
	for i := range schedules {
		i := i
		g.Go(func() error {
			created, err := s.client.CreateSchedule(ctx, session, schedules[i])
			if err != nil {
				errs[i] = fmt.Errorf("slot %d: %w", i, err)
				return nil
			}
			if created != nil {
				ids[i] = created.ID
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := make([]int, 0)
	for i, err := range errs {
		if err != nil {
			failed = append(failed, i)
			continue
		}
		result.SlotCreated++
		result.ScheduleIDs = append(result.ScheduleIDs, ids[i])
	}
	s.metrics.RecordSlotResults(result.SlotCreated, len(failed))
	if len(failed) == 0 {
		return nil
	}

	result.FailedSlots = failed
	combined := multierr.Combine(errs...)
	details := SlotFailureDetails{
		ClassID:     result.ClassID,
		FailedSlots: failed,
		Created:     result.SlotCreated,
		Total:       len(schedules),
	}
	wrapped := appErrors.WithDetails(appErrors.ErrScheduleCreation,
		fmt.Sprintf("%d of %d schedule slots could not be created; class %d and the other slots were kept", len(failed), len(schedules), result.ClassID),
		details,
	)
	wrapped.Err = combined
	return wrapped
}

// BuildClassPayload trims the draft and sends empty optional fields as null. Times gain seconds.
func BuildClassPayload(schoolID int64, draft models.ClassDraft) models.ClassPayload {
	return models.ClassPayload{
		SchoolID:     schoolID,
		Name:         strings.TrimSpace(draft.Name),
		AcademicYear: strings.TrimSpace(draft.AcademicYear),
		StartDate:    optionalString(draft.StartDate),
		EndDate:      optionalString(draft.EndDate),
		StartTime:    optionalClock(draft.StartTime),
		EndTime:      optionalClock(draft.EndTime),
	}
}

// BuildSchedulePayloads converts slots to backend payloads with numeric ids and HH:MM:SS times.
func BuildSchedulePayloads(classID int64, slots []models.ScheduleSlotDraft) ([]models.SchedulePayload, error) {
	out := make([]models.SchedulePayload, 0, len(slots))
	for i, slot := range slots {
		subjectID, err := strconv.ParseInt(strings.TrimSpace(slot.SubjectID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("slot %d: invalid subject id %q", i, slot.SubjectID)
		}
		teacherID, err := strconv.ParseInt(strings.TrimSpace(slot.TeacherID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("slot %d: invalid teacher id %q", i, slot.TeacherID)
		}
		start, err := NormalizeClock(slot.StartTime)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		end, err := NormalizeClock(slot.EndTime)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		day := slot.DayOfWeek
		if idx := models.WeekdayIndex(day); idx >= 0 {
			day = models.Weekdays[idx]
		}
		out = append(out, models.SchedulePayload{
			ClassID:   classID,
			TeacherID: teacherID,
			SubjectID: subjectID,
			DayOfWeek: day,
			StartTime: start,
			EndTime:   end,
		})
	}
	return out, nil
}

func optionalString(raw string) *string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	return &value
}

func optionalClock(raw string) *string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}
	if normalized, err := NormalizeClock(value); err == nil {
		value = normalized
	}
	return &value
}
