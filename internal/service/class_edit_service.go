package service

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type classReader interface {
	GetClass(ctx context.Context, s *upstream.Session, classID int64) (*models.Class, error)
	ListSchedules(ctx context.Context, s *upstream.Session, classID int64) ([]models.Schedule, error)
}

// ClassEditService loads an existing class into draft form for editing.
type ClassEditService struct {
	client classReader
}

// NewClassEditService constructs a ClassEditService.
func NewClassEditService(client classReader) *ClassEditService {
	return &ClassEditService{client: client}
}

// FetchClass returns the class and its schedules after checking it belongs to schoolID.
func (s *ClassEditService) FetchClass(ctx context.Context, session *upstream.Session, classID, schoolID int64) (*models.Class, []models.Schedule, error) {
	var (
		class     *models.Class
		schedules []models.Schedule
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		class, err = s.client.GetClass(gctx, session, classID)
		return err
	})
	g.Go(func() error {
		var err error
		schedules, err = s.client.ListSchedules(gctx, session, classID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, upstreamLookupFailure(err, "could not load class")
	}
	if class == nil || class.ID == 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if class.SchoolID != schoolID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another school")
	}
	return class, schedules, nil
}

// LoadForEdit builds a pre-filled class draft and slot list for classID.
func (s *ClassEditService) LoadForEdit(ctx context.Context, session *upstream.Session, classID, schoolID int64) (models.ClassDraft, []models.ScheduleSlotDraft, error) {
	class, schedules, err := s.FetchClass(ctx, session, classID, schoolID)
	if err != nil {
		return models.ClassDraft{}, nil, err
	}

	draft := models.ClassDraft{
		Name:         class.Name,
		AcademicYear: class.AcademicYear,
		StartDate:    datePart(deref(class.StartDate)),
		EndDate:      datePart(deref(class.EndDate)),
		StartTime:    shortOptionalClock(deref(class.StartTime)),
		EndTime:      shortOptionalClock(deref(class.EndTime)),
	}

	slots := make([]models.ScheduleSlotDraft, 0, len(schedules))
	for _, sched := range schedules {
		slots = append(slots, models.ScheduleSlotDraft{
			SubjectID: idString(sched.SubjectID),
			TeacherID: idString(sched.TeacherID),
			DayOfWeek: sched.DayOfWeek,
			StartTime: ShortClock(sched.StartTime),
			EndTime:   ShortClock(sched.EndTime),
		})
	}
	return draft, slots, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// datePart keeps the calendar date of a timestamp such as 2025-08-01T00:00:00Z.
func datePart(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(dateLayout) && raw[len(dateLayout)] == 'T' {
		return raw[:len(dateLayout)]
	}
	return raw
}

func shortOptionalClock(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return ShortClock(raw)
}

func idString(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
