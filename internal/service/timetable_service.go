package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/export"
	"github.com/noah-isme/sma-class-console/pkg/storage"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type classFetcher interface {
	FetchClass(ctx context.Context, session *upstream.Session, classID, schoolID int64) (*models.Class, []models.Schedule, error)
}

type exportStore interface {
	Save(name string, data []byte) error
	Open(name string) (io.ReadCloser, int64, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type exportSigner interface {
	Generate(exportID, path string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.Grant, error)
}

// TimetableExport is the result of rendering a class timetable.
type TimetableExport struct {
	ID        string    `json:"id"`
	ClassID   int64     `json:"class_id"`
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportFile is an opened export ready to stream.
type ExportFile struct {
	Body        io.ReadCloser
	Size        int64
	Filename    string
	ContentType string
}

var timetableHeaders = []string{"Day", "Start", "End", "Subject", "Teacher"}

// TimetableService renders a class's weekly schedule to PDF or CSV behind a signed link.
type TimetableService struct {
	classes   classFetcher
	reference referenceLoader
	store     exportStore
	signer    exportSigner
	urlPrefix string
	retention time.Duration
	logger    *zap.Logger
}

// NewTimetableService constructs the export service. Links are urlPrefix + "/exports/" + token.
func NewTimetableService(classes classFetcher, reference referenceLoader, store exportStore, signer exportSigner, urlPrefix string, retention time.Duration, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	return &TimetableService{
		classes:   classes,
		reference: reference,
		store:     store,
		signer:    signer,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		retention: retention,
		logger:    logger,
	}
}

// Export renders the timetable of classID for the caller's school.
func (s *TimetableService) Export(ctx context.Context, session *upstream.Session, classID int64, format export.Format) (*TimetableExport, error) {
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	schoolID, err := s.reference.SchoolID(ctx, session)
	if err != nil {
		return nil, err
	}
	class, schedules, err := s.classes.FetchClass(ctx, session, classID, schoolID)
	if err != nil {
		return nil, err
	}
	reference, err := s.reference.LoadForSchool(ctx, session, schoolID, false)
	if err != nil {
		return nil, err
	}

	data := BuildTimetable(class, schedules, reference)
	body, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	id := uuid.NewString()
	name := fmt.Sprintf("timetables/%d/%s.%s", classID, id, renderer.Extension())
	if err := s.store.Save(name, body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}
	token, expiresAt, err := s.signer.Generate(id, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	s.logger.Info("timetable exported", zap.String("export_id", id), zap.Int64("class_id", classID), zap.String("format", string(format)))
	return &TimetableExport{
		ID:        id,
		ClassID:   classID,
		Format:    string(format),
		URL:       s.urlPrefix + "/exports/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a download token to the stored file.
func (s *TimetableService) Open(token string) (*ExportFile, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link is invalid or expired")
	}
	body, size, err := s.store.Open(grant.Path)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	contentType := "application/octet-stream"
	if f, ferr := export.ParseFormat(strings.TrimPrefix(path.Ext(grant.Path), ".")); ferr == nil {
		if r, rerr := export.RendererFor(f); rerr == nil {
			contentType = r.ContentType()
		}
	}
	return &ExportFile{
		Body:        body,
		Size:        size,
		Filename:    "timetable" + path.Ext(grant.Path),
		ContentType: contentType,
	}, nil
}

// Cleanup removes exports older than the link lifetime.
func (s *TimetableService) Cleanup() (int, error) {
	removed, err := s.store.CleanupOlderThan(s.retention)
	if err != nil {
		return 0, err
	}
	if len(removed) > 0 {
		s.logger.Info("expired timetable exports removed", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *TimetableService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(); err != nil {
				s.logger.Warn("timetable export cleanup failed", zap.Error(err))
			}
		}
	}
}

// BuildTimetable lays schedules out by weekday then start time, naming subjects and teachers.
func BuildTimetable(class *models.Class, schedules []models.Schedule, reference *models.ReferenceData) export.Dataset {
	sorted := make([]models.Schedule, len(schedules))
	copy(sorted, schedules)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := weekdayOrder(sorted[i].DayOfWeek), weekdayOrder(sorted[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		return clockOrder(sorted[i].StartTime) < clockOrder(sorted[j].StartTime)
	})

	rows := make([][]string, 0, len(sorted))
	for _, sched := range sorted {
		subject := "#" + strconv.FormatInt(sched.SubjectID, 10)
		if found, ok := reference.SubjectByID(strconv.FormatInt(sched.SubjectID, 10)); ok {
			subject = found.Name
		}
		teacher := "#" + strconv.FormatInt(sched.TeacherID, 10)
		if found, ok := reference.TeacherByID(strconv.FormatInt(sched.TeacherID, 10)); ok {
			teacher = found.FullName()
		}
		rows = append(rows, []string{sched.DayOfWeek, ShortClock(sched.StartTime), ShortClock(sched.EndTime), subject, teacher})
	}

	subtitle := "Academic year " + class.AcademicYear
	return export.Dataset{
		Title:    class.Name,
		Subtitle: subtitle,
		Headers:  timetableHeaders,
		Rows:     rows,
	}
}

func weekdayOrder(day string) int {
	if idx := models.WeekdayIndex(day); idx >= 0 {
		return idx
	}
	return len(models.Weekdays)
}

func clockOrder(raw string) int {
	minutes, err := ParseClock(raw)
	if err != nil {
		return 24 * 60
	}
	return minutes
}
