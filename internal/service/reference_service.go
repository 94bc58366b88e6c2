package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type referenceClient interface {
	Me(ctx context.Context, s *upstream.Session) (*models.Principal, error)
	ListSubjects(ctx context.Context, s *upstream.Session, schoolID int64) ([]models.Subject, error)
	ListTeachers(ctx context.Context, s *upstream.Session, schoolID int64) ([]models.Teacher, error)
}

// ReferenceService resolves the caller's school and loads the subject and teacher lookups for it.
type ReferenceService struct {
	client referenceClient
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewReferenceService constructs a ReferenceService. cache may be nil.
func NewReferenceService(client referenceClient, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{client: client, cache: cache, ttl: ttl, logger: logger}
}

// SchoolID resolves the acting principal's school.
func (s *ReferenceService) SchoolID(ctx context.Context, session *upstream.Session) (int64, error) {
	principal, err := s.client.Me(ctx, session)
	if err != nil {
		return 0, upstreamFailure(err, appErrors.ErrReferenceData, "could not resolve school")
	}
	if principal == nil || principal.SchoolID <= 0 {
		return 0, appErrors.Clone(appErrors.ErrReferenceData, "school id missing from principal profile")
	}
	return principal.SchoolID, nil
}

// Load returns a fresh or cached snapshot. refresh skips the cache and overwrites it.
func (s *ReferenceService) Load(ctx context.Context, session *upstream.Session, refresh bool) (*models.ReferenceData, error) {
	schoolID, err := s.SchoolID(ctx, session)
	if err != nil {
		return nil, err
	}
	return s.LoadForSchool(ctx, session, schoolID, refresh)
}

// LoadForSchool loads the lookups for an already resolved school.
func (s *ReferenceService) LoadForSchool(ctx context.Context, session *upstream.Session, schoolID int64, refresh bool) (*models.ReferenceData, error) {
	if refresh {
		_ = s.cache.ForgetReference(ctx, schoolID)
	} else if cached, ok := s.cache.Reference(ctx, schoolID); ok {
		return cached, nil
	}

	data := &models.ReferenceData{SchoolID: schoolID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subjects, err := s.client.ListSubjects(gctx, session, schoolID)
		if err != nil {
			return err
		}
		data.Subjects = subjects
		return nil
	})
	g.Go(func() error {
		teachers, err := s.client.ListTeachers(gctx, session, schoolID)
		if err != nil {
			return err
		}
		data.Teachers = teachers
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("reference data load failed", zap.Int64("school_id", schoolID), zap.Error(err))
		return nil, upstreamFailure(err, appErrors.ErrReferenceData, "could not load subjects and teachers")
	}

	if data.Subjects == nil {
		data.Subjects = []models.Subject{}
	}
	if data.Teachers == nil {
		data.Teachers = []models.Teacher{}
	}

	s.cache.StoreReference(ctx, data, s.ttl)
	return data, nil
}
