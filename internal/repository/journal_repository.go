package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-class-console/internal/models"
)

const journalColumns = "id, draft_id, actor_id, school_id, class_id, mode, status, slot_total, slot_created, failed_slots, error_code, error_message, created_at"

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// JournalRepository persists submission outcomes in class_submission_journal.
type JournalRepository struct {
	db       *sqlx.DB
	observer queryObserver
}

// NewJournalRepository constructs the repository. observer may be nil.
func NewJournalRepository(db *sqlx.DB, observer queryObserver) *JournalRepository {
	return &JournalRepository{db: db, observer: observer}
}

// Insert appends one entry.
func (r *JournalRepository) Insert(ctx context.Context, entry *models.SubmissionJournal) error {
	defer r.observe("journal_insert", time.Now())
	query := `INSERT INTO class_submission_journal (` + journalColumns + `)
VALUES (:id, :draft_id, :actor_id, :school_id, :class_id, :mode, :status, :slot_total, :slot_created, :failed_slots, :error_code, :error_message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert submission journal: %w", err)
	}
	return nil
}

// GetByID returns one entry or sql.ErrNoRows.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*models.SubmissionJournal, error) {
	defer r.observe("journal_get", time.Now())
	var entry models.SubmissionJournal
	query := `SELECT ` + journalColumns + ` FROM class_submission_journal WHERE id = $1`
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns entries for a school, newest first, with the unpaginated total.
func (r *JournalRepository) List(ctx context.Context, filter models.JournalFilter) ([]models.SubmissionJournal, int, error) {
	defer r.observe("journal_list", time.Now())

	conditions := []string{"school_id = ?"}
	args := []interface{}{filter.SchoolID}
	if filter.ClassID != nil {
		conditions = append(conditions, "class_id = ?")
		args = append(args, *filter.ClassID)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	countQuery := r.db.Rebind("SELECT COUNT(*) FROM class_submission_journal" + where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submission journal: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	listArgs := append(append([]interface{}{}, args...), size, (page-1)*size)
	listQuery := r.db.Rebind("SELECT " + journalColumns + " FROM class_submission_journal" + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?")

	entries := make([]models.SubmissionJournal, 0)
	if err := r.db.SelectContext(ctx, &entries, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list submission journal: %w", err)
	}
	return entries, total, nil
}

func (r *JournalRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}
