package models

import (
	"time"

	"github.com/lib/pq"
)

// SubmissionJournal records the outcome of one draft submission, including partial failures.
type SubmissionJournal struct {
	ID           string           `db:"id" json:"id"`
	DraftID      string           `db:"draft_id" json:"draft_id"`
	ActorID      string           `db:"actor_id" json:"actor_id"`
	SchoolID     int64            `db:"school_id" json:"school_id"`
	ClassID      *int64           `db:"class_id" json:"class_id,omitempty"`
	Mode         DraftMode        `db:"mode" json:"mode"`
	Status       SubmissionStatus `db:"status" json:"status"`
	SlotTotal    int              `db:"slot_total" json:"slot_total"`
	SlotCreated  int              `db:"slot_created" json:"slot_created"`
	FailedSlots  pq.Int64Array    `db:"failed_slots" json:"failed_slots"`
	ErrorCode    *string          `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	SchoolID int64
	ClassID  *int64
	Page     int
	PageSize int
}
