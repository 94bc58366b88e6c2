package models

import "time"

// DraftMode tells whether a draft creates a new class or edits an existing one.
type DraftMode string

const (
	DraftModeCreate DraftMode = "CREATE"
	DraftModeEdit   DraftMode = "EDIT"
)

// SubmissionStatus tracks a draft through the two-phase submission.
type SubmissionStatus string

const (
	SubmissionIdle            SubmissionStatus = "IDLE"
	SubmissionValidating      SubmissionStatus = "VALIDATING"
	SubmissionSubmittingClass SubmissionStatus = "SUBMITTING_CLASS"
	SubmissionSubmittingSlots SubmissionStatus = "SUBMITTING_SLOTS"
	SubmissionSucceeded       SubmissionStatus = "SUCCEEDED"
	SubmissionFailed          SubmissionStatus = "FAILED"
)

// ClassDraft holds the class-level form fields. Dates are YYYY-MM-DD, times HH:MM.
type ClassDraft struct {
	Name         string `json:"name"`
	AcademicYear string `json:"academicYear"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
}

// ScheduleSlotDraft is one editable weekly slot. Ids stay in string form until submission.
type ScheduleSlotDraft struct {
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId"`
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DraftError is the last failure recorded on a draft.
type DraftError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Draft is one authoring session owned by a single user.
type Draft struct {
	ID        string              `json:"id"`
	OwnerID   string              `json:"ownerId"`
	Mode      DraftMode           `json:"mode"`
	ClassID   int64               `json:"classId,omitempty"`
	SchoolID  int64               `json:"schoolId"`
	Class     ClassDraft          `json:"class"`
	Slots     []ScheduleSlotDraft `json:"slots"`
	Status    SubmissionStatus    `json:"status"`
	LastError *DraftError         `json:"lastError,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}
