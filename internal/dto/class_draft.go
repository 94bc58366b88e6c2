package dto

// CreateDraftRequest opens an authoring session. A class id switches the draft to edit mode.
type CreateDraftRequest struct {
	ClassID int64 `json:"class_id" validate:"omitempty,min=1"`
}

// UpdateFieldRequest changes one class field of a draft.
type UpdateFieldRequest struct {
	Field string `json:"field" validate:"required,oneof=name academicYear startDate endDate startTime endTime"`
	Value string `json:"value" validate:"max=255"`
}

// UpdateSlotRequest changes one field of one schedule slot.
type UpdateSlotRequest struct {
	Field string `json:"field" validate:"required,oneof=subjectId teacherId dayOfWeek startTime endTime"`
	Value string `json:"value" validate:"max=64"`
}

// ExportRequest selects the timetable rendering.
type ExportRequest struct {
	Format string `json:"format" validate:"omitempty,oneof=pdf csv"`
}

// SubmissionQuery filters the submission journal.
type SubmissionQuery struct {
	ClassID  int64 `form:"class_id" validate:"omitempty,min=1"`
	Page     int   `form:"page" validate:"omitempty,min=1"`
	PageSize int   `form:"limit" validate:"omitempty,min=1,max=100"`
}
