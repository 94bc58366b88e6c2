package models

// ValidationKind classifies the first failure found in a draft.
type ValidationKind string

const (
	ValidationMissingRequiredField ValidationKind = "MissingRequiredField"
	ValidationInvalidTimeRange     ValidationKind = "InvalidTimeRange"
	ValidationIncompleteSlot       ValidationKind = "IncompleteSlot"
	ValidationInvalidDateRange     ValidationKind = "InvalidDateRange"
)

// ValidationResult is the outcome of validating a draft.
type ValidationResult struct {
	Valid     bool           `json:"valid"`
	Kind      ValidationKind `json:"kind,omitempty"`
	Field     string         `json:"field,omitempty"`
	Message   string         `json:"message,omitempty"`
	SlotIndex *int           `json:"slotIndex,omitempty"`
}

// SlotOverlap reports two slots on the same day whose times intersect for the same teacher.
// Overlaps are informational; they never make a draft invalid.
type SlotOverlap struct {
	First     int    `json:"first"`
	Second    int    `json:"second"`
	DayOfWeek string `json:"dayOfWeek"`
	TeacherID string `json:"teacherId"`
}
