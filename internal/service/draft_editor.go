package service

import (
	"fmt"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
)

// Class draft field names accepted by UpdateField.
const (
	FieldName         = "name"
	FieldAcademicYear = "academicYear"
	FieldStartDate    = "startDate"
	FieldEndDate      = "endDate"
	FieldStartTime    = "startTime"
	FieldEndTime      = "endTime"
)

// Slot field names accepted by UpdateSlot.
const (
	SlotFieldSubject   = "subjectId"
	SlotFieldTeacher   = "teacherId"
	SlotFieldDayOfWeek = "dayOfWeek"
	SlotFieldStartTime = "startTime"
	SlotFieldEndTime   = "endTime"
)

// The editor functions below never modify their input; they return an updated copy.
// Values are stored as given. Checking them is the validator's job.

// UpdateField sets one class field by name.
func UpdateField(draft models.ClassDraft, name, value string) (models.ClassDraft, error) {
	switch name {
	case FieldName:
		draft.Name = value
	case FieldAcademicYear:
		draft.AcademicYear = value
	case FieldStartDate:
		draft.StartDate = value
	case FieldEndDate:
		draft.EndDate = value
	case FieldStartTime:
		draft.StartTime = value
	case FieldEndTime:
		draft.EndTime = value
	default:
		return draft, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown class field %q", name))
	}
	return draft, nil
}

// NewSlot returns an empty slot on the default weekday.
func NewSlot() models.ScheduleSlotDraft {
	return models.ScheduleSlotDraft{DayOfWeek: models.DefaultWeekday}
}

// AddSlot appends an empty slot. There is no upper bound.
func AddSlot(slots []models.ScheduleSlotDraft) []models.ScheduleSlotDraft {
	out := make([]models.ScheduleSlotDraft, len(slots), len(slots)+1)
	copy(out, slots)
	return append(out, NewSlot())
}

// RemoveSlot deletes the slot at index; later slots shift down by one.
func RemoveSlot(slots []models.ScheduleSlotDraft, index int) ([]models.ScheduleSlotDraft, error) {
	if err := checkSlotIndex(slots, index); err != nil {
		return slots, err
	}
	out := make([]models.ScheduleSlotDraft, 0, len(slots)-1)
	out = append(out, slots[:index]...)
	return append(out, slots[index+1:]...), nil
}

// UpdateSlot replaces one field of the slot at index.
func UpdateSlot(slots []models.ScheduleSlotDraft, index int, field, value string) ([]models.ScheduleSlotDraft, error) {
	if err := checkSlotIndex(slots, index); err != nil {
		return slots, err
	}
	slot := slots[index]
	switch field {
	case SlotFieldSubject:
		slot.SubjectID = value
	case SlotFieldTeacher:
		slot.TeacherID = value
	case SlotFieldDayOfWeek:
		slot.DayOfWeek = value
	case SlotFieldStartTime:
		slot.StartTime = value
	case SlotFieldEndTime:
		slot.EndTime = value
	default:
		return slots, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown slot field %q", field))
	}
	out := make([]models.ScheduleSlotDraft, len(slots))
	copy(out, slots)
	out[index] = slot
	return out, nil
}

func checkSlotIndex(slots []models.ScheduleSlotDraft, index int) error {
	if index < 0 || index >= len(slots) {
		return appErrors.Clone(appErrors.ErrSlotNotFound, fmt.Sprintf("slot %d does not exist", index))
	}
	return nil
}
