package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
)

const dateLayout = "2006-01-02"

// clockLayouts accepts H:MM, HH:MM and HH:MM:SS.
var clockLayouts = []string{"15:04:05", "15:04"}

// ParseClock converts a time of day to minutes since midnight. Seconds are ignored.
func ParseClock(raw string) (int, error) {
	t, err := parseClock(raw)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// NormalizeClock renders a time of day as zero-padded HH:MM:SS.
func NormalizeClock(raw string) (string, error) {
	t, err := parseClock(raw)
	if err != nil {
		return "", err
	}
	return t.Format("15:04:05"), nil
}

// ShortClock renders a time of day as HH:MM, returning raw unchanged when it does not parse.
func ShortClock(raw string) string {
	t, err := parseClock(raw)
	if err != nil {
		return raw
	}
	return t.Format("15:04")
}

func parseClock(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time of day %q", raw)
}

// DraftValidator checks a draft before submission. It is pure and stops at the first failure.
type DraftValidator struct {
	enforceDateOrder bool
}

// NewDraftValidator builds a validator. enforceDateOrder adds the end-date-before-start-date rule.
func NewDraftValidator(enforceDateOrder bool) *DraftValidator {
	return &DraftValidator{enforceDateOrder: enforceDateOrder}
}

// ValidateDraft runs the default rules, without date ordering.
func ValidateDraft(draft models.ClassDraft, slots []models.ScheduleSlotDraft) models.ValidationResult {
	return NewDraftValidator(false).Validate(draft, slots)
}

// Validate checks, in order: required class fields, each class time that is set and then their range,
// the optional date order, then every slot for completeness followed by its time range.
func (v *DraftValidator) Validate(draft models.ClassDraft, slots []models.ScheduleSlotDraft) models.ValidationResult {
	if strings.TrimSpace(draft.Name) == "" {
		return failure(models.ValidationMissingRequiredField, FieldName, "class name is required", nil)
	}
	if strings.TrimSpace(draft.AcademicYear) == "" {
		return failure(models.ValidationMissingRequiredField, FieldAcademicYear, "academic year is required", nil)
	}

	start, end := strings.TrimSpace(draft.StartTime), strings.TrimSpace(draft.EndTime)
	if start != "" {
		if _, err := ParseClock(start); err != nil {
			return failure(models.ValidationInvalidTimeRange, FieldStartTime, fmt.Sprintf("class start time %q is not a valid time", start), nil)
		}
	}
	if end != "" {
		if _, err := ParseClock(end); err != nil {
			return failure(models.ValidationInvalidTimeRange, FieldEndTime, fmt.Sprintf("class end time %q is not a valid time", end), nil)
		}
	}
	if start != "" && end != "" {
		if msg := checkTimeRange(start, end); msg != "" {
			return failure(models.ValidationInvalidTimeRange, FieldEndTime, "class "+msg, nil)
		}
	}

	if v != nil && v.enforceDateOrder {
		if result, failed := checkDateRange(draft); failed {
			return result
		}
	}

	for i, slot := range slots {
		index := i
		if field, msg := incompleteSlot(slot); field != "" {
			return failure(models.ValidationIncompleteSlot, field, fmt.Sprintf("schedule slot %d: %s", i+1, msg), &index)
		}
		if msg := checkTimeRange(slot.StartTime, slot.EndTime); msg != "" {
			return failure(models.ValidationInvalidTimeRange, SlotFieldEndTime, fmt.Sprintf("schedule slot %d: %s", i+1, msg), &index)
		}
	}

	return models.ValidationResult{Valid: true}
}

func failure(kind models.ValidationKind, field, message string, slot *int) models.ValidationResult {
	return models.ValidationResult{Kind: kind, Field: field, Message: message, SlotIndex: slot}
}

func checkTimeRange(start, end string) string {
	startMin, err := ParseClock(start)
	if err != nil {
		return fmt.Sprintf("start time %q is not a valid time", start)
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return fmt.Sprintf("end time %q is not a valid time", end)
	}
	if endMin <= startMin {
		return "end time must be after start time"
	}
	return ""
}

func checkDateRange(draft models.ClassDraft) (models.ValidationResult, bool) {
	start, end := strings.TrimSpace(draft.StartDate), strings.TrimSpace(draft.EndDate)
	if start == "" || end == "" {
		return models.ValidationResult{}, false
	}
	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return failure(models.ValidationInvalidDateRange, FieldStartDate, fmt.Sprintf("start date %q is not a valid date", start), nil), true
	}
	endDate, err := time.Parse(dateLayout, end)
	if err != nil {
		return failure(models.ValidationInvalidDateRange, FieldEndDate, fmt.Sprintf("end date %q is not a valid date", end), nil), true
	}
	if endDate.Before(startDate) {
		return failure(models.ValidationInvalidDateRange, FieldEndDate, "end date must not be before start date", nil), true
	}
	return models.ValidationResult{}, false
}

// incompleteSlot returns the first missing field of slot and why.
func incompleteSlot(slot models.ScheduleSlotDraft) (string, string) {
	switch {
	case strings.TrimSpace(slot.SubjectID) == "":
		return SlotFieldSubject, "subject is required"
	case !isNumericID(slot.SubjectID):
		return SlotFieldSubject, "subject is not a known option"
	case strings.TrimSpace(slot.TeacherID) == "":
		return SlotFieldTeacher, "teacher is required"
	case !isNumericID(slot.TeacherID):
		return SlotFieldTeacher, "teacher is not a known option"
	case models.WeekdayIndex(slot.DayOfWeek) < 0:
		return SlotFieldDayOfWeek, "day of week must be a weekday name"
	case strings.TrimSpace(slot.StartTime) == "":
		return SlotFieldStartTime, "start time is required"
	case strings.TrimSpace(slot.EndTime) == "":
		return SlotFieldEndTime, "end time is required"
	}
	return "", ""
}

func isNumericID(raw string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return err == nil && n > 0
}

// DetectOverlaps lists pairs of slots on the same day, with the same teacher, whose times intersect.
// Slots that are incomplete or carry unparsable times are skipped. The result never blocks submission.
func DetectOverlaps(slots []models.ScheduleSlotDraft) []models.SlotOverlap {
	type span struct {
		index      int
		day        int
		teacher    string
		start, end int
	}
	spans := make([]span, 0, len(slots))
	for i, slot := range slots {
		teacher := strings.TrimSpace(slot.TeacherID)
		day := models.WeekdayIndex(slot.DayOfWeek)
		start, errStart := ParseClock(slot.StartTime)
		end, errEnd := ParseClock(slot.EndTime)
		if teacher == "" || day < 0 || errStart != nil || errEnd != nil || end <= start {
			continue
		}
		spans = append(spans, span{index: i, day: day, teacher: teacher, start: start, end: end})
	}

	overlaps := make([]models.SlotOverlap, 0)
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.day != b.day || a.teacher != b.teacher {
				continue
			}
			if a.start < b.end && b.start < a.end {
				overlaps = append(overlaps, models.SlotOverlap{
					First:     a.index,
					Second:    b.index,
					DayOfWeek: models.Weekdays[a.day],
					TeacherID: a.teacher,
				})
			}
		}
	}
	return overlaps
}

// ValidationError turns a failed result into the VALIDATION_FAILED error carrying the result as details.
func ValidationError(result models.ValidationResult) error {
	if result.Valid {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrDraftInvalid, result.Message, result)
}
