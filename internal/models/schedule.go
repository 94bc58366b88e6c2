package models

import "strings"

// Weekdays lists the accepted day-of-week values in display order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DefaultWeekday is assigned to freshly added slots.
const DefaultWeekday = "Monday"

// Schedule is one persisted weekly slot of a class.
type Schedule struct {
	ID        int64  `json:"id"`
	ClassID   int64  `json:"class_id"`
	SubjectID int64  `json:"subject_id"`
	TeacherID int64  `json:"teacher_id"`
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// SchedulePayload is the POST /schedules body, also embedded in class updates.
type SchedulePayload struct {
	ClassID   int64  `json:"class_id,omitempty"`
	TeacherID int64  `json:"teacher_id"`
	SubjectID int64  `json:"subject_id"`
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// WeekdayIndex returns the position of day in Weekdays (case-insensitive), or -1.
func WeekdayIndex(day string) int {
	day = strings.TrimSpace(day)
	for i, d := range Weekdays {
		if strings.EqualFold(d, day) {
			return i
		}
	}
	return -1
}
