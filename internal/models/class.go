package models

// Class is the backend's class record.
type Class struct {
	ID           int64      `json:"id"`
	SchoolID     int64      `json:"school_id"`
	Name         string     `json:"name"`
	AcademicYear string     `json:"academic_year"`
	StartDate    *string    `json:"start_date"`
	EndDate      *string    `json:"end_date"`
	StartTime    *string    `json:"start_time"`
	EndTime      *string    `json:"end_time"`
	Schedules    []Schedule `json:"schedules,omitempty"`
}

// ClassPayload is the POST /classes body. Optional fields are sent as JSON null when empty.
type ClassPayload struct {
	SchoolID     int64   `json:"school_id"`
	Name         string  `json:"name"`
	AcademicYear string  `json:"academic_year"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
}

// ClassUpdatePayload is the PUT /classes/{id} body carrying the full weekly schedule.
type ClassUpdatePayload struct {
	ClassPayload
	Schedules []SchedulePayload `json:"schedules"`
}
