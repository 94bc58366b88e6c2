package models

import (
	"strconv"
	"strings"
)

// Principal is the acting principal's profile from /principals/me.
type Principal struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"user_id"`
	SchoolID int64 `json:"school_id"`
}

// Subject is a subject option offered by the school.
type Subject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Teacher is a teacher option. Schedules reference teachers by UserID.
type Teacher struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last names.
func (t Teacher) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// ReferenceData is a read-only snapshot of the lookups used by the authoring form.
type ReferenceData struct {
	SchoolID int64     `json:"schoolId"`
	Subjects []Subject `json:"subjects"`
	Teachers []Teacher `json:"teachers"`
}

// SubjectByID finds a subject by its id in string or numeric form.
func (r *ReferenceData) SubjectByID(id string) (Subject, bool) {
	if r == nil {
		return Subject{}, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return Subject{}, false
	}
	for _, s := range r.Subjects {
		if s.ID == n {
			return s, true
		}
	}
	return Subject{}, false
}

// TeacherByID finds a teacher by user id.
func (r *ReferenceData) TeacherByID(id string) (Teacher, bool) {
	if r == nil {
		return Teacher{}, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return Teacher{}, false
	}
	for _, t := range r.Teachers {
		if t.UserID == n {
			return t, true
		}
	}
	return Teacher{}, false
}
