package models

import "time"

// AttendanceRecord is the day's headcount and reinforcement tally for a
// (registrant, group) pair. ReinforcementsUsed is cumulative for the day.
type AttendanceRecord struct {
	ID                 string        `db:"id" json:"id"`
	RegistrantID       string        `db:"registrant_id" json:"registrantId"`
	RegistrantName     string        `db:"registrant_name" json:"registrantName"`
	GroupID            string        `db:"group_id" json:"groupId"`
	GroupName          string        `db:"group_name" json:"groupName"`
	GroupCategory      GroupCategory `db:"group_category" json:"groupCategory"`
	Date               time.Time     `db:"date" json:"date"`
	StudentsPresent    int           `db:"students_present" json:"studentsPresent"`
	StudentsEating     int           `db:"students_eating" json:"studentsEating"`
	StudentsNotEating  int           `db:"students_not_eating" json:"studentsNotEating"`
	ReinforcementsUsed int           `db:"reinforcements_used" json:"reinforcementsUsed"`
	Version            int           `db:"version" json:"version"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updatedAt"`
}

// Key returns the record's natural key.
func (r AttendanceRecord) Key() AttendanceKey {
	return AttendanceKey{RegistrantID: r.RegistrantID, GroupID: r.GroupID, Date: r.Date}
}

// AttendanceKey identifies the single attendance row allowed per registrant, group and day.
type AttendanceKey struct {
	RegistrantID string
	GroupID      string
	Date         time.Time
}

// Headcount is the student triple submitted with each attendance save.
type Headcount struct {
	Present   int `json:"present"`
	Eating    int `json:"eating"`
	NotEating int `json:"notEating"`
}

// AttendanceUpdate carries the mutable fields of an attendance row.
type AttendanceUpdate struct {
	Headcount
	ReinforcementsUsed int
	ExpectedVersion    int
}
