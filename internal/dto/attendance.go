package dto

import "github.com/noah-isme/meal-queue-api/internal/models"

// SubmitAttendanceRequest records a headcount and the reinforcements consumed
// in this session. StudentsNotEating is derived when omitted.
type SubmitAttendanceRequest struct {
	GroupID           string `json:"groupId" validate:"required"`
	Date              string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StudentsPresent   *int   `json:"studentsPresent" validate:"required,min=0"`
	StudentsEating    *int   `json:"studentsEating" validate:"required,min=0"`
	StudentsNotEating *int   `json:"studentsNotEating" validate:"omitempty,min=0"`
	Reinforcements    int    `json:"reinforcements" validate:"min=0"`
}

// AttendanceResult is returned after a submission.
type AttendanceResult struct {
	Record    *models.AttendanceRecord `json:"record"`
	Available int                      `json:"available"`
	Replayed  bool                     `json:"replayed"`
}

// QuotaView describes a group's reinforcement budget for a day.
type QuotaView struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	Date      string `json:"date"`
	Max       int    `json:"max"`
	Used      int    `json:"used"`
	Available int    `json:"available"`
}

// ClearAttendanceResult reports an administrative bulk clear.
type ClearAttendanceResult struct {
	Date    string `json:"date"`
	Deleted int    `json:"deleted"`
}
