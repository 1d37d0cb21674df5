package model

import "time"

// Role is the closed set of user roles.
type Role string

const (
	RoleSuperAdmin Role = "superAdmin"
	RoleAdmin      Role = "admin"
	RoleModerator  Role = "moderator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Principal is the authenticated caller resolved from an access token.
type Principal struct {
	ID   int64
	Role Role
}

// User is an account that can sign in to the back office.
type User struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	RefreshToken *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Dormitory is a managed residential building, optionally owned by a moderator.
type Dormitory struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Address       *string   `json:"address,omitempty"`
	UserID        *int64    `json:"userId,omitempty"`
	OwnerLogin    *string   `json:"ownerLogin,omitempty"`
	StudentsCount int       `json:"studentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Student is a tracked resident. DormitoryID is nil while unassigned;
// room and job keep their last known values after an unassignment.
type Student struct {
	ID            int64      `json:"id"`
	FullName      string     `json:"fullName"`
	Passport      string     `json:"passport"`
	Faculty       string     `json:"faculty"`
	RoomNumber    *string    `json:"roomNumber,omitempty"`
	Job           *string    `json:"job,omitempty"`
	DormitoryID   *int64     `json:"dormitoryId,omitempty"`
	DormitoryName *string    `json:"dormitoryName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AttendanceRecord is one presence fact per (student, calendar date).
// DormitoryID and RoomNumber are snapshots taken at marking time and must
// never be reconstructed from the student's current assignment.
type AttendanceRecord struct {
	ID            int64     `json:"id"`
	StudentID     int64     `json:"studentId"`
	Date          time.Time `json:"date"`
	IsPresent     bool      `json:"isPresent"`
	DormitoryID   *int64    `json:"dormitoryId,omitempty"`
	DormitoryName *string   `json:"dormitoryName,omitempty"`
	RoomNumber    *string   `json:"roomNumber,omitempty"`
	RecordedBy    *int64    `json:"recordedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PageMeta describes one page of a paginated listing.
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}
