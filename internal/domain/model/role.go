package model

import "time"

const (
	RoleAdmin             = "admin"
	RoleAcademyStudent    = "academy_student"
	RoleMentorshipStudent = "mentorship_student"
	RoleCommunityStudent  = "community_student"
)

// KnownRoles is the global reference set seeded into the roles table.
var KnownRoles = []string{RoleAdmin, RoleAcademyStudent, RoleMentorshipStudent, RoleCommunityStudent}

func IsKnownRole(name string) bool {
	for _, r := range KnownRoles {
		if r == name {
			return true
		}
	}
	return false
}

type Role struct {
	ID   int64
	Name string
}

// UserRole joins a user and a role; unique on (UserID, RoleID).
type UserRole struct {
	UserID    int64
	RoleID    int64
	RoleName  string
	GrantedAt time.Time
}
