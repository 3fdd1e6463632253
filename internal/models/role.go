package models

// Role is a capability granted to a user. Roles live in their own table so a
// single person can hold several (an HOD who also teaches, for example).
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleStudent       Role = "student"
	RoleFaculty       Role = "faculty"
	RoleLibrary       Role = "library"
	RoleHostel        Role = "hostel"
	RoleCollegeOffice Role = "college_office"
	RoleHOD           Role = "hod"
	RoleLabInstructor Role = "lab_instructor"
	RoleCounsellor    Role = "counsellor"
	RoleClassAdvisor  Role = "class_advisor"
)

// RoleSet is the capability set attached to an identity.
type RoleSet []Role

// Has is the single capability predicate used everywhere a role check happens.
func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny reports whether any of the given roles is held.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// UserRoleRow is one granted capability as stored in user_roles.
type UserRoleRow struct {
	UserID string `db:"user_id" json:"user_id"`
	Role   Role   `db:"role" json:"role"`
}
