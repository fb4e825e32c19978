// Package roles classifies users into a coarse role and maps roles to their
// dashboard route.
package roles

import (
	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/keyword"
)

// Role is the derived role of a user. It is never persisted.
type Role string

const (
	Student Role = "student"
	Teacher Role = "teacher"
	Admin   Role = "admin"
)

const (
	TeacherDashboard = "/dashboard/teacher"
	StudentDashboard = "/dashboard/student"
)

var (
	teacherKeywords = []string{"teacher", "profesor", "professor", "instructor", "educator"}
	adminKeywords   = []string{"admin", "administrator", "supervisor", "manager"}
)

// Determine classifies u. Declared roles win over the email/name fallback: a
// user with declared roles that match no keyword is a student, even if the
// email says otherwise.
func Determine(u backend.User) Role {
	if len(u.Roles) > 0 {
		for _, r := range u.Roles {
			folded := keyword.Fold(r)
			if keyword.ContainsAny(folded, teacherKeywords) {
				return Teacher
			}
			if keyword.ContainsAny(folded, adminKeywords) {
				return Admin
			}
		}
		return Student
	}

	email := keyword.Fold(u.Email)
	name := keyword.Fold(u.Name)
	switch {
	case keyword.ContainsAny(email, teacherKeywords) || keyword.ContainsAny(name, teacherKeywords):
		return Teacher
	case keyword.ContainsAny(email, adminKeywords) || keyword.ContainsAny(name, adminKeywords):
		return Admin
	default:
		return Student
	}
}

// DashboardRoute returns the landing route for r. Admins share the teacher
// dashboard; unknown values land on the student dashboard.
func DashboardRoute(r Role) string {
	switch r {
	case Teacher, Admin:
		return TeacherDashboard
	default:
		return StudentDashboard
	}
}

// IsTeacher reports whether r has teacher capabilities.
func IsTeacher(r Role) bool {
	return r == Teacher || r == Admin
}

func IsStudent(r Role) bool {
	return r == Student
}

// Parse converts a free-form allow-list entry to a Role. Unknown values are
// returned as-is and match nothing.
func Parse(s string) Role {
	return Role(keyword.Fold(s))
}
