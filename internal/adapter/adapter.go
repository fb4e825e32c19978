// Package adapter reshapes backend records into the browser's view models
// and back. Every function is total and pure: inputs are never modified and
// equal inputs produce deep-equal outputs.
package adapter

import (
	"math"
	"slices"
	"time"

	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

const (
	noDescription   = "Sin descripción"
	defaultTeacher  = "Instructor"
	defaultDuration = 30
	defaultOrder    = 1
	defaultRating   = 4.5

	// ProgressTypeLearning is the progress type recorded for module work.
	ProgressTypeLearning = "learning"
)

// SubjectToCourse converts s into a Course. teacher may be nil.
func SubjectToCourse(s backend.Subject, teacher *backend.User) Course {
	instructor := Instructor{Name: defaultTeacher}
	if teacher != nil {
		if teacher.Name != "" {
			instructor.Name = teacher.Name
		}
		instructor.Email = teacher.Email
		instructor.Image = teacher.Image
	}

	return Course{
		ID:            s.ID,
		Title:         s.Name,
		Description:   valueOr(s.Description, noDescription),
		Category:      MapCategory(s.Name),
		Level:         MapLevel(s.Name),
		Instructor:    instructor,
		Price:         0,
		Rating:        defaultRating,
		StudentsCount: len(s.Assignments),
		Duration:      CalculateDuration(s.Subtopics),
		Modules:       SubtopicsToModules(s.Subtopics),
		Thumbnail:     CourseThumbnail(s.Name),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// SubjectsToCourses converts subjects, picking for each the first user in
// teachers that holds an assignment on it.
func SubjectsToCourses(subjects []backend.Subject, teachers []backend.User) []Course {
	courses := make([]Course, 0, len(subjects))
	for _, s := range subjects {
		courses = append(courses, SubjectToCourse(s, findTeacher(s, teachers)))
	}
	return courses
}

func findTeacher(s backend.Subject, teachers []backend.User) *backend.User {
	for i := range teachers {
		for _, a := range s.Assignments {
			if a.TeacherID == teachers[i].ID {
				t := teachers[i]
				return &t
			}
		}
	}
	return nil
}

// SubtopicToModule converts st into a Module. Completion comes from the
// attached progress row, if any.
func SubtopicToModule(st backend.Subtopic) Module {
	m := Module{
		ID:          st.ID,
		Title:       st.Name,
		Description: valueOr(st.Description, noDescription),
		Content:     valueOr(st.Content, ""),
		VideoURL:    st.VideoURL,
		Duration:    nonZeroOr(st.Duration, defaultDuration),
		Order:       nonZeroOr(st.Order, defaultOrder),
	}
	if st.Progress != nil {
		m.Progress = st.Progress.Percentage
		m.Completed = st.Progress.Percentage == 100
	}
	return m
}

func SubtopicsToModules(subtopics []backend.Subtopic) []Module {
	modules := make([]Module, 0, len(subtopics))
	for _, st := range subtopics {
		modules = append(modules, SubtopicToModule(st))
	}
	return modules
}

// CalculateDuration sums subtopic durations in minutes. A missing or zero
// duration counts as 30.
func CalculateDuration(subtopics []backend.Subtopic) int {
	total := 0
	for _, st := range subtopics {
		total += nonZeroOr(st.Duration, defaultDuration)
	}
	return total
}

// ProgressToCourseProgress aggregates the rows of progress that belong to
// modules. LastAccessed falls back to the current time when no row applies.
func ProgressToCourseProgress(progress []backend.Progress, courseID string, modules []Module) CourseProgress {
	return ProgressToCourseProgressAt(progress, courseID, modules, time.Now())
}

// ProgressToCourseProgressAt is ProgressToCourseProgress with an explicit
// fallback time.
//
// Every row for a module of the course counts toward the mean. A module is
// listed once in CompletedModules even when several of its rows reach 100.
func ProgressToCourseProgressAt(progress []backend.Progress, courseID string, modules []Module, now time.Time) CourseProgress {
	inCourse := make(map[string]bool, len(modules))
	for _, m := range modules {
		inCourse[m.ID] = true
	}
	var rows []backend.Progress
	for _, p := range progress {
		if inCourse[p.SubtopicID] {
			rows = append(rows, p)
		}
	}

	cp := CourseProgress{
		CourseID:         courseID,
		CompletedModules: []string{},
		LastAccessed:     now,
		TotalModules:     len(modules),
	}
	if len(rows) == 0 {
		return cp
	}

	cp.UserID = rows[0].UserID
	completed := make(map[string]bool)
	best := 0
	sum := 0
	var last time.Time
	for _, p := range rows {
		sum += p.Percentage
		if p.Percentage == 100 && !completed[p.SubtopicID] {
			completed[p.SubtopicID] = true
			cp.CompletedModules = append(cp.CompletedModules, p.SubtopicID)
		}
		if p.Percentage > 0 && p.Percentage < 100 && p.Percentage > best {
			best = p.Percentage
			cp.CurrentModule = p.SubtopicID
		}
		if p.UpdatedAt.After(last) {
			last = p.UpdatedAt
		}
	}

	cp.ProgressPercentage = round(float64(sum) / float64(len(rows)))
	cp.CompletedModulesCount = len(cp.CompletedModules)
	if !last.IsZero() {
		cp.LastAccessed = last
	}
	return cp
}

// ProgressListToCourseProgress groups progress rows by the course that owns
// their subtopic and aggregates each group. Rows for unknown subtopics are
// dropped. Results follow the order of courses.
func ProgressListToCourseProgress(progress []backend.Progress, courses []Course, now time.Time) []CourseProgress {
	owner := make(map[string]string)
	for _, c := range courses {
		for _, m := range c.Modules {
			if _, ok := owner[m.ID]; !ok {
				owner[m.ID] = c.ID
			}
		}
	}

	grouped := make(map[string][]backend.Progress)
	for _, p := range progress {
		if id, ok := owner[p.SubtopicID]; ok {
			grouped[id] = append(grouped[id], p)
		}
	}

	out := []CourseProgress{}
	for _, c := range courses {
		rows, ok := grouped[c.ID]
		if !ok {
			continue
		}
		out = append(out, ProgressToCourseProgressAt(rows, c.ID, c.Modules, now))
		delete(grouped, c.ID)
	}
	return out
}

// MapRole maps declared backend roles to the browser's role labels. Only
// exact labels count here, unlike roles.Determine.
func MapRole(declared []string) string {
	switch {
	case slices.Contains(declared, "admin"):
		return "institution"
	case slices.Contains(declared, "teacher"):
		return "teacher"
	default:
		return "student"
	}
}

func UserToView(u backend.User) UserView {
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      MapRole(u.Roles),
		Avatar:    u.Image,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func nonZeroOr(n *int, fallback int) int {
	if n == nil || *n == 0 {
		return fallback
	}
	return *n
}

// round rounds half away from zero for the non-negative values used here.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}
