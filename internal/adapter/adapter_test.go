package adapter

import (
	"reflect"
	"testing"
	"time"

	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

func sampleSubject() backend.Subject {
	return backend.Subject{
		ID:          "s1",
		Name:        "Fundamentos de Blockchain",
		Description: backend.String("Cadenas de bloques"),
		Subtopics: []backend.Subtopic{
			{ID: "st1", Name: "Bloques", SubjectID: "s1", Duration: backend.Int(20)},
			{ID: "st2", Name: "Cadenas", SubjectID: "s1"},
		},
		Assignments: []backend.ClassAssignment{
			{ID: "a1", SubjectID: "s1", TeacherID: "t1"},
			{ID: "a2", SubjectID: "s1", TeacherID: "t2"},
		},
		CreatedAt: "2025-01-01T00:00:00Z",
		UpdatedAt: "2025-02-01T00:00:00Z",
	}
}

func TestSubjectToCourse_Scenario(t *testing.T) {
	c := SubjectToCourse(sampleSubject(), nil)

	if c.ID != "s1" || c.Title != "Fundamentos de Blockchain" {
		t.Errorf("identity = %q/%q", c.ID, c.Title)
	}
	if c.Level != Beginner {
		t.Errorf("level = %q, want Principiante", c.Level)
	}
	if c.Duration != 50 {
		t.Errorf("duration = %d, want 50", c.Duration)
	}
	if c.Category != CategoryGeneral || c.Thumbnail != "/placeholder-course.jpg" {
		t.Errorf("category/thumbnail = %q/%q", c.Category, c.Thumbnail)
	}
	if c.Price != 0 || c.Rating != 4.5 {
		t.Errorf("price/rating = %v/%v", c.Price, c.Rating)
	}
	if c.StudentsCount != 2 {
		t.Errorf("studentsCount = %d, want 2", c.StudentsCount)
	}
	if c.Instructor.Name != "Instructor" || c.Instructor.Email != "" || c.Instructor.Image != nil {
		t.Errorf("instructor = %+v", c.Instructor)
	}
	if c.CreatedAt != "2025-01-01T00:00:00Z" {
		t.Errorf("createdAt = %q", c.CreatedAt)
	}
	if len(c.Modules) != 2 || c.Modules[1].Duration != 30 {
		t.Errorf("modules = %+v", c.Modules)
	}
}

func TestSubjectToCourse_Defaults(t *testing.T) {
	c := SubjectToCourse(backend.Subject{ID: "x", Name: "Taller", Description: backend.String("")}, &backend.User{Email: "t@x.com"})
	if c.Description != "Sin descripción" {
		t.Errorf("description = %q", c.Description)
	}
	if c.Duration != 0 || len(c.Modules) != 0 || c.Modules == nil {
		t.Errorf("duration/modules = %d/%v", c.Duration, c.Modules)
	}
	if c.Instructor.Name != "Instructor" || c.Instructor.Email != "t@x.com" {
		t.Errorf("instructor = %+v", c.Instructor)
	}
	if c.Level != Intermediate {
		t.Errorf("level = %q", c.Level)
	}
}

func TestSubjectToCourse_IdempotentAndPure(t *testing.T) {
	s := sampleSubject()
	teacher := &backend.User{ID: "t1", Name: "Ana", Email: "ana@x.com", Image: backend.String("/ana.png")}
	before := sampleSubject()

	a := SubjectToCourse(s, teacher)
	b := SubjectToCourse(s, teacher)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated calls differ:\n%+v\n%+v", a, b)
	}
	if !reflect.DeepEqual(s, before) {
		t.Error("SubjectToCourse mutated its input")
	}
	if a.Instructor.Name != "Ana" || *a.Instructor.Image != "/ana.png" {
		t.Errorf("instructor = %+v", a.Instructor)
	}
}

func TestSubjectsToCourses_TeacherLookup(t *testing.T) {
	users := []backend.User{
		{ID: "u9", Name: "Otro"},
		{ID: "t2", Name: "Beto"},
		{ID: "t1", Name: "Ana"},
	}
	courses := SubjectsToCourses([]backend.Subject{sampleSubject(), {ID: "s2", Name: "Historia"}}, users)
	if len(courses) != 2 {
		t.Fatalf("courses = %d", len(courses))
	}
	// First user in the list with any assignment on the subject.
	if courses[0].Instructor.Name != "Beto" {
		t.Errorf("instructor = %q, want Beto", courses[0].Instructor.Name)
	}
	if courses[1].Instructor.Name != "Instructor" {
		t.Errorf("instructor = %q, want default", courses[1].Instructor.Name)
	}
}

func TestMapCategory(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Introducción a Cálculo Avanzado", "Matemáticas"},
		{"ÁLGEBRA lineal", "Matemáticas"},
		{"Física cuántica", "Ciencias"},
		{"Programación en Go", "Tecnología"},
		{"Desarrollo web", "Tecnología"},
		{"Historia de Paraguay", "Humanidades"},
		{"Inglés para todos", "Idiomas"},
		{"Ciencia de datos con código", "Ciencias"},
		{"Blockchain", "General"},
		{"", "General"},
	}
	for _, tt := range tests {
		if got := MapCategory(tt.name); got != tt.want {
			t.Errorf("MapCategory(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMapLevel(t *testing.T) {
	tests := []struct {
		name string
		want Level
	}{
		{"Introducción a Cálculo Avanzado", Beginner},
		{"Cálculo Avanzado", Advanced},
		{"Inglés Básico", Beginner},
		{"Go para expertos", Advanced},
		{"MASTER en datos", Advanced},
		{"Química", Intermediate},
	}
	for _, tt := range tests {
		if got := MapLevel(tt.name); got != tt.want {
			t.Errorf("MapLevel(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCourseThumbnail(t *testing.T) {
	if got := CourseThumbnail("Álgebra"); got != "/placeholder-math.jpg" {
		t.Errorf("thumbnail = %q", got)
	}
	if got := CourseThumbnail("Idiomas del mundo"); got != "/placeholder-languages.jpg" {
		t.Errorf("thumbnail = %q", got)
	}
}

func TestSubtopicToModule(t *testing.T) {
	tests := []struct {
		name          string
		st            backend.Subtopic
		wantDuration  int
		wantOrder     int
		wantCompleted bool
		wantProgress  int
	}{
		{"defaults", backend.Subtopic{ID: "a"}, 30, 1, false, 0},
		{"zero duration defaults", backend.Subtopic{ID: "a", Duration: backend.Int(0), Order: backend.Int(0)}, 30, 1, false, 0},
		{"explicit", backend.Subtopic{ID: "a", Duration: backend.Int(45), Order: backend.Int(3)}, 45, 3, false, 0},
		{"completed", backend.Subtopic{ID: "a", Progress: &backend.Progress{Percentage: 100}}, 30, 1, true, 100},
		{"partial", backend.Subtopic{ID: "a", Progress: &backend.Progress{Percentage: 99}}, 30, 1, false, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := SubtopicToModule(tt.st)
			if m.Duration != tt.wantDuration || m.Order != tt.wantOrder {
				t.Errorf("duration/order = %d/%d", m.Duration, m.Order)
			}
			if m.Completed != tt.wantCompleted || m.Progress != tt.wantProgress {
				t.Errorf("completed/progress = %v/%d", m.Completed, m.Progress)
			}
			if m.Description != "Sin descripción" || m.Content != "" {
				t.Errorf("description/content = %q/%q", m.Description, m.Content)
			}
		})
	}
}

func modulesOf(ids ...string) []Module {
	ms := make([]Module, len(ids))
	for i, id := range ids {
		ms[i] = Module{ID: id}
	}
	return ms
}

func TestProgressToCourseProgress_Empty(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cp := ProgressToCourseProgressAt(nil, "c1", modulesOf("m1", "m2"), now)

	if cp.ProgressPercentage != 0 {
		t.Errorf("percentage = %d, want 0", cp.ProgressPercentage)
	}
	if cp.CompletedModules == nil || len(cp.CompletedModules) != 0 {
		t.Errorf("completedModules = %v, want empty", cp.CompletedModules)
	}
	if cp.CurrentModule != "" {
		t.Errorf("currentModule = %q, want unset", cp.CurrentModule)
	}
	if !cp.LastAccessed.Equal(now) {
		t.Errorf("lastAccessed = %v, want %v", cp.LastAccessed, now)
	}
	if cp.TotalModules != 2 || cp.UserID != "" {
		t.Errorf("totals = %+v", cp)
	}
}

func TestProgressToCourseProgress(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	progress := []backend.Progress{
		{UserID: "u1", SubtopicID: "m1", Percentage: 100, UpdatedAt: t1},
		{UserID: "u1", SubtopicID: "m2", Percentage: 40, UpdatedAt: t2},
		{UserID: "u1", SubtopicID: "m3", Percentage: 75, UpdatedAt: t1},
		{UserID: "u1", SubtopicID: "other", Percentage: 10, UpdatedAt: t3},
	}
	before := append([]backend.Progress(nil), progress...)

	cp := ProgressToCourseProgressAt(progress, "c1", modulesOf("m1", "m2", "m3", "m4"), time.Time{})

	if cp.UserID != "u1" || cp.CourseID != "c1" {
		t.Errorf("ids = %q/%q", cp.UserID, cp.CourseID)
	}
	if !reflect.DeepEqual(cp.CompletedModules, []string{"m1"}) || cp.CompletedModulesCount != 1 {
		t.Errorf("completed = %v (%d)", cp.CompletedModules, cp.CompletedModulesCount)
	}
	if cp.CurrentModule != "m3" {
		t.Errorf("currentModule = %q, want m3", cp.CurrentModule)
	}
	// (100 + 40 + 75) / 3 = 71.67
	if cp.ProgressPercentage != 72 {
		t.Errorf("percentage = %d, want 72", cp.ProgressPercentage)
	}
	if !cp.LastAccessed.Equal(t2) {
		t.Errorf("lastAccessed = %v, want %v", cp.LastAccessed, t2)
	}
	if cp.TotalModules != 4 {
		t.Errorf("totalModules = %d", cp.TotalModules)
	}
	if !reflect.DeepEqual(progress, before) {
		t.Error("input mutated")
	}
}

func TestProgressToCourseProgress_RepeatedRows(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	progress := []backend.Progress{
		{UserID: "u1", SubtopicID: "m1", Percentage: 100, UpdatedAt: t0},
		{UserID: "u1", SubtopicID: "m1", Percentage: 40, UpdatedAt: t0.Add(time.Minute)},
		{UserID: "u1", SubtopicID: "m2", Percentage: 20, UpdatedAt: t0.Add(2 * time.Minute)},
		{UserID: "u1", SubtopicID: "m1", Percentage: 100, UpdatedAt: t0.Add(3 * time.Minute)},
	}
	cp := ProgressToCourseProgressAt(progress, "c1", modulesOf("m1", "m2"), t0)

	// Every row counts toward the mean: round(260/4).
	if cp.ProgressPercentage != 65 {
		t.Errorf("percentage = %d, want 65", cp.ProgressPercentage)
	}
	if !reflect.DeepEqual(cp.CompletedModules, []string{"m1"}) || cp.CompletedModulesCount != 1 {
		t.Errorf("completed = %v (%d), want [m1]", cp.CompletedModules, cp.CompletedModulesCount)
	}
	if cp.CurrentModule != "m1" {
		t.Errorf("current = %q, want m1", cp.CurrentModule)
	}
	if !cp.LastAccessed.Equal(t0.Add(3 * time.Minute)) {
		t.Errorf("last accessed = %v", cp.LastAccessed)
	}
}

func TestProgressToCourseProgress_CompletedThenRevisited(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	progress := []backend.Progress{
		{SubtopicID: "m1", Percentage: 100, UpdatedAt: t0},
		{SubtopicID: "m1", Percentage: 40, UpdatedAt: t0.Add(time.Minute)},
		{SubtopicID: "m2", Percentage: 20},
	}
	cp := ProgressToCourseProgressAt(progress, "c1", modulesOf("m1", "m2"), t0)
	if cp.ProgressPercentage != 53 {
		t.Errorf("percentage = %d, want 53", cp.ProgressPercentage)
	}
	if !reflect.DeepEqual(cp.CompletedModules, []string{"m1"}) {
		t.Errorf("completed = %v, want [m1]", cp.CompletedModules)
	}
}

func TestProgressToCourseProgress_Rounding(t *testing.T) {
	progress := []backend.Progress{
		{SubtopicID: "m1", Percentage: 50},
		{SubtopicID: "m2", Percentage: 51},
	}
	if got := ProgressToCourseProgressAt(progress, "c", modulesOf("m1", "m2"), time.Time{}).ProgressPercentage; got != 51 {
		t.Errorf("round(50.5) = %d, want 51", got)
	}
}

func TestProgressListToCourseProgress(t *testing.T) {
	courses := []Course{
		{ID: "c1", Modules: modulesOf("m1", "m2")},
		{ID: "c2", Modules: modulesOf("m3")},
		{ID: "c3", Modules: modulesOf("m4")},
	}
	progress := []backend.Progress{
		{UserID: "u1", SubtopicID: "m3", Percentage: 100},
		{UserID: "u1", SubtopicID: "m1", Percentage: 50},
		{UserID: "u1", SubtopicID: "zz", Percentage: 50},
	}
	got := ProgressListToCourseProgress(progress, courses, time.Time{})
	if len(got) != 2 {
		t.Fatalf("groups = %d, want 2", len(got))
	}
	if got[0].CourseID != "c1" || got[0].ProgressPercentage != 50 {
		t.Errorf("c1 = %+v", got[0])
	}
	if got[1].CourseID != "c2" || got[1].CompletedModulesCount != 1 {
		t.Errorf("c2 = %+v", got[1])
	}
}

func TestMapRole(t *testing.T) {
	tests := []struct {
		roles []string
		want  string
	}{
		{[]string{"admin"}, "institution"},
		{[]string{"teacher", "admin"}, "institution"},
		{[]string{"teacher"}, "teacher"},
		{[]string{"Teacher"}, "student"},
		{[]string{"profesor"}, "student"},
		{nil, "student"},
	}
	for _, tt := range tests {
		if got := MapRole(tt.roles); got != tt.want {
			t.Errorf("MapRole(%v) = %q, want %q", tt.roles, got, tt.want)
		}
	}
}

func TestUserToView(t *testing.T) {
	u := backend.User{ID: "u1", Name: "Ana", Email: "a@x.com", Image: backend.String("/a.png"), Roles: []string{"teacher"}}
	v := UserToView(u)
	if v.Role != "teacher" || v.Avatar == nil || *v.Avatar != "/a.png" {
		t.Errorf("view = %+v", v)
	}
}
