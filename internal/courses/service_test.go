package courses

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/platform/cache"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func testData() backend.FixtureData {
	return backend.FixtureData{
		Users: []backend.User{
			{ID: "t1", Name: "Ana García", Email: "ana.profesor@school.com", Roles: []string{"teacher"}},
			{ID: "u1", Name: "Luis", Email: "luis@school.com"},
			{ID: "u2", Name: "Marta", Email: "marta@school.com"},
		},
		Subjects: []backend.Subject{
			{
				ID:   "s1",
				Name: "Fundamentos de Blockchain",
				Subtopics: []backend.Subtopic{
					{ID: "st1", Name: "Bloques", Duration: backend.Int(20), Order: backend.Int(1)},
					{ID: "st2", Name: "Cadenas", Order: backend.Int(2)},
				},
				Assignments: []backend.ClassAssignment{{ID: "a1", TeacherID: "t1"}},
				CreatedAt:   "2024-01-01T00:00:00Z",
			},
			{
				ID:          "s2",
				Name:        "Cálculo Diferencial",
				Description: backend.String("Derivadas y límites"),
				Subtopics:   []backend.Subtopic{{ID: "st3", Name: "Límites"}},
			},
		},
		Progress: []backend.Progress{
			{ID: "p1", UserID: "u1", SubtopicID: "st1", Percentage: 100},
			{ID: "p2", UserID: "u1", SubtopicID: "st2", Percentage: 50},
			{ID: "p3", UserID: "u2", SubtopicID: "st1", Percentage: 100},
			{ID: "p4", UserID: "u1", SubtopicID: "st3", Percentage: 100},
		},
	}
}

func newTestService(opts ...Option) (*Service, *countingBackend) {
	b := &countingBackend{Fixture: backend.NewFixture(testData())}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(b, opts...), b
}

type countingBackend struct {
	*backend.Fixture
	mu       sync.Mutex
	subjects int
	usersErr error
}

func (c *countingBackend) Subjects(ctx context.Context) ([]backend.Subject, error) {
	c.mu.Lock()
	c.subjects++
	c.mu.Unlock()
	return c.Fixture.Subjects(ctx)
}

func (c *countingBackend) Users(ctx context.Context) ([]backend.User, error) {
	if c.usersErr != nil {
		return nil, c.usersErr
	}
	return c.Fixture.Users(ctx)
}

func (c *countingBackend) subjectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subjects
}

type memCache struct {
	mu   sync.Mutex
	data map[string]any
}

func (m *memCache) GetJSON(_ context.Context, key string, dst any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	*(dst.(*[]adapter.Course)) = v.([]adapter.Course)
	return nil
}

func (m *memCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = v
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestCourses(t *testing.T) {
	svc, _ := newTestService()

	courses, err := svc.Courses(context.Background())
	if err != nil {
		t.Fatalf("Courses() error = %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("len(courses) = %d, want 2", len(courses))
	}

	c := courses[0]
	if c.ID != "s1" || c.Level != adapter.Beginner || c.Duration != 50 {
		t.Errorf("course = %+v", c)
	}
	if c.Instructor.Name != "Ana García" {
		t.Errorf("instructor = %+v, want Ana García", c.Instructor)
	}
	if c.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("CreatedAt = %q, want the subject's timestamp", c.CreatedAt)
	}
	if courses[1].Category != adapter.CategoryMath || courses[1].Instructor.Name != "Instructor" {
		t.Errorf("second course = %+v", courses[1])
	}
}

func TestCourses_UsersFailureDegrades(t *testing.T) {
	svc, b := newTestService()
	b.usersErr = errors.New("upstream down")

	courses, err := svc.Courses(context.Background())
	if err != nil {
		t.Fatalf("Courses() error = %v", err)
	}
	if courses[0].Instructor.Name != "Instructor" {
		t.Errorf("instructor = %+v, want default", courses[0].Instructor)
	}

	c, err := svc.Course(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Course() error = %v", err)
	}
	if c.Instructor.Name != "Instructor" {
		t.Errorf("instructor = %+v, want default", c.Instructor)
	}
}

func TestCourses_Cache(t *testing.T) {
	mc := &memCache{data: map[string]any{}}
	svc, b := newTestService(WithCache(mc, time.Minute))
	ctx := context.Background()

	for range 3 {
		if _, err := svc.Courses(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if got := b.subjectCalls(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}

	if _, err := svc.CreateCourse(ctx, adapter.Course{Title: "Historia de América"}); err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	courses, err := svc.Courses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 3 {
		t.Errorf("len(courses) = %d, want 3 after create", len(courses))
	}
	if got := b.subjectCalls(); got != 2 {
		t.Errorf("upstream calls = %d, want 2 after invalidation", got)
	}
}

// gatedBackend holds Subjects until release is closed and fails progress
// reads for user "bad".
type gatedBackend struct {
	*backend.Fixture
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedBackend) Subjects(ctx context.Context) ([]backend.Subject, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Fixture.Subjects(ctx)
}

func (g *gatedBackend) ProgressByUser(ctx context.Context, userID string) ([]backend.Progress, error) {
	if userID == "bad" {
		return nil, errors.New("upstream 500")
	}
	return g.Fixture.ProgressByUser(ctx, userID)
}

func TestCourses_SharedFetchOutlivesFirstCaller(t *testing.T) {
	b := &gatedBackend{
		Fixture: backend.NewFixture(testData()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewService(b)

	// The failing progress fetch cancels the errgroup context that started
	// the course fetch.
	first := make(chan error, 1)
	go func() {
		_, err := svc.UserProgress(context.Background(), "bad")
		first <- err
	}()
	<-b.entered
	if err := <-first; err == nil {
		t.Fatal("UserProgress(bad) error = nil")
	}

	second := make(chan error, 1)
	go func() {
		courses, err := svc.Courses(context.Background())
		if err == nil && len(courses) != 2 {
			err = errors.New("unexpected course count")
		}
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(b.release)

	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("Courses() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Courses() did not return")
	}
}

func TestCourses_CallerCancelReturnsEarly(t *testing.T) {
	b := &gatedBackend{
		Fixture: backend.NewFixture(testData()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	defer close(b.release)
	svc := NewService(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Courses(ctx)
		done <- err
	}()
	<-b.entered
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Courses() error = %v, want context.Canceled", err)
	}
}

func TestCourses_ReturnsIndependentCopies(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Courses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	a[0].Modules[0].Title = "changed"

	b, err := svc.Courses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if b[0].Modules[0].Title == "changed" {
		t.Error("module edits leaked into a later result")
	}
}

func TestCourse_NotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Course(context.Background(), "missing"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Course() error = %v, want ErrNotFound", err)
	}
}

func TestCourseCRUD(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateCourse(ctx, adapter.Course{Title: "Química Avanzada", Description: "Reacciones"})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	if c.Category != adapter.CategoryScience || c.Level != adapter.Advanced || c.Description != "Reacciones" {
		t.Errorf("created = %+v", c)
	}

	updated, err := svc.UpdateCourse(ctx, c.ID, adapter.Course{Title: "Introducción a la Química", Description: "Átomos"})
	if err != nil {
		t.Fatalf("UpdateCourse() error = %v", err)
	}
	if updated.Level != adapter.Beginner || updated.Description != "Átomos" {
		t.Errorf("updated = %+v", updated)
	}

	m, err := svc.CreateModule(ctx, c.ID, adapter.Module{Title: "Átomos", Duration: 15, Order: 1})
	if err != nil {
		t.Fatalf("CreateModule() error = %v", err)
	}
	modules, err := svc.Modules(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 1 || modules[0].ID != m.ID || modules[0].Duration != 15 {
		t.Errorf("modules = %+v", modules)
	}

	renamed, err := svc.UpdateModule(ctx, m.ID, adapter.Module{Title: "Moléculas", Duration: 25, Order: 1})
	if err != nil {
		t.Fatalf("UpdateModule() error = %v", err)
	}
	if renamed.Title != "Moléculas" || renamed.Duration != 25 {
		t.Errorf("renamed = %+v", renamed)
	}
	got, err := svc.Module(ctx, m.ID)
	if err != nil || got.Title != "Moléculas" {
		t.Errorf("Module() = %+v, %v", got, err)
	}
	// The module stays in its course.
	if modules, _ := svc.Modules(ctx, c.ID); len(modules) != 1 {
		t.Errorf("module left its course: %+v", modules)
	}

	if err := svc.DeleteModule(ctx, m.ID); err != nil {
		t.Fatalf("DeleteModule() error = %v", err)
	}
	if err := svc.DeleteCourse(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCourse() error = %v", err)
	}
	if err := svc.DeleteCourse(ctx, c.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("second DeleteCourse() error = %v, want ErrNotFound", err)
	}
}

func TestUserProgress(t *testing.T) {
	svc, _ := newTestService()

	progress, err := svc.UserProgress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserProgress() error = %v", err)
	}
	if len(progress) != 2 {
		t.Fatalf("len(progress) = %d, want 2", len(progress))
	}
	p := progress[0]
	if p.CourseID != "s1" || p.ProgressPercentage != 75 || p.CompletedModulesCount != 1 || p.CurrentModule != "st2" {
		t.Errorf("s1 progress = %+v", p)
	}
	if !p.LastAccessed.Equal(testNow) {
		t.Errorf("LastAccessed = %s, want fallback %s", p.LastAccessed, testNow)
	}
	if progress[1].CourseID != "s2" || progress[1].ProgressPercentage != 100 {
		t.Errorf("s2 progress = %+v", progress[1])
	}

	none, err := svc.UserProgress(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("progress for unknown user = %+v", none)
	}
}

func TestCourseProgress(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.CourseProgress(context.Background(), "u2", "s1")
	if err != nil {
		t.Fatalf("CourseProgress() error = %v", err)
	}
	if p.UserID != "u2" || p.ProgressPercentage != 100 || p.TotalModules != 2 {
		t.Errorf("progress = %+v", p)
	}

	empty, err := svc.CourseProgress(context.Background(), "u2", "s2")
	if err != nil {
		t.Fatal(err)
	}
	if empty.ProgressPercentage != 0 || len(empty.CompletedModules) != 0 || empty.TotalModules != 1 {
		t.Errorf("empty progress = %+v", empty)
	}
}

func TestUpdateModuleProgress(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, err := svc.UpdateModuleProgress(ctx, "u2", "st2", 40)
	if err != nil {
		t.Fatalf("UpdateModuleProgress() error = %v", err)
	}
	if p.Percentage != 40 || p.CompletedAt != nil || p.ProgressType != "learning" {
		t.Errorf("progress = %+v", p)
	}

	done, err := svc.CompleteModule(ctx, "u2", "st2")
	if err != nil {
		t.Fatalf("CompleteModule() error = %v", err)
	}
	if done.Percentage != 100 || done.CompletedAt == nil || !done.CompletedAt.Equal(testNow) {
		t.Errorf("completed = %+v", done)
	}

	for _, pct := range []int{-1, 101} {
		if _, err := svc.UpdateModuleProgress(ctx, "u2", "st2", pct); !errors.Is(err, ErrInvalidPercentage) {
			t.Errorf("UpdateModuleProgress(%d) error = %v, want ErrInvalidPercentage", pct, err)
		}
	}
}

func TestFind(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"s1", "s2"}},
		{"title", Filter{Query: "blockchain"}, []string{"s1"}},
		{"description", Filter{Query: "DERIVADAS"}, []string{"s2"}},
		{"category", Filter{Query: "matemáticas"}, []string{"s2"}},
		{"decomposed accent", Filter{Query: "CA\u0301LCULO"}, []string{"s2"}},
		{"no match", Filter{Query: "historia"}, nil},
		{"by category", Filter{Category: adapter.CategoryGeneral}, []string{"s1"}},
		{"by level", Filter{Level: adapter.Intermediate}, []string{"s2"}},
		{"combined", Filter{Query: "cálculo", Level: adapter.Beginner}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Find(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Find() = %d courses, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("course[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSearchHelpers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if got, _ := svc.Search(ctx, "Cadenas"); len(got) != 0 {
		t.Errorf("Search() matched module title: %+v", got)
	}
	if got, _ := svc.ByCategory(ctx, adapter.CategoryMath); len(got) != 1 || got[0].ID != "s2" {
		t.Errorf("ByCategory() = %+v", got)
	}
	if got, _ := svc.ByLevel(ctx, adapter.Beginner); len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("ByLevel() = %+v", got)
	}
}

func TestRecommended(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.Recommended(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Recommended() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("Recommended() = %+v, want only the unfinished s1", got)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newTestService()

	stats, err := svc.Stats(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := Stats{TotalStudents: 2, AverageProgress: 83, CompletionRate: 67}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}

	empty, err := svc.Stats(context.Background(), "nothing")
	if err != nil {
		t.Fatal(err)
	}
	if empty != (Stats{}) {
		t.Errorf("Stats() for empty course = %+v", empty)
	}
}

func TestCategoriesAndLevels(t *testing.T) {
	svc, _ := newTestService()

	cats, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 || cats[0] != adapter.CategoryGeneral || cats[1] != adapter.CategoryMath {
		t.Errorf("Categories() = %v", cats)
	}

	levels := svc.Levels()
	if len(levels) != 3 || levels[0] != adapter.Beginner || levels[2] != adapter.Advanced {
		t.Errorf("Levels() = %v", levels)
	}
}

func TestTeacherQueries(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	courses, err := svc.TeacherCourses(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 1 || courses[0].ID != "s1" || courses[0].StudentsCount != 1 {
		t.Errorf("TeacherCourses() = %+v", courses)
	}

	students, err := svc.TeacherStudents(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(students) != 2 || students[0].Role != "student" {
		t.Errorf("TeacherStudents() = %+v", students)
	}
}

type noTeacherRoute struct {
	*backend.Fixture
	err error
}

func (n noTeacherRoute) SubjectsByTeacher(context.Context, string) ([]backend.Subject, error) {
	return nil, n.err
}

func TestTeacherCourses_AssignmentFallback(t *testing.T) {
	fx := backend.NewFixture(testData())
	ctx := context.Background()

	svc := NewService(noTeacherRoute{Fixture: fx, err: &backend.APIError{Status: 404, Message: "not found"}})
	courses, err := svc.TeacherCourses(ctx, "t1")
	if err != nil {
		t.Fatalf("TeacherCourses() error = %v", err)
	}
	if len(courses) != 1 || courses[0].ID != "s1" {
		t.Errorf("TeacherCourses() = %+v, want [s1]", courses)
	}
	if courses[0].Instructor.Name != "Ana García" {
		t.Errorf("instructor = %+v", courses[0].Instructor)
	}

	none, err := svc.TeacherCourses(ctx, "u1")
	if err != nil || len(none) != 0 {
		t.Errorf("TeacherCourses(student) = %+v, %v", none, err)
	}

	down := NewService(noTeacherRoute{Fixture: fx, err: errors.New("dial tcp: refused")})
	if _, err := down.TeacherCourses(ctx, "t1"); err == nil {
		t.Error("TeacherCourses() error = nil for a transport failure")
	}
}
