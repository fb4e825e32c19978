// Package courses serves courses, modules and progress by composing upstream
// subjects, subtopics and progress rows through the adapter.
package courses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/keyword"
	"github.com/p-n-ai/arandu-gateway/internal/platform/cache"
)

// ErrInvalidPercentage is returned for progress outside 0..100.
var ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")

const (
	coursesCacheKey = "arandu:courses:all"

	defaultFetchTimeout = 10 * time.Second
)

// Backend is the upstream surface the service needs.
type Backend interface {
	Users(ctx context.Context) ([]backend.User, error)
	Subjects(ctx context.Context) ([]backend.Subject, error)
	Subject(ctx context.Context, id string) (backend.Subject, error)
	CreateSubject(ctx context.Context, in backend.SubjectInput) (backend.Subject, error)
	UpdateSubject(ctx context.Context, id string, in backend.SubjectInput) (backend.Subject, error)
	DeleteSubject(ctx context.Context, id string) error
	SubjectsByTeacher(ctx context.Context, teacherID string) ([]backend.Subject, error)
	AssignmentsByTeacher(ctx context.Context, teacherID string) ([]backend.ClassAssignment, error)
	StudentsByTeacher(ctx context.Context, teacherID string) ([]backend.User, error)
	Subtopics(ctx context.Context, subjectID string) ([]backend.Subtopic, error)
	Subtopic(ctx context.Context, id string) (backend.Subtopic, error)
	CreateSubtopic(ctx context.Context, in backend.SubtopicInput) (backend.Subtopic, error)
	UpdateSubtopic(ctx context.Context, id string, in backend.SubtopicInput) (backend.Subtopic, error)
	DeleteSubtopic(ctx context.Context, id string) error
	Progress(ctx context.Context) ([]backend.Progress, error)
	ProgressByUser(ctx context.Context, userID string) ([]backend.Progress, error)
	CreateProgress(ctx context.Context, in backend.ProgressInput) (backend.Progress, error)
}

// Cache stores the course list. *cache.Cache implements it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Service implements the course operations.
type Service struct {
	backend Backend
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time

	fetchTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches the full course list for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithClock overrides the time source used for completion times and the
// LastAccessed fallback.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithFetchTimeout bounds the shared course list fetch, which outlives the
// request that started it.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func NewService(b Backend, opts ...Option) *Service {
	s := &Service{backend: b, now: time.Now, fetchTimeout: defaultFetchTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Courses returns every course with its teacher resolved. Concurrent misses
// share one upstream fetch, which is detached from any single caller so one
// cancelled request does not fail the others waiting on it.
func (s *Service) Courses(ctx context.Context) ([]adapter.Course, error) {
	if s.cache != nil {
		var cached []adapter.Course
		err := s.cache.GetJSON(ctx, coursesCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("course cache read failed", "error", err)
		}
	}

	ch := s.group.DoChan(coursesCacheKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		courses, err := s.fetchCourses(fctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetJSON(fctx, coursesCacheKey, courses, s.ttl); err != nil {
				slog.Warn("course cache write failed", "error", err)
			}
		}
		return courses, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneCourses(res.Val.([]adapter.Course)), nil
	}
}

// cloneCourses copies the course and module slices shared by a flight.
func cloneCourses(in []adapter.Course) []adapter.Course {
	out := slices.Clone(in)
	for i := range out {
		out[i].Modules = slices.Clone(out[i].Modules)
	}
	return out
}

func (s *Service) fetchCourses(ctx context.Context) ([]adapter.Course, error) {
	var (
		subjects []backend.Subject
		teachers []backend.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subjects, err = s.backend.Subjects(gctx)
		if err != nil {
			return fmt.Errorf("fetch subjects: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		teachers = s.users(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return adapter.SubjectsToCourses(subjects, teachers), nil
}

// users degrades to no teacher lookup on failure.
func (s *Service) users(ctx context.Context) []backend.User {
	users, err := s.backend.Users(ctx)
	if err != nil {
		slog.Warn("user list unavailable, courses keep the default instructor", "error", err)
		return nil
	}
	return users
}

// Course returns one course with its teacher resolved.
func (s *Service) Course(ctx context.Context, id string) (adapter.Course, error) {
	var (
		subject  backend.Subject
		teachers []backend.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subject, err = s.backend.Subject(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch subject %s: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		teachers = s.users(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return adapter.Course{}, err
	}
	courses := adapter.SubjectsToCourses([]backend.Subject{subject}, teachers)
	return courses[0], nil
}

func (s *Service) CreateCourse(ctx context.Context, c adapter.Course) (adapter.Course, error) {
	subject, err := s.backend.CreateSubject(ctx, adapter.CourseToSubject(c))
	if err != nil {
		return adapter.Course{}, fmt.Errorf("create subject: %w", err)
	}
	s.invalidate(ctx)
	return adapter.SubjectToCourse(subject, nil), nil
}

func (s *Service) UpdateCourse(ctx context.Context, id string, c adapter.Course) (adapter.Course, error) {
	subject, err := s.backend.UpdateSubject(ctx, id, adapter.CourseToSubject(c))
	if err != nil {
		return adapter.Course{}, fmt.Errorf("update subject %s: %w", id, err)
	}
	s.invalidate(ctx)
	return adapter.SubjectToCourse(subject, nil), nil
}

func (s *Service) DeleteCourse(ctx context.Context, id string) error {
	if err := s.backend.DeleteSubject(ctx, id); err != nil {
		return fmt.Errorf("delete subject %s: %w", id, err)
	}
	s.invalidate(ctx)
	return nil
}

// Modules returns the modules of a course in upstream order.
func (s *Service) Modules(ctx context.Context, courseID string) ([]adapter.Module, error) {
	subtopics, err := s.backend.Subtopics(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch subtopics: %w", err)
	}
	return adapter.SubtopicsToModules(subtopics), nil
}

func (s *Service) Module(ctx context.Context, id string) (adapter.Module, error) {
	st, err := s.backend.Subtopic(ctx, id)
	if err != nil {
		return adapter.Module{}, fmt.Errorf("fetch subtopic %s: %w", id, err)
	}
	return adapter.SubtopicToModule(st), nil
}

func (s *Service) CreateModule(ctx context.Context, courseID string, m adapter.Module) (adapter.Module, error) {
	st, err := s.backend.CreateSubtopic(ctx, adapter.ModuleToSubtopic(m, courseID))
	if err != nil {
		return adapter.Module{}, fmt.Errorf("create subtopic: %w", err)
	}
	s.invalidate(ctx)
	return adapter.SubtopicToModule(st), nil
}

// UpdateModule keeps the module in its course; the subject is not sent.
func (s *Service) UpdateModule(ctx context.Context, id string, m adapter.Module) (adapter.Module, error) {
	st, err := s.backend.UpdateSubtopic(ctx, id, adapter.ModuleToSubtopic(m, ""))
	if err != nil {
		return adapter.Module{}, fmt.Errorf("update subtopic %s: %w", id, err)
	}
	s.invalidate(ctx)
	return adapter.SubtopicToModule(st), nil
}

func (s *Service) DeleteModule(ctx context.Context, id string) error {
	if err := s.backend.DeleteSubtopic(ctx, id); err != nil {
		return fmt.Errorf("delete subtopic %s: %w", id, err)
	}
	s.invalidate(ctx)
	return nil
}

// UserProgress fetches the user's full progress list and groups it per course.
func (s *Service) UserProgress(ctx context.Context, userID string) ([]adapter.CourseProgress, error) {
	var (
		progress []backend.Progress
		courses  []adapter.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		progress, err = s.backend.ProgressByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		courses, err = s.Courses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return adapter.ProgressListToCourseProgress(progress, courses, s.now()), nil
}

// CourseProgress aggregates the user's progress on one course.
func (s *Service) CourseProgress(ctx context.Context, userID, courseID string) (adapter.CourseProgress, error) {
	var (
		progress []backend.Progress
		course   adapter.Course
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		progress, err = s.backend.ProgressByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		course, err = s.Course(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return adapter.CourseProgress{}, err
	}
	return adapter.ProgressToCourseProgressAt(progress, courseID, course.Modules, s.now()), nil
}

// CompleteModule records 100% progress with a completion time.
func (s *Service) CompleteModule(ctx context.Context, userID, moduleID string) (backend.Progress, error) {
	return s.UpdateModuleProgress(ctx, userID, moduleID, 100)
}

// UpdateModuleProgress records a new progress row. A completion time is set
// only at 100%.
func (s *Service) UpdateModuleProgress(ctx context.Context, userID, moduleID string, percentage int) (backend.Progress, error) {
	if percentage < 0 || percentage > 100 {
		return backend.Progress{}, ErrInvalidPercentage
	}
	in := backend.ProgressInput{
		UserID:       userID,
		SubtopicID:   moduleID,
		ProgressType: adapter.ProgressTypeLearning,
		Percentage:   percentage,
	}
	if percentage == 100 {
		at := s.now()
		in.CompletedAt = &at
	}
	p, err := s.backend.CreateProgress(ctx, in)
	if err != nil {
		return backend.Progress{}, fmt.Errorf("record progress: %w", err)
	}
	return p, nil
}

// Filter narrows the course list. Empty fields match everything.
type Filter struct {
	Query    string
	Category string
	Level    adapter.Level
}

// Find returns the courses matching every set field of f. Query matches
// title, description or category ignoring case and accent composition.
func (s *Service) Find(ctx context.Context, f Filter) ([]adapter.Course, error) {
	courses, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	term := keyword.Fold(f.Query)
	out := []adapter.Course{}
	for _, c := range courses {
		if f.Category != "" && c.Category != f.Category {
			continue
		}
		if f.Level != "" && c.Level != f.Level {
			continue
		}
		if term != "" &&
			!strings.Contains(keyword.Fold(c.Title), term) &&
			!strings.Contains(keyword.Fold(c.Description), term) &&
			!strings.Contains(keyword.Fold(c.Category), term) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) Search(ctx context.Context, query string) ([]adapter.Course, error) {
	return s.Find(ctx, Filter{Query: query})
}

func (s *Service) ByCategory(ctx context.Context, category string) ([]adapter.Course, error) {
	return s.Find(ctx, Filter{Category: category})
}

func (s *Service) ByLevel(ctx context.Context, level adapter.Level) ([]adapter.Course, error) {
	return s.Find(ctx, Filter{Level: level})
}

// Recommended returns the courses the user has not finished.
func (s *Service) Recommended(ctx context.Context, userID string) ([]adapter.Course, error) {
	progress, err := s.UserProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	courses, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}

	done := make(map[string]bool)
	for _, p := range progress {
		if p.ProgressPercentage == 100 {
			done[p.CourseID] = true
		}
	}
	out := []adapter.Course{}
	for _, c := range courses {
		if !done[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

// Stats summarises a course over the progress rows of its modules.
type Stats struct {
	TotalStudents   int `json:"totalStudents"`
	AverageProgress int `json:"averageProgress"`
	CompletionRate  int `json:"completionRate"`
}

func (s *Service) Stats(ctx context.Context, courseID string) (Stats, error) {
	var (
		progress []backend.Progress
		modules  []adapter.Module
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		progress, err = s.backend.Progress(gctx)
		if err != nil {
			return fmt.Errorf("fetch progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		modules, err = s.Modules(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	inCourse := make(map[string]bool, len(modules))
	for _, m := range modules {
		inCourse[m.ID] = true
	}

	students := make(map[string]bool)
	var rows, sum, completed int
	for _, p := range progress {
		if !inCourse[p.SubtopicID] {
			continue
		}
		rows++
		sum += p.Percentage
		if p.Percentage == 100 {
			completed++
		}
		students[p.UserID] = true
	}
	if rows == 0 {
		return Stats{}, nil
	}
	return Stats{
		TotalStudents:   len(students),
		AverageProgress: round(float64(sum) / float64(rows)),
		CompletionRate:  round(float64(completed) / float64(rows) * 100),
	}, nil
}

// Categories returns the distinct course categories in first-seen order.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	courses, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, c := range courses {
		if !slices.Contains(out, c.Category) {
			out = append(out, c.Category)
		}
	}
	return out, nil
}

func (s *Service) Levels() []adapter.Level {
	return slices.Clone(adapter.Levels)
}

// TeacherCourses returns the courses assigned to a teacher. When the upstream
// rejects the teacher subjects route, the class assignments are matched
// against the full course list instead.
func (s *Service) TeacherCourses(ctx context.Context, teacherID string) ([]adapter.Course, error) {
	subjects, err := s.backend.SubjectsByTeacher(ctx, teacherID)
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		slog.Warn("teacher subjects unavailable, using class assignments", "teacher_id", teacherID, "status", apiErr.Status)
		return s.teacherCoursesFromAssignments(ctx, teacherID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch teacher subjects: %w", err)
	}
	courses := make([]adapter.Course, 0, len(subjects))
	for _, subj := range subjects {
		courses = append(courses, adapter.SubjectToCourse(subj, nil))
	}
	return courses, nil
}

func (s *Service) teacherCoursesFromAssignments(ctx context.Context, teacherID string) ([]adapter.Course, error) {
	assignments, err := s.backend.AssignmentsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("fetch teacher assignments: %w", err)
	}
	assigned := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		assigned[a.SubjectID] = true
	}
	all, err := s.Courses(ctx)
	if err != nil {
		return nil, err
	}
	courses := make([]adapter.Course, 0, len(assigned))
	for _, c := range all {
		if assigned[c.ID] {
			courses = append(courses, c)
		}
	}
	return courses, nil
}

// TeacherStudents returns the students enrolled in a teacher's courses.
func (s *Service) TeacherStudents(ctx context.Context, teacherID string) ([]adapter.UserView, error) {
	users, err := s.backend.StudentsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("fetch teacher students: %w", err)
	}
	views := make([]adapter.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, adapter.UserToView(u))
	}
	return views, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, coursesCacheKey); err != nil {
		slog.Warn("course cache invalidation failed", "error", err)
	}
}

func round(x float64) int {
	return int(math.Floor(x + 0.5))
}
