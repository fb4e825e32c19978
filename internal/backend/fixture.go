package backend

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// FixtureData is the on-disk shape of a fixture YAML file. Any subset of the
// sections may be present; files are merged in walk order.
type FixtureData struct {
	Users       []User            `yaml:"users"`
	Subjects    []Subject         `yaml:"subjects"`
	Subtopics   []Subtopic        `yaml:"subtopics"`
	Progress    []Progress        `yaml:"progress"`
	Assignments []ClassAssignment `yaml:"assignments"`
	Feedback    []AIFeedback      `yaml:"feedback"`
}

// Fixture is an in-memory backend with the same surface as HTTPClient. It is
// used in development mode and as the upstream in tests.
type Fixture struct {
	mu          sync.RWMutex
	users       map[string]User
	subjects    map[string]Subject
	subtopics   map[string]Subtopic
	progress    []Progress
	assignments []ClassAssignment
	feedback    map[string]AIFeedback
	tokens      map[string]string // upstream token -> user ID
	now         func() time.Time
}

// NewFixture creates a fixture seeded with data.
func NewFixture(data FixtureData) *Fixture {
	f := &Fixture{
		users:     make(map[string]User),
		subjects:  make(map[string]Subject),
		subtopics: make(map[string]Subtopic),
		feedback:  make(map[string]AIFeedback),
		tokens:    make(map[string]string),
		now:       time.Now,
	}
	f.merge(data)
	return f
}

// LoadFixture walks rootDir and merges every *.yaml / *.yml file into a
// fixture backend.
func LoadFixture(rootDir string) (*Fixture, error) {
	f := NewFixture(FixtureData{})

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var data FixtureData
		if err := yaml.Unmarshal(raw, &data); err != nil {
			slog.Warn("skipping invalid fixture YAML", "path", path, "error", err)
			return nil
		}
		f.merge(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading fixture: %w", err)
	}

	slog.Info("fixture backend loaded",
		"users", len(f.users),
		"subjects", len(f.subjects),
		"subtopics", len(f.subtopics),
		"feedback", len(f.feedback),
	)
	return f, nil
}

func (f *Fixture) merge(data FixtureData) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range data.Users {
		f.users[u.ID] = u
	}
	for _, s := range data.Subjects {
		for _, st := range s.Subtopics {
			if st.SubjectID == "" {
				st.SubjectID = s.ID
			}
			f.subtopics[st.ID] = st
		}
		for _, a := range s.Assignments {
			if a.SubjectID == "" {
				a.SubjectID = s.ID
			}
			f.assignments = append(f.assignments, a)
		}
		s.Subtopics = nil
		s.Assignments = nil
		f.subjects[s.ID] = s
	}
	for _, st := range data.Subtopics {
		f.subtopics[st.ID] = st
	}
	f.progress = append(f.progress, data.Progress...)
	f.assignments = append(f.assignments, data.Assignments...)
	for _, step := range data.Feedback {
		f.feedback[step.ID] = step
	}
}

// AddUser stores a user whose password is hashed with bcrypt.
func (f *Fixture) AddUser(u User, password string) error {
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	f.mu.Lock()
	f.users[u.ID] = u
	f.mu.Unlock()
	return nil
}

func notFound(kind, id string) error {
	return &APIError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s not found: %s", kind, id)}
}

// subjectView returns s with its subtopics and assignments attached, the way
// the upstream returns them. Caller must hold f.mu.
func (f *Fixture) subjectView(s Subject) Subject {
	s.Subtopics = nil
	for _, st := range f.sortedSubtopics() {
		if st.SubjectID == s.ID {
			s.Subtopics = append(s.Subtopics, st)
		}
	}
	s.Assignments = nil
	for _, a := range f.assignments {
		if a.SubjectID == s.ID {
			s.Assignments = append(s.Assignments, a)
		}
	}
	return s
}

func (f *Fixture) sortedSubtopics() []Subtopic {
	out := make([]Subtopic, 0, len(f.subtopics))
	for _, st := range f.subtopics {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b Subtopic) int {
		ao, bo := 0, 0
		if a.Order != nil {
			ao = *a.Order
		}
		if b.Order != nil {
			bo = *b.Order
		}
		if ao != bo {
			return ao - bo
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (f *Fixture) currentUserID(ctx context.Context) (string, error) {
	token := TokenFromContext(ctx)
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.tokens[token]
	if !ok || token == "" {
		return "", &APIError{Status: http.StatusUnauthorized, Message: "invalid token"}
	}
	return id, nil
}

func (f *Fixture) Login(_ context.Context, email, password string) (LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			break
		}
		token := newID()
		f.tokens[token] = u.ID
		return LoginResult{Token: token, User: u}, nil
	}
	return LoginResult{}, &APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
}

func (f *Fixture) Register(_ context.Context, req RegisterRequest) (User, error) {
	if req.Email == "" || req.Password == "" {
		return User{}, &APIError{Status: http.StatusBadRequest, Message: "email and password are required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := f.now()
	u := User{
		ID:           newID(),
		Name:         req.Name,
		Email:        req.Email,
		Roles:        []string{},
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Role != "" {
		u.Roles = []string{req.Role}
	}

	// The duplicate check and the insert share one write lock.
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, req.Email) {
			return User{}, &APIError{Status: http.StatusConflict, Message: "email already registered"}
		}
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *Fixture) CurrentUser(ctx context.Context) (User, error) {
	id, err := f.currentUserID(ctx)
	if err != nil {
		return User{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.users[id]
	if !ok {
		return User{}, notFound("user", id)
	}
	return u, nil
}

func (f *Fixture) UpdateUser(ctx context.Context, update UserUpdate) (User, error) {
	id, err := f.currentUserID(ctx)
	if err != nil {
		return User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return User{}, notFound("user", id)
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Bio != nil {
		u.Bio = update.Bio
	}
	if update.Image != nil {
		u.Image = update.Image
	}
	u.UpdatedAt = f.now()
	f.users[id] = u
	return u, nil
}

func (f *Fixture) ChangePassword(ctx context.Context, current, next string) error {
	id, err := f.currentUserID(ctx)
	if err != nil {
		return err
	}
	f.mu.RLock()
	u := f.users[id]
	f.mu.RUnlock()
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return &APIError{Status: http.StatusBadRequest, Message: "current password is incorrect"}
	}
	return f.AddUser(u, next)
}

func (f *Fixture) Users(context.Context) ([]User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	users := make([]User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b User) int { return strings.Compare(a.ID, b.ID) })
	return users, nil
}

func (f *Fixture) Subjects(context.Context) ([]Subject, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	subjects := make([]Subject, 0, len(f.subjects))
	for _, s := range f.subjects {
		subjects = append(subjects, f.subjectView(s))
	}
	slices.SortFunc(subjects, func(a, b Subject) int { return strings.Compare(a.ID, b.ID) })
	return subjects, nil
}

func (f *Fixture) Subject(_ context.Context, id string) (Subject, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.subjects[id]
	if !ok {
		return Subject{}, notFound("subject", id)
	}
	return f.subjectView(s), nil
}

func (f *Fixture) CreateSubject(_ context.Context, in SubjectInput) (Subject, error) {
	s := Subject{ID: newID(), Name: in.Name, Description: in.Description}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects[s.ID] = s
	return f.subjectView(s), nil
}

func (f *Fixture) UpdateSubject(_ context.Context, id string, in SubjectInput) (Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subjects[id]
	if !ok {
		return Subject{}, notFound("subject", id)
	}
	if in.Name != "" {
		s.Name = in.Name
	}
	if in.Description != nil {
		s.Description = in.Description
	}
	f.subjects[id] = s
	return f.subjectView(s), nil
}

func (f *Fixture) DeleteSubject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subjects[id]; !ok {
		return notFound("subject", id)
	}
	delete(f.subjects, id)
	return nil
}

func (f *Fixture) SubjectsByTeacher(_ context.Context, teacherID string) ([]Subject, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Subject
	seen := make(map[string]bool)
	for _, a := range f.assignments {
		if a.TeacherID != teacherID || seen[a.SubjectID] {
			continue
		}
		if s, ok := f.subjects[a.SubjectID]; ok {
			seen[a.SubjectID] = true
			out = append(out, f.subjectView(s))
		}
	}
	return out, nil
}

// StudentsByTeacher returns users who have progress on any subtopic of the
// teacher's subjects.
func (f *Fixture) StudentsByTeacher(_ context.Context, teacherID string) ([]User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	subjects := make(map[string]bool)
	for _, a := range f.assignments {
		if a.TeacherID == teacherID {
			subjects[a.SubjectID] = true
		}
	}
	seen := make(map[string]bool)
	var out []User
	for _, p := range f.progress {
		st, ok := f.subtopics[p.SubtopicID]
		if !ok || !subjects[st.SubjectID] || seen[p.UserID] {
			continue
		}
		if u, ok := f.users[p.UserID]; ok {
			seen[p.UserID] = true
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *Fixture) Subtopics(_ context.Context, subjectID string) ([]Subtopic, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Subtopic
	for _, st := range f.sortedSubtopics() {
		if subjectID == "" || st.SubjectID == subjectID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *Fixture) Subtopic(_ context.Context, id string) (Subtopic, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.subtopics[id]
	if !ok {
		return Subtopic{}, notFound("subtopic", id)
	}
	return st, nil
}

func (f *Fixture) CreateSubtopic(_ context.Context, in SubtopicInput) (Subtopic, error) {
	st := Subtopic{
		ID:          newID(),
		Name:        in.Name,
		Description: in.Description,
		SubjectID:   in.SubjectID,
		Content:     in.Content,
		VideoURL:    in.VideoURL,
		Duration:    in.Duration,
		Order:       in.Order,
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtopics[st.ID] = st
	return st, nil
}

func (f *Fixture) UpdateSubtopic(_ context.Context, id string, in SubtopicInput) (Subtopic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.subtopics[id]
	if !ok {
		return Subtopic{}, notFound("subtopic", id)
	}
	if in.Name != "" {
		st.Name = in.Name
	}
	if in.SubjectID != "" {
		st.SubjectID = in.SubjectID
	}
	if in.Description != nil {
		st.Description = in.Description
	}
	if in.Content != nil {
		st.Content = in.Content
	}
	if in.VideoURL != nil {
		st.VideoURL = in.VideoURL
	}
	if in.Duration != nil {
		st.Duration = in.Duration
	}
	if in.Order != nil {
		st.Order = in.Order
	}
	f.subtopics[id] = st
	return st, nil
}

func (f *Fixture) DeleteSubtopic(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subtopics[id]; !ok {
		return notFound("subtopic", id)
	}
	delete(f.subtopics, id)
	return nil
}

func (f *Fixture) Progress(context.Context) ([]Progress, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.progress), nil
}

func (f *Fixture) ProgressByUser(_ context.Context, userID string) ([]Progress, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Progress
	for _, p := range f.progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *Fixture) CreateProgress(_ context.Context, in ProgressInput) (Progress, error) {
	now := f.now()
	p := Progress{
		ID:           newID(),
		UserID:       in.UserID,
		SubtopicID:   in.SubtopicID,
		ProgressType: in.ProgressType,
		Percentage:   in.Percentage,
		CompletedAt:  in.CompletedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
	return p, nil
}

func (f *Fixture) AssignmentsByTeacher(_ context.Context, teacherID string) ([]ClassAssignment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []ClassAssignment
	for _, a := range f.assignments {
		if a.TeacherID == teacherID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *Fixture) Feedback(context.Context) ([]AIFeedback, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sortedFeedback(""), nil
}

func (f *Fixture) FeedbackBySubtopic(_ context.Context, subtopicID string) ([]AIFeedback, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sortedFeedback(subtopicID), nil
}

func (f *Fixture) sortedFeedback(subtopicID string) []AIFeedback {
	var out []AIFeedback
	for _, step := range f.feedback {
		if subtopicID == "" || step.SubtopicID == subtopicID {
			out = append(out, step)
		}
	}
	slices.SortFunc(out, func(a, b AIFeedback) int {
		if c := strings.Compare(a.SubtopicID, b.SubtopicID); c != 0 {
			return c
		}
		return a.StepNumber - b.StepNumber
	})
	return out
}

func (f *Fixture) CreateFeedbackStep(_ context.Context, in FeedbackInput) (AIFeedback, error) {
	now := f.now()
	step := AIFeedback{
		ID:               newID(),
		SubtopicID:       in.SubtopicID,
		TimeMinutes:      in.TimeMinutes,
		StepNumber:       in.StepNumber,
		StepName:         in.StepName,
		Content:          in.Content,
		StudentActivity:  in.StudentActivity,
		TimeAllocation:   in.TimeAllocation,
		MaterialsNeeded:  in.MaterialsNeeded,
		SuccessIndicator: in.SuccessIndicator,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback[step.ID] = step
	return step, nil
}

func (f *Fixture) UpdateFeedbackStep(_ context.Context, id string, in FeedbackUpdate) (AIFeedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, ok := f.feedback[id]
	if !ok {
		return AIFeedback{}, notFound("ai feedback", id)
	}
	if in.TimeMinutes != nil {
		step.TimeMinutes = *in.TimeMinutes
	}
	if in.StepName != nil {
		step.StepName = *in.StepName
	}
	if in.Content != nil {
		step.Content = *in.Content
	}
	if in.StudentActivity != nil {
		step.StudentActivity = in.StudentActivity
	}
	if in.TimeAllocation != nil {
		step.TimeAllocation = *in.TimeAllocation
	}
	if in.MaterialsNeeded != nil {
		step.MaterialsNeeded = in.MaterialsNeeded
	}
	if in.SuccessIndicator != nil {
		step.SuccessIndicator = in.SuccessIndicator
	}
	if in.Status != nil {
		step.Status = in.Status
	}
	step.UpdatedAt = f.now()
	f.feedback[id] = step
	return step, nil
}

func (f *Fixture) DeleteFeedbackStep(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.feedback[id]; !ok {
		return notFound("ai feedback", id)
	}
	delete(f.feedback, id)
	return nil
}

// GenerateFeedback returns the stored steps of the subtopic, ordered by step
// number. A fixture has no generator, so an unknown subtopic is a 404 and a
// subtopic without steps yields an empty list.
func (f *Fixture) GenerateFeedback(_ context.Context, subtopicID string) (GeneratedFeedback, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.subtopics[subtopicID]
	if !ok {
		return GeneratedFeedback{}, notFound("subtopic", subtopicID)
	}
	return GeneratedFeedback{Subtopic: st, Steps: f.sortedFeedback(subtopicID)}, nil
}

func (f *Fixture) HealthCheck(context.Context) error {
	return nil
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
