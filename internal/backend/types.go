package backend

import "time"

// User is the upstream identity record. Roles holds declared role labels and
// may be empty.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Email     string    `json:"email" yaml:"email"`
	Image     *string   `json:"image,omitempty" yaml:"image,omitempty"`
	Bio       *string   `json:"bio,omitempty" yaml:"bio,omitempty"`
	Roles     []string  `json:"roles" yaml:"roles"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`

	// PasswordHash is only populated by the fixture backend.
	PasswordHash string `json:"-" yaml:"password_hash"`
}

// Subject is the upstream course record.
type Subject struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description *string           `json:"description,omitempty" yaml:"description,omitempty"`
	Subtopics   []Subtopic        `json:"subtopics,omitempty" yaml:"subtopics,omitempty"`
	Assignments []ClassAssignment `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	CreatedAt   string            `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   string            `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// Subtopic is the upstream module record.
type Subtopic struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description *string   `json:"description,omitempty" yaml:"description,omitempty"`
	SubjectID   string    `json:"subjectId" yaml:"subject_id"`
	Content     *string   `json:"content,omitempty" yaml:"content,omitempty"`
	VideoURL    *string   `json:"videoUrl,omitempty" yaml:"video_url,omitempty"`
	Duration    *int      `json:"duration,omitempty" yaml:"duration,omitempty"`
	Order       *int      `json:"order,omitempty" yaml:"order,omitempty"`
	Progress    *Progress `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// Progress links a user, a subtopic and a completion percentage.
type Progress struct {
	ID           string     `json:"id" yaml:"id"`
	UserID       string     `json:"userId" yaml:"user_id"`
	SubtopicID   string     `json:"subtopicId" yaml:"subtopic_id"`
	ProgressType string     `json:"progressType" yaml:"progress_type"`
	Percentage   int        `json:"percentage" yaml:"percentage"`
	CompletedAt  *time.Time `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updated_at"`
}

// ClassAssignment binds a teacher to a subject for a grade.
type ClassAssignment struct {
	ID        string `json:"id" yaml:"id"`
	GradeID   string `json:"gradeId" yaml:"grade_id"`
	SubjectID string `json:"subjectId" yaml:"subject_id"`
	TeacherID string `json:"teacherId" yaml:"teacher_id"`
}

// AIFeedback is one persisted step of an AI-generated lesson plan.
type AIFeedback struct {
	ID               string    `json:"id" yaml:"id"`
	SubtopicID       string    `json:"subtopicId" yaml:"subtopic_id"`
	TimeMinutes      int       `json:"timeMinutes" yaml:"time_minutes"`
	StepNumber       int       `json:"stepNumber" yaml:"step_number"`
	StepName         string    `json:"stepName" yaml:"step_name"`
	Content          string    `json:"content" yaml:"content"`
	StudentActivity  *string   `json:"studentActivity,omitempty" yaml:"student_activity,omitempty"`
	TimeAllocation   string    `json:"timeAllocation" yaml:"time_allocation"`
	MaterialsNeeded  *string   `json:"materialsNeeded,omitempty" yaml:"materials_needed,omitempty"`
	SuccessIndicator *string   `json:"successIndicator,omitempty" yaml:"success_indicator,omitempty"`
	Status           *bool     `json:"status,omitempty" yaml:"status,omitempty"`
	CreatedAt        time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"updated_at"`
}

// GeneratedFeedback is the response of the generate-feedback endpoint.
type GeneratedFeedback struct {
	Subtopic Subtopic     `json:"subtopic"`
	Steps    []AIFeedback `json:"steps"`
}

// LoginResult carries the upstream token and the authenticated user.
type LoginResult struct {
	Token string
	User  User
}

// RegisterRequest creates an upstream user.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// UserUpdate patches the current user's profile.
type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Bio   *string `json:"bio,omitempty"`
	Image *string `json:"image,omitempty"`
}

// SubjectInput creates or updates a subject.
type SubjectInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// SubtopicInput creates or updates a subtopic.
type SubtopicInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	SubjectID   string  `json:"subjectId,omitempty"`
	Content     *string `json:"content,omitempty"`
	VideoURL    *string `json:"videoUrl,omitempty"`
	Duration    *int    `json:"duration,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// ProgressInput records a user's progress on a subtopic.
type ProgressInput struct {
	UserID       string     `json:"userId"`
	SubtopicID   string     `json:"subtopicId"`
	ProgressType string     `json:"progressType"`
	Percentage   int        `json:"percentage"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// FeedbackInput creates an AI feedback step.
type FeedbackInput struct {
	SubtopicID       string  `json:"subtopicId"`
	TimeMinutes      int     `json:"timeMinutes"`
	StepNumber       int     `json:"stepNumber"`
	StepName         string  `json:"stepName"`
	Content          string  `json:"content"`
	StudentActivity  *string `json:"studentActivity,omitempty"`
	TimeAllocation   string  `json:"timeAllocation"`
	MaterialsNeeded  *string `json:"materialsNeeded,omitempty"`
	SuccessIndicator *string `json:"successIndicator,omitempty"`
}

// FeedbackUpdate patches an AI feedback step. Nil fields are left unchanged.
type FeedbackUpdate struct {
	TimeMinutes      *int    `json:"timeMinutes,omitempty"`
	StepName         *string `json:"stepName,omitempty"`
	Content          *string `json:"content,omitempty"`
	StudentActivity  *string `json:"studentActivity,omitempty"`
	TimeAllocation   *string `json:"timeAllocation,omitempty"`
	MaterialsNeeded  *string `json:"materialsNeeded,omitempty"`
	SuccessIndicator *string `json:"successIndicator,omitempty"`
	Status           *bool   `json:"status,omitempty"`
}

// String returns a pointer to s, for building optional fields.
func String(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
