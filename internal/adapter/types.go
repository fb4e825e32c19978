package adapter

import "time"

// Level is the heuristic difficulty band of a course.
type Level string

const (
	Beginner     Level = "Principiante"
	Intermediate Level = "Intermedio"
	Advanced     Level = "Avanzado"
)

// Levels lists every level in ascending order.
var Levels = []Level{Beginner, Intermediate, Advanced}

// Instructor is the teacher shown on a course card.
type Instructor struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

// Course is the browser's view of a backend subject.
type Course struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Level         Level      `json:"level"`
	Instructor    Instructor `json:"instructor"`
	Price         float64    `json:"price"`
	Rating        float64    `json:"rating"`
	StudentsCount int        `json:"studentsCount"`
	Duration      int        `json:"duration"`
	Modules       []Module   `json:"modules"`
	Thumbnail     string     `json:"thumbnail"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

// Module is the browser's view of a backend subtopic.
type Module struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Content     string  `json:"content"`
	VideoURL    *string `json:"videoUrl,omitempty"`
	Duration    int     `json:"duration"`
	Order       int     `json:"order"`
	Completed   bool    `json:"completed"`
	Progress    int     `json:"progress"`
}

// CourseProgress summarises one user's progress rows for one course.
type CourseProgress struct {
	UserID                string    `json:"userId"`
	CourseID              string    `json:"courseId"`
	CompletedModules      []string  `json:"completedModules"`
	CurrentModule         string    `json:"currentModule"`
	ProgressPercentage    int       `json:"progressPercentage"`
	LastAccessed          time.Time `json:"lastAccessed"`
	TotalModules          int       `json:"totalModules"`
	CompletedModulesCount int       `json:"completedModulesCount"`
}

// UserView is the browser's view of a backend user.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Avatar    *string   `json:"avatar,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Lesson is a read-only rendering of a subtopic's AI feedback steps.
type Lesson struct {
	Steps         []LessonStep `json:"steps"`
	TotalDuration int          `json:"totalDuration"`
	TotalSteps    int          `json:"totalSteps"`
}

type LessonStep struct {
	ID               string  `json:"id"`
	StepNumber       int     `json:"stepNumber"`
	Title            string  `json:"title"`
	Content          string  `json:"content"`
	Duration         int     `json:"duration"`
	StudentActivity  *string `json:"studentActivity,omitempty"`
	TimeAllocation   string  `json:"timeAllocation"`
	MaterialsNeeded  *string `json:"materialsNeeded,omitempty"`
	SuccessIndicator *string `json:"successIndicator,omitempty"`
}

// Difficulty grades a synthesized question.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Question is one multiple-choice quiz question.
type Question struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correctAnswer"`
	Explanation   string     `json:"explanation,omitempty"`
	Difficulty    Difficulty `json:"difficulty,omitempty"`
}

// Quiz is a synthesized assessment for a course or a module. Exactly one of
// CourseID and ModuleID is set.
type Quiz struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	CourseID       string     `json:"courseId,omitempty"`
	ModuleID       string     `json:"moduleId,omitempty"`
	Questions      []Question `json:"questions"`
	TimeLimit      int        `json:"timeLimit"`
	PassingScore   int        `json:"passingScore"`
	Attempts       int        `json:"attempts,omitempty"`
	CurrentAttempt int        `json:"currentAttempt,omitempty"`
	TotalQuestions int        `json:"totalQuestions"`
}
