package aicontent

// LessonPlan is a teacher-facing plan built from generated steps.
type LessonPlan struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Steps              []PlanStep `json:"steps"`
	TotalDuration      int        `json:"totalDuration"`
	TotalSteps         int        `json:"totalSteps"`
	MaterialsNeeded    []string   `json:"materialsNeeded"`
	LearningObjectives []string   `json:"learningObjectives"`
}

type PlanStep struct {
	ID               string   `json:"id"`
	StepNumber       int      `json:"stepNumber"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Duration         int      `json:"duration"`
	StudentActivity  string   `json:"studentActivity"`
	TimeAllocation   string   `json:"timeAllocation"`
	MaterialsNeeded  []string `json:"materialsNeeded"`
	SuccessIndicator string   `json:"successIndicator"`
}

// Content is study material condensed from a module's steps.
type Content struct {
	Content   string   `json:"content"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
	Examples  []string `json:"examples"`
}

// Source tells where analysis recommendations came from.
type Source string

const (
	SourceRules Source = "rules"
	SourceAI    Source = "ai"
)

type Analysis struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	NextSteps       []string `json:"nextSteps"`
	Source          Source   `json:"source"`
}

// Profile describes how a student prefers to learn.
type Profile struct {
	LearningStyle string   `json:"learningStyle"`
	Difficulty    string   `json:"difficulty"`
	Interests     []string `json:"interests"`
}

type Personalized struct {
	AdaptedContent string   `json:"adaptedContent"`
	LearningPath   []string `json:"learningPath"`
	Resources      []string `json:"resources"`
}

// Stats reports generation usage. AverageResponseTime is in seconds and
// SuccessRate in percent.
type Stats struct {
	TotalGenerations    int     `json:"totalGenerations"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	SuccessRate         float64 `json:"successRate"`
	StoredSteps         int     `json:"storedSteps"`
}
