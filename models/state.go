package models

// EngineState is the derived view pushed to subscribers after every mutation.
// It is never persisted.
type EngineState struct {
	Module       *Module `json:"module"`
	Lesson       *Lesson `json:"lesson"`
	LessonIndex  int     `json:"lessonIndex"`
	SourceText   string  `json:"sourceText"`
	TotalLessons int     `json:"totalLessons"`
	IsCompleted  bool    `json:"isCompleted"`
	CanGoNext    bool    `json:"canGoNext"`
	CanGoPrev    bool    `json:"canGoPrev"`
}

// HasLesson reports whether a lesson is currently selected
func (s EngineState) HasLesson() bool {
	return s.Module != nil && s.Lesson != nil
}

// PreviewContent is everything the isolated rendering surface needs. The
// engine only assembles these strings.
type PreviewContent struct {
	Mode         Mode     `json:"mode"`
	BaseStyle    string   `json:"baseStyle"`
	UserStyle    string   `json:"userStyle,omitempty"`
	SandboxStyle string   `json:"sandboxStyle"`
	Markup       string   `json:"markup"`
	Scripts      []string `json:"scripts,omitempty"`
	Document     string   `json:"document"`
	Digest       string   `json:"digest"`
}
