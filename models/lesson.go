package models

import "strings"

// Mode is the submission format a lesson expects
type Mode string

const (
	ModeCSS      Mode = "css"
	ModeHTML     Mode = "html"
	ModeTailwind Mode = "tailwind"
)

// DefaultMode is used when neither the lesson nor its module names a mode
const DefaultMode = ModeCSS

// IsKnown reports whether the mode is one of the supported formats
func (m Mode) IsKnown() bool {
	switch m {
	case ModeCSS, ModeHTML, ModeTailwind:
		return true
	}
	return false
}

// Module represents a named, ordered collection of lessons
type Module struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Mode        Mode     `json:"mode,omitempty" yaml:"mode,omitempty"`
	Lessons     []Lesson `json:"lessons" yaml:"lessons"`
}

// Lesson represents one exercise within a module. Lessons have no global id,
// they are addressed by (module id, index).
type Lesson struct {
	Title            string           `json:"title" yaml:"title"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	Task             string           `json:"task,omitempty" yaml:"task,omitempty"`
	InitialCode      string           `json:"initialCode,omitempty" yaml:"initialCode,omitempty"`
	Mode             Mode             `json:"mode,omitempty" yaml:"mode,omitempty"`
	PreviewTemplate  string           `json:"previewHTML" yaml:"previewHTML"`
	PreviewBaseStyle string           `json:"previewBaseCSS,omitempty" yaml:"previewBaseCSS,omitempty"`
	SandboxStyle     string           `json:"sandboxCSS,omitempty" yaml:"sandboxCSS,omitempty"`
	CodePrefix       string           `json:"codePrefix,omitempty" yaml:"codePrefix,omitempty"`
	CodeSuffix       string           `json:"codeSuffix,omitempty" yaml:"codeSuffix,omitempty"`
	Solution         string           `json:"solution,omitempty" yaml:"solution,omitempty"`
	Validations      []ValidationRule `json:"validations,omitempty" yaml:"validations,omitempty"`
}

// EffectiveMode resolves the lesson mode against its module's mode
func (l *Lesson) EffectiveMode(module *Module) Mode {
	if l.Mode != "" {
		return l.Mode
	}
	if module != nil && module.Mode != "" {
		return module.Mode
	}
	return DefaultMode
}

// WrapStyle joins the lesson's code prefix, the learner's CSS and the code
// suffix, skipping empty parts
func (l *Lesson) WrapStyle(source string) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{l.CodePrefix, source, l.CodeSuffix} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// LessonCount returns the number of lessons in the module
func (m *Module) LessonCount() int {
	return len(m.Lessons)
}

// Lesson returns the lesson at index, or nil when out of range
func (m *Module) Lesson(index int) *Lesson {
	if index < 0 || index >= len(m.Lessons) {
		return nil
	}
	return &m.Lessons[index]
}
