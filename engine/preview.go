package engine

import (
	"strings"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

const (
	// UserClassesToken in a utility-mode template is replaced by the learner's
	// class list
	UserClassesToken = "{{USER_CLASSES}}"
	TailwindScript   = "https://cdn.tailwindcss.com"
)

// GetPreviewContent assembles the preview for the active source. ok is false
// when no lesson is selected.
func (e *Engine) GetPreviewContent() (models.PreviewContent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	lesson := e.lessonLocked()
	if lesson == nil {
		return models.PreviewContent{}, false
	}
	return buildPreview(lesson, e.source), true
}

// GetSolutionPreview renders the lesson's reference solution. ok is false
// when no lesson is selected or the lesson has no solution.
func (e *Engine) GetSolutionPreview() (models.PreviewContent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	lesson := e.lessonLocked()
	if lesson == nil || lesson.Solution == "" {
		return models.PreviewContent{}, false
	}
	return buildPreview(lesson, lesson.Solution), true
}

func buildPreview(lesson *models.Lesson, source string) models.PreviewContent {
	p := models.PreviewContent{
		Mode:         lesson.EffectiveMode(nil),
		BaseStyle:    lesson.PreviewBaseStyle,
		SandboxStyle: lesson.SandboxStyle,
	}

	switch p.Mode {
	case models.ModeTailwind:
		p.Markup = strings.ReplaceAll(lesson.PreviewTemplate, UserClassesToken, source)
		p.Scripts = []string{TailwindScript}
	case models.ModeHTML:
		p.Markup = source
	default:
		p.UserStyle = lesson.WrapStyle(source)
		p.Markup = lesson.PreviewTemplate
	}

	p.Document = renderDocument(p)
	p.Digest = utils.ContentDigest(p.Document)
	return p
}

func renderDocument(p models.PreviewContent) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	for _, src := range p.Scripts {
		b.WriteString(`<script src="` + src + `"></script>` + "\n")
	}
	for _, style := range []string{p.BaseStyle, p.UserStyle, p.SandboxStyle} {
		if style == "" {
			continue
		}
		b.WriteString("<style>" + style + "</style>\n")
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(p.Markup)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}
