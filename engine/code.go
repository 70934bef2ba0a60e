package engine

import (
	"context"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
	"github.com/adamspd/crispies/validator"
)

// ApplyUserCode records source as the active text and the current lesson's
// snapshot. A preview is pushed only when the rendered document changes.
func (e *Engine) ApplyUserCode(source string) {
	e.applyUserCode(source, false)
}

// ApplyUserCodeForce is ApplyUserCode that always pushes a preview
func (e *Engine) ApplyUserCodeForce(source string) {
	e.applyUserCode(source, true)
}

func (e *Engine) applyUserCode(source string, force bool) {
	e.mu.Lock()
	lesson := e.lessonLocked()
	if lesson == nil {
		e.mu.Unlock()
		return
	}

	e.source = source
	e.snapshots[models.SnapshotKey{ModuleID: e.module.ID, LessonIndex: e.lessonIndex}] = source
	e.saveSnapshotsLocked()

	n := e.notificationLocked()
	preview := buildPreview(lesson, source)
	if force || preview.Digest != e.previewDigest {
		e.previewDigest = preview.Digest
		n.preview = &preview
	}
	e.mu.Unlock()

	e.deliver(n)
}

// Edit is the per-keystroke entry point: it applies source and schedules a
// validation once input has been idle for the debounce delay. Any pending
// validation is replaced.
func (e *Engine) Edit(source string) {
	e.ApplyUserCode(source)
	e.ScheduleValidation()
}

// ScheduleValidation validates the current lesson after the debounce delay.
// Navigation, Reset and ClearProgress cancel it.
func (e *Engine) ScheduleValidation() {
	e.mu.Lock()
	if e.lessonLocked() == nil {
		e.mu.Unlock()
		return
	}
	selection := e.selection
	e.mu.Unlock()

	e.scheduler.Schedule("validate", func(ctx context.Context) {
		e.runScheduledValidation(ctx, selection)
	})
}

func (e *Engine) runScheduledValidation(ctx context.Context, selection uint64) {
	e.mu.Lock()
	if ctx.Err() != nil || selection != e.selection {
		e.mu.Unlock()
		utils.LogEngine("Engine %s: dropped stale validation", e.id)
		return
	}
	result, n := e.validateLocked()
	e.mu.Unlock()

	e.deliver(n)
	if e.validationSink != nil {
		e.validationSink(result)
	}
}

// ValidateCode scores the active source against the current lesson and
// marks the lesson completed when it passes
func (e *Engine) ValidateCode() models.ValidationResult {
	e.mu.Lock()
	if e.lessonLocked() == nil {
		e.mu.Unlock()
		return models.ValidationResult{IsValid: false, Message: validator.NoActiveLesson}
	}
	result, n := e.validateLocked()
	e.mu.Unlock()

	e.deliver(n)
	return result
}

func (e *Engine) validateLocked() (models.ValidationResult, notification) {
	lesson := e.lessonLocked()
	result := e.validator.Validate(e.source, lesson)
	utils.LogValidate("Engine %s: %s/%d valid=%t (%d/%d)",
		e.id, e.module.ID, e.lessonIndex, result.IsValid, result.ValidCases, result.TotalCases)

	if result.IsValid {
		if e.progress.Module(e.module.ID).MarkCompleted(e.lessonIndex) {
			utils.LogEngine("Engine %s: completed %s/%d", e.id, e.module.ID, e.lessonIndex)
		}
		e.saveProgressLocked()
	}
	return result, e.notificationLocked()
}

// Reset restores the lesson's initial code and forgets its snapshot.
// Completion is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	lesson := e.lessonLocked()
	if lesson == nil {
		e.mu.Unlock()
		return
	}
	e.scheduler.Cancel()
	e.selection++

	e.source = lesson.InitialCode
	delete(e.snapshots, models.SnapshotKey{ModuleID: e.module.ID, LessonIndex: e.lessonIndex})
	e.saveSnapshotsLocked()

	n := e.notificationLocked()
	preview := buildPreview(lesson, e.source)
	e.previewDigest = preview.Digest
	n.preview = &preview
	e.mu.Unlock()

	e.deliver(n)
}

// ClearProgress wipes completion and saved code. The catalog and the current
// selection are untouched.
func (e *Engine) ClearProgress() {
	e.mu.Lock()
	e.scheduler.Cancel()
	e.selection++

	e.progress = models.NewProgressRecord()
	e.snapshots = models.SnapshotMap{}
	e.repo.Clear()
	utils.LogEngine("Engine %s: progress cleared", e.id)

	n := e.notificationLocked()
	e.mu.Unlock()

	e.deliver(n)
}
