package engine

import (
	"github.com/adamspd/crispies/catalog"
	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

// SetModules swaps the catalog and reloads saved code. The selection is kept;
// when the selected module exists in the new catalog it is re-pointed there.
// A degraded repository is not reloaded, the in-memory code is kept instead.
func (e *Engine) SetModules(cat *catalog.Catalog) {
	e.mu.Lock()
	e.catalog = cat
	if e.repo.Degraded() {
		utils.LogWarn("Engine %s: storage degraded, keeping saved code in memory", e.id)
	} else {
		e.snapshots = e.repo.LoadSnapshots()
	}
	if e.module != nil && cat != nil {
		if m, err := cat.ModuleByID(e.module.ID); err == nil && m.LessonCount() > 0 {
			e.module = m
			if e.lessonIndex >= m.LessonCount() {
				e.lessonIndex = m.LessonCount() - 1
			}
		}
	}
	utils.LogEngine("Engine %s: catalog set, %d module(s)", e.id, e.moduleCountLocked())
	n := e.notificationLocked()
	e.mu.Unlock()

	e.deliver(n)
}

// SetModuleByID selects a module and resumes it at its last visited lesson.
// Returns false without any change when the id is unknown or the module has
// no lessons.
func (e *Engine) SetModuleByID(id string) bool {
	e.mu.Lock()
	if e.catalog == nil {
		e.mu.Unlock()
		return false
	}
	m, err := e.catalog.ModuleByID(id)
	if err != nil {
		e.mu.Unlock()
		utils.LogWarn("SetModuleByID: %v", err)
		return false
	}
	if m.LessonCount() == 0 {
		e.mu.Unlock()
		utils.LogWarn("SetModuleByID: module %s has no lessons", id)
		return false
	}

	current := e.progress.Module(m.ID).Current
	if current < 0 || current >= m.LessonCount() {
		current = 0
	}
	n := e.selectLocked(m, current)
	e.mu.Unlock()

	e.deliver(n)
	return true
}

// SetLessonByIndex selects a lesson of the current module
func (e *Engine) SetLessonByIndex(index int) bool {
	e.mu.Lock()
	if e.module == nil || index < 0 || index >= e.module.LessonCount() {
		e.mu.Unlock()
		return false
	}
	n := e.selectLocked(e.module, index)
	e.mu.Unlock()

	e.deliver(n)
	return true
}

// NextLesson moves forward one lesson, into the next module's first lesson at
// a module boundary when cross-module navigation is on
func (e *Engine) NextLesson() bool {
	return e.step(1)
}

// PreviousLesson mirrors NextLesson, landing on the previous module's last
// lesson at a boundary
func (e *Engine) PreviousLesson() bool {
	return e.step(-1)
}

func (e *Engine) step(dir int) bool {
	e.mu.Lock()
	if e.module == nil {
		e.mu.Unlock()
		return false
	}

	target := e.lessonIndex + dir
	if target >= 0 && target < e.module.LessonCount() {
		n := e.selectLocked(e.module, target)
		e.mu.Unlock()
		e.deliver(n)
		return true
	}

	if !e.crossModule {
		e.mu.Unlock()
		return false
	}
	next := e.adjacentModuleLocked(dir)
	if next == nil {
		e.mu.Unlock()
		return false
	}
	index := 0
	if dir < 0 {
		index = next.LessonCount() - 1
	}
	utils.LogEngine("Engine %s: crossing from module %s to %s", e.id, e.module.ID, next.ID)
	n := e.selectLocked(next, index)
	e.mu.Unlock()

	e.deliver(n)
	return true
}

// adjacentModuleLocked finds the nearest module with lessons in direction dir
func (e *Engine) adjacentModuleLocked(dir int) *models.Module {
	if e.catalog == nil || e.module == nil {
		return nil
	}
	pos := e.catalog.IndexOf(e.module.ID)
	if pos < 0 {
		return nil
	}
	for i := pos + dir; ; i += dir {
		m := e.catalog.At(i)
		if m == nil {
			return nil
		}
		if m.LessonCount() > 0 {
			return m
		}
	}
}

// selectLocked makes (m, index) the active lesson, restores its saved code,
// records the visit and prepares the notification
func (e *Engine) selectLocked(m *models.Module, index int) notification {
	e.scheduler.Cancel()
	e.selection++

	e.module = m
	e.lessonIndex = index
	lesson := m.Lesson(index)

	key := models.SnapshotKey{ModuleID: m.ID, LessonIndex: index}
	if saved, ok := e.snapshots[key]; ok {
		e.source = saved
	} else {
		e.source = lesson.InitialCode
	}

	e.progress.Module(m.ID).Current = index
	e.saveProgressLocked()

	utils.LogEngine("Engine %s: lesson %s/%d %q", e.id, m.ID, index, lesson.Title)

	n := e.notificationLocked()
	preview := buildPreview(lesson, e.source)
	e.previewDigest = preview.Digest
	n.preview = &preview
	return n
}
