// Package engine tracks the learner's position in the catalog, their code for
// each lesson and which lessons they have completed. Every mutation persists
// through the repository and then notifies subscribers with a fresh state.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adamspd/crispies/catalog"
	"github.com/adamspd/crispies/db"
	"github.com/adamspd/crispies/jobs"
	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
	"github.com/adamspd/crispies/validator"
)

// DefaultDebounce is the idle time before a live edit is validated
const DefaultDebounce = 800 * time.Millisecond

type Option func(*Engine)

func WithValidator(v *validator.Validator) Option {
	return func(e *Engine) { e.validator = v }
}

func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounce = d }
}

// WithCrossModuleNavigation lets NextLesson and PreviousLesson step into the
// adjacent module at a module boundary. Enabled by default.
func WithCrossModuleNavigation(enabled bool) Option {
	return func(e *Engine) { e.crossModule = enabled }
}

// WithPreviewSink receives preview payloads when a lesson loads and when
// applied code changes the rendered document
func WithPreviewSink(fn func(models.PreviewContent)) Option {
	return func(e *Engine) { e.previewSink = fn }
}

// WithValidationSink receives the results of debounced validations
func WithValidationSink(fn func(models.ValidationResult)) Option {
	return func(e *Engine) { e.validationSink = fn }
}

type subscriber struct {
	id uint64
	fn func(models.EngineState)
}

// Engine is safe for concurrent use. Callbacks run on the calling goroutine,
// or on the scheduler goroutine for debounced validation, never under the
// engine lock.
type Engine struct {
	id             string
	validator      *validator.Validator
	debounce       time.Duration
	crossModule    bool
	previewSink    func(models.PreviewContent)
	validationSink func(models.ValidationResult)
	repo           *db.Repository
	scheduler      *jobs.Debouncer

	mu          sync.Mutex
	catalog     *catalog.Catalog
	progress    models.ProgressRecord
	snapshots   models.SnapshotMap
	module      *models.Module
	lessonIndex int
	source      string
	// selection counts navigations so a debounced validation scheduled for
	// one lesson is never applied to another
	selection     uint64
	previewDigest string
	subscribers   []subscriber
	nextSubID     uint64
}

// New builds an engine over cat and restores saved progress and code from
// repo. A nil repo keeps everything in memory.
func New(cat *catalog.Catalog, repo *db.Repository, opts ...Option) *Engine {
	e := &Engine{
		id:          uuid.NewString(),
		validator:   validator.New(),
		debounce:    DefaultDebounce,
		crossModule: true,
		repo:        repo,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.repo == nil {
		e.repo = db.NewRepository(nil, db.DefaultKeyPrefix)
	}
	e.scheduler = jobs.NewDebouncer(e.debounce)

	e.catalog = cat
	e.progress = e.repo.LoadProgress()
	e.snapshots = e.repo.LoadSnapshots()

	utils.LogEngine("Engine %s started (%d module(s), debounce %v, cross-module %t)",
		e.id, e.moduleCountLocked(), e.debounce, e.crossModule)
	return e
}

// ID identifies the engine session in logs
func (e *Engine) ID() string {
	return e.id
}

// Close cancels pending validation and waits for a running one
func (e *Engine) Close() {
	e.scheduler.Stop()
	utils.LogEngine("Engine %s closed", e.id)
}

// Subscribe registers fn for state-change notifications. The returned func
// unregisters it and may be called more than once.
func (e *Engine) Subscribe(fn func(models.EngineState)) func() {
	e.mu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.subscribers = append(e.subscribers, subscriber{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, s := range e.subscribers {
				if s.id == id {
					e.subscribers = append(e.subscribers[:i:i], e.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// GetCurrentState returns a freshly computed state
func (e *Engine) GetCurrentState() models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// LastModuleID is the module that was active when progress was last saved
func (e *Engine) LastModuleID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.LastModuleID
}

func (e *Engine) IsLessonCompleted(moduleID string, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.IsLessonCompleted(moduleID, index)
}

func (e *Engine) IsCurrentLessonCompleted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.module != nil && e.progress.IsLessonCompleted(e.module.ID, e.lessonIndex)
}

// GetProgressStats aggregates completion over every module in the catalog
func (e *Engine) GetProgressStats() models.ProgressStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats models.ProgressStats
	if e.catalog == nil {
		return stats
	}
	for _, m := range e.catalog.Modules() {
		stats.TotalLessons += m.LessonCount()
		mp, ok := e.progress.Modules[m.ID]
		if !ok {
			continue
		}
		for _, i := range mp.Completed {
			if i >= 0 && i < m.LessonCount() {
				stats.TotalCompleted++
			}
		}
	}
	if stats.TotalLessons > 0 {
		stats.PercentComplete = (stats.TotalCompleted*100 + stats.TotalLessons/2) / stats.TotalLessons
	}
	return stats
}

func (e *Engine) moduleCountLocked() int {
	if e.catalog == nil {
		return 0
	}
	return e.catalog.Len()
}

func (e *Engine) lessonLocked() *models.Lesson {
	if e.module == nil {
		return nil
	}
	return e.module.Lesson(e.lessonIndex)
}

func (e *Engine) stateLocked() models.EngineState {
	st := models.EngineState{
		Module:      e.module,
		Lesson:      e.lessonLocked(),
		LessonIndex: e.lessonIndex,
		SourceText:  e.source,
	}
	if e.module == nil {
		return st
	}
	st.TotalLessons = e.module.LessonCount()
	st.IsCompleted = e.progress.IsLessonCompleted(e.module.ID, e.lessonIndex)
	st.CanGoPrev = e.lessonIndex > 0
	st.CanGoNext = e.lessonIndex < st.TotalLessons-1
	if e.crossModule {
		st.CanGoPrev = st.CanGoPrev || e.adjacentModuleLocked(-1) != nil
		st.CanGoNext = st.CanGoNext || e.adjacentModuleLocked(1) != nil
	}
	return st
}

// notification is what a mutation hands back for delivery outside the lock
type notification struct {
	state       models.EngineState
	subscribers []subscriber
	preview     *models.PreviewContent
}

func (e *Engine) notificationLocked() notification {
	subs := make([]subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	return notification{state: e.stateLocked(), subscribers: subs}
}

func (e *Engine) deliver(n notification) {
	if n.preview != nil && e.previewSink != nil {
		e.previewSink(*n.preview)
	}
	for _, s := range n.subscribers {
		s.fn(n.state)
	}
}

func (e *Engine) saveProgressLocked() {
	if e.module != nil {
		e.progress.LastModuleID = e.module.ID
	}
	e.repo.SaveProgress(e.progress)
}

func (e *Engine) saveSnapshotsLocked() {
	e.repo.SaveSnapshots(e.snapshots)
}
