package engine

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamspd/crispies/catalog"
	"github.com/adamspd/crispies/db"
	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/validator"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("en",
		models.Module{
			ID:    "basics",
			Title: "Basics",
			Lessons: []models.Lesson{
				{
					Title:           "Colors",
					InitialCode:     "p {}",
					PreviewTemplate: "<p>Hi</p>",
					Validations: []models.ValidationRule{
						{Type: models.RuleContains, Value: models.RuleValue{Literal: "color"}},
					},
				},
				{
					Title:            "Display",
					PreviewTemplate:  `<div class="wrap"><span>a</span></div>`,
					PreviewBaseStyle: "body { margin: 0; }",
					SandboxStyle:     ".wrap { outline: 1px solid; }",
					CodePrefix:       ".wrap {",
					CodeSuffix:       "}",
					Solution:         "display: flex;",
					Validations: []models.ValidationRule{
						{Type: models.RulePropertyValue, Value: models.RuleValue{Property: "display", Expected: "flex"}},
					},
				},
			},
		},
		models.Module{ID: "empty", Title: "Coming soon", Lessons: []models.Lesson{}},
		models.Module{
			ID:    "forms",
			Title: "Forms",
			Mode:  models.ModeHTML,
			Lessons: []models.Lesson{
				{
					Title:           "Form element",
					PreviewTemplate: "<main></main>",
					SandboxStyle:    "form { display: grid; }",
					Validations: []models.ValidationRule{
						{Type: models.RuleElementExists, Value: models.RuleValue{Literal: "form"}},
					},
				},
			},
		},
		models.Module{
			ID:    "utilities",
			Title: "Utilities",
			Mode:  models.ModeTailwind,
			Lessons: []models.Lesson{
				{
					Title:           "Padding",
					PreviewTemplate: `<div class="{{USER_CLASSES}}">box</div>`,
					Validations: []models.ValidationRule{
						{Type: models.RuleContainsClass, Value: models.RuleValue{Literal: "p-4"}},
					},
				},
			},
		},
	)
	require.NoError(t, err)
	return c
}

func newEngine(t *testing.T, store db.Store, opts ...Option) *Engine {
	t.Helper()
	e := New(testCatalog(t), db.NewRepository(store, db.DefaultKeyPrefix), opts...)
	t.Cleanup(e.Close)
	return e
}

func TestNoSelection(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())

	st := e.GetCurrentState()
	assert.False(t, st.HasLesson())
	assert.False(t, st.CanGoNext)

	res := e.ValidateCode()
	assert.False(t, res.IsValid)
	assert.Equal(t, validator.NoActiveLesson, res.Message)

	assert.False(t, e.SetLessonByIndex(0))
	assert.False(t, e.NextLesson())
	assert.False(t, e.PreviousLesson())

	e.ApplyUserCode("ignored")
	assert.Empty(t, e.GetCurrentState().SourceText)

	_, ok := e.GetPreviewContent()
	assert.False(t, ok)
}

func TestSetModuleByID(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())

	var notified int
	e.Subscribe(func(models.EngineState) { notified++ })

	assert.False(t, e.SetModuleByID("nope"))
	assert.False(t, e.SetModuleByID("empty"), "modules without lessons cannot be selected")
	assert.Equal(t, 0, notified)

	require.True(t, e.SetModuleByID("basics"))
	assert.Equal(t, 1, notified)

	st := e.GetCurrentState()
	assert.Equal(t, "basics", st.Module.ID)
	assert.Equal(t, "Colors", st.Lesson.Title)
	assert.Equal(t, 0, st.LessonIndex)
	assert.Equal(t, "p {}", st.SourceText)
	assert.Equal(t, 2, st.TotalLessons)
	assert.False(t, st.CanGoPrev)
	assert.True(t, st.CanGoNext)
	assert.Equal(t, "basics", e.LastModuleID())

	assert.False(t, e.SetLessonByIndex(2))
	assert.False(t, e.SetLessonByIndex(-1))
	assert.Equal(t, 1, notified)
}

func TestCompletionIsIdempotent(t *testing.T) {
	store := db.NewMemoryStore()
	e := newEngine(t, store)
	require.True(t, e.SetModuleByID("basics"))

	e.ApplyUserCode("p { color: red; }")
	assert.True(t, e.ValidateCode().IsValid)
	assert.True(t, e.ValidateCode().IsValid)
	assert.True(t, e.IsCurrentLessonCompleted())

	saved := db.NewRepository(store, db.DefaultKeyPrefix).LoadProgress()
	assert.Equal(t, []int{0}, saved.Modules["basics"].Completed)
}

func TestFailedValidationLeavesCompletion(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())
	require.True(t, e.SetModuleByID("basics"))
	require.True(t, e.SetLessonByIndex(1))

	e.ApplyUserCode("display: grid;")
	res := e.ValidateCode()
	assert.False(t, res.IsValid)
	assert.Equal(t, `The "display" property should be set to "flex".`, res.Message)
	assert.Equal(t, 0, res.ValidCases)
	assert.Equal(t, 1, res.TotalCases)
	assert.False(t, e.IsLessonCompleted("basics", 1))
}

func TestRoundTripPersistence(t *testing.T) {
	store := db.NewMemoryStore()

	first := newEngine(t, store)
	require.True(t, first.SetModuleByID("basics"))
	require.True(t, first.SetLessonByIndex(1))
	first.ApplyUserCode("X")

	second := newEngine(t, store)
	assert.Equal(t, "basics", second.LastModuleID())
	require.True(t, second.SetModuleByID("basics"))

	st := second.GetCurrentState()
	assert.Equal(t, 1, st.LessonIndex, "resumes at the last visited lesson")
	assert.Equal(t, "X", st.SourceText)
}

func TestResetKeepsCompletion(t *testing.T) {
	store := db.NewMemoryStore()
	e := newEngine(t, store)
	require.True(t, e.SetModuleByID("basics"))

	e.ApplyUserCode("p { color: red; }")
	require.True(t, e.ValidateCode().IsValid)

	e.Reset()
	st := e.GetCurrentState()
	assert.Equal(t, "p {}", st.SourceText)
	assert.True(t, st.IsCompleted)

	snapshots := db.NewRepository(store, db.DefaultKeyPrefix).LoadSnapshots()
	assert.NotContains(t, snapshots, models.SnapshotKey{ModuleID: "basics", LessonIndex: 0})
}

func TestCrossModuleNavigation(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())
	require.True(t, e.SetModuleByID("basics"))

	before := e.GetCurrentState()
	assert.False(t, e.PreviousLesson(), "first lesson of the first module")
	assert.Empty(t, cmp.Diff(before, e.GetCurrentState()))

	require.True(t, e.NextLesson())
	assert.Equal(t, 1, e.GetCurrentState().LessonIndex)

	require.True(t, e.NextLesson())
	st := e.GetCurrentState()
	assert.Equal(t, "forms", st.Module.ID, "modules without lessons are skipped")
	assert.Equal(t, 0, st.LessonIndex)
	assert.True(t, st.CanGoPrev)

	require.True(t, e.PreviousLesson())
	st = e.GetCurrentState()
	assert.Equal(t, "basics", st.Module.ID)
	assert.Equal(t, 1, st.LessonIndex, "lands on the last lesson")

	require.True(t, e.SetModuleByID("utilities"))
	assert.False(t, e.GetCurrentState().CanGoNext)
	assert.False(t, e.NextLesson())
	assert.Equal(t, "utilities", e.GetCurrentState().Module.ID)
}

func TestNavigationWithinModule(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore(), WithCrossModuleNavigation(false))
	require.True(t, e.SetModuleByID("basics"))
	require.True(t, e.NextLesson())

	st := e.GetCurrentState()
	assert.False(t, st.CanGoNext)
	assert.False(t, e.NextLesson())
	assert.Equal(t, "basics", e.GetCurrentState().Module.ID)

	require.True(t, e.SetModuleByID("forms"))
	assert.False(t, e.GetCurrentState().CanGoPrev)
	assert.False(t, e.PreviousLesson())
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())

	var states []models.EngineState
	unsubscribe := e.Subscribe(func(st models.EngineState) { states = append(states, st) })
	var other int
	e.Subscribe(func(models.EngineState) { other++ })

	require.True(t, e.SetModuleByID("basics"))
	e.ApplyUserCode("p { color: blue; }")
	e.ValidateCode()
	e.Reset()

	require.Len(t, states, 4, "one notification per operation")
	assert.Equal(t, "p { color: blue; }", states[1].SourceText)
	assert.True(t, states[2].IsCompleted)
	assert.Equal(t, "p {}", states[3].SourceText)

	unsubscribe()
	unsubscribe()
	require.True(t, e.NextLesson())
	assert.Len(t, states, 4)
	assert.Equal(t, 5, other)
}

func TestDebouncedValidation(t *testing.T) {
	results := make(chan models.ValidationResult, 4)
	e := newEngine(t, db.NewMemoryStore(),
		WithDebounce(20*time.Millisecond),
		WithValidationSink(func(res models.ValidationResult) { results <- res }),
	)
	require.True(t, e.SetModuleByID("basics"))

	e.Edit("p { col")
	e.Edit("p { colo")
	e.Edit("p { color: red; }")

	select {
	case res := <-results:
		assert.True(t, res.IsValid)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced validation did not run")
	}
	assert.True(t, e.IsLessonCompleted("basics", 0))

	select {
	case <-results:
		t.Fatal("superseded edits must not validate")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestNavigationCancelsPendingValidation(t *testing.T) {
	var ran atomic.Int32
	e := newEngine(t, db.NewMemoryStore(),
		WithDebounce(40*time.Millisecond),
		WithValidationSink(func(models.ValidationResult) { ran.Add(1) }),
	)
	require.True(t, e.SetModuleByID("basics"))

	e.Edit("p { color: red; }")
	require.True(t, e.SetLessonByIndex(1))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
	assert.False(t, e.IsLessonCompleted("basics", 0))
	assert.False(t, e.IsLessonCompleted("basics", 1))
}

func TestProgressStats(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())
	assert.Equal(t, models.ProgressStats{TotalLessons: 4}, e.GetProgressStats())

	require.True(t, e.SetModuleByID("utilities"))
	e.ApplyUserCode("p-4 rounded")
	require.True(t, e.ValidateCode().IsValid)

	assert.Equal(t, models.ProgressStats{TotalLessons: 4, TotalCompleted: 1, PercentComplete: 25}, e.GetProgressStats())
}

func TestClearProgress(t *testing.T) {
	store := db.NewMemoryStore()
	e := newEngine(t, store)
	require.True(t, e.SetModuleByID("utilities"))
	e.ApplyUserCode("p-4")
	require.True(t, e.ValidateCode().IsValid)

	e.ClearProgress()
	assert.Equal(t, 0, store.Len())
	assert.False(t, e.IsCurrentLessonCompleted())
	assert.Equal(t, 0, e.GetProgressStats().TotalCompleted)
	assert.Empty(t, e.LastModuleID())

	st := e.GetCurrentState()
	assert.Equal(t, "utilities", st.Module.ID, "selection is kept")
}

// brokenStore fails every write
type brokenStore struct{ *db.MemoryStore }

func (brokenStore) SetItem(string, string) error { return errors.New("disk full") }

func TestWriteFailureKeepsWorkingInMemory(t *testing.T) {
	repo := db.NewRepository(brokenStore{db.NewMemoryStore()}, db.DefaultKeyPrefix)
	e := New(testCatalog(t), repo)
	defer e.Close()

	require.True(t, e.SetModuleByID("basics"))
	assert.True(t, repo.Degraded())

	e.ApplyUserCode("p { color: red; }")
	assert.True(t, e.ValidateCode().IsValid)
	assert.True(t, e.IsCurrentLessonCompleted())
	assert.Equal(t, "p { color: red; }", e.GetCurrentState().SourceText)
}

func TestSetModulesAfterWriteFailureKeepsEdits(t *testing.T) {
	repo := db.NewRepository(brokenStore{db.NewMemoryStore()}, db.DefaultKeyPrefix)
	cat := testCatalog(t)
	e := New(cat, repo)
	defer e.Close()

	require.True(t, e.SetModuleByID("basics"))
	e.ApplyUserCode("p { color: red; }")
	require.True(t, e.SetLessonByIndex(1))
	require.True(t, repo.Degraded())

	e.SetModules(cat)
	require.True(t, e.SetLessonByIndex(0))
	assert.Equal(t, "p { color: red; }", e.GetCurrentState().SourceText)
}

func TestSetModulesKeepsSelection(t *testing.T) {
	store := db.NewMemoryStore()
	e := newEngine(t, store)
	require.True(t, e.SetModuleByID("basics"))
	require.True(t, e.SetLessonByIndex(1))

	smaller, err := catalog.New("en", models.Module{
		ID: "basics", Title: "Basics v2",
		Lessons: []models.Lesson{{Title: "Only", PreviewTemplate: "<p></p>"}},
	})
	require.NoError(t, err)

	e.SetModules(smaller)
	st := e.GetCurrentState()
	assert.Equal(t, "Basics v2", st.Module.Title)
	assert.Equal(t, 0, st.LessonIndex)
	assert.Equal(t, 1, e.GetProgressStats().TotalLessons)
}

func TestPreviewPayloads(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())
	ignore := cmpopts.IgnoreFields(models.PreviewContent{}, "Document", "Digest")

	require.True(t, e.SetModuleByID("basics"))
	require.True(t, e.SetLessonByIndex(1))
	e.ApplyUserCode("display: flex;")
	got, ok := e.GetPreviewContent()
	require.True(t, ok)
	want := models.PreviewContent{
		Mode:         models.ModeCSS,
		BaseStyle:    "body { margin: 0; }",
		UserStyle:    ".wrap {\ndisplay: flex;\n}",
		SandboxStyle: ".wrap { outline: 1px solid; }",
		Markup:       `<div class="wrap"><span>a</span></div>`,
	}
	assert.Empty(t, cmp.Diff(want, got, ignore))
	assert.Contains(t, got.Document, "<style>.wrap {\ndisplay: flex;\n}</style>")
	assert.NotEmpty(t, got.Digest)

	require.True(t, e.SetModuleByID("forms"))
	e.ApplyUserCode("<form></form>")
	got, _ = e.GetPreviewContent()
	assert.Equal(t, models.ModeHTML, got.Mode)
	assert.Equal(t, "<form></form>", got.Markup)
	assert.Equal(t, "form { display: grid; }", got.SandboxStyle)

	require.True(t, e.SetModuleByID("utilities"))
	e.ApplyUserCode("p-4 bg-white")
	got, _ = e.GetPreviewContent()
	assert.Equal(t, `<div class="p-4 bg-white">box</div>`, got.Markup)
	assert.Equal(t, []string{TailwindScript}, got.Scripts)
	assert.Contains(t, got.Document, `<script src="https://cdn.tailwindcss.com"></script>`)
}

func TestPreviewPushedOnlyOnChange(t *testing.T) {
	var pushes []models.PreviewContent
	e := newEngine(t, db.NewMemoryStore(), WithPreviewSink(func(p models.PreviewContent) { pushes = append(pushes, p) }))

	require.True(t, e.SetModuleByID("basics"))
	require.Len(t, pushes, 1, "lesson load renders")

	e.ApplyUserCode("p {}")
	assert.Len(t, pushes, 1, "same document")

	e.ApplyUserCode("p { color: red; }")
	assert.Len(t, pushes, 2)

	e.ApplyUserCodeForce("p { color: red; }")
	assert.Len(t, pushes, 3)
	assert.Equal(t, pushes[1].Digest, pushes[2].Digest)

	e.Reset()
	assert.Len(t, pushes, 4)
	assert.Equal(t, pushes[0].Digest, pushes[3].Digest)
}

func TestSolutionPreview(t *testing.T) {
	e := newEngine(t, db.NewMemoryStore())

	_, ok := e.GetSolutionPreview()
	assert.False(t, ok)

	require.True(t, e.SetModuleByID("basics"))
	_, ok = e.GetSolutionPreview()
	assert.False(t, ok, "lesson without solution")

	require.True(t, e.SetLessonByIndex(1))
	got, ok := e.GetSolutionPreview()
	require.True(t, ok)
	assert.Equal(t, ".wrap {\ndisplay: flex;\n}", got.UserStyle)
	assert.Equal(t, "", e.GetCurrentState().SourceText, "solution does not touch the source")
}
