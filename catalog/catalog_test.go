package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamspd/crispies/models"
)

func lesson(title string) models.Lesson {
	return models.Lesson{Title: title, PreviewTemplate: "<div></div>"}
}

func TestValidateModuleMessages(t *testing.T) {
	tests := []struct {
		name   string
		module models.Module
		want   string
	}{
		{"id", models.Module{Title: "T", Lessons: []models.Lesson{}}, `Module config missing "id"`},
		{"title", models.Module{ID: "m", Lessons: []models.Lesson{}}, `Module config missing "title"`},
		{"lessons", models.Module{ID: "m", Title: "T"}, `Module config missing "lessons" array`},
		{"lesson title", models.Module{ID: "m", Title: "T", Lessons: []models.Lesson{lesson("a"), {PreviewTemplate: "x"}}}, `Lesson 1 missing "title"`},
		{"lesson preview", models.Module{ID: "m", Title: "T", Lessons: []models.Lesson{{Title: "a"}}}, `Lesson 0 missing "previewHTML"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModule(&tt.module)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}

	assert.NoError(t, ValidateModule(&models.Module{ID: "m", Title: "T", Lessons: []models.Lesson{}}))
}

func TestNewAppliesModeDefaults(t *testing.T) {
	html := lesson("forms")
	html.Mode = models.ModeHTML

	c, err := New("",
		models.Module{ID: "css", Title: "CSS", Lessons: []models.Lesson{lesson("a")}},
		models.Module{ID: "tw", Title: "Tailwind", Mode: models.ModeTailwind, Lessons: []models.Lesson{lesson("a"), html}},
	)
	require.NoError(t, err)

	assert.Equal(t, DefaultLocale, c.Locale())
	assert.Equal(t, 3, c.TotalLessons())
	assert.Equal(t, models.ModeCSS, c.At(0).Lessons[0].Mode)
	assert.Equal(t, models.ModeTailwind, c.At(1).Lessons[0].Mode)
	assert.Equal(t, models.ModeHTML, c.At(1).Lessons[1].Mode)
	assert.Nil(t, c.At(2))
}

func TestModeDefaultsLeaveCallerLessonsAlone(t *testing.T) {
	lessons := []models.Lesson{lesson("a")}
	c, err := New("", models.Module{ID: "css", Title: "CSS", Lessons: lessons})
	require.NoError(t, err)
	assert.Equal(t, models.ModeCSS, c.At(0).Lessons[0].Mode)
	assert.Empty(t, lessons[0].Mode)

	custom := []models.Lesson{lesson("b")}
	require.NoError(t, c.AddCustomModule(models.Module{ID: "tw", Title: "TW", Mode: models.ModeTailwind, Lessons: custom}))
	assert.Equal(t, models.ModeTailwind, c.At(1).Lessons[0].Mode)
	assert.Empty(t, custom[0].Mode)
}

func TestNewRejectsBadModules(t *testing.T) {
	_, err := New("en", models.Module{ID: "a", Title: "A", Lessons: []models.Lesson{{Title: "x"}}})
	assert.EqualError(t, err, `module 0: Lesson 0 missing "previewHTML"`)

	_, err = New("en",
		models.Module{ID: "a", Title: "A", Lessons: []models.Lesson{}},
		models.Module{ID: "a", Title: "Again", Lessons: []models.Lesson{}},
	)
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	c, err := New("en",
		models.Module{ID: "a", Title: "A", Lessons: []models.Lesson{lesson("1")}},
		models.Module{ID: "b", Title: "B", Lessons: []models.Lesson{lesson("1"), lesson("2")}},
	)
	require.NoError(t, err)

	m, err := c.ModuleByID("b")
	require.NoError(t, err)
	assert.Equal(t, "B", m.Title)
	assert.Equal(t, 1, c.IndexOf("b"))
	assert.Equal(t, -1, c.IndexOf("zzz"))

	_, err = c.ModuleByID("zzz")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestAddCustomModule(t *testing.T) {
	c, err := New("en", models.Module{ID: "a", Title: "A", Lessons: []models.Lesson{lesson("1")}})
	require.NoError(t, err)

	require.NoError(t, c.AddCustomModule(models.Module{ID: "b", Title: "B", Lessons: []models.Lesson{lesson("1")}}))
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.AddCustomModule(models.Module{ID: "a", Title: "A v2", Lessons: []models.Lesson{lesson("1"), lesson("2")}}))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "A v2", c.At(0).Title)
	assert.Equal(t, 3, c.TotalLessons())

	err = c.AddCustomModule(models.Module{ID: "c"})
	assert.EqualError(t, err, `Module config missing "title"`)
	assert.Equal(t, 2, c.Len())
}

var contentFS = fstest.MapFS{
	"lessons/10-tailwind.yaml": {Data: []byte(`
id: tailwind
title: Tailwind basics
mode: tailwind
lessons:
  - title: Padding
    previewHTML: '<div class="{{USER_CLASSES}}"></div>'
    validations:
      - type: contains_class
        value: p-4
`)},
	"lessons/00-selectors.json": {Data: []byte(`{
		"id": "selectors",
		"title": "Basic selectors",
		"lessons": [
			{"title": "Type selector", "previewHTML": "<p>hi</p>", "initialCode": "p {}",
			 "validations": [{"type": "contains", "value": "color"}]}
		]
	}`)},
	"lessons/README.md": {Data: []byte("ignored")},
	"lessons/de/content-info.yaml": {Data: []byte(`
content:
  - selektoren.json
`)},
	"lessons/de/selektoren.json": {Data: []byte(`{"id":"selectors","title":"Selektoren","lessons":[{"title":"Typ","previewHTML":"<p></p>"}]}`)},
	"lessons/de/unlisted.json":   {Data: []byte(`{"id":"unlisted","title":"x","lessons":[]}`)},
	"broken/bad.json":            {Data: []byte(`{"id":"bad","title":"Bad","lessons":[{"title":"no preview"}]}`)},
}

func TestLoad(t *testing.T) {
	c, err := Load(contentFS, "lessons", "en")
	require.NoError(t, err)

	mods := c.Modules()
	require.Len(t, mods, 2)
	assert.Equal(t, "selectors", mods[0].ID)
	assert.Equal(t, "tailwind", mods[1].ID)
	assert.Equal(t, models.ModeCSS, mods[0].Lessons[0].Mode)
	assert.Equal(t, models.ModeTailwind, mods[1].Lessons[0].Mode)
	assert.Equal(t, "p-4", mods[1].Lessons[0].Validations[0].Value.Literal)
}

func TestLoadLocale(t *testing.T) {
	c, err := Load(contentFS, "lessons", "de")
	require.NoError(t, err)
	assert.Equal(t, "de", c.Locale())
	require.Equal(t, 1, c.Len(), "only files listed in content-info.yaml")
	assert.Equal(t, "Selektoren", c.At(0).Title)

	// unknown locales fall back to the default content
	c, err = Load(contentFS, "lessons", "fr")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestLoadFailsOnMalformedModule(t *testing.T) {
	_, err := Load(contentFS, "broken", "en")
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, 0, cfgErr.Lesson)
	assert.Equal(t, "previewHTML", cfgErr.Field)

	_, err = Load(contentFS, "missing", "en")
	assert.Error(t, err)
}

func TestFetchModule(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"remote","title":"Remote","lessons":[{"title":"One","previewHTML":"<p></p>"}]}`))
	})
	mux.HandleFunc("/invalid.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Remote","lessons":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m, err := FetchModule(context.Background(), srv.Client(), srv.URL+"/ok.json")
	require.NoError(t, err)
	assert.Equal(t, "remote", m.ID)
	assert.Len(t, m.Lessons, 1)

	_, err = FetchModule(context.Background(), srv.Client(), srv.URL+"/missing.json")
	assert.EqualError(t, err, "Failed to load module: 404 Not Found")

	_, err = FetchModule(context.Background(), srv.Client(), srv.URL+"/invalid.json")
	assert.EqualError(t, err, `Module config missing "id"`)
}
