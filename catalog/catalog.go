// Package catalog holds the ordered, validated set of lesson modules for one
// locale.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

// DefaultLocale content lives at the root of the content directory
const DefaultLocale = "en"

var ErrModuleNotFound = errors.New("module not found")

// ConfigError reports the first missing field of a malformed module
type ConfigError struct {
	ModuleID string
	// Lesson is the offending lesson index, -1 for module-level fields
	Lesson int
	Field  string
}

func (e *ConfigError) Error() string {
	if e.Lesson < 0 {
		if e.Field == "lessons" {
			return `Module config missing "lessons" array`
		}
		return fmt.Sprintf("Module config missing %q", e.Field)
	}
	return fmt.Sprintf("Lesson %d missing %q", e.Lesson, e.Field)
}

// ValidateModule checks the minimal module contract and returns the first
// violation found.
func ValidateModule(m *models.Module) error {
	switch {
	case m.ID == "":
		return &ConfigError{Lesson: -1, Field: "id"}
	case m.Title == "":
		return &ConfigError{ModuleID: m.ID, Lesson: -1, Field: "title"}
	case m.Lessons == nil:
		return &ConfigError{ModuleID: m.ID, Lesson: -1, Field: "lessons"}
	}

	for i, lesson := range m.Lessons {
		if lesson.Title == "" {
			return &ConfigError{ModuleID: m.ID, Lesson: i, Field: "title"}
		}
		if lesson.PreviewTemplate == "" {
			return &ConfigError{ModuleID: m.ID, Lesson: i, Field: "previewHTML"}
		}
	}
	return nil
}

// applyDefaults resolves each lesson mode against the module mode
func applyDefaults(m *models.Module) {
	if m.Mode != "" && !m.Mode.IsKnown() {
		utils.LogWarn("Module %s has unknown mode %q, lessons will validate as %s", m.ID, m.Mode, models.DefaultMode)
	}
	lessons := make([]models.Lesson, len(m.Lessons))
	copy(lessons, m.Lessons)
	m.Lessons = lessons
	for i := range m.Lessons {
		lesson := &m.Lessons[i]
		lesson.Mode = lesson.EffectiveMode(m)
	}
}

// Catalog is safe for concurrent reads. Modules handed out must be treated as
// read-only.
type Catalog struct {
	locale string

	mu      sync.RWMutex
	modules []*models.Module
}

// New validates every module and applies mode defaults. It fails on the
// first malformed module.
func New(locale string, modules ...models.Module) (*Catalog, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	c := &Catalog{locale: locale}
	for i := range modules {
		m := modules[i]
		if err := ValidateModule(&m); err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		applyDefaults(&m)
		if c.indexLocked(m.ID) >= 0 {
			return nil, fmt.Errorf("duplicate module id %q", m.ID)
		}
		c.modules = append(c.modules, &m)
	}
	utils.LogCatalog("Catalog ready: %d module(s), %d lesson(s), locale %s", len(c.modules), c.TotalLessons(), locale)
	return c, nil
}

func (c *Catalog) Locale() string {
	return c.locale
}

// Modules returns the modules in catalog order
func (c *Catalog) Modules() []*models.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Module, len(c.modules))
	copy(out, c.modules)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}

// At returns the module at position i, or nil when out of range
func (c *Catalog) At(i int) *models.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.modules) {
		return nil
	}
	return c.modules[i]
}

func (c *Catalog) ModuleByID(id string) (*models.Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.modules[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
}

// IndexOf returns the catalog position of id, or -1
func (c *Catalog) IndexOf(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexLocked(id)
}

func (c *Catalog) indexLocked(id string) int {
	for i, m := range c.modules {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) TotalLessons() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, m := range c.modules {
		total += m.LessonCount()
	}
	return total
}

// AddCustomModule validates m and replaces the module with the same id, or
// appends it at the end of the catalog.
func (c *Catalog) AddCustomModule(m models.Module) error {
	if err := ValidateModule(&m); err != nil {
		utils.LogError("Rejected custom module: %v", err)
		return err
	}
	applyDefaults(&m)

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(m.ID); i >= 0 {
		c.modules[i] = &m
		utils.LogCatalog("Replaced module %s", m.ID)
		return nil
	}
	c.modules = append(c.modules, &m)
	utils.LogCatalog("Added module %s (%d lessons)", m.ID, m.LessonCount())
	return nil
}
