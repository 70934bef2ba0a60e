// Package app wires configuration, storage, content and the engine into one
// session.
package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/adamspd/crispies/catalog"
	"github.com/adamspd/crispies/config"
	"github.com/adamspd/crispies/db"
	"github.com/adamspd/crispies/engine"
	"github.com/adamspd/crispies/utils"
)

// App owns one learner session
type App struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Repo    *db.Repository
	Engine  *engine.Engine

	closers []io.Closer
}

// New loads content from cfg.Content.Dir on disk
func New(cfg *config.Config, opts ...engine.Option) (*App, error) {
	return NewWithContent(cfg, os.DirFS(cfg.Content.Dir), ".", opts...)
}

// NewWithContent loads content from dir inside fsys, restores the last
// visited module, or selects the first one.
func NewWithContent(cfg *config.Config, fsys fs.FS, dir string, opts ...engine.Option) (*App, error) {
	utils.LogStartup("Starting session (store %s, locale %s)", cfg.Store.Backend, cfg.Content.Locale)

	a := &App{Config: cfg}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Load(fsys, dir, cfg.Content.Locale)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("could not load lessons: %w", err)
	}
	a.Catalog = cat
	a.Repo = db.NewRepository(store, cfg.Store.KeyPrefix)

	engineOpts := []engine.Option{
		engine.WithDebounce(cfg.Engine.Debounce),
		engine.WithCrossModuleNavigation(cfg.Engine.CrossModuleNavigation),
	}
	a.Engine = engine.New(cat, a.Repo, append(engineOpts, opts...)...)

	a.restoreSelection()
	return a, nil
}

func (a *App) openStore() (db.Store, error) {
	switch a.Config.Store.Backend {
	case config.BackendMemory:
		return db.NewMemoryStore(), nil
	case config.BackendRedis:
		store, err := db.NewRedisStore(a.Config.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	default:
		store, err := db.InitDB(a.Config.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	}
}

func (a *App) restoreSelection() {
	if last := a.Engine.LastModuleID(); last != "" {
		if a.Engine.SetModuleByID(last) {
			utils.LogStartup("Restored last module %s", last)
			return
		}
		utils.LogWarn("Last module %s is not available, starting from the beginning", last)
	}
	for _, m := range a.Catalog.Modules() {
		if a.Engine.SetModuleByID(m.ID) {
			utils.LogInfo("Starting at module %s", m.ID)
			return
		}
	}
	utils.LogWarn("No lessons available for locale %s", a.Catalog.Locale())
}

// ImportModule fetches a module over HTTP and adds it to the catalog,
// replacing a module with the same id
func (a *App) ImportModule(ctx context.Context, client *http.Client, url string) error {
	m, err := catalog.FetchModule(ctx, client, url)
	if err != nil {
		return err
	}
	if err := a.Catalog.AddCustomModule(*m); err != nil {
		return err
	}
	a.Engine.SetModules(a.Catalog)
	return nil
}

// Close stops the engine and releases the store
func (a *App) Close() {
	utils.LogShutdown("Closing session...")
	if a.Engine != nil {
		a.Engine.Close()
	}
	a.closeStores()
}

func (a *App) closeStores() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			utils.LogError("Error closing store: %v", err)
		}
	}
	a.closers = nil
	utils.LogShutdown("Store closed")
}
