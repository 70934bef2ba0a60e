package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adamspd/crispies/models"
	"github.com/adamspd/crispies/utils"
)

const contentInfoYaml = "content-info.yaml"

// contentInfo orders the module files of one locale directory
type contentInfo struct {
	Modules []string `yaml:"content"`
}

// Load reads every module file of a locale. Content for DefaultLocale sits in
// dir itself, other locales in dir/<locale>. Files are read in the order
// listed by content-info.yaml when present, else in lexical order.
func Load(fsys fs.FS, dir, locale string) (*Catalog, error) {
	start := time.Now()
	if locale == "" {
		locale = DefaultLocale
	}
	root := localeDir(fsys, dir, locale)
	utils.LogCatalog("Loading modules from %s (locale %s)", root, locale)

	files, err := moduleFiles(fsys, root)
	if err != nil {
		return nil, err
	}

	modules := make([]models.Module, 0, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		m, err := DecodeModule(name, data)
		if err == nil {
			err = ValidateModule(m)
		}
		if err != nil {
			utils.LogError("Failed to load %s: %v", name, err)
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		modules = append(modules, *m)
	}

	c, err := New(locale, modules...)
	if err != nil {
		return nil, err
	}
	utils.LogCatalog("Loaded %d module file(s) in %v", len(files), time.Since(start))
	return c, nil
}

func localeDir(fsys fs.FS, dir, locale string) string {
	if locale == DefaultLocale {
		return dir
	}
	sub := path.Join(dir, locale)
	if info, err := fs.Stat(fsys, sub); err == nil && info.IsDir() {
		return sub
	}
	utils.LogWarn("No content for locale %s, falling back to %s", locale, DefaultLocale)
	return dir
}

func moduleFiles(fsys fs.FS, root string) ([]string, error) {
	data, err := fs.ReadFile(fsys, path.Join(root, contentInfoYaml))
	switch {
	case err == nil:
		var info contentInfo
		if err := yaml.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("parse %s: %w", contentInfoYaml, err)
		}
		return info.Modules, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", contentInfoYaml, err)
	}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == contentInfoYaml {
			continue
		}
		switch path.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// DecodeModule parses a module file, JSON or YAML by extension. The module is
// not validated.
func DecodeModule(name string, data []byte) (*models.Module, error) {
	var m models.Module
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	return &m, nil
}

// FetchModule downloads a single JSON module and validates it
func FetchModule(ctx context.Context, client *http.Client, url string) (*models.Module, error) {
	if client == nil {
		client = http.DefaultClient
	}
	utils.LogCatalog("Fetching module from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		utils.LogError("Error loading module from URL: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("Failed to load module: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		utils.LogError("Error loading module from URL: %v", err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	m, err := DecodeModule("module.json", bytes.TrimSpace(body))
	if err != nil {
		return nil, err
	}
	if err := ValidateModule(m); err != nil {
		utils.LogError("Error loading module from URL: %v", err)
		return nil, err
	}
	return m, nil
}
