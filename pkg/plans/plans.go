package plans

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/orato-app/orato/pkg/observability"
)

// StarterCode is the fallback plan for unknown or empty plan codes.
const StarterCode = "starter"

// Plan describes one subscription tier.
type Plan struct {
	Code        string   `json:"code" yaml:"code"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	WordLimit   int64    `json:"word_limit" yaml:"word_limit"`
	PriceCents  int64    `json:"price_cents" yaml:"price_cents"`
	Features    []string `json:"features" yaml:"features"`
}

// Defaults returns the built-in plan catalog used when no catalog file is
// configured.
func Defaults() []Plan {
	return []Plan{
		{
			Code:        StarterCode,
			DisplayName: "Starter",
			WordLimit:   10000,
			PriceCents:  0,
			Features:    []string{"recording_analysis", "filler_word_detection"},
		},
		{
			Code:        "professional",
			DisplayName: "Professional",
			WordLimit:   60000,
			PriceCents:  1900,
			Features:    []string{"recording_analysis", "filler_word_detection", "pace_coaching", "weekly_reports"},
		},
		{
			Code:        "executive",
			DisplayName: "Executive",
			WordLimit:   250000,
			PriceCents:  4900,
			Features:    []string{"recording_analysis", "filler_word_detection", "pace_coaching", "weekly_reports", "team_dashboards", "priority_support"},
		},
	}
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// Catalog resolves plan codes to plans. Safe for concurrent use; Reload and
// Watch swap the plan map atomically under the lock.
type Catalog struct {
	mu     sync.RWMutex
	byCode map[string]Plan
	path   string
	logger *observability.Logger
}

// NewCatalog builds a catalog from the built-in defaults.
func NewCatalog(logger *observability.Logger) *Catalog {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	c := &Catalog{logger: logger}
	c.replace(Defaults())
	return c
}

// NewCatalogFromFile builds a catalog from a YAML file. The file must define
// a starter plan; quota fallbacks depend on it.
func NewCatalogFromFile(path string, logger *observability.Logger) (*Catalog, error) {
	c := NewCatalog(logger)
	c.path = path
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file, leaving the current catalog untouched on
// any error.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read plan catalog %s: %w", c.path, err)
	}

	var parsed catalogFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse plan catalog %s: %w", c.path, err)
	}
	if len(parsed.Plans) == 0 {
		return fmt.Errorf("plan catalog %s defines no plans", c.path)
	}

	seen := make(map[string]bool, len(parsed.Plans))
	for _, plan := range parsed.Plans {
		if plan.Code == "" {
			return fmt.Errorf("plan catalog %s contains a plan without a code", c.path)
		}
		if seen[plan.Code] {
			return fmt.Errorf("plan catalog %s defines plan %q twice", c.path, plan.Code)
		}
		if plan.WordLimit <= 0 {
			return fmt.Errorf("plan %q must have a positive word limit", plan.Code)
		}
		seen[plan.Code] = true
	}
	if !seen[StarterCode] {
		return fmt.Errorf("plan catalog %s must define the %q plan", c.path, StarterCode)
	}

	c.replace(parsed.Plans)
	c.logger.WithField("path", c.path).Infof("Loaded plan catalog with %d plans", len(parsed.Plans))
	return nil
}

func (c *Catalog) replace(list []Plan) {
	byCode := make(map[string]Plan, len(list))
	for _, plan := range list {
		byCode[plan.Code] = plan
	}
	c.mu.Lock()
	c.byCode = byCode
	c.mu.Unlock()
}

// Resolve maps a plan code to its plan. Unknown or empty codes fall back to
// the starter plan; quota checks must always have a defined ceiling.
func (c *Catalog) Resolve(code string) Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if plan, ok := c.byCode[code]; ok {
		return plan
	}
	return c.byCode[StarterCode]
}

// Lookup returns the plan for code and whether it exists, without fallback.
func (c *Catalog) Lookup(code string) (Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	plan, ok := c.byCode[code]
	return plan, ok
}

// List returns all plans ordered by word limit then code.
func (c *Catalog) List() []Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]Plan, 0, len(c.byCode))
	for _, plan := range c.byCode {
		list = append(list, plan)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].WordLimit != list[j].WordLimit {
			return list[i].WordLimit < list[j].WordLimit
		}
		return list[i].Code < list[j].Code
	})
	return list
}

// Watch reloads the catalog whenever its file changes, until stop is closed.
// It returns immediately when the catalog has no backing file. Editors often
// replace files via rename, so the parent directory is watched rather than
// the file itself.
func (c *Catalog) Watch(stop <-chan struct{}) error {
	if c.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.path) {
					continue
				}
				if err := c.Reload(); err != nil {
					c.logger.WithError(err).Warn("Plan catalog reload failed, keeping previous catalog")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.WithError(err).Warn("Plan catalog watcher error")
			case <-stop:
				return
			}
		}
	}()

	return nil
}
