package alerting

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/vibranic/central/internal/models"
	"github.com/vibranic/central/internal/storage"
)

// RulesFile is the on-disk alert rule provisioning format.
type RulesFile struct {
	Rules []FileRule `yaml:"rules"`
}

// FileRule is a single provisioned alert rule. Rules are matched to
// stored rules by name.
type FileRule struct {
	Name      string         `yaml:"name"`
	AppID     string         `yaml:"app_id"`
	Condition string         `yaml:"condition"`
	Params    map[string]any `yaml:"params"`
	Severity  string         `yaml:"severity"` // display label
	Enabled   *bool          `yaml:"enabled"`  // default true
}

// Validate checks the provisioned rule for errors.
func (r *FileRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	cond := models.AlertCondition(r.Condition)
	if !cond.Valid() {
		return fmt.Errorf("invalid condition: %q", r.Condition)
	}
	if cond == models.ConditionMetricThreshold {
		data, err := yaml.Marshal(r.Params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		var params ThresholdParams
		if err := yaml.Unmarshal(data, &params); err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		if err := params.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// enabled returns the effective enabled flag.
func (r *FileRule) enabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// ParseRulesFile parses and validates a rule provisioning file.
func ParseRulesFile(path string) (*RulesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	for i := range file.Rules {
		if err := file.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
	}

	return &file, nil
}

// Loader syncs alert rules from a YAML provisioning file into the store.
type Loader struct {
	store storage.Storage
	path  string
}

// NewLoader creates a new rule loader for the given file.
func NewLoader(store storage.Storage, path string) *Loader {
	return &Loader{store: store, path: path}
}

// Load parses the provisioning file and upserts its rules by name.
// Rules created through the admin API are left untouched.
func (l *Loader) Load(ctx context.Context) error {
	file, err := ParseRulesFile(l.path)
	if err != nil {
		return err
	}

	for _, fr := range file.Rules {
		if err := l.syncRule(ctx, &fr); err != nil {
			return fmt.Errorf("sync rule %s: %w", fr.Name, err)
		}
	}

	log.Printf("[alerting] loaded %d rules from %s", len(file.Rules), l.path)
	return nil
}

func (l *Loader) syncRule(ctx context.Context, fr *FileRule) error {
	existing, err := l.store.Alerts().GetByName(ctx, fr.Name)
	if err != nil {
		return err
	}

	if existing == nil {
		rule := models.NewAlertRule(fr.Name, models.AlertCondition(fr.Condition), fr.AppID)
		rule.Severity = fr.Severity
		rule.Enabled = fr.enabled()
		if fr.Params != nil {
			if err := rule.SetParams(fr.Params); err != nil {
				return fmt.Errorf("encode params: %w", err)
			}
		}
		return l.store.Alerts().Create(ctx, rule)
	}

	existing.AppID = fr.AppID
	existing.Condition = models.AlertCondition(fr.Condition)
	existing.Severity = fr.Severity
	existing.Enabled = fr.enabled()
	existing.Params = ""
	if fr.Params != nil {
		if err := existing.SetParams(fr.Params); err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
	}
	existing.UpdatedAt = time.Now()
	return l.store.Alerts().Update(ctx, existing)
}

// Watch reloads the provisioning file whenever it changes, until the
// context is cancelled. Reload failures are logged and the previous
// rules stay in effect.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch rules dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != l.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := l.Load(ctx); err != nil {
					log.Printf("[alerting] reload rules: %v", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[alerting] watch rules: %v", err)
		}
	}
}
