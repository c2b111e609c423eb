// Package surface drives an orchestrator from a YAML file being edited by
// hand. Each write of the file is an editing pass: changed values are fed to
// OnFieldChange, and saving the file counts as leaving the changed fields.
package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/fieldsync/internal/orchestrator"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce coalesces bursts of file events from one save.
const DefaultDebounce = 100 * time.Millisecond

// Document is the watched file's shape.
//
//	fields:
//	  status: closed
//	  notes: hello
//	save: [approval]
type Document struct {
	Fields map[string]any `yaml:"fields"`
	// Save lists manual-strategy fields to commit on this pass.
	Save []string `yaml:"save"`
}

// Config configures a FileSurface.
type Config struct {
	Path         string
	Fields       []core.FieldDescriptor
	Orchestrator *orchestrator.Orchestrator
	Debounce     time.Duration
	Logger       *slog.Logger
}

// Pass summarises one Sync.
type Pass struct {
	Changed []string
	Results []orchestrator.SaveResult
}

// FileSurface is a file-backed editing surface.
type FileSurface struct {
	path     string
	fields   map[string]core.FieldDescriptor
	orch     *orchestrator.Orchestrator
	debounce time.Duration
	logger   *slog.Logger

	last map[string]any
}

// New creates a FileSurface.
func New(cfg Config) (*FileSurface, error) {
	if cfg.Path == "" {
		return nil, core.ConfigurationErrorf("surface requires a file path")
	}
	if cfg.Orchestrator == nil {
		return nil, core.ConfigurationErrorf("surface requires an orchestrator")
	}
	s := &FileSurface{
		path:     cfg.Path,
		fields:   make(map[string]core.FieldDescriptor, len(cfg.Fields)),
		orch:     cfg.Orchestrator,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
	}
	for _, f := range cfg.Fields {
		s.fields[f.Key()] = f
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Load reads the file as the baseline without reporting any change.
func (s *FileSurface) Load() error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	s.last = doc.Fields
	return nil
}

// Sync reads the file and feeds every changed value to the orchestrator.
// Changed fields are then exited, and fields listed under save are saved.
func (s *FileSurface) Sync(ctx context.Context) (Pass, error) {
	doc, err := s.read()
	if err != nil {
		return Pass{}, err
	}

	var pass Pass
	for _, key := range sortedKeys(doc.Fields) {
		value := doc.Fields[key]
		if old, ok := s.last[key]; ok && reflect.DeepEqual(old, value) {
			continue
		}
		if err := s.orch.OnFieldChange(ctx, s.descriptor(key), value); err != nil {
			return pass, err
		}
		pass.Changed = append(pass.Changed, key)
	}
	s.last = doc.Fields

	for _, key := range pass.Changed {
		result, err := s.orch.OnFieldExit(ctx, key)
		if result != nil {
			pass.Results = append(pass.Results, *result)
		} else if err != nil {
			return pass, err
		}
	}
	for _, key := range doc.Save {
		result, err := s.orch.SaveField(ctx, key)
		if result != nil {
			pass.Results = append(pass.Results, *result)
		} else if err != nil {
			return pass, err
		}
	}
	return pass, nil
}

// Run loads the baseline, then syncs after every write to the file until
// ctx is cancelled. On return the orchestrator is cleaned up.
func (s *FileSurface) Run(ctx context.Context) error {
	defer s.orch.Cleanup()

	if err := s.Load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}
	target := filepath.Clean(s.path)

	trigger := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	s.logger.Info("watching record file", "path", s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(s.debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			pass, err := s.Sync(ctx)
			if err != nil {
				s.logger.Error("sync failed", "path", s.path, "error", err)
				continue
			}
			for _, r := range pass.Results {
				if r.Err != nil {
					s.logger.Warn(r.Message(), "field", r.FieldKey)
				} else {
					s.logger.Info(r.Message(), "field", r.FieldKey)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *FileSurface) descriptor(key string) core.FieldDescriptor {
	if f, ok := s.fields[key]; ok {
		return f
	}
	return core.FieldDescriptor{Name: key}
}

func (s *FileSurface) read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Document{Fields: map[string]any{}}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	return doc, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
