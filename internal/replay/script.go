// Package replay runs scripted edit sessions against an orchestrator.
package replay

import (
	"fmt"
	"os"
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
	"gopkg.in/yaml.v3"
)

// Script is a replayable edit session.
//
//	record: 6f1c...
//	steps:
//	  - change: {field: notes, value: draft}
//	  - wait: 1500ms
//	  - exit: notes
//	  - save: approval
//	  - save_all: true
//	  - cleanup: true
type Script struct {
	// Record, when set, overrides the record ID of the session endpoint.
	Record string `yaml:"record"`
	// Fields extends the configured field descriptors.
	Fields []core.FieldDescriptor `yaml:"fields"`
	Steps  []Step                 `yaml:"steps"`
}

// Step is one action. Exactly one member is set.
type Step struct {
	Change  *Change       `yaml:"change,omitempty"`
	Exit    string        `yaml:"exit,omitempty"`
	Save    string        `yaml:"save,omitempty"`
	SaveAll bool          `yaml:"save_all,omitempty"`
	Wait    time.Duration `yaml:"wait,omitempty"`
	Cleanup bool          `yaml:"cleanup,omitempty"`
}

// Change sets a field value.
type Change struct {
	Field string `yaml:"field"`
	Value any    `yaml:"value"`
}

// Action names the step's kind.
func (s Step) Action() string {
	switch {
	case s.Change != nil:
		return "change"
	case s.Exit != "":
		return "exit"
	case s.Save != "":
		return "save"
	case s.SaveAll:
		return "save_all"
	case s.Wait > 0:
		return "wait"
	case s.Cleanup:
		return "cleanup"
	}
	return ""
}

func (s Step) count() int {
	n := 0
	for _, set := range []bool{s.Change != nil, s.Exit != "", s.Save != "", s.SaveAll, s.Wait > 0, s.Cleanup} {
		if set {
			n++
		}
	}
	return n
}

// Validate checks that every step names exactly one action.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("script has no steps")
	}
	for i, step := range s.Steps {
		if step.count() != 1 {
			return fmt.Errorf("step %d: exactly one action required", i+1)
		}
		if step.Change != nil && step.Change.Field == "" {
			return fmt.Errorf("step %d: change requires a field", i+1)
		}
	}
	return nil
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}
