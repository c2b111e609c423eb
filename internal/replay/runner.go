package replay

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/leapstack-labs/fieldsync/internal/events"
	"github.com/leapstack-labs/fieldsync/internal/orchestrator"
	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures a Runner.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Fields       []core.FieldDescriptor
	// Sleep implements wait steps. Nil sleeps on the wall clock.
	Sleep  SleepFunc
	Logger *slog.Logger
}

// StepReport is the outcome of one step.
type StepReport struct {
	Index   int
	Action  string
	Field   string
	Outcome string
	Err     error
	Results []orchestrator.SaveResult
}

// Report is the outcome of a whole script.
type Report struct {
	Steps []StepReport
	// Events holds every save event published while the script ran.
	Events []events.Event
}

// Failures counts failed save events.
func (r Report) Failures() int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == events.SaveFailed {
			n++
		}
	}
	return n
}

// Runner executes scripts.
type Runner struct {
	orch   *orchestrator.Orchestrator
	fields map[string]core.FieldDescriptor
	sleep  SleepFunc
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Orchestrator == nil {
		return nil, core.ConfigurationErrorf("replay requires an orchestrator")
	}
	r := &Runner{
		orch:   cfg.Orchestrator,
		fields: make(map[string]core.FieldDescriptor, len(cfg.Fields)),
		sleep:  cfg.Sleep,
		logger: cfg.Logger,
	}
	for _, f := range cfg.Fields {
		r.fields[f.Key()] = f
	}
	if r.sleep == nil {
		r.sleep = wallSleep
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

func wallSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes every step in order. A failed save does not stop the script;
// a configuration error or cancelled context does.
func (r *Runner) Run(ctx context.Context, script *Script) (Report, error) {
	for _, f := range script.Fields {
		r.fields[f.Key()] = f
	}

	var (
		mu     sync.Mutex
		report Report
	)
	remove := r.orch.Events().Handle(func(e events.Event) {
		if e.Kind != events.SaveSucceeded && e.Kind != events.SaveFailed {
			return
		}
		mu.Lock()
		report.Events = append(report.Events, e)
		mu.Unlock()
	})
	defer remove()

	for i, step := range script.Steps {
		sr := StepReport{Index: i + 1, Action: step.Action()}
		r.logger.Debug("replay step", "index", sr.Index, "action", sr.Action)

		switch {
		case step.Change != nil:
			sr.Field = step.Change.Field
			sr.Err = r.orch.OnFieldChange(ctx, r.descriptor(step.Change.Field), step.Change.Value)
			sr.Outcome = describePending(r.orch, step.Change.Field)

		case step.Exit != "":
			sr.Field = step.Exit
			result, err := r.orch.OnFieldExit(ctx, step.Exit)
			sr.Results, sr.Outcome = collect(result, err)

		case step.Save != "":
			sr.Field = step.Save
			result, err := r.orch.SaveField(ctx, step.Save)
			sr.Results, sr.Outcome = collect(result, err)

		case step.SaveAll:
			sr.Results = r.orch.SaveAllPending(ctx)
			sr.Outcome = summarize(sr.Results)

		case step.Wait > 0:
			sr.Err = r.sleep(ctx, step.Wait)
			if sr.Err == nil {
				sr.Err = r.orch.Wait(ctx)
			}
			sr.Outcome = "waited " + step.Wait.String()

		case step.Cleanup:
			r.orch.Cleanup()
			sr.Outcome = "cleaned up"
		}

		mu.Lock()
		report.Steps = append(report.Steps, sr)
		mu.Unlock()

		if sr.Err != nil && (core.CodeOf(sr.Err) == core.CodeConfiguration || ctx.Err() != nil) {
			return snapshot(&mu, &report), sr.Err
		}
	}

	if err := r.orch.Wait(ctx); err != nil {
		return snapshot(&mu, &report), err
	}
	return snapshot(&mu, &report), nil
}

func snapshot(mu *sync.Mutex, report *Report) Report {
	mu.Lock()
	defer mu.Unlock()
	out := Report{
		Steps:  append([]StepReport(nil), report.Steps...),
		Events: append([]events.Event(nil), report.Events...),
	}
	return out
}

func (r *Runner) descriptor(key string) core.FieldDescriptor {
	if f, ok := r.fields[key]; ok {
		return f
	}
	return core.FieldDescriptor{Name: key}
}

func describePending(orch *orchestrator.Orchestrator, key string) string {
	switch orch.Phase(key) {
	case orchestrator.PhaseSaving:
		return "saving"
	case orchestrator.PhaseDirty:
		if change, ok := orch.PendingChange(key); ok {
			return "pending (" + string(change.Strategy) + ")"
		}
		return "debouncing"
	default:
		return "sent"
	}
}

func collect(result *orchestrator.SaveResult, err error) ([]orchestrator.SaveResult, string) {
	if result == nil {
		if err != nil {
			return nil, err.Error()
		}
		return nil, "nothing to save"
	}
	return []orchestrator.SaveResult{*result}, result.Message()
}

func summarize(results []orchestrator.SaveResult) string {
	if len(results) == 0 {
		return "nothing to save"
	}
	var failed, superseded int
	for _, r := range results {
		switch r.Phase() {
		case orchestrator.PhaseFailed:
			failed++
		case orchestrator.PhaseSuperseded:
			superseded++
		}
	}
	out := pluralSaved(len(results) - failed - superseded)
	if failed > 0 {
		out += ", " + strconv.Itoa(failed) + " failed"
	}
	if superseded > 0 {
		out += ", " + strconv.Itoa(superseded) + " superseded"
	}
	return out
}

func pluralSaved(n int) string {
	if n == 1 {
		return "1 field saved"
	}
	return strconv.Itoa(n) + " fields saved"
}
