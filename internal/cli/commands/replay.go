package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leapstack-labs/fieldsync/internal/cli/output"
	"github.com/leapstack-labs/fieldsync/internal/replay"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/spf13/cobra"
)

// StepInfo is the JSON shape of one replayed step.
type StepInfo struct {
	Index   int    `json:"index"`
	Action  string `json:"action"`
	Field   string `json:"field,omitempty"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// ReplayOutput is the JSON shape of a replay.
type ReplayOutput struct {
	Endpoint string     `json:"endpoint"`
	Record   string     `json:"record,omitempty"`
	Steps    []StepInfo `json:"steps"`
	Saved    int        `json:"saved"`
	Failed   int        `json:"failed"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Replay a scripted edit session",
		Long: `Run the steps of an edit session script through the save orchestrator
and report what each step did. Steps are change, exit, save, save_all, wait
and cleanup.

Saves go to the configured endpoint, or with --local to the configured
record store in-process.`,
		Example: `  # Replay against the remote endpoint
  fieldsync replay session.yaml

  # Replay against a fresh local record
  fieldsync replay session.yaml --local`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, _ := cmd.Flags().GetBool("local")
			record, _ := cmd.Flags().GetString("record")
			return runReplay(cmd.Context(), NewCommandContext(cmd), args[0], local, record)
		},
	}
	cmd.Flags().Bool("local", false, "Save to the configured record store instead of the endpoint")
	cmd.Flags().String("record", "", "Record ID (overrides the script and endpoint)")
	return cmd
}

func runReplay(ctx context.Context, c *CommandContext, path string, local bool, record string) error {
	script, err := replay.Load(path)
	if err != nil {
		return err
	}
	if record == "" {
		record = script.Record
	}

	sess, err := c.NewSession(ctx, SessionOptions{
		Local:  local,
		Record: record,
		Fields: script.Fields,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	runner, err := replay.NewRunner(replay.Config{
		Orchestrator: sess.Orchestrator,
		Fields:       sess.Fields,
		Logger:       c.Logger,
	})
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx, script)
	out := ReplayOutput{
		Endpoint: sess.Endpoint,
		Record:   sess.Record,
		Failed:   report.Failures(),
		Saved:    len(report.Events) - report.Failures(),
	}
	for _, s := range report.Steps {
		info := StepInfo{Index: s.Index, Action: s.Action, Field: s.Field, Outcome: s.Outcome}
		if s.Err != nil {
			info.Error = core.UserMessage(s.Err)
		}
		out.Steps = append(out.Steps, info)
	}

	if err := renderReplay(c.Renderer, out); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if out.Failed > 0 {
		return fmt.Errorf("%d of %d saves failed", out.Failed, out.Failed+out.Saved)
	}
	return nil
}

func renderReplay(r *output.Renderer, out ReplayOutput) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Replay")
	r.Println(output.FormatKeyValue("Endpoint", out.Endpoint))
	if out.Record != "" {
		r.Println(output.FormatKeyValue("Record", out.Record))
	}
	r.Println("")

	rows := make([][]string, 0, len(out.Steps))
	for _, s := range out.Steps {
		outcome := s.Outcome
		if s.Error != "" {
			outcome = s.Error
		}
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Action, s.Field, outcome})
	}
	r.Table([]string{"#", "Step", "Field", "Outcome"}, rows)

	summary := fmt.Sprintf("%d saved, %d failed", out.Saved, out.Failed)
	if out.Failed > 0 {
		r.Error(summary)
	} else {
		r.Success(summary)
	}
	return nil
}
