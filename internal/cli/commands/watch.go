package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/fieldsync/internal/orchestrator"
	"github.com/leapstack-labs/fieldsync/internal/surface"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <record.yaml>",
		Short: "Edit a record through a watched YAML file",
		Long: `Watch a YAML file of field values and save edits as they happen.

Each write of the file counts as leaving the edited fields: immediate
fields save at once, exit and continuous fields save on the write, and
manual fields wait until they are listed under "save:".

  fields:
    title: Quarterly report
    status: open
  save: [notes]

Press Ctrl-C to stop; unsaved changes are discarded.`,
		Example: `  # Watch a record file against the remote endpoint
  fieldsync watch record.yaml

  # Watch against a local record
  fieldsync watch record.yaml --local --record 6f1c0e4a-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, _ := cmd.Flags().GetBool("local")
			record, _ := cmd.Flags().GetString("record")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, NewCommandContext(cmd), args[0], local, record)
		},
	}
	cmd.Flags().Bool("local", false, "Save to the configured record store instead of the endpoint")
	cmd.Flags().String("record", "", "Record ID (overrides the endpoint)")
	return cmd
}

func runWatch(ctx context.Context, c *CommandContext, path string, local bool, record string) error {
	r := c.Renderer
	sess, err := c.NewSession(ctx, SessionOptions{
		Local:     local,
		Record:    record,
		OnSuccess: func(res orchestrator.SaveResult) { r.Success(res.Message()) },
		OnError:   func(res orchestrator.SaveResult) { r.Error(res.Message()) },
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	s, err := surface.New(surface.Config{
		Path:         path,
		Fields:       sess.Fields,
		Orchestrator: sess.Orchestrator,
		Logger:       c.Logger,
	})
	if err != nil {
		return err
	}

	if sess.Record != "" {
		c.Logger.Info("editing record", "record", sess.Record, "endpoint", sess.Endpoint)
	}
	return s.Run(ctx)
}
