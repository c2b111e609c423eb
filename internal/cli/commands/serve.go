package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/fieldsync/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference record service",
		Long: `Serve records over HTTP. Each record is a map of field values validated
against the configured fields and stored with its change history.

Routes:
  GET   /healthz
  POST  /records
  GET   /records/{id}
  PATCH /records/{id}
  POST  /records/{id}/validate
  GET   /records/{id}/history`,
		Example: `  # Serve on the configured address with the SQLite store
  fieldsync serve

  # Serve on another port
  fieldsync serve --addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, NewCommandContext(cmd), addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	return cmd
}

func runServe(ctx context.Context, c *CommandContext, addr string) error {
	st, err := c.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	svc, err := c.NewService(st, c.NewRegistry(), c.Cfg.Fields)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = c.Cfg.Server.Addr
	}

	c.Logger.Info("starting record service", "addr", addr, "driver", c.Cfg.Server.Driver, "fields", len(c.Cfg.Fields))
	return server.New(server.Config{
		Service: svc,
		Addr:    addr,
		Logger:  c.Logger,
	}).Serve(ctx)
}
