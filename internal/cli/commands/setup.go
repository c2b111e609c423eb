package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/fieldsync/internal/cli/config"
	"github.com/leapstack-labs/fieldsync/internal/cli/output"
	"github.com/leapstack-labs/fieldsync/internal/events"
	"github.com/leapstack-labs/fieldsync/internal/fieldtypes"
	"github.com/leapstack-labs/fieldsync/internal/orchestrator"
	"github.com/leapstack-labs/fieldsync/internal/recordsvc"
	"github.com/leapstack-labs/fieldsync/internal/registry"
	"github.com/leapstack-labs/fieldsync/internal/store"
	"github.com/leapstack-labs/fieldsync/internal/strategy"
	"github.com/leapstack-labs/fieldsync/internal/transport"
	"github.com/leapstack-labs/fieldsync/internal/validation"
	"github.com/leapstack-labs/fieldsync/pkg/core"
	"github.com/spf13/cobra"
)

// localBase prefixes endpoints served by the in-process backend.
const localBase = "local:"

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// getConfig returns the current configuration, or the defaults when no
// command loaded one.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		LogLevel:     config.DefaultLogLevel,
		LogFormat:    config.DefaultLogFormat,
		OutputFormat: config.DefaultOutput,
		Save: config.SaveConfig{
			Debounce:        config.DefaultSaveDebounce,
			BulkConcurrency: config.DefaultBulkConcurrency,
			Timeout:         config.DefaultSaveTimeout,
		},
		Validation: config.ValidationConfig{Debounce: config.DefaultValidationDelay},
		Server: config.ServerConfig{
			Addr:   config.DefaultServerAddr,
			Driver: config.DefaultServerDriver,
			DSN:    config.DefaultServerDSN,
		},
	}
}

// NewRegistry builds the type registry with the configured fallbacks.
func (c *CommandContext) NewRegistry() *registry.Registry {
	reg := fieldtypes.NewRegistry()
	reg.MergeFallbacks(c.Cfg.Fallbacks)
	return reg
}

// NewResolver builds the strategy resolver over reg's alias chain.
func (c *CommandContext) NewResolver(reg *registry.Registry) *strategy.Resolver {
	return strategy.New(strategy.Config{
		Table:           c.Cfg.Strategies,
		Debounce:        c.Cfg.Debounce,
		DefaultDebounce: c.Cfg.Save.Debounce,
		Aliases:         reg.Alias,
	})
}

// OpenStore opens and migrates the configured record store.
func (c *CommandContext) OpenStore(ctx context.Context) (*store.Store, error) {
	driver, err := store.ParseDriver(c.Cfg.Server.Driver)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, driver, c.Cfg.Server.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to migrate record store: %w", err)
	}
	return st, nil
}

// NewService builds the record service over st.
func (c *CommandContext) NewService(st *store.Store, reg *registry.Registry, fields []core.FieldDescriptor) (*recordsvc.Service, error) {
	return recordsvc.New(recordsvc.Config{
		Repository: st,
		Fields:     fields,
		Registry:   reg,
		Logger:     c.Logger,
	})
}

// SessionOptions selects the backend of an editing session.
type SessionOptions struct {
	// Local serves persistence in-process from the configured store.
	Local bool
	// Record overrides the record addressed by the endpoint. With Local and
	// no Record a new record is created.
	Record string
	// Fields extends the configured schema.
	Fields []core.FieldDescriptor
	// OnSuccess and OnError receive save outcomes.
	OnSuccess func(orchestrator.SaveResult)
	OnError   func(orchestrator.SaveResult)
}

// Session is one editing session: an orchestrator with its collaborators.
type Session struct {
	Endpoint     string
	Record       string
	Fields       []core.FieldDescriptor
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Validation   *validation.Channel

	closers []func()
}

// Close cleans up the orchestrator and releases the backend.
func (s *Session) Close() {
	if s.Orchestrator != nil {
		s.Orchestrator.Cleanup()
	}
	s.release()
}

// NewSession wires registry, strategies, backend, validation and orchestrator
// from the configuration.
func (c *CommandContext) NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	reg := c.NewRegistry()
	sess := &Session{
		Fields:   mergeFields(c.Cfg.Fields, opts.Fields),
		Registry: reg,
		Record:   opts.Record,
	}

	var (
		persister core.Persister
		validator core.Validator
	)
	if opts.Local {
		st, err := c.OpenStore(ctx)
		if err != nil {
			return nil, err
		}
		sess.closers = append(sess.closers, func() { _ = st.Close() })
		svc, err := c.NewService(st, reg, sess.Fields)
		if err != nil {
			sess.release()
			return nil, err
		}
		if sess.Record == "" {
			rec, err := svc.Create(ctx)
			if err != nil {
				sess.release()
				return nil, err
			}
			sess.Record = rec.ID
		}
		backend := recordsvc.NewLocalBackend(svc)
		persister, validator = backend, backend
		sess.Endpoint = recordsvc.Endpoint(localBase, sess.Record)
	} else {
		if c.Cfg.Endpoint == "" {
			return nil, core.ConfigurationErrorf("no endpoint configured (set endpoint, FIELDSYNC_ENDPOINT, --endpoint or use --local)")
		}
		client := transport.New(transport.Config{
			Timeout: c.Cfg.Save.Timeout,
			Logger:  c.Logger,
		})
		persister, validator = client, client
		sess.Endpoint = withRecord(c.Cfg.Endpoint, sess.Record)
	}

	bus := events.New()
	if c.Cfg.Validation.Enabled {
		ch, err := validation.New(validation.Config{
			Endpoint:  sess.Endpoint,
			Validator: validator,
			Registry:  reg,
			Debounce:  c.Cfg.Validation.Debounce,
			Bus:       bus,
			Logger:    c.Logger,
			Context:   ctx,
		})
		if err != nil {
			sess.release()
			return nil, err
		}
		sess.Validation = ch
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Endpoint:        sess.Endpoint,
		Persister:       persister,
		Strategies:      c.NewResolver(reg),
		Validation:      sess.Validation,
		Bus:             bus,
		Logger:          c.Logger,
		OnSuccess:       opts.OnSuccess,
		OnError:         opts.OnError,
		BulkConcurrency: c.Cfg.Save.BulkConcurrency,
		Context:         ctx,
	})
	if err != nil {
		sess.release()
		return nil, err
	}
	sess.Orchestrator = orch
	return sess, nil
}

func (s *Session) release() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// withRecord points endpoint at record id, replacing the ID of a
// ".../records/{id}" endpoint or appending "/records/{id}" to a base URL.
func withRecord(endpoint, id string) string {
	if id == "" {
		return endpoint
	}
	if i := strings.LastIndex(endpoint, "/records/"); i >= 0 {
		return endpoint[:i] + "/records/" + id
	}
	return recordsvc.Endpoint(endpoint, id)
}

// mergeFields appends extra descriptors, replacing configured ones with the same key.
func mergeFields(base, extra []core.FieldDescriptor) []core.FieldDescriptor {
	out := make([]core.FieldDescriptor, 0, len(base)+len(extra))
	index := make(map[string]int, len(base)+len(extra))
	for _, f := range append(append([]core.FieldDescriptor{}, base...), extra...) {
		if i, ok := index[f.Key()]; ok {
			out[i] = f
			continue
		}
		index[f.Key()] = len(out)
		out = append(out, f)
	}
	return out
}
