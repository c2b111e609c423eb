package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leapstack-labs/fieldsync/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <record-id>",
		Short: "Show the change history of a stored record",
		Long:  `Show the field changes of a record in the configured store, oldest first.`,
		Example: `  # All changes of a record
  fieldsync history 6f1c0e4a-...

  # The last five changes of one field
  fieldsync history 6f1c0e4a-... --field status --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, _ := cmd.Flags().GetString("field")
			limit, _ := cmd.Flags().GetInt("limit")
			return runHistory(cmd, args[0], field, limit)
		},
	}
	cmd.Flags().String("field", "", "Only show changes of this field key")
	cmd.Flags().Int("limit", 0, "Maximum number of changes (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, recordID, field string, limit int) error {
	c := NewCommandContext(cmd)
	ctx := cmd.Context()

	st, err := c.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	svc, err := c.NewService(st, c.NewRegistry(), c.Cfg.Fields)
	if err != nil {
		return err
	}
	changes, err := svc.History(ctx, recordID, field, limit)
	if err != nil {
		return err
	}

	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(changes)
	}

	r.Header(1, fmt.Sprintf("History of %s (%d changes)", recordID, len(changes)))
	rows := make([][]string, 0, len(changes))
	for _, ch := range changes {
		rows = append(rows, []string{ch.ChangedAt.Format(time.RFC3339), ch.FieldKey, formatValue(ch.Value)})
	}
	r.Table([]string{"Changed At", "Field", "Value"}, rows)
	return nil
}

// formatValue renders a stored value compactly for a table cell.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
