// Package invoke provides commands that run protocol operations locally.
package invoke

import (
	"context"
	"fmt"
	"io"

	"github.com/andrei-cloud/go_protoop/internal/cli"
	"github.com/andrei-cloud/go_protoop/internal/config"
	"github.com/andrei-cloud/go_protoop/internal/plugins"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/spf13/cobra"
)

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke OPCODE [KIND:VALUE...]",
		Short: "Invoke a protocol operation on a sandboxed connection",
		Long: `Load the plugin directory, open one sandboxed connection and invoke OPCODE
with the given inputs. Inputs are int:N, uint:N, bool:B, enum:N or ptr:HEX;
a bare number is an int.`,
		Example: `  go_protoop invoke update_ack_delay ptr:nil ptr:nil 20000 bool:false -o 1
  go_protoop invoke 0x2 enum:1`,
		Args: cobra.MinimumNArgs(1),
		RunE: runInvoke,
	}

	cmd.Flags().IntP("outputs", "o", 0, "number of outputs to collect")

	return cmd
}

// NewOpsCommand creates the ops command.
func NewOpsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List known protocol operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.PrintOpcodes(cmd.OutOrStdout())
		},
	}
}

func runInvoke(cmd *cobra.Command, args []string) error {
	op, err := protoop.ParseOpcode(args[0])
	if err != nil {
		return err
	}
	inputs, err := cli.ParseValues(args[1:])
	if err != nil {
		return err
	}
	outputs, err := cmd.Flags().GetInt("outputs")
	if err != nil {
		return err
	}
	if outputs < 0 || outputs > protoop.MaxArgs {
		return fmt.Errorf("outputs must be between 0 and %d", protoop.MaxArgs)
	}

	cfg := config.Get()
	pm, err := plugins.NewManager(cmd.Context(), plugins.Config{Memory: cfg.Plugin.Memory})
	if err != nil {
		return fmt.Errorf("failed to create plugin manager: %w", err)
	}
	defer func() {
		_ = pm.Close()
	}()

	if err := pm.LoadAll(cfg.Plugin.Path); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}

	return run(cmd.Context(), cmd.OutOrStdout(), pm, op, inputs, outputs)
}

func run(
	ctx context.Context,
	w io.Writer,
	pm *plugins.Manager,
	op protoop.Opcode,
	inputs []protoop.Value,
	nouts int,
) error {
	c, err := pm.NewConn(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Close()
	}()

	outs := make([]protoop.Value, nouts)
	res, err := c.Invoke(op, inputs, outs)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "%s -> %s\n", op, cli.FormatValue(res))
	for i, v := range outs {
		_, _ = fmt.Fprintf(w, "  output[%d] = %s\n", i, cli.FormatValue(v))
	}

	return nil
}
