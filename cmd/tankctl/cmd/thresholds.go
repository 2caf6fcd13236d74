package cmd

import (
	stdcontext "context"
	"fmt"
	"io"

	"github.com/shawn/tankwatch/internal/cli/api"
	"github.com/shawn/tankwatch/internal/cli/output"
	"github.com/shawn/tankwatch/internal/threshold"
	"github.com/spf13/cobra"
)

func newThresholdsCmd(client api.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Show or change the fill thresholds",
		Long: `Fill thresholds split tanks into crítico (below the critical percent),
atenção (below the attention percent) and operacional.`,
	}
	cmd.AddCommand(newThresholdsGetCmd(client))
	cmd.AddCommand(newThresholdsSetCmd(client))
	return cmd
}

func newThresholdsGetCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			cfg, err := client.GetThresholds(ctx)
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to get thresholds: %v", err))
				return err
			}
			return printThresholds(cmd.OutOrStdout(), cfg)
		},
	}
}

func newThresholdsSetCmd(client api.Client) *cobra.Command {
	var critical, attention float64

	cmd := &cobra.Command{
		Use:     "set",
		Short:   "Change the thresholds",
		Example: "  tankctl thresholds set --critical 15 --attention 40",
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)
			flags := cmd.Flags()
			if !flags.Changed("critical") && !flags.Changed("attention") {
				return fmt.Errorf("pass --critical, --attention or both")
			}

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			next := threshold.Config{CriticalPercent: critical, AttentionPercent: attention}
			if !flags.Changed("critical") || !flags.Changed("attention") {
				cur, err := client.GetThresholds(ctx)
				if err != nil {
					styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to get thresholds: %v", err))
					return err
				}
				if !flags.Changed("critical") {
					next.CriticalPercent = cur.CriticalPercent
				}
				if !flags.Changed("attention") {
					next.AttentionPercent = cur.AttentionPercent
				}
			}
			if err := next.Validate(); err != nil {
				styler.FprintError(cmd.ErrOrStderr(), err.Error())
				return err
			}

			cfg, err := client.SetThresholds(ctx, next)
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to set thresholds: %v", err))
				return err
			}
			if outputFormat != "json" {
				styler.FprintSuccess(cmd.OutOrStdout(), "Thresholds updated")
			}
			return printThresholds(cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().Float64Var(&critical, "critical", 0, "Critical fill percent")
	cmd.Flags().Float64Var(&attention, "attention", 0, "Attention fill percent")
	return cmd
}

func printThresholds(w io.Writer, cfg *threshold.Config) error {
	return output.Render(w, outputFormat, cfg, func(w io.Writer) error {
		tbl := output.NewTable("STATUS", "FILL")
		tbl.Row(string(threshold.StatusCritical), fmt.Sprintf("< %g%%", cfg.CriticalPercent))
		tbl.Row(string(threshold.StatusAttention), fmt.Sprintf("< %g%%", cfg.AttentionPercent))
		tbl.Row(string(threshold.StatusOperational), fmt.Sprintf(">= %g%%", cfg.AttentionPercent))
		return tbl.Write(w)
	})
}
