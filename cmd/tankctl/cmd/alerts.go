package cmd

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shawn/tankwatch/internal/cli/api"
	"github.com/shawn/tankwatch/internal/cli/output"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/spf13/cobra"
)

func newAlertsCmd(client api.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Send inspection alerts",
	}
	cmd.AddCommand(newAlertsSendCmd(client))
	return cmd
}

func newAlertsSendCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "send <file|->",
		Short: "Dispatch an inspection batch to every active webhook",
		Long: `Read a JSON array of tank readings and post it to the server, which
forwards the tanks with water to every active inspection webhook.

Use "-" to read from stdin. The command fails when every delivery failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)

			readings, err := readBatch(cmd, args[0])
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), err.Error())
				return err
			}
			wet := len(tank.WithWater(readings))
			if outputFormat != "json" {
				styler.FprintInfo(cmd.OutOrStdout(), fmt.Sprintf("Sending %d reading(s), %d with water...", len(readings), wet))
			}

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			rep, err := client.SendInspectionAlerts(ctx, readings)
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to send alerts: %v", err))
				return err
			}

			err = output.Render(cmd.OutOrStdout(), outputFormat, rep, func(w io.Writer) error {
				switch {
				case rep.OverallSuccess:
					styler.FprintSuccess(w, rep.Message)
				case len(rep.Results) == 0:
					styler.FprintWarn(w, rep.Message)
					return nil
				default:
					styler.FprintError(w, rep.Message)
				}
				tbl := output.NewTable("WEBHOOK", "NAME", "INTEGRATION", "RESULT", "HTTP", "DETAIL")
				for _, r := range rep.Results {
					result, code := "ok", "-"
					if !r.Success {
						result = "failed"
					}
					if r.StatusCode != 0 {
						code = strconv.Itoa(r.StatusCode)
					}
					tbl.Row(r.WebhookID, r.Name, string(r.Integration), result, code, r.ErrorMessage)
				}
				return tbl.Write(w)
			})
			if err != nil {
				return err
			}
			if !rep.OverallSuccess && len(rep.Results) > 0 {
				return errors.New(rep.Message)
			}
			return nil
		},
	}
}

func readBatch(cmd *cobra.Command, path string) ([]tank.Reading, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open batch: %w", err)
		}
		defer f.Close()
		r = f
	}
	readings, err := tank.DecodeBatch(r)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	return readings, nil
}
