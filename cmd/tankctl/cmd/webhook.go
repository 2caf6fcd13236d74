package cmd

import (
	stdcontext "context"
	"fmt"
	"io"
	"strings"

	"github.com/shawn/tankwatch/internal/cli/api"
	"github.com/shawn/tankwatch/internal/cli/output"
	"github.com/shawn/tankwatch/internal/webhook"
	"github.com/spf13/cobra"
)

func newWebhookCmd(client api.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "webhook",
		Aliases: []string{"webhooks", "wh"},
		Short:   "Manage alert webhooks",
		Long: `Register, inspect and toggle the webhooks that receive inspection alerts.

Integrations: generic (raw tank list), slingflow (recipient contacts),
sophia_ai (conversational context).`,
	}

	cmd.AddCommand(newWebhookCreateCmd(client))
	cmd.AddCommand(newWebhookListCmd(client))
	cmd.AddCommand(newWebhookGetCmd(client))
	cmd.AddCommand(newWebhookUpdateCmd(client))
	cmd.AddCommand(newWebhookToggleCmd(client, false))
	cmd.AddCommand(newWebhookToggleCmd(client, true))

	return cmd
}

func newWebhookCreateCmd(client api.Client) *cobra.Command {
	var (
		in       webhook.Input
		inactive bool
		integ    string
		event    string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a new webhook",
		Example: `  tankctl webhook create frota --url https://hooks.example.com/tanks
  tankctl webhook create avisos --integration slingflow --contact c-1 --contact c-2
  tankctl webhook create sophia --integration sophia_ai --url https://sophia.example.com/hook`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)
			in.Name = args[0]
			in.Integration = webhook.Integration(integ)
			in.EventType = webhook.EventType(event)
			if inactive {
				active := false
				in.Active = &active
			}

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			rec, err := client.CreateWebhook(ctx, in)
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to create webhook: %v", err))
				return err
			}

			if outputFormat != "json" {
				styler.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Webhook '%s' registered", rec.Name))
			}
			return printRegistration(cmd.OutOrStdout(), styler, rec)
		},
	}

	cmd.Flags().StringVar(&in.URL, "url", "", "Delivery URL")
	cmd.Flags().StringVar(&integ, "integration", string(webhook.IntegrationGeneric), "Integration: "+integrationNames())
	cmd.Flags().StringVar(&event, "event", string(webhook.EventInspectionAlert), "Event type")
	cmd.Flags().StringSliceVar(&in.ContactIDs, "contact", nil, "Recipient contact ID (repeatable, slingflow)")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Register without activating")

	return cmd
}

func newWebhookListCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			hooks, err := client.ListWebhooks(ctx)
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to list webhooks: %v", err))
				return err
			}

			return output.Render(cmd.OutOrStdout(), outputFormat, hooks, func(w io.Writer) error {
				if len(hooks) == 0 {
					styler.FprintInfo(w, "No webhooks registered")
					return nil
				}
				tbl := output.NewTable("ID", "NAME", "INTEGRATION", "EVENT", "STATUS", "TARGET")
				for _, h := range hooks {
					tbl.Row(h.ID, h.Name, string(h.Integration), string(h.EventType), styler.Active(h.Active), target(h))
				}
				return tbl.Write(w)
			})
		},
	}
}

func newWebhookGetCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <webhook-id>",
		Short: "Show one webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			rec, err := client.GetWebhook(ctx, args[0])
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to get webhook: %v", err))
				return err
			}
			return printRegistration(cmd.OutOrStdout(), styler, rec)
		},
	}
}

func newWebhookUpdateCmd(client api.Client) *cobra.Command {
	var (
		name     string
		url      string
		integ    string
		event    string
		contacts []string
	)

	cmd := &cobra.Command{
		Use:   "update <webhook-id>",
		Short: "Change fields of a webhook",
		Long: `Change fields of a webhook. Only flags that are given are sent;
the merged registration is validated again on the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)

			var p webhook.Patch
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("url") {
				p.URL = &url
			}
			if flags.Changed("integration") {
				i := webhook.Integration(integ)
				p.Integration = &i
			}
			if flags.Changed("event") {
				e := webhook.EventType(event)
				p.EventType = &e
			}
			if flags.Changed("contact") {
				p.ContactIDs = &contacts
			}
			if p == (webhook.Patch{}) {
				return fmt.Errorf("nothing to update: pass at least one of --name, --url, --integration, --event, --contact")
			}

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			rec, err := client.UpdateWebhook(ctx, args[0], p)
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to update webhook: %v", err))
				return err
			}
			if outputFormat != "json" {
				styler.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Webhook '%s' updated", rec.ID))
			}
			return printRegistration(cmd.OutOrStdout(), styler, rec)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&url, "url", "", "New delivery URL (empty clears it)")
	cmd.Flags().StringVar(&integ, "integration", "", "New integration: "+integrationNames())
	cmd.Flags().StringVar(&event, "event", "", "New event type")
	cmd.Flags().StringSliceVar(&contacts, "contact", nil, "Replace recipient contact IDs")

	return cmd
}

func newWebhookToggleCmd(client api.Client, enable bool) *cobra.Command {
	use, short, verb := "disable", "Stop sending alerts to a webhook", "disabled"
	call := client.DisableWebhook
	if enable {
		use, short, verb = "enable", "Resume sending alerts to a webhook", "enabled"
		call = client.EnableWebhook
	}

	return &cobra.Command{
		Use:   use + " <webhook-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.ForWriter(cmd.OutOrStdout(), noColor)

			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), requestTimeout)
			defer cancel()

			rec, err := call(ctx, args[0])
			if err != nil {
				styler.FprintError(cmd.ErrOrStderr(), fmt.Sprintf("Failed to %s webhook: %v", use, err))
				return err
			}
			if outputFormat == "json" {
				return printRegistration(cmd.OutOrStdout(), styler, rec)
			}
			styler.FprintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Webhook '%s' %s", rec.ID, verb))
			return nil
		},
	}
}

func printRegistration(w io.Writer, styler *output.Styler, rec *webhook.Registration) error {
	return output.Render(w, outputFormat, rec, func(w io.Writer) error {
		fmt.Fprintf(w, "ID:          %s\n", rec.ID)
		fmt.Fprintf(w, "Name:        %s\n", rec.Name)
		fmt.Fprintf(w, "Integration: %s\n", rec.Integration)
		fmt.Fprintf(w, "Event:       %s\n", rec.EventType)
		fmt.Fprintf(w, "Status:      %s\n", styler.Active(rec.Active))
		if rec.URL != "" {
			fmt.Fprintf(w, "URL:         %s\n", rec.URL)
		}
		if len(rec.ContactIDs) > 0 {
			fmt.Fprintf(w, "Contacts:    %s\n", strings.Join(rec.ContactIDs, ", "))
		}
		if !rec.CreatedAt.IsZero() {
			fmt.Fprintf(w, "Created:     %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

// target is the URL, or the contact list for slingflow hooks that rely on
// the configured endpoint.
func target(h webhook.Registration) string {
	if h.URL != "" {
		return h.URL
	}
	if len(h.ContactIDs) > 0 {
		return "contacts: " + strings.Join(h.ContactIDs, ",")
	}
	return "-"
}

func integrationNames() string {
	all := webhook.Integrations()
	names := make([]string, len(all))
	for i, in := range all {
		names[i] = string(in)
	}
	return strings.Join(names, "|")
}
