package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"relaychat-backend/internal/validate"
	"relaychat-backend/internal/webhook"
)

func (a *app) webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Show, edit and test your webhook settings",
	}
	cmd.AddCommand(a.webhookShowCmd(), a.webhookSetCmd(), a.webhookTestCmd(), a.webhookResetCmd())
	return cmd
}

func (a *app) webhookShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the webhook URL and variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			settings, err := c.WebhookSettings(ctx)
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprint(a.out, RenderSettings(settings))
			status, err := c.WebhookTestStatus(ctx)
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprint(a.out, RenderTestStatus(*status))
			return nil
		},
	}
}

func (a *app) webhookSetCmd() *cobra.Command {
	var (
		url     string
		vars    []string
		remove  []string
		replace bool
		noSave  bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Edit the webhook URL and variables, then save",
		Example: `  chatctl webhook set --url https://example.com/hook
  chatctl webhook set --var apiKey=secret --var model=fast
  chatctl webhook set --replace --url https://example.com/hook --var apiKey=secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := parseVars(vars)
			if err != nil {
				return err
			}
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if replace {
				settings, err := c.ReplaceWebhookSettings(ctx, url, rows, !noSave)
				if err != nil {
					return a.apiError(err)
				}
				fmt.Fprint(a.out, RenderSettings(settings))
				return nil
			}

			if cmd.Flags().Changed("url") {
				if _, err := c.UpdateWebhookURL(ctx, url); err != nil {
					return a.apiError(err)
				}
			}
			for _, row := range rows {
				if _, err := c.SetVariable(ctx, row.Key, row.Value); err != nil {
					return a.apiError(err)
				}
			}
			for _, key := range remove {
				if _, err := c.RemoveVariable(ctx, key); err != nil {
					return a.apiError(err)
				}
			}

			settings, err := c.WebhookSettings(ctx)
			if err != nil {
				return a.apiError(err)
			}
			if !noSave && settings.Dirty {
				if settings, err = c.SaveWebhookSettings(ctx); err != nil {
					return a.apiError(err)
				}
				fmt.Fprintln(a.out, successStyle.Render("Settings saved"))
			}
			fmt.Fprint(a.out, RenderSettings(settings))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Webhook URL (http or https)")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Variable as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&remove, "unset", nil, "Variable name to remove (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the URL and all variables with the given ones")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Keep the edits as an unsaved draft")
	return cmd
}

func (a *app) webhookTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a PING to the webhook and wait for the verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			status, err := c.StartWebhookTest(ctx, nil, false)
			if err != nil {
				return a.apiError(err)
			}
			last := ""
			for status.State == webhook.TestTesting {
				if label := TestButtonLabel(*status); label != last {
					fmt.Fprintf(a.out, "\r%s", warnStyle.Render(label))
					last = label
				}
				select {
				case <-ctx.Done():
					fmt.Fprintln(a.out)
					return ctx.Err()
				case <-time.After(a.pollEvery):
				}
				if status, err = c.WebhookTestStatus(ctx); err != nil {
					return a.apiError(err)
				}
			}
			if last != "" {
				fmt.Fprintln(a.out)
			}
			fmt.Fprint(a.out, RenderTestStatus(*status))
			if status.State != webhook.TestSuccess {
				return fmt.Errorf("webhook test %s", strings.ReplaceAll(string(status.State), "_", " "))
			}
			return nil
		},
	}
}

func (a *app) webhookResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the last test result",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.authedClient()
			if err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			status, err := c.ResetWebhookTest(ctx)
			if err != nil {
				return a.apiError(err)
			}
			fmt.Fprint(a.out, RenderTestStatus(*status))
			return nil
		},
	}
}

// parseVars turns key=value flags into form rows, validated the same way
// the settings form is.
func parseVars(vars []string) ([]validate.VariableRow, error) {
	rows := make([]validate.VariableRow, 0, len(vars))
	for _, kv := range vars {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid variable %q (expected key=value)", kv)
		}
		rows = append(rows, validate.VariableRow{Key: strings.TrimSpace(key), Value: value})
	}
	if _, msg := validate.VariableRows(rows); msg != "" {
		return nil, fmt.Errorf("%s", msg)
	}
	kept := rows[:0]
	for _, row := range rows {
		if row.Key != "" {
			kept = append(kept, row)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })
	return kept, nil
}
