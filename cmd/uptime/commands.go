package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fuomag9/uptimed/internal/billing"
	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/models"
)

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func formatMs(ms *float64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%.0fms", *ms)
}

func formatTime(ts *models.Timestamp) string {
	if ts == nil {
		return "-"
	}
	return models.FormatTime(ts.Time)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	var (
		spec    engine.MonitorSpec
		retries int
	)

	cmd := &cobra.Command{
		Use:   "add <name> <type> <target>",
		Short: "Add a monitor (types: http, tcp, ping, dns, push)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Name, spec.Kind, spec.Target = args[0], args[1], args[2]
			if cmd.Flags().Changed("retries") {
				spec.Retries = &retries
			}
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.engine.AddMonitor(ctx, spec)
				if err != nil {
					return errors.Wrap(err, "failed to add monitor")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitor added: %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&spec.IntervalS, "interval", 0, "Check interval in seconds (default: configured default, at least the plan minimum)")
	cmd.Flags().IntVar(&spec.TimeoutS, "timeout", 0, "Probe timeout in seconds")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries before alerting (advisory, default: configured default)")
	cmd.Flags().StringSliceVar(&spec.Tags, "tags", nil, "Comma separated tags")

	return cmd
}

func newCheckAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-all",
		Short: "Run all checks once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				results, checkErr := a.engine.RunAllChecks(ctx)

				ids := make([]string, 0, len(results))
				for id := range results {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, mark(results[id]))
				}

				if _, err := a.dispatcher.Sweep(ctx); err != nil {
					a.log.Sugar().Warnw("notification sweep failed", "error", err)
				}
				return errors.Wrap(checkErr, "some checks failed")
			})
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of every monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				monitors, err := a.engine.ListMonitors(ctx)
				if err != nil {
					return errors.Wrap(err, "failed to list monitors")
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), monitors)
				}
				for _, m := range monitors {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s (%s)\n", m.Name, m.ID, m.Status, formatMs(m.ResponseTimeMs))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <id>",
		Short: "Run one monitor's check now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				ok, err := a.engine.RunCheck(ctx, args[0])
				if err != nil {
					return errors.Wrapf(err, "failed to check %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], mark(ok))
				if _, err := a.dispatcher.Sweep(ctx); err != nil {
					a.log.Sugar().Warnw("notification sweep failed", "error", err)
				}
				return nil
			})
		},
	}
}

func newPushCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <id>",
		Short: "Record a heartbeat for a push monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				recorded, err := a.engine.RecordPush(ctx, args[0])
				if err != nil {
					return errors.Wrapf(err, "failed to record push for %s", args[0])
				}
				if recorded {
					fmt.Fprintf(cmd.OutOrStdout(), "Push recorded: %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Push ignored (monitor paused or in maintenance): %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func newAdminStatusCommand(opts *rootOptions, use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.engine.SetMonitorStatus(ctx, args[0], status); err != nil {
					return errors.Wrapf(err, "failed to %s %s", use, args[0])
				}
				m, err := a.engine.GetMonitor(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.ID, m.Status)
				return nil
			})
		},
	}
}

func newIncidentsCommand(opts *rootOptions) *cobra.Command {
	var (
		monitorID string
		openOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "List incidents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				incidents, err := a.engine.GetIncidents(ctx, monitorID, openOnly)
				if err != nil {
					return errors.Wrap(err, "failed to list incidents")
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tMONITOR\tSTARTED\tRESOLVED\tDURATION\tCAUSE")
				for _, inc := range incidents {
					duration := "-"
					if inc.DurationS != nil {
						duration = fmt.Sprintf("%ds", *inc.DurationS)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						inc.ID, inc.MonitorID, models.FormatTime(inc.StartedAt.Time),
						formatTime(inc.ResolvedAt), duration, inc.Cause)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&monitorID, "monitor", "", "Only incidents of this monitor")
	cmd.Flags().BoolVar(&openOnly, "open", false, "Only open incidents")
	return cmd
}

func newResolveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <incident-id>",
		Short: "Resolve an open incident",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				if _, err := a.engine.GetIncident(ctx, args[0]); err != nil {
					return errors.Wrapf(err, "failed to resolve %s", args[0])
				}
				ok, err := a.engine.ResolveIncident(ctx, args[0])
				if err != nil {
					return errors.Wrapf(err, "failed to resolve %s", args[0])
				}
				if ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Incident resolved: %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Incident already resolved: %s\n", args[0])
				}
				return nil
			})
		},
	}
}

func newUptimeCommand(opts *rootOptions) *cobra.Command {
	var days, hours int

	cmd := &cobra.Command{
		Use:   "uptime <id>",
		Short: "Show uptime percentage and average response time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				pct, err := a.engine.GetUptimePercent(ctx, args[0], days)
				if err != nil {
					return errors.Wrapf(err, "failed to compute uptime for %s", args[0])
				}
				avg, err := a.engine.GetResponseTimeAvg(ctx, args[0], hours)
				if err != nil {
					return errors.Wrapf(err, "failed to compute response time for %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uptime (%dd): %.2f%%\n", days, pct)
				fmt.Fprintf(cmd.OutOrStdout(), "Avg response time (%dh): %.1fms\n", hours, avg)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", engine.DefaultUptimeDays, "Uptime window in days")
	cmd.Flags().IntVar(&hours, "hours", engine.DefaultLatencyHours, "Latency window in hours")
	return cmd
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show recent heartbeats, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				heartbeats, err := a.engine.GetHeartbeatHistory(ctx, args[0], limit)
				if err != nil {
					return errors.Wrapf(err, "failed to load history for %s", args[0])
				}
				for _, hb := range heartbeats {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
						models.FormatTime(hb.Timestamp.Time), hb.Status, formatMs(hb.ResponseTimeMs))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", engine.DefaultHistoryLimit, "Number of heartbeats")
	return cmd
}

func newPageCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Manage status pages",
	}
	cmd.AddCommand(
		newPageCreateCommand(opts),
		newPageApplyCommand(opts),
		newPageShowCommand(opts),
		newPageListCommand(opts),
	)
	return cmd
}

func newPageCreateCommand(opts *rootOptions) *cobra.Command {
	var spec engine.StatusPageSpec

	cmd := &cobra.Command{
		Use:   "create <name> <slug> [monitor-id...]",
		Short: "Create a status page",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Name, spec.Slug, spec.MonitorIDs = args[0], args[1], args[2:]
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				id, err := a.engine.CreateStatusPage(ctx, spec)
				if err != nil {
					return errors.Wrap(err, "failed to create status page")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Status page created: %s (%s)\n", spec.Slug, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&spec.Description, "description", "", "Page description")
	cmd.Flags().StringVar(&spec.LogoURL, "logo", "", "Logo URL")
	cmd.Flags().StringVar(&spec.Theme, "theme", models.ThemeLight, "Theme: light or dark")
	return cmd
}

// readPageSpec reads a status page definition from a YAML file.
func readPageSpec(path string) (engine.StatusPageSpec, error) {
	var spec engine.StatusPageSpec
	buf, err := os.ReadFile(path)
	if err != nil {
		return spec, errors.Wrap(err, "failed to read status page file")
	}
	if err := yaml.Unmarshal(buf, &spec); err != nil {
		return spec, errors.Wrap(err, "failed to parse status page file")
	}
	return spec, nil
}

func newPageApplyCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file.yaml>",
		Short: "Create or update a status page from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readPageSpec(args[0])
			if err != nil {
				return err
			}
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				id, created, err := a.engine.ApplyStatusPage(ctx, spec)
				if err != nil {
					return errors.Wrapf(err, "failed to apply status page %s", spec.Slug)
				}
				verb := "updated"
				if created {
					verb = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Status page %s: %s (%s)\n", verb, spec.Slug, id)
				return nil
			})
		},
	}
}

func newPageShowCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show a status page with live monitor state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				page, err := a.engine.GetStatusPage(ctx, args[0])
				if err != nil {
					return errors.Wrapf(err, "failed to load status page %s", args[0])
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), page)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (/%s)\n", page.Name, page.Slug)
				if page.Description != "" {
					fmt.Fprintln(out, page.Description)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "MONITOR\tSTATUS\tRESPONSE\t24H\t30D")
				for _, m := range page.Monitors {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f%%\t%.2f%%\n",
						m.Name, m.Status, formatMs(m.ResponseTimeMs), m.Uptime24h, m.Uptime30d)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newPageListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List status pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app) error {
				pages, err := a.engine.ListStatusPages(ctx)
				if err != nil {
					return errors.Wrap(err, "failed to list status pages")
				}
				for _, p := range pages {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (/%s): %d monitors\n", p.Name, p.Slug, len(p.MonitorIDs))
				}
				return nil
			})
		},
	}
}

func newPlansCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the built-in plans and their quotas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := func(n int) string {
				if n == billing.Unlimited {
					return "unlimited"
				}
				return fmt.Sprint(n)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tMONITORS\tMIN INTERVAL\tSTATUS PAGES")
			for _, p := range billing.Plans {
				fmt.Fprintf(tw, "%s\t%s\t%ds\t%s\n",
					p.Name, limit(p.Quota.MaxMonitors), p.Quota.MinIntervalS, limit(p.Quota.MaxStatusPages))
			}
			return tw.Flush()
		},
	}
}
