package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/watchtower/internal/db"
	"github.com/zulandar/watchtower/internal/reporting"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Query recorded incidents",
	}

	cmd.AddCommand(newReportIncidentsCmd())
	return cmd
}

func newReportIncidentsCmd() *cobra.Command {
	var (
		configPath string
		opts       reporting.ListOpts
		outcome    string
		since      string
		transcript bool
	)

	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "List incidents, newest first",
	}
	explicit := addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (resolved, escalated, abandoned)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "filter by guard phone number")
	cmd.Flags().StringVar(&since, "since", "", "only incidents ended after this RFC 3339 time or duration ago (e.g. 24h)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum incidents to show")
	cmd.Flags().BoolVar(&transcript, "transcript", false, "print completed steps and transcripts")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		switch reporting.Outcome(outcome) {
		case "", reporting.OutcomeResolved, reporting.OutcomeEscalated, reporting.OutcomeAbandoned:
			opts.Outcome = reporting.Outcome(outcome)
		default:
			return fmt.Errorf("--outcome must be resolved, escalated or abandoned")
		}
		if since != "" {
			t, err := reporting.ParseSince(since, time.Now())
			if err != nil {
				return err
			}
			opts.Since = t
		}
		return runReportIncidents(cmd, configPath, explicit(), opts, transcript)
	}
	return cmd
}

func runReportIncidents(cmd *cobra.Command, configPath string, explicit bool, opts reporting.ListOpts, transcript bool) error {
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}
	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	store, err := reporting.NewStore(gormDB)
	if err != nil {
		return err
	}
	incidents, err := store.ListIncidents(cmd.Context(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(incidents) == 0 {
		fmt.Fprintln(out, "No incidents found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENDED\tOUTCOME\tPHONE\tISSUE\tSTEP\tREASON")
	for _, inc := range incidents {
		step := "-"
		if inc.TotalSteps > 0 {
			step = fmt.Sprintf("%d/%d", inc.Step, inc.TotalSteps)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inc.EndedAt.Local().Format("2006-01-02 15:04"), inc.Outcome, inc.Phone, inc.Issue, step, truncate(inc.Reason, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if transcript {
		for _, inc := range incidents {
			fmt.Fprintf(out, "\n=== %s %s (%s) ===\n", inc.Phone, inc.Issue, inc.Outcome)
			for i, s := range reporting.CompletedSteps(inc) {
				fmt.Fprintf(out, "  ✓ %d. %s\n", i+1, s)
			}
			if inc.Transcript != "" {
				fmt.Fprintln(out, indent(inc.Transcript, "  "))
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
