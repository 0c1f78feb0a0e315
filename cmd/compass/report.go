package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/compass/internal/config"
	"github.com/hyperengineering/compass/internal/types"
	"github.com/hyperengineering/compass/internal/validation"
)

var (
	reportJSONOutput bool
	reportClientID   string
	reportEngagement string
	reportFrom       string
	reportTo         string
	reportPeriod     int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and inspect weekly reports",
	Long:  "Generate, show, and list weekly narrative reports without running the server.",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate (or regenerate) the report for a client's current period",
	Args:  cobra.NoArgs,
	RunE:  runReportGenerate,
}

var reportShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one stored report",
	Args:  cobra.NoArgs,
	RunE:  runReportShow,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored reports of an engagement",
	Args:  cobra.NoArgs,
	RunE:  runReportList,
}

func init() {
	reportCmd.PersistentFlags().BoolVar(&reportJSONOutput, "json", false, "Output in JSON format")

	reportGenerateCmd.Flags().StringVar(&reportClientID, "client", "", "Client ID (required)")
	reportGenerateCmd.Flags().StringVar(&reportEngagement, "engagement", "", "Engagement ID (default: the client's active engagement)")
	reportGenerateCmd.Flags().StringVar(&reportFrom, "from", "", "Window start (YYYY-MM-DD or RFC 3339)")
	reportGenerateCmd.Flags().StringVar(&reportTo, "to", "", "Window end (YYYY-MM-DD or RFC 3339, default now)")
	reportGenerateCmd.MarkFlagRequired("client")

	for _, c := range []*cobra.Command{reportShowCmd, reportListCmd} {
		c.Flags().StringVar(&reportEngagement, "engagement", "", "Engagement ID (required)")
		c.MarkFlagRequired("engagement")
	}
	reportShowCmd.Flags().IntVar(&reportPeriod, "period", 0, "Period number (required)")
	reportShowCmd.MarkFlagRequired("period")

	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportListCmd)
}

// openCLIPipeline loads config and opens the pipeline.
func openCLIPipeline() (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openPipeline(cfg)
}

func runReportGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	req := types.ReportRequest{ClientID: reportClientID, EngagementID: reportEngagement}
	var err error
	if req.WindowStart, err = parseTimeFlag("from", reportFrom); err != nil {
		return err
	}
	if req.WindowEnd, err = parseTimeFlag("to", reportTo); err != nil {
		return err
	}
	if errs := validation.ValidateReportRequest(req); len(errs) > 0 {
		return validationFailure(errs)
	}

	p, err := openCLIPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	gen, err := p.generator(ctx)
	if err != nil {
		return err
	}
	svc, err := p.reportService(gen)
	if err != nil {
		return err
	}

	resp, err := svc.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if reportJSONOutput {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	verb := "Updated"
	if resp.Created {
		verb = "Created"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s report %s (period %d, %s to %s)\n\n", verb, resp.ReportID, resp.PeriodNumber,
		resp.Window.Start.Format(time.RFC3339), resp.Window.End.Format(time.RFC3339))
	printViews(out, resp.ClientView, resp.CoachView)
	return nil
}

func runReportShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openCLIPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	r, err := p.store.GetWeeklyReport(ctx, reportEngagement, reportPeriod)
	if err != nil {
		return fmt.Errorf("show report: %w", err)
	}

	if reportJSONOutput {
		return printJSON(cmd.OutOrStdout(), r)
	}

	out := cmd.OutOrStdout()
	w := newTabWriter(out)
	fmt.Fprintf(w, "ID:\t%s\n", r.ID)
	fmt.Fprintf(w, "Engagement:\t%s\n", r.EngagementID)
	fmt.Fprintf(w, "Period:\t%d\n", r.PeriodNumber)
	fmt.Fprintf(w, "Phase:\t%s\n", r.Phase)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	fmt.Fprintf(w, "Updated:\t%s\n", r.UpdatedAt.Format("2006-01-02 15:04"))
	w.Flush()
	fmt.Fprintln(out)
	printViews(out, r.ClientView, r.CoachView)
	return nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := openCLIPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	reports, err := p.store.ListWeeklyReports(ctx, reportEngagement)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	if reportJSONOutput {
		if reports == nil {
			reports = []types.WeeklyReport{}
		}
		return printJSON(cmd.OutOrStdout(), types.ReportListResponse{Reports: reports, Total: len(reports)})
	}

	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reports found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "PERIOD\tSTATUS\tPHASE\tUPDATED\tHEADLINE")
	for _, r := range reports {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.PeriodNumber,
			r.Status,
			r.Phase,
			r.UpdatedAt.Format("2006-01-02 15:04"),
			r.ClientView.Headline,
		)
	}
	w.Flush()

	return nil
}

func printViews(w io.Writer, cv types.ClientView, co types.CoachView) {
	fmt.Fprintln(w, "CLIENT VIEW")
	fmt.Fprintf(w, "  %s\n", cv.Headline)
	printList(w, "Themes", cv.Themes)
	printList(w, "Wins", cv.Wins)
	printList(w, "Reflection prompts", cv.ReflectionPrompts)
	if cv.Encouragement != "" {
		fmt.Fprintf(w, "  Encouragement: %s\n", cv.Encouragement)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "COACH VIEW")
	fmt.Fprintf(w, "  %s\n", co.Summary)
	printList(w, "Patterns", co.Patterns)
	printList(w, "Risks", co.Risks)
	printList(w, "Suggested focus", co.SuggestedFocus)
	printList(w, "Next session questions", co.NextSessionQuestions)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s:\n", label)
	for _, item := range items {
		fmt.Fprintf(w, "    - %s\n", item)
	}
}

// parseTimeFlag accepts a date or an RFC 3339 timestamp. Empty input is nil.
func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s %q: use YYYY-MM-DD or RFC 3339", name, value)
}

func validationFailure(errs []validation.ValidationError) error {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Field + " " + e.Message
	}
	return fmt.Errorf("invalid request: %s", strings.Join(parts, "; "))
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
