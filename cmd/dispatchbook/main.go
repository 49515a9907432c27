// Command dispatchbook operates a dispatch record store from the shell:
// snapshot export and import, consistency checking, and report exports. The
// storage backend is selected through the DISPATCHBOOK_* environment
// variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dispatchbook/internal/adapters/reports"
	"dispatchbook/internal/blob"
	"dispatchbook/internal/core"
)

var (
	exitFunc  = os.Exit
	openStore = core.OpenPersistentStore
	openBlob  = blob.Open
)

func main() {
	exitFunc(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	ctx := context.Background()
	switch args[1] {
	case "export":
		return runExport(ctx, args[2:], stdout, stderr)
	case "import":
		return runImport(ctx, args[2:], stdout, stderr)
	case "check":
		return runCheck(ctx, args[2:], stdout, stderr)
	case "report":
		return runReport(ctx, args[2:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: dispatchbook <export|import|check|report> [flags]")
}

func newService() (*core.Service, error) {
	engine := core.NewDefaultRulesEngine()
	store, err := openStore(engine)
	if err != nil {
		return nil, err
	}
	return core.NewService(store, core.WithRulesEngine(engine)), nil
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.SetOutput(stderr)
	out := flags.String("out", "", "destination file (default stdout)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	svc, err := newService()
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	data, err := svc.ExportSnapshot(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}
	if *out == "" {
		fmt.Fprintln(stdout, string(data))
		return 0
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "write %s: %v\n", *out, err)
		return 1
	}
	fmt.Fprintf(stdout, "snapshot written to %s (%d bytes)\n", *out, len(data))
	return 0
}

func runImport(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("import", flag.ContinueOnError)
	flags.SetOutput(stderr)
	in := flags.String("in", "", "snapshot file to import (required)")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *in == "" {
		fmt.Fprintln(stderr, "import: -in is required")
		return 2
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(stderr, "read %s: %v\n", *in, err)
		return 1
	}
	svc, err := newService()
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	report, _, err := svc.ImportSnapshot(ctx, data)
	if err != nil {
		fmt.Fprintf(stderr, "import: %v\n", err)
		return 1
	}
	for entity, count := range report.Restored {
		fmt.Fprintf(stdout, "restored %d %s records\n", count, entity)
	}
	if len(report.Failures) > 0 {
		for _, failure := range report.Failures {
			fmt.Fprintf(stderr, "skipped %s %s: %s\n", failure.Entity, failure.Key, failure.Reason)
		}
		return 1
	}
	return 0
}

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	flags.SetOutput(stderr)
	fix := flags.Bool("fix", false, "repair fixable issues")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	svc, err := newService()
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	result, err := svc.CheckConsistency(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "check: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, result.Summary())
	if !result.HasIssues() {
		return 0
	}
	if !*fix {
		for _, issue := range result.Issues {
			fmt.Fprintf(stdout, "  [%s] %s\n", issue.Kind, issue.Message)
		}
		return 1
	}

	report, _, err := svc.FixIssues(ctx, result.Issues)
	if err != nil {
		fmt.Fprintf(stderr, "fix: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "removed %d rides, reset %d prices\n", report.RemovedRides, report.ResetPrices)
	if len(report.Manual) > 0 {
		for _, issue := range report.Manual {
			fmt.Fprintf(stdout, "  manual: [%s] %s\n", issue.Kind, issue.Message)
		}
		return 1
	}
	return 0
}

func runReport(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("report", flag.ContinueOnError)
	flags.SetOutput(stderr)
	template := flags.String("template", "", "report template slug (required)")
	formatList := flags.String("formats", "json,csv", "comma-separated output formats")
	timeout := flags.Duration("timeout", 30*time.Second, "how long to wait for the export")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *template == "" {
		fmt.Fprintln(stderr, "report: -template is required")
		return 2
	}

	svc, err := newService()
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	store, err := openBlob(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open blob store: %v\n", err)
		return 1
	}

	var formats []reports.Format
	for _, raw := range strings.Split(*formatList, ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			formats = append(formats, reports.Format(raw))
		}
	}

	worker := reports.NewWorker(reports.NewCatalog(svc), store, nil)
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = worker.Stop(stopCtx)
	}()

	record, err := worker.Enqueue(ctx, reports.ExportInput{TemplateSlug: *template, Formats: formats, RequestedBy: "cli"})
	if err != nil {
		fmt.Fprintf(stderr, "enqueue: %v\n", err)
		return 1
	}

	deadline := time.Now().Add(*timeout)
	for time.Now().Before(deadline) {
		current, ok := worker.GetExport(record.ID)
		if !ok {
			break
		}
		switch current.Status {
		case reports.ExportStatusSucceeded:
			for _, artifact := range current.Artifacts {
				fmt.Fprintf(stdout, "%s (%s, %d bytes)\n", artifact.Key, artifact.ContentType, artifact.SizeBytes)
			}
			return 0
		case reports.ExportStatusFailed:
			fmt.Fprintf(stderr, "export failed: %s\n", current.Error)
			return 1
		}
		time.Sleep(20 * time.Millisecond)
	}
	fmt.Fprintln(stderr, "export timed out")
	return 1
}
