package calcbench

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Names of the report rows summarizing a service beyond its test cases
const (
	RowHealthcheck    = "healthcheck"
	RowEquationEcho   = "equation-echo"
	RowErrorMessages  = "error-messages"
	tableHeaderColumn = "test-name"
)

// A Report holds the outcome of a harness run.
type Report struct {
	Runs    []*ServiceRun    // Every service's run, sorted by service name
	Results []*ServiceResult // The results of all services which completed their pipeline, sorted by service name
	Cases   []TestCase       // The test cases the services were tested with
}

// A ReportRow maps every completed service to its symbol for one test case or summary flag.
type ReportRow struct {
	Name    string
	Symbols map[string]string // Service name to "+", "-" or "T"
}

// Services returns the names of all completed services in lexicographic order
func (r *Report) Services() []string {
	names := make([]string, len(r.Results))
	for i, res := range r.Results {
		names[i] = res.Service
	}
	return names
}

// Rows returns one row per test case in table order, followed by the summary flag rows
func (r *Report) Rows() []ReportRow {
	rows := make([]ReportRow, 0, len(r.Cases)+3)
	for _, tc := range r.Cases {
		row := ReportRow{Name: tc.Title(), Symbols: make(map[string]string, len(r.Results))}
		for _, res := range r.Results {
			row.Symbols[res.Service] = res.Classifications[tc.Title()].Symbol()
		}
		rows = append(rows, row)
	}

	flags := []struct {
		name string
		get  func(*ServiceResult) bool
	}{
		{RowHealthcheck, func(res *ServiceResult) bool { return res.HealthcheckUp }},
		{RowEquationEcho, func(res *ServiceResult) bool { return res.EquationsEchoed }},
		{RowErrorMessages, func(res *ServiceResult) bool { return res.ErrorMessagesPresent }},
	}
	for _, flag := range flags {
		row := ReportRow{Name: flag.name, Symbols: make(map[string]string, len(r.Results))}
		for _, res := range r.Results {
			row.Symbols[res.Service] = flagSymbol(flag.get(res))
		}
		rows = append(rows, row)
	}
	return rows
}

func flagSymbol(b bool) string {
	if b {
		return "+"
	}
	return "-"
}

// WriteTable writes the pipe-delimited comparison table of all completed services
func (r *Report) WriteTable(w io.Writer) error {
	services := r.Services()
	if _, err := fmt.Fprintln(w, strings.Join(append([]string{tableHeaderColumn}, services...), "|")); err != nil {
		return err
	}
	for _, row := range r.Rows() {
		cells := []string{row.Name}
		for _, service := range services {
			cells = append(cells, row.Symbols[service])
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "|")); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary writes a table with one line per service, including the ones that failed
func (r *Report) WriteSummary(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Services")

	t.AppendHeader(table.Row{"Service", "Stage", "Passed", "Failed", "Timeouts", "Duration", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Timeouts", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, run := range r.Runs {
		passed, failed, timedOut := "-", "-", "-"
		if run.Result != nil {
			p, f, to := run.Result.Counts()
			passed, failed, timedOut = fmt.Sprint(p), fmt.Sprint(f), fmt.Sprint(to)
		}

		var errMsg string
		if run.Err != nil {
			errMsg = run.Err.Error()
		}
		if run.CleanupErr != nil {
			errMsg = strings.TrimSpace(errMsg + " cleanup: " + run.CleanupErr.Error())
		}

		t.AppendRow(table.Row{
			run.Spec.Name,
			stageOf(run),
			passed,
			failed,
			timedOut,
			run.Duration.Round(time.Millisecond),
			errMsg,
		})
	}
	t.Render()
}

// stageOf describes the stage a run ended in, naming the failing stage of failed runs
func stageOf(run *ServiceRun) string {
	var stageErr *StageError
	if run.Stage == StageFailed && errors.As(run.Err, &stageErr) {
		return fmt.Sprintf("%s (%s)", StageFailed, stageErr.Stage)
	}
	return run.Stage.String()
}
