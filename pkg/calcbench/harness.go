package calcbench

import (
	"context"
	"io"
	"sort"

	"github.com/dchest/uniuri"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"golang.org/x/sync/errgroup"
)

// A Harness tests a set of services side by side.
type Harness struct {
	Services []ServiceSpec // The services to test
	Cases    []TestCase    // The test cases every service is tested with. Defaults to [DefaultTestCases]. Repeated titles get a "#n" suffix

	Settings   Settings // Defaults to [DefaultSettings] if the prefix is empty
	FreshClone bool     // Whether to clone every repository again even if a workspace from an earlier run exists

	Executor Executor         // Runs git. Defaults to [SystemExecutor]
	Runtime  ContainerRuntime // Defaults to [DockerCLI] using Executor

	Log *logrus.Logger // The log to which progress gets printed to

	SessionID string // Identifies this run in logs and container labels. Generated if empty
}

func (h *Harness) init() {
	if h.Log == nil {
		// Mute logger
		h.Log = logrus.New()
		h.Log.SetOutput(io.Discard)
	}
	if h.SessionID == "" {
		h.SessionID = uniuri.NewLen(8)
	}
	if h.Settings.Prefix == "" {
		h.Settings = DefaultSettings()
	}
	if h.Cases == nil {
		h.Cases = DefaultTestCases()
	}
	// Results are keyed by title
	h.Cases = uniqueTitles(h.Cases)
	if h.Executor == nil {
		h.Executor = SystemExecutor{}
	}
	if h.Runtime == nil {
		h.Runtime = &DockerCLI{
			Executor: h.Executor,
			Labels:   []string{"calcbench.session=" + h.SessionID},
		}
	}
}

// Run tests all services concurrently, kills their containers once all of them are done and returns the report.
// A failing service never affects the others; its failure is recorded in the report.
func (h *Harness) Run(ctx context.Context) *Report {
	h.init()
	h.Log.WithField("session", h.SessionID).Infof("Testing %d services with %d test cases", len(h.Services), len(h.Cases))

	runners := make([]*serviceRunner, len(h.Services))
	for i, spec := range h.Services {
		runners[i] = newServiceRunner(h, spec)
	}

	// Pipelines never return errors to the group, a failed service must not cancel its siblings
	pipelines := new(errgroup.Group)
	if h.Settings.MaxConcurrentServices > 0 {
		pipelines.SetLimit(h.Settings.MaxConcurrentServices)
	}
	for _, r := range runners {
		pipelines.Go(func() error {
			if err := r.execute(ctx); err != nil {
				r.log.Errorf("Service failed while %v", err)
			}
			return nil
		})
	}
	pipelines.Wait()

	// Containers get killed even if the run was interrupted
	cleanupCtx := context.WithoutCancel(ctx)
	var cleanups conc.WaitGroup
	for _, r := range runners {
		cleanups.Go(func() {
			r.cleanup(cleanupCtx)
		})
	}
	cleanups.Wait()

	return newReport(runners, h.Cases)
}

func newReport(runners []*serviceRunner, cases []TestCase) *Report {
	report := &Report{Cases: cases}
	for _, r := range runners {
		report.Runs = append(report.Runs, r.run)
		if r.run.Result != nil {
			report.Results = append(report.Results, r.run.Result)
		}
	}
	sort.SliceStable(report.Runs, func(i, j int) bool {
		return report.Runs[i].Spec.Name < report.Runs[j].Spec.Name
	})
	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Service < report.Results[j].Service
	})
	return report
}
