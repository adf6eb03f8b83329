package calcbench

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"
)

// Stage is a step in the lifecycle of a service run.
type Stage int

const (
	StageIdle Stage = iota
	StagePreparing
	StageCloning
	StageBuilding
	StageRunning
	StageInspecting
	StageHealthChecking
	StageTesting
	StageCleaningUp
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:           "idle",
	StagePreparing:      "preparing",
	StageCloning:        "cloning",
	StageBuilding:       "building",
	StageRunning:        "running",
	StageInspecting:     "inspecting",
	StageHealthChecking: "healthchecking",
	StageTesting:        "testing",
	StageCleaningUp:     "cleaning up",
	StageDone:           "done",
	StageFailed:         "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// A Container is a running container owned by exactly one service run.
// It is created once the container was started and is killed at most once.
type Container struct {
	Name string

	runtime ContainerRuntime

	once       sync.Once
	releaseErr error
}

// Release kills the container. Only the first call kills it, later calls return the first call's result.
func (c *Container) Release(ctx context.Context) error {
	c.once.Do(func() {
		code, err := c.runtime.Kill(ctx, c.Name)
		if err != nil {
			c.releaseErr = err
		} else if code != 0 {
			c.releaseErr = &ProcessError{Op: "docker kill", ExitCode: code}
		}
	})
	return c.releaseErr
}

// A ServiceRun holds the state of one service going through its pipeline.
// It is only modified by the service's own runner.
type ServiceRun struct {
	Spec ServiceSpec

	Stage Stage // The current stage, StageFailed once the pipeline failed

	Container *Container // The service's container, nil until it was started

	Result *ServiceResult // The test results, nil unless the pipeline succeeded

	Err        error // The error which failed the pipeline, a [*StageError]
	CleanupErr error // The error which failed the cleanup

	Duration time.Duration // How long the pipeline took
}

// Failed reports whether the pipeline of the run failed
func (r *ServiceRun) Failed() bool {
	return r.Err != nil
}

// A ServiceResult is the record of a service's test run, built once all of its test cases settled.
type ServiceResult struct {
	Service string

	Classifications map[string]Classification // Test case title to its classification
	Outcomes        map[string]Outcome        // Test case title to its raw outcome

	HealthcheckUp        bool // Whether the healthcheck reported the status UP
	EquationsEchoed      bool // Whether every test case's equation was echoed unchanged
	ErrorMessagesPresent bool // Whether every application error carried an error message
}

func newServiceResult(service string, healthcheckUp bool, cases []TestCase, outcomes []Outcome) *ServiceResult {
	res := &ServiceResult{
		Service: service,

		Classifications: make(map[string]Classification, len(cases)),
		Outcomes:        make(map[string]Outcome, len(cases)),

		HealthcheckUp:        healthcheckUp,
		EquationsEchoed:      true,
		ErrorMessagesPresent: true,
	}
	for i, tc := range cases {
		outcome := outcomes[i]
		res.Classifications[tc.Title()] = tc.Classify(outcome)
		res.Outcomes[tc.Title()] = outcome

		if !outcome.EquationEchoed {
			res.EquationsEchoed = false
		}
		if outcome.Kind == OutcomeApplicationError && outcome.ErrorMessage == "" {
			res.ErrorMessagesPresent = false
		}
	}
	return res
}

// Counts returns how many test cases passed, failed and timed out
func (r *ServiceResult) Counts() (passed, failed, timedOut int) {
	for _, c := range r.Classifications {
		switch c {
		case Pass:
			passed++
		case Fail:
			failed++
		case Timeout:
			timedOut++
		}
	}
	return
}

// A serviceRunner drives one service through its pipeline
type serviceRunner struct {
	run *ServiceRun

	settings Settings
	fresh    bool // Whether to discard an existing workspace

	executor Executor
	runtime  ContainerRuntime
	cases    []TestCase

	log *logrus.Entry

	workspace     string
	image         string
	containerName string

	dockerfile digest.Digest
	client     *ServiceClient
	healthUp   bool
}

type step struct {
	stage Stage
	fn    func(ctx context.Context) error
}

func newServiceRunner(h *Harness, spec ServiceSpec) *serviceRunner {
	lowerName := strings.ToLower(spec.Name)
	return &serviceRunner{
		run: &ServiceRun{Spec: spec, Stage: StageIdle},

		settings: h.Settings,
		fresh:    h.FreshClone,

		executor: h.Executor,
		runtime:  h.Runtime,
		cases:    h.Cases,

		log: h.Log.WithFields(logrus.Fields{
			"prefix":  spec.Name,
			"session": h.SessionID,
		}),

		workspace:     filepath.Join(h.Settings.WorkspaceDir, spec.Name),
		image:         fmt.Sprintf("%s-%s", h.Settings.Prefix, lowerName),
		containerName: fmt.Sprintf("%s-%s-container", h.Settings.Prefix, lowerName),
	}
}

// execute runs all stages of the pipeline in order, stopping at the first failing one.
// The returned error is also recorded on the run.
func (r *serviceRunner) execute(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = &StageError{Stage: r.run.Stage, Err: fmt.Errorf("panic: %v", p)}
		}
		r.run.Duration = time.Since(start)
		if err != nil {
			r.run.Err = err
			r.run.Stage = StageFailed
		}
	}()

	steps := []step{
		{StagePreparing, r.prepare},
		{StageCloning, r.clone},
		{StageBuilding, r.build},
		{StageRunning, r.start},
		{StageInspecting, r.inspect},
		{StageHealthChecking, r.healthcheck},
		{StageTesting, r.test},
	}
	for _, s := range steps {
		r.run.Stage = s.stage
		r.log.WithField("stage", s.stage).Debugf("Entering stage %s", s.stage)
		if err := s.fn(ctx); err != nil {
			return &StageError{Stage: s.stage, Err: err}
		}
	}
	return nil
}

func (r *serviceRunner) prepare(ctx context.Context) error {
	created, err := prepareWorkspace(r.workspace, r.fresh)
	if err != nil {
		return err
	}
	if created {
		r.log.Infof("Prepared fresh workspace %s", r.workspace)
	} else {
		r.log.Infof("Reusing workspace %s", r.workspace)
	}
	return nil
}

func (r *serviceRunner) clone(ctx context.Context) error {
	r.log.Infof("Cloning %s...", r.run.Spec.RepositoryURL)
	code, err := cloneRepository(ctx, r.executor, r.run.Spec.RepositoryURL, r.workspace, r.logLines)
	// A failed clone is fine as long as an earlier clone left a Dockerfile behind
	if err != nil {
		r.log.Warnf("Couldn't run git clone - %v", err)
	} else if code != 0 {
		r.log.Warnf("git clone exited with code %d, continuing with existing workspace", code)
	}

	r.dockerfile, err = dockerfileDigest(r.run.Spec.Name, r.workspace)
	return err
}

func (r *serviceRunner) build(ctx context.Context) error {
	r.log.Infof("Building image %s (Dockerfile %s)...", r.image, r.dockerfile.Encoded()[:12])

	tail := newOutputTail(buildTailLines)
	code, err := r.runtime.Build(ctx, r.image, r.workspace, func(stream Stream, line string) {
		tail.add(line)
		r.logLines(stream, line)
	})
	if err != nil {
		return err
	}
	if code != 0 {
		for _, line := range tail.lines() {
			r.log.Warnf("| %s", line)
		}
		return &ProcessError{Op: "docker build", ExitCode: code, Tail: tail.lines()}
	}

	r.log.WithField("result", "success").Infof("Built image %s", r.image)
	return nil
}

func (r *serviceRunner) start(ctx context.Context) error {
	code, err := r.runtime.Run(ctx, r.containerName, r.image)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ProcessError{Op: "docker run", ExitCode: code}
	}

	r.run.Container = &Container{Name: r.containerName, runtime: r.runtime}
	r.log.Infof("Started container %s", r.containerName)
	return nil
}

func (r *serviceRunner) inspect(ctx context.Context) error {
	out, code, err := r.runtime.Inspect(ctx, r.containerName)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ProcessError{Op: "docker inspect", ExitCode: code}
	}

	address, err := containerAddress(out, r.settings.ServicePort)
	if err != nil {
		return err
	}
	r.client = NewServiceClient("http://" + address)
	r.log.Infof("Service is reachable under %s, performing healthchecks...", r.client.BaseURL)
	return nil
}

func (r *serviceRunner) healthcheck(ctx context.Context) error {
	res, err := r.settings.Healthcheck.performHealthcheck(ctx, r.client, r.client.BaseURL+"/healthcheck", r.log)
	if err != nil {
		return err
	}

	r.healthUp = res.Up()
	if r.healthUp {
		r.log.WithField("result", "success").Info("Healthcheck reported status UP")
	} else {
		r.log.Warnf("Healthcheck answered with status %q", res.Status)
	}
	return nil
}

func (r *serviceRunner) test(ctx context.Context) error {
	r.log.Infof("Running %d test cases...", len(r.cases))

	racer := requestRacer{client: r.client, deadline: r.settings.RequestTimeout}
	mapper := iter.Mapper[TestCase, Outcome]{MaxGoroutines: len(r.cases)}
	outcomes := mapper.Map(r.cases, func(tc *TestCase) Outcome {
		outcome := racer.race(ctx, tc.Equation)
		r.log.WithField("outcome", outcome.Kind).Debugf("Test case %s settled with %q", tc.Title(), outcome.Result)
		return outcome
	})

	r.run.Result = newServiceResult(r.run.Spec.Name, r.healthUp, r.cases, outcomes)

	passed, failed, timedOut := r.run.Result.Counts()
	r.log.WithField("result", "success").Infof("Tests done: %d passed, %d failed, %d timed out", passed, failed, timedOut)
	return nil
}

// cleanup kills the service's container if one was started.
// The returned error is also recorded on the run.
func (r *serviceRunner) cleanup(ctx context.Context) error {
	failed := r.run.Failed()
	if !failed {
		r.run.Stage = StageCleaningUp
	}

	if r.run.Container != nil {
		r.log.Infof("Killing container %s", r.run.Container.Name)
		if err := r.run.Container.Release(ctx); err != nil {
			r.run.CleanupErr = err
			r.log.Errorf("Failed to kill container %s - %v", r.run.Container.Name, err)
			return err
		}
	}

	if !failed {
		r.run.Stage = StageDone
	}
	return nil
}

func (r *serviceRunner) logLines(stream Stream, line string) {
	r.log.WithField("stream", stream).Debug(line)
}
