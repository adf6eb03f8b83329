package calcbench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DominicWuest/calcbench/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/otiai10/copy"
	"github.com/phayes/freeport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executorFunc func(ctx context.Context, cmd Command, lines LineHandler) (int, error)

func (f executorFunc) Execute(ctx context.Context, cmd Command, lines LineHandler) (int, error) {
	return f(ctx, cmd, lines)
}

type cloneBehavior int

const (
	cloneOK cloneBehavior = iota
	cloneWithoutDockerfile
	cloneFails
)

// fakeGit pretends to clone repositories. Unless told otherwise, a clone leaves a Dockerfile in its target directory.
func fakeGit(behaviors map[string]cloneBehavior) Executor {
	return executorFunc(func(ctx context.Context, cmd Command, lines LineHandler) (int, error) {
		if cmd.Name != "git" || len(cmd.Args) < 2 || cmd.Args[0] != "clone" {
			return -1, fmt.Errorf("unexpected command %s", cmd)
		}
		url, dir := cmd.Args[len(cmd.Args)-2], cmd.Args[len(cmd.Args)-1]

		switch behaviors[url] {
		case cloneFails:
			lines(Stderr, fmt.Sprintf("fatal: destination path '%s' already exists and is not an empty directory.", dir))
			return 128, nil
		case cloneWithoutDockerfile:
			return 0, os.WriteFile(filepath.Join(dir, "README.md"), []byte("calculator\n"), 0644)
		}
		return 0, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0644)
	})
}

// fakeService configures how the fake runtime treats one image
type fakeService struct {
	buildCode   int
	buildOutput []string
	runCode     int
	address     string // host:port under which the container's service is reachable
	inspect     string // Overrides the inspect output derived from address
	killCode    int
	panics      bool // Whether inspecting the container panics
}

// fakeRuntime is a [ContainerRuntime] keeping track of the containers it was asked to kill
type fakeRuntime struct {
	mu sync.Mutex

	services   map[string]fakeService // Image tag to its behavior
	containers map[string]string      // Container name to image tag
	contexts   map[string]string      // Image tag to its build context
	kills      map[string]int         // Container name to how often it was killed
}

func newFakeRuntime(services map[string]fakeService) *fakeRuntime {
	return &fakeRuntime{
		services:   services,
		containers: make(map[string]string),
		contexts:   make(map[string]string),
		kills:      make(map[string]int),
	}
}

func (f *fakeRuntime) Build(ctx context.Context, tag, contextDir string, lines LineHandler) (int, error) {
	f.mu.Lock()
	f.contexts[tag] = contextDir
	svc := f.services[tag]
	f.mu.Unlock()

	for _, line := range svc.buildOutput {
		lines(Stdout, line)
	}
	return svc.buildCode, nil
}

func (f *fakeRuntime) Run(ctx context.Context, name, image string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	svc := f.services[image]
	if svc.runCode == 0 {
		f.containers[name] = image
	}
	return svc.runCode, nil
}

func (f *fakeRuntime) Inspect(ctx context.Context, name string) ([]byte, int, error) {
	f.mu.Lock()
	svc, ok := f.services[f.containers[name]]
	f.mu.Unlock()

	if !ok {
		return nil, 1, nil
	}
	if svc.panics {
		panic("inspect exploded")
	}
	if svc.inspect != "" {
		return []byte(svc.inspect), 0, nil
	}
	return []byte(inspectOutput(svc.address)), 0, nil
}

func (f *fakeRuntime) Kill(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.kills[name]++
	return f.services[f.containers[name]].killCode, nil
}

func (f *fakeRuntime) killCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kills[name]
}

func (f *fakeRuntime) buildContext(tag string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contexts[tag]
}

// inspectOutput mimics docker inspect of a container exposing the port of address on its bridge IP
func inspectOutput(address string) string {
	host, port, _ := net.SplitHostPort(address)
	return fmt.Sprintf(`[{"Config": {"ExposedPorts": {"%s/tcp": {}}}, "NetworkSettings": {"Networks": {"bridge": {"IPAddress": %q}}}}]`, port, host)
}

// referenceService starts the reference calculator service and returns its address
func referenceService(t *testing.T, opts server.Options) string {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(server.NewRouter(opts))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().String()
}

// unreachableAddress returns an address nothing listens on
func unreachableAddress(t *testing.T) string {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func testSettings(t *testing.T) Settings {
	return Settings{
		Prefix:       "calcbench",
		WorkspaceDir: t.TempDir(),
		ServicePort:  8080,

		RequestTimeout: 2 * time.Second,

		Healthcheck: HealthcheckConfig{
			Retries:    3,
			Backoff:    10 * time.Millisecond,
			MaxBackoff: 10 * time.Millisecond,
		},
	}
}

func testHarness(t *testing.T, runtime ContainerRuntime, git Executor, services ...ServiceSpec) *Harness {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return &Harness{
		Services:  services,
		Cases:     DefaultTestCases(),
		Settings:  testSettings(t),
		Executor:  git,
		Runtime:   runtime,
		Log:       log,
		SessionID: "test",
	}
}

func serviceSpec(name string) ServiceSpec {
	return ServiceSpec{RepositoryURL: "https://example.com/calculators/" + name + ".git", Name: name}
}

func TestServiceRunner(t *testing.T) {
	t.Run("Healthy service passes every test case", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {address: referenceService(t, server.Options{})},
		})
		h := testHarness(t, runtime, fakeGit(nil))
		r := newServiceRunner(h, serviceSpec("Alpha"))

		require.NoError(t, r.execute(context.Background()))
		assert.False(t, r.run.Failed())
		require.NotNil(t, r.run.Container)
		assert.Equal(t, "calcbench-alpha-container", r.run.Container.Name)
		assert.Equal(t, filepath.Join(h.Settings.WorkspaceDir, "Alpha"), runtime.buildContext("calcbench-alpha"))

		res := r.run.Result
		require.NotNil(t, res)
		assert.Equal(t, "Alpha", res.Service)
		assert.Len(t, res.Classifications, len(h.Cases))
		for title, c := range res.Classifications {
			assert.Equalf(t, Pass, c, "Test case %s did not pass: %+v", title, res.Outcomes[title])
		}
		assert.True(t, res.HealthcheckUp)
		assert.True(t, res.EquationsEchoed)
		assert.True(t, res.ErrorMessagesPresent)

		require.NoError(t, r.cleanup(context.Background()))
		assert.Equal(t, StageDone, r.run.Stage)
		assert.Equal(t, 1, runtime.killCount("calcbench-alpha-container"))
	})

	t.Run("Missing Dockerfile fails before building", func(t *testing.T) {
		runtime := newFakeRuntime(nil)
		s := serviceSpec("alpha")
		h := testHarness(t, runtime, fakeGit(map[string]cloneBehavior{s.RepositoryURL: cloneWithoutDockerfile}))
		r := newServiceRunner(h, s)

		err := r.execute(context.Background())

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageCloning, stageErr.Stage)
		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		assert.Equal(t, "alpha", setupErr.Service)
		assert.Equal(t, "missing Dockerfile", setupErr.Reason)

		assert.Equal(t, StageFailed, r.run.Stage)
		assert.Equal(t, err, r.run.Err)
		assert.Empty(t, runtime.buildContext("calcbench-alpha"), "Image was built without a Dockerfile")
		assert.Nil(t, r.run.Container)
		assert.Nil(t, r.run.Result)

		require.NoError(t, r.cleanup(context.Background()))
		assert.Equal(t, StageFailed, r.run.Stage, "Cleanup changed the stage of a failed run")
	})

	t.Run("Failed build keeps the output tail", func(t *testing.T) {
		output := make([]string, 10)
		for i := range output {
			output[i] = fmt.Sprintf("Step %d/10", i+1)
		}
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {buildCode: 1, buildOutput: output},
		})
		r := newServiceRunner(testHarness(t, runtime, fakeGit(nil)), serviceSpec("alpha"))

		err := r.execute(context.Background())

		var procErr *ProcessError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, "docker build", procErr.Op)
		assert.Equal(t, 1, procErr.ExitCode)
		assert.Equal(t, output[5:], procErr.Tail)
		assert.Equal(t, "building: docker build exited with code 1", err.Error())
		assert.NotContains(t, err.Error(), "\n")
		assert.Nil(t, r.run.Container)
	})

	t.Run("Failed start leaves nothing to kill", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {runCode: 125},
		})
		r := newServiceRunner(testHarness(t, runtime, fakeGit(nil)), serviceSpec("alpha"))

		err := r.execute(context.Background())

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageRunning, stageErr.Stage)
		assert.Nil(t, r.run.Container)

		require.NoError(t, r.cleanup(context.Background()))
		assert.Zero(t, runtime.killCount("calcbench-alpha-container"), "Container which never started was killed")
	})

	t.Run("Unreachable service is killed exactly once", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {address: unreachableAddress(t)},
		})
		r := newServiceRunner(testHarness(t, runtime, fakeGit(nil)), serviceSpec("alpha"))

		err := r.execute(context.Background())

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageHealthChecking, stageErr.Stage)
		var connErr *ConnectivityError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, 3, connErr.Attempts)

		require.NoError(t, r.cleanup(context.Background()))
		require.NoError(t, r.cleanup(context.Background()))
		assert.Equal(t, 1, runtime.killCount("calcbench-alpha-container"))
		assert.Equal(t, StageFailed, r.run.Stage)
	})

	t.Run("Invalid inspect output fails inspection", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {inspect: `[{"NetworkSettings": {}}]`},
		})
		r := newServiceRunner(testHarness(t, runtime, fakeGit(nil)), serviceSpec("alpha"))

		err := r.execute(context.Background())

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageInspecting, stageErr.Stage)

		require.NoError(t, r.cleanup(context.Background()))
		assert.Equal(t, 1, runtime.killCount("calcbench-alpha-container"))
	})

	t.Run("Panic is recorded as failure of its stage", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {panics: true},
		})
		r := newServiceRunner(testHarness(t, runtime, fakeGit(nil)), serviceSpec("alpha"))

		err := r.execute(context.Background())

		var stageErr *StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageInspecting, stageErr.Stage)
		assert.Contains(t, err.Error(), "inspect exploded")
		assert.Equal(t, StageFailed, r.run.Stage)

		require.NoError(t, r.cleanup(context.Background()))
		assert.Equal(t, 1, runtime.killCount("calcbench-alpha-container"))
	})

	t.Run("Failed kill is recorded", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {address: referenceService(t, server.Options{}), killCode: 1},
		})
		r := newServiceRunner(testHarness(t, runtime, fakeGit(nil)), serviceSpec("alpha"))

		require.NoError(t, r.execute(context.Background()))
		err := r.cleanup(context.Background())

		var procErr *ProcessError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, "docker kill", procErr.Op)
		assert.Equal(t, err, r.run.CleanupErr)
		assert.Equal(t, StageCleaningUp, r.run.Stage)
		assert.False(t, r.run.Failed(), "Failed kill failed the tests")
	})

	t.Run("Failed clone falls back to an existing workspace", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {address: referenceService(t, server.Options{})},
		})
		s := serviceSpec("alpha")
		h := testHarness(t, runtime, fakeGit(map[string]cloneBehavior{s.RepositoryURL: cloneFails}))
		workspace := filepath.Join(h.Settings.WorkspaceDir, "alpha")
		require.NoError(t, copy.Copy("testdata/workspace", workspace))
		r := newServiceRunner(h, s)

		require.NoError(t, r.execute(context.Background()))
		assert.NotNil(t, r.run.Result)
		assert.Equal(t, workspace, runtime.buildContext("calcbench-alpha"))
	})

	t.Run("Fresh clone discards an existing workspace", func(t *testing.T) {
		runtime := newFakeRuntime(nil)
		s := serviceSpec("alpha")
		h := testHarness(t, runtime, fakeGit(map[string]cloneBehavior{s.RepositoryURL: cloneFails}))
		h.FreshClone = true
		require.NoError(t, copy.Copy("testdata/workspace", filepath.Join(h.Settings.WorkspaceDir, "alpha")))
		r := newServiceRunner(h, s)

		err := r.execute(context.Background())

		var setupErr *SetupError
		assert.ErrorAs(t, err, &setupErr, "Stale Dockerfile survived a fresh clone")
	})

	t.Run("Slow service times out", func(t *testing.T) {
		runtime := newFakeRuntime(map[string]fakeService{
			"calcbench-alpha": {address: referenceService(t, server.Options{Latency: time.Second})},
		})
		h := testHarness(t, runtime, fakeGit(nil))
		h.Settings.RequestTimeout = 50 * time.Millisecond
		h.Cases = []TestCase{{Name: "sum", Equation: "1 + 1", Expected: "2"}}
		r := newServiceRunner(h, serviceSpec("alpha"))

		require.NoError(t, r.execute(context.Background()))
		assert.Equal(t, Timeout, r.run.Result.Classifications["sum"])
		assert.Equal(t, ResultTimeout, r.run.Result.Outcomes["sum"].Result)
	})
}

func TestContainerRelease(t *testing.T) {
	runtime := newFakeRuntime(nil)
	c := &Container{Name: "calcbench-alpha-container", runtime: runtime}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Release(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, runtime.killCount("calcbench-alpha-container"), "Container was killed more than once")
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "healthchecking", StageHealthChecking.String())
	assert.Equal(t, "cleaning up", StageCleaningUp.String())
	assert.Equal(t, "stage(42)", Stage(42).String())

	err := &StageError{Stage: StageBuilding, Err: errors.New("boom")}
	assert.True(t, strings.HasPrefix(err.Error(), "building: "))
}
