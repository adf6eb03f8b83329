package calcbench

import (
	"context"
	"strings"
)

// Label is attached to every image and container created by calcbench
const Label = "calcbench=1"

// A ContainerRuntime builds images and manages containers of an opaque container engine.
// All operations return the exit code of the engine; the error is only non-nil if the engine could not be invoked.
type ContainerRuntime interface {
	// Build builds the image tag from the context directory, passing all output to lines
	Build(ctx context.Context, tag, contextDir string, lines LineHandler) (int, error)
	// Run starts a detached container with the passed name from image
	Run(ctx context.Context, name, image string) (int, error)
	// Inspect returns the engine's JSON description of the named container
	Inspect(ctx context.Context, name string) ([]byte, int, error)
	// Kill kills the named container
	Kill(ctx context.Context, name string) (int, error)
}

// DockerCLI is a [ContainerRuntime] driving the docker command line client through an [Executor].
type DockerCLI struct {
	Executor Executor

	Binary string   // The docker binary, "docker" if empty
	Labels []string // Additional labels in key=value form to attach to images and containers
}

func (d *DockerCLI) binary() string {
	if d.Binary == "" {
		return "docker"
	}
	return d.Binary
}

func (d *DockerCLI) labelArgs() []string {
	args := []string{"--label", Label}
	for _, label := range d.Labels {
		args = append(args, "--label", label)
	}
	return args
}

func (d *DockerCLI) Build(ctx context.Context, tag, contextDir string, lines LineHandler) (int, error) {
	args := append([]string{"build", "-t", tag}, d.labelArgs()...)
	args = append(args, contextDir)
	return d.Executor.Execute(ctx, Command{Name: d.binary(), Args: args}, lines)
}

func (d *DockerCLI) Run(ctx context.Context, name, image string) (int, error) {
	args := append([]string{"run", "-d", "--rm", "--name", name}, d.labelArgs()...)
	args = append(args, image)
	return d.Executor.Execute(ctx, Command{Name: d.binary(), Args: args}, nil)
}

func (d *DockerCLI) Inspect(ctx context.Context, name string) ([]byte, int, error) {
	var out strings.Builder
	code, err := d.Executor.Execute(ctx, Command{Name: d.binary(), Args: []string{"inspect", name}}, func(stream Stream, line string) {
		if stream == Stdout {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	})
	return []byte(out.String()), code, err
}

func (d *DockerCLI) Kill(ctx context.Context, name string) (int, error) {
	return d.Executor.Execute(ctx, Command{Name: d.binary(), Args: []string{"kill", name}}, nil)
}
