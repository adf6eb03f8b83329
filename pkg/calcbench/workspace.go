package calcbench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// prepareWorkspace makes sure dir exists.
// If fresh is set or dir doesn't exist yet, any stale content is removed and dir is recreated empty.
// It reports whether dir was (re)created.
func prepareWorkspace(dir string, fresh bool) (bool, error) {
	if !fresh {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return false, nil
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, errors.Join(fmt.Errorf("failed to remove stale workspace %s", dir), err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, errors.Join(fmt.Errorf("failed to create workspace %s", dir), err)
	}
	return true, nil
}

// cloneRepository clones url into dir and returns git's exit code
func cloneRepository(ctx context.Context, executor Executor, url, dir string, lines LineHandler) (int, error) {
	return executor.Execute(ctx, Command{
		Name: "git",
		Args: []string{"clone", "--quiet", url, dir},
	}, lines)
}

// dockerfileDigest returns the digest of the Dockerfile in dir.
// A [*SetupError] is returned if there is no Dockerfile.
func dockerfileDigest(service, dir string) (digest.Digest, error) {
	content, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	if errors.Is(err, os.ErrNotExist) {
		return "", &SetupError{Service: service, Reason: "missing Dockerfile"}
	} else if err != nil {
		return "", errors.Join(&SetupError{Service: service, Reason: "unreadable Dockerfile"}, err)
	}
	return digest.FromBytes(content), nil
}
