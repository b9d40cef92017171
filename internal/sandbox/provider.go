// Package sandbox provides the isolated, ephemeral execution environment
// used for repository analysis, and the analyzer that runs inside it.
//
// Repository content is untrusted: the clone and the analysis script run
// only inside the sandbox, never with host privileges. Any backend offering
// the four Provider primitives is substitutable for the Docker CLI.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/overture-dev/overture/internal/errors"
)

// Provider is the contract between the analyzer and the ephemeral
// environment backend.
type Provider interface {
	// Provision creates an isolated environment with the given unique name.
	Provision(ctx context.Context, name string) error

	// CopyIn copies a host file src into the environment at dst.
	CopyIn(ctx context.Context, name, src, dst string) error

	// Exec runs argv inside the environment and returns its stdout.
	Exec(ctx context.Context, name string, argv []string) ([]byte, error)

	// Teardown destroys the environment by name. Tearing down a missing
	// environment is not an error.
	Teardown(ctx context.Context, name string) error
}

// DockerProvider implements Provider with the docker CLI.
type DockerProvider struct {
	// Image is the container image used for provisioned environments.
	Image string

	// Binary is the docker binary name, overridable for tests.
	Binary string
}

// NewDockerProvider creates a DockerProvider using the given image.
func NewDockerProvider(image string) *DockerProvider {
	return &DockerProvider{Image: image, Binary: "docker"}
}

// Provision starts a long-lived idle container with the given name.
// Networking stays enabled: the clone happens inside the container.
func (p *DockerProvider) Provision(ctx context.Context, name string) error {
	_, err := p.docker(ctx, "run", "-d", "--name", name,
		"--memory", "1g", "--cpus", "1", p.Image, "sleep", "infinity")
	if err != nil {
		return errors.Wrapf(err, "failed to provision sandbox %q", name)
	}
	return nil
}

// CopyIn copies a host file into the container.
func (p *DockerProvider) CopyIn(ctx context.Context, name, src, dst string) error {
	if _, err := p.docker(ctx, "cp", src, name+":"+dst); err != nil {
		return errors.Wrapf(err, "failed to copy %s into sandbox %q", dst, name)
	}
	return nil
}

// Exec runs argv inside the container and returns its stdout.
func (p *DockerProvider) Exec(ctx context.Context, name string, argv []string) ([]byte, error) {
	args := append([]string{"exec", name}, argv...)
	out, err := p.docker(ctx, args...)
	if err != nil {
		return out, errors.Wrapf(err, "failed to exec in sandbox %q", name)
	}
	return out, nil
}

// Teardown force-removes the container. A missing container is not an error.
func (p *DockerProvider) Teardown(ctx context.Context, name string) error {
	_, err := p.docker(ctx, "rm", "-f", name)
	if err != nil && strings.Contains(err.Error(), "No such container") {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to tear down sandbox %q", name)
	}
	return nil
}

// docker runs the docker CLI, returning stdout. Stderr is folded into the
// error for diagnostics.
func (p *DockerProvider) docker(ctx context.Context, args ...string) ([]byte, error) {
	binary := p.Binary
	if binary == "" {
		binary = "docker"
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.Bytes(), ctx.Err()
		}
		return stdout.Bytes(), fmt.Errorf("%w: docker %s: %v: %s",
			errors.ErrSandboxFailed, args[0], err, truncate(stderr.String(), 512))
	}
	return stdout.Bytes(), nil
}

// truncate bounds s for inclusion in error messages.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Compile-time check that DockerProvider implements Provider.
var _ Provider = (*DockerProvider)(nil)
