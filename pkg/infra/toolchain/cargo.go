package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
)

// Cargo drives the local Rust toolchain (rustup + cargo) to produce release
// builds. Builds run with --locked so dependency versions stay exactly what
// the lock manifest declares, and with --verbose so the full diagnostic
// output is available when a build fails.
type Cargo struct {
	cargoBin  string
	rustupBin string
}

// Option is a functional option for Cargo configuration
type Option func(*Cargo)

// WithCargoBin overrides the cargo executable path
func WithCargoBin(path string) Option {
	return func(c *Cargo) {
		c.cargoBin = path
	}
}

// WithRustupBin overrides the rustup executable path
func WithRustupBin(path string) Option {
	return func(c *Cargo) {
		c.rustupBin = path
	}
}

// New creates a Cargo toolchain runner
func New(opts ...Option) interfaces.Toolchain {
	c := &Cargo{
		cargoBin:  "cargo",
		rustupBin: "rustup",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureTarget installs cross-compilation support for the target triple
func (c *Cargo) EnsureTarget(ctx context.Context, triple string) error {
	cmd := exec.CommandContext(ctx, c.rustupBin, "target", "add", triple)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return goerr.Wrap(err, "failed to install toolchain target",
			goerr.V("triple", triple),
			goerr.V("output", string(out)),
			goerr.T(types.ErrTagEnvironment))
	}

	ctxlog.From(ctx).Debug("toolchain target ready", "triple", triple)
	return nil
}

// Build compiles the project in srcDir for the target in release mode. The
// returned string is the combined cargo output, kept even on success so the
// caller can retain it for triage.
func (c *Cargo) Build(ctx context.Context, srcDir, binary string, target *model.PlatformTarget) (*model.BuildArtifact, string, error) {
	if _, err := os.Stat(filepath.Join(srcDir, "Cargo.lock")); err != nil {
		return nil, "", goerr.Wrap(err, "lock manifest missing, refusing unlocked build",
			goerr.V("src_dir", srcDir),
			goerr.T(types.ErrTagBuild))
	}

	cmd := exec.CommandContext(ctx, c.cargoBin,
		"build", "--release", "--locked", "--verbose", "--target", target.Triple)
	cmd.Dir = srcDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	ctxlog.From(ctx).Info("starting cargo build",
		"triple", target.Triple,
		"src_dir", srcDir,
	)

	if err := cmd.Run(); err != nil {
		return nil, out.String(), goerr.Wrap(err, "cargo build failed",
			goerr.V("triple", target.Triple),
			goerr.T(types.ErrTagBuild))
	}

	binPath := filepath.Join(srcDir, "target", target.Triple, "release", target.BinaryName(binary))
	st, err := os.Stat(binPath)
	if err != nil {
		return nil, out.String(), goerr.Wrap(err, "build completed but artifact not found",
			goerr.V("path", binPath),
			goerr.T(types.ErrTagBuild))
	}

	return &model.BuildArtifact{
		Target:      *target,
		Path:        binPath,
		Size:        st.Size(),
		ContentType: target.ContentType,
	}, out.String(), nil
}
