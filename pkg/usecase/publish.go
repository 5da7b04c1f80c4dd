package usecase

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
	"github.com/m-mizutani/slipway/pkg/utils/tarutil"
)

type registryJob struct {
	github   interfaces.GitHubClient
	registry interfaces.RegistryClient
}

// NewRegistryJob creates the job that publishes the project's package
// version to the central registry: checkout, manifest validation, crate
// packaging, one publish submission.
func NewRegistryJob(githubClient interfaces.GitHubClient, registryClient interfaces.RegistryClient) interfaces.RegistryJob {
	return &registryJob{
		github:   githubClient,
		registry: registryClient,
	}
}

// Run executes the registry publish for one release event. Authentication
// failures, duplicate versions and manifest problems are all terminal; the
// registry rejects incomplete submissions entirely, so there is no partial
// state to roll back.
func (j *registryJob) Run(ctx context.Context, event *model.ReleaseEvent) *model.JobResult {
	started := time.Now()
	result := &model.JobResult{
		Name: "registry",
		Kind: model.JobKindRegistry,
	}
	defer func() {
		result.Duration = time.Since(started)
	}()

	logger := ctxlog.From(ctx).With("job", "registry")
	ctx = ctxlog.With(ctx, logger)
	logger.Info("starting registry publish job", "tag", event.TagName)

	srcDir, cleanup, err := checkoutSource(ctx, j.github, event)
	if err != nil {
		result.Err = err
		return result
	}
	defer cleanup()

	manifest, err := j.loadManifest(srcDir)
	if err != nil {
		result.Err = err
		return result
	}

	crate, err := crateArchive(srcDir, manifest)
	if err != nil {
		result.Err = err
		return result
	}

	logger.Info("submitting package to registry",
		"name", manifest.Name,
		"version", manifest.Version,
		"crate_bytes", len(crate),
	)

	pkg, err := j.registry.Publish(ctx, manifest, crate)
	if err != nil {
		result.Err = err
		return result
	}

	logger.Info("published package version",
		"name", pkg.Name,
		"version", pkg.Version,
	)

	result.Package = pkg
	return result
}

// loadManifest reads and validates the package manifest from the checkout.
// The lock manifest must be present too; a publish without one would let
// the registry rebuild with silently upgraded dependencies.
func (j *registryJob) loadManifest(srcDir string) (*model.PackageManifest, error) {
	data, err := os.ReadFile(filepath.Join(srcDir, "Cargo.toml"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read package manifest",
			goerr.V("src_dir", srcDir), goerr.T(types.ErrTagRegistry))
	}

	manifest, err := model.ParseManifest(data)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(srcDir, "Cargo.lock")); err != nil {
		return nil, goerr.Wrap(err, "lock manifest missing from checkout",
			goerr.V("name", manifest.Name), goerr.T(types.ErrTagRegistry))
	}

	return manifest, nil
}

// crateArchive packages the checkout as a crate tarball rooted at
// "{name}-{version}/", excluding VCS metadata and build output
func crateArchive(srcDir string, manifest *model.PackageManifest) ([]byte, error) {
	var buf bytes.Buffer
	prefix := manifest.Name + "-" + manifest.Version
	if err := tarutil.Pack(&buf, srcDir, prefix, ".git", "target"); err != nil {
		return nil, goerr.Wrap(err, "failed to package crate",
			goerr.V("name", manifest.Name),
			goerr.V("version", manifest.Version),
			goerr.T(types.ErrTagRegistry))
	}
	return buf.Bytes(), nil
}
