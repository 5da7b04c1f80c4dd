package interfaces

import (
	"context"

	"github.com/m-mizutani/slipway/pkg/domain/model"
)

// GitHubClient defines the GitHub operations pipeline jobs depend on:
// materializing the released source tree and attaching build artifacts to
// the release.
type GitHubClient interface {
	// DownloadZipball downloads the source code zipball for a specific commit
	DownloadZipball(ctx context.Context, owner, repo, ref string) ([]byte, error)

	// UploadReleaseAsset attaches the file at path to the event's release as
	// a named, typed asset. It is attempted exactly once; the hosting service
	// rejects duplicate names.
	UploadReleaseAsset(ctx context.Context, event *model.ReleaseEvent, name, contentType, path string) (*model.ReleaseAsset, error)
}

// Toolchain produces a build artifact for one platform target from a source
// checkout.
type Toolchain interface {
	// EnsureTarget installs toolchain support for the target triple
	EnsureTarget(ctx context.Context, triple string) error

	// Build compiles the project in srcDir for the target in release mode
	// with locked dependencies. The returned string is the full build output,
	// kept for failure triage.
	Build(ctx context.Context, srcDir, binary string, target *model.PlatformTarget) (*model.BuildArtifact, string, error)
}

// RegistryClient publishes a packaged crate to the central package registry
type RegistryClient interface {
	Publish(ctx context.Context, manifest *model.PackageManifest, crate []byte) (*model.RegistryPackage, error)
}

// DepCache restores and saves dependency caches between pipeline runs. A
// warm cache only speeds builds up; cache failures must never change build
// outcomes.
type DepCache interface {
	// Restore extracts the cache for key into dir, reporting whether a cache
	// entry existed
	Restore(ctx context.Context, key, dir string) (bool, error)

	// Save archives dir as the cache entry for key
	Save(ctx context.Context, key, dir string) error
}

// Notifier reports a finished pipeline run to an external channel
type Notifier interface {
	NotifyResult(ctx context.Context, result *model.PipelineResult) error
}
