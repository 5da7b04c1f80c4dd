package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
)

type buildJob struct {
	github    interfaces.GitHubClient
	toolchain interfaces.Toolchain
	cache     interfaces.DepCache
	binary    string
}

// BuildJobOption is a functional option for build job configuration
type BuildJobOption func(*buildJob)

// WithDepCache enables dependency cache restore/save around the build
func WithDepCache(cache interfaces.DepCache) BuildJobOption {
	return func(j *buildJob) {
		j.cache = cache
	}
}

// NewBuildJob creates the job that produces and uploads one platform
// artifact: checkout, toolchain setup, locked release build, asset upload.
// binary is the name of the executable the project's build emits.
func NewBuildJob(githubClient interfaces.GitHubClient, toolchain interfaces.Toolchain, binary string, opts ...BuildJobOption) interfaces.BuildJob {
	j := &buildJob{
		github:    githubClient,
		toolchain: toolchain,
		binary:    binary,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes the job for one target. Every failure is terminal for this
// job only and is recorded on the result, never retried.
func (j *buildJob) Run(ctx context.Context, event *model.ReleaseEvent, target *model.PlatformTarget) *model.JobResult {
	started := time.Now()
	result := &model.JobResult{
		Name: target.Triple,
		Kind: model.JobKindBuild,
	}
	defer func() {
		result.Duration = time.Since(started)
	}()

	logger := ctxlog.From(ctx).With("target", target.Triple)
	ctx = ctxlog.With(ctx, logger)
	logger.Info("starting build job", "asset_name", target.AssetName)

	srcDir, cleanup, err := checkoutSource(ctx, j.github, event)
	if err != nil {
		result.Err = err
		return result
	}
	defer cleanup()

	if err := j.toolchain.EnsureTarget(ctx, target.Triple); err != nil {
		result.Err = err
		return result
	}

	cacheKey := j.restoreCache(ctx, event, srcDir)

	artifact, buildLog, err := j.toolchain.Build(ctx, srcDir, j.binary, target)
	result.Diagnostics = buildLog
	if err != nil {
		result.Err = err
		return result
	}

	logger.Info("build completed",
		"artifact", artifact.Path,
		"size_bytes", artifact.Size,
	)

	j.saveCache(ctx, cacheKey, srcDir)

	asset, err := j.github.UploadReleaseAsset(ctx, event, target.AssetName, target.ContentType, artifact.Path)
	if err != nil {
		result.Err = err
		return result
	}

	logger.Info("uploaded release asset",
		"asset_name", asset.Name,
		"asset_id", asset.ID,
		"content_type", asset.ContentType,
	)

	result.Asset = asset
	return result
}

// restoreCache warms the build's target directory from the dependency cache.
// Cache trouble degrades to a cold build and is logged, never fatal. The
// returned key is reused by saveCache; it is empty when caching is off or
// the key could not be derived.
func (j *buildJob) restoreCache(ctx context.Context, event *model.ReleaseEvent, srcDir string) string {
	if j.cache == nil {
		return ""
	}
	logger := ctxlog.From(ctx)

	key, err := depCacheKey(event, srcDir)
	if err != nil {
		logger.Warn("failed to derive dependency cache key", "error", err)
		return ""
	}

	hit, err := j.cache.Restore(ctx, key, filepath.Join(srcDir, "target"))
	if err != nil {
		logger.Warn("dependency cache restore failed, building cold", "error", err)
		return key
	}
	logger.Debug("dependency cache lookup", "key", key, "hit", hit)
	return key
}

// saveCache persists the build's target directory for the next run
func (j *buildJob) saveCache(ctx context.Context, key, srcDir string) {
	if j.cache == nil || key == "" {
		return
	}
	if err := j.cache.Save(ctx, key, filepath.Join(srcDir, "target")); err != nil {
		ctxlog.From(ctx).Warn("dependency cache save failed", "key", key, "error", err)
	}
}

// depCacheKey derives the cache key from the project identity and the lock
// manifest, so any dependency change invalidates the cache.
func depCacheKey(event *model.ReleaseEvent, srcDir string) (string, error) {
	lock, err := os.ReadFile(filepath.Join(srcDir, "Cargo.lock"))
	if err != nil {
		return "", goerr.Wrap(err, "failed to read lock manifest", goerr.T(types.ErrTagEnvironment))
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s/%s\n", event.Owner, event.Repo)
	h.Write(lock)
	return hex.EncodeToString(h.Sum(nil)), nil
}
