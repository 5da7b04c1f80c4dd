package usecase

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
)

type pipeline struct {
	targets     []model.PlatformTarget
	buildJob    interfaces.BuildJob
	registryJob interfaces.RegistryJob
	publishGate bool
	notifier    interfaces.Notifier
}

// PipelineOption is a functional option for pipeline configuration
type PipelineOption func(*pipeline)

// WithPublishGate makes the registry publish wait for all build jobs and
// skip publication when any build failed. Without it the registry job runs
// concurrently with the builds.
func WithPublishGate() PipelineOption {
	return func(p *pipeline) {
		p.publishGate = true
	}
}

// WithNotifier reports each finished run to the given notifier
func WithNotifier(notifier interfaces.Notifier) PipelineOption {
	return func(p *pipeline) {
		p.notifier = notifier
	}
}

// NewPipeline creates the orchestrator that fans out one build job per
// platform target plus one registry publish job. Targets are validated up
// front; asset name collisions are configuration errors, not runtime races.
func NewPipeline(buildJob interfaces.BuildJob, registryJob interfaces.RegistryJob, targets []model.PlatformTarget, opts ...PipelineOption) (interfaces.PipelineUseCase, error) {
	if err := model.ValidateTargets(targets); err != nil {
		return nil, err
	}

	p := &pipeline{
		targets:     targets,
		buildJob:    buildJob,
		registryJob: registryJob,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunPipeline runs all jobs for one release event and collects their
// outcomes. Jobs are isolated: one job failing neither cancels nor affects
// the others, and nothing is retried. The error return is reserved for
// invalid input; job failures live on the result.
func (uc *pipeline) RunPipeline(ctx context.Context, event *model.ReleaseEvent) (*model.PipelineResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	result := &model.PipelineResult{
		RunID:     uuid.New(),
		Event:     event,
		StartedAt: time.Now(),
	}

	logger := ctxlog.From(ctx).With(
		"run_id", result.RunID.String(),
		"repo", event.Owner+"/"+event.Repo,
		"tag", event.TagName,
	)
	ctx = ctxlog.With(ctx, logger)

	logger.Info("starting release pipeline",
		"targets", len(uc.targets),
		"publish_gate", uc.publishGate,
	)

	buildResults := make([]*model.JobResult, len(uc.targets))
	var wg sync.WaitGroup
	for i := range uc.targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buildResults[i] = uc.runBuild(ctx, event, &uc.targets[i])
		}(i)
	}

	var registryResult *model.JobResult
	if !uc.publishGate {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registryResult = uc.runRegistry(ctx, event)
		}()
	}

	wg.Wait()

	if uc.publishGate {
		registryResult = uc.runGatedRegistry(ctx, event, buildResults)
	}

	for _, r := range buildResults {
		result.Jobs = append(result.Jobs, *r)
	}
	result.Jobs = append(result.Jobs, *registryResult)
	result.Duration = time.Since(result.StartedAt)

	uc.report(ctx, result)
	return result, nil
}

// runGatedRegistry starts the registry job only when every build succeeded
func (uc *pipeline) runGatedRegistry(ctx context.Context, event *model.ReleaseEvent, builds []*model.JobResult) *model.JobResult {
	var failed []string
	for _, r := range builds {
		if !r.Succeeded() {
			failed = append(failed, r.Name)
		}
	}
	if len(failed) > 0 {
		return &model.JobResult{
			Name: "registry",
			Kind: model.JobKindRegistry,
			Err: goerr.New("registry publish gated on failed builds",
				goerr.V("failed_builds", failed),
				goerr.T(types.ErrTagGated)),
		}
	}
	return uc.runRegistry(ctx, event)
}

// runBuild shields the orchestrator from a panicking build job; the panic
// becomes that job's failure
func (uc *pipeline) runBuild(ctx context.Context, event *model.ReleaseEvent, target *model.PlatformTarget) (result *model.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &model.JobResult{
				Name: target.Triple,
				Kind: model.JobKindBuild,
				Err: goerr.New("panic in build job",
					goerr.V("recover", r),
					goerr.V("stack", string(debug.Stack()))),
			}
		}
	}()
	return uc.buildJob.Run(ctx, event, target)
}

func (uc *pipeline) runRegistry(ctx context.Context, event *model.ReleaseEvent) (result *model.JobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &model.JobResult{
				Name: "registry",
				Kind: model.JobKindRegistry,
				Err: goerr.New("panic in registry job",
					goerr.V("recover", r),
					goerr.V("stack", string(debug.Stack()))),
			}
		}
	}()
	return uc.registryJob.Run(ctx, event)
}

// report logs per-job outcomes, forwards failures to Sentry when enabled,
// and notifies the configured channel
func (uc *pipeline) report(ctx context.Context, result *model.PipelineResult) {
	logger := ctxlog.From(ctx)

	for i := range result.Jobs {
		job := &result.Jobs[i]
		if job.Succeeded() {
			logger.Info("pipeline job succeeded",
				"job", job.Name,
				"kind", job.Kind,
				"duration", job.Duration,
			)
			continue
		}

		logger.Error("pipeline job failed",
			"job", job.Name,
			"kind", job.Kind,
			"duration", job.Duration,
			"error", job.Err,
		)
		if job.Diagnostics != "" {
			logger.Error("build diagnostics", "job", job.Name, "output", job.Diagnostics)
		}
		if hub := sentry.CurrentHub(); hub.Client() != nil {
			hub.CaptureException(job.Err)
		}
	}

	logger.Info("release pipeline finished",
		"succeeded", result.Succeeded(),
		"failed_jobs", result.FailedJobs(),
		"duration", result.Duration,
	)

	if uc.notifier != nil {
		if err := uc.notifier.NotifyResult(ctx, result); err != nil {
			logger.Warn("failed to send pipeline notification", "error", err)
		}
	}
}
