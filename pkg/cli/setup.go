package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/slipway/pkg/cli/config"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/infra/depcache"
	"github.com/m-mizutani/slipway/pkg/infra/notify"
	"github.com/m-mizutani/slipway/pkg/infra/toolchain"
	"github.com/m-mizutani/slipway/pkg/usecase"
)

// newPipeline wires infra clients and usecases into the pipeline
// orchestrator from the given configuration
func newPipeline(ctx context.Context, githubCfg *config.GitHub, registryCfg *config.Registry, pipelineCfg *config.Pipeline) (interfaces.PipelineUseCase, error) {
	githubClient, err := githubCfg.NewClient()
	if err != nil {
		return nil, err
	}

	registryClient, err := registryCfg.NewClient()
	if err != nil {
		return nil, err
	}

	targets, err := pipelineCfg.Targets()
	if err != nil {
		return nil, err
	}

	var buildOpts []usecase.BuildJobOption
	if pipelineCfg.CacheBucket != "" {
		cache, err := depcache.New(ctx, pipelineCfg.CacheBucket)
		if err != nil {
			return nil, err
		}
		buildOpts = append(buildOpts, usecase.WithDepCache(cache))
		ctxlog.From(ctx).Info("dependency cache enabled", "bucket", pipelineCfg.CacheBucket)
	}

	buildJob := usecase.NewBuildJob(githubClient, toolchain.New(), pipelineCfg.Binary, buildOpts...)
	registryJob := usecase.NewRegistryJob(githubClient, registryClient)

	var pipelineOpts []usecase.PipelineOption
	if pipelineCfg.PublishGate {
		pipelineOpts = append(pipelineOpts, usecase.WithPublishGate())
	}
	if pipelineCfg.SlackWebhook != "" {
		pipelineOpts = append(pipelineOpts, usecase.WithNotifier(notify.NewSlack(pipelineCfg.SlackWebhook)))
	}

	return usecase.NewPipeline(buildJob, registryJob, targets, pipelineOpts...)
}
