package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/utils/async"
)

type webhookUseCase struct {
	pipeline interfaces.PipelineUseCase
}

// NewWebhook creates a new instance of WebhookUseCase. Supported events
// start a pipeline run in the background; everything else is ignored.
func NewWebhook(pipeline interfaces.PipelineUseCase) interfaces.WebhookUseCase {
	return &webhookUseCase{
		pipeline: pipeline,
	}
}

// ProcessEvent processes a webhook event
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("received webhook event",
		"id", event.ID,
		"type", event.Type,
		"action", event.Action,
		"repository", event.Repository,
		"sender", event.Sender,
	)

	if !event.IsSupportedEvent() {
		logger.Debug("ignoring unsupported event",
			"type", event.Type,
			"action", event.Action,
		)
		return nil
	}

	release := event.Release
	async.Dispatch(ctx, "release-pipeline", func(ctx context.Context) error {
		result, err := uc.pipeline.RunPipeline(ctx, release)
		if err != nil {
			return err
		}
		if !result.Succeeded() {
			return goerr.New("pipeline finished with failed jobs",
				goerr.V("failed_jobs", result.FailedJobs()),
				goerr.V("tag", release.TagName))
		}
		return nil
	})

	return nil
}
