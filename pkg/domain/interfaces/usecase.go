package interfaces

import (
	"context"

	"github.com/m-mizutani/slipway/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// PipelineUseCase runs the whole release pipeline for one release event
type PipelineUseCase interface {
	// RunPipeline fans out one build job per platform target plus one
	// registry publish job and collects their outcomes. The returned result
	// carries per-job success or failure; the error return is reserved for
	// invalid input.
	RunPipeline(ctx context.Context, event *model.ReleaseEvent) (*model.PipelineResult, error)
}

// BuildJob checks out, builds and uploads one platform artifact
type BuildJob interface {
	Run(ctx context.Context, event *model.ReleaseEvent, target *model.PlatformTarget) *model.JobResult
}

// RegistryJob publishes the project's package version for one release event
type RegistryJob interface {
	Run(ctx context.Context, event *model.ReleaseEvent) *model.JobResult
}
