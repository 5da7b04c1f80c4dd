package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
	"github.com/m-mizutani/slipway/pkg/usecase"
)

// stubBuildJob runs a configurable function per target
type stubBuildJob struct {
	fn    func(target *model.PlatformTarget) *model.JobResult
	mu    sync.Mutex
	calls []string
}

func (j *stubBuildJob) Run(ctx context.Context, event *model.ReleaseEvent, target *model.PlatformTarget) *model.JobResult {
	j.mu.Lock()
	j.calls = append(j.calls, target.Triple)
	j.mu.Unlock()
	return j.fn(target)
}

// stubRegistryJob counts invocations and returns a fixed result
type stubRegistryJob struct {
	fn    func() *model.JobResult
	calls atomic.Int32
}

func (j *stubRegistryJob) Run(ctx context.Context, event *model.ReleaseEvent) *model.JobResult {
	j.calls.Add(1)
	return j.fn()
}

func testEvent() *model.ReleaseEvent {
	return &model.ReleaseEvent{
		Owner:     "SuperCuber",
		Repo:      "dotter",
		ReleaseID: 42,
		TagName:   "v1.2.0",
		CommitSHA: "abc123",
	}
}

func okBuild(target *model.PlatformTarget) *model.JobResult {
	return &model.JobResult{
		Name: target.Triple,
		Kind: model.JobKindBuild,
		Asset: &model.ReleaseAsset{
			Name:        target.AssetName,
			ContentType: target.ContentType,
		},
	}
}

func okRegistry() *model.JobResult {
	return &model.JobResult{
		Name:    "registry",
		Kind:    model.JobKindRegistry,
		Package: &model.RegistryPackage{Name: "dotter", Version: "1.2.0"},
	}
}

func TestPipeline_AllJobsSucceed(t *testing.T) {
	buildJob := &stubBuildJob{fn: okBuild}
	registryJob := &stubRegistryJob{fn: okRegistry}

	uc, err := usecase.NewPipeline(buildJob, registryJob, model.DefaultTargets("dotter"))
	gt.NoError(t, err)

	result, err := uc.RunPipeline(context.Background(), testEvent())
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())
	gt.Equal(t, len(result.Jobs), 3)
	gt.Equal(t, registryJob.calls.Load(), int32(1))

	// Exactly one asset per target with the configured name and type
	names := map[string]bool{}
	for i := range result.Jobs {
		job := &result.Jobs[i]
		if job.Kind != model.JobKindBuild {
			continue
		}
		gt.NotNil(t, job.Asset)
		gt.Equal(t, job.Asset.ContentType, "application/octet-stream")
		gt.True(t, !names[job.Asset.Name])
		names[job.Asset.Name] = true
	}
	gt.True(t, names["dotter"])
	gt.True(t, names["dotter.exe"])
}

func TestPipeline_JobIsolation(t *testing.T) {
	// A Windows compile error must not affect the Linux build nor the
	// registry publish
	buildJob := &stubBuildJob{fn: func(target *model.PlatformTarget) *model.JobResult {
		if target.IsWindows() {
			return &model.JobResult{
				Name:        target.Triple,
				Kind:        model.JobKindBuild,
				Err:         goerr.New("compile error", goerr.T(types.ErrTagBuild)),
				Diagnostics: "error[E0308]: mismatched types",
			}
		}
		return okBuild(target)
	}}
	registryJob := &stubRegistryJob{fn: okRegistry}

	uc, err := usecase.NewPipeline(buildJob, registryJob, model.DefaultTargets("dotter"))
	gt.NoError(t, err)

	result, err := uc.RunPipeline(context.Background(), testEvent())
	gt.NoError(t, err)
	gt.True(t, !result.Succeeded())
	gt.Equal(t, result.FailedJobs(), []string{"x86_64-pc-windows-msvc"})
	gt.Equal(t, len(buildJob.calls), 2)
	gt.Equal(t, registryJob.calls.Load(), int32(1))

	// Diagnostics from the failed build are preserved
	for i := range result.Jobs {
		if result.Jobs[i].Name == "x86_64-pc-windows-msvc" {
			gt.String(t, result.Jobs[i].Diagnostics).Contains("E0308")
		}
	}
}

func TestPipeline_PublishGateSkipsOnFailedBuild(t *testing.T) {
	buildJob := &stubBuildJob{fn: func(target *model.PlatformTarget) *model.JobResult {
		if target.IsWindows() {
			return &model.JobResult{Name: target.Triple, Kind: model.JobKindBuild, Err: errors.New("compile error")}
		}
		return okBuild(target)
	}}
	registryJob := &stubRegistryJob{fn: okRegistry}

	uc, err := usecase.NewPipeline(buildJob, registryJob, model.DefaultTargets("dotter"),
		usecase.WithPublishGate())
	gt.NoError(t, err)

	result, err := uc.RunPipeline(context.Background(), testEvent())
	gt.NoError(t, err)
	gt.True(t, !result.Succeeded())

	// The registry job never ran; its result is a gated failure
	gt.Equal(t, registryJob.calls.Load(), int32(0))
	registryResult := result.Jobs[len(result.Jobs)-1]
	gt.Equal(t, registryResult.Kind, model.JobKindRegistry)
	gt.Error(t, registryResult.Err)
	gt.True(t, goerr.HasTag(registryResult.Err, types.ErrTagGated))
}

func TestPipeline_PublishGateRunsAfterBuilds(t *testing.T) {
	var buildsDone atomic.Int32
	buildJob := &stubBuildJob{fn: func(target *model.PlatformTarget) *model.JobResult {
		defer buildsDone.Add(1)
		return okBuild(target)
	}}
	registryJob := &stubRegistryJob{}
	registryJob.fn = func() *model.JobResult {
		// With the gate enabled the registry job starts only after every
		// build reported success
		if buildsDone.Load() != 2 {
			return &model.JobResult{Name: "registry", Kind: model.JobKindRegistry,
				Err: errors.New("registry started before builds finished")}
		}
		return okRegistry()
	}

	uc, err := usecase.NewPipeline(buildJob, registryJob, model.DefaultTargets("dotter"),
		usecase.WithPublishGate())
	gt.NoError(t, err)

	result, err := uc.RunPipeline(context.Background(), testEvent())
	gt.NoError(t, err)
	gt.True(t, result.Succeeded())
	gt.Equal(t, registryJob.calls.Load(), int32(1))
}

func TestPipeline_PanicBecomesJobFailure(t *testing.T) {
	buildJob := &stubBuildJob{fn: func(target *model.PlatformTarget) *model.JobResult {
		if target.IsWindows() {
			panic("toolchain exploded")
		}
		return okBuild(target)
	}}
	registryJob := &stubRegistryJob{fn: okRegistry}

	uc, err := usecase.NewPipeline(buildJob, registryJob, model.DefaultTargets("dotter"))
	gt.NoError(t, err)

	result, err := uc.RunPipeline(context.Background(), testEvent())
	gt.NoError(t, err)
	gt.True(t, !result.Succeeded())
	gt.Equal(t, result.FailedJobs(), []string{"x86_64-pc-windows-msvc"})
	gt.Equal(t, registryJob.calls.Load(), int32(1))
}

func TestPipeline_RejectsCollidingTargets(t *testing.T) {
	targets := []model.PlatformTarget{
		{Triple: "a", AssetName: "dotter", ContentType: "application/octet-stream"},
		{Triple: "b", AssetName: "dotter", ContentType: "application/octet-stream"},
	}

	_, err := usecase.NewPipeline(&stubBuildJob{fn: okBuild}, &stubRegistryJob{fn: okRegistry}, targets)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
}

func TestPipeline_InvalidEvent(t *testing.T) {
	uc, err := usecase.NewPipeline(&stubBuildJob{fn: okBuild}, &stubRegistryJob{fn: okRegistry},
		model.DefaultTargets("dotter"))
	gt.NoError(t, err)

	_, err = uc.RunPipeline(context.Background(), &model.ReleaseEvent{Owner: "o"})
	gt.Error(t, err)
}

// notifyRecorder captures the result passed to NotifyResult
type notifyRecorder struct {
	mu     sync.Mutex
	result *model.PipelineResult
}

func (n *notifyRecorder) NotifyResult(ctx context.Context, result *model.PipelineResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.result = result
	return nil
}

func TestPipeline_NotifierReceivesResult(t *testing.T) {
	recorder := &notifyRecorder{}
	uc, err := usecase.NewPipeline(&stubBuildJob{fn: okBuild}, &stubRegistryJob{fn: okRegistry},
		model.DefaultTargets("dotter"), usecase.WithNotifier(recorder))
	gt.NoError(t, err)

	result, err := uc.RunPipeline(context.Background(), testEvent())
	gt.NoError(t, err)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	gt.NotNil(t, recorder.result)
	gt.Equal(t, recorder.result.RunID, result.RunID)
}
