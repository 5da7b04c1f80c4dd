package usecase_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
	"github.com/m-mizutani/slipway/pkg/usecase"
)

// makeSourceZip builds an in-memory GitHub-style zipball: all entries live
// under a single top-level directory.
func makeSourceZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create("dotter-abc123/" + name)
		gt.NoError(t, err)
		_, err = w.Write([]byte(content))
		gt.NoError(t, err)
	}
	gt.NoError(t, zw.Close())
	return buf.Bytes()
}

func sourceFiles() map[string]string {
	return map[string]string{
		"Cargo.toml":  "[package]\nname = \"dotter\"\nversion = \"1.2.0\"\n",
		"Cargo.lock":  "# locked\n",
		"src/main.rs": "fn main() {}\n",
	}
}

// mockGitHubClient is a mock implementation of GitHubClient
type mockGitHubClient struct {
	zipData   []byte
	zipErr    error
	uploadErr error
	uploads   []uploadCall
}

type uploadCall struct {
	Name        string
	ContentType string
	Path        string
}

func (m *mockGitHubClient) DownloadZipball(ctx context.Context, owner, repo, ref string) ([]byte, error) {
	if m.zipErr != nil {
		return nil, m.zipErr
	}
	return m.zipData, nil
}

func (m *mockGitHubClient) UploadReleaseAsset(ctx context.Context, event *model.ReleaseEvent, name, contentType, path string) (*model.ReleaseAsset, error) {
	m.uploads = append(m.uploads, uploadCall{Name: name, ContentType: contentType, Path: path})
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &model.ReleaseAsset{ID: int64(len(m.uploads)), Name: name, ContentType: contentType, Size: st.Size()}, nil
}

// mockToolchain fakes cargo by dropping a file at the expected artifact path
type mockToolchain struct {
	ensureErr error
	buildErr  error
	buildLog  string
	builds    []string
}

func (m *mockToolchain) EnsureTarget(ctx context.Context, triple string) error {
	return m.ensureErr
}

func (m *mockToolchain) Build(ctx context.Context, srcDir, binary string, target *model.PlatformTarget) (*model.BuildArtifact, string, error) {
	m.builds = append(m.builds, target.Triple)
	if m.buildErr != nil {
		return nil, m.buildLog, m.buildErr
	}

	binPath := filepath.Join(srcDir, "target", target.Triple, "release", target.BinaryName(binary))
	if err := os.MkdirAll(filepath.Dir(binPath), 0o755); err != nil {
		return nil, "", err
	}
	if err := os.WriteFile(binPath, []byte("binary"), 0o755); err != nil {
		return nil, "", err
	}
	return &model.BuildArtifact{
		Target:      *target,
		Path:        binPath,
		Size:        6,
		ContentType: target.ContentType,
	}, m.buildLog, nil
}

// mockDepCache records restore/save calls
type mockDepCache struct {
	restoreHit bool
	restoreErr error
	saveErr    error
	restores   []string
	saves      []string
}

func (m *mockDepCache) Restore(ctx context.Context, key, dir string) (bool, error) {
	m.restores = append(m.restores, key)
	return m.restoreHit, m.restoreErr
}

func (m *mockDepCache) Save(ctx context.Context, key, dir string) error {
	m.saves = append(m.saves, key)
	return m.saveErr
}

func linuxTarget() *model.PlatformTarget {
	targets := model.DefaultTargets("dotter")
	return &targets[0]
}

func TestBuildJob_Success(t *testing.T) {
	gh := &mockGitHubClient{zipData: makeSourceZip(t, sourceFiles())}
	tc := &mockToolchain{buildLog: "Compiling dotter v1.2.0"}

	job := usecase.NewBuildJob(gh, tc, "dotter")
	result := job.Run(context.Background(), testEvent(), linuxTarget())

	gt.NoError(t, result.Err)
	gt.Equal(t, result.Kind, model.JobKindBuild)
	gt.NotNil(t, result.Asset)
	gt.Equal(t, result.Asset.Name, "dotter")
	gt.Equal(t, result.Asset.ContentType, "application/octet-stream")
	gt.String(t, result.Diagnostics).Contains("Compiling")

	gt.Equal(t, len(gh.uploads), 1)
	gt.Equal(t, gh.uploads[0].Name, "dotter")
}

func TestBuildJob_CheckoutFailure(t *testing.T) {
	gh := &mockGitHubClient{zipErr: errors.New("network error")}
	tc := &mockToolchain{}

	job := usecase.NewBuildJob(gh, tc, "dotter")
	result := job.Run(context.Background(), testEvent(), linuxTarget())

	gt.Error(t, result.Err)
	gt.True(t, goerr.HasTag(result.Err, types.ErrTagEnvironment))
	gt.Equal(t, len(tc.builds), 0)
	gt.Equal(t, len(gh.uploads), 0)
}

func TestBuildJob_CompileFailure(t *testing.T) {
	gh := &mockGitHubClient{zipData: makeSourceZip(t, sourceFiles())}
	tc := &mockToolchain{
		buildErr: goerr.New("cargo build failed", goerr.T(types.ErrTagBuild)),
		buildLog: "error[E0308]: mismatched types",
	}

	job := usecase.NewBuildJob(gh, tc, "dotter")
	result := job.Run(context.Background(), testEvent(), linuxTarget())

	gt.Error(t, result.Err)
	gt.True(t, goerr.HasTag(result.Err, types.ErrTagBuild))
	// Verbose diagnostics are preserved for triage
	gt.String(t, result.Diagnostics).Contains("E0308")
	// Nothing is uploaded for a failed build
	gt.Equal(t, len(gh.uploads), 0)
}

func TestBuildJob_UploadConflict(t *testing.T) {
	gh := &mockGitHubClient{
		zipData:   makeSourceZip(t, sourceFiles()),
		uploadErr: goerr.New("asset name already exists on release", goerr.T(types.ErrTagUpload)),
	}
	tc := &mockToolchain{}

	job := usecase.NewBuildJob(gh, tc, "dotter")
	result := job.Run(context.Background(), testEvent(), linuxTarget())

	gt.Error(t, result.Err)
	gt.True(t, goerr.HasTag(result.Err, types.ErrTagUpload))
	// Exactly one attempt, no retry
	gt.Equal(t, len(gh.uploads), 1)
}

func TestBuildJob_CacheFailureDegradesToColdBuild(t *testing.T) {
	gh := &mockGitHubClient{zipData: makeSourceZip(t, sourceFiles())}
	tc := &mockToolchain{}
	cache := &mockDepCache{restoreErr: errors.New("bucket unavailable")}

	job := usecase.NewBuildJob(gh, tc, "dotter", usecase.WithDepCache(cache))
	result := job.Run(context.Background(), testEvent(), linuxTarget())

	// Cache trouble never fails the build
	gt.NoError(t, result.Err)
	gt.NotNil(t, result.Asset)
	gt.Equal(t, len(cache.restores), 1)
}

func TestBuildJob_CacheRoundTrip(t *testing.T) {
	gh := &mockGitHubClient{zipData: makeSourceZip(t, sourceFiles())}
	tc := &mockToolchain{}
	cache := &mockDepCache{restoreHit: true}

	job := usecase.NewBuildJob(gh, tc, "dotter", usecase.WithDepCache(cache))
	result := job.Run(context.Background(), testEvent(), linuxTarget())

	gt.NoError(t, result.Err)
	gt.Equal(t, len(cache.restores), 1)
	gt.Equal(t, len(cache.saves), 1)
	// Save reuses the restore key
	gt.Equal(t, cache.restores[0], cache.saves[0])
}
