package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
)

// checkoutSource materializes the released commit into a fresh temporary
// directory and returns the source root with a cleanup function. Each job
// gets its own private checkout; nothing is shared between jobs.
func checkoutSource(ctx context.Context, gh interfaces.GitHubClient, event *model.ReleaseEvent) (string, func(), error) {
	logger := ctxlog.From(ctx)

	zipData, err := gh.DownloadZipball(ctx, event.Owner, event.Repo, event.CommitSHA)
	if err != nil {
		return "", nil, goerr.Wrap(err, "failed to download source zipball",
			goerr.V("owner", event.Owner),
			goerr.V("repo", event.Repo),
			goerr.V("ref", event.CommitSHA),
			goerr.T(types.ErrTagEnvironment))
	}

	logger.Debug("downloaded source zipball",
		"size_bytes", len(zipData),
		"ref", event.CommitSHA,
	)

	tempDir, err := os.MkdirTemp("", "slipway-src-*")
	if err != nil {
		return "", nil, goerr.Wrap(err, "failed to create checkout directory",
			goerr.T(types.ErrTagEnvironment))
	}
	cleanup := func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("failed to clean up checkout directory",
				"temp_dir", tempDir, "error", err)
		}
	}

	if err := os.Chmod(tempDir, 0o700); err != nil {
		cleanup()
		return "", nil, goerr.Wrap(err, "failed to set checkout directory permissions",
			goerr.V("temp_dir", tempDir), goerr.T(types.ErrTagEnvironment))
	}

	srcRoot, err := extractZip(zipData, tempDir)
	if err != nil {
		cleanup()
		return "", nil, goerr.Wrap(err, "failed to extract source zipball",
			goerr.V("temp_dir", tempDir), goerr.T(types.ErrTagEnvironment))
	}

	logger.Debug("extracted source checkout", "src_root", srcRoot)
	return srcRoot, cleanup, nil
}

// extractZip extracts ZIP data into destDir and returns the source root.
// GitHub zipballs wrap the tree in a single "{owner}-{repo}-{sha}" directory,
// which becomes the root; an archive without one uses destDir itself.
func extractZip(zipData []byte, destDir string) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return "", goerr.Wrap(err, "failed to open zip archive")
	}

	topLevels := map[string]bool{}
	for _, file := range zipReader.File {
		if err := extractFile(file, destDir); err != nil {
			return "", err
		}
		topLevels[strings.SplitN(file.Name, "/", 2)[0]] = true
	}

	if len(topLevels) == 1 {
		for name := range topLevels {
			return filepath.Join(destDir, name), nil
		}
	}
	return destDir, nil
}

// extractFile extracts a single file from ZIP to the destination directory
func extractFile(file *zip.File, destDir string) error {
	// Security check: prevent path traversal attacks
	destPath := filepath.Join(destDir, file.Name)
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return goerr.New("invalid file path in zip archive",
			goerr.V("file", file.Name), goerr.V("dest", destPath))
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(destPath, file.FileInfo().Mode())
	}

	rc, err := file.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open file in zip", goerr.V("file", file.Name))
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create parent directories", goerr.V("dest", destPath))
	}

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.FileInfo().Mode())
	if err != nil {
		return goerr.Wrap(err, "failed to create destination file", goerr.V("dest", destPath))
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, rc); err != nil {
		return goerr.Wrap(err, "failed to copy file content", goerr.V("dest", destPath))
	}

	return nil
}
