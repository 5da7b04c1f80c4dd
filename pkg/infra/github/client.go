package github

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
)

type client struct {
	githubClient *github.Client
}

// NewAppClient creates a GitHub client authenticated as a GitHub App
// installation
func NewAppClient(appID, installationID int64, privateKey []byte) (interfaces.GitHubClient, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID))
	}

	return &client{
		githubClient: github.NewClient(&http.Client{Transport: itr}),
	}, nil
}

// NewTokenClient creates a GitHub client authenticated with a personal or
// workflow access token
func NewTokenClient(token string) interfaces.GitHubClient {
	return &client{
		githubClient: github.NewClient(nil).WithAuthToken(token),
	}
}

// DownloadZipball downloads the source code zipball for a specific commit
func (c *client) DownloadZipball(ctx context.Context, owner, repo, ref string) ([]byte, error) {
	url, _, err := c.githubClient.Repositories.GetArchiveLink(ctx, owner, repo, github.Zipball, &github.RepositoryContentGetOptions{
		Ref: ref,
	}, 3) // Follow up to 3 redirects
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get zipball download URL",
			goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("ref", ref))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create download request", goerr.V("url", url.String()))
	}

	// Reuse the authenticated transport for the redirect target
	httpClient := &http.Client{Transport: c.githubClient.Client().Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to download zipball", goerr.V("url", url.String()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.New("unexpected status code for zipball download",
			goerr.V("status", resp.StatusCode), goerr.V("url", url.String()))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read zipball response body")
	}

	return data, nil
}

// UploadReleaseAsset attaches the file at path to the release as a named,
// typed asset. The upload is attempted exactly once and the result is not
// read back; a duplicate asset name is rejected by GitHub, never
// overwritten.
func (c *client) UploadReleaseAsset(ctx context.Context, event *model.ReleaseEvent, name, contentType, path string) (*model.ReleaseAsset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open artifact for upload",
			goerr.V("path", path), goerr.T(types.ErrTagUpload))
	}
	defer f.Close()

	opts := &github.UploadOptions{
		Name:      name,
		MediaType: contentType,
	}
	asset, resp, err := c.githubClient.Repositories.UploadReleaseAsset(ctx, event.Owner, event.Repo, event.ReleaseID, opts, f)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			return nil, goerr.Wrap(err, "asset name already exists on release",
				goerr.V("asset_name", name),
				goerr.V("release_id", event.ReleaseID),
				goerr.T(types.ErrTagUpload))
		}
		return nil, goerr.Wrap(err, "failed to upload release asset",
			goerr.V("asset_name", name),
			goerr.V("release_id", event.ReleaseID),
			goerr.T(types.ErrTagUpload))
	}

	return &model.ReleaseAsset{
		ID:          asset.GetID(),
		Name:        asset.GetName(),
		ContentType: asset.GetContentType(),
		Size:        int64(asset.GetSize()),
	}, nil
}
