package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	githubinfra "github.com/m-mizutani/slipway/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub authentication configuration. Either a token or a
// GitHub App identity (app ID + installation ID + private key) must be
// provided; credentials are passed explicitly into the client, never read
// from ambient process state by the pipeline itself.
type GitHub struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	WebhookSecret  string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub access token (alternative to App auth)",
			Destination: &c.Token,
			Sources:     cli.EnvVars("SLIPWAY_GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("SLIPWAY_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("SLIPWAY_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "Path to GitHub App private key",
			Destination: &c.PrivateKeyPath,
			Sources:     cli.EnvVars("SLIPWAY_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("SLIPWAY_GITHUB_WEBHOOK_SECRET"),
		},
	}
}

// NewClient builds a GitHub client from the configured credentials, App
// auth taking precedence over a plain token
func (c *GitHub) NewClient() (interfaces.GitHubClient, error) {
	if c.AppID != 0 {
		if c.InstallationID == 0 || c.PrivateKeyPath == "" {
			return nil, goerr.New("GitHub App auth requires installation ID and private key",
				goerr.V("app_id", c.AppID))
		}
		key, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key",
				goerr.V("path", c.PrivateKeyPath))
		}
		return githubinfra.NewAppClient(c.AppID, c.InstallationID, key)
	}

	if c.Token == "" {
		return nil, goerr.New("either a GitHub token or GitHub App credentials are required")
	}
	return githubinfra.NewTokenClient(c.Token), nil
}
