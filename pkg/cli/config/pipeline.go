package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

// Pipeline holds pipeline behavior configuration
type Pipeline struct {
	Binary       string
	TargetsFile  string
	PublishGate  bool
	CacheBucket  string
	SlackWebhook string
}

// Flags returns CLI flags for pipeline configuration
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "binary",
			Usage:       "Name of the binary the project builds",
			Required:    true,
			Destination: &c.Binary,
			Sources:     cli.EnvVars("SLIPWAY_BINARY"),
		},
		&cli.StringFlag{
			Name:        "targets-file",
			Usage:       "YAML file listing platform targets (defaults to built-in Linux + Windows)",
			Destination: &c.TargetsFile,
			Sources:     cli.EnvVars("SLIPWAY_TARGETS_FILE"),
		},
		&cli.BoolFlag{
			Name:        "publish-gate",
			Usage:       "Publish to the registry only after all platform builds succeed",
			Destination: &c.PublishGate,
			Sources:     cli.EnvVars("SLIPWAY_PUBLISH_GATE"),
		},
		&cli.StringFlag{
			Name:        "cache-bucket",
			Usage:       "GCS bucket for the dependency cache (disabled when empty)",
			Destination: &c.CacheBucket,
			Sources:     cli.EnvVars("SLIPWAY_CACHE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "slack-webhook",
			Usage:       "Slack incoming webhook URL for pipeline summaries (disabled when empty)",
			Destination: &c.SlackWebhook,
			Sources:     cli.EnvVars("SLIPWAY_SLACK_WEBHOOK"),
		},
	}
}

// Targets returns the effective platform target list: the targets file when
// configured, the built-in default list otherwise.
func (c *Pipeline) Targets() ([]model.PlatformTarget, error) {
	if c.TargetsFile == "" {
		return model.DefaultTargets(c.Binary), nil
	}

	data, err := os.ReadFile(c.TargetsFile)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read targets file", goerr.V("path", c.TargetsFile))
	}
	return model.LoadTargets(data)
}
