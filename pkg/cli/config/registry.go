package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/infra/registry"
	"github.com/urfave/cli/v3"
)

// Registry holds package registry configuration
type Registry struct {
	URL   string
	Token string
}

// Flags returns CLI flags for registry configuration
func (c *Registry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "registry-url",
			Usage:       "Package registry base URL",
			Value:       registry.DefaultBaseURL,
			Destination: &c.URL,
			Sources:     cli.EnvVars("SLIPWAY_REGISTRY_URL"),
		},
		&cli.StringFlag{
			Name:        "registry-token",
			Usage:       "Package registry publish token",
			Destination: &c.Token,
			Sources:     cli.EnvVars("SLIPWAY_REGISTRY_TOKEN"),
		},
	}
}

// NewClient builds a registry client from the configured credential
func (c *Registry) NewClient() (*registry.Client, error) {
	if c.Token == "" {
		return nil, goerr.New("registry token is required")
	}
	return registry.New(c.URL, c.Token), nil
}
