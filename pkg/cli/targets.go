package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/slipway/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

func cmdTargets() *cli.Command {
	var pipelineCfg config.Pipeline

	return &cli.Command{
		Name:  "targets",
		Usage: "Print the effective platform target list",
		Flags: pipelineCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			targets, err := pipelineCfg.Targets()
			if err != nil {
				return err
			}

			for _, t := range targets {
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", t.Triple, t.AssetName, t.ContentType)
			}
			return nil
		},
	}
}
