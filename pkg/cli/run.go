package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/cli/config"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdRun() *cli.Command {
	var (
		githubCfg   config.GitHub
		registryCfg config.Registry
		pipelineCfg config.Pipeline
		sentryCfg   config.Sentry

		owner     string
		repo      string
		tag       string
		commit    string
		releaseID int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Repository owner",
			Required:    true,
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "repo",
			Usage:       "Repository name",
			Required:    true,
			Destination: &repo,
		},
		&cli.StringFlag{
			Name:        "tag",
			Usage:       "Release tag",
			Required:    true,
			Destination: &tag,
		},
		&cli.StringFlag{
			Name:        "commit",
			Usage:       "Commit SHA the release points at",
			Required:    true,
			Destination: &commit,
		},
		&cli.Int64Flag{
			Name:        "release-id",
			Usage:       "Release ID used as upload handle",
			Required:    true,
			Destination: &releaseID,
		},
	}
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, registryCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run the release pipeline once for a given release",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := sentryCfg.Configure(); err != nil {
				return err
			}

			pipelineUC, err := newPipeline(ctx, &githubCfg, &registryCfg, &pipelineCfg)
			if err != nil {
				return goerr.Wrap(err, "failed to assemble pipeline")
			}

			event := &model.ReleaseEvent{
				Owner:     owner,
				Repo:      repo,
				ReleaseID: releaseID,
				TagName:   tag,
				CommitSHA: commit,
			}

			result, err := pipelineUC.RunPipeline(ctx, event)
			if err != nil {
				return err
			}

			printSummary(result)
			if !result.Succeeded() {
				return goerr.New("pipeline finished with failed jobs",
					goerr.V("failed_jobs", result.FailedJobs()))
			}
			return nil
		},
	}
}

func printSummary(result *model.PipelineResult) {
	ok := color.New(color.FgGreen)
	ng := color.New(color.FgRed)

	fmt.Fprintf(os.Stdout, "\nRelease pipeline for %s/%s %s (run %s)\n",
		result.Event.Owner, result.Event.Repo, result.Event.TagName, result.RunID)

	for i := range result.Jobs {
		job := &result.Jobs[i]
		if job.Succeeded() {
			ok.Fprintf(os.Stdout, "  ✓ %s/%s (%s)\n", job.Kind, job.Name, job.Duration.Round(10*time.Millisecond))
		} else {
			ng.Fprintf(os.Stdout, "  ✗ %s/%s: %v\n", job.Kind, job.Name, job.Err)
		}
	}
	fmt.Fprintln(os.Stdout)
}
