package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/slack-go/slack"
)

// SlackNotifier posts pipeline run summaries to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
}

// NewSlack creates a Slack notifier for the given incoming webhook URL
func NewSlack(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
	}
}

var _ interfaces.Notifier = (*SlackNotifier)(nil)

// NotifyResult posts a one-attachment summary of the pipeline run with one
// field per job
func (n *SlackNotifier) NotifyResult(ctx context.Context, result *model.PipelineResult) error {
	color := "good"
	status := "succeeded"
	if !result.Succeeded() {
		color = "danger"
		status = "failed"
	}

	fields := make([]slack.AttachmentField, 0, len(result.Jobs))
	for i := range result.Jobs {
		job := &result.Jobs[i]
		value := fmt.Sprintf("ok (%s)", job.Duration.Round(10*time.Millisecond))
		if job.Err != nil {
			value = job.Err.Error()
		}
		fields = append(fields, slack.AttachmentField{
			Title: fmt.Sprintf("%s: %s", job.Kind, job.Name),
			Value: value,
			Short: true,
		})
	}

	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Color: color,
				Title: fmt.Sprintf("Release pipeline %s: %s/%s %s",
					status, result.Event.Owner, result.Event.Repo, result.Event.TagName),
				Fields: fields,
				Footer: fmt.Sprintf("run %s", result.RunID),
			},
		},
	}

	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post pipeline summary to Slack")
	}
	return nil
}
