package notify

import (
	"context"
	"fmt"
	"net/http"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/logyard/internal/classify"
)

// Slack posts events to an incoming webhook.
type Slack struct {
	URL  string
	HTTP *http.Client
}

// NewSlack returns a Slack notifier for the webhook URL.
func NewSlack(url string) *Slack {
	return &Slack{URL: url}
}

func (s *Slack) Notify(ctx context.Context, ev Event) error {
	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	if err := slackapi.PostWebhookCustomHTTPContext(ctx, s.URL, client, slackMessage(ev)); err != nil {
		return fmt.Errorf("notify: slack: %w", err)
	}
	return nil
}

func slackMessage(ev Event) *slackapi.WebhookMessage {
	att := slackapi.Attachment{
		Color:  outcomeColor(ev.Outcome),
		Title:  ev.Title(),
		Text:   ev.Summary(),
		Footer: "logyard",
		Fields: []slackapi.AttachmentField{
			{Title: "Outcome", Value: ev.Outcome.String(), Short: true},
		},
	}
	if ev.SessionID != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: "Session", Value: ev.SessionID, Short: true})
	}
	if tail := ev.Tail(); tail != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: "Last lines", Value: "```" + tail + "```"})
	}
	return &slackapi.WebhookMessage{
		Text:        ev.Title(),
		Attachments: []slackapi.Attachment{att},
	}
}

func outcomeColor(o classify.Outcome) string {
	switch o {
	case classify.Failed:
		return "danger"
	case classify.Completed:
		return "good"
	default:
		return "#999999"
	}
}
