package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/logyard/internal/classify"
)

// webhookExecutor abstracts the discordgo.Session method we use, enabling test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts events to a channel webhook.
type Discord struct {
	webhookID string
	token     string
	exec      webhookExecutor
}

// NewDiscord parses a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	sess, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: discord: %w", err)
	}
	return &Discord{webhookID: id, token: token, exec: sess}, nil
}

func parseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("notify: discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("notify: discord webhook url %q has no /webhooks/{id}/{token}", raw)
}

func (d *Discord) Notify(ctx context.Context, ev Event) error {
	_, err := d.exec.WebhookExecute(d.webhookID, d.token, false, discordParams(ev), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: discord: %w", err)
	}
	return nil
}

func discordParams(ev Event) *discordgo.WebhookParams {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title(),
		Description: ev.Summary(),
		Color:       discordColor(ev.Outcome),
		Timestamp:   ev.At.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Outcome", Value: ev.Outcome.String(), Inline: true},
		},
	}
	if ev.SessionID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Session", Value: ev.SessionID, Inline: true})
	}
	if tail := ev.Tail(); tail != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Last lines", Value: "```\n" + tail + "\n```"})
	}
	return &discordgo.WebhookParams{
		Username: "logyard",
		Embeds:   []*discordgo.MessageEmbed{embed},
	}
}

func discordColor(o classify.Outcome) int {
	switch o {
	case classify.Failed:
		return 0xE74C3C
	case classify.Completed:
		return 0x2ECC71
	default:
		return 0x95A5A6
	}
}
