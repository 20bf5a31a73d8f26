package outputs

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/types"
)

const slackPayloadPreview = 300

var severityColors = map[types.Severity]string{
	types.SeverityLow:    "#439FE0",
	types.SeverityMedium: "warning",
	types.SeverityHigh:   "danger",
}

// SlackOutput posts events at or above a severity to an incoming webhook.
type SlackOutput struct {
	cfg         *csconfig.SlackOutputCfg
	minSeverity types.Severity
	limiter     *rate.Limiter
}

func NewSlackOutput(cfg *csconfig.SlackOutputCfg) *SlackOutput {
	limiter := rate.NewLimiter(rate.Inf, 0)

	if cfg.MaxPerMinute != nil && *cfg.MaxPerMinute > 0 {
		n := *cfg.MaxPerMinute
		limiter = rate.NewLimiter(rate.Limit(float64(n)/60), n)
	}

	return &SlackOutput{
		cfg:         cfg,
		minSeverity: types.ParseSeverity(cfg.MinSeverity),
		limiter:     limiter,
	}
}

func (*SlackOutput) Name() string { return "slack" }

func (s *SlackOutput) OnEvent(ctx context.Context, evt *types.AttackEvent) error {
	if evt.Severity.Rank() < s.minSeverity.Rank() {
		return nil
	}

	if !s.limiter.Allow() {
		log.Debugf("slack: rate limited, event %d not posted", evt.ID)
		return nil
	}

	if s.cfg.TimeoutDuration > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.cfg.TimeoutDuration)
		defer cancel()
	}

	msg := s.message(evt)

	if err := slack.PostWebhookContext(ctx, s.cfg.Webhook, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}

	return nil
}

func (s *SlackOutput) message(evt *types.AttackEvent) *slack.WebhookMessage {
	fields := []slack.AttachmentField{
		{Title: "Type", Value: evt.Type.String(), Short: true},
		{Title: "Service", Value: evt.Service, Short: true},
		{Title: "Source", Value: evt.SourceIP + ":" + strconv.Itoa(evt.SourcePort), Short: true},
		{Title: "Port", Value: fmt.Sprintf("%d (simulating %d)", evt.TargetPort, evt.SimulatedPort), Short: true},
	}

	if evt.UserAgent != "" {
		fields = append(fields, slack.AttachmentField{Title: "User-Agent", Value: evt.UserAgent})
	}

	if evt.Payload != "" {
		fields = append(fields, slack.AttachmentField{
			Title: "Payload",
			Value: "```" + types.TruncateRunes(evt.Payload, slackPayloadPreview) + "```",
		})
	}

	return &slack.WebhookMessage{
		Text:      fmt.Sprintf("%s severity attack from %s", titleCase(evt.Severity.String()), evt.SourceIP),
		Channel:   s.cfg.Channel,
		Username:  s.cfg.Username,
		IconEmoji: s.cfg.IconEmoji,
		IconURL:   s.cfg.IconURL,
		Attachments: []slack.Attachment{{
			Color:  severityColors[evt.Severity],
			Fields: fields,
			Footer: fmt.Sprintf("event #%d", evt.ID),
		}},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
