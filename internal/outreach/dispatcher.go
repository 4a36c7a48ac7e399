package outreach

import (
	"context"
	"fmt"
	"strings"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// LogDispatcher is the default channel integration: it rate-limits and
// logs every send instead of calling external providers. Production
// deployments replace it with real email/chat/CRM integrations.
type LogDispatcher struct {
	logger  *logrus.Logger
	limiter *rate.Limiter
}

// NewLogDispatcher creates a dispatcher that records sends in the log
func NewLogDispatcher(logger *logrus.Logger, config *Config) *LogDispatcher {
	if config == nil {
		config = DefaultConfig()
	}
	limit := rate.Limit(config.SendsPerSecond)
	if config.SendsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &LogDispatcher{
		logger:  logger,
		limiter: rate.NewLimiter(limit, config.SendBurst),
	}
}

// Send dispatches one action step, honoring the send rate limit
func (d *LogDispatcher) Send(ctx context.Context, step models.ActionStep, strategy models.Strategy) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	fields := logrus.Fields{
		"account": strategy.AccountName,
		"step":    step.Ordinal,
	}

	switch step.Kind {
	case models.ActionMessageSend:
		fields["recipient"] = step.Recipient
		fields["template"] = step.Template
		fields["subject"] = subjectLine(Template(step.Template))
		d.logger.WithFields(fields).Info("[MESSAGE] send")
	case models.ActionChatPost:
		fields["channel"] = step.Channel
		fields["message"] = step.Message
		d.logger.WithFields(fields).Info("[CHAT] post")
	case models.ActionRecordUpdate:
		fields["record"] = step.Recipient
		fields["note"] = step.Message
		d.logger.WithFields(fields).Info("[CRM] update")
	case models.ActionEscalationRoute:
		fields["team"] = step.Recipient
		d.logger.WithFields(fields).Info("[ESCALATION] route")
	case models.ActionIncentiveOffer, models.ActionFeeWaiver, models.ActionGenericOffer:
		fields["offer"] = step.OfferType
		fields["terms"] = step.Terms
		d.logger.WithFields(fields).Info("[OFFER] extend")
	case models.ActionCalendarInvite:
		fields["recipient"] = step.Recipient
		fields["subject"] = step.Subject
		d.logger.WithFields(fields).Info("[CALENDAR] invite")
	default:
		return fmt.Errorf("unknown action kind %q", step.Kind)
	}

	return nil
}

// subjectLine extracts the leading subject header from a message body
func subjectLine(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	return strings.TrimPrefix(line, "Subject: ")
}
