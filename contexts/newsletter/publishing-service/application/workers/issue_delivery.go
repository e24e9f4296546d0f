package workers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	application "letterbox/contexts/newsletter/publishing-service/application"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	"letterbox/contexts/newsletter/publishing-service/domain/valueobjects"
	"letterbox/contexts/newsletter/publishing-service/ports"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultIdleInterval  = 10 * time.Second
	DefaultErrorInterval = time.Second
)

type ExecutionOutcome int

const (
	EmptyQueue ExecutionOutcome = iota
	TaskCompleted
)

func (o ExecutionOutcome) String() string {
	if o == TaskCompleted {
		return "task_completed"
	}
	return "empty_queue"
}

type WorkerConfig struct {
	IdleInterval  time.Duration
	ErrorInterval time.Duration
	// BaseURL prefixes the unsubscribe link appended to every delivery.
	BaseURL string
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		IdleInterval:  DefaultIdleInterval,
		ErrorInterval: DefaultErrorInterval,
	}
}

// IssueDeliveryWorker drains the issue delivery queue one row at a time.
// Any number of workers may run against the same queue.
type IssueDeliveryWorker struct {
	Queue       ports.DeliveryQueue
	Issues      ports.IssueReader
	Subscribers ports.SubscriberDirectory
	Email       ports.EmailSender
	Clock       clockwork.Clock
	Config      WorkerConfig
	Logger      *zap.Logger
}

// TryExecuteOne claims one pending delivery, attempts it once, and deletes
// it. A failed send is logged and the row is still deleted. Storage errors
// leave the row pending for the next attempt.
func (w IssueDeliveryWorker) TryExecuteOne(ctx context.Context) (ExecutionOutcome, error) {
	logger := application.ResolveLogger(w.Logger)
	lease, found, err := w.Queue.Dequeue(ctx)
	if err != nil {
		return EmptyQueue, fmt.Errorf("dequeue delivery: %w", err)
	}
	if !found {
		return EmptyQueue, nil
	}

	item := lease.Item()
	logger = logger.With(
		zap.String("issue_id", item.IssueID),
		zap.String("subscriber_email", item.RecipientEmail),
	)
	if err := w.deliver(ctx, logger, item); err != nil {
		if releaseErr := lease.Release(ctx); releaseErr != nil {
			logger.Warn("delivery lease release failed",
				zap.String("event", "issue_delivery_release_failed"),
				zap.String("module", application.ModuleName),
				zap.String("layer", "worker"),
				zap.Error(releaseErr),
			)
		}
		return EmptyQueue, err
	}
	if err := lease.Complete(ctx); err != nil {
		return EmptyQueue, fmt.Errorf("delete delivery: %w", err)
	}
	return TaskCompleted, nil
}

func (w IssueDeliveryWorker) deliver(ctx context.Context, logger *zap.Logger, item entities.DeliveryItem) error {
	recipient, err := valueobjects.ParseEmailAddress(item.RecipientEmail)
	if err != nil {
		logger.Error("skipping a confirmed subscriber, their stored contact details are invalid",
			zap.String("event", "issue_delivery_invalid_recipient"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "worker"),
			zap.Error(err),
		)
		return nil
	}

	issue, err := w.Issues.GetIssue(ctx, item.IssueID)
	if err != nil {
		return fmt.Errorf("load issue %s: %w", item.IssueID, err)
	}
	token, found, err := w.Subscribers.SubscriptionToken(ctx, recipient.String())
	if err != nil {
		return fmt.Errorf("load subscription token: %w", err)
	}

	htmlContent, textContent := issue.HTMLContent, issue.TextContent
	if found {
		htmlContent, textContent = AddUnsubscribeFooter(htmlContent, textContent, w.Config.BaseURL, token)
	} else {
		logger.Warn("no subscription token found for confirmed subscriber",
			zap.String("event", "issue_delivery_token_missing"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "worker"),
		)
	}

	err = w.Email.SendEmail(ctx, entities.Email{
		Recipient:   recipient.String(),
		Subject:     issue.Title,
		HTMLContent: htmlContent,
		TextContent: textContent,
	})
	if err != nil {
		logger.Error("failed to deliver issue to a confirmed subscriber, skipping",
			zap.String("event", "issue_delivery_send_failed"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "worker"),
			zap.Error(err),
		)
	}
	return nil
}

// RunForever polls until ctx is cancelled. It sleeps IdleInterval on an
// empty queue, ErrorInterval after a failure, and loops at once otherwise.
func (w IssueDeliveryWorker) RunForever(ctx context.Context) error {
	logger := application.ResolveLogger(w.Logger)
	clock := w.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	idle, backoff := w.intervals()

	for {
		outcome, err := w.TryExecuteOne(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("issue delivery attempt failed",
				zap.String("event", "issue_delivery_attempt_failed"),
				zap.String("module", application.ModuleName),
				zap.String("layer", "worker"),
				zap.Error(err),
			)
			wait = backoff
		case outcome == EmptyQueue:
			wait = idle
		}

		if wait <= 0 {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-clock.After(wait):
		}
	}
}

// Drain runs TryExecuteOne until the queue is empty and reports how many
// rows were processed.
func (w IssueDeliveryWorker) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		outcome, err := w.TryExecuteOne(ctx)
		if err != nil {
			return processed, err
		}
		if outcome == EmptyQueue {
			return processed, nil
		}
		processed++
	}
}

func (w IssueDeliveryWorker) intervals() (time.Duration, time.Duration) {
	idle := w.Config.IdleInterval
	if idle <= 0 {
		idle = DefaultIdleInterval
	}
	backoff := w.Config.ErrorInterval
	if backoff <= 0 {
		backoff = DefaultErrorInterval
	}
	return idle, backoff
}

func UnsubscribeURL(baseURL string, token string) string {
	return strings.TrimRight(baseURL, "/") +
		"/subscriptions/unsubscribe?subscription_token=" + url.QueryEscape(token)
}

func AddUnsubscribeFooter(htmlContent string, textContent string, baseURL string, token string) (string, string) {
	link := UnsubscribeURL(baseURL, token)
	htmlFooter := fmt.Sprintf(`<hr><p><small>To unsubscribe, <a href="%s">click here</a></small></p>`, link)
	textFooter := "\n\n---\nTo unsubscribe, visit: " + link
	return htmlContent + htmlFooter, textContent + textFooter
}
