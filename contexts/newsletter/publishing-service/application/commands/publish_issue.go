package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	application "letterbox/contexts/newsletter/publishing-service/application"
	"letterbox/contexts/newsletter/publishing-service/application/idempotency"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	"letterbox/contexts/newsletter/publishing-service/domain/valueobjects"
	"letterbox/contexts/newsletter/publishing-service/ports"

	"go.uber.org/zap"
)

const PublishAcceptedMessage = "The newsletter issue has been accepted - emails will go out shortly."

type PublishIssueCommand struct {
	OwnerID        string
	IdempotencyKey string
	Title          string
	TextContent    string
	HTMLContent    string
}

type PublishIssueUseCase struct {
	Idempotency idempotency.Store
	Issues      ports.IssueRepository
	Deliveries  ports.DeliveryQueue
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *zap.Logger
}

type PublishIssueResult struct {
	Response entities.SavedResponse
	Replayed bool
}

type publishAcceptedPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	IssueID string `json:"issue_id"`
}

func (uc PublishIssueUseCase) Execute(ctx context.Context, cmd PublishIssueCommand) (PublishIssueResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	key, err := valueobjects.ParseIdempotencyKey(cmd.IdempotencyKey)
	if err != nil {
		return PublishIssueResult{}, err
	}
	ownerID := strings.TrimSpace(cmd.OwnerID)
	if ownerID == "" {
		return PublishIssueResult{}, domainerrors.ErrOwnerRequired
	}
	if strings.TrimSpace(cmd.Title) == "" ||
		strings.TrimSpace(cmd.TextContent) == "" ||
		strings.TrimSpace(cmd.HTMLContent) == "" {
		return PublishIssueResult{}, domainerrors.ErrInvalidIssueContent
	}

	action, err := uc.Idempotency.Claim(ctx, ownerID, key)
	if err != nil {
		return PublishIssueResult{}, err
	}
	if action.IsReplay() {
		logger.Info("newsletter publish replayed",
			zap.String("event", "newsletter_publish_replayed"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "application"),
			zap.String("owner_id", ownerID),
			zap.String("idempotency_key", key.String()),
		)
		return PublishIssueResult{Response: *action.Saved, Replayed: true}, nil
	}

	tx := action.Tx
	issueID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return PublishIssueResult{}, fmt.Errorf("generate issue id: %w", err)
	}
	issue := entities.Issue{
		IssueID:     issueID,
		Title:       cmd.Title,
		TextContent: cmd.TextContent,
		HTMLContent: cmd.HTMLContent,
		PublishedBy: ownerID,
		PublishedAt: uc.Clock.Now().UTC(),
	}
	if err := uc.Issues.InsertIssue(ctx, tx, issue); err != nil {
		_ = tx.Rollback(ctx)
		return PublishIssueResult{}, fmt.Errorf("insert newsletter issue: %w", err)
	}
	enqueued, err := uc.Deliveries.EnqueueConfirmed(ctx, tx, issueID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return PublishIssueResult{}, fmt.Errorf("enqueue delivery tasks: %w", err)
	}

	body, err := json.Marshal(publishAcceptedPayload{
		Success: true,
		Message: PublishAcceptedMessage,
		IssueID: issueID,
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return PublishIssueResult{}, err
	}
	response, err := uc.Idempotency.Finalize(ctx, tx, ownerID, key, entities.SavedResponse{
		StatusCode: http.StatusOK,
		Headers: []entities.HeaderPair{
			{Name: "Content-Type", Value: []byte("application/json")},
		},
		Body: body,
	})
	if err != nil {
		return PublishIssueResult{}, err
	}

	logger.Info("newsletter issue published",
		zap.String("event", "newsletter_issue_published"),
		zap.String("module", application.ModuleName),
		zap.String("layer", "application"),
		zap.String("issue_id", issueID),
		zap.String("owner_id", ownerID),
		zap.Int("enqueued_deliveries", enqueued),
	)
	return PublishIssueResult{Response: response}, nil
}
