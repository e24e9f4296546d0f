package queries

import (
	"context"
	"strings"

	application "letterbox/contexts/newsletter/publishing-service/application"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	"letterbox/contexts/newsletter/publishing-service/ports"

	"go.uber.org/zap"
)

type GetIssueResult struct {
	Issue             entities.Issue
	PendingDeliveries int
}

type GetIssueUseCase struct {
	Issues     ports.IssueReader
	Deliveries ports.DeliveryQueue
	Logger     *zap.Logger
}

func (uc GetIssueUseCase) Execute(ctx context.Context, issueID string) (GetIssueResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	issueID = strings.TrimSpace(issueID)
	if issueID == "" {
		return GetIssueResult{}, domainerrors.ErrIssueNotFound
	}

	issue, err := uc.Issues.GetIssue(ctx, issueID)
	if err != nil {
		return GetIssueResult{}, err
	}
	pending, err := uc.Deliveries.CountPending(ctx, issueID)
	if err != nil {
		return GetIssueResult{}, err
	}
	logger.Debug("newsletter issue fetched",
		zap.String("event", "newsletter_issue_fetched"),
		zap.String("module", application.ModuleName),
		zap.String("layer", "application"),
		zap.String("issue_id", issueID),
		zap.Int("pending_deliveries", pending),
	)
	return GetIssueResult{Issue: issue, PendingDeliveries: pending}, nil
}
