package httpadapter

import (
	"context"
	"strings"
	"time"

	application "letterbox/contexts/newsletter/publishing-service/application"
	"letterbox/contexts/newsletter/publishing-service/application/commands"
	"letterbox/contexts/newsletter/publishing-service/application/queries"
	"letterbox/contexts/newsletter/publishing-service/domain/entities"
	domainerrors "letterbox/contexts/newsletter/publishing-service/domain/errors"
	"letterbox/contexts/newsletter/publishing-service/domain/valueobjects"
	httptransport "letterbox/contexts/newsletter/publishing-service/transport/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

type Handler struct {
	PublishIssue commands.PublishIssueUseCase
	GetIssue     queries.GetIssueUseCase
	Logger       *zap.Logger
}

// PublishIssueHandler godoc
// @Summary Publish a newsletter issue
// @Description Stores the issue and queues one delivery per confirmed subscriber. Retries with the same Idempotency-Key replay the first response byte for byte.
// @Tags newsletter
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Idempotency key, falls back to idempotency_key in the body"
// @Param request body httptransport.PublishIssueRequest true "Issue content"
// @Success 200 {object} httptransport.PublishIssueResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /admin/newsletters [post]
func (h Handler) PublishIssueHandler(
	ctx context.Context,
	ownerID string,
	idempotencyKey string,
	req httptransport.PublishIssueRequest,
) (entities.SavedResponse, bool, error) {
	logger := application.ResolveLogger(h.Logger)
	if strings.TrimSpace(idempotencyKey) == "" {
		idempotencyKey = req.IdempotencyKey
	}
	if _, err := valueobjects.ParseIdempotencyKey(idempotencyKey); err != nil {
		return entities.SavedResponse{}, false, err
	}
	if err := validate.Struct(req); err != nil {
		logger.Debug("publish request rejected",
			zap.String("event", "newsletter_publish_invalid_request"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "transport"),
			zap.Error(err),
		)
		return entities.SavedResponse{}, false, domainerrors.ErrInvalidIssueContent
	}

	result, err := h.PublishIssue.Execute(ctx, commands.PublishIssueCommand{
		OwnerID:        ownerID,
		IdempotencyKey: idempotencyKey,
		Title:          req.Title,
		TextContent:    req.TextContent,
		HTMLContent:    req.HTMLContent,
	})
	if err != nil {
		logger.Error("publish request failed",
			zap.String("event", "http_publish_issue_failed"),
			zap.String("module", application.ModuleName),
			zap.String("layer", "transport"),
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return entities.SavedResponse{}, false, err
	}
	return result.Response, result.Replayed, nil
}

// GetIssueHandler godoc
// @Summary Get a newsletter issue
// @Description Returns the issue and how many deliveries are still queued.
// @Tags newsletter
// @Produce json
// @Security BearerAuth
// @Param issue_id path string true "Issue id"
// @Success 200 {object} httptransport.GetIssueResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /admin/newsletters/{issue_id} [get]
func (h Handler) GetIssueHandler(ctx context.Context, issueID string) (httptransport.GetIssueResponse, error) {
	result, err := h.GetIssue.Execute(ctx, issueID)
	if err != nil {
		return httptransport.GetIssueResponse{}, err
	}
	return httptransport.GetIssueResponse{
		Issue:             mapIssue(result.Issue),
		PendingDeliveries: result.PendingDeliveries,
	}, nil
}

func mapIssue(item entities.Issue) httptransport.IssueDTO {
	return httptransport.IssueDTO{
		IssueID:     item.IssueID,
		Title:       item.Title,
		TextContent: item.TextContent,
		HTMLContent: item.HTMLContent,
		PublishedBy: item.PublishedBy,
		PublishedAt: item.PublishedAt.UTC().Format(time.RFC3339),
	}
}
